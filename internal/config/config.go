// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package config loads the lesson runner configuration from defaults, an
// optional YAML file, KPIPELINE_ environment variables and command flags.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"
	"github.com/xmidt-org/kpipeline"
	"github.com/xmidt-org/kpipeline/internal/logging"
)

// EnvPrefix prefixes every environment variable, e.g. KPIPELINE_BROKERS.
const EnvPrefix = "KPIPELINE"

// SASL mechanisms.
const (
	SASLPlain       = "plain"
	SASLScramSHA256 = "scram-sha-256"
	SASLScramSHA512 = "scram-sha-512"
)

type Config struct {
	Brokers           []string       `mapstructure:"brokers"`
	SchemaRegistryURL string         `mapstructure:"schema_registry_url"`
	MetricsAddr       string         `mapstructure:"metrics_addr"`
	Log               logging.Config `mapstructure:"log"`
	SASL              SASLConfig     `mapstructure:"sasl"`
	Producer          ProducerConfig `mapstructure:"producer"`
	Routing           RoutingConfig  `mapstructure:"routing"`
	Lessons           LessonsConfig  `mapstructure:"lessons"`
}

type SASLConfig struct {
	Mechanism string `mapstructure:"mechanism"`
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
}

// ProducerConfig holds the defaults applied to every producer a lesson
// creates. Lessons override the fields they demonstrate.
type ProducerConfig struct {
	ClientID           string        `mapstructure:"client_id"`
	Acks               string        `mapstructure:"acks"`
	Compression        string        `mapstructure:"compression"`
	Linger             time.Duration `mapstructure:"linger"`
	BatchMaxBytes      int32         `mapstructure:"batch_max_bytes"`
	MaxBufferedRecords int           `mapstructure:"max_buffered_records"`
	MaxRetries         int           `mapstructure:"max_retries"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	DeliveryTimeout    time.Duration `mapstructure:"delivery_timeout"`
	CleanupTimeout     time.Duration `mapstructure:"cleanup_timeout"`
	Interceptors       []string      `mapstructure:"interceptors"`
}

type RoutingConfig struct {
	Rules    []RuleConfig `mapstructure:"rules"`
	Fallback int          `mapstructure:"fallback"`
}

type RuleConfig struct {
	Prefix          string `mapstructure:"prefix"`
	Partition       int    `mapstructure:"partition"`
	CaseInsensitive bool   `mapstructure:"case_insensitive"`
}

type LessonsConfig struct {
	// TopicPrefix is prepended to every topic a lesson uses.
	TopicPrefix string `mapstructure:"topic_prefix"`

	// Timeout bounds a single lesson run.
	Timeout time.Duration `mapstructure:"timeout"`
}

// flagKeys maps command flags to configuration keys.
var flagKeys = map[string]string{
	"brokers":         "brokers",
	"schema-registry": "schema_registry_url",
	"metrics-addr":    "metrics_addr",
	"log-level":       "log.level",
	"log-encoding":    "log.encoding",
}

// Load reads the configuration. path may be empty; flags may be nil. Flags
// that were set on the command line take precedence over everything else.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	/* ---------- defaults ---------- */

	v.SetDefault("brokers", []string{"localhost:9092"})
	v.SetDefault("schema_registry_url", "http://localhost:8081")
	v.SetDefault("metrics_addr", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", logging.EncodingConsole)
	v.SetDefault("log.file.path", "")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 3)
	v.SetDefault("log.file.max_age_days", 7)
	v.SetDefault("log.file.compress", false)

	v.SetDefault("sasl.mechanism", "")
	v.SetDefault("sasl.user", "")
	v.SetDefault("sasl.password", "")

	v.SetDefault("producer.client_id", "kpipeline-lessons")
	v.SetDefault("producer.acks", string(kpipeline.AcksAll))
	v.SetDefault("producer.compression", string(kpipeline.CompressionNone))
	v.SetDefault("producer.linger", "0s")
	v.SetDefault("producer.batch_max_bytes", 0)
	v.SetDefault("producer.max_buffered_records", 0)
	v.SetDefault("producer.max_retries", 0)
	v.SetDefault("producer.request_timeout", "10s")
	v.SetDefault("producer.delivery_timeout", "2m")
	v.SetDefault("producer.cleanup_timeout", "10s")
	v.SetDefault("producer.interceptors", []string{})

	v.SetDefault("routing.fallback", 3)
	v.SetDefault("routing.rules", []map[string]any{
		{"prefix": "US-", "partition": 0},
		{"prefix": "EU-", "partition": 1},
		{"prefix": "APAC-", "partition": 2},
	})

	v.SetDefault("lessons.topic_prefix", "")
	v.SetDefault("lessons.timeout", "2m")

	/* ---------- env ---------- */

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	/* ---------- optional file ---------- */

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	/* ---------- flags ---------- */

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %q: %w", name, err)
			}
		}
	}

	/* ---------- decode ---------- */

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "mapstructure",
		Result:  &cfg,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create config decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	/* ---------- validate ---------- */

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings that are not validated by the producer itself.
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("brokers is required")
	}
	for i, b := range c.Brokers {
		if _, _, err := net.SplitHostPort(b); err != nil {
			return fmt.Errorf("broker %d (%q) must be host:port: %w", i, b, err)
		}
	}

	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			return fmt.Errorf("metrics_addr %q must be host:port: %w", c.MetricsAddr, err)
		}
	}

	if err := c.Log.Validate(); err != nil {
		return err
	}

	switch c.SASL.Mechanism {
	case "":
	case SASLPlain, SASLScramSHA256, SASLScramSHA512:
		if c.SASL.User == "" {
			return errors.New("sasl.user is required when sasl.mechanism is set")
		}
	default:
		return fmt.Errorf("sasl.mechanism %q is invalid: must be '%s', '%s', '%s' or empty",
			c.SASL.Mechanism, SASLPlain, SASLScramSHA256, SASLScramSHA512)
	}

	for i, r := range c.Routing.Rules {
		if r.Prefix == "" {
			return fmt.Errorf("routing rule %d: prefix is required", i)
		}
	}

	if c.Lessons.Timeout <= 0 {
		return errors.New("lessons.timeout must be positive")
	}
	return nil
}

// SASLMechanism returns the configured SASL mechanism, or nil when SASL is
// disabled.
func (c *Config) SASLMechanism() sasl.Mechanism {
	switch c.SASL.Mechanism {
	case SASLPlain:
		return plain.Auth{User: c.SASL.User, Pass: c.SASL.Password}.AsMechanism()
	case SASLScramSHA256:
		return scram.Auth{User: c.SASL.User, Pass: c.SASL.Password}.AsSha256Mechanism()
	case SASLScramSHA512:
		return scram.Auth{User: c.SASL.User, Pass: c.SASL.Password}.AsSha512Mechanism()
	}
	return nil
}

// Router returns the configured prefix router, or nil when no rules are set.
func (c *Config) Router() *kpipeline.Router {
	if len(c.Routing.Rules) == 0 {
		return nil
	}

	r := kpipeline.Router{Fallback: c.Routing.Fallback}
	for _, rule := range c.Routing.Rules {
		r.Rules = append(r.Rules, kpipeline.RoutingRule{
			Prefix:          rule.Prefix,
			Partition:       rule.Partition,
			CaseInsensitive: rule.CaseInsensitive,
		})
	}
	return &r
}

// Topic returns name with the configured topic prefix.
func (c *Config) Topic(name string) string {
	return c.Lessons.TopicPrefix + name
}

// Apply copies the producer defaults into p.
func (c *Config) Apply(p *kpipeline.Producer) {
	p.Brokers = append([]string(nil), c.Brokers...)
	p.SASL = c.SASLMechanism()
	p.ClientID = c.Producer.ClientID
	p.Acks = kpipeline.Acks(c.Producer.Acks)
	p.Compression = kpipeline.Compression(c.Producer.Compression)
	p.Linger = c.Producer.Linger
	p.BatchMaxBytes = c.Producer.BatchMaxBytes
	p.MaxBufferedRecords = c.Producer.MaxBufferedRecords
	p.MaxRetries = c.Producer.MaxRetries
	p.RequestTimeout = c.Producer.RequestTimeout
	p.DeliveryTimeout = c.Producer.DeliveryTimeout
	p.CleanupTimeout = c.Producer.CleanupTimeout
	p.AllowAutoTopicCreation = true

	p.InterceptorOrder = nil
	for _, id := range c.Producer.Interceptors {
		p.InterceptorOrder = append(p.InterceptorOrder, kpipeline.InterceptorID(id))
	}
}
