// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the zap logger used by the lesson runner and bridges
// it into franz-go.
package logging

import (
	"errors"
	"fmt"
	"os"

	"github.com/natefinch/lumberjack"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	EncodingJSON    = "json"
	EncodingConsole = "console"
)

// Config describes the logger.
type Config struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `mapstructure:"level"`

	// Encoding is json or console. Default: console.
	Encoding string `mapstructure:"encoding"`

	// File, when Path is set, also writes logs to a rotated file.
	File FileConfig `mapstructure:"file"`
}

// FileConfig configures log file rotation.
type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

func (c *Config) applyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Encoding == "" {
		c.Encoding = EncodingConsole
	}
}

// Validate checks the level and encoding.
func (c Config) Validate() error {
	c.applyDefaults()

	if _, err := zapcore.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("log level %q is invalid: %w", c.Level, err)
	}
	if c.Encoding != EncodingJSON && c.Encoding != EncodingConsole {
		return fmt.Errorf("log encoding %q is invalid: must be '%s' or '%s'",
			c.Encoding, EncodingJSON, EncodingConsole)
	}
	if c.File.MaxSizeMB < 0 || c.File.MaxBackups < 0 || c.File.MaxAgeDays < 0 {
		return errors.New("log file rotation limits must not be negative")
	}
	return nil
}

// New builds a logger writing to stderr and, when configured, to a rotated
// file.
func New(cfg Config) (*zap.Logger, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, _ := zapcore.ParseLevel(cfg.Level)

	sinks := []zapcore.WriteSyncer{zapcore.Lock(os.Stderr)}
	if cfg.File.Path != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}))
	}

	core := zapcore.NewCore(encoder(cfg.Encoding), zapcore.NewMultiWriteSyncer(sinks...), level)
	return zap.New(core, zap.AddCaller()), nil
}

func encoder(encoding string) zapcore.Encoder {
	if encoding == EncodingJSON {
		ec := zap.NewProductionEncoderConfig()
		ec.TimeKey = "ts"
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		ec.EncodeCaller = zapcore.ShortCallerEncoder
		return zapcore.NewJSONEncoder(ec)
	}

	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

// Kafka returns a franz-go logger writing to a child of l named "kafka". The
// franz-go level follows the enabled level of l.
func Kafka(l *zap.Logger) kgo.Logger {
	named := l.Named("kafka")
	return kzap.New(named, kzap.Level(KgoLevel(named.Level())))
}

// KgoLevel maps a zap level to the closest franz-go level.
func KgoLevel(level zapcore.Level) kgo.LogLevel {
	switch {
	case level <= zapcore.DebugLevel:
		return kgo.LogLevelDebug
	case level == zapcore.InfoLevel:
		return kgo.LogLevelInfo
	case level == zapcore.WarnLevel:
		return kgo.LogLevelWarn
	case level <= zapcore.FatalLevel:
		return kgo.LogLevelError
	}
	return kgo.LogLevelNone
}
