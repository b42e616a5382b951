// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Command kpipeline-lessons runs the numbered producer lessons against a
// Kafka cluster.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
	"github.com/xmidt-org/kpipeline"
	"github.com/xmidt-org/kpipeline/internal/config"
	"github.com/xmidt-org/kpipeline/internal/lessons"
	"github.com/xmidt-org/kpipeline/internal/logging"
	"go.uber.org/zap"
)

const namespace = "kpipeline"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:          "kpipeline-lessons",
		Short:        "Hands-on lessons for the kpipeline Kafka producer",
		SilenceUsage: true,
	}
	root.SetOut(stdout)

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "configuration file (yaml, json or toml)")
	flags.StringSlice("brokers", nil, "Kafka bootstrap brokers, host:port")
	flags.String("schema-registry", "", "schema registry URL")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-encoding", "", "log encoding: console or json")

	root.AddCommand(newListCmd(stdout))
	root.AddCommand(newRunCmd(stdout, &cfgFile))
	return root
}

func newListCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the lessons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, l := range lessons.All() {
				fmt.Fprintf(stdout, "%2d. %-30s %s\n", l.Number(), l.Title(), l.Description())
			}
			return nil
		},
	}
}

func newRunCmd(stdout io.Writer, cfgFile *string) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "run [numbers...]",
		Short: "Run lessons by number, or all of them",
		Example: `  kpipeline-lessons run 1 3
  kpipeline-lessons run --all --brokers localhost:9092`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errors.New("give lesson numbers or --all, not both")
			}
			if !all && len(args) == 0 {
				return errors.New("give at least one lesson number, or --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := selectLessons(all, args)
			if err != nil {
				return err
			}

			cfg, err := config.Load(*cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			logger, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return run(ctx, cfg, logger, stdout, selected)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "run every lesson in order")
	return cmd
}

func selectLessons(all bool, args []string) ([]lessons.Lesson, error) {
	if all {
		return lessons.All(), nil
	}

	selected := make([]lessons.Lesson, 0, len(args))
	for _, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("lesson number %q: %w", arg, err)
		}
		l, err := lessons.Lookup(n)
		if err != nil {
			return nil, err
		}
		selected = append(selected, l)
	}
	return selected, nil
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, stdout io.Writer, selected []lessons.Lesson) error {
	env := &lessons.Env{
		Config:  cfg,
		Logger:  logger,
		Out:     lessons.NewPrinter(stdout),
		Metrics: &kpipeline.Metrics{},
	}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			env.Metrics.Collector(namespace),
		)
		env.Hooks = clientHooks(reg)

		shutdown := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer shutdown()
	}

	logger.Info("running lessons",
		zap.Strings("brokers", cfg.Brokers),
		zap.Int("count", len(selected)),
	)

	var failed []int
	for _, l := range selected {
		if err := lessons.Run(ctx, env, l); err != nil {
			failed = append(failed, l.Number())
			if ctx.Err() != nil {
				break
			}
		}
	}

	fmt.Fprintln(stdout)
	if err := env.Metrics.Snapshot().WriteReport(stdout); err != nil {
		return err
	}

	if len(failed) > 0 {
		return fmt.Errorf("lessons failed: %v", failed)
	}
	return nil
}

// clientHooks returns a kprom plugin for each new producer, labeled so that
// several producers can share reg.
func clientHooks(reg prometheus.Registerer) func() []kgo.Hook {
	var n atomic.Int64
	return func() []kgo.Hook {
		labels := prometheus.Labels{"producer": strconv.FormatInt(n.Add(1), 10)}
		m := kprom.NewMetrics(namespace, kprom.Registerer(prometheus.WrapRegistererWith(labels, reg)))
		return []kgo.Hook{m}
	}
}

// serveMetrics serves reg on addr until the returned function is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
}
