package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/abelbrown/viralengine/internal/config"
	"github.com/abelbrown/viralengine/internal/logging"
	"github.com/abelbrown/viralengine/internal/metrics"
	"github.com/abelbrown/viralengine/internal/store"
)

var (
	flagConfig      string
	flagDB          string
	flagDebug       bool
	flagMetricsAddr string
	flagIndustry    string
)

// env is the per-invocation wiring, set up before any subcommand runs and
// closed by execute.
var env *app

// execute runs the root command and releases whatever it opened, whether
// or not the command failed.
func execute(ctx context.Context, args []string) error {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if env != nil {
		if cerr := env.close(); cerr != nil && err == nil {
			err = cerr
		}
		env = nil
	}
	return err
}

type app struct {
	cfg     *config.Config
	store   *store.Store
	metrics *metrics.Metrics
	server  *http.Server
}

var rootCmd = &cobra.Command{
	Use:           "viral",
	Short:         "Viral opportunity engine",
	Long:          "viral turns social signals into scored, gated content opportunities and approved briefs.",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		env = a
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (default $VIRAL_CONFIG or ~/.viralengine/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "path to the SQLite database")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "log at debug level to stderr")
	rootCmd.PersistentFlags().StringVar(&flagMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs")
	rootCmd.PersistentFlags().StringVar(&flagIndustry, "industry", "", "industry to ingest and build for (default from config)")

	rootCmd.AddCommand(ingestCmd, buildCmd, opportunitiesCmd, briefCmd, contentCmd, sourcesCmd)
}

func openApp() (*app, error) {
	var (
		cfg *config.Config
		err error
	)
	if flagConfig != "" {
		config.LoadEnvFiles(".env", ".env.local")
		cfg, err = config.LoadFile(flagConfig)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.Database.Path = flagDB
	}
	if flagIndustry != "" {
		cfg.Ingest.Industry = flagIndustry
	}

	logOpts := logging.Options{Dir: cfg.Log.Dir, Level: cfg.Log.Level, Stderr: cfg.Log.Stderr}
	if flagDebug {
		logOpts.Stderr = true
		logOpts.Level = "debug"
	}
	if err := logging.Init(logOpts); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a := &app{cfg: cfg, store: st, metrics: metrics.New(reg)}

	if flagMetricsAddr != "" {
		a.server = &http.Server{Addr: flagMetricsAddr, Handler: a.metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("metrics server failed", "addr", flagMetricsAddr, "error", err)
				fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
			}
		}()
		logging.Info("serving metrics", "addr", flagMetricsAddr)
	}
	return a, nil
}

func (a *app) close() error {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		a.server.Shutdown(ctx)
		cancel()
	}
	err := a.store.Close()
	logging.Close()
	return err
}
