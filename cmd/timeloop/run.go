package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/urfave/cli"

	"github.com/InkSha/time-loop/pkg/logging"
	"github.com/InkSha/time-loop/pkg/metrics"
	"github.com/InkSha/time-loop/pkg/scheduling/engine"
	"github.com/InkSha/time-loop/pkg/scheduling/timeloop"
)

const shutdownTimeout = 5 * time.Second

func runCommand(c *cli.Context) error {
	cfg, err := LoadConfig(c.String("config"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, cfg, os.Stderr)
}

func validateCommand(c *cli.Context) error {
	cfg, err := LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	infos, err := validate(cfg)
	if err != nil {
		return err
	}
	w := c.App.Writer
	for _, info := range infos {
		fmt.Fprintf(w, "%-24s remaining=%d interval=%s cron=%q keep_alive=%t async=%t\n",
			info.Name, info.Remaining, info.Interval, info.Cron, info.KeepAlive, info.Async)
	}
	fmt.Fprintf(w, "ok: %d tasks\n", len(infos))
	return nil
}

// validate registers every configured task on a loop that is never run.
func validate(cfg *FileConfig) ([]timeloop.TaskInfo, error) {
	loop := timeloop.NewWithConfig(timeloop.Config{
		Engine:   engine.NewManual(),
		Location: cfg.Location(),
		Name:     cfg.Name,
		Pathname: cfg.Pathname,
	})
	if _, err := loop.Register(buildTasks(cfg, loop, zerolog.Nop())...); err != nil {
		return nil, err
	}
	return loop.Tasks(), nil
}

// run starts the loop and blocks until ctx is canceled.
func run(ctx context.Context, cfg *FileConfig, out io.Writer) error {
	logger := logging.New(out, cfg.Log)

	loopCfg := timeloop.Config{
		Delay:    cfg.Delay,
		Location: cfg.Location(),
		Name:     cfg.Name,
		Pathname: cfg.Pathname,
		Workers:  cfg.Workers,
		Logger:   &logger,
	}

	var srv *http.Server
	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())

		mcfg := metrics.DefaultConfig()
		mcfg.Registry = reg
		if cfg.Metrics.Namespace != "" {
			mcfg.Namespace = cfg.Metrics.Namespace
		}
		loopCfg.Metrics = metrics.NewRegistryWithConfig(mcfg)

		srv = newMetricsServer(cfg.Metrics, reg)
		go func() {
			logger.Info().Str("addr", srv.Addr).Msg("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	loop := timeloop.NewWithConfig(loopCfg)
	dispose, err := loop.Register(buildTasks(cfg, loop, logger)...)
	if err != nil {
		if srv != nil {
			_ = srv.Close()
		}
		return err
	}

	loop.Run()
	logger.Info().Int("tasks", len(loop.Tasks())).Dur("delay", cfg.Delay).Msg("loop started")

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	dispose()
	<-loop.Close()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
	}
	return nil
}

func newMetricsServer(cfg MetricsConfig, reg *prometheus.Registry) *http.Server {
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
