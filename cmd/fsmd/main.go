// Command fsmd serves the lifecycle API over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrymomot/contractflow/pkg/config"
	"github.com/dmitrymomot/contractflow/pkg/httpserver"
	"github.com/dmitrymomot/contractflow/pkg/logger"
	"github.com/dmitrymomot/contractflow/pkg/requestid"
	"github.com/dmitrymomot/contractflow/pkg/tracing"
	"github.com/dmitrymomot/contractflow/svc/lifecycle"
	"github.com/dmitrymomot/contractflow/svc/lifecycle/httpapi"
)

type appConfig struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	BasePath string `env:"API_BASE_PATH" envDefault:"/api/v1"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fsmd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var app appConfig
	if err := config.Load(&app); err != nil {
		return err
	}
	log := logger.New(
		logger.WithEnvironment(app.Env, "fsmd"),
		logger.WithLevelString(app.LogLevel),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	var (
		httpCfg  httpserver.Config
		traceCfg tracing.Config
	)
	if err := config.Load(&httpCfg); err != nil {
		return err
	}
	if err := config.Load(&traceCfg); err != nil {
		return err
	}
	cfg, err := lifecycle.LoadConfig()
	if err != nil {
		return err
	}

	shutdownTracing, err := tracing.Setup(ctx, traceCfg)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			log.Error("failed to flush traces", logger.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	rt, err := lifecycle.Open(ctx, cfg, log, lifecycle.WithMetrics(lifecycle.NewMetrics(reg)))
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Error("failed to close lifecycle runtime", logger.Error(err))
		}
	}()

	checks := make([]httpserver.Check, len(rt.Checks))
	for i, c := range rt.Checks {
		checks[i] = c
	}
	api := httpapi.New(rt.Service,
		httpapi.WithLogger(log),
		httpapi.WithNotices(rt.Notices),
		httpapi.WithMetrics(reg),
		httpapi.WithReadiness(checks...),
	)

	router := chi.NewRouter()
	router.Mount(app.BasePath, api.Routes())

	log.InfoContext(ctx, "starting fsmd",
		slog.String("addr", httpCfg.Addr),
		slog.String("base_path", app.BasePath),
		slog.String("backend", cfg.Backend),
	)
	return httpserver.New(httpCfg, httpserver.WithLogger(log)).Run(ctx, router)
}
