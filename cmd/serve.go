package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"pdfdesk/internal/api"
	"pdfdesk/internal/config"
	fileutil "pdfdesk/internal/file"
	"pdfdesk/internal/metrics"
	"pdfdesk/internal/service"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	if err := fileutil.EnsureDir(cfg.DataDir); err != nil {
		return fmt.Errorf("ensure data dir %s: %w", cfg.DataDir, err)
	}

	svc := buildService(cfg)
	defer svc.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	detach := m.Attach(svc.Registry())
	defer detach()

	router := setupRouter(cfg)
	wireAPI(router, cfg, svc, m)

	baseCtx, baseCancel := context.WithCancel(context.Background())
	svc.SetBaseContext(baseCtx)

	srv := newHTTPServer(cfg.Port, router, readHeaderTimeout)
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Str("data_dir", cfg.DataDir).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		baseCancel()
		return fmt.Errorf("http server failed: %w", err)
	}

	gracefulShutdown(srv, baseCancel, svc, shutdownTimeout)
	return nil
}

func buildService(cfg config.Config) *service.Service {
	return service.New(service.Options{
		DataDir:            cfg.DataDir,
		MaxConcurrentTasks: cfg.MaxConcurrentTasks,
		EvictAfter:         cfg.EvictionDelay,
		DownloadSpacing:    cfg.DownloadSpacing,
	})
}

func setupRouter(cfg config.Config) *gin.Engine {
	if log.Logger.GetLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.MaxMultipartMemory = cfg.MaxUploadBytes()

	r.Use(gin.Recovery())
	r.Use(api.ZerologLogger())
	r.Use(api.BodyLimit(cfg.MaxUploadBytes()))
	return r
}

func wireAPI(router *gin.Engine, cfg config.Config, svc *service.Service, m *metrics.Metrics) {
	apiHandler := api.NewAPI(svc, api.Options{
		AllowedExtensions: cfg.AllowedExtensions,
		Metrics:           m.Handler(),
	})
	apiHandler.RegisterRoutes(router)
	apiHandler.RegisterUIRoutes(router)
}

func newHTTPServer(port int, handler http.Handler, readHeaderTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func gracefulShutdown(srv *http.Server, cancelBase context.CancelFunc, svc *service.Service, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown warning")
	}

	cancelBase()
	done := svc.WaitAll(ctx)
	if !done {
		log.Warn().Msg("background workers did not finish before timeout")
	}
	log.Info().Msg("server exited cleanly")
}
