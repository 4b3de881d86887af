package app

import (
	"context"
	"fmt"

	"github.com/samvad-hq/httpbridge/internal/config"
	"github.com/samvad-hq/httpbridge/internal/engine"
	"github.com/samvad-hq/httpbridge/internal/logger"
	"github.com/samvad-hq/httpbridge/internal/metrics"
	"github.com/samvad-hq/httpbridge/internal/storage"
	"github.com/samvad-hq/httpbridge/pkg/httpclient"
)

// Runtime represents one configured engine together with the pieces it was
// built from: the resty transport, the body store and the metrics registry.
type Runtime struct {
	log     *logger.ZapLogger
	engine  *engine.Engine
	metrics *metrics.PrometheusMetrics
}

// Open builds the logger described by cfg and a runtime around it. The
// runtime owns the logger and syncs it on Close.
func Open(cfg *config.Config) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log, err := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Output: cfg.LogOutput,
		Fields: map[string]string{"app": cfg.AppName, "env": cfg.Env},
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return New(cfg, log)
}

// New builds a runtime from cfg, logging through log.
func New(cfg *config.Config, log *logger.ZapLogger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NewFromZap(nil)
	}

	transport := httpclient.DefaultOptions()
	transport.FollowRedirects = cfg.FollowRedirects
	transport.MaxRedirects = cfg.MaxRedirects
	transport.KeepAlive = cfg.TCPKeepAlive
	transport.InsecureSkipVerify = cfg.InsecureSkipVerify
	if cfg.UserAgent != "" {
		transport.UserAgent = cfg.UserAgent
	}
	transport.Debug = cfg.TransportDebug
	transport.Logger = log.Sugar()
	client := httpclient.NewRestyClient(transport)

	store, err := storage.NewBodyStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		SpoolThreshold: cfg.SpoolThresholdBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                  cfg.StorageType,
		"path":                  cfg.BBoltPath,
		"spool_threshold_bytes": cfg.SpoolThresholdBytes,
	})

	m := metrics.NewPrometheusMetrics()
	eng, err := engine.New(client, store, log,
		engine.WithGracePeriod(cfg.ShutdownGracePeriod),
		engine.WithMaxInFlight(cfg.MaxInFlight),
		engine.WithRateLimit(cfg.RequestsPerSecond, cfg.Burst),
		engine.WithMetrics(m),
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init engine: %w", err)
	}

	log.InfoObj("engine ready", "engine_config", map[string]any{
		"follow_redirects":      cfg.FollowRedirects,
		"max_redirects":         cfg.MaxRedirects,
		"max_in_flight":         cfg.MaxInFlight,
		"requests_per_second":   cfg.RequestsPerSecond,
		"shutdown_grace_period": cfg.ShutdownGracePeriod.String(),
	})

	return &Runtime{log: log, engine: eng, metrics: m}, nil
}

// Engine returns the engine.
func (r *Runtime) Engine() *engine.Engine { return r.engine }

// Metrics returns the runtime's Prometheus collectors.
func (r *Runtime) Metrics() *metrics.PrometheusMetrics { return r.metrics }

// Close shuts the engine down and flushes the logger.
func (r *Runtime) Close(ctx context.Context) error {
	if r == nil || r.engine == nil {
		return nil
	}
	err := r.engine.Shutdown(ctx)
	if err != nil {
		r.log.ErrorObj("engine shutdown incomplete", "error", err)
	}
	if syncErr := r.log.Close(); syncErr != nil && err == nil {
		err = fmt.Errorf("flush logger: %w", syncErr)
	}
	return err
}
