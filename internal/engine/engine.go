// ABOUTME: OpsDeck runtime that wires configuration, AI collaborators, views, sessions, and renderers.
// ABOUTME: Owns the lifecycle of every long-lived component shared across sessions.

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jfeddern/OpsDeck/internal/cache"
	"github.com/jfeddern/OpsDeck/internal/config"
	"github.com/jfeddern/OpsDeck/internal/metrics"
	"github.com/jfeddern/OpsDeck/internal/providers"
	"github.com/jfeddern/OpsDeck/internal/rbac"
	"github.com/jfeddern/OpsDeck/internal/server"
	"github.com/jfeddern/OpsDeck/internal/shell"
	"github.com/jfeddern/OpsDeck/internal/telemetry"
	"github.com/jfeddern/OpsDeck/internal/views"
	"github.com/sirupsen/logrus"
)

// Version is stamped at build time
var Version = "dev"

// reportInterval is how often Start logs session and cache statistics
const reportInterval = 5 * time.Minute

// Engine orchestrates the components of one OpsDeck process
type Engine struct {
	config *config.Config
	logger *logrus.Logger

	registry   *rbac.Registry
	controller *rbac.Controller
	catalog    *views.Catalog
	metrics    *metrics.MetricsHandler
	store      *shell.Store
	scanCache  *cache.ScanCache
	tracing    *telemetry.Provider

	scanner   providers.Scanner
	assistant providers.Assistant
}

// NewEngine validates cfg and builds every shared component. Configuration
// problems are returned; a registry view without a renderer is reported as a
// configuration defect.
func NewEngine(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Engine, error) {
	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(registry); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	defaultRole, err := rbac.ParseRole(cfg.DefaultRole)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"provider":     cfg.Provider,
		"mock":         cfg.MockMode,
		"default_role": defaultRole,
		"default_view": cfg.DefaultView,
		"views":        len(registry.Descriptors()),
	}).Info("Initializing OpsDeck")

	tracing, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "opsdeck",
		ServiceVersion: Version,
		Endpoint:       cfg.OTLPEndpoint,
		Headers:        cfg.OTLPHeaders,
	}, logger)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:     cfg,
		logger:     logger,
		registry:   registry,
		controller: rbac.NewController(registry),
		tracing:    tracing,
	}

	if err := e.initCollaborators(ctx); err != nil {
		e.Close(ctx)
		return nil, err
	}

	e.metrics = metrics.NewMetricsHandler(nil, logger)
	e.catalog = views.DefaultCatalog(views.Deps{
		Scanner:          e.scanner,
		Assistant:        e.assistant,
		Sampler:          views.SystemSampler{},
		Recorder:         e.metrics,
		Logger:           logger,
		AutosaveInterval: cfg.AutosaveInterval,
		ScanTimeout:      cfg.ScanTimeout,
		AssistTimeout:    cfg.AssistTimeout,
	})
	if err := e.catalog.Check(registry); err != nil {
		e.Close(ctx)
		return nil, err
	}

	options := shell.Options{
		DefaultRole: defaultRole,
		DefaultView: rbac.ViewID(cfg.DefaultView),
		Recorder:    e.metrics,
	}
	e.store = shell.NewStore(func() *shell.Shell {
		return shell.New(e.controller, e.catalog, options, logger)
	}, cfg.SessionIdleTTL, nil, logger)
	e.metrics.SetSessions(e.store)

	return e, nil
}

func (e *Engine) initCollaborators(ctx context.Context) error {
	providerConfig := e.config.ProviderConfig()

	scanner, assistant, err := providers.CreateCollaborators(ctx, providerConfig, e.logger)
	if err != nil {
		return fmt.Errorf("failed to create AI collaborators: %w", err)
	}

	if e.config.ScanCacheTTL > 0 {
		e.scanCache = cache.NewScanCache(e.config.ScanCacheTTL, e.logger)
		scanner = providers.NewCachingScanner(scanner, e.scanCache, e.logger)
	}

	e.scanner = telemetry.TraceScanner(scanner, e.tracing.Tracer())
	e.assistant = telemetry.TraceAssistant(assistant, e.tracing.Tracer())
	return nil
}

// Controller returns the access controller
func (e *Engine) Controller() *rbac.Controller {
	return e.controller
}

// Sessions returns the session store
func (e *Engine) Sessions() *shell.Store {
	return e.store
}

// Server builds the HTTP renderer over the session store
func (e *Engine) Server() *server.Server {
	return server.NewServer(e.store, e.registry, e.metrics, e.logger)
}

// Start serves HTTP until ctx is cancelled, periodically reporting runtime statistics
func (e *Engine) Start(ctx context.Context) error {
	go e.report(ctx)
	return e.Server().ListenAndServe(ctx, e.config.Port)
}

func (e *Engine) report(ctx context.Context) {
	logger := e.logger.WithField("component", "engine")
	ticker := time.NewTicker(reportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fields := logrus.Fields{"sessions": e.store.Len()}
			if e.scanCache != nil {
				total, expired := e.scanCache.Stats()
				fields["cached_scans"] = total
				fields["expired_scans"] = expired
			}
			logger.WithFields(fields).Info("Runtime statistics")
		}
	}
}

// Close ends every session and flushes telemetry
func (e *Engine) Close(ctx context.Context) error {
	if e.store != nil {
		e.store.Close()
	}
	if e.scanCache != nil {
		e.scanCache.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := e.tracing.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to flush traces: %w", err)
	}
	return nil
}
