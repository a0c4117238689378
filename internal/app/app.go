// Package app assembles a running gateway from configuration: classifier,
// policy store and watcher, audit sinks, telemetry and the HTTP server.
// Both binaries build on it so serving behaviour cannot drift between them.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/arbiterai/arbiter-oss/pkg/audit"
	"github.com/arbiterai/arbiter-oss/pkg/config"
	"github.com/arbiterai/arbiter-oss/pkg/gateway"
	"github.com/arbiterai/arbiter-oss/pkg/intent"
	"github.com/arbiterai/arbiter-oss/pkg/intent/embed"
	"github.com/arbiterai/arbiter-oss/pkg/policy"
	"github.com/arbiterai/arbiter-oss/pkg/server"
	"github.com/arbiterai/arbiter-oss/pkg/telemetry"
)

// warmupPrompt primes the embedding backend so the first caller does not
// pay the model load latency.
const warmupPrompt = "warm up the classifier"

// App is a fully wired gateway instance.
type App struct {
	Pipeline *gateway.Pipeline
	Metrics  *telemetry.Metrics

	cfg          *config.Config
	logger       zerolog.Logger
	httpServer   *http.Server
	watcher      *policy.Watcher
	otelShutdown func(context.Context) error
	closeSinks   []func() error
}

// New builds an App from configuration. The classifier is constructed and
// warmed eagerly; an unreachable embedding backend fails startup rather
// than the first request.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	metrics := telemetry.NewMetrics()

	otelShutdown, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: "arbiter-gateway",
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, Metrics: metrics, otelShutdown: otelShutdown}

	classifier, err := a.buildClassifier(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	store, err := a.buildPolicyStore()
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	sink, err := a.buildAuditSink()
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	pipeline, err := gateway.NewPipeline(classifier, store, a.buildUpstream(), sink, metrics, logger)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Pipeline = pipeline

	srv := server.New(pipeline, metrics.Handler(), logger)
	a.httpServer = srv.HTTPServer(cfg.Server.Address)

	return a, nil
}

func (a *App) buildClassifier(ctx context.Context) (*intent.Classifier, error) {
	embedder := embed.NewClient(embed.Config{
		BaseURL: a.cfg.Embedding.BaseURL,
		Model:   a.cfg.Embedding.Model,
		Timeout: a.cfg.Embedding.Timeout,
	})

	var opts []intent.Option
	if a.cfg.Intent.Threshold > 0 {
		opts = append(opts, intent.WithThreshold(a.cfg.Intent.Threshold))
	}

	classifier, err := intent.NewClassifier(ctx, embedder, intent.DefaultPrototypes(), opts...)
	if err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}

	if _, err := classifier.Predict(ctx, warmupPrompt); err != nil {
		a.logger.Warn().Err(err).Msg("classifier warmup failed")
	}
	return classifier, nil
}

func (a *App) buildPolicyStore() (*policy.Store, error) {
	snap, err := policy.LoadFile(a.cfg.Policy.Path)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	store := policy.NewStore(snap)
	a.logger.Info().Str("path", a.cfg.Policy.Path).Str("policy_version", snap.Version()).Msg("policy loaded")

	if a.cfg.Policy.Watch {
		watcher, err := policy.NewWatcher(a.cfg.Policy.Path, store, a.logger)
		if err != nil {
			return nil, fmt.Errorf("watch policy: %w", err)
		}
		watcher.OnReload(a.Metrics.RecordPolicyReload)
		a.watcher = watcher
	}
	return store, nil
}

func (a *App) buildAuditSink() (audit.Sink, error) {
	var backends []audit.Sink
	if a.cfg.Audit.Path != "" {
		fileSink, err := audit.NewFileSink(a.cfg.Audit.Path)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		backends = append(backends, fileSink)
		a.closeSinks = append(a.closeSinks, fileSink.Close)
	}
	if a.cfg.Audit.SQLitePath != "" {
		sqliteSink, err := audit.NewSQLiteSink(a.cfg.Audit.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open audit database: %w", err)
		}
		backends = append(backends, sqliteSink)
		a.closeSinks = append(a.closeSinks, sqliteSink.Close)
	}
	if len(backends) == 0 {
		a.logger.Warn().Msg("no audit sink configured, decisions will not be persisted")
		return audit.NopSink{}, nil
	}
	return audit.NewMultiSink(a.logger, a.Metrics.RecordAuditFailure, backends...), nil
}

func (a *App) buildUpstream() gateway.Upstream {
	if a.cfg.Upstream.Mode == config.UpstreamHTTP {
		return gateway.NewHTTPUpstream(gateway.HTTPUpstreamConfig{
			BaseURL: a.cfg.Upstream.BaseURL,
			Model:   a.cfg.Upstream.Model,
			Timeout: a.cfg.Upstream.Timeout,
		})
	}
	return gateway.EchoUpstream{}
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully and releases every resource the App owns.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", a.cfg.Server.Address).Msg("server listening")
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		a.Close(context.Background())
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("server shutdown error")
	}
	a.Close(shutdownCtx)
	return nil
}

// Close releases watcher, sinks and telemetry. Safe after Run returns.
func (a *App) Close(ctx context.Context) {
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			a.logger.Error().Err(err).Msg("policy watcher close error")
		}
		a.watcher = nil
	}
	for _, closeFn := range a.closeSinks {
		if err := closeFn(); err != nil {
			a.logger.Error().Err(err).Msg("audit sink close error")
		}
	}
	a.closeSinks = nil
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.logger.Error().Err(err).Msg("telemetry shutdown error")
		}
		a.otelShutdown = nil
	}
}
