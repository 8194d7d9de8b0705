// Package server assembles the forwarder from configuration: pipeline,
// journal, HTTP routes and middleware. Both the standalone binary and the
// Lambda entry point use it.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/epcforward/internal/adapters/audit"
	"github.com/okian/epcforward/internal/adapters/http/api"
	"github.com/okian/epcforward/internal/adapters/http/site"
	"github.com/okian/epcforward/internal/adapters/http/swagger"
	"github.com/okian/epcforward/internal/adapters/upstream"
	service "github.com/okian/epcforward/internal/app"
	"github.com/okian/epcforward/internal/config"
	"github.com/okian/epcforward/internal/domain/outcome"
	"github.com/okian/epcforward/internal/domain/submission"
	"github.com/okian/epcforward/pkg/logger"
	"github.com/okian/epcforward/pkg/metrics"
)

// App is a wired forwarder.
type App struct {
	Handler http.Handler
	Service *service.Service
}

// Close stops the pipeline and releases the journal.
func (a *App) Close() {
	a.Service.Stop()
}

type buildOptions struct {
	logger  logger.Logger
	journal audit.Store
	client  *http.Client
}

// Option applies a configuration option to Build.
type Option func(*buildOptions)

// WithLogger sets the logger; defaults to logger.Get().
func WithLogger(l logger.Logger) Option {
	return func(o *buildOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithJournal overrides the configured audit backend.
func WithJournal(j audit.Store) Option {
	return func(o *buildOptions) {
		if j != nil {
			o.journal = j
		}
	}
}

// WithHTTPClient overrides the client used for the upstream call.
func WithHTTPClient(c *http.Client) Option {
	return func(o *buildOptions) {
		if c != nil {
			o.client = c
		}
	}
}

// Build wires every component described by cfg and starts the pipeline.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := &buildOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.Get()
	}
	metrics.SetEnabled(cfg.MetricsEnabled)

	policy, err := Policy(cfg)
	if err != nil {
		return nil, err
	}
	refs, err := submission.NewReferenceGenerator(cfg.ReferenceMode)
	if err != nil {
		return nil, err
	}

	journal := o.journal
	if journal == nil {
		journal, err = audit.Open(ctx, cfg.AuditBackend, cfg.AuditDSN, cfg.AuditTable)
		if err != nil {
			return nil, fmt.Errorf("open audit journal: %w", err)
		}
	}

	svc := service.New(
		service.WithLogger(o.logger.Named("forwarder")),
		service.WithMapper(submission.NewMapper(submission.WithSource(cfg.Source))),
		service.WithDispatcher(upstream.NewClient(cfg.UpstreamURL,
			upstream.WithTimeout(time.Duration(cfg.UpstreamTimeoutMS)*time.Millisecond),
			upstream.WithHTTPClient(o.client),
		)),
		service.WithPolicy(policy),
		service.WithReferences(refs),
		service.WithJournal(journal),
	)
	if err := svc.Start(ctx); err != nil {
		_ = journal.Close()
		return nil, err
	}

	fallback, err := site.New(
		site.WithStaticDir(cfg.StaticDir),
		site.WithMode(cfg.DefaultResponse),
		site.WithSubmitPaths(cfg.SubmitPaths),
	)
	if err != nil {
		svc.Stop()
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(api.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(api.AccessLog(o.logger.Named("http")))
	r.Use(api.CORS(api.CORSConfig{
		AllowOrigins: cfg.CORSAllowOrigins,
		AllowMethods: cfg.CORSAllowMethods,
		AllowHeaders: cfg.CORSAllowHeaders,
	}))

	swagger.Register(r)
	api.NewServer(svc, cfg.SubmitPaths,
		api.WithFallback(fallback),
		api.WithLogger(o.logger.Named("api")),
	).Register(r)

	return &App{Handler: r, Service: svc}, nil
}

// Policy converts the configured status rules into an outcome.Policy.
func Policy(cfg *config.Config) (*outcome.Policy, error) {
	rules := make([]outcome.Rule, 0, len(cfg.StatusRules))
	for _, r := range cfg.StatusRules {
		rules = append(rules, outcome.Rule{
			From:   r.From,
			To:     r.To,
			Action: outcome.Action(r.Action),
			Note:   r.Note,
		})
	}
	policy, err := outcome.NewPolicy(rules, outcome.Action(cfg.UnexpectedStatusAction))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	return policy, nil
}
