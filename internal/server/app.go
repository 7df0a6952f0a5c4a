package server

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/arixa/arixa/internal/agent"
	"github.com/arixa/arixa/internal/audit"
	"github.com/arixa/arixa/internal/catalog"
	"github.com/arixa/arixa/internal/config"
	"github.com/arixa/arixa/internal/executor"
	"github.com/arixa/arixa/internal/handler"
	"github.com/arixa/arixa/internal/llm"
	"github.com/arixa/arixa/internal/llm/provider"
	"github.com/arixa/arixa/internal/protocol"
	"github.com/arixa/arixa/internal/security"
	"github.com/arixa/arixa/internal/store"
	"github.com/arixa/arixa/internal/tools"
)

// App holds the wired components shared by the HTTP server, the line stream
// and the command line.
type App struct {
	Config     *config.Config
	Catalog    *catalog.Catalog
	Executor   *executor.Executor
	Dispatcher *protocol.Dispatcher
	Backend    llm.Backend
	Store      store.Store
	Manager    *agent.Manager

	recorder *audit.Recorder
	checkers map[string]handler.HealthChecker
	closers  []func() error
}

// NewApp builds every component from cfg. Optional dependencies (Postgres,
// Elasticsearch, BigQuery) that fail to connect are disabled with a warning.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, checkers: make(map[string]handler.HealthChecker)}

	// ─── Tools ────────────────────────────────────────────────────────────────
	a.Executor = executor.New(executor.Options{
		Programs:   cfg.ProgramPaths(),
		WorkingDir: cfg.DefaultProjectPath,
		TempDir:    cfg.TempDir,
	})
	a.Catalog = catalog.New()
	if err := tools.Register(a.Catalog, tools.Deps{Exec: a.Executor, Filter: security.NewCommandFilter()}); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}

	// ─── Audit ────────────────────────────────────────────────────────────────
	sinks := []audit.Sink{audit.NewLogSink(security.NewAuditLogger(cfg.EnableAuditLogging))}
	if cfg.ElasticsearchEnabled {
		es, err := audit.NewElasticsearch(audit.ElasticsearchConfig{
			Addresses:   []string{fmt.Sprintf("%s://%s:%d", cfg.ElasticsearchScheme, cfg.ElasticsearchHost, cfg.ElasticsearchPort)},
			Username:    cfg.ElasticsearchUser,
			Password:    cfg.ElasticsearchPassword,
			MaxRetries:  cfg.ElasticsearchMaxRetries,
			VerifyCerts: cfg.ElasticsearchVerifyCerts,
			Index:       cfg.ElasticsearchAuditIndex,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Elasticsearch audit sink unavailable")
		} else {
			sinks = append(sinks, es)
			a.checkers["elasticsearch"] = es
		}
	}
	if cfg.GCPProjectID != "" {
		bq, err := audit.NewBigQuery(ctx, audit.BigQueryConfig{
			ProjectID:       cfg.GCPProjectID,
			CredentialsFile: cfg.GoogleApplicationCredentials,
			Dataset:         cfg.BigQueryDataset,
			Table:           cfg.BigQueryTable,
		})
		if err != nil {
			log.Warn().Err(err).Msg("BigQuery audit sink unavailable")
		} else if err := bq.EnsureTable(ctx); err != nil {
			log.Warn().Err(err).Msg("BigQuery audit table unavailable")
			bq.Close()
		} else {
			sinks = append(sinks, bq)
			a.closers = append(a.closers, bq.Close)
		}
	}
	a.recorder = audit.NewRecorder(security.NewDataMasker(cfg.SensitiveKeys), sinks...)
	a.Dispatcher = protocol.NewDispatcher(a.Catalog, protocol.WithObserver(a.recorder.Observe))

	// ─── Transcripts ──────────────────────────────────────────────────────────
	a.Store = store.NewMemory()
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Warn().Err(err).Msg("Postgres transcript store unavailable, keeping transcripts in memory")
		} else {
			a.Store = pg
			a.checkers["postgres"] = pg
			a.closers = append(a.closers, func() error { pg.Close(); return nil })
		}
	}

	// ─── AI backend ───────────────────────────────────────────────────────────
	a.Backend = provider.New(ctx, cfg.Provider, cfg)
	if c, ok := a.Backend.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	a.Manager = agent.NewManager(a.Backend, a.Catalog, a.Dispatcher, a.Executor.WorkingDir(), a.Store,
		agent.WithMaxIterations(cfg.MaxIterations),
		agent.WithPromptInfo(agent.PromptInfo{
			Programs:    a.Executor.Programs(),
			ProjectPath: cfg.DefaultProjectPath,
		}),
	)

	log.Info().
		Str("provider", a.Backend.Name()).
		Int("tools", a.Catalog.Len()).
		Int("audit_sinks", len(sinks)).
		Bool("postgres", cfg.DatabaseURL != "" && a.checkers["postgres"] != nil).
		Bool("auth_enabled", cfg.EnableAuth && len(cfg.APIKeys) > 0).
		Msg("service configuration")

	if cfg.EnableAuth && len(cfg.APIKeys) == 0 {
		log.Warn().Msg("auth enabled but no API keys configured - all API requests will be rejected")
	}
	return a, nil
}

// Close flushes the audit queue and releases clients.
func (a *App) Close() {
	a.recorder.Close()
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("error closing client")
		}
	}
}
