package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dkotenko/doc-analysis-service/internal/config"
	"github.com/dkotenko/doc-analysis-service/internal/core/ports"
	"github.com/dkotenko/doc-analysis-service/internal/core/usecase"
	"github.com/dkotenko/doc-analysis-service/internal/infrastructure/extractor"
	"github.com/dkotenko/doc-analysis-service/internal/infrastructure/llm/openai"
	"github.com/dkotenko/doc-analysis-service/internal/infrastructure/queue/nats"
	"github.com/dkotenko/doc-analysis-service/internal/infrastructure/repository/postgres"
	"github.com/dkotenko/doc-analysis-service/internal/infrastructure/resilience"
	"github.com/dkotenko/doc-analysis-service/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Repo      ports.DocumentRepository
	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor

	closeFn func()
}

// initStep is one statically-declared component initializer. Components are
// wired in declaration order and a failure names the component that broke.
type initStep struct {
	name string
	init func(ctx context.Context, cfg config.Config, app *app) error
}

type app struct {
	db       *sql.DB
	repo     *postgres.DocumentRepository
	storage  *localfs.Storage
	queue    *nats.Queue
	analyzer *openai.Analyzer
	executor *resilience.Executor
}

var steps = []initStep{
	{name: "postgres", init: initPostgres},
	{name: "storage", init: initStorage},
	{name: "queue", init: initQueue},
	{name: "analyzer", init: initAnalyzer},
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	components := &app{executor: resilience.NewExecutor(resilience.DefaultConfig())}

	for _, step := range steps {
		if err := step.init(ctx, cfg, components); err != nil {
			components.close()
			return nil, fmt.Errorf("init %s: %w", step.name, err)
		}
	}

	ingestUC := usecase.NewIngestDocumentUseCase(components.repo, components.storage, components.queue, cfg.BacklogThreshold)
	processUC := usecase.NewProcessDocumentUseCase(components.repo, extractor.New(components.storage), components.analyzer).
		WithBatchLimit(cfg.BatchLimit)

	return &App{
		Config: cfg,

		Queue: components.queue,
		Repo:  components.repo,

		IngestUC:  ingestUC,
		ProcessUC: processUC,

		closeFn: components.close,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func initPostgres(ctx context.Context, cfg config.Config, app *app) error {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return err
	}
	app.db = db
	app.repo = postgres.NewDocumentRepository(db)
	return app.repo.EnsureSchema(ctx)
}

func initStorage(_ context.Context, cfg config.Config, app *app) error {
	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return err
	}
	app.storage = storage
	return nil
}

func initQueue(_ context.Context, cfg config.Config, app *app) error {
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: app.executor,
	})
	if err != nil {
		return err
	}
	app.queue = queue
	return nil
}

func initAnalyzer(_ context.Context, cfg config.Config, app *app) error {
	client := openai.NewWithOptions(cfg.ProviderBaseURL, cfg.ProviderAPIKey, cfg.ProviderModel, openai.Options{
		RequestsPerSecond:  cfg.ProviderRPS,
		Burst:              cfg.ProviderBurst,
		ResilienceExecutor: app.executor,
	})
	app.analyzer = openai.NewAnalyzer(client)
	return nil
}

func (c *app) close() {
	if c.queue != nil {
		c.queue.Close()
	}
	if c.db != nil {
		_ = c.db.Close()
	}
}
