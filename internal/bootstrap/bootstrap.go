package bootstrap

import (
	"context"
	"fmt"

	"github.com/mkleiva/byggklima/internal/config"
	"github.com/mkleiva/byggklima/internal/core/ports"
	"github.com/mkleiva/byggklima/internal/core/usecase"
	"github.com/mkleiva/byggklima/internal/infrastructure/classifier"
	"github.com/mkleiva/byggklima/internal/infrastructure/excel"
	"github.com/mkleiva/byggklima/internal/infrastructure/queue/nats"
	"github.com/mkleiva/byggklima/internal/infrastructure/repository/postgres"
	"github.com/mkleiva/byggklima/internal/infrastructure/resilience"
	"github.com/mkleiva/byggklima/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue    ports.MessageQueue
	Datasets ports.DatasetRepository
	Runs     ports.VerificationRepository
	Takeoffs ports.TakeoffReader
	Reports  ports.ReportWriter

	IngestUC  ports.DatasetIngestor
	MappingUC ports.MappingEditor
	AnalystUC ports.DatasetAnalyst
	ProcessUC ports.DatasetProcessor
	VerifyUC  ports.TakeoffVerifier

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	datasets := postgres.NewDatasetRepository(db)
	if err := datasets.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure dataset schema: %w", err)
	}
	runs := postgres.NewVerificationRepository(db)
	if err := runs.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure verification schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	rules, err := classifier.New()
	if err != nil {
		return nil, fmt.Errorf("init classifier: %w", err)
	}

	reader := excel.NewReader()
	takeoffs := excel.NewTakeoffReader()
	reports := excel.NewReportWriter()

	ingestUC := usecase.NewIngestDatasetUseCase(datasets, storage, queue, reader, rules)
	mappingUC := usecase.NewMappingUseCase(datasets)
	analystUC := usecase.NewAnalystUseCase(datasets)
	processUC := usecase.NewProcessDatasetUseCase(datasets)
	verifyUC := usecase.NewVerifyTakeoffUseCase(runs)

	return &App{
		Config: cfg,

		Queue:    queue,
		Datasets: datasets,
		Runs:     runs,
		Takeoffs: takeoffs,
		Reports:  reports,

		IngestUC:  ingestUC,
		MappingUC: mappingUC,
		AnalystUC: analystUC,
		ProcessUC: processUC,
		VerifyUC:  verifyUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
