package ports

import (
	"context"
	"io"

	"github.com/mkleiva/byggklima/internal/core/domain"
)

// DatasetRepository persists datasets, their rows and mapping state.
type DatasetRepository interface {
	Create(ctx context.Context, ds *domain.Dataset, rows []domain.LineItem) error
	GetByID(ctx context.Context, id string) (*domain.Dataset, error)
	ListRows(ctx context.Context, datasetID string) ([]domain.LineItem, error)
	ApplyMappingEdits(ctx context.Context, datasetID string, edits []domain.MappingEdit) error
	UpdateStatus(ctx context.Context, id string, status domain.DatasetStatus, errMessage string) error
	UpdateMappingCounts(ctx context.Context, id string, mappedRows int, totalGWP float64) error
	SaveSnapshots(ctx context.Context, datasetID string, snapshots []domain.ScenarioSnapshot) error
}

// VerificationRepository persists verification runs and their verdicts.
type VerificationRepository interface {
	CreateRun(ctx context.Context, result *domain.VerificationResult) error
	GetRun(ctx context.Context, id string) (*domain.VerificationResult, error)
}

// ObjectStorage archives raw uploads before parsing.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes dataset ingestion events.
type MessageQueue interface {
	PublishDatasetIngested(ctx context.Context, datasetID string) error
	SubscribeDatasetIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// RowClassifier suggests taxonomy coordinates for a free-text category.
// Implementations are pure: no state, no access to other rows.
type RowClassifier interface {
	Classify(category string) domain.Suggestion
}

// ExportReader parses a GWP export workbook into raw line items.
type ExportReader interface {
	ReadGWPExport(r io.Reader) ([]domain.LineItem, error)
}

// TakeoffReader parses a quantity-takeoff file (CSV or XLSX).
type TakeoffReader interface {
	ReadTakeoff(r io.Reader, filename string) ([]domain.TakeoffRecord, error)
}

// ReportWriter renders a computed verification result as a workbook.
type ReportWriter interface {
	WriteVerificationReport(w io.Writer, result *domain.VerificationResult) error
}
