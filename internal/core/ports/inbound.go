package ports

import (
	"context"
	"io"

	"github.com/mkleiva/byggklima/internal/core/domain"
)

// DatasetIngestor is the inbound contract for GWP export uploads.
type DatasetIngestor interface {
	Upload(ctx context.Context, name, description, filename string, body io.Reader) (*domain.Dataset, error)
}

// DatasetProcessor is the inbound contract for asynchronous aggregation of
// an uploaded dataset.
type DatasetProcessor interface {
	ProcessByID(ctx context.Context, datasetID string) error
}

// MappingEditor applies explicit user decisions to a dataset's rows.
type MappingEditor interface {
	ApplyEdits(ctx context.Context, datasetID string, edits []domain.MappingEdit) (domain.MappingStats, error)
	AcceptSuggestions(ctx context.Context, datasetID string, rowIDs []int, onlyUnmapped bool) (domain.MappingStats, error)
	ExcludeRows(ctx context.Context, datasetID string, rowIDs []int) (domain.MappingStats, error)
}

// DatasetAnalyst computes read-only views over a dataset's current rows.
type DatasetAnalyst interface {
	Aggregate(ctx context.Context, datasetID string) (*domain.AggregateTree, error)
	Compare(ctx context.Context, datasetID string, base, target domain.Scenario) (*domain.ScenarioComparison, []domain.DisciplineDelta, error)
	Contributions(ctx context.Context, datasetID string, scenario domain.Scenario) ([]domain.DisciplineContribution, error)
	Diagnostics(ctx context.Context, datasetID string) (*domain.MMIDiagnostics, error)
}

// TakeoffVerifier runs the scenario A vs C quantity reconciliation.
type TakeoffVerifier interface {
	Verify(ctx context.Context, records []domain.TakeoffRecord, tolerancePct float64) (*domain.VerificationResult, error)
}
