package usecase

import (
	"context"
	"fmt"

	"github.com/mkleiva/byggklima/internal/core/domain"
	"github.com/mkleiva/byggklima/internal/core/ports"
)

// ProcessDatasetUseCase is the worker-side pipeline: recompute the
// aggregate tree from the stored rows and persist the per-scenario
// snapshots. Snapshots are a cached view; the rows stay authoritative.
type ProcessDatasetUseCase struct {
	repo ports.DatasetRepository
}

func NewProcessDatasetUseCase(repo ports.DatasetRepository) *ProcessDatasetUseCase {
	return &ProcessDatasetUseCase{repo: repo}
}

func (uc *ProcessDatasetUseCase) ProcessByID(ctx context.Context, datasetID string) error {
	if err := uc.repo.UpdateStatus(ctx, datasetID, domain.DatasetProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.process(ctx, datasetID); err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, datasetID, domain.DatasetFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.UpdateStatus(ctx, datasetID, domain.DatasetReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessDatasetUseCase) process(ctx context.Context, datasetID string) error {
	rows, err := uc.repo.ListRows(ctx, datasetID)
	if err != nil {
		return fmt.Errorf("list dataset rows: %w", err)
	}

	tree := BuildAggregateTree(rows)
	snapshots := ScenarioSnapshots(tree)
	if err := uc.repo.SaveSnapshots(ctx, datasetID, snapshots); err != nil {
		return fmt.Errorf("save scenario snapshots: %w", err)
	}

	stats := ComputeMappingStats(rows)
	totalGWP := 0.0
	for i := range rows {
		totalGWP += rows[i].TotalGWP
	}
	if err := uc.repo.UpdateMappingCounts(ctx, datasetID, stats.FullyMapped, totalGWP); err != nil {
		return fmt.Errorf("update mapping counts: %w", err)
	}
	return nil
}
