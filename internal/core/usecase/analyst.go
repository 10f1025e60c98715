package usecase

import (
	"context"
	"fmt"

	"github.com/mkleiva/byggklima/internal/core/domain"
	"github.com/mkleiva/byggklima/internal/core/ports"
)

// AnalystUseCase serves read-only computed views over a stored dataset.
// Every call takes a fresh snapshot of the rows and recomputes from
// scratch; nothing here caches or mutates.
type AnalystUseCase struct {
	repo ports.DatasetRepository
}

func NewAnalystUseCase(repo ports.DatasetRepository) *AnalystUseCase {
	return &AnalystUseCase{repo: repo}
}

func (uc *AnalystUseCase) Aggregate(ctx context.Context, datasetID string) (*domain.AggregateTree, error) {
	rows, err := uc.repo.ListRows(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	return BuildAggregateTree(rows), nil
}

func (uc *AnalystUseCase) Compare(
	ctx context.Context,
	datasetID string,
	base, target domain.Scenario,
) (*domain.ScenarioComparison, []domain.DisciplineDelta, error) {
	if !base.Valid() || !target.Valid() {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "compare scenarios",
			fmt.Errorf("unknown scenario pair %q/%q", base, target))
	}
	rows, err := uc.repo.ListRows(ctx, datasetID)
	if err != nil {
		return nil, nil, fmt.Errorf("list rows: %w", err)
	}
	tree := BuildAggregateTree(rows)
	return CompareScenarios(tree, base, target), CompareDisciplines(tree, base, target), nil
}

func (uc *AnalystUseCase) Contributions(
	ctx context.Context,
	datasetID string,
	scenario domain.Scenario,
) ([]domain.DisciplineContribution, error) {
	if !scenario.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "discipline contributions",
			fmt.Errorf("unknown scenario %q", scenario))
	}
	rows, err := uc.repo.ListRows(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	return DisciplineContributions(BuildAggregateTree(rows), scenario), nil
}

func (uc *AnalystUseCase) Diagnostics(ctx context.Context, datasetID string) (*domain.MMIDiagnostics, error) {
	rows, err := uc.repo.ListRows(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	return DiagnoseMMI(rows), nil
}
