package usecase

import (
	"context"
	"fmt"

	"github.com/mkleiva/byggklima/internal/core/domain"
	"github.com/mkleiva/byggklima/internal/core/ports"
)

// ApplyMappingEdits applies an edit batch to the in-memory row set, keyed
// by row_id. Only fields carried by an edit change; suggested fields are
// untouchable by construction. Applying the same batch twice yields the
// same state. Edits referencing unknown row ids are ignored.
func ApplyMappingEdits(rows []domain.LineItem, edits []domain.MappingEdit) {
	index := make(map[int]*domain.LineItem, len(rows))
	for i := range rows {
		index[rows[i].RowID] = &rows[i]
	}

	for _, edit := range edits {
		row, ok := index[edit.RowID]
		if !ok {
			continue
		}
		if edit.Scenario != nil {
			row.Mapped.Scenario = *edit.Scenario
		}
		if edit.Discipline != nil {
			row.Mapped.Discipline = *edit.Discipline
		}
		if edit.MMICode != nil {
			row.Mapped.MMICode = *edit.MMICode
		}
		if edit.Excluded != nil {
			row.Excluded = *edit.Excluded
		}
	}
}

// AcceptSuggestionEdits builds the edit batch that copies suggestions into
// mapped fields for the selected rows. With onlyUnmapped set, rows that
// already carry a complete mapping are skipped. This is the only path by
// which a suggestion becomes authoritative, and it is always explicit.
func AcceptSuggestionEdits(rows []domain.LineItem, rowIDs []int, onlyUnmapped bool) []domain.MappingEdit {
	selected := make(map[int]bool, len(rowIDs))
	for _, id := range rowIDs {
		selected[id] = true
	}

	edits := make([]domain.MappingEdit, 0, len(rowIDs))
	for i := range rows {
		row := &rows[i]
		if !selected[row.RowID] {
			continue
		}
		if onlyUnmapped && row.Mapped.Complete() {
			continue
		}
		scenario := row.Suggested.Scenario
		discipline := row.Suggested.Discipline
		code := row.Suggested.MMICode
		edits = append(edits, domain.MappingEdit{
			RowID:      row.RowID,
			Scenario:   &scenario,
			Discipline: &discipline,
			MMICode:    &code,
		})
	}
	return edits
}

// ExcludeRowEdits builds the edit batch that excludes the selected rows.
// Rows are only ever flagged, never deleted, so they stay auditable and
// re-includable.
func ExcludeRowEdits(rowIDs []int) []domain.MappingEdit {
	excluded := true
	edits := make([]domain.MappingEdit, 0, len(rowIDs))
	for _, id := range rowIDs {
		edits = append(edits, domain.MappingEdit{RowID: id, Excluded: &excluded})
	}
	return edits
}

// ComputeMappingStats summarises mapping completeness over the row set.
func ComputeMappingStats(rows []domain.LineItem) domain.MappingStats {
	stats := domain.MappingStats{TotalRows: len(rows)}
	for i := range rows {
		row := &rows[i]
		if row.Excluded {
			stats.ExcludedRows++
			continue
		}
		stats.ActiveRows++
		if row.Mapped.Complete() {
			stats.FullyMapped++
		} else {
			stats.PartiallyMapped++
		}
	}
	if stats.ActiveRows > 0 {
		stats.CompletenessPct = float64(stats.FullyMapped) / float64(stats.ActiveRows) * 100
	}
	return stats
}

// MappingUseCase persists mapping decisions for a stored dataset.
type MappingUseCase struct {
	repo ports.DatasetRepository
}

func NewMappingUseCase(repo ports.DatasetRepository) *MappingUseCase {
	return &MappingUseCase{repo: repo}
}

func (uc *MappingUseCase) ApplyEdits(ctx context.Context, datasetID string, edits []domain.MappingEdit) (domain.MappingStats, error) {
	for _, edit := range edits {
		if err := validateEdit(edit); err != nil {
			return domain.MappingStats{}, err
		}
	}
	if err := uc.repo.ApplyMappingEdits(ctx, datasetID, edits); err != nil {
		return domain.MappingStats{}, fmt.Errorf("apply mapping edits: %w", err)
	}
	return uc.refreshStats(ctx, datasetID)
}

func (uc *MappingUseCase) AcceptSuggestions(ctx context.Context, datasetID string, rowIDs []int, onlyUnmapped bool) (domain.MappingStats, error) {
	if len(rowIDs) == 0 {
		return domain.MappingStats{}, domain.WrapError(domain.ErrInvalidInput, "accept suggestions", fmt.Errorf("row_ids must name the target rows explicitly"))
	}
	rows, err := uc.repo.ListRows(ctx, datasetID)
	if err != nil {
		return domain.MappingStats{}, fmt.Errorf("list rows: %w", err)
	}
	edits := AcceptSuggestionEdits(rows, rowIDs, onlyUnmapped)
	if len(edits) == 0 {
		return ComputeMappingStats(rows), nil
	}
	if err := uc.repo.ApplyMappingEdits(ctx, datasetID, edits); err != nil {
		return domain.MappingStats{}, fmt.Errorf("apply suggestion edits: %w", err)
	}
	return uc.refreshStats(ctx, datasetID)
}

func (uc *MappingUseCase) ExcludeRows(ctx context.Context, datasetID string, rowIDs []int) (domain.MappingStats, error) {
	if len(rowIDs) == 0 {
		return domain.MappingStats{}, domain.WrapError(domain.ErrInvalidInput, "exclude rows", fmt.Errorf("row_ids must name the target rows explicitly"))
	}
	if err := uc.repo.ApplyMappingEdits(ctx, datasetID, ExcludeRowEdits(rowIDs)); err != nil {
		return domain.MappingStats{}, fmt.Errorf("apply exclusion edits: %w", err)
	}
	return uc.refreshStats(ctx, datasetID)
}

func (uc *MappingUseCase) refreshStats(ctx context.Context, datasetID string) (domain.MappingStats, error) {
	rows, err := uc.repo.ListRows(ctx, datasetID)
	if err != nil {
		return domain.MappingStats{}, fmt.Errorf("list rows after edit: %w", err)
	}
	stats := ComputeMappingStats(rows)

	totalGWP := 0.0
	for i := range rows {
		totalGWP += rows[i].TotalGWP
	}
	if err := uc.repo.UpdateMappingCounts(ctx, datasetID, stats.FullyMapped, totalGWP); err != nil {
		return domain.MappingStats{}, fmt.Errorf("update mapping counts: %w", err)
	}
	return stats, nil
}

// validateEdit rejects edits that would push a row outside the closed
// taxonomy. Clearing a field (empty value) is always allowed.
func validateEdit(edit domain.MappingEdit) error {
	if edit.Scenario != nil && *edit.Scenario != "" && !edit.Scenario.Valid() {
		return domain.WrapError(domain.ErrInvalidInput, "validate edit", fmt.Errorf("row %d: unknown scenario %q", edit.RowID, *edit.Scenario))
	}
	if edit.Discipline != nil && *edit.Discipline != "" && !edit.Discipline.Valid() {
		return domain.WrapError(domain.ErrInvalidInput, "validate edit", fmt.Errorf("row %d: unknown discipline %q", edit.RowID, *edit.Discipline))
	}
	if edit.MMICode != nil && *edit.MMICode != "" && !edit.MMICode.Valid() {
		return domain.WrapError(domain.ErrInvalidInput, "validate edit", fmt.Errorf("row %d: unknown mmi code %q", edit.RowID, *edit.MMICode))
	}
	return nil
}
