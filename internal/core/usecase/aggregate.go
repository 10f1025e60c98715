package usecase

import (
	"sort"

	"github.com/mkleiva/byggklima/internal/core/domain"
)

// BuildAggregateTree folds the eligible rows into the three-level
// Scenario → Discipline → MMI tree. A row contributes only when it is not
// excluded, not a summary row, and fully mapped; partially mapped rows
// appear nowhere in the tree.
//
// Rows are folded in ascending row_id order so that repeated builds over
// the same row set produce value-identical trees regardless of input
// ordering. Sums are plain float64 addition; rounding belongs to
// presentation.
func BuildAggregateTree(rows []domain.LineItem) *domain.AggregateTree {
	ordered := make([]*domain.LineItem, 0, len(rows))
	for i := range rows {
		if rows[i].Contributes() {
			ordered = append(ordered, &rows[i])
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].RowID < ordered[j].RowID
	})

	tree := domain.NewAggregateTree()
	for _, row := range ordered {
		tree.Add(row)
	}
	return tree
}

// UnmappedActiveCount reports how many non-excluded, non-summary rows are
// still missing a complete mapping. Surfaced so callers can show "rows not
// yet mapped" instead of silently shrinking totals.
func UnmappedActiveCount(rows []domain.LineItem) int {
	count := 0
	for i := range rows {
		row := &rows[i]
		if !row.Excluded && !row.IsSummary && !row.Mapped.Complete() {
			count++
		}
	}
	return count
}

// ScenarioSnapshots flattens a tree into per-scenario roll-ups in fixed
// scenario order, for persistence by the worker.
func ScenarioSnapshots(tree *domain.AggregateTree) []domain.ScenarioSnapshot {
	snapshots := make([]domain.ScenarioSnapshot, 0, len(tree.Scenarios))
	for _, scenario := range domain.Scenarios() {
		node, ok := tree.Scenarios[scenario]
		if !ok {
			continue
		}
		snapshots = append(snapshots, domain.ScenarioSnapshot{
			Scenario: scenario,
			Summary:  node.Total,
		})
	}
	return snapshots
}
