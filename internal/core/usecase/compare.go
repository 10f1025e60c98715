package usecase

import (
	"sort"

	"github.com/mkleiva/byggklima/internal/core/domain"
)

// CompareScenarios derives per-phase deltas and ratios between two
// scenarios' totals. A zero base value leaves that phase's ratio
// undefined; the delta is always reported.
func CompareScenarios(tree *domain.AggregateTree, base, target domain.Scenario) *domain.ScenarioComparison {
	baseTotal := tree.ScenarioTotal(base)
	targetTotal := tree.ScenarioTotal(target)

	comparison := &domain.ScenarioComparison{
		Base:   base,
		Target: target,
		Phases: make([]domain.PhaseDelta, 0, 4),
	}
	for _, phase := range domain.Phases() {
		value1 := phaseValue(baseTotal, phase)
		value2 := phaseValue(targetTotal, phase)
		comparison.Phases = append(comparison.Phases, newPhaseDelta(phase, value1, value2))
	}
	return comparison
}

func newPhaseDelta(phase string, value1, value2 float64) domain.PhaseDelta {
	delta := domain.PhaseDelta{
		Phase:  phase,
		Value1: value1,
		Value2: value2,
		Delta:  value2 - value1,
	}
	if value1 != 0 {
		delta.RatioPct = value2 / value1 * 100
		delta.RatioDefined = true
	}
	return delta
}

func phaseValue(s domain.Summary, phase string) float64 {
	switch phase {
	case domain.PhaseConstruction:
		return s.ConstructionA
	case domain.PhaseOperation:
		return s.OperationB
	case domain.PhaseEndOfLife:
		return s.EndOfLifeC
	default:
		return s.TotalGWP
	}
}

// CompareDisciplines compares total GWP per discipline across two
// scenarios over the union of disciplines present in either, in fixed
// discipline order. A discipline absent on one side contributes zero.
func CompareDisciplines(tree *domain.AggregateTree, base, target domain.Scenario) []domain.DisciplineDelta {
	present := make(map[domain.Discipline]bool)
	if node, ok := tree.Scenarios[base]; ok {
		for discipline := range node.Disciplines {
			present[discipline] = true
		}
	}
	if node, ok := tree.Scenarios[target]; ok {
		for discipline := range node.Disciplines {
			present[discipline] = true
		}
	}

	deltas := make([]domain.DisciplineDelta, 0, len(present))
	for _, discipline := range domain.Disciplines() {
		if !present[discipline] {
			continue
		}
		baseTotal := tree.DisciplineTotal(base, discipline).TotalGWP
		targetTotal := tree.DisciplineTotal(target, discipline).TotalGWP

		delta := domain.DisciplineDelta{
			Discipline:  discipline,
			BaseTotal:   baseTotal,
			TargetTotal: targetTotal,
			Delta:       targetTotal - baseTotal,
		}
		if baseTotal != 0 {
			delta.RatioPct = targetTotal / baseTotal * 100
			delta.RatioDefined = true
		}
		deltas = append(deltas, delta)
	}
	return deltas
}

// DisciplineContributions returns each discipline's share of a scenario's
// total GWP, sorted by contribution descending. Shares are zero when the
// scenario total is not positive.
func DisciplineContributions(tree *domain.AggregateTree, scenario domain.Scenario) []domain.DisciplineContribution {
	node, ok := tree.Scenarios[scenario]
	if !ok {
		return nil
	}
	scenarioTotal := node.Total.TotalGWP

	contributions := make([]domain.DisciplineContribution, 0, len(node.Disciplines))
	for discipline, disciplineNode := range node.Disciplines {
		contribution := domain.DisciplineContribution{
			Discipline:    discipline,
			TotalGWP:      disciplineNode.Total.TotalGWP,
			ConstructionA: disciplineNode.Total.ConstructionA,
			OperationB:    disciplineNode.Total.OperationB,
			EndOfLifeC:    disciplineNode.Total.EndOfLifeC,
			Count:         disciplineNode.Total.Count,
		}
		if scenarioTotal > 0 {
			contribution.SharePct = disciplineNode.Total.TotalGWP / scenarioTotal * 100
		}
		contributions = append(contributions, contribution)
	}
	sort.Slice(contributions, func(i, j int) bool {
		if contributions[i].TotalGWP != contributions[j].TotalGWP {
			return contributions[i].TotalGWP > contributions[j].TotalGWP
		}
		return contributions[i].Discipline < contributions[j].Discipline
	})
	return contributions
}
