package domain

// Summary is the four-attribute roll-up carried by every node of the
// aggregate tree. Phase sums are weighted by row weighting; Count is a
// plain row tally.
type Summary struct {
	ConstructionA float64 `json:"construction_a"`
	OperationB    float64 `json:"operation_b"`
	EndOfLifeC    float64 `json:"end_of_life_c"`
	TotalGWP      float64 `json:"total_gwp"`
	Count         int     `json:"count"`
}

func (s *Summary) add(li *LineItem) {
	con, op, eol := li.WeightedPhases()
	s.ConstructionA += con
	s.OperationB += op
	s.EndOfLifeC += eol
	s.TotalGWP += li.TotalGWP
	s.Count++
}

// MMINode is a leaf of the aggregate tree.
type MMINode struct {
	Label string  `json:"label"`
	Total Summary `json:"total"`
}

type DisciplineNode struct {
	Total Summary              `json:"total"`
	MMI   map[MMICode]*MMINode `json:"mmi_categories"`
}

type ScenarioNode struct {
	Total       Summary                        `json:"total"`
	Disciplines map[Discipline]*DisciplineNode `json:"disciplines"`
}

// AggregateTree is the computed Scenario → Discipline → MMI view over a row
// set. It has no identity of its own: any row mutation invalidates it and
// callers rebuild from scratch.
type AggregateTree struct {
	Total     Summary                    `json:"total"`
	Scenarios map[Scenario]*ScenarioNode `json:"scenarios"`
}

func NewAggregateTree() *AggregateTree {
	return &AggregateTree{Scenarios: make(map[Scenario]*ScenarioNode)}
}

// Add folds one eligible row into the tree at every level it belongs to.
// Eligibility is the caller's responsibility.
func (t *AggregateTree) Add(li *LineItem) {
	t.Total.add(li)

	scenario, ok := t.Scenarios[li.Mapped.Scenario]
	if !ok {
		scenario = &ScenarioNode{Disciplines: make(map[Discipline]*DisciplineNode)}
		t.Scenarios[li.Mapped.Scenario] = scenario
	}
	scenario.Total.add(li)

	discipline, ok := scenario.Disciplines[li.Mapped.Discipline]
	if !ok {
		discipline = &DisciplineNode{MMI: make(map[MMICode]*MMINode)}
		scenario.Disciplines[li.Mapped.Discipline] = discipline
	}
	discipline.Total.add(li)

	mmi, ok := discipline.MMI[li.Mapped.MMICode]
	if !ok {
		mmi = &MMINode{Label: li.Mapped.MMICode.Label()}
		discipline.MMI[li.Mapped.MMICode] = mmi
	}
	mmi.Total.add(li)
}

// ScenarioTotal returns the summary for a scenario, zero-valued when the
// scenario is absent from the tree.
func (t *AggregateTree) ScenarioTotal(s Scenario) Summary {
	if node, ok := t.Scenarios[s]; ok {
		return node.Total
	}
	return Summary{}
}

// DisciplineTotal returns the summary for a discipline under a scenario,
// zero-valued when either level is absent.
func (t *AggregateTree) DisciplineTotal(s Scenario, d Discipline) Summary {
	node, ok := t.Scenarios[s]
	if !ok {
		return Summary{}
	}
	if disc, ok := node.Disciplines[d]; ok {
		return disc.Total
	}
	return Summary{}
}
