package domain

// Lifecycle phase keys used by comparison outputs.
const (
	PhaseConstruction = "construction_a"
	PhaseOperation    = "operation_b"
	PhaseEndOfLife    = "end_of_life_c"
	PhaseTotal        = "total_gwp"
)

// Phases returns the comparison keys in fixed report order.
func Phases() []string {
	return []string{PhaseConstruction, PhaseOperation, PhaseEndOfLife, PhaseTotal}
}

// PhaseDelta compares one phase between two scenarios. RatioPct is
// value2/value1 expressed as a percentage where 100 means parity; it is
// only meaningful when RatioDefined is true (a zero base leaves the ratio
// undefined rather than infinite).
type PhaseDelta struct {
	Phase        string  `json:"phase"`
	Value1       float64 `json:"value_1"`
	Value2       float64 `json:"value_2"`
	Delta        float64 `json:"delta"`
	RatioPct     float64 `json:"ratio_pct"`
	RatioDefined bool    `json:"ratio_defined"`
}

// Improvement reports whether the phase moved below parity. Undefined
// ratios are never an improvement.
func (d PhaseDelta) Improvement() bool {
	return d.RatioDefined && d.RatioPct < 100
}

// ScenarioComparison is the pairwise comparator output.
type ScenarioComparison struct {
	Base   Scenario     `json:"base_scenario"`
	Target Scenario     `json:"compare_scenario"`
	Phases []PhaseDelta `json:"phases"`
}

// DisciplineDelta compares one discipline's total GWP across two scenarios.
type DisciplineDelta struct {
	Discipline   Discipline `json:"discipline"`
	BaseTotal    float64    `json:"base_total"`
	TargetTotal  float64    `json:"target_total"`
	Delta        float64    `json:"delta"`
	RatioPct     float64    `json:"ratio_pct"`
	RatioDefined bool       `json:"ratio_defined"`
}

// DisciplineContribution is one discipline's share of a scenario total.
type DisciplineContribution struct {
	Discipline    Discipline `json:"discipline"`
	TotalGWP      float64    `json:"total_gwp"`
	SharePct      float64    `json:"share_pct"`
	ConstructionA float64    `json:"construction_a"`
	OperationB    float64    `json:"operation_b"`
	EndOfLifeC    float64    `json:"end_of_life_c"`
	Count         int        `json:"count"`
}
