package domain

// Suggestion is the classifier's advisory output for one row. It is
// recorded verbatim and never mutated after the row is loaded.
type Suggestion struct {
	Scenario   Scenario   `json:"scenario,omitempty"`
	Discipline Discipline `json:"discipline,omitempty"`
	MMICode    MMICode    `json:"mmi_code,omitempty"`
	MMILabel   string     `json:"mmi_label,omitempty"`
	IsSummary  bool       `json:"is_summary"`
}

// Mapping is the authoritative classification used for aggregation. It is
// seeded from the suggestion exactly once at load time and from then on
// changes only through explicit caller edits.
type Mapping struct {
	Scenario   Scenario   `json:"scenario,omitempty"`
	Discipline Discipline `json:"discipline,omitempty"`
	MMICode    MMICode    `json:"mmi_code,omitempty"`
}

// Complete reports whether all three coordinates are set.
func (m Mapping) Complete() bool {
	return m.Scenario != "" && m.Discipline != "" && m.MMICode != ""
}

// LineItem is one row of a GWP export. Phase values are kg CO2e.
type LineItem struct {
	RowID    int    `json:"row_id"`
	Category string `json:"category"`

	ConstructionA float64 `json:"construction_a"`
	OperationB    float64 `json:"operation_b"`
	EndOfLifeC    float64 `json:"end_of_life_c"`

	// Weighting is a percentage in [0,100]; 100 means the row counts fully.
	Weighting float64 `json:"weighting"`

	// TotalGWPBase is the unweighted phase sum, TotalGWP the weighted one.
	// Both are derived and recomputed whenever phase values are known.
	TotalGWPBase float64 `json:"total_gwp_base"`
	TotalGWP     float64 `json:"total_gwp"`

	Suggested Suggestion `json:"suggested"`
	Mapped    Mapping    `json:"mapped"`

	IsSummary bool `json:"is_summary"`
	Excluded  bool `json:"excluded"`
}

// RecomputeTotals clamps the weighting and rederives both totals from the
// phase values. Stored totals are never trusted as independent inputs.
func (li *LineItem) RecomputeTotals() {
	if li.Weighting < 0 {
		li.Weighting = 0
	}
	if li.Weighting > 100 {
		li.Weighting = 100
	}
	li.TotalGWPBase = li.ConstructionA + li.OperationB + li.EndOfLifeC
	li.TotalGWP = li.TotalGWPBase * (li.Weighting / 100.0)
}

// WeightedPhases returns the three phase values scaled by the row weighting.
func (li *LineItem) WeightedPhases() (construction, operation, endOfLife float64) {
	factor := li.Weighting / 100.0
	return li.ConstructionA * factor, li.OperationB * factor, li.EndOfLifeC * factor
}

// Contributes reports whether the row is eligible for aggregation:
// not excluded, not a summary row, and fully mapped.
func (li *LineItem) Contributes() bool {
	return !li.Excluded && !li.IsSummary && li.Mapped.Complete()
}

// MappingEdit is one user decision applied to a row, keyed by RowID.
// Nil fields are left untouched; applying the same edit twice yields the
// same state. Suggested fields are never reachable through an edit.
type MappingEdit struct {
	RowID      int         `json:"row_id"`
	Scenario   *Scenario   `json:"scenario,omitempty"`
	Discipline *Discipline `json:"discipline,omitempty"`
	MMICode    *MMICode    `json:"mmi_code,omitempty"`
	Excluded   *bool       `json:"excluded,omitempty"`
}

// MappingStats summarises mapping completeness over a row set.
type MappingStats struct {
	TotalRows       int     `json:"total_rows"`
	ExcludedRows    int     `json:"excluded_rows"`
	ActiveRows      int     `json:"active_rows"`
	FullyMapped     int     `json:"fully_mapped"`
	PartiallyMapped int     `json:"partially_mapped"`
	CompletenessPct float64 `json:"completeness_pct"`
}
