package domain

// MMICodeDiagnostic is one row of the MMI distribution diagnosis: how often
// a code was suggested vs mapped, how much of it is still active, and the
// GWP it carries.
type MMICodeDiagnostic struct {
	MMICode         MMICode `json:"mmi_code"`
	Label           string  `json:"label"`
	SuggestedTotal  int     `json:"suggested_total"`
	SuggestedActive int     `json:"suggested_active"`
	MappedTotal     int     `json:"mapped_total"`
	MappedActive    int     `json:"mapped_active"`
	MappedWithGWP   int     `json:"mapped_with_gwp"`
	TotalGWP        float64 `json:"total_gwp"`
}

// MappingMismatch is an active row whose mapped MMI code diverges from the
// suggestion. Divergence is legitimate (the user overruled the heuristic);
// the listing exists for review, not correction.
type MappingMismatch struct {
	RowID            int     `json:"row_id"`
	Category         string  `json:"category"`
	SuggestedMMICode MMICode `json:"suggested_mmi_code"`
	MappedMMICode    MMICode `json:"mapped_mmi_code"`
	TotalGWP         float64 `json:"total_gwp"`
}

// DetectionFailure is an active row the classifier could not place in any
// MMI category.
type DetectionFailure struct {
	RowID    int     `json:"row_id"`
	Category string  `json:"category"`
	Mapped   Mapping `json:"mapped"`
	TotalGWP float64 `json:"total_gwp"`
}

// MMIDiagnostics bundles the diagnostic views over one dataset.
type MMIDiagnostics struct {
	Codes             []MMICodeDiagnostic `json:"codes"`
	Mismatches        []MappingMismatch   `json:"mismatches"`
	DetectionFailures []DetectionFailure  `json:"detection_failures"`
}
