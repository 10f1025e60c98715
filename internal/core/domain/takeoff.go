package domain

// TakeoffRecord is one quantity-takeoff line from an IFC/CSV export. It is
// structurally independent of LineItem: quantities are physical amounts,
// not GWP.
type TakeoffRecord struct {
	ObjectType  string     `json:"object_type"`
	Discipline  Discipline `json:"discipline"`
	Scenario    Scenario   `json:"scenario"`
	MMICategory MMICode    `json:"mmi_category"`
	Quantity    float64    `json:"quantity"`
	Unit        string     `json:"unit"`
}

// VerificationState is the lifecycle of one verification run.
type VerificationState string

const (
	VerificationLoaded    VerificationState = "loaded"
	VerificationValidated VerificationState = "validated"
	VerificationComputed  VerificationState = "computed"
	VerificationRejected  VerificationState = "rejected"
)

// Deviation status labels with their fixed thresholds: below 2% excellent,
// below 5% acceptable, otherwise flagged for review.
const (
	StatusExcellent   = "excellent"
	StatusAcceptable  = "acceptable"
	StatusNeedsReview = "needs_review"
)

const (
	ExcellentThresholdPct  = 2.0
	AcceptableThresholdPct = 5.0
)

// ObjectComparison reconciles one object type between scenario A (all new)
// and scenario C (mixed provenance). DeviationDefined is false when
// scenario A carries no quantity for the object; such rows always need
// review and never feed a percentage downstream.
type ObjectComparison struct {
	ObjectType string     `json:"object_type"`
	Discipline Discipline `json:"discipline"`
	Unit       string     `json:"unit"`

	QtyA      float64 `json:"qty_a"`
	QtyCTotal float64 `json:"qty_c_total"`
	QtyC300   float64 `json:"qty_c_mmi300"`
	QtyC700   float64 `json:"qty_c_mmi700"`
	QtyC800   float64 `json:"qty_c_mmi800"`

	Difference       float64 `json:"difference"`
	DeviationAbs     float64 `json:"deviation_abs"`
	DeviationPct     float64 `json:"deviation_pct"`
	DeviationDefined bool    `json:"deviation_defined"`
	Status           string  `json:"status"`
}

// DisciplineQuantitySummary is the A-vs-C reconciliation grouped by
// discipline instead of object type.
type DisciplineQuantitySummary struct {
	Discipline   Discipline `json:"discipline"`
	QtyA         float64    `json:"qty_a"`
	QtyCTotal    float64    `json:"qty_c_total"`
	QtyC300      float64    `json:"qty_c_mmi300"`
	QtyC700      float64    `json:"qty_c_mmi700"`
	QtyC800      float64    `json:"qty_c_mmi800"`
	DeviationAbs float64    `json:"deviation_abs"`
	DeviationPct float64    `json:"deviation_pct"`
}

// MMIShare is one slice of scenario C's provenance distribution.
type MMIShare struct {
	MMICode  MMICode `json:"mmi_code"`
	Label    string  `json:"label"`
	Quantity float64 `json:"quantity"`
	SharePct float64 `json:"share_pct"`
}

// VerificationOverall is the batch verdict. The overall deviation is
// quantity-weighted, so large objects dominate; pass is inclusive at the
// tolerance.
type VerificationOverall struct {
	TotalQtyA           float64 `json:"total_qty_a"`
	TotalQtyC           float64 `json:"total_qty_c"`
	TotalDeviationAbs   float64 `json:"total_deviation_abs"`
	OverallDeviationPct float64 `json:"overall_deviation_pct"`
	TolerancePct        float64 `json:"tolerance_pct"`
	Pass                bool    `json:"pass"`
}

// VerificationResult is the full metrics bundle of a computed run, or the
// validation outcome of a rejected one.
type VerificationResult struct {
	RunID    string            `json:"run_id"`
	State    VerificationState `json:"state"`
	Errors   []string          `json:"errors,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`

	Overall           VerificationOverall         `json:"overall"`
	Objects           []ObjectComparison          `json:"objects,omitempty"`
	DisciplineSummary []DisciplineQuantitySummary `json:"discipline_summary,omitempty"`
	MMIDistribution   []MMIShare                  `json:"mmi_distribution,omitempty"`
	Flagged           []ObjectComparison          `json:"flagged,omitempty"`
}

// Rejected reports whether the run stopped at validation.
func (r *VerificationResult) Rejected() bool {
	return r.State == VerificationRejected
}
