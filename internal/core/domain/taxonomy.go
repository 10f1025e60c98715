package domain

// Scenario is a named design alternative for a project. The letters are
// opaque identifiers from the source data and are unrelated to the
// lifecycle phase letters used in GWP columns.
type Scenario string

const (
	ScenarioA Scenario = "A"
	ScenarioB Scenario = "B"
	ScenarioC Scenario = "C"
	ScenarioD Scenario = "D"
)

// Discipline is a professional/trade category (fag).
type Discipline string

const (
	DisciplineARK  Discipline = "ARK"  // architecture
	DisciplineRIV  Discipline = "RIV"  // HVAC
	DisciplineRIE  Discipline = "RIE"  // electrical
	DisciplineRIB  Discipline = "RIB"  // structural
	DisciplineRIBp Discipline = "RIBp" // foundation/geotechnical
)

// MMICode is a material-provenance category.
type MMICode string

const (
	MMINew      MMICode = "300" // new construction
	MMIExisting MMICode = "700" // existing, kept in place
	MMIReused   MMICode = "800" // reused from elsewhere
	MMIDemolish MMICode = "900" // demolished/waste
)

const MMILabelUnknown = "UKJENT"

var mmiLabels = map[MMICode]string{
	MMINew:      "NY",
	MMIExisting: "EKS",
	MMIReused:   "GJEN",
	MMIDemolish: "RIVES",
}

// Label returns the Norwegian label for the code, or UKJENT.
func (c MMICode) Label() string {
	if label, ok := mmiLabels[c]; ok {
		return label
	}
	return MMILabelUnknown
}

func (s Scenario) Valid() bool {
	switch s {
	case ScenarioA, ScenarioB, ScenarioC, ScenarioD:
		return true
	}
	return false
}

func (d Discipline) Valid() bool {
	switch d {
	case DisciplineARK, DisciplineRIV, DisciplineRIE, DisciplineRIB, DisciplineRIBp:
		return true
	}
	return false
}

func (c MMICode) Valid() bool {
	_, ok := mmiLabels[c]
	return ok
}

// Scenarios returns all scenarios in fixed order.
func Scenarios() []Scenario {
	return []Scenario{ScenarioA, ScenarioB, ScenarioC, ScenarioD}
}

// Disciplines returns all disciplines in fixed order.
func Disciplines() []Discipline {
	return []Discipline{DisciplineARK, DisciplineRIV, DisciplineRIE, DisciplineRIB, DisciplineRIBp}
}

// MMICodes returns all MMI codes in ascending order.
func MMICodes() []MMICode {
	return []MMICode{MMINew, MMIExisting, MMIReused, MMIDemolish}
}

// ValidCombination reports whether the triple is inside the closed taxonomy.
func ValidCombination(s Scenario, d Discipline, c MMICode) bool {
	return s.Valid() && d.Valid() && c.Valid()
}
