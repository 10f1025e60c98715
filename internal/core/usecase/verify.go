package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/mkleiva/byggklima/internal/core/domain"
	"github.com/mkleiva/byggklima/internal/core/ports"
)

// ValidateTakeoff runs the structural checks on a takeoff batch. Any
// returned error rejects the whole batch; warnings accompany a clean
// validation. No metrics are ever computed on a batch with errors.
func ValidateTakeoff(records []domain.TakeoffRecord) (errs []string, warnings []string) {
	if len(records) == 0 {
		return []string{"takeoff batch is empty"}, nil
	}

	var invalidDisciplines, invalidScenarios, invalidMMI []string
	seenDiscipline := make(map[domain.Discipline]bool)
	seenScenario := make(map[domain.Scenario]bool)
	seenMMI := make(map[domain.MMICode]bool)
	unitsByObject := make(map[string]map[string]bool)
	hasA, hasC := false, false
	nonPositive := false
	mmi900InC := false

	for i := range records {
		rec := &records[i]

		if !rec.Discipline.Valid() && !seenDiscipline[rec.Discipline] {
			seenDiscipline[rec.Discipline] = true
			invalidDisciplines = append(invalidDisciplines, string(rec.Discipline))
		}
		if !rec.Scenario.Valid() && !seenScenario[rec.Scenario] {
			seenScenario[rec.Scenario] = true
			invalidScenarios = append(invalidScenarios, string(rec.Scenario))
		}
		if !rec.MMICategory.Valid() && !seenMMI[rec.MMICategory] {
			seenMMI[rec.MMICategory] = true
			invalidMMI = append(invalidMMI, string(rec.MMICategory))
		}
		if rec.Quantity <= 0 {
			nonPositive = true
		}

		units, ok := unitsByObject[rec.ObjectType]
		if !ok {
			units = make(map[string]bool)
			unitsByObject[rec.ObjectType] = units
		}
		units[rec.Unit] = true

		switch rec.Scenario {
		case domain.ScenarioA:
			hasA = true
			if rec.MMICategory != domain.MMINew {
				errs = append(errs, fmt.Sprintf(
					"scenario A must only use MMI 300 (new): object %q has MMI %s",
					rec.ObjectType, rec.MMICategory,
				))
			}
		case domain.ScenarioC:
			hasC = true
			if rec.MMICategory == domain.MMIDemolish {
				mmi900InC = true
			}
		}
	}

	if len(invalidDisciplines) > 0 {
		sort.Strings(invalidDisciplines)
		errs = append(errs, fmt.Sprintf("invalid disciplines: %s (valid: ARK, RIV, RIE, RIB, RIBp)", strings.Join(invalidDisciplines, ", ")))
	}
	if len(invalidScenarios) > 0 {
		sort.Strings(invalidScenarios)
		errs = append(errs, fmt.Sprintf("invalid scenarios: %s (valid: A, B, C, D)", strings.Join(invalidScenarios, ", ")))
	}
	if len(invalidMMI) > 0 {
		sort.Strings(invalidMMI)
		errs = append(errs, fmt.Sprintf("invalid MMI categories: %s (valid: 300, 700, 800, 900)", strings.Join(invalidMMI, ", ")))
	}
	if nonPositive {
		errs = append(errs, "all quantities must be positive")
	}

	var inconsistent []string
	for object, units := range unitsByObject {
		if len(units) > 1 {
			inconsistent = append(inconsistent, object)
		}
	}
	if len(inconsistent) > 0 {
		sort.Strings(inconsistent)
		errs = append(errs, fmt.Sprintf("inconsistent units for object types: %s", strings.Join(inconsistent, ", ")))
	}

	if !hasA || !hasC {
		errs = append(errs, "both scenario A and scenario C data are required for verification")
	}
	if mmi900InC {
		warnings = append(warnings, "scenario C contains MMI 900 (demolished) rows; they are ignored by the balance check")
	}
	return errs, warnings
}

type objectKey struct {
	objectType string
	discipline domain.Discipline
}

// ComputeVerification reconciles scenario A against scenario C for a batch
// that already passed validation. The overall deviation is weighted by
// quantity, not averaged over objects, so large objects dominate the
// verdict. TolerancePct falls back to the fixed 5% default when not
// positive; pass is inclusive at the tolerance.
func ComputeVerification(records []domain.TakeoffRecord, tolerancePct float64) *domain.VerificationResult {
	if tolerancePct <= 0 {
		tolerancePct = domain.AcceptableThresholdPct
	}

	grouped := make(map[objectKey]*domain.ObjectComparison)
	keys := make([]objectKey, 0)
	for i := range records {
		rec := &records[i]
		if rec.Scenario != domain.ScenarioA && rec.Scenario != domain.ScenarioC {
			// The balance check only concerns A and C.
			continue
		}
		key := objectKey{objectType: rec.ObjectType, discipline: rec.Discipline}
		cmp, ok := grouped[key]
		if !ok {
			cmp = &domain.ObjectComparison{
				ObjectType: rec.ObjectType,
				Discipline: rec.Discipline,
				Unit:       rec.Unit,
			}
			grouped[key] = cmp
			keys = append(keys, key)
		}

		switch rec.Scenario {
		case domain.ScenarioA:
			cmp.QtyA += rec.Quantity
		case domain.ScenarioC:
			switch rec.MMICategory {
			case domain.MMINew:
				cmp.QtyC300 += rec.Quantity
			case domain.MMIExisting:
				cmp.QtyC700 += rec.Quantity
			case domain.MMIReused:
				cmp.QtyC800 += rec.Quantity
			default:
				// MMI 900 is outside the balance check.
				continue
			}
			cmp.QtyCTotal += rec.Quantity
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].objectType != keys[j].objectType {
			return keys[i].objectType < keys[j].objectType
		}
		return keys[i].discipline < keys[j].discipline
	})

	result := &domain.VerificationResult{State: domain.VerificationComputed}
	overall := &result.Overall
	overall.TolerancePct = tolerancePct

	for _, key := range keys {
		cmp := grouped[key]
		cmp.Difference = cmp.QtyCTotal - cmp.QtyA
		cmp.DeviationAbs = math.Abs(cmp.Difference)

		switch {
		case cmp.QtyA > 0:
			cmp.DeviationPct = cmp.DeviationAbs / cmp.QtyA * 100
			cmp.DeviationDefined = true
			cmp.Status = classifyDeviation(cmp.DeviationPct)
		case cmp.QtyCTotal > 0:
			// Nothing in A to compare against: percentage is undefined and
			// the object always needs review.
			cmp.Status = domain.StatusNeedsReview
		default:
			cmp.DeviationPct = 0
			cmp.DeviationDefined = true
			cmp.Status = domain.StatusExcellent
		}

		overall.TotalQtyA += cmp.QtyA
		overall.TotalQtyC += cmp.QtyCTotal
		overall.TotalDeviationAbs += cmp.DeviationAbs
		result.Objects = append(result.Objects, *cmp)
	}

	if overall.TotalQtyA > 0 {
		overall.OverallDeviationPct = overall.TotalDeviationAbs / overall.TotalQtyA * 100
	}
	overall.Pass = overall.OverallDeviationPct <= tolerancePct

	result.DisciplineSummary = disciplineSummary(result.Objects)
	result.MMIDistribution = mmiDistribution(result.Objects)
	result.Flagged = flaggedObjects(result.Objects, tolerancePct)
	return result
}

func classifyDeviation(pct float64) string {
	switch {
	case pct < domain.ExcellentThresholdPct:
		return domain.StatusExcellent
	case pct <= domain.AcceptableThresholdPct:
		return domain.StatusAcceptable
	default:
		return domain.StatusNeedsReview
	}
}

func disciplineSummary(objects []domain.ObjectComparison) []domain.DisciplineQuantitySummary {
	grouped := make(map[domain.Discipline]*domain.DisciplineQuantitySummary)
	for i := range objects {
		cmp := &objects[i]
		summary, ok := grouped[cmp.Discipline]
		if !ok {
			summary = &domain.DisciplineQuantitySummary{Discipline: cmp.Discipline}
			grouped[cmp.Discipline] = summary
		}
		summary.QtyA += cmp.QtyA
		summary.QtyCTotal += cmp.QtyCTotal
		summary.QtyC300 += cmp.QtyC300
		summary.QtyC700 += cmp.QtyC700
		summary.QtyC800 += cmp.QtyC800
		summary.DeviationAbs += cmp.DeviationAbs
	}

	summaries := make([]domain.DisciplineQuantitySummary, 0, len(grouped))
	for _, discipline := range domain.Disciplines() {
		summary, ok := grouped[discipline]
		if !ok {
			continue
		}
		if summary.QtyA > 0 {
			summary.DeviationPct = summary.DeviationAbs / summary.QtyA * 100
		}
		summaries = append(summaries, *summary)
	}
	return summaries
}

func mmiDistribution(objects []domain.ObjectComparison) []domain.MMIShare {
	var total300, total700, total800 float64
	for i := range objects {
		total300 += objects[i].QtyC300
		total700 += objects[i].QtyC700
		total800 += objects[i].QtyC800
	}
	total := total300 + total700 + total800

	shares := []domain.MMIShare{
		{MMICode: domain.MMINew, Quantity: total300},
		{MMICode: domain.MMIExisting, Quantity: total700},
		{MMICode: domain.MMIReused, Quantity: total800},
	}
	for i := range shares {
		shares[i].Label = shares[i].MMICode.Label()
		if total > 0 {
			shares[i].SharePct = shares[i].Quantity / total * 100
		}
	}
	return shares
}

// flaggedObjects returns the comparisons over tolerance, undefined
// deviations first, then by deviation percentage descending.
func flaggedObjects(objects []domain.ObjectComparison, tolerancePct float64) []domain.ObjectComparison {
	flagged := make([]domain.ObjectComparison, 0)
	for i := range objects {
		cmp := &objects[i]
		if !cmp.DeviationDefined || cmp.DeviationPct > tolerancePct {
			flagged = append(flagged, *cmp)
		}
	}
	sort.Slice(flagged, func(i, j int) bool {
		if flagged[i].DeviationDefined != flagged[j].DeviationDefined {
			return !flagged[i].DeviationDefined
		}
		if flagged[i].DeviationPct != flagged[j].DeviationPct {
			return flagged[i].DeviationPct > flagged[j].DeviationPct
		}
		return flagged[i].ObjectType < flagged[j].ObjectType
	})
	return flagged
}

// VerifyTakeoffUseCase runs a verification batch end to end:
// Loaded → Validated → (Computed | Rejected), persisting the run either way.
type VerifyTakeoffUseCase struct {
	repo ports.VerificationRepository
}

func NewVerifyTakeoffUseCase(repo ports.VerificationRepository) *VerifyTakeoffUseCase {
	return &VerifyTakeoffUseCase{repo: repo}
}

func (uc *VerifyTakeoffUseCase) Verify(ctx context.Context, records []domain.TakeoffRecord, tolerancePct float64) (*domain.VerificationResult, error) {
	errs, warnings := ValidateTakeoff(records)

	var result *domain.VerificationResult
	if len(errs) > 0 {
		result = &domain.VerificationResult{
			State:    domain.VerificationRejected,
			Errors:   errs,
			Warnings: warnings,
		}
	} else {
		result = ComputeVerification(records, tolerancePct)
		result.Warnings = warnings
	}
	result.RunID = uuid.NewString()

	if uc.repo != nil {
		if err := uc.repo.CreateRun(ctx, result); err != nil {
			return nil, fmt.Errorf("persist verification run: %w", err)
		}
	}
	return result, nil
}
