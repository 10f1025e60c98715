package excel

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/mkleiva/byggklima/internal/core/domain"
)

// ReportWriter renders computed verification runs as XLSX workbooks.
type ReportWriter struct{}

func NewReportWriter() *ReportWriter {
	return &ReportWriter{}
}

// WriteVerificationReport writes the standard report layout: a summary
// sheet, the per-object comparison, the discipline roll-up, the scenario C
// provenance distribution and, when anything is flagged, the flagged rows.
// Rejected runs have no metrics and cannot be exported.
func (w *ReportWriter) WriteVerificationReport(dst io.Writer, result *domain.VerificationResult) error {
	if result == nil || result.Rejected() {
		return fmt.Errorf("cannot export report: verification run was rejected")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeSummarySheet(f, result); err != nil {
		return err
	}
	if err := writeComparisonSheet(f, "Object Comparison", result.Objects); err != nil {
		return err
	}
	if err := writeDisciplineSheet(f, result.DisciplineSummary); err != nil {
		return err
	}
	if err := writeMMISheet(f, result.MMIDistribution); err != nil {
		return err
	}
	if len(result.Flagged) > 0 {
		if err := writeComparisonSheet(f, "Flagged Items", result.Flagged); err != nil {
			return err
		}
	}

	if err := f.Write(dst); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, result *domain.VerificationResult) error {
	const sheet = "Summary"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}

	verdict := "FAIL"
	if result.Overall.Pass {
		verdict = "PASS"
	}
	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Run ID", result.RunID},
		{"Total Quantity - Scenario A", result.Overall.TotalQtyA},
		{"Total Quantity - Scenario C", result.Overall.TotalQtyC},
		{"Total Absolute Deviation", result.Overall.TotalDeviationAbs},
		{"Overall Deviation (%)", result.Overall.OverallDeviationPct},
		{"Tolerance Threshold (%)", result.Overall.TolerancePct},
		{"Status", verdict},
	}
	return writeRows(f, sheet, rows)
}

func writeComparisonSheet(f *excelize.File, sheet string, objects []domain.ObjectComparison) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("add sheet %q: %w", sheet, err)
	}

	rows := [][]interface{}{{
		"Object Type", "Discipline", "Unit",
		"Qty A", "Qty C Total", "Qty C MMI 300", "Qty C MMI 700", "Qty C MMI 800",
		"Difference", "Deviation (%)", "Status",
	}}
	for i := range objects {
		cmp := &objects[i]
		deviation := interface{}("n/a")
		if cmp.DeviationDefined {
			deviation = cmp.DeviationPct
		}
		rows = append(rows, []interface{}{
			cmp.ObjectType, string(cmp.Discipline), cmp.Unit,
			cmp.QtyA, cmp.QtyCTotal, cmp.QtyC300, cmp.QtyC700, cmp.QtyC800,
			cmp.Difference, deviation, cmp.Status,
		})
	}
	return writeRows(f, sheet, rows)
}

func writeDisciplineSheet(f *excelize.File, summaries []domain.DisciplineQuantitySummary) error {
	const sheet = "Discipline Summary"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("add sheet %q: %w", sheet, err)
	}

	rows := [][]interface{}{{
		"Discipline", "Qty A", "Qty C Total",
		"Qty C MMI 300", "Qty C MMI 700", "Qty C MMI 800",
		"Deviation Abs", "Deviation (%)",
	}}
	for i := range summaries {
		s := &summaries[i]
		rows = append(rows, []interface{}{
			string(s.Discipline), s.QtyA, s.QtyCTotal,
			s.QtyC300, s.QtyC700, s.QtyC800,
			s.DeviationAbs, s.DeviationPct,
		})
	}
	return writeRows(f, sheet, rows)
}

func writeMMISheet(f *excelize.File, shares []domain.MMIShare) error {
	const sheet = "MMI Distribution"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("add sheet %q: %w", sheet, err)
	}

	rows := [][]interface{}{{"MMI Category", "Label", "Quantity", "Percentage"}}
	for _, share := range shares {
		rows = append(rows, []interface{}{
			string(share.MMICode), share.Label, share.Quantity, share.SharePct,
		})
	}
	return writeRows(f, sheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d of %q: %w", i+1, sheet, err)
		}
	}
	return nil
}
