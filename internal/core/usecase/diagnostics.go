package usecase

import (
	"github.com/mkleiva/byggklima/internal/core/domain"
)

const detectionFailureLimit = 20

// DiagnoseMMI builds the MMI diagnostic bundle for a row set: per-code
// suggested/mapped counts and GWP, rows where the user overruled the
// suggestion, and active rows the classifier failed to place.
func DiagnoseMMI(rows []domain.LineItem) *domain.MMIDiagnostics {
	diagnostics := &domain.MMIDiagnostics{}

	for _, code := range domain.MMICodes() {
		diag := domain.MMICodeDiagnostic{MMICode: code, Label: code.Label()}
		for i := range rows {
			row := &rows[i]
			if row.Suggested.MMICode == code {
				diag.SuggestedTotal++
				if !row.Excluded {
					diag.SuggestedActive++
				}
			}
			if row.Mapped.MMICode == code {
				diag.MappedTotal++
				if !row.Excluded {
					diag.MappedActive++
					diag.TotalGWP += row.TotalGWP
					if row.TotalGWP > 0 {
						diag.MappedWithGWP++
					}
				}
			}
		}
		diagnostics.Codes = append(diagnostics.Codes, diag)
	}

	for i := range rows {
		row := &rows[i]
		if row.Excluded {
			continue
		}
		if row.Suggested.MMICode != "" && row.Suggested.MMICode != row.Mapped.MMICode {
			diagnostics.Mismatches = append(diagnostics.Mismatches, domain.MappingMismatch{
				RowID:            row.RowID,
				Category:         row.Category,
				SuggestedMMICode: row.Suggested.MMICode,
				MappedMMICode:    row.Mapped.MMICode,
				TotalGWP:         row.TotalGWP,
			})
		}
		if row.Suggested.MMICode == "" && len(diagnostics.DetectionFailures) < detectionFailureLimit {
			diagnostics.DetectionFailures = append(diagnostics.DetectionFailures, domain.DetectionFailure{
				RowID:    row.RowID,
				Category: row.Category,
				Mapped:   row.Mapped,
				TotalGWP: row.TotalGWP,
			})
		}
	}
	return diagnostics
}
