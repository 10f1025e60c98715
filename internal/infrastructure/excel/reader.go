package excel

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mkleiva/byggklima/internal/core/domain"
)

// Reader parses GWP export workbooks (Reduzer-style) from the first sheet.
type Reader struct{}

func NewReader() *Reader {
	return &Reader{}
}

// Column roles recognised in the export header.
const (
	colCategory = "category"
	colConstr   = "construction_a"
	colOper     = "operation_b"
	colEOL      = "end_of_life_c"
	colWeight   = "weighting"
)

// ReadGWPExport reads the first sheet of an export workbook into line
// items. Header columns are matched loosely: a phase column is recognised
// by keyword or by its "(A)"/"(B)"/"(C)" suffix, and the first column
// doubles as the category when nothing else claims it. Rows with a blank
// category are dropped; phase cells that fail to parse count as zero.
func (r *Reader) ReadGWPExport(src io.Reader) ([]domain.LineItem, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}

	roles := headerRoles(rows[0])
	if missing := missingRoles(roles); len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	items := make([]domain.LineItem, 0, len(rows)-1)
	for _, row := range rows[1:] {
		category := strings.TrimSpace(cellAt(row, roles[colCategory]))
		if category == "" {
			continue
		}
		item := domain.LineItem{
			Category:      category,
			ConstructionA: numericCell(row, roles[colConstr], 0),
			OperationB:    numericCell(row, roles[colOper], 0),
			EndOfLifeC:    numericCell(row, roles[colEOL], 0),
		}
		if idx, ok := roles[colWeight]; ok {
			item.Weighting = numericCell(row, idx, 100)
		}
		items = append(items, item)
	}
	return items, nil
}

type roleIndex map[string]int

func (ri roleIndex) claim(role string, idx int) {
	if _, taken := ri[role]; !taken {
		ri[role] = idx
	}
}

// headerRoles maps header cells to column roles, first match wins per role.
func headerRoles(header []string) roleIndex {
	roles := make(roleIndex)
	for idx, cell := range header {
		name := strings.TrimSpace(cell)
		lower := strings.ToLower(name)
		switch {
		case strings.Contains(lower, "construction") || strings.HasSuffix(name, "(A)"):
			roles.claim(colConstr, idx)
		case strings.Contains(lower, "operation") || strings.HasSuffix(name, "(B)"):
			roles.claim(colOper, idx)
		case strings.Contains(lower, "end") || strings.HasSuffix(name, "(C)"):
			roles.claim(colEOL, idx)
		case strings.Contains(lower, "weight") || strings.Contains(lower, "vekting"):
			roles.claim(colWeight, idx)
		case strings.Contains(lower, "category") || idx == 0:
			roles.claim(colCategory, idx)
		}
	}
	return roles
}

func missingRoles(roles roleIndex) []string {
	var missing []string
	for _, role := range []string{colCategory, colConstr, colOper, colEOL} {
		if _, ok := roles[role]; !ok {
			missing = append(missing, role)
		}
	}
	sort.Strings(missing)
	return missing
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func numericCell(row []string, idx int, fallback float64) float64 {
	raw := strings.TrimSpace(cellAt(row, idx))
	if raw == "" {
		return fallback
	}
	// Exports from Norwegian locales use a decimal comma.
	raw = strings.ReplaceAll(raw, ",", ".")
	raw = strings.ReplaceAll(raw, " ", "")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}
