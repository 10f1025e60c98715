package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mkleiva/byggklima/internal/core/domain"
)

// Takeoff column headers, matched after trimming but case-sensitively.
var takeoffColumns = []string{"Object Type", "Discipline", "Scenario", "MMI Category", "Quantity", "Unit"}

// TakeoffReader parses quantity-takeoff files. CSV and XLSX carry the same
// tabular layout; the format is picked from the filename extension.
type TakeoffReader struct{}

func NewTakeoffReader() *TakeoffReader {
	return &TakeoffReader{}
}

func (t *TakeoffReader) ReadTakeoff(r io.Reader, filename string) ([]domain.TakeoffRecord, error) {
	var (
		rows [][]string
		err  error
	)
	switch {
	case strings.HasSuffix(strings.ToLower(filename), ".csv"):
		rows, err = readCSVRows(r)
	case strings.HasSuffix(strings.ToLower(filename), ".xlsx"),
		strings.HasSuffix(strings.ToLower(filename), ".xls"):
		rows, err = readSheetRows(r)
	default:
		return nil, fmt.Errorf("unsupported takeoff format %q: use CSV or XLSX", filename)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("takeoff file %q is empty", filename)
	}

	index, err := takeoffHeaderIndex(rows[0])
	if err != nil {
		return nil, err
	}

	records := make([]domain.TakeoffRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec, ok := takeoffRecord(row, index)
		if !ok {
			// Rows missing critical fields are dropped, matching the
			// loader's behavior for ragged exports.
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func readCSVRows(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

func readSheetRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
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
	return rows, nil
}

func takeoffHeaderIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for idx, cell := range header {
		index[strings.TrimSpace(cell)] = idx
	}

	var missing []string
	for _, col := range takeoffColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return index, nil
}

// takeoffRecord normalises one data row: object types keep their case,
// discipline and scenario are uppercased, units lowercased, and the MMI
// category is coerced through a number so "300.0" still reads as 300.
func takeoffRecord(row []string, index map[string]int) (domain.TakeoffRecord, bool) {
	get := func(col string) string {
		return strings.TrimSpace(cellAt(row, index[col]))
	}

	objectType := get("Object Type")
	discipline := strings.ToUpper(get("Discipline"))
	// RIBp (prefabricated concrete) is the one mixed-case discipline.
	if discipline == "RIBP" {
		discipline = string(domain.DisciplineRIBp)
	}
	scenario := strings.ToUpper(get("Scenario"))
	if objectType == "" || discipline == "" || scenario == "" {
		return domain.TakeoffRecord{}, false
	}

	mmi, ok := parseMMICode(get("MMI Category"))
	if !ok {
		return domain.TakeoffRecord{}, false
	}
	qty, err := strconv.ParseFloat(strings.ReplaceAll(get("Quantity"), ",", "."), 64)
	if err != nil {
		return domain.TakeoffRecord{}, false
	}

	return domain.TakeoffRecord{
		ObjectType:  objectType,
		Discipline:  domain.Discipline(discipline),
		Scenario:    domain.Scenario(scenario),
		MMICategory: mmi,
		Quantity:    qty,
		Unit:        strings.ToLower(get("Unit")),
	}, true
}

func parseMMICode(raw string) (domain.MMICode, bool) {
	if raw == "" {
		return "", false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return "", false
	}
	return domain.MMICode(strconv.Itoa(int(v))), true
}
