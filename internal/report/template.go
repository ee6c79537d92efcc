package report

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hvactools/vav-extract/internal/extract"
)

// Air-balance templates carry one sheet per terminal unit with labeled
// cells; values go in the cell to the right of the matching label.
var templateLabels = []struct {
	pattern string
	field   func(extract.VavRecord) interface{}
}{
	{"(?i)^(TOTAL\\s+)?CFM$", func(r extract.VavRecord) interface{} {
		if r.CFM == nil {
			return nil
		}
		return *r.CFM
	}},
	{"(?i)^INLET(\\s+SIZE)?$", func(r extract.VavRecord) interface{} {
		if r.InletSize == "" {
			return nil
		}
		return r.InletSize
	}},
}

// PopulateTemplate opens an existing template workbook, writes each
// record's values into the sheet matching its tag, and saves the result
// to outPath. Returns the number of records that found a sheet; records
// without one are skipped, not an error, since templates routinely
// cover only a subset of the boxes on the drawings.
func PopulateTemplate(templatePath, outPath string, result *extract.Result) (int, error) {
	f, err := excelize.OpenFile(templatePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open template: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheets := f.GetSheetList()
	populated := 0

	for _, rec := range result.Records {
		sheet := findSheetForTag(sheets, rec.BoxID)
		if sheet == "" {
			continue
		}
		if populateSheet(f, sheet, rec) {
			populated++
		}
	}

	if err := f.SaveAs(outPath); err != nil {
		return populated, fmt.Errorf("failed to save populated template: %w", err)
	}
	return populated, nil
}

// findSheetForTag matches a record tag to a template sheet: exact name
// first, then case-insensitive, then a sheet name containing the tag.
func findSheetForTag(sheets []string, tag string) string {
	for _, s := range sheets {
		if s == tag {
			return s
		}
	}
	upper := strings.ToUpper(tag)
	for _, s := range sheets {
		if strings.ToUpper(s) == upper {
			return s
		}
	}
	for _, s := range sheets {
		if strings.Contains(strings.ToUpper(s), upper) {
			return s
		}
	}
	return ""
}

func populateSheet(f *excelize.File, sheet string, rec extract.VavRecord) bool {
	wrote := false
	for _, label := range templateLabels {
		value := label.field(rec)
		if value == nil {
			continue
		}
		cells, err := f.SearchSheet(sheet, label.pattern, true)
		if err != nil || len(cells) == 0 {
			continue
		}
		target, err := rightNeighbor(cells[0])
		if err != nil {
			continue
		}
		if f.SetCellValue(sheet, target, value) == nil {
			wrote = true
		}
	}
	return wrote
}

func rightNeighbor(cell string) (string, error) {
	col, row, err := excelize.CellNameToCoordinates(cell)
	if err != nil {
		return "", err
	}
	return excelize.CoordinatesToCellName(col+1, row)
}
