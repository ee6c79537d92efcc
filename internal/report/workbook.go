// Package report turns extraction results into XLSX workbooks: either a
// fresh summary workbook or a populated copy of an existing air-balance
// template.
package report

import (
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/hvactools/vav-extract/internal/extract"
)

const (
	summarySheet     = "VAV Summary"
	diagnosticsSheet = "Diagnostics"
)

var summaryHeaders = []string{"Box ID", "CFM", "Inlet Size", "Page", "Confidence"}

// Generator produces XLSX workbooks from extraction results.
type Generator struct {
	projectName string
}

// NewGenerator creates a workbook generator. The project name lands in
// the summary sheet title row.
func NewGenerator(projectName string) *Generator {
	if projectName == "" {
		projectName = "HVAC Project"
	}
	return &Generator{projectName: projectName}
}

// Workbook builds a new workbook with one summary row per record, a
// test-data detail sheet per record, and, when the run produced
// diagnostics, a diagnostics sheet so degraded extractions stay visible
// in the deliverable.
func (g *Generator) Workbook(result *extract.Result) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to name summary sheet: %w", err)
	}

	_ = f.SetCellValue(summarySheet, "A1", g.projectName+" - VAV Extraction")
	_ = f.SetCellValue(summarySheet, "A2", fmt.Sprintf("Records: %d   Pages: %d   Field coverage: %.0f%%",
		len(result.Records), result.PagesProcessed, result.FieldCoverage*100))

	const headerRow = 4
	for i, h := range summaryHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		_ = f.SetCellValue(summarySheet, cell, h)
	}

	for i, rec := range result.Records {
		row := headerRow + 1 + i
		setRow(f, summarySheet, row, recordCells(rec))
	}

	_ = f.SetColWidth(summarySheet, "A", "A", 14) // box id
	_ = f.SetColWidth(summarySheet, "B", "B", 10) // cfm
	_ = f.SetColWidth(summarySheet, "C", "C", 12) // inlet size
	_ = f.SetColWidth(summarySheet, "D", "D", 8)  // page
	_ = f.SetColWidth(summarySheet, "E", "E", 12) // confidence

	for _, rec := range result.Records {
		if err := g.addDetailSheet(f, rec); err != nil {
			return nil, err
		}
	}

	if len(result.Diagnostics) > 0 {
		if err := g.addDiagnosticsSheet(f, result.Diagnostics); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile builds the workbook and writes it to path.
func (g *Generator) WriteFile(path string, result *extract.Result) error {
	data, err := g.Workbook(result)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// addDetailSheet lays out one record as a balancer's test-data form:
// a unit information block and an air measurements block with DESIGN
// and ACTUAL columns, the ACTUAL column left blank for field readings.
func (g *Generator) addDetailSheet(f *excelize.File, rec extract.VavRecord) error {
	name := detailSheetName(rec.BoxID)
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create detail sheet for %s: %w", rec.BoxID, err)
	}

	_ = f.SetCellValue(name, "A1", "VAV Box Test Data")
	_ = f.SetCellValue(name, "A3", "Project:")
	_ = f.SetCellValue(name, "C3", g.projectName)

	_ = f.SetCellValue(name, "A5", "UNIT INFORMATION")
	_ = f.SetCellValue(name, "A6", "Unit Number")
	_ = f.SetCellValue(name, "C6", rec.BoxID)
	_ = f.SetCellValue(name, "A7", "Drawing Page")
	_ = f.SetCellValue(name, "C7", rec.Page)
	_ = f.SetCellValue(name, "A8", "Inlet Size")
	inlet := rec.InletSize
	if inlet != "" && rec.InletEstimated {
		inlet += " (est)"
	}
	_ = f.SetCellValue(name, "C8", inlet)

	_ = f.SetCellValue(name, "A10", "AIR MEASUREMENTS")
	_ = f.SetCellValue(name, "C10", "DESIGN")
	_ = f.SetCellValue(name, "D10", "ACTUAL")
	_ = f.SetCellValue(name, "A11", "Total CFM")
	_ = f.SetCellValue(name, "A12", "Minimum CFM")
	_ = f.SetCellValue(name, "A13", "Maximum CFM")
	if rec.CFM != nil {
		cfm := *rec.CFM
		_ = f.SetCellValue(name, "C11", cfm)
		// Minimum setpoint defaults to 20% of design.
		_ = f.SetCellValue(name, "C12", cfm/5)
		_ = f.SetCellValue(name, "C13", cfm)
	}

	_ = f.SetColWidth(name, "A", "A", 20)
	_ = f.SetColWidth(name, "C", "D", 15)
	return nil
}

// detailSheetName keeps sheet names inside the 31-character XLSX limit.
func detailSheetName(boxID string) string {
	if len(boxID) > 31 {
		return boxID[:31]
	}
	return boxID
}

func (g *Generator) addDiagnosticsSheet(f *excelize.File, diags []extract.Diagnostic) error {
	if _, err := f.NewSheet(diagnosticsSheet); err != nil {
		return fmt.Errorf("failed to create diagnostics sheet: %w", err)
	}

	headers := []string{"Code", "Page", "Box ID", "Message"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(diagnosticsSheet, cell, h)
	}

	for i, d := range diags {
		row := 2 + i
		cells := []interface{}{d.Code, d.Page, d.BoxID, d.Message}
		setRow(f, diagnosticsSheet, row, cells)
	}

	_ = f.SetColWidth(diagnosticsSheet, "A", "A", 24)
	_ = f.SetColWidth(diagnosticsSheet, "D", "D", 60)
	return nil
}

func recordCells(rec extract.VavRecord) []interface{} {
	cells := make([]interface{}, 0, len(summaryHeaders))
	cells = append(cells, rec.BoxID)
	if rec.CFM != nil {
		cells = append(cells, *rec.CFM)
	} else {
		cells = append(cells, "")
	}

	inlet := rec.InletSize
	if inlet != "" && rec.InletEstimated {
		inlet += " (est)"
	}
	cells = append(cells, inlet, rec.Page, rec.Confidence)
	return cells
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) {
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}
