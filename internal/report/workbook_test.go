package report

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/hvactools/vav-extract/internal/extract"
)

func sampleResult() *extract.Result {
	cfm := 350
	return &extract.Result{
		Records: []extract.VavRecord{
			{BoxID: "VAV-2", CFM: &cfm, InletSize: "10x8", Page: 1, Confidence: 0.92},
			{BoxID: "VAV-10", InletSize: `8"`, InletEstimated: true, Page: 2, Confidence: 0.6},
		},
		Diagnostics: []extract.Diagnostic{
			{Code: extract.DiagEmptyPage, Page: 3, Message: "page 3 contains no extractable text"},
		},
		PagesProcessed: 3,
		FieldCoverage:  0.5,
	}
}

func TestWorkbookSummary(t *testing.T) {
	data, err := NewGenerator("Test Project").Workbook(sampleResult())
	if err != nil {
		t.Fatalf("Workbook failed: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to reopen generated workbook: %v", err)
	}
	defer func() {
		_ = f.Close()
	}()

	// Header row.
	for i, want := range summaryHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 4)
		got, err := f.GetCellValue(summarySheet, cell)
		if err != nil {
			t.Fatalf("GetCellValue(%s) failed: %v", cell, err)
		}
		if got != want {
			t.Errorf("header %s: expected %q, got %q", cell, want, got)
		}
	}

	checks := map[string]string{
		"A5": "VAV-2",
		"B5": "350",
		"C5": "10x8",
		"D5": "1",
		"A6": "VAV-10",
		"B6": "",
		"C6": `8" (est)`,
		"D6": "2",
	}
	for cell, want := range checks {
		got, err := f.GetCellValue(summarySheet, cell)
		if err != nil {
			t.Fatalf("GetCellValue(%s) failed: %v", cell, err)
		}
		if got != want {
			t.Errorf("cell %s: expected %q, got %q", cell, want, got)
		}
	}
}

func TestWorkbookDetailSheets(t *testing.T) {
	data, err := NewGenerator("Test Project").Workbook(sampleResult())
	if err != nil {
		t.Fatalf("Workbook failed: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to reopen generated workbook: %v", err)
	}
	defer func() {
		_ = f.Close()
	}()

	for _, name := range []string{"VAV-2", "VAV-10"} {
		if idx, _ := f.GetSheetIndex(name); idx == -1 {
			t.Fatalf("expected detail sheet %s", name)
		}
	}

	checks := map[string]string{
		"A1":  "VAV Box Test Data",
		"C3":  "Test Project",
		"A5":  "UNIT INFORMATION",
		"C6":  "VAV-2",
		"C7":  "1",
		"C8":  "10x8",
		"A10": "AIR MEASUREMENTS",
		"C10": "DESIGN",
		"D10": "ACTUAL",
		"C11": "350",
		"C12": "70",
		"C13": "350",
	}
	for cell, want := range checks {
		got, err := f.GetCellValue("VAV-2", cell)
		if err != nil {
			t.Fatalf("GetCellValue(%s) failed: %v", cell, err)
		}
		if got != want {
			t.Errorf("cell %s: expected %q, got %q", cell, want, got)
		}
	}

	// VAV-10 has no CFM; its design column stays blank for the
	// balancer, and the estimated inlet is flagged.
	gotInlet, _ := f.GetCellValue("VAV-10", "C8")
	if gotInlet != `8" (est)` {
		t.Errorf("expected estimated inlet, got %q", gotInlet)
	}
	gotCFM, _ := f.GetCellValue("VAV-10", "C11")
	if gotCFM != "" {
		t.Errorf("expected blank design CFM, got %q", gotCFM)
	}
}

func TestWorkbookDiagnosticsSheet(t *testing.T) {
	data, err := NewGenerator("").Workbook(sampleResult())
	if err != nil {
		t.Fatalf("Workbook failed: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to reopen generated workbook: %v", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if idx, _ := f.GetSheetIndex(diagnosticsSheet); idx == -1 {
		t.Fatal("expected diagnostics sheet")
	}

	got, err := f.GetCellValue(diagnosticsSheet, "A2")
	if err != nil {
		t.Fatalf("GetCellValue failed: %v", err)
	}
	if got != extract.DiagEmptyPage {
		t.Errorf("expected diagnostic code %q, got %q", extract.DiagEmptyPage, got)
	}
}

func TestWorkbookNoDiagnosticsSheetWhenClean(t *testing.T) {
	result := sampleResult()
	result.Diagnostics = nil

	data, err := NewGenerator("").Workbook(result)
	if err != nil {
		t.Fatalf("Workbook failed: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to reopen generated workbook: %v", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if idx, _ := f.GetSheetIndex(diagnosticsSheet); idx != -1 {
		t.Error("expected no diagnostics sheet for a clean run")
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	if err := NewGenerator("").WriteFile(path, sampleResult()); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("failed to open written workbook: %v", err)
	}
	defer func() {
		_ = f.Close()
	}()

	got, err := f.GetCellValue(summarySheet, "A5")
	if err != nil {
		t.Fatalf("GetCellValue failed: %v", err)
	}
	if got != "VAV-2" {
		t.Errorf("expected VAV-2 in first data row, got %q", got)
	}
}

func TestPopulateTemplate(t *testing.T) {
	tmpDir := t.TempDir()
	templatePath := filepath.Join(tmpDir, "template.xlsx")
	outPath := filepath.Join(tmpDir, "populated.xlsx")

	// Build a minimal air-balance template: one sheet per box with
	// labeled cells.
	tpl := excelize.NewFile()
	if err := tpl.SetSheetName("Sheet1", "VAV-2"); err != nil {
		t.Fatalf("failed to build template: %v", err)
	}
	_ = tpl.SetCellValue("VAV-2", "A5", "TOTAL CFM")
	_ = tpl.SetCellValue("VAV-2", "A6", "INLET SIZE")
	if _, err := tpl.NewSheet("Notes"); err != nil {
		t.Fatalf("failed to build template: %v", err)
	}
	if err := tpl.SaveAs(templatePath); err != nil {
		t.Fatalf("failed to save template: %v", err)
	}
	_ = tpl.Close()

	populated, err := PopulateTemplate(templatePath, outPath, sampleResult())
	if err != nil {
		t.Fatalf("PopulateTemplate failed: %v", err)
	}
	// VAV-2 has a sheet; VAV-10 does not and is skipped.
	if populated != 1 {
		t.Fatalf("expected 1 populated record, got %d", populated)
	}

	f, err := excelize.OpenFile(outPath)
	if err != nil {
		t.Fatalf("failed to open populated workbook: %v", err)
	}
	defer func() {
		_ = f.Close()
	}()

	gotCFM, _ := f.GetCellValue("VAV-2", "B5")
	if gotCFM != "350" {
		t.Errorf("expected CFM 350 next to label, got %q", gotCFM)
	}
	gotInlet, _ := f.GetCellValue("VAV-2", "B6")
	if gotInlet != "10x8" {
		t.Errorf("expected inlet 10x8 next to label, got %q", gotInlet)
	}
}

func TestFindSheetForTag(t *testing.T) {
	sheets := []string{"Summary", "VAV-2", "vavb5-01", "Unit VAV-7 Data"}

	tests := []struct {
		tag  string
		want string
	}{
		{"VAV-2", "VAV-2"},
		{"VAVB5-01", "vavb5-01"},
		{"VAV-7", "Unit VAV-7 Data"},
		{"VAV-99", ""},
	}

	for _, tt := range tests {
		if got := findSheetForTag(sheets, tt.tag); got != tt.want {
			t.Errorf("findSheetForTag(%q) = %q, want %q", tt.tag, got, tt.want)
		}
	}
}
