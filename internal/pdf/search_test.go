package pdf

import (
	"os"
	"path/filepath"
	"testing"
)

func writeStubPDF(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("%PDF-1.4 stub content"), 0o600); err != nil {
		t.Fatalf("failed to create test file %s: %v", path, err)
	}
}

func TestSearchDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	writeStubPDF(t, filepath.Join(tmpDir, "mechanical-plan.pdf"))
	writeStubPDF(t, filepath.Join(tmpDir, "SCHEDULE.PDF"))

	subDir := filepath.Join(tmpDir, "addendum")
	if err := os.Mkdir(subDir, 0o750); err != nil {
		t.Fatalf("failed to create subdirectory: %v", err)
	}
	writeStubPDF(t, filepath.Join(subDir, "revision-2.pdf"))

	// Files the walk must skip: wrong extension and zero size.
	if err := os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("failed to create text file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "empty.pdf"), nil, 0o600); err != nil {
		t.Fatalf("failed to create empty file: %v", err)
	}

	search := NewSearch(1024 * 1024)

	t.Run("finds all pdfs recursively", func(t *testing.T) {
		result, err := search.SearchDirectory(SearchDirectoryRequest{Directory: tmpDir})
		if err != nil {
			t.Fatalf("SearchDirectory failed: %v", err)
		}
		if result.TotalCount != 3 {
			t.Errorf("expected 3 files, got %d: %+v", result.TotalCount, result.Files)
		}
	})

	t.Run("filters by query", func(t *testing.T) {
		result, err := search.SearchDirectory(SearchDirectoryRequest{
			Directory: tmpDir,
			Query:     "schedule",
		})
		if err != nil {
			t.Fatalf("SearchDirectory failed: %v", err)
		}
		if result.TotalCount != 1 {
			t.Fatalf("expected 1 file for query, got %d", result.TotalCount)
		}
		if result.Files[0].Name != "SCHEDULE.PDF" {
			t.Errorf("expected SCHEDULE.PDF, got %s", result.Files[0].Name)
		}
	})

	t.Run("empty directory argument", func(t *testing.T) {
		if _, err := search.SearchDirectory(SearchDirectoryRequest{}); err == nil {
			t.Error("expected error for empty directory")
		}
	})

	t.Run("nonexistent directory", func(t *testing.T) {
		req := SearchDirectoryRequest{Directory: filepath.Join(tmpDir, "missing")}
		if _, err := search.SearchDirectory(req); err == nil {
			t.Error("expected error for nonexistent directory")
		}
	})
}

func TestFindPDFsInDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	writeStubPDF(t, filepath.Join(tmpDir, "floor-1.pdf"))

	search := NewSearch(1024 * 1024)
	files, err := search.FindPDFsInDirectory(tmpDir)
	if err != nil {
		t.Fatalf("FindPDFsInDirectory failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
	if files[0].Size == 0 {
		t.Error("expected file size to be populated")
	}
}

func TestOpenRejectsUnreadableDocuments(t *testing.T) {
	tmpDir := t.TempDir()

	garbage := filepath.Join(tmpDir, "garbage.pdf")
	writeStubPDF(t, garbage)

	if _, err := Open(garbage); err == nil {
		t.Fatal("expected error opening stub content")
	} else if !IsDocumentRead(err) {
		t.Errorf("expected DocumentReadError, got %T: %v", err, err)
	}

	if _, err := Open(filepath.Join(tmpDir, "missing.pdf")); !IsDocumentRead(err) {
		t.Errorf("expected DocumentReadError for missing file, got %v", err)
	}
}
