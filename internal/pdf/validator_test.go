package pdf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateFile(t *testing.T) {
	tmpDir := t.TempDir()

	garbage := filepath.Join(tmpDir, "garbage.pdf")
	if err := os.WriteFile(garbage, []byte("not a pdf at all"), 0o600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	empty := filepath.Join(tmpDir, "empty.pdf")
	if err := os.WriteFile(empty, nil, 0o600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	big := filepath.Join(tmpDir, "big.pdf")
	if err := os.WriteFile(big, make([]byte, 2048), 0o600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	text := filepath.Join(tmpDir, "notes.txt")
	if err := os.WriteFile(text, []byte("hello"), 0o600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	dirAsPDF := filepath.Join(tmpDir, "dir.pdf")
	if err := os.Mkdir(dirAsPDF, 0o750); err != nil {
		t.Fatalf("failed to create test directory: %v", err)
	}

	validator := NewValidator(1024)

	tests := []struct {
		name        string
		path        string
		wantMessage string
	}{
		{
			name:        "empty path",
			path:        "",
			wantMessage: "path cannot be empty",
		},
		{
			name:        "nonexistent file",
			path:        filepath.Join(tmpDir, "missing.pdf"),
			wantMessage: "file does not exist",
		},
		{
			name:        "directory path",
			path:        dirAsPDF,
			wantMessage: "path is a directory",
		},
		{
			name:        "wrong extension",
			path:        text,
			wantMessage: "file is not a PDF",
		},
		{
			name:        "empty file",
			path:        empty,
			wantMessage: "file is empty",
		},
		{
			name:        "file too large",
			path:        big,
			wantMessage: "file too large",
		},
		{
			name:        "invalid pdf content",
			path:        garbage,
			wantMessage: "invalid PDF file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := validator.ValidateFile(ValidateFileRequest{Path: tt.path})
			if err != nil {
				t.Fatalf("ValidateFile returned processing error: %v", err)
			}
			if result.Valid {
				t.Fatalf("expected invalid result for %s", tt.path)
			}
			if !strings.Contains(result.Message, tt.wantMessage) {
				t.Errorf("expected message containing %q, got %q", tt.wantMessage, result.Message)
			}
		})
	}
}

func TestValidateFileInfo(t *testing.T) {
	tmpDir := t.TempDir()

	path := filepath.Join(tmpDir, "drawing.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 stub"), 0o600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("failed to stat test file: %v", err)
	}

	validator := NewValidator(1024)
	if err := validator.ValidateFileInfo(path, info); err != nil {
		t.Errorf("expected file info to pass basic validation, got: %v", err)
	}

	dirInfo, err := os.Stat(tmpDir)
	if err != nil {
		t.Fatalf("failed to stat temp dir: %v", err)
	}
	if err := validator.ValidateFileInfo(tmpDir, dirInfo); err == nil {
		t.Error("expected error for directory path")
	}
}

func TestIsValidPDF(t *testing.T) {
	tmpDir := t.TempDir()

	garbage := filepath.Join(tmpDir, "garbage.pdf")
	if err := os.WriteFile(garbage, []byte("not a pdf"), 0o600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	validator := NewValidator(1024 * 1024)
	if validator.IsValidPDF(garbage) {
		t.Error("expected garbage content to be rejected")
	}
	if validator.IsValidPDF(filepath.Join(tmpDir, "missing.pdf")) {
		t.Error("expected missing file to be rejected")
	}
}
