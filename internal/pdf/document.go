package pdf

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Document is an open, read-only handle on a PDF file. The underlying
// file is opened once; page access does not mutate shared state, so a
// single Document may be read from multiple goroutines.
type Document struct {
	path   string
	file   *os.File
	reader *pdf.Reader
	pages  int
	closed bool
}

// Open opens and structurally validates a PDF file. The file is first
// parsed with relaxed validation to catch corrupt or truncated documents
// up front, then wrapped in a positioned-text reader. Any failure is
// returned as a DocumentReadError.
func Open(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &DocumentReadError{Path: path, Err: err}
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, &DocumentReadError{Path: path, Err: err}
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(file, conf)
	if err != nil {
		file.Close()
		return nil, &DocumentReadError{Path: path, Err: fmt.Errorf("failed to read PDF context: %w", err)}
	}

	if err := ctx.EnsurePageCount(); err != nil {
		file.Close()
		return nil, &DocumentReadError{Path: path, Err: fmt.Errorf("failed to ensure page count: %w", err)}
	}

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		file.Close()
		return nil, &DocumentReadError{Path: path, Err: fmt.Errorf("failed to open text reader: %w", err)}
	}

	return &Document{
		path:   path,
		file:   file,
		reader: reader,
		pages:  reader.NumPage(),
	}, nil
}

// Path returns the file path the document was opened from.
func (d *Document) Path() string {
	return d.path
}

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int {
	return d.pages
}

// Close releases the underlying file handle.
func (d *Document) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}
