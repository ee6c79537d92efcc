package pdf

import (
	"errors"
	"fmt"
)

// DocumentReadError indicates the document itself could not be opened or
// parsed. It is fatal to any extraction run against that document.
type DocumentReadError struct {
	Path string
	Err  error
}

func (e *DocumentReadError) Error() string {
	return fmt.Sprintf("failed to read document %s: %v", e.Path, e.Err)
}

func (e *DocumentReadError) Unwrap() error {
	return e.Err
}

// EmptyPageError indicates a page yielded no positioned text. Callers are
// expected to record it and continue with the remaining pages.
type EmptyPageError struct {
	Page int
}

func (e *EmptyPageError) Error() string {
	return fmt.Sprintf("page %d contains no extractable text", e.Page)
}

// IsDocumentRead reports whether err is or wraps a DocumentReadError.
func IsDocumentRead(err error) bool {
	var re *DocumentReadError
	return errors.As(err, &re)
}

// IsEmptyPage reports whether err is or wraps an EmptyPageError.
func IsEmptyPage(err error) bool {
	var ep *EmptyPageError
	return errors.As(err, &ep)
}
