package pdf

import "math"

// Rect is an axis-aligned bounding box in PDF user space. The origin is
// the lower-left corner of the page, Y grows upward.
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() float64 {
	return r.X1 - r.X0
}

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() float64 {
	return r.Y1 - r.Y0
}

// CenterX returns the horizontal midpoint of the rectangle.
func (r Rect) CenterX() float64 {
	return (r.X0 + r.X1) / 2
}

// CenterY returns the vertical midpoint of the rectangle.
func (r Rect) CenterY() float64 {
	return (r.Y0 + r.Y1) / 2
}

// Token is a word-level unit of positioned text extracted from a page.
// Glyph runs are merged into tokens by line and horizontal gap, so a
// token holds a whole word like "VAV-12" or "350" rather than single
// characters.
type Token struct {
	Text     string  `json:"text"`
	Page     int     `json:"page"`
	BBox     Rect    `json:"bbox"`
	Font     string  `json:"font,omitempty"`
	FontSize float64 `json:"font_size,omitempty"`
}

// DistanceTo returns the euclidean distance between the centers of two
// token bounding boxes. Page is ignored; callers compare tokens from
// the same page.
func (t Token) DistanceTo(other Token) float64 {
	dx := t.BBox.CenterX() - other.BBox.CenterX()
	dy := t.BBox.CenterY() - other.BBox.CenterY()
	return math.Sqrt(dx*dx + dy*dy)
}

// FileInfo describes a PDF file found during directory search
type FileInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// ValidateFileRequest represents a request to validate a PDF file
type ValidateFileRequest struct {
	Path string `json:"path"`
}

// ValidateFileResult represents the result of PDF file validation
type ValidateFileResult struct {
	Path    string `json:"path"`
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// SearchDirectoryRequest represents a request to search for PDF files
type SearchDirectoryRequest struct {
	Directory string `json:"directory"`
	Query     string `json:"query,omitempty"`
}

// SearchDirectoryResult represents the result of a directory search
type SearchDirectoryResult struct {
	Files       []FileInfo `json:"files"`
	TotalCount  int        `json:"total_count"`
	Directory   string     `json:"directory"`
	SearchQuery string     `json:"search_query,omitempty"`
}
