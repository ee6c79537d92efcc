package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hvactools/vav-extract/internal/pdf"
)

// FieldKind identifies which VAV record field a candidate value is for.
type FieldKind string

const (
	FieldBoxID     FieldKind = "box_id"
	FieldCFM       FieldKind = "cfm"
	FieldInletSize FieldKind = "inlet_size"
)

// FieldCandidate is a typed field value proposed by a classifier for a
// single neighborhood, with a confidence in [0,1].
type FieldCandidate struct {
	Kind       FieldKind   `json:"kind"`
	RawText    string      `json:"raw_text"`
	Value      string      `json:"value"`
	Confidence float64     `json:"confidence"`
	Tokens     []pdf.Token `json:"-"`
}

// Neighborhood is a spatial cluster of tokens hypothesized to describe
// one VAV box callout. Tokens keep their reading order. An overflow
// neighborhood holds the page's tokens that no seed reached; its values
// are re-attempted against nearby records before being discarded.
type Neighborhood struct {
	Seed     pdf.Token   `json:"seed"`
	Tokens   []pdf.Token `json:"tokens"`
	Anchor   pdf.Rect    `json:"anchor"`
	Page     int         `json:"page"`
	Overflow bool        `json:"overflow,omitempty"`
}

// Text returns the neighborhood's raw text in reading order, suitable
// as input to a model-backed classifier.
func (n Neighborhood) Text() string {
	parts := make([]string, 0, len(n.Tokens))
	for _, t := range n.Tokens {
		parts = append(parts, t.Text)
	}
	return strings.Join(parts, " ")
}

// VavRecord is one extracted VAV box. CFM is nil when no airflow value
// was resolved. InletEstimated marks an inlet size derived from the CFM
// rather than read off the drawing.
type VavRecord struct {
	BoxID          string  `json:"box_id"`
	CFM            *int    `json:"cfm"`
	InletSize      string  `json:"inlet_size,omitempty"`
	InletEstimated bool    `json:"inlet_estimated,omitempty"`
	Page           int     `json:"page"`
	Pages          []int   `json:"pages,omitempty"`
	Confidence     float64 `json:"confidence"`
}

// Diagnostic codes. Every recovered failure surfaces as one of these;
// nothing is silently dropped.
const (
	DiagEmptyPage             = "empty_page"
	DiagPageError             = "page_error"
	DiagClassificationTimeout = "classification_timeout"
	DiagClassifierError       = "classifier_error"
	DiagValidationFailure     = "validation_failure"
	DiagRunCancelled          = "run_cancelled"
)

// Diagnostic records a recovered failure or an excluded record attempt.
type Diagnostic struct {
	Code    string `json:"code"`
	Page    int    `json:"page,omitempty"`
	BoxID   string `json:"box_id,omitempty"`
	Message string `json:"message"`
}

// Result is the outcome of one pipeline run: the validated record set,
// every diagnostic accumulated along the way, and a coverage summary
// (fraction of records with all three fields populated).
type Result struct {
	Records        []VavRecord  `json:"records"`
	Diagnostics    []Diagnostic `json:"diagnostics"`
	PagesProcessed int          `json:"pages_processed"`
	FieldCoverage  float64      `json:"field_coverage"`
}

// Classifier inspects one neighborhood and proposes field candidates.
// The heuristic classifier and any model-backed fallback implement the
// same contract so the pipeline treats them as interchangeable
// strategies.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, n Neighborhood) ([]FieldCandidate, error)
}

// ClassificationTimeout indicates a fallback classifier call exceeded
// its deadline. The pipeline records it and keeps whatever the
// heuristic pass produced.
type ClassificationTimeout struct {
	Page int
	Err  error
}

func (e *ClassificationTimeout) Error() string {
	return fmt.Sprintf("classification timed out on page %d: %v", e.Page, e.Err)
}

func (e *ClassificationTimeout) Unwrap() error {
	return e.Err
}

// Options configures one pipeline run. Zero values fall back to the
// defaults below so tests can construct partial options.
type Options struct {
	// WindowRadius is the spatial clustering radius in PDF points.
	WindowRadius float64
	// MinCFM and MaxCFM bound plausible airflow values.
	MinCFM int
	MaxCFM int
	// MinFieldCount is the number of resolved fields below which an
	// ambiguous neighborhood is handed to the fallback classifier.
	MinFieldCount int
	// PageWorkers bounds page-level parallelism.
	PageWorkers int
	// EstimateInlets derives a missing inlet size from the CFM value.
	EstimateInlets bool
	// BoxIDPattern matches box tag tokens. Nil selects the standard
	// VAV tag pattern.
	BoxIDPattern *regexp.Regexp
	// InletSizePattern screens normalized inlet values during
	// validation. Nil selects the standard duct-size pattern.
	InletSizePattern *regexp.Regexp
	// Fallback is the optional model-backed classifier. Nil disables
	// the fallback path entirely.
	Fallback Classifier
}

const (
	defaultWindowRadius  = 300.0
	defaultMinCFM        = 25
	defaultMaxCFM        = 20000
	defaultMinFieldCount = 2
	defaultPageWorkers   = 4
)

func (o Options) withDefaults() Options {
	if o.WindowRadius <= 0 {
		o.WindowRadius = defaultWindowRadius
	}
	if o.MinCFM <= 0 {
		o.MinCFM = defaultMinCFM
	}
	if o.MaxCFM <= 0 {
		o.MaxCFM = defaultMaxCFM
	}
	if o.MinFieldCount <= 0 {
		o.MinFieldCount = defaultMinFieldCount
	}
	if o.PageWorkers <= 0 {
		o.PageWorkers = defaultPageWorkers
	}
	if o.BoxIDPattern == nil {
		o.BoxIDPattern = defaultBoxIDPattern
	}
	if o.InletSizePattern == nil {
		o.InletSizePattern = defaultInletSizePattern
	}
	return o
}
