package extract

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/hvactools/vav-extract/internal/pdf"
)

// TokenSource yields positioned tokens per page. *pdf.Document
// satisfies it; tests substitute synthetic pages. Implementations must
// be safe for concurrent page reads.
type TokenSource interface {
	PageCount() int
	PageTokens(page int) ([]pdf.Token, error)
}

// State is the pipeline run phase. A run moves through the states once,
// in order; FAILED is reachable from any state on a document-level
// error.
type State int32

const (
	StateInit State = iota
	StateExtractingTokens
	StateBuildingNeighborhoods
	StateClassifying
	StateAssembling
	StateValidating
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateExtractingTokens:
		return "extracting_tokens"
	case StateBuildingNeighborhoods:
		return "building_neighborhoods"
	case StateClassifying:
		return "classifying"
	case StateAssembling:
		return "assembling"
	case StateValidating:
		return "validating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Pipeline runs the extraction passes over one document. A Pipeline is
// stateless between runs apart from the observable run state; create
// one per configuration and reuse it freely.
type Pipeline struct {
	opts      Options
	heuristic *HeuristicClassifier
	state     atomic.Int32
}

// NewPipeline creates a pipeline with the given options, filling in
// defaults for zero values.
func NewPipeline(opts Options) *Pipeline {
	opts = opts.withDefaults()
	return &Pipeline{
		opts:      opts,
		heuristic: NewHeuristicClassifier(opts),
	}
}

// State returns the current run phase.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) setState(s State) {
	p.state.Store(int32(s))
}

// RunFile opens the document at path and runs extraction over it.
func (p *Pipeline) RunFile(ctx context.Context, path string) (*Result, error) {
	doc, err := pdf.Open(path)
	if err != nil {
		p.setState(StateFailed)
		return nil, err
	}
	defer doc.Close()
	return p.Run(ctx, doc)
}

// Run extracts VAV records from every page of the source. Pages are
// processed in parallel; the merge is content-keyed so the result is
// deterministic regardless of scheduling. Per-page and per-neighborhood
// failures are recovered and recorded as diagnostics. Only a
// document-level read failure aborts the run. Cancellation stops new
// fallback classifier calls and returns partial results with a
// diagnostic rather than an error.
func (p *Pipeline) Run(ctx context.Context, src TokenSource) (*Result, error) {
	p.setState(StateInit)
	pageCount := src.PageCount()
	var diags []Diagnostic

	// Phase 1: positioned tokens, page-parallel. Results land in a
	// slice indexed by page so output order never depends on
	// goroutine scheduling.
	p.setState(StateExtractingTokens)
	pageTokens := make([][]pdf.Token, pageCount)
	pageErrs := make([]error, pageCount)

	sem := make(chan struct{}, p.opts.PageWorkers)
	var wg sync.WaitGroup
	for i := 0; i < pageCount; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			tokens, err := src.PageTokens(idx + 1)
			if err != nil {
				pageErrs[idx] = err
				return
			}
			pageTokens[idx] = tokens
		}(i)
	}
	wg.Wait()

	for i, err := range pageErrs {
		if err == nil {
			continue
		}
		if pdf.IsDocumentRead(err) {
			p.setState(StateFailed)
			return nil, err
		}
		code := DiagPageError
		if pdf.IsEmptyPage(err) {
			code = DiagEmptyPage
		}
		diags = append(diags, Diagnostic{Code: code, Page: i + 1, Message: err.Error()})
	}

	// Phase 2: spatial neighborhoods per page, in page order.
	p.setState(StateBuildingNeighborhoods)
	var neighborhoods []Neighborhood
	for i, tokens := range pageTokens {
		if len(tokens) == 0 {
			continue
		}
		neighborhoods = append(neighborhoods, BuildNeighborhoods(tokens, i+1, p.opts.WindowRadius, p.opts.BoxIDPattern)...)
	}

	// Phase 3: classification. The heuristic pass is cheap and runs
	// inline; ambiguous neighborhoods fan out to the fallback
	// classifier with independent completion.
	p.setState(StateClassifying)
	classified := make([][]FieldCandidate, len(neighborhoods))
	for i, n := range neighborhoods {
		cands, err := p.heuristic.Classify(ctx, n)
		if err != nil {
			diags = append(diags, Diagnostic{
				Code: DiagClassifierError, Page: n.Page, Message: err.Error(),
			})
			continue
		}
		classified[i] = cands
	}

	if p.opts.Fallback != nil {
		diags = append(diags, p.runFallback(ctx, neighborhoods, classified)...)
	}
	if ctx.Err() != nil {
		diags = append(diags, Diagnostic{
			Code:    DiagRunCancelled,
			Message: "run cancelled, returning partial results: " + ctx.Err().Error(),
		})
	}

	// Phase 4: per-neighborhood assembly, overflow recovery, then the
	// content-keyed cross-page merge.
	p.setState(StateAssembling)
	var records []candidateRecord
	// Schedule tables are the most reliable source; their rows enter
	// the merge first.
	for i, tokens := range pageTokens {
		if len(tokens) == 0 {
			continue
		}
		records = append(records, scanScheduleRows(ctx, tokens, i+1, p.heuristic, p.opts.BoxIDPattern)...)
	}
	overflowByPage := make(map[int][]FieldCandidate)
	for i, n := range neighborhoods {
		if n.Overflow {
			overflowByPage[n.Page] = append(overflowByPage[n.Page], classified[i]...)
			continue
		}
		if rec, ok := assembleNeighborhood(n, classified[i]); ok {
			records = append(records, rec)
		}
	}

	overflowPages := make([]int, 0, len(overflowByPage))
	for page := range overflowByPage {
		overflowPages = append(overflowPages, page)
	}
	sort.Ints(overflowPages)
	for _, page := range overflowPages {
		attachOverflow(records, overflowByPage[page], page, p.opts.WindowRadius)
	}

	merged := mergeRecords(records, p.opts)

	// Phase 5: invariants and the coverage summary.
	p.setState(StateValidating)
	valid, vdiags, coverage := validateRecords(merged, p.opts)
	diags = append(diags, vdiags...)

	p.setState(StateDone)
	return &Result{
		Records:        valid,
		Diagnostics:    diags,
		PagesProcessed: pageCount,
		FieldCoverage:  coverage,
	}, nil
}

// runFallback hands ambiguous neighborhoods to the fallback classifier.
// Calls run concurrently and complete independently; a timeout or error
// on one neighborhood never blocks or fails the others. Once the run
// context is cancelled no new calls are issued.
func (p *Pipeline) runFallback(ctx context.Context, neighborhoods []Neighborhood, classified [][]FieldCandidate) []Diagnostic {
	extra := make([][]FieldCandidate, len(neighborhoods))
	errs := make([]error, len(neighborhoods))

	var wg sync.WaitGroup
	for i, n := range neighborhoods {
		if n.Overflow {
			continue
		}
		if distinctKinds(classified[i]) >= p.opts.MinFieldCount {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(idx int, n Neighborhood) {
			defer wg.Done()
			cands, err := p.opts.Fallback.Classify(ctx, n)
			if err != nil {
				errs[idx] = err
				return
			}
			extra[idx] = cands
		}(i, n)
	}
	wg.Wait()

	var diags []Diagnostic
	for i := range neighborhoods {
		if err := errs[i]; err != nil {
			code := DiagClassifierError
			var timeout *ClassificationTimeout
			if errors.As(err, &timeout) || errors.Is(err, context.DeadlineExceeded) {
				code = DiagClassificationTimeout
			}
			diags = append(diags, Diagnostic{
				Code:    code,
				Page:    neighborhoods[i].Page,
				Message: err.Error(),
			})
			continue
		}
		classified[i] = append(classified[i], extra[i]...)
	}
	return diags
}

func distinctKinds(candidates []FieldCandidate) int {
	seen := make(map[FieldKind]bool, 3)
	for _, c := range candidates {
		seen[c.Kind] = true
	}
	return len(seen)
}
