package extract

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/hvactools/vav-extract/internal/pdf"
)

var (
	bareIntPattern   = regexp.MustCompile(`^\d{2,5}$`)
	labeledCFMSuffix = regexp.MustCompile(`(?i)^(\d{2,5})\s*CFM$`)
	inletDimPattern  = regexp.MustCompile(`^(\d{1,2})[xX](\d{1,2})$`)
	inletDiaPattern  = regexp.MustCompile(`^(\d{1,2})\s*(?:"|”)?\s*(?:ø|Ø)?$`)
)

// Bare integers are CFM candidates only within the range airflow values
// actually take on drawings; labeled values trust the CFM literal and
// use the configured plausible range instead.
const (
	bareCFMMin = 50
	bareCFMMax = 5000
)

// Confidence levels for heuristic matches. A labeled or exact-pattern
// match outranks a bare number so the assembler's highest-confidence
// rule prefers explicit callout text.
const (
	confBoxIDExact    = 0.95
	confBoxIDEmbedded = 0.85
	confCFMLabeled    = 0.90
	confCFMBare       = 0.60
	confInletDim      = 0.90
	confInletDia      = 0.80
)

// HeuristicClassifier classifies neighborhood tokens with pattern and
// positional rules alone. It never blocks and never errors; ambiguous
// neighborhoods are left for the fallback classifier to refine.
type HeuristicClassifier struct {
	minCFM int
	maxCFM int
	boxID  *regexp.Regexp
}

// NewHeuristicClassifier creates a heuristic classifier using the
// options' plausible CFM range and box tag pattern.
func NewHeuristicClassifier(opts Options) *HeuristicClassifier {
	opts = opts.withDefaults()
	return &HeuristicClassifier{
		minCFM: opts.MinCFM,
		maxCFM: opts.MaxCFM,
		boxID:  opts.BoxIDPattern,
	}
}

func (c *HeuristicClassifier) Name() string {
	return "heuristic"
}

// Classify inspects each token of the neighborhood in reading order and
// emits one candidate per recognized field occurrence. Unrecognized
// tokens are noise and produce nothing.
func (c *HeuristicClassifier) Classify(_ context.Context, n Neighborhood) ([]FieldCandidate, error) {
	var candidates []FieldCandidate

	for i, t := range n.Tokens {
		if cand, ok := c.classifyBoxID(t); ok {
			candidates = append(candidates, cand)
			continue
		}
		if cand, ok := c.classifyCFM(t, i, n.Tokens); ok {
			candidates = append(candidates, cand)
			continue
		}
		if cand, ok := classifyInletSize(t); ok {
			candidates = append(candidates, cand)
		}
	}

	return candidates, nil
}

func (c *HeuristicClassifier) classifyBoxID(t pdf.Token) (FieldCandidate, bool) {
	match := c.boxID.FindString(t.Text)
	if match == "" {
		return FieldCandidate{}, false
	}
	confidence := confBoxIDEmbedded
	if len(match) == len(t.Text) {
		confidence = confBoxIDExact
	}
	return FieldCandidate{
		Kind:       FieldBoxID,
		RawText:    t.Text,
		Value:      strings.ToUpper(match),
		Confidence: confidence,
		Tokens:     []pdf.Token{t},
	}, true
}

// classifyCFM recognizes airflow values in three shapes: a single token
// like "350CFM", a bare integer followed by a "CFM" token on the same
// line, and a bare integer with no label at all (low confidence).
func (c *HeuristicClassifier) classifyCFM(t pdf.Token, idx int, tokens []pdf.Token) (FieldCandidate, bool) {
	if m := labeledCFMSuffix.FindStringSubmatch(t.Text); m != nil {
		value, err := strconv.Atoi(m[1])
		if err == nil && value >= c.minCFM && value <= c.maxCFM {
			return FieldCandidate{
				Kind:       FieldCFM,
				RawText:    t.Text,
				Value:      m[1],
				Confidence: confCFMLabeled,
				Tokens:     []pdf.Token{t},
			}, true
		}
	}

	if !bareIntPattern.MatchString(t.Text) {
		return FieldCandidate{}, false
	}
	value, err := strconv.Atoi(t.Text)
	if err != nil {
		return FieldCandidate{}, false
	}

	if idx+1 < len(tokens) && strings.EqualFold(tokens[idx+1].Text, "CFM") {
		if value >= c.minCFM && value <= c.maxCFM {
			return FieldCandidate{
				Kind:       FieldCFM,
				RawText:    t.Text + " " + tokens[idx+1].Text,
				Value:      t.Text,
				Confidence: confCFMLabeled,
				Tokens:     []pdf.Token{t, tokens[idx+1]},
			}, true
		}
		return FieldCandidate{}, false
	}

	if value >= bareCFMMin && value <= bareCFMMax {
		return FieldCandidate{
			Kind:       FieldCFM,
			RawText:    t.Text,
			Value:      t.Text,
			Confidence: confCFMBare,
			Tokens:     []pdf.Token{t},
		}, true
	}
	return FieldCandidate{}, false
}

// classifyInletSize recognizes duct dimensions like "10x8" and
// diameters like `10"` or `10ø`. Bare one- or two-digit integers are
// deliberately not inlet candidates: they collide with room numbers and
// CFM values and would poison the merge.
func classifyInletSize(t pdf.Token) (FieldCandidate, bool) {
	if m := inletDimPattern.FindStringSubmatch(t.Text); m != nil {
		return FieldCandidate{
			Kind:       FieldInletSize,
			RawText:    t.Text,
			Value:      m[1] + "x" + m[2],
			Confidence: confInletDim,
			Tokens:     []pdf.Token{t},
		}, true
	}

	if strings.ContainsAny(t.Text, `"”øØ`) {
		if m := inletDiaPattern.FindStringSubmatch(t.Text); m != nil {
			return FieldCandidate{
				Kind:       FieldInletSize,
				RawText:    t.Text,
				Value:      m[1] + `"`,
				Confidence: confInletDia,
				Tokens:     []pdf.Token{t},
			}, true
		}
	}
	return FieldCandidate{}, false
}

// EstimateInletSize derives a typical inlet diameter from the airflow
// value when the drawing does not state one.
func EstimateInletSize(cfm int) string {
	switch {
	case cfm <= 0:
		return ""
	case cfm <= 200:
		return `6"`
	case cfm <= 400:
		return `8"`
	case cfm <= 700:
		return `10"`
	default:
		return `12"`
	}
}
