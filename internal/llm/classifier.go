// Package llm implements the model-backed fallback classifier. It is
// invoked only for neighborhoods the heuristic pass could not resolve,
// and every failure degrades to a recoverable error so the pipeline
// keeps its heuristic results.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hvactools/vav-extract/internal/extract"
)

const systemPrompt = `You extract HVAC VAV box data from drawing callout text.

The input is raw text from one spatial region of a mechanical drawing,
expected to describe a single VAV terminal unit.

Return a JSON object with exactly these fields:
{
    "box_id": "VAV-12",
    "cfm": 350,
    "inlet_size": "10",
    "confidence": 0.9
}

- box_id: the VAV tag (patterns like VAV-12 or VAVB5-01); "" if none is visible
- cfm: the airflow value as a number; null if not visible
- inlet_size: primary air inlet size, typically 6, 8, 10, or 12 inches, or a dimension like "10x8"; null if not visible
- confidence: your certainty in [0, 1]
- Return ONLY the JSON object. No conversational text, no markdown formatting.`

// fieldGuess is the fixed response schema of the prompt contract.
type fieldGuess struct {
	BoxID      string      `json:"box_id"`
	CFM        json.Number `json:"cfm"`
	InletSize  string      `json:"inlet_size"`
	Confidence float64     `json:"confidence"`
}

// Classifier calls the Anthropic Messages API with a fixed prompt
// contract. Calls are bounded by a per-call timeout and a concurrency
// semaphore so a slow model never stalls page processing.
type Classifier struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
	sem     chan struct{}
}

// NewClassifier builds a model-backed classifier. Concurrency bounds
// the number of in-flight API calls.
func NewClassifier(apiKey, model string, timeout time.Duration, concurrency int) *Classifier {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Classifier{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		timeout: timeout,
		sem:     make(chan struct{}, concurrency),
	}
}

func (c *Classifier) Name() string {
	return "anthropic"
}

// Classify submits the neighborhood's raw text and maps the model's
// field guesses onto candidates. A deadline overrun is returned as a
// ClassificationTimeout so the pipeline records it and moves on.
func (c *Classifier) Classify(ctx context.Context, n extract.Neighborhood) ([]extract.FieldCandidate, error) {
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	message, err := c.client.Messages.New(callCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(n.Text())),
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return nil, &extract.ClassificationTimeout{Page: n.Page, Err: err}
		}
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}
	if responseText == "" {
		return nil, fmt.Errorf("no text content in model response")
	}

	guess, err := parseResponse(responseText)
	if err != nil {
		return nil, err
	}
	return candidatesFromGuess(guess), nil
}

// parseResponse decodes the model output, tolerating markdown fences
// and stray prose around the JSON object.
func parseResponse(text string) (fieldGuess, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return fieldGuess{}, fmt.Errorf("no JSON object in model response")
	}

	var guess fieldGuess
	if err := json.Unmarshal([]byte(text[start:end+1]), &guess); err != nil {
		return fieldGuess{}, fmt.Errorf("failed to decode model response: %w", err)
	}
	return guess, nil
}

// candidatesFromGuess maps the response schema onto field candidates.
// The model-reported confidence applies to every field it returned.
func candidatesFromGuess(guess fieldGuess) []extract.FieldCandidate {
	confidence := guess.Confidence
	if confidence <= 0 {
		confidence = 0.5
	}
	if confidence > 1 {
		confidence = 1
	}

	var candidates []extract.FieldCandidate
	if tag := strings.ToUpper(strings.TrimSpace(guess.BoxID)); tag != "" {
		candidates = append(candidates, extract.FieldCandidate{
			Kind:       extract.FieldBoxID,
			RawText:    guess.BoxID,
			Value:      tag,
			Confidence: confidence,
		})
	}
	if cfm := guess.CFM.String(); cfm != "" && cfm != "0" {
		if v, err := guess.CFM.Int64(); err == nil && v > 0 {
			candidates = append(candidates, extract.FieldCandidate{
				Kind:       extract.FieldCFM,
				RawText:    cfm,
				Value:      fmt.Sprintf("%d", v),
				Confidence: confidence,
			})
		}
	}
	if size := normalizeInletSize(guess.InletSize); size != "" {
		candidates = append(candidates, extract.FieldCandidate{
			Kind:       extract.FieldInletSize,
			RawText:    guess.InletSize,
			Value:      size,
			Confidence: confidence,
		})
	}
	return candidates
}

var (
	bareInchPattern = regexp.MustCompile(`^(\d{1,2})\s*(?:"|”)?\s*(?:ø|Ø)?$`)
	dimPattern      = regexp.MustCompile(`^(\d{1,2})\s*[xX]\s*(\d{1,2})$`)
)

// normalizeInletSize coerces model output like "10", `10"`, or "10 x 8"
// into the canonical forms the validator recognizes. Unrecognized text
// passes through for the validator to reject.
func normalizeInletSize(raw string) string {
	size := strings.TrimSpace(raw)
	if size == "" || strings.EqualFold(size, "null") {
		return ""
	}
	if m := dimPattern.FindStringSubmatch(size); m != nil {
		return m[1] + "x" + m[2]
	}
	if m := bareInchPattern.FindStringSubmatch(size); m != nil {
		return m[1] + `"`
	}
	return size
}
