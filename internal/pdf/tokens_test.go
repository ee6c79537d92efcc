package pdf

import (
	"testing"

	"github.com/ledongthuc/pdf"
)

// glyphs lays out each string as per-character text-show operations on a
// single line, the way most drawing producers emit text.
func glyphs(s string, x, y, fontSize float64) []pdf.Text {
	texts := make([]pdf.Text, 0, len(s))
	advance := fontSize * 0.6
	for i, r := range s {
		texts = append(texts, pdf.Text{
			S:        string(r),
			X:        x + float64(i)*advance,
			Y:        y,
			W:        advance,
			Font:     "Helvetica",
			FontSize: fontSize,
		})
	}
	return texts
}

func TestMergeGlyphRunsWordBoundaries(t *testing.T) {
	var texts []pdf.Text
	texts = append(texts, glyphs("VAV-12", 100, 700, 10)...)
	texts = append(texts, glyphs("350", 200, 700, 10)...)
	texts = append(texts, glyphs("CFM", 225, 700, 10)...)

	tokens := mergeGlyphRuns(texts, 3)

	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %d: %+v", len(tokens), tokens)
	}

	expected := []string{"VAV-12", "350", "CFM"}
	for i, want := range expected {
		if tokens[i].Text != want {
			t.Errorf("token %d: expected %q, got %q", i, want, tokens[i].Text)
		}
		if tokens[i].Page != 3 {
			t.Errorf("token %d: expected page 3, got %d", i, tokens[i].Page)
		}
	}

	first := tokens[0]
	if first.BBox.X0 != 100 {
		t.Errorf("expected first token to start at x=100, got %f", first.BBox.X0)
	}
	if first.BBox.Y0 != 700 {
		t.Errorf("expected first token at y=700, got %f", first.BBox.Y0)
	}
	if first.FontSize != 10 {
		t.Errorf("expected font size 10, got %f", first.FontSize)
	}
}

func TestMergeGlyphRunsReadingOrder(t *testing.T) {
	var texts []pdf.Text
	// Deliberately interleaved emission order.
	texts = append(texts, glyphs("SECOND", 100, 650, 10)...)
	texts = append(texts, glyphs("FIRST", 100, 700, 10)...)
	texts = append(texts, glyphs("THIRD", 300, 650, 10)...)

	tokens := mergeGlyphRuns(texts, 1)

	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(tokens))
	}

	expected := []string{"FIRST", "SECOND", "THIRD"}
	for i, want := range expected {
		if tokens[i].Text != want {
			t.Errorf("position %d: expected %q, got %q", i, want, tokens[i].Text)
		}
	}
}

func TestMergeGlyphRunsSameLineJitter(t *testing.T) {
	var texts []pdf.Text
	texts = append(texts, glyphs("10x8", 100, 700, 10)...)
	// Slight vertical jitter well within half the font size.
	texts = append(texts, glyphs("NECK", 150, 698.5, 10)...)

	tokens := mergeGlyphRuns(texts, 1)

	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens on one line, got %d: %+v", len(tokens), tokens)
	}
	if tokens[0].Text != "10x8" || tokens[1].Text != "NECK" {
		t.Errorf("unexpected tokens: %q, %q", tokens[0].Text, tokens[1].Text)
	}
}

func TestMergeGlyphRunsSplitsEmbeddedSpaces(t *testing.T) {
	texts := []pdf.Text{
		{S: "VAV-7 425 CFM", X: 100, Y: 500, W: 78, Font: "Arial", FontSize: 9},
	}

	tokens := mergeGlyphRuns(texts, 2)

	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens from phrase run, got %d: %+v", len(tokens), tokens)
	}

	expected := []string{"VAV-7", "425", "CFM"}
	for i, want := range expected {
		if tokens[i].Text != want {
			t.Errorf("token %d: expected %q, got %q", i, want, tokens[i].Text)
		}
	}

	// Positions advance left to right within the run.
	for i := 1; i < len(tokens); i++ {
		if tokens[i].BBox.X0 <= tokens[i-1].BBox.X0 {
			t.Errorf("token %d does not advance: %f <= %f",
				i, tokens[i].BBox.X0, tokens[i-1].BBox.X0)
		}
	}
}

func TestMergeGlyphRunsEmpty(t *testing.T) {
	if tokens := mergeGlyphRuns(nil, 1); tokens != nil {
		t.Errorf("expected nil tokens for empty input, got %+v", tokens)
	}

	whitespaceOnly := []pdf.Text{
		{S: "   ", X: 10, Y: 10, W: 9, FontSize: 10},
	}
	if tokens := mergeGlyphRuns(whitespaceOnly, 1); len(tokens) != 0 {
		t.Errorf("expected no tokens for whitespace input, got %+v", tokens)
	}
}

func TestTokenDistance(t *testing.T) {
	a := Token{BBox: Rect{X0: 0, Y0: 0, X1: 10, Y1: 10}}
	b := Token{BBox: Rect{X0: 30, Y0: 40, X1: 40, Y1: 50}}

	// Centers are (5,5) and (35,45), a 3-4-5 triangle scaled by 10.
	if got := a.DistanceTo(b); got != 50 {
		t.Errorf("expected distance 50, got %f", got)
	}
	if got := b.DistanceTo(a); got != 50 {
		t.Errorf("expected symmetric distance 50, got %f", got)
	}
}

func TestRectGeometry(t *testing.T) {
	r := Rect{X0: 10, Y0: 20, X1: 40, Y1: 60}

	if r.Width() != 30 {
		t.Errorf("expected width 30, got %f", r.Width())
	}
	if r.Height() != 40 {
		t.Errorf("expected height 40, got %f", r.Height())
	}
	if r.CenterX() != 25 {
		t.Errorf("expected center x 25, got %f", r.CenterX())
	}
	if r.CenterY() != 40 {
		t.Errorf("expected center y 40, got %f", r.CenterY())
	}
}
