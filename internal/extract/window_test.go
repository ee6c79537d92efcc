package extract

import (
	"reflect"
	"regexp"
	"testing"

	"github.com/hvactools/vav-extract/internal/pdf"
)

func tok(text string, x, y float64, page int) pdf.Token {
	return pdf.Token{
		Text:     text,
		Page:     page,
		BBox:     pdf.Rect{X0: x, Y0: y, X1: x + 10, Y1: y + 10},
		FontSize: 10,
	}
}

func TestBuildNeighborhoods(t *testing.T) {
	tokens := []pdf.Token{
		tok("VAV-1", 100, 700, 1),
		tok("350", 140, 700, 1),
		tok("CFM", 160, 700, 1),
		tok("VAV-2", 600, 200, 1),
		tok("275", 640, 200, 1),
	}

	neighborhoods := BuildNeighborhoods(tokens, 1, 100, nil)

	if len(neighborhoods) != 2 {
		t.Fatalf("expected 2 neighborhoods, got %d", len(neighborhoods))
	}

	// Seeds ordered top to bottom.
	if neighborhoods[0].Seed.Text != "VAV-1" {
		t.Errorf("expected first seed VAV-1, got %s", neighborhoods[0].Seed.Text)
	}
	if neighborhoods[1].Seed.Text != "VAV-2" {
		t.Errorf("expected second seed VAV-2, got %s", neighborhoods[1].Seed.Text)
	}

	if len(neighborhoods[0].Tokens) != 3 {
		t.Errorf("expected 3 tokens around VAV-1, got %d", len(neighborhoods[0].Tokens))
	}
	if len(neighborhoods[1].Tokens) != 2 {
		t.Errorf("expected 2 tokens around VAV-2, got %d", len(neighborhoods[1].Tokens))
	}
	for _, n := range neighborhoods {
		if n.Overflow {
			t.Error("expected no overflow neighborhood when all tokens are claimed")
		}
		if n.Page != 1 {
			t.Errorf("expected page 1, got %d", n.Page)
		}
	}
}

func TestBuildNeighborhoodsOverflow(t *testing.T) {
	tokens := []pdf.Token{
		tok("VAV-1", 100, 700, 2),
		tok("350", 120, 700, 2),
		// Far from any seed; must be retained, not dropped.
		tok("425", 900, 50, 2),
	}

	neighborhoods := BuildNeighborhoods(tokens, 2, 100, nil)

	if len(neighborhoods) != 2 {
		t.Fatalf("expected seed + overflow neighborhoods, got %d", len(neighborhoods))
	}

	overflow := neighborhoods[len(neighborhoods)-1]
	if !overflow.Overflow {
		t.Fatal("expected trailing overflow neighborhood")
	}
	if len(overflow.Tokens) != 1 || overflow.Tokens[0].Text != "425" {
		t.Errorf("expected overflow to hold the stray token, got %+v", overflow.Tokens)
	}
}

func TestBuildNeighborhoodsNoSeeds(t *testing.T) {
	tokens := []pdf.Token{
		tok("SUPPLY", 100, 700, 1),
		tok("DUCT", 130, 700, 1),
	}

	neighborhoods := BuildNeighborhoods(tokens, 1, 100, nil)

	if len(neighborhoods) != 1 || !neighborhoods[0].Overflow {
		t.Fatalf("expected a single overflow neighborhood, got %+v", neighborhoods)
	}
}

func TestBuildNeighborhoodsCustomSeedPattern(t *testing.T) {
	tokens := []pdf.Token{
		tok("TU-4", 100, 700, 1),
		tok("250", 130, 700, 1),
		tok("VAV-1", 500, 200, 1),
	}

	neighborhoods := BuildNeighborhoods(tokens, 1, 100, regexp.MustCompile(`(?i)TU-\d+`))

	if len(neighborhoods) != 2 {
		t.Fatalf("expected seed + overflow neighborhoods, got %d", len(neighborhoods))
	}
	if neighborhoods[0].Seed.Text != "TU-4" {
		t.Errorf("expected TU-4 seed, got %s", neighborhoods[0].Seed.Text)
	}
	if !neighborhoods[1].Overflow {
		t.Error("expected the unmatched tag to land in overflow")
	}
}

func TestBuildNeighborhoodsDeterministic(t *testing.T) {
	tokens := []pdf.Token{
		tok("VAV-3", 400, 400, 1),
		tok("VAV-1", 100, 700, 1),
		tok("VAV-2", 500, 700, 1),
		tok("300", 420, 420, 1),
	}

	first := BuildNeighborhoods(tokens, 1, 80, nil)
	second := BuildNeighborhoods(tokens, 1, 80, nil)

	if !reflect.DeepEqual(first, second) {
		t.Error("expected identical output for identical input")
	}

	order := []string{"VAV-1", "VAV-2", "VAV-3"}
	for i, want := range order {
		if first[i].Seed.Text != want {
			t.Errorf("seed %d: expected %s, got %s", i, want, first[i].Seed.Text)
		}
	}
}

func TestNeighborhoodText(t *testing.T) {
	n := Neighborhood{Tokens: []pdf.Token{
		tok("VAV-12", 0, 0, 1),
		tok("350", 20, 0, 1),
		tok("CFM", 40, 0, 1),
	}}

	if got := n.Text(); got != "VAV-12 350 CFM" {
		t.Errorf("expected joined text, got %q", got)
	}
}
