package extract

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/hvactools/vav-extract/internal/pdf"
)

// Schedule rows carry explicit design values, so they outrank values
// read off floor plan callouts in the merge.
const confSchedule = 0.92

var scheduleMarkers = []string{"SCHEDULE", "DESIGNATION"}

// hasScheduleMarker reports whether a page carries a schedule-table
// heading.
func hasScheduleMarker(tokens []pdf.Token) bool {
	for _, t := range tokens {
		up := strings.ToUpper(t.Text)
		for _, marker := range scheduleMarkers {
			if strings.Contains(up, marker) {
				return true
			}
		}
	}
	return false
}

// scanScheduleRows reads VAV schedule tables row by row. Each visual
// line whose tag matches the seed pattern becomes a candidate record:
// the line's tokens plus the adjacent lines are classified, and the
// value fields are promoted to schedule confidence. Row values sit next
// to their tag, so the seed-proximity tie-break keeps each row's own
// numbers. Pages without a schedule heading produce nothing.
func scanScheduleRows(ctx context.Context, tokens []pdf.Token, page int, classifier *HeuristicClassifier, seedPattern *regexp.Regexp) []candidateRecord {
	if !hasScheduleMarker(tokens) {
		return nil
	}

	lines := groupTokenLines(tokens)

	var records []candidateRecord
	for i, line := range lines {
		seed, ok := lineSeed(line, seedPattern)
		if !ok {
			continue
		}

		row := make([]pdf.Token, 0, len(line)*3)
		if i > 0 {
			row = append(row, lines[i-1]...)
		}
		row = append(row, line...)
		if i+1 < len(lines) {
			row = append(row, lines[i+1]...)
		}

		n := Neighborhood{Seed: seed, Tokens: row, Page: page}
		cands, err := classifier.Classify(ctx, n)
		if err != nil {
			continue
		}
		for j := range cands {
			if cands[j].Kind != FieldBoxID && cands[j].Confidence < confSchedule {
				cands[j].Confidence = confSchedule
			}
		}
		if rec, ok := assembleNeighborhood(n, cands); ok {
			records = append(records, rec)
		}
	}
	return records
}

// groupTokenLines clusters a page's tokens into visual lines. Tokens
// arrive in reading order, so a new line starts whenever the vertical
// gap to the current line's anchor exceeds half the font size.
func groupTokenLines(tokens []pdf.Token) [][]pdf.Token {
	var lines [][]pdf.Token
	var current []pdf.Token
	anchorY := 0.0
	for _, t := range tokens {
		tol := t.FontSize * 0.5
		if tol < 2 {
			tol = 2
		}
		y := t.BBox.CenterY()
		if current == nil || math.Abs(anchorY-y) > tol {
			if current != nil {
				lines = append(lines, current)
			}
			current = []pdf.Token{t}
			anchorY = y
			continue
		}
		current = append(current, t)
	}
	if current != nil {
		lines = append(lines, current)
	}
	return lines
}

func lineSeed(line []pdf.Token, pattern *regexp.Regexp) (pdf.Token, bool) {
	for _, t := range line {
		if pattern.MatchString(t.Text) {
			return t, true
		}
	}
	return pdf.Token{}, false
}
