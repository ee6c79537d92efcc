package pdf

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

const defaultGlyphHeight = 12.0

// PageTokens extracts word-level tokens from a single page in reading
// order: top-to-bottom by line, left-to-right within a line. Glyph runs
// from the content stream are merged into words by line membership and
// horizontal gap. A page with no positioned text returns an
// EmptyPageError; callers recover from it and continue with the
// remaining pages.
func (d *Document) PageTokens(pageNum int) (tokens []Token, err error) {
	if d.closed {
		return nil, fmt.Errorf("document is closed: %s", d.path)
	}
	if pageNum < 1 || pageNum > d.pages {
		return nil, fmt.Errorf("invalid page number %d (document has %d pages)", pageNum, d.pages)
	}

	// Malformed content streams can panic inside the content parser.
	defer func() {
		if r := recover(); r != nil {
			tokens = nil
			err = fmt.Errorf("panic during text extraction on page %d: %v", pageNum, r)
		}
	}()

	page := d.reader.Page(pageNum)
	if page.V.IsNull() {
		return nil, &EmptyPageError{Page: pageNum}
	}

	content := page.Content()
	tokens = mergeGlyphRuns(content.Text, pageNum)
	if len(tokens) == 0 {
		return nil, &EmptyPageError{Page: pageNum}
	}
	return tokens, nil
}

// glyphRun is a single positioned text-show operation. Depending on how
// the producer wrote the content stream this can be one character, a
// word fragment, or a whole phrase with embedded spaces.
type glyphRun struct {
	text     string
	x, y, w  float64
	font     string
	fontSize float64
	space    bool
}

// mergeGlyphRuns merges raw positioned text into word tokens. Runs are
// grouped into lines by vertical proximity, lines are emitted top to
// bottom, and within a line runs are joined while the horizontal gap
// between them stays below a fraction of the font size.
func mergeGlyphRuns(texts []pdf.Text, pageNum int) []Token {
	runs := make([]glyphRun, 0, len(texts))
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		r := glyphRun{
			text:     t.S,
			x:        t.X,
			y:        t.Y,
			w:        t.W,
			font:     t.Font,
			fontSize: t.FontSize,
			space:    strings.TrimSpace(t.S) == "",
		}
		if r.space {
			runs = append(runs, r)
			continue
		}
		runs = append(runs, splitRun(r)...)
	}
	if len(runs) == 0 {
		return nil
	}

	lines := groupLines(runs)

	var tokens []Token
	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool {
			return line[i].x < line[j].x
		})
		tokens = append(tokens, joinLine(line, pageNum)...)
	}
	return tokens
}

// splitRun breaks a run with embedded whitespace into one run per word,
// approximating each word's position by its rune offset within the run.
func splitRun(r glyphRun) []glyphRun {
	if !strings.ContainsAny(r.text, " \t") {
		return []glyphRun{r}
	}

	runes := []rune(r.text)
	perRune := r.w / float64(len(runes))

	var parts []glyphRun
	start := -1
	for i := 0; i <= len(runes); i++ {
		atSpace := i == len(runes) || runes[i] == ' ' || runes[i] == '\t'
		if !atSpace {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			word := r
			word.text = string(runes[start:i])
			word.x = r.x + perRune*float64(start)
			word.w = perRune * float64(i-start)
			parts = append(parts, word)
			start = -1
		}
	}
	return parts
}

// groupLines clusters runs into lines by vertical proximity and returns
// the lines ordered top to bottom.
func groupLines(runs []glyphRun) [][]glyphRun {
	sorted := make([]glyphRun, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].y != sorted[j].y {
			return sorted[i].y > sorted[j].y
		}
		return sorted[i].x < sorted[j].x
	})

	var lines [][]glyphRun
	var current []glyphRun
	anchorY := 0.0
	for _, r := range sorted {
		tol := lineTolerance(r.fontSize)
		if current == nil || anchorY-r.y > tol {
			if current != nil {
				lines = append(lines, current)
			}
			current = []glyphRun{r}
			anchorY = r.y
			continue
		}
		current = append(current, r)
	}
	if current != nil {
		lines = append(lines, current)
	}
	return lines
}

func lineTolerance(fontSize float64) float64 {
	if fontSize <= 0 {
		fontSize = defaultGlyphHeight
	}
	tol := fontSize * 0.5
	if tol < 2.0 {
		tol = 2.0
	}
	return tol
}

// joinLine merges adjacent runs on a single line into word tokens. A
// whitespace run or a horizontal gap wider than a quarter of the font
// size ends the current word.
func joinLine(line []glyphRun, pageNum int) []Token {
	var tokens []Token
	var word []glyphRun

	flush := func() {
		if len(word) == 0 {
			return
		}
		tokens = append(tokens, buildToken(word, pageNum))
		word = nil
	}

	for _, r := range line {
		if r.space {
			flush()
			continue
		}
		if len(word) > 0 {
			prev := word[len(word)-1]
			gap := r.x - (prev.x + prev.w)
			if gap > wordGap(prev.fontSize) {
				flush()
			}
		}
		word = append(word, r)
	}
	flush()
	return tokens
}

func wordGap(fontSize float64) float64 {
	if fontSize <= 0 {
		fontSize = defaultGlyphHeight
	}
	gap := fontSize * 0.25
	if gap < 1.0 {
		gap = 1.0
	}
	return gap
}

func buildToken(word []glyphRun, pageNum int) Token {
	var sb strings.Builder
	first := word[0]
	last := word[len(word)-1]

	minY := first.y
	maxSize := first.fontSize
	for _, r := range word {
		sb.WriteString(r.text)
		if r.y < minY {
			minY = r.y
		}
		if r.fontSize > maxSize {
			maxSize = r.fontSize
		}
	}

	height := maxSize
	if height <= 0 {
		height = defaultGlyphHeight
	}

	return Token{
		Text: sb.String(),
		Page: pageNum,
		BBox: Rect{
			X0: first.x,
			Y0: minY,
			X1: last.x + last.w,
			Y1: minY + height,
		},
		Font:     first.font,
		FontSize: maxSize,
	}
}
