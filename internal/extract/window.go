package extract

import (
	"regexp"
	"sort"

	"github.com/hvactools/vav-extract/internal/pdf"
)

// defaultBoxIDPattern matches VAV box tags as they appear on drawings,
// e.g. VAV-12, VAVB5-01, vav-7. Matched values are normalized to upper
// case.
var defaultBoxIDPattern = regexp.MustCompile(`(?i)VAVB?\d*-\d+`)

// BuildNeighborhoods partitions a page's tokens into spatial
// neighborhoods. Each token matching seedPattern (nil selects the
// standard VAV tag pattern) seeds one neighborhood containing every
// token within radius of it. Tokens reached by no seed go into a
// single trailing overflow neighborhood so later recovery can still
// use them. Output order is stable for identical input: seeds sorted
// top-to-bottom, left-to-right.
func BuildNeighborhoods(tokens []pdf.Token, page int, radius float64, seedPattern *regexp.Regexp) []Neighborhood {
	if seedPattern == nil {
		seedPattern = defaultBoxIDPattern
	}
	var seeds []pdf.Token
	for _, t := range tokens {
		if seedPattern.MatchString(t.Text) {
			seeds = append(seeds, t)
		}
	}

	sort.SliceStable(seeds, func(i, j int) bool {
		if seeds[i].BBox.CenterY() != seeds[j].BBox.CenterY() {
			return seeds[i].BBox.CenterY() > seeds[j].BBox.CenterY()
		}
		return seeds[i].BBox.CenterX() < seeds[j].BBox.CenterX()
	})

	claimed := make([]bool, len(tokens))
	neighborhoods := make([]Neighborhood, 0, len(seeds)+1)

	for _, seed := range seeds {
		var members []pdf.Token
		for i, t := range tokens {
			if seed.DistanceTo(t) <= radius {
				members = append(members, t)
				claimed[i] = true
			}
		}
		neighborhoods = append(neighborhoods, Neighborhood{
			Seed:   seed,
			Tokens: members,
			Anchor: unionBBox(members),
			Page:   page,
		})
	}

	var leftover []pdf.Token
	for i, t := range tokens {
		if !claimed[i] {
			leftover = append(leftover, t)
		}
	}
	if len(leftover) > 0 {
		neighborhoods = append(neighborhoods, Neighborhood{
			Tokens:   leftover,
			Anchor:   unionBBox(leftover),
			Page:     page,
			Overflow: true,
		})
	}

	return neighborhoods
}

func unionBBox(tokens []pdf.Token) pdf.Rect {
	if len(tokens) == 0 {
		return pdf.Rect{}
	}
	box := tokens[0].BBox
	for _, t := range tokens[1:] {
		if t.BBox.X0 < box.X0 {
			box.X0 = t.BBox.X0
		}
		if t.BBox.Y0 < box.Y0 {
			box.Y0 = t.BBox.Y0
		}
		if t.BBox.X1 > box.X1 {
			box.X1 = t.BBox.X1
		}
		if t.BBox.Y1 > box.Y1 {
			box.Y1 = t.BBox.Y1
		}
	}
	return box
}
