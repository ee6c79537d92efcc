package extract

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/hvactools/vav-extract/internal/pdf"
)

// candidateRecord is one neighborhood's assembled fields before the
// cross-page merge. The seed token keeps the record anchored in space
// so overflow recovery can measure distance to it.
type candidateRecord struct {
	boxID  string
	page   int
	seed   pdf.Token
	fields map[FieldKind]FieldCandidate
}

// assembleNeighborhood reduces a neighborhood's candidates to at most
// one per field kind. The box identifier is anchored to the seed: when
// two callouts lie within one clustering radius each neighborhood
// contains both tags, and each must keep its own. For value fields a
// strictly higher confidence wins; an exact tie goes to the candidate
// nearer the seed, then to the one encountered first in reading order.
// Neighborhoods without a box identifier produce no record.
func assembleNeighborhood(n Neighborhood, candidates []FieldCandidate) (candidateRecord, bool) {
	fields := make(map[FieldKind]FieldCandidate, 3)
	for _, cand := range candidates {
		if cand.Kind == FieldBoxID {
			continue
		}
		best, ok := fields[cand.Kind]
		if !ok || cand.Confidence > best.Confidence ||
			(cand.Confidence == best.Confidence && seedDistance(n, cand) < seedDistance(n, best)) {
			fields[cand.Kind] = cand
		}
	}

	boxID, ok := seedBoxID(n, candidates)
	if !ok || boxID.Value == "" {
		return candidateRecord{}, false
	}
	fields[FieldBoxID] = boxID

	return candidateRecord{
		boxID:  boxID.Value,
		page:   n.Page,
		seed:   n.Seed,
		fields: fields,
	}, true
}

// seedBoxID picks the record's box identifier. The candidate read from
// the seed token itself always wins, since the neighborhood exists
// because that token matched the tag pattern. Only when no candidate is
// anchored at the seed (a model guess carries no tokens) does the
// highest confidence decide.
func seedBoxID(n Neighborhood, candidates []FieldCandidate) (FieldCandidate, bool) {
	var best FieldCandidate
	found := false
	for _, cand := range candidates {
		if cand.Kind != FieldBoxID {
			continue
		}
		if len(cand.Tokens) > 0 && cand.Tokens[0] == n.Seed {
			return cand, true
		}
		if !found || cand.Confidence > best.Confidence {
			best = cand
			found = true
		}
	}
	return best, found
}

func seedDistance(n Neighborhood, cand FieldCandidate) float64 {
	if len(cand.Tokens) == 0 {
		return math.Inf(1)
	}
	return n.Seed.DistanceTo(cand.Tokens[0])
}

// attachOverflow re-attempts a page's unassigned value candidates
// against that page's records. Each candidate goes to the nearest
// record still missing its field kind, at reduced confidence, bounded
// by twice the clustering radius so distant strays stay noise.
func attachOverflow(records []candidateRecord, overflow []FieldCandidate, page int, radius float64) {
	for _, cand := range overflow {
		if cand.Kind == FieldBoxID || len(cand.Tokens) == 0 {
			continue
		}

		bestIdx := -1
		bestDist := 2 * radius
		for i := range records {
			if records[i].page != page {
				continue
			}
			if _, taken := records[i].fields[cand.Kind]; taken {
				continue
			}
			dist := records[i].seed.DistanceTo(cand.Tokens[0])
			if dist < bestDist {
				bestDist = dist
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			continue
		}

		recovered := cand
		recovered.Confidence *= 0.8
		records[bestIdx].fields[cand.Kind] = recovered
	}
}

// mergeRecords merges candidate records by normalized box identifier.
// The merge is content-keyed and processes records in page order, so
// the final set does not depend on how page processing was scheduled.
// Per field the strictly higher confidence wins; page references are
// unioned.
func mergeRecords(records []candidateRecord, opts Options) []VavRecord {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].page < records[j].page
	})

	type merged struct {
		fields map[FieldKind]FieldCandidate
		pages  []int
	}
	byID := make(map[string]*merged)
	var order []string

	for _, rec := range records {
		m, ok := byID[rec.boxID]
		if !ok {
			m = &merged{fields: make(map[FieldKind]FieldCandidate, 3)}
			byID[rec.boxID] = m
			order = append(order, rec.boxID)
		}
		for kind, cand := range rec.fields {
			best, exists := m.fields[kind]
			if !exists || cand.Confidence > best.Confidence {
				m.fields[kind] = cand
			}
		}
		m.pages = appendPage(m.pages, rec.page)
	}

	out := make([]VavRecord, 0, len(order))
	for _, id := range order {
		m := byID[id]
		out = append(out, buildRecord(id, m.fields, m.pages, opts))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return compareBoxIDs(out[i].BoxID, out[j].BoxID) < 0
	})
	return out
}

func buildRecord(boxID string, fields map[FieldKind]FieldCandidate, pages []int, opts Options) VavRecord {
	rec := VavRecord{
		BoxID: boxID,
		Page:  pages[0],
		Pages: pages,
	}

	confSum := 0.0
	confCount := 0
	if cand, ok := fields[FieldBoxID]; ok {
		confSum += cand.Confidence
		confCount++
	}
	if cand, ok := fields[FieldCFM]; ok {
		if value, err := strconv.Atoi(cand.Value); err == nil {
			rec.CFM = &value
			confSum += cand.Confidence
			confCount++
		}
	}
	if cand, ok := fields[FieldInletSize]; ok {
		rec.InletSize = cand.Value
		confSum += cand.Confidence
		confCount++
	}

	if rec.InletSize == "" && opts.EstimateInlets && rec.CFM != nil {
		rec.InletSize = EstimateInletSize(*rec.CFM)
		rec.InletEstimated = rec.InletSize != ""
	}

	if confCount > 0 {
		rec.Confidence = confSum / float64(confCount)
	}
	return rec
}

func appendPage(pages []int, page int) []int {
	for _, p := range pages {
		if p == page {
			return pages
		}
	}
	pages = append(pages, page)
	sort.Ints(pages)
	return pages
}

// compareBoxIDs orders tags by prefix, then by numeric suffix, so
// VAV-2 sorts before VAV-10.
func compareBoxIDs(a, b string) int {
	ai := strings.LastIndex(a, "-")
	bi := strings.LastIndex(b, "-")
	if ai < 0 || bi < 0 {
		return strings.Compare(a, b)
	}
	if cmp := strings.Compare(a[:ai], b[:bi]); cmp != 0 {
		return cmp
	}
	an, aerr := strconv.Atoi(a[ai+1:])
	bn, berr := strconv.Atoi(b[bi+1:])
	if aerr != nil || berr != nil {
		return strings.Compare(a, b)
	}
	switch {
	case an < bn:
		return -1
	case an > bn:
		return 1
	default:
		return 0
	}
}
