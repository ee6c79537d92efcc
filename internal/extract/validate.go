package extract

import (
	"fmt"
	"regexp"
)

// defaultInletSizePattern accepts the normalized duct sizes the
// classifiers emit: rectangular dimensions like 10x8, diameters like
// 10".
var defaultInletSizePattern = regexp.MustCompile(`^\d{1,2}x\d{1,2}$|^\d{1,2}"$`)

// validateRecords enforces record invariants. Failing records are
// excluded from the final set and reported through a diagnostic, never
// silently dropped. Returns the surviving records, the diagnostics, and
// the coverage summary: the fraction of surviving records with all
// three fields populated.
func validateRecords(records []VavRecord, opts Options) ([]VavRecord, []Diagnostic, float64) {
	opts = opts.withDefaults()
	valid := make([]VavRecord, 0, len(records))
	var diags []Diagnostic
	complete := 0

	for _, rec := range records {
		if reason := checkRecord(rec, opts); reason != "" {
			diags = append(diags, Diagnostic{
				Code:    DiagValidationFailure,
				Page:    rec.Page,
				BoxID:   rec.BoxID,
				Message: reason,
			})
			continue
		}
		if rec.CFM != nil && rec.InletSize != "" {
			complete++
		}
		valid = append(valid, rec)
	}

	coverage := 0.0
	if len(valid) > 0 {
		coverage = float64(complete) / float64(len(valid))
	}
	return valid, diags, coverage
}

func checkRecord(rec VavRecord, opts Options) string {
	if rec.BoxID == "" {
		return "record has no box identifier"
	}
	if rec.CFM != nil && (*rec.CFM < opts.MinCFM || *rec.CFM > opts.MaxCFM) {
		return fmt.Sprintf("cfm %d outside plausible range [%d, %d]", *rec.CFM, opts.MinCFM, opts.MaxCFM)
	}
	if rec.InletSize != "" && !opts.InletSizePattern.MatchString(rec.InletSize) {
		return fmt.Sprintf("inlet size %q does not match a recognized duct size", rec.InletSize)
	}
	return ""
}
