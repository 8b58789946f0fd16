// Package dedupe collapses accumulated records by their natural key.
package dedupe

import "go-putusan-scraper/internal/model"

// Records removes duplicates keyed on Number, first occurrence wins, first
// seen order preserved. Records with an empty key cannot be deduplicated
// safely and are dropped.
func Records(in []model.Decision) []model.Decision {
	seen := make(map[string]struct{}, len(in))
	out := make([]model.Decision, 0, len(in))
	for _, d := range in {
		if d.Number == "" {
			continue
		}
		if _, ok := seen[d.Number]; ok {
			continue
		}
		seen[d.Number] = struct{}{}
		out = append(out, d)
	}
	return out
}
