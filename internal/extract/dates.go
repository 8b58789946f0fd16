package extract

import (
	"regexp"
	"strings"
	"time"
)

// Three date sub-fields live in one free-text block, each behind its own
// named anchor and each independently optional.
const rawDatePattern = `(\d{1,2}[-/]\d{1,2}[-/]\d{4}|\d{4}[-/]\d{1,2}[-/]\d{1,2}|\d{1,2}\s+[A-Za-z]+\s+\d{4})`

var (
	anchorPatterns = map[string]*regexp.Regexp{
		"register": regexp.MustCompile(`(?i)register\s*:\s*` + rawDatePattern),
		"putus":    regexp.MustCompile(`(?i)putus\s*:\s*` + rawDatePattern),
		"upload":   regexp.MustCompile(`(?i)upload\s*:\s*` + rawDatePattern),
	}
	anchorRe  = regexp.MustCompile(`(?i)\b(register|putus|upload)\s*:`)
	bareDates = regexp.MustCompile(rawDatePattern)
)

// dateLayouts is the fixed preference order for calendar parsing; the first
// layout that parses wins.
var dateLayouts = []string{
	"2-1-2006",
	"2/1/2006",
	"2006-1-2",
	"2 January 2006",
}

// indonesianMonths translates month names so the name layout can parse them.
var indonesianMonths = map[string]string{
	"januari": "January", "februari": "February", "maret": "March",
	"april": "April", "mei": "May", "juni": "June", "juli": "July",
	"agustus": "August", "september": "September", "oktober": "October",
	"november": "November", "desember": "December",
}

// anchoredDate finds the date string behind the named anchor and tries to
// parse it. An unparsable date keeps the raw string only.
func anchoredDate(text, anchor string) (string, *time.Time) {
	re, ok := anchorPatterns[anchor]
	if !ok {
		return "", nil
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", nil
	}
	raw := strings.TrimSpace(m[1])
	return raw, parseDate(raw)
}

// parseDate tries the layouts in preference order; nil when none match.
func parseDate(raw string) *time.Time {
	candidate := normalizeMonths(clean(raw))
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, candidate); err == nil {
			return &t
		}
	}
	return nil
}

func normalizeMonths(s string) string {
	lower := strings.ToLower(s)
	for id, en := range indonesianMonths {
		if strings.Contains(lower, id) {
			idx := strings.Index(lower, id)
			return s[:idx] + en + s[idx+len(id):]
		}
	}
	return s
}

// hasDateCue reports whether the block carries any date anchor or bare date.
func hasDateCue(text string) bool {
	return anchorRe.MatchString(text) || bareDates.MatchString(text)
}

// stripDateTail cuts trailing date metadata off a party-name fragment.
func stripDateTail(s string) string {
	if loc := anchorRe.FindStringIndex(s); loc != nil {
		return s[:loc[0]]
	}
	if loc := bareDates.FindStringIndex(s); loc != nil {
		return s[:loc[0]]
	}
	return s
}
