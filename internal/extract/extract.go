// Package extract turns raw listing markup into decision records:
// - an ordered list of container strategies, most specific first, where the
//   first strategy yielding at least one match wins outright
// - per-field sub-extraction that degrades missing fields to empty instead of
//   discarding the record, except for the required key fields
package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"go-putusan-scraper/internal/logx"
	"go-putusan-scraper/internal/model"
)

// Strategy locates the repeating record container in one markup variant.
type Strategy struct {
	Name     string
	Selector string
}

// DefaultStrategies is the hand-tuned order for the site's known markup
// variants. Generic fallbacks come last.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "sidebar-spost", Selector: "#popular-post-list-sidebar .spost"},
		{Name: "spost", Selector: "div.spost"},
		{Name: "putusan-item", Selector: "div.putusan-item"},
		{Name: "table-row", Selector: "table tbody tr"},
	}
}

// Extractor parses listing pages. Relative links are absolutized against
// the base URL.
type Extractor struct {
	base       string
	strategies []Strategy
	required   map[string]bool
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithStrategies replaces the default container strategy list.
func WithStrategies(s []Strategy) Option {
	return func(e *Extractor) { e.strategies = s }
}

// WithRequiredFields sets the key fields whose absence drops the record.
// Recognized names: number, date, category.
func WithRequiredFields(fields []string) Option {
	return func(e *Extractor) {
		e.required = make(map[string]bool, len(fields))
		for _, f := range fields {
			e.required[strings.ToLower(strings.TrimSpace(f))] = true
		}
	}
}

// New creates an Extractor for pages under baseURL.
func New(baseURL string, opts ...Option) *Extractor {
	e := &Extractor{
		base:       baseURL,
		strategies: DefaultStrategies(),
		required:   map[string]bool{"number": true, "date": true, "category": true},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract returns the records found in content, possibly none. Malformed
// input never fails; malformed sub-parts are skipped per record.
func (e *Extractor) Extract(content string) []model.Decision {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		logx.Warnf("parse listing html: %v", err)
		return nil
	}
	containers, strategy := e.locate(doc)
	if containers == nil {
		logx.Debugf("no container strategy matched")
		return nil
	}
	var out []model.Decision
	containers.Each(func(_ int, s *goquery.Selection) {
		if d, ok := e.extractOne(s); ok {
			out = append(out, d)
		}
	})
	logx.Infof("extracted %d records via strategy %q", len(out), strategy)
	return out
}

// locate tries the strategies in order; the first with >= 1 match wins.
func (e *Extractor) locate(doc *goquery.Document) (*goquery.Selection, string) {
	for _, s := range e.strategies {
		sel := doc.Find(s.Selector)
		if sel.Length() > 0 {
			logx.Debugf("container strategy %q matched %d elements", s.Name, sel.Length())
			return sel, s.Name
		}
	}
	return nil, ""
}

var (
	numberRe = regexp.MustCompile(`(?i)nomor[\s:]+([0-9][\w ./\-]*[\w/])`)
	// the class above admits spaces, so a match over flowing container text
	// can run into the date block; the tail is cut at the first anchor word
	numberTailRe = regexp.MustCompile(`(?i)\s+(?:register|putus|upload|tanggal)\b.*$`)
	numericRe    = regexp.MustCompile(`([0-9][0-9.,]*)`)
	vsSplitRe    = regexp.MustCompile(`(?i)\s+vs\.?\s+`)
	crumbSplit   = regexp.MustCompile(`\s*[›>/]\s*`)
)

// extractOne pulls one record out of a container. Every field is attempted
// independently; only missing required fields drop the record.
func (e *Extractor) extractOne(s *goquery.Selection) (model.Decision, bool) {
	raw := s.Text()
	text := clean(raw)
	d := model.Decision{
		Status:    statusOf(text),
		ScrapedAt: time.Now(),
	}

	if link := s.Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		return strings.Contains(href, "/direktori/putusan/") || strings.Contains(strings.ToLower(a.Text()), "putusan")
	}).First(); link.Length() > 0 {
		d.Title = clean(link.Text())
		if href, ok := link.Attr("href"); ok {
			d.DetailLink = abs(e.base, href)
		}
	} else if first := s.Find("a").First(); first.Length() > 0 {
		d.Title = clean(first.Text())
		if href, ok := first.Attr("href"); ok {
			d.DetailLink = abs(e.base, href)
		}
	}

	d.Number = extractNumber(s, d.Title, text)

	d.RegisterDate, d.RegisteredAt = anchoredDate(text, "register")
	d.DecisionDate, d.DecidedAt = anchoredDate(text, "putus")
	d.UploadDate, d.UploadedAt = anchoredDate(text, "upload")

	d.Court, d.Category, d.Subcategory = breadcrumb(s, raw)

	if hasDateCue(text) {
		d.Plaintiff, d.Defendant = parties(raw)
	}

	d.ViewCount = counterNear(s, "icon-eye", "view")
	d.DownloadCount = counterNear(s, "icon-download", "download")

	if a := s.Find(".entry-content, .abstrak").First(); a.Length() > 0 {
		d.Abstract = clean(a.Text())
	}

	if e.required["number"] && d.Number == "" {
		return model.Decision{}, false
	}
	if e.required["date"] && d.RegisterDate == "" && d.DecisionDate == "" && d.UploadDate == "" {
		return model.Decision{}, false
	}
	if e.required["category"] && d.Category == "" {
		return model.Decision{}, false
	}
	return d, true
}

// extractNumber tries a dedicated cell first, then the anchored pattern in
// the title and the container text.
func extractNumber(s *goquery.Selection, title, text string) string {
	if cell := s.Find(".nomor, td.nomor").First(); cell.Length() > 0 {
		if v := clean(cell.Text()); v != "" {
			return v
		}
	}
	for _, hay := range []string{title, text} {
		if m := numberRe.FindStringSubmatch(hay); m != nil {
			return strings.TrimSpace(numberTailRe.ReplaceAllString(m[1], ""))
		}
	}
	return ""
}

// breadcrumb maps the trailing segments of the category path onto
// category/subcategory/court, in page order.
func breadcrumb(s *goquery.Selection, text string) (court, category, subcategory string) {
	var segs []string
	s.Find(".small a, .breadcrumb a").Each(func(_ int, a *goquery.Selection) {
		if v := clean(a.Text()); v != "" {
			segs = append(segs, v)
		}
	})
	if len(segs) == 0 {
		for _, line := range strings.Split(text, "\n") {
			if strings.ContainsAny(line, "›>") {
				for _, p := range crumbSplit.Split(line, -1) {
					if v := clean(p); v != "" {
						segs = append(segs, v)
					}
				}
				break
			}
		}
	}
	// leading "Direktori" segment is navigation, not data
	if len(segs) > 0 && strings.EqualFold(segs[0], "direktori") {
		segs = segs[1:]
	}
	switch n := len(segs); {
	case n >= 3:
		category, subcategory, court = segs[n-3], segs[n-2], segs[n-1]
	case n == 2:
		category, court = segs[0], segs[1]
	case n == 1:
		category = segs[0]
	}
	return court, category, subcategory
}

// parties splits the first line holding a " vs " separator.
func parties(text string) (plaintiff, defendant string) {
	for _, line := range strings.Split(text, "\n") {
		if !vsSplitRe.MatchString(line) {
			continue
		}
		parts := vsSplitRe.Split(line, 2)
		if len(parts) != 2 {
			return "", ""
		}
		return clean(parts[0]), clean(stripDateTail(parts[1]))
	}
	return "", ""
}

// counterNear reads the numeric text adjacent to a small icon marker.
// Non-numeric text is ignored.
func counterNear(s *goquery.Selection, iconClass, titleHint string) int {
	sel := s.Find("i[class*='" + iconClass + "'], [title*='" + titleHint + "']").First()
	if sel.Length() == 0 {
		return 0
	}
	hay := clean(sel.Parent().Text())
	m := numericRe.FindStringSubmatch(hay)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(strings.NewReplacer(".", "", ",", "").Replace(m[1]))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func statusOf(text string) model.Status {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "berkekuatan hukum tetap"):
		return model.StatusFinal
	case strings.Contains(lower, "tidak dipublikasi"), strings.Contains(lower, "belum dipublikasi"):
		return model.StatusUnpublished
	default:
		return model.StatusUnknown
	}
}

// clean collapses all whitespace runs within a fragment to single spaces.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// abs resolves a possibly-relative link against the base URL.
func abs(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	bu, err := url.Parse(base)
	if err != nil {
		return ref
	}
	ru, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return bu.ResolveReference(ru).String()
}
