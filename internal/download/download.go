// Package download retrieves the binary documents attached to a decision:
// - scans the detail page for document links by extension/keyword heuristics
// - streams each file under a kind-specific subdirectory, skipping files that
//   already exist locally
// - runs a minimal integrity check (zip self-test, pdf signature + size)
// A failed check only leaves the artifact unverified; it never deletes the
// file or aborts the batch.
package download

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"go-putusan-scraper/internal/fetch"
	"go-putusan-scraper/internal/logx"
	"go-putusan-scraper/internal/model"
)

// minPDFSize is the smallest plausible document; anything under it fails
// verification.
const minPDFSize = 1024

// Downloader fetches decision artifacts sequentially, one job owning one
// instance.
type Downloader struct {
	fetcher  *fetch.Fetcher
	dir      string
	delayMin time.Duration
	delayMax time.Duration
	rng      *rand.Rand

	ok     int
	failed int
	bytes  int64
}

// New creates a Downloader writing under dir.
func New(f *fetch.Fetcher, dir string, delayMin, delayMax time.Duration) *Downloader {
	return &Downloader{
		fetcher:  f,
		dir:      dir,
		delayMin: delayMin,
		delayMax: delayMax,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// docLink is one candidate document found on a detail page.
type docLink struct {
	URL  string
	Kind model.FileKind
}

// Artifacts returns the record with downloadedFiles populated. All failures
// are logged and reflected in counters; the record is always returned.
func (d *Downloader) Artifacts(ctx context.Context, rec model.Decision) model.Decision {
	if rec.DetailLink == "" {
		return rec
	}
	page, err := d.fetcher.Fetch(ctx, rec.DetailLink, fetch.HintAuto)
	if err != nil {
		logx.Warnf("detail page for %s failed: %v", rec.Number, err)
		d.failed++
		return rec
	}
	links := scanDocumentLinks(page, rec.DetailLink)
	if len(links) == 0 {
		logx.Debugf("no document links on detail page of %s", rec.Number)
		return rec
	}
	for _, l := range links {
		if err := d.sleepRandom(ctx); err != nil {
			return rec
		}
		ref, err := d.fetchOne(ctx, rec.Number, l)
		if err != nil {
			logx.Warnf("download %s for %s failed: %v", l.URL, rec.Number, err)
			d.failed++
			continue
		}
		d.ok++
		rec.Files = append(rec.Files, ref)
	}
	return rec
}

// fetchOne streams one document to disk, or reuses a same-named local file.
func (d *Downloader) fetchOne(ctx context.Context, number string, l docLink) (model.FileRef, error) {
	dir := filepath.Join(d.dir, string(l.Kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return model.FileRef{}, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	local := filepath.Join(dir, sanitize(number)+"."+string(l.Kind))

	if fi, err := os.Stat(local); err == nil {
		logx.Debugf("already downloaded: %s", local)
		return d.makeRef(l, local, fi.Size()), nil
	}

	resp, err := d.fetcher.Stream(ctx, l.URL)
	if err != nil {
		return model.FileRef{}, err
	}
	defer resp.Body.Close()

	f, err := os.Create(local)
	if err != nil {
		return model.FileRef{}, fmt.Errorf("create %s: %w", local, err)
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return model.FileRef{}, fmt.Errorf("write %s: %w", local, err)
	}
	d.bytes += n
	logx.Infof("downloaded %s (%d bytes)", local, n)
	return d.makeRef(l, local, n), nil
}

func (d *Downloader) makeRef(l docLink, local string, size int64) model.FileRef {
	return model.FileRef{
		Kind:      l.Kind,
		SourceURL: l.URL,
		LocalPath: local,
		SizeBytes: size,
		Verified:  verify(l.Kind, local),
	}
}

// Counters reports download successes, failures and bytes written.
func (d *Downloader) Counters() (ok, failed int, bytes int64) {
	return d.ok, d.failed, d.bytes
}

var onclickURLRe = regexp.MustCompile(`(?i)(?:window\.open|location\.href\s*=)\s*\(?['"]([^'"]+)['"]`)

// scanDocumentLinks finds candidate document URLs on a detail page:
// href with a known extension, href with a download keyword, or a URL inside
// an inline script handler. Duplicate URLs are collapsed.
func scanDocumentLinks(content, base string) []docLink {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []docLink
	add := func(rawURL string) {
		u := absolutize(base, rawURL)
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, docLink{URL: u, Kind: kindOf(u)})
	}
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		lower := strings.ToLower(href)
		switch {
		case strings.HasSuffix(lower, ".pdf"), strings.HasSuffix(lower, ".zip"):
			add(href)
		case strings.Contains(lower, "download"):
			add(href)
		}
		if onclick, ok := a.Attr("onclick"); ok {
			if m := onclickURLRe.FindStringSubmatch(onclick); m != nil {
				add(m[1])
			}
		}
	})
	return out
}

// kindOf infers the artifact kind from the URL; pdf is the site's default.
func kindOf(u string) model.FileKind {
	lower := strings.ToLower(u)
	if strings.HasSuffix(lower, ".zip") || strings.Contains(lower, "/zip/") {
		return model.FileZIP
	}
	return model.FilePDF
}

// verify runs the kind-specific lightweight integrity check.
func verify(kind model.FileKind, path string) bool {
	var ok bool
	switch kind {
	case model.FileZIP:
		ok = verifyZip(path)
	default:
		ok = verifyPDF(path)
	}
	if !ok {
		logx.Warnf("integrity check failed: %s", path)
	}
	return ok
}

// verifyPDF checks the format signature and a minimum plausible size.
func verifyPDF(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.Size() < minPDFSize {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	sig := make([]byte, 5)
	if _, err := io.ReadFull(f, sig); err != nil {
		return false
	}
	return string(sig) == "%PDF-"
}

// verifyZip opens the container and reads every entry, which exercises the
// per-entry CRC check.
func verifyZip(path string) bool {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return false
	}
	defer zr.Close()
	for _, zf := range zr.File {
		rc, err := zf.Open()
		if err != nil {
			return false
		}
		_, err = io.Copy(io.Discard, rc)
		rc.Close()
		if err != nil {
			return false
		}
	}
	return true
}

var unsafeChars = regexp.MustCompile(`[^\w.\-]+`)

// sanitize turns a decision number into a safe file name.
func sanitize(number string) string {
	s := unsafeChars.ReplaceAllString(number, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "unnamed"
	}
	return s
}

func (d *Downloader) sleepRandom(ctx context.Context) error {
	if d.delayMax <= 0 {
		return nil
	}
	delay := d.delayMin
	if d.delayMax > d.delayMin {
		delay += time.Duration(d.rng.Int63n(int64(d.delayMax - d.delayMin)))
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// absolutize resolves a document link against the detail page URL.
func absolutize(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "javascript:") {
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
