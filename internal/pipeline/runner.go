// Package pipeline drives the page-by-page scraping loop:
// - optional resume from the last checkpoint
// - fetch then extract for each listing page, skipping failed pages
// - periodic checkpointing, plus a forced save on interruption or fault
// - final dedupe, optional sequential artifact downloads, archive upsert
package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go-putusan-scraper/internal/checkpoint"
	"go-putusan-scraper/internal/config"
	"go-putusan-scraper/internal/dedupe"
	"go-putusan-scraper/internal/download"
	"go-putusan-scraper/internal/extract"
	"go-putusan-scraper/internal/fetch"
	"go-putusan-scraper/internal/logx"
	"go-putusan-scraper/internal/model"
	"go-putusan-scraper/internal/store"
)

// Runner executes one scraping job. It owns the fetcher, the accumulator and
// the checkpoint store for the lifetime of the job; nothing here is shared
// across goroutines.
type Runner struct {
	cfg       *config.Config
	fetcher   *fetch.Fetcher
	extractor *extract.Extractor
	store     *store.SQLite // nil in simple mode
	ckpt      *checkpoint.Store
	dl        *download.Downloader

	records []model.Decision
	rng     *rand.Rand
}

// RunOptions select the page range and behavior of one run.
type RunOptions struct {
	StartPage int
	MaxPages  int // 0 = unbounded
	Resume    bool
	Download  bool
}

// New creates a Runner. st may be nil (simple mode, no archive).
func New(cfg *config.Config, st *store.SQLite, f *fetch.Fetcher, ck *checkpoint.Store) *Runner {
	return &Runner{
		cfg:       cfg,
		fetcher:   f,
		extractor: extract.New(cfg.BaseURL, extract.WithRequiredFields(cfg.RequiredFields)),
		store:     st,
		ckpt:      ck,
		dl:        download.New(f, cfg.Download.Dir, cfg.Download.Delay.MinDuration(), cfg.Download.Delay.MaxDuration()),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run walks the listing until an empty page, the page bound, cancellation or
// a fault. Interruption and fault paths always flush a checkpoint; cleanup
// runs on every exit.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (err error) {
	page := opts.StartPage
	if page < 1 {
		page = 1
	}
	if opts.Resume {
		if cp := r.ckpt.Load(); cp != nil {
			logx.Infof("resuming from checkpoint: page %d, %d records", cp.LastPage, len(cp.Records))
			page = cp.LastPage + 1
			r.records = cp.Records
		}
	}
	lastCompleted := page - 1

	defer func() {
		if cerr := r.fetcher.Close(); cerr != nil {
			logx.Warnf("cleanup: %v", cerr)
		}
	}()
	defer func() {
		if rec := recover(); rec != nil {
			r.saveCheckpoint(lastCompleted, opts.MaxPages)
			err = fmt.Errorf("pipeline fault at page %d: %v", page, rec)
		}
	}()

loop:
	for {
		if opts.MaxPages > 0 && page > opts.MaxPages {
			logx.Infof("page bound %d reached", opts.MaxPages)
			break
		}
		select {
		case <-ctx.Done():
			logx.Warnf("interrupted, saving checkpoint at page %d", lastCompleted)
			r.saveCheckpoint(lastCompleted, opts.MaxPages)
			break loop
		default:
		}

		pageURL := fmt.Sprintf("%s?page=%d", r.cfg.DirektoriURL(), page)
		logx.Infof("scraping page %d: %s", page, pageURL)
		content, ferr := r.fetcher.Fetch(ctx, pageURL, fetch.HintAuto)
		if ferr != nil {
			if ctx.Err() != nil {
				logx.Warnf("interrupted, saving checkpoint at page %d", lastCompleted)
				r.saveCheckpoint(lastCompleted, opts.MaxPages)
				break
			}
			// page skipped, not fatal; the fetcher already retried internally
			logx.Warnf("page %d skipped: %v", page, ferr)
			lastCompleted = page
			page++
			if err := r.pageDelay(ctx); err != nil {
				r.saveCheckpoint(lastCompleted, opts.MaxPages)
				break
			}
			continue
		}

		recs := r.extractor.Extract(content)
		if len(recs) == 0 {
			// the listing ends contiguously; an empty page means end of data
			logx.Infof("no records on page %d, treating as end of data", page)
			lastCompleted = page
			break
		}
		r.records = append(r.records, recs...)
		lastCompleted = page
		logx.Infof("page %d done: %d records, %d accumulated", page, len(recs), len(r.records))

		if page%r.cfg.Checkpoint.EveryPages == 0 {
			r.saveCheckpoint(lastCompleted, opts.MaxPages)
			logx.Infof("checkpoint saved at page %d", page)
		}
		page++
		if err := r.pageDelay(ctx); err != nil {
			logx.Warnf("interrupted, saving checkpoint at page %d", lastCompleted)
			r.saveCheckpoint(lastCompleted, opts.MaxPages)
			break
		}
	}

	r.records = dedupe.Records(r.records)
	logx.Infof("scraping finished: %d unique records", len(r.records))

	if opts.Download {
		if r.downloadAll(ctx) {
			r.saveCheckpoint(lastCompleted, opts.MaxPages)
		}
	}
	if r.store != nil {
		for _, d := range r.records {
			if uerr := r.store.UpsertDecision(ctx, d); uerr != nil {
				logx.Warnf("archive decision %s: %v", d.Number, uerr)
			}
		}
	}
	return nil
}

// downloadAll enriches records with artifacts, strictly sequentially. It
// reports whether an interrupt cut the batch short so the caller can flush a
// checkpoint for the already-scraped records.
func (r *Runner) downloadAll(ctx context.Context) bool {
	for i := range r.records {
		if ctx.Err() != nil {
			logx.Warnf("interrupted during downloads after %d of %d records", i, len(r.records))
			return true
		}
		r.records[i] = r.dl.Artifacts(ctx, r.records[i])
	}
	return ctx.Err() != nil
}

// Records returns the deduplicated accumulator.
func (r *Runner) Records() []model.Decision { return r.records }

// Stats merges fetcher and downloader counters with the record count.
func (r *Runner) Stats() model.Stats {
	st := r.fetcher.Stats()
	st.DownloadsOK, st.DownloadsFailed, st.BytesDownloaded = r.dl.Counters()
	st.RecordCount = len(r.records)
	return st
}

// saveCheckpoint writes the current state; a persistence failure is logged
// and surfaced in counters but never aborts the loop.
func (r *Runner) saveCheckpoint(lastPage, maxPages int) {
	if lastPage < 0 {
		lastPage = 0
	}
	total := maxPages
	if total <= 0 {
		total = lastPage + 100
	}
	if err := r.ckpt.Save(r.records, lastPage, total); err != nil {
		logx.Errorf("save checkpoint: %v", err)
	}
}

// pageDelay enforces the randomized inter-page delay regardless of page
// outcome.
func (r *Runner) pageDelay(ctx context.Context) error {
	max := r.cfg.Delay.MaxDuration()
	if max <= 0 {
		return nil
	}
	d := r.cfg.Delay.MinDuration()
	if max > d {
		d += time.Duration(r.rng.Int63n(int64(max - d)))
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
