// Command line entry point:
// - parses flags and settings.yaml
// - initializes logging, the fetcher and the archive database
// - supports a connectivity probe (-probe) and simple mode (no database)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go-putusan-scraper/internal/checkpoint"
	"go-putusan-scraper/internal/config"
	"go-putusan-scraper/internal/export"
	"go-putusan-scraper/internal/fetch"
	"go-putusan-scraper/internal/logx"
	"go-putusan-scraper/internal/pipeline"
	"go-putusan-scraper/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", "settings.yaml", "path to settings.yaml")
		startPage  = flag.Int("start", 1, "first listing page to scrape")
		maxPages   = flag.Int("pages", 0, "last page to scrape (0 = until empty page)")
		resume     = flag.Bool("resume", false, "resume from the last checkpoint")
		downloads  = flag.Bool("download", false, "download decision documents (pdf/zip)")
		format     = flag.String("format", "json", "export format: json, csv or xlsx")
		outPath    = flag.String("out", "", "export path (default data/putusan_<timestamp>.<ext>)")
		fromDB     = flag.Bool("from-db", false, "export the accumulated archive instead of this run's records")
		reset      = flag.Bool("reset", false, "clear the archive before scraping")
		probe      = flag.Bool("probe", false, "fetch one listing page, report and exit")
		debug      = flag.Bool("debug", false, "force debug log level")
	)
	flag.Parse()

	// 1) load config; a missing file falls back to defaults
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg = config.Default()
		} else {
			log.Fatalf("load config: %v", err)
		}
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	// 2) logging and working directories
	logx.Init(cfg.LogLevel, cfg.LogFormat, cfg.LogColor, cfg.LogDir)
	if err := cfg.EnsureDirs(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	// 3) fetcher with browser fallback; Ctrl-C cancels the context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	f, err := fetch.New(fetch.OptionsFrom(cfg))
	if err != nil {
		log.Fatalf("fetcher: %v", err)
	}

	if *probe {
		// 4) probe: one page, one verdict, then exit
		url := fmt.Sprintf("%s?page=1", cfg.DirektoriURL())
		body, err := f.Fetch(ctx, url, fetch.HintAuto)
		f.Close()
		if err != nil {
			logx.Errorf("probe failed: %s error=%v", url, err)
			os.Exit(1)
		}
		logx.Infof("probe ok: %s (%d bytes)", url, len(body))
		return
	}

	// 5) archive: simple mode skips the database entirely
	var st *store.SQLite
	if !cfg.SimpleMode {
		st, err = store.OpenSQLite(cfg.Database.DSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer st.Close()
		if *reset {
			if err := st.Reset(ctx); err != nil {
				logx.Warnf("reset archive: %v", err)
			} else {
				logx.Infof("archive cleared")
			}
		}
	} else {
		logx.Infof("simple mode: skipping database")
	}

	// 6) run the pipeline
	ck := checkpoint.NewStore(cfg.Checkpoint.Path)
	run := pipeline.New(cfg, st, f, ck)
	logx.Infof("starting scrape: start=%d pages=%d resume=%v download=%v", *startPage, *maxPages, *resume, *downloads)
	if err := run.Run(ctx, pipeline.RunOptions{
		StartPage: *startPage,
		MaxPages:  *maxPages,
		Resume:    *resume,
		Download:  *downloads,
	}); err != nil {
		logx.Errorf("run failed: %v", err)
		os.Exit(1)
	}

	// 7) export results plus the stats side file
	stats := run.Stats()
	path := *outPath
	if path == "" {
		ts := time.Now().Format("20060102_150405")
		path = filepath.Join(cfg.DataDir, fmt.Sprintf("putusan_%s.%s", ts, export.Ext(*format)))
	}
	if *fromDB && st != nil {
		err = export.FromStore(ctx, st, stats, path, *format)
	} else {
		if *fromDB {
			logx.Warnf("simple mode has no archive, exporting this run's records")
		}
		err = export.Write(run.Records(), stats, path, *format)
	}
	if err != nil {
		logx.Errorf("export failed: %v", err)
		os.Exit(1)
	}
	logx.Infof("exported to %s", path)
	logx.Infof("requests: %d total, %d ok, %d failed (%.1f%% success)",
		stats.TotalRequests, stats.SuccessfulRequests, stats.FailedRequests, stats.SuccessRate)

	// a run where every request failed is a failure even if it exported
	if stats.TotalRequests > 0 && stats.SuccessfulRequests == 0 {
		logx.Errorf("no successful requests, target unreachable")
		os.Exit(1)
	}
}
