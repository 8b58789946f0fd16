// Package export serializes record sequences into interchangeable formats
// (json, csv, xlsx) and writes the stats side file next to the export.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go-putusan-scraper/internal/model"
	"go-putusan-scraper/internal/store"
)

// Write serializes the records to path in the chosen format and writes the
// stats side file.
func Write(records []model.Decision, st model.Stats, path, format string) error {
	st.RecordCount = len(records)
	var err error
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json", "":
		err = writeJSON(records, st, path)
	case "csv":
		err = writeCSV(records, path)
	case "xlsx", "excel":
		err = writeXLSX(records, path)
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
	if err != nil {
		return err
	}
	return WriteStats(st, StatsPath(path))
}

// FromStore exports the full archive instead of the in-memory set.
func FromStore(ctx context.Context, s *store.SQLite, st model.Stats, path, format string) error {
	records, err := s.ListDecisions(ctx)
	if err != nil {
		return fmt.Errorf("list decisions: %w", err)
	}
	return Write(records, st, path, format)
}

// Ext maps a format name to its file extension.
func Ext(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return "csv"
	case "xlsx", "excel":
		return "xlsx"
	default:
		return "json"
	}
}

// StatsPath derives the side-file name: same base plus the _stats suffix.
func StatsPath(exportPath string) string {
	ext := filepath.Ext(exportPath)
	return strings.TrimSuffix(exportPath, ext) + "_stats.json"
}

// WriteStats writes the counters as indented JSON.
func WriteStats(st model.Stats, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(st); err != nil {
		return fmt.Errorf("encode stats to %s: %w", path, err)
	}
	return nil
}

func writeJSON(records []model.Decision, st model.Stats, path string) error {
	out := model.Export{Stats: st, Records: records}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode json to %s: %w", path, err)
	}
	return nil
}

// exportHeader is the column order shared by the tabular formats.
var exportHeader = []string{
	"number", "title", "register_date", "decision_date", "upload_date",
	"category", "subcategory", "court", "status", "plaintiff", "defendant",
	"view_count", "download_count", "detail_link", "abstract", "scraped_at",
}

func row(d model.Decision) []string {
	return []string{
		d.Number, d.Title, d.RegisterDate, d.DecisionDate, d.UploadDate,
		d.Category, d.Subcategory, d.Court, string(d.Status), d.Plaintiff, d.Defendant,
		strconv.Itoa(d.ViewCount), strconv.Itoa(d.DownloadCount), d.DetailLink,
		d.Abstract, d.ScrapedAt.Format(time.RFC3339),
	}
}

func writeCSV(records []model.Decision, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(exportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, d := range records {
		if err := w.Write(row(d)); err != nil {
			return fmt.Errorf("write csv row %s: %w", d.Number, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv to %s: %w", path, err)
	}
	return nil
}
