// Package store archives deduplicated decision records in SQLite, with table
// migration, upsert, listing and counting.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"go-putusan-scraper/internal/model"
)

// SQLite wraps *sql.DB backed by modernc.org/sqlite (pure Go).
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens the database and runs the migration.
func OpenSQLite(path string) (*SQLite, error) {
	// modernc sqlite accepts a plain file path as DSN
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// Reset clears the decisions table without deleting the database file.
func (s *SQLite) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM decisions`); err != nil {
		return fmt.Errorf("delete decisions: %w", err)
	}
	return nil
}

// migrate creates the schema, idempotently.
func (s *SQLite) migrate() error {
	const stmt = `CREATE TABLE IF NOT EXISTS decisions (
        number TEXT UNIQUE,
        title TEXT,
        register_date TEXT,
        decision_date TEXT,
        upload_date TEXT,
        category TEXT,
        subcategory TEXT,
        court TEXT,
        detail_link TEXT,
        plaintiff TEXT,
        defendant TEXT,
        view_count INTEGER,
        download_count INTEGER,
        status TEXT,
        abstract TEXT,
        scraped_at TIMESTAMP
    );`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("exec migrate: %w", err)
	}
	return nil
}

// UpsertDecision inserts or updates one record (number unique).
func (s *SQLite) UpsertDecision(ctx context.Context, d model.Decision) error {
	if d.Number == "" {
		return errors.New("decision.number required")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO decisions(
        number, title, register_date, decision_date, upload_date,
        category, subcategory, court, detail_link, plaintiff, defendant,
        view_count, download_count, status, abstract, scraped_at)
        VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(number) DO UPDATE SET
            title=excluded.title,
            register_date=excluded.register_date,
            decision_date=excluded.decision_date,
            upload_date=excluded.upload_date,
            category=excluded.category,
            subcategory=excluded.subcategory,
            court=excluded.court,
            detail_link=excluded.detail_link,
            plaintiff=excluded.plaintiff,
            defendant=excluded.defendant,
            view_count=excluded.view_count,
            download_count=excluded.download_count,
            status=excluded.status,
            abstract=excluded.abstract,
            scraped_at=excluded.scraped_at`,
		d.Number, d.Title, d.RegisterDate, d.DecisionDate, d.UploadDate,
		d.Category, d.Subcategory, d.Court, d.DetailLink, d.Plaintiff, d.Defendant,
		d.ViewCount, d.DownloadCount, string(d.Status), d.Abstract, nowOr(d.ScrapedAt))
	if err != nil {
		return fmt.Errorf("upsert decision %s: %w", d.Number, err)
	}
	return nil
}

// ListDecisions returns all archived records ordered by scrape time, oldest
// first so insertion order is stable across exports.
func (s *SQLite) ListDecisions(ctx context.Context) ([]model.Decision, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT number, title, register_date, decision_date,
        upload_date, category, subcategory, court, detail_link, plaintiff, defendant,
        view_count, download_count, status, abstract, scraped_at
        FROM decisions ORDER BY scraped_at, number`)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()
	var out []model.Decision
	for rows.Next() {
		var d model.Decision
		var status string
		var scrapedAt sql.NullTime
		if err := rows.Scan(&d.Number, &d.Title, &d.RegisterDate, &d.DecisionDate,
			&d.UploadDate, &d.Category, &d.Subcategory, &d.Court, &d.DetailLink,
			&d.Plaintiff, &d.Defendant, &d.ViewCount, &d.DownloadCount,
			&status, &d.Abstract, &scrapedAt); err != nil {
			return nil, fmt.Errorf("scan decisions: %w", err)
		}
		d.Status = model.Status(status)
		if scrapedAt.Valid {
			d.ScrapedAt = scrapedAt.Time
		} else {
			d.ScrapedAt = time.Now()
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return out, nil
}

// Count returns the number of archived records.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM decisions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count decisions: %w", err)
	}
	return n, nil
}

func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
