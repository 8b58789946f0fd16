// Package model defines the exported data model (decision records, downloaded
// artifacts, checkpoint, statistics, export envelope).
package model

import "time"

// Status is the publication state of a decision.
type Status string

const (
	StatusFinal       Status = "final" // berkekuatan hukum tetap
	StatusUnpublished Status = "unpublished"
	StatusUnknown     Status = "unknown"
)

// FileKind identifies the type of a downloaded artifact.
type FileKind string

const (
	FilePDF FileKind = "pdf"
	FileZIP FileKind = "zip"
)

// Decision is one scraped court-decision entry. Number is the natural key;
// a record with an empty Number is never considered valid.
type Decision struct {
	Number       string     `json:"number"`
	Title        string     `json:"title,omitempty"`
	RegisterDate string     `json:"register_date,omitempty"`
	DecisionDate string     `json:"decision_date,omitempty"`
	UploadDate   string     `json:"upload_date,omitempty"`
	RegisteredAt *time.Time `json:"registered_at,omitempty"`
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
	UploadedAt   *time.Time `json:"uploaded_at,omitempty"`

	Category    string `json:"category,omitempty"`
	Subcategory string `json:"subcategory,omitempty"`
	Court       string `json:"court,omitempty"`

	DetailLink string `json:"detail_link,omitempty"`
	Plaintiff  string `json:"plaintiff,omitempty"`
	Defendant  string `json:"defendant,omitempty"`

	ViewCount     int    `json:"view_count,omitempty"`
	DownloadCount int    `json:"download_count,omitempty"`
	Status        Status `json:"status"`
	Abstract      string `json:"abstract,omitempty"`

	ScrapedAt time.Time `json:"scraped_at"`
	Files     []FileRef `json:"downloaded_files,omitempty"`
}

// FileRef is a downloaded artifact belonging to a decision. Never mutated
// after creation.
type FileRef struct {
	Kind      FileKind `json:"kind"`
	SourceURL string   `json:"source_url"`
	LocalPath string   `json:"local_path"`
	SizeBytes int64    `json:"size_bytes"`
	Verified  bool     `json:"verified"`
}

// Checkpoint is the resumable job state. Each save fully overwrites the
// previous one; extra unknown fields in the file are ignored on read.
type Checkpoint struct {
	LastPage   int        `json:"last_page"`
	TotalPages int        `json:"total_pages"`
	DataCount  int        `json:"data_count"`
	SavedAt    time.Time  `json:"timestamp"`
	Records    []Decision `json:"data"`
}

// Stats holds process-scoped counters for one scraping job.
type Stats struct {
	TotalRequests      int            `json:"total_requests"`
	SuccessfulRequests int            `json:"successful_requests"`
	FailedRequests     int            `json:"failed_requests"`
	TransportUsed      map[string]int `json:"method_used"`
	DownloadsOK        int            `json:"downloads_ok"`
	DownloadsFailed    int            `json:"downloads_failed"`
	BytesDownloaded    int64          `json:"bytes_downloaded"`
	RecordCount        int            `json:"data_count"`
	SuccessRate        float64        `json:"success_rate"`
}

// Export is the top-level structure of a JSON export file.
type Export struct {
	Stats   Stats      `json:"stats"`
	Records []Decision `json:"records"`
}
