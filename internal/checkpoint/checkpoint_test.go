package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go-putusan-scraper/internal/model"
)

func TestStore_SaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ckpt", "last_checkpoint.json")
	s := NewStore(path)

	records := []model.Decision{
		{Number: "1/Pid.B/2024/PN Jkt", Category: "Pidana"},
		{Number: "2/Pdt.G/2024/PN Bdg", Category: "Perdata"},
	}
	if err := s.Save(records, 10, 100); err != nil {
		t.Fatalf("save: %v", err)
	}

	cp := s.Load()
	if cp == nil {
		t.Fatalf("load returned nil")
	}
	if cp.LastPage != 10 || cp.TotalPages != 100 || cp.DataCount != 2 {
		t.Fatalf("checkpoint = %+v", cp)
	}
	if len(cp.Records) != 2 || cp.Records[0].Number != "1/Pid.B/2024/PN Jkt" {
		t.Fatalf("records = %v", cp.Records)
	}
	if cp.SavedAt.IsZero() {
		t.Fatalf("timestamp missing")
	}
}

func TestStore_JSONKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.json")
	if err := NewStore(path).Save(nil, 5, 50); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"last_page", "total_pages", "data_count", "timestamp", "data"} {
		if _, ok := m[key]; !ok {
			t.Fatalf("key %q missing in %s", key, raw)
		}
	}
}

func TestStore_MissingFileLoadsNil(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "absent.json"))
	if cp := s.Load(); cp != nil {
		t.Fatalf("missing file loaded %+v", cp)
	}
}

func TestStore_CorruptFileLoadsNil(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.json")
	if err := os.WriteFile(path, []byte(`{"last_page": 3, "data":`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if cp := NewStore(path).Load(); cp != nil {
		t.Fatalf("corrupt file loaded %+v", cp)
	}
}

func TestStore_UnknownFieldsTolerated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.json")
	blob := `{"last_page": 7, "total_pages": 70, "data_count": 0, "timestamp": "2024-05-01T10:00:00Z", "data": [], "future_field": {"x": 1}}`
	if err := os.WriteFile(path, []byte(blob), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cp := NewStore(path).Load()
	if cp == nil || cp.LastPage != 7 {
		t.Fatalf("checkpoint = %+v", cp)
	}
}

func TestStore_SaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.json")
	s := NewStore(path)
	if err := s.Save(nil, 1, 10); err != nil {
		t.Fatalf("save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "c.json" {
		t.Fatalf("directory contents = %v", entries)
	}
}

func TestStore_StrayTempDoesNotClobber(t *testing.T) {
	// a temp file left behind by a crash must not shadow the real checkpoint
	path := filepath.Join(t.TempDir(), "c.json")
	s := NewStore(path)
	if err := s.Save([]model.Decision{{Number: "1/X/2024"}}, 20, 200); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.WriteFile(path+".tmp", []byte("partial garbage"), 0o644); err != nil {
		t.Fatalf("write tmp: %v", err)
	}
	cp := s.Load()
	if cp == nil || cp.LastPage != 20 || len(cp.Records) != 1 {
		t.Fatalf("checkpoint = %+v", cp)
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.json")
	s := NewStore(path)
	if err := s.Save(nil, 10, 100); err != nil {
		t.Fatalf("save 1: %v", err)
	}
	if err := s.Save([]model.Decision{{Number: "9/X/2024"}}, 20, 100); err != nil {
		t.Fatalf("save 2: %v", err)
	}
	cp := s.Load()
	if cp == nil || cp.LastPage != 20 || cp.DataCount != 1 {
		t.Fatalf("checkpoint = %+v", cp)
	}
}
