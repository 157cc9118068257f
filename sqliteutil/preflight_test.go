package sqliteutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func TestPreflightMissingFileIsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "new.db")
	res, err := Preflight(path, time.Second)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	if !res.Healthy || !res.Fresh {
		t.Fatalf("expected fresh healthy result, got %+v", res)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("parent dir not created: %v", err)
	}
}

func TestPreflightHealthy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "healthy.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if _, err := db.Exec("create table t (id integer)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	db.Close()

	res, err := Preflight(path, time.Second)
	if err != nil {
		t.Fatalf("preflight failed: %v", err)
	}
	if !res.Healthy || res.Quarantined || res.Fresh {
		t.Fatalf("expected healthy preflight, got %+v", res)
	}
}

func TestPreflightQuarantinesCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.db")
	if err := os.WriteFile(path, []byte("not a sqlite database"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	res, err := Preflight(path, time.Second)
	if err != nil {
		t.Fatalf("preflight expected quarantine, got error: %v", err)
	}
	if res.Healthy || !res.Quarantined || res.Err == nil {
		t.Fatalf("expected quarantine, got %+v", res)
	}
	if !strings.Contains(res.QuarantinePath, ".bad-") {
		t.Fatalf("quarantine path not suffixed as expected: %s", res.QuarantinePath)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected original db to be renamed, stat err=%v", err)
	}
	if _, err := os.Stat(res.QuarantinePath); err != nil {
		t.Fatalf("quarantined file missing: %v", err)
	}
}
