// Package sqliteutil holds SQLite helpers shared by the on-disk journals.
package sqliteutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PreflightResult reports the outcome of a SQLite preflight check.
type PreflightResult struct {
	Healthy        bool
	Fresh          bool // no database existed yet
	Quarantined    bool
	QuarantinePath string
	Elapsed        time.Duration
	Err            error // checkpoint or quick_check failure that caused quarantine
}

var sidecarSuffixes = []string{"-wal", "-shm", "-journal"}

// Purpose: Make sure a journal database can be opened before the writer
// goroutine depends on it.
// Key aspects: Runs a bounded WAL checkpoint plus quick_check. A damaged file
// (and its sidecars) is renamed to <path>.bad-<timestamp> so startup continues
// with an empty journal instead of failing the whole process.
// Upstream: recorder.Open.
// Downstream: database/sql with the modernc sqlite driver.
func Preflight(path string, timeout time.Duration) (PreflightResult, error) {
	var res PreflightResult
	if strings.TrimSpace(path) == "" {
		return res, errors.New("preflight: empty path")
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return res, fmt.Errorf("preflight: ensure dir: %w", err)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		res.Healthy, res.Fresh = true, true
		return res, nil
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	checkErr := check(ctx, path, timeout)
	res.Elapsed = time.Since(start)
	if checkErr == nil {
		res.Healthy = true
		return res, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("preflight: %s timed out after %s", path, timeout)
	}

	res.Err = checkErr
	dest, err := quarantine(path)
	if err != nil {
		return res, fmt.Errorf("preflight: quarantine %s: %w (check: %v)", path, err, checkErr)
	}
	res.Quarantined = true
	res.QuarantinePath = dest
	log.Printf("Warning: %s failed integrity check (%v); moved to %s", path, checkErr, dest)
	return res, nil
}

func check(ctx context.Context, path string, timeout time.Duration) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, fmt.Sprintf("pragma busy_timeout=%d", timeout.Milliseconds())); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "pragma wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	rows, err := db.QueryContext(ctx, "pragma quick_check")
	if err != nil {
		return fmt.Errorf("quick_check: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return err
		}
		if strings.TrimSpace(status) != "ok" {
			return fmt.Errorf("quick_check reported %q", status)
		}
	}
	return rows.Err()
}

func quarantine(path string) (string, error) {
	suffix := ".bad-" + time.Now().UTC().Format("20060102T150405Z")
	for _, p := range append([]string{path}, sidecarPaths(path)...) {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := os.Rename(p, p+suffix); err != nil {
			return "", err
		}
	}
	return path + suffix, nil
}

func sidecarPaths(path string) []string {
	out := make([]string, 0, len(sidecarSuffixes))
	for _, s := range sidecarSuffixes {
		out = append(out, path+s)
	}
	return out
}
