package main

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"scoreboard/config"
)

func TestLogFileNameRoundTrip(t *testing.T) {
	when := time.Date(2026, time.June, 27, 18, 0, 0, 0, time.UTC)
	name := logFileNameForDate(when)
	if name != "scoreboard-2026-06-27.log" {
		t.Fatalf("unexpected log filename %q", name)
	}
	day, ok := parseLogFileDate(name)
	if !ok || day.Year() != 2026 || day.Month() != time.June || day.Day() != 27 {
		t.Fatalf("parse %q = %v, %v", name, day, ok)
	}
	for _, other := range []string{"notes.txt", "scoreboard-junk.log", "27-Jun-2026.log"} {
		if _, ok := parseLogFileDate(other); ok {
			t.Fatalf("expected %q to be rejected", other)
		}
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"scoreboard-2026-06-25.log",
		"scoreboard-2026-06-26.log",
		"scoreboard-2026-06-27.log",
		"notes.txt",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	now := time.Date(2026, time.June, 27, 12, 0, 0, 0, time.UTC)
	if err := cleanupOldLogs(dir, now, 2); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "scoreboard-2026-06-25.log")); !os.IsNotExist(err) {
		t.Fatalf("expected oldest log removed, stat err=%v", err)
	}
	for _, name := range []string{"scoreboard-2026-06-26.log", "scoreboard-2026-06-27.log", "notes.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s to remain: %v", name, err)
		}
	}
}

func TestFanoutSplitsLinesAcrossWrites(t *testing.T) {
	var console bytes.Buffer
	fanout, err := setupLogging(config.LoggingConfig{}, nil)
	if err != nil {
		t.Fatalf("setupLogging: %v", err)
	}
	fanout.SetConsole(&console, false)

	_, _ = fanout.Write([]byte("Poller: seed "))
	if console.Len() != 0 {
		t.Fatalf("partial line should be buffered, got %q", console.String())
	}
	_, _ = fanout.Write([]byte("complete\r\nWeb: listening\n"))
	if got := console.String(); got != "Poller: seed complete\nWeb: listening\n" {
		t.Fatalf("unexpected console output %q", got)
	}
}

func TestFileOnlyLinesSkipConsole(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	fanout, err := setupLogging(config.LoggingConfig{Enabled: true, Dir: dir, RetentionDays: 3}, &console)
	if err != nil {
		t.Fatalf("setupLogging: %v", err)
	}
	fanout.WriteFileOnly("Fetches: poll=3")
	logger := log.New(fanout, "", 0)
	logger.Print("N3FJP: connected")
	if err := fanout.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if strings.Contains(console.String(), "Fetches") {
		t.Fatalf("file-only line leaked to console: %q", console.String())
	}
	if !strings.Contains(console.String(), "N3FJP: connected") {
		t.Fatalf("console missing regular line: %q", console.String())
	}
	data, err := os.ReadFile(filepath.Join(dir, logFileNameForDate(time.Now())))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "Fetches: poll=3") || !strings.Contains(text, "N3FJP: connected") {
		t.Fatalf("log file missing lines: %q", text)
	}
}

func TestDailyFileSinkRotateHook(t *testing.T) {
	dir := t.TempDir()
	sink, err := newDailyFileSink(dir, 7)
	if err != nil {
		t.Fatalf("newDailyFileSink: %v", err)
	}
	defer sink.Close()

	var (
		gotPrev     time.Time
		gotPrevPath string
		gotNewPath  string
	)
	calls := 0
	sink.SetRotateHook(func(prevDay time.Time, prevPath, newPath string) {
		calls++
		gotPrev, gotPrevPath, gotNewPath = prevDay, prevPath, newPath
	})

	day1 := time.Date(2026, time.June, 27, 23, 59, 0, 0, time.UTC)
	sink.WriteLine("first", day1)
	sink.WriteLine("same day", day1.Add(30*time.Second))
	if calls != 0 {
		t.Fatalf("hook fired without a day change")
	}
	sink.WriteLine("second", day1.Add(2*time.Minute))

	if calls != 1 {
		t.Fatalf("expected one rotation, got %d", calls)
	}
	if gotPrev.Day() != 27 {
		t.Fatalf("unexpected previous day %s", gotPrev)
	}
	if filepath.Base(gotPrevPath) != "scoreboard-2026-06-27.log" || filepath.Base(gotNewPath) != "scoreboard-2026-06-28.log" {
		t.Fatalf("unexpected paths %s -> %s", gotPrevPath, gotNewPath)
	}
}

func TestRotateHookMayLog(t *testing.T) {
	dir := t.TempDir()
	sink, err := newDailyFileSink(dir, 1)
	if err != nil {
		t.Fatalf("newDailyFileSink: %v", err)
	}
	defer sink.Close()

	fanout := &logFanout{file: sink}
	logger := log.New(fanout, "", 0)

	now := time.Now().UTC()
	sink.WriteLine("prime", now)
	// Pretend the open file belongs to yesterday so the next write rotates.
	sink.mu.Lock()
	sink.day = now.AddDate(0, 0, -1).Format(logFileDateLayout)
	sink.mu.Unlock()

	hookDone := make(chan struct{})
	var once sync.Once
	fanout.SetRotateHook(func(prevDay time.Time, prevPath, newPath string) {
		logger.Printf("rotated from %s", prevDay.Format(logFileDateLayout))
		once.Do(func() { close(hookDone) })
	})

	done := make(chan struct{})
	go func() {
		logger.Print("trigger rotation")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("logging from the rotate hook deadlocked")
	}
	select {
	case <-hookDone:
	case <-time.After(2 * time.Second):
		t.Fatalf("rotate hook did not run")
	}
}
