package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"scoreboard/config"
)

const (
	logTimestampLayout = "2006/01/02 15:04:05"
	logFilePrefix      = "scoreboard-"
	logFileDateLayout  = "2006-01-02"
	logFileExt         = ".log"
	maxPartialLine     = 16 * 1024
)

// lineSink receives complete log lines (no trailing newline).
type lineSink interface {
	WriteLine(line string, now time.Time)
	Close() error
}

// writerSink forwards lines to an io.Writer such as stdout or the dashboard's
// system pane.
type writerSink struct {
	w         io.Writer
	timestamp bool
}

func (s *writerSink) WriteLine(line string, now time.Time) {
	if s == nil || s.w == nil {
		return
	}
	if s.timestamp {
		line = formatLogTimestamp(now) + " " + line
	}
	_, _ = io.WriteString(s.w, line+"\n")
}

func (s *writerSink) Close() error { return nil }

// rotateHook runs after the file sink switched to a new day. It is called
// without the sink lock held, so it may log.
type rotateHook func(prevDay time.Time, prevPath, newPath string)

// dailyFileSink appends to one file per UTC day and prunes files older than
// the retention window whenever it opens a new one.
type dailyFileSink struct {
	mu            sync.Mutex
	dir           string
	retentionDays int
	day           string
	path          string
	file          *os.File
	hook          rotateHook
	lastErrAt     time.Time
}

// Purpose: Create the daily file sink and prune stale files up front.
// Key aspects: A cleanup failure is reported but does not stop startup.
// Upstream: setupLogging.
// Downstream: os.MkdirAll, cleanupOldLogs.
func newDailyFileSink(dir string, retentionDays int) (*dailyFileSink, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("log directory is empty")
	}
	if retentionDays <= 0 {
		retentionDays = 7
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory %q: %w", dir, err)
	}
	if err := cleanupOldLogs(dir, time.Now().UTC(), retentionDays); err != nil {
		fmt.Fprintf(os.Stderr, "Logging: cleanup of %s failed: %v\n", dir, err)
	}
	return &dailyFileSink{dir: dir, retentionDays: retentionDays}, nil
}

func (s *dailyFileSink) WriteLine(line string, now time.Time) {
	if s == nil {
		return
	}
	now = now.UTC()
	day := now.Format(logFileDateLayout)

	s.mu.Lock()
	var (
		hook     rotateHook
		prevDay  time.Time
		prevPath string
	)
	if s.file == nil || s.day != day {
		if s.day != "" && s.day != day {
			prevDay, _ = time.ParseInLocation(logFileDateLayout, s.day, time.UTC)
			prevPath = s.path
			hook = s.hook
		}
		s.openLocked(day, now)
	}
	if s.file == nil {
		s.mu.Unlock()
		return
	}
	if _, err := s.file.WriteString(formatLogTimestamp(now) + " " + line + "\n"); err != nil {
		s.reportLocked(now, fmt.Errorf("write %s: %w", s.path, err))
	}
	newPath := s.path
	s.mu.Unlock()

	if hook != nil && !prevDay.IsZero() {
		hook(prevDay, prevPath, newPath)
	}
}

func (s *dailyFileSink) openLocked(day string, now time.Time) {
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.reportLocked(now, fmt.Errorf("create log directory %q: %w", s.dir, err))
		return
	}
	path := filepath.Join(s.dir, logFileNameForDate(now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		s.reportLocked(now, fmt.Errorf("open %s: %w", path, err))
		return
	}
	s.file = f
	s.day = day
	s.path = path
	if err := cleanupOldLogs(s.dir, now, s.retentionDays); err != nil {
		s.reportLocked(now, fmt.Errorf("cleanup: %w", err))
	}
}

// reportLocked writes sink failures to stderr at most once a minute; the log
// itself may be the thing that is broken.
func (s *dailyFileSink) reportLocked(now time.Time, err error) {
	if !s.lastErrAt.IsZero() && now.Sub(s.lastErrAt) < time.Minute {
		return
	}
	s.lastErrAt = now
	fmt.Fprintf(os.Stderr, "Logging: %v\n", err)
}

func (s *dailyFileSink) SetRotateHook(hook rotateHook) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.hook = hook
	s.mu.Unlock()
}

func (s *dailyFileSink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.day = ""
	s.path = ""
	return err
}

// logFanout is the log.Logger output. It splits writes into lines and hands
// each line to the console sink and the file sink.
type logFanout struct {
	mu      sync.Mutex
	partial []byte
	console lineSink
	file    lineSink
}

// Purpose: Build the fanout from config; file logging is optional.
// Key aspects: Always returns a usable fanout, even when the file sink fails.
// Upstream: main startup.
// Downstream: newDailyFileSink.
func setupLogging(cfg config.LoggingConfig, console io.Writer) (*logFanout, error) {
	f := &logFanout{}
	if console != nil {
		f.console = &writerSink{w: console, timestamp: true}
	}
	if !cfg.Enabled {
		return f, nil
	}
	sink, err := newDailyFileSink(cfg.Dir, cfg.RetentionDays)
	if err != nil {
		return f, err
	}
	f.file = sink
	return f, nil
}

// SetConsole swaps the console destination, e.g. to the dashboard pane once
// it is running. A nil writer silences the console.
func (f *logFanout) SetConsole(w io.Writer, timestamp bool) {
	if f == nil {
		return
	}
	var sink lineSink
	if w != nil {
		sink = &writerSink{w: w, timestamp: timestamp}
	}
	f.mu.Lock()
	f.console = sink
	f.mu.Unlock()
}

// SetRotateHook installs hook on the file sink, if file logging is on.
func (f *logFanout) SetRotateHook(hook rotateHook) {
	if f == nil {
		return
	}
	f.mu.Lock()
	sink, _ := f.file.(*dailyFileSink)
	f.mu.Unlock()
	sink.SetRotateHook(hook)
}

func (f *logFanout) Write(p []byte) (int, error) {
	if f == nil {
		return len(p), nil
	}
	f.mu.Lock()
	f.partial = append(f.partial, p...)
	var lines []string
	rest := f.partial
	for {
		idx := bytes.IndexByte(rest, '\n')
		if idx < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimRight(rest[:idx], "\r")))
		rest = rest[idx+1:]
	}
	if len(rest) > maxPartialLine {
		lines = append(lines, string(rest))
		rest = nil
	}
	f.partial = append(f.partial[:0], rest...)
	console, file := f.console, f.file
	f.mu.Unlock()

	now := time.Now().UTC()
	for _, line := range lines {
		if console != nil {
			console.WriteLine(line, now)
		}
		if file != nil {
			file.WriteLine(line, now)
		}
	}
	return len(p), nil
}

// WriteFileOnly records a line in the log file without echoing it to the
// console. The dashboard shows stats in its own pane, so the periodic stats
// lines go here instead of the system pane.
func (f *logFanout) WriteFileOnly(line string) {
	if f == nil {
		return
	}
	f.mu.Lock()
	file := f.file
	f.mu.Unlock()
	if file != nil {
		file.WriteLine(line, time.Now().UTC())
	}
}

func (f *logFanout) Close() error {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	console, file := f.console, f.file
	f.mu.Unlock()
	if console != nil {
		_ = console.Close()
	}
	if file != nil {
		return file.Close()
	}
	return nil
}

func formatLogTimestamp(now time.Time) string {
	return now.UTC().Format(logTimestampLayout)
}

func logFileNameForDate(now time.Time) string {
	return logFilePrefix + now.UTC().Format(logFileDateLayout) + logFileExt
}

func parseLogFileDate(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, logFilePrefix) || !strings.HasSuffix(name, logFileExt) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, logFilePrefix), logFileExt)
	day, err := time.ParseInLocation(logFileDateLayout, stamp, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// cleanupOldLogs removes scoreboard log files older than retentionDays,
// counting today as day one. Other files in dir are left alone.
func cleanupOldLogs(dir string, now time.Time, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	y, m, d := now.UTC().Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(retentionDays - 1))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		day, ok := parseLogFileDate(entry.Name())
		if ok && day.Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, entry.Name()))
		}
	}
	return nil
}
