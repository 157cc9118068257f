// Package stats tracks fetch counters for the periodic console output and the
// dashboard status pane.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"scoreboard/poller"
)

// Tracker accumulates poller outcomes. It implements poller.Observer.
type Tracker struct {
	// counters live in sync.Map + atomic.Uint64 so the observer never blocks the poll loop
	fetchCounts   sync.Map // kind -> *atomic.Uint64
	failureCounts sync.Map // kind -> *atomic.Uint64
	start         atomic.Int64
	lastSuccess   atomic.Int64
	lastElapsed   atomic.Int64
	rawBytes      atomic.Uint64
	records       atomic.Uint64
	added         atomic.Uint64
	duplicates    atomic.Uint64
	unchanged     atomic.Uint64
}

// NewTracker creates a new stats tracker
func NewTracker() *Tracker {
	t := &Tracker{}
	t.start.Store(time.Now().UnixNano())
	return t
}

// ObserveFetch records one fetch outcome.
func (t *Tracker) ObserveFetch(o poller.FetchOutcome) {
	incrementCounter(&t.fetchCounts, o.Kind)
	t.lastElapsed.Store(int64(o.Elapsed))
	if o.Err != nil {
		incrementCounter(&t.failureCounts, o.Kind)
		return
	}
	t.lastSuccess.Store(time.Now().UnixNano())
	t.rawBytes.Add(uint64(o.RawBytes))
	t.records.Add(uint64(o.Records))
	t.added.Add(uint64(o.Added))
	t.duplicates.Add(uint64(o.Duplicates))
	if o.Unchanged {
		t.unchanged.Add(1)
	}
}

// FetchCounts returns a copy of the fetch attempts per kind.
func (t *Tracker) FetchCounts() map[string]uint64 {
	return copyCounts(&t.fetchCounts)
}

// FailureCounts returns a copy of the failed fetches per kind.
func (t *Tracker) FailureCounts() map[string]uint64 {
	return copyCounts(&t.failureCounts)
}

// Added returns how many contacts fetches have added in total.
func (t *Tracker) Added() uint64 {
	return t.added.Load()
}

// Duplicates returns how many parsed records were already known.
func (t *Tracker) Duplicates() uint64 {
	return t.duplicates.Load()
}

// LastSuccess returns when the last fetch succeeded, zero if never.
func (t *Tracker) LastSuccess() time.Time {
	ns := t.lastSuccess.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// GetUptime returns how long the tracker has been running
func (t *Tracker) GetUptime() time.Duration {
	start := t.start.Load()
	return time.Since(time.Unix(0, start))
}

// SnapshotLines returns human-readable stats ready for console display.
func (t *Tracker) SnapshotLines() []string {
	lines := make([]string, 0, 3)
	lines = append(lines, formatMapCounts("Fetches", &t.fetchCounts))
	lines = append(lines, formatMapCounts("Failures", &t.failureCounts))

	last := "never"
	if ts := t.LastSuccess(); !ts.IsZero() {
		last = humanize.Time(ts)
	}
	lines = append(lines, fmt.Sprintf("Received %s | records %s | added %s | dup %s | unchanged %s | last ok %s (%s)",
		humanize.Bytes(t.rawBytes.Load()),
		humanize.Comma(int64(t.records.Load())),
		humanize.Comma(int64(t.added.Load())),
		humanize.Comma(int64(t.duplicates.Load())),
		humanize.Comma(int64(t.unchanged.Load())),
		last,
		time.Duration(t.lastElapsed.Load()).Round(time.Millisecond)))
	return lines
}

func copyCounts(m *sync.Map) map[string]uint64 {
	counts := make(map[string]uint64)
	m.Range(func(key, value any) bool {
		counts[key.(string)] = value.(*atomic.Uint64).Load()
		return true
	})
	return counts
}

func formatMapCounts(label string, counts *sync.Map) string {
	snapshot := copyCounts(counts)
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var builder strings.Builder
	builder.WriteString(label)
	builder.WriteString(": ")
	for i, k := range keys {
		if i > 0 {
			builder.WriteString(", ")
		}
		fmt.Fprintf(&builder, "%s=%d", k, snapshot[k])
	}
	if len(keys) == 0 {
		builder.WriteString("(none)")
	}
	return builder.String()
}

func incrementCounter(m *sync.Map, key string) {
	if strings.TrimSpace(key) == "" {
		return
	}
	if value, ok := m.Load(key); ok {
		value.(*atomic.Uint64).Add(1)
		return
	}
	counter := &atomic.Uint64{}
	actual, loaded := m.LoadOrStore(key, counter)
	if loaded {
		actual.(*atomic.Uint64).Add(1)
		return
	}
	counter.Add(1)
}
