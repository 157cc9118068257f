package stats

import (
	"errors"
	"strings"
	"testing"

	"scoreboard/poller"
)

func TestTrackerCountsOutcomes(t *testing.T) {
	tr := NewTracker()
	tr.ObserveFetch(poller.FetchOutcome{Kind: poller.KindSeed, RawBytes: 2048, Records: 10, Added: 10})
	tr.ObserveFetch(poller.FetchOutcome{Kind: poller.KindPoll, Err: errors.New("refused")})
	tr.ObserveFetch(poller.FetchOutcome{Kind: poller.KindPoll, RawBytes: 100, Records: 2, Added: 1, Duplicates: 1})
	tr.ObserveFetch(poller.FetchOutcome{Kind: poller.KindPoll, RawBytes: 100, Unchanged: true})

	fetches := tr.FetchCounts()
	if fetches["seed"] != 1 || fetches["poll"] != 3 {
		t.Fatalf("fetch counts = %v", fetches)
	}
	if tr.FailureCounts()["poll"] != 1 {
		t.Fatalf("failure counts = %v", tr.FailureCounts())
	}
	if tr.Added() != 11 || tr.Duplicates() != 1 {
		t.Fatalf("added=%d dup=%d", tr.Added(), tr.Duplicates())
	}
	if tr.LastSuccess().IsZero() {
		t.Fatalf("last success not recorded")
	}

	lines := tr.SnapshotLines()
	if len(lines) != 3 {
		t.Fatalf("lines = %v", lines)
	}
	if lines[0] != "Fetches: poll=3, seed=1" {
		t.Fatalf("fetch line = %q", lines[0])
	}
	if !strings.Contains(lines[2], "added 11") || !strings.Contains(lines[2], "unchanged 1") {
		t.Fatalf("summary line = %q", lines[2])
	}
}

func TestTrackerEmpty(t *testing.T) {
	lines := NewTracker().SnapshotLines()
	if lines[1] != "Failures: (none)" {
		t.Fatalf("failure line = %q", lines[1])
	}
	if !strings.Contains(lines[2], "last ok never") {
		t.Fatalf("summary line = %q", lines[2])
	}
}
