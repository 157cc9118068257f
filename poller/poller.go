// Package poller drives the N3FJP fetch cycle: one large seed request to
// backfill history, then small tail requests on a fixed interval. Every fetch
// is merged into the shared aggregate; failures are recorded and the next
// interval simply tries again.
package poller

import (
	"context"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/xxh3"

	"scoreboard/aggregate"
	"scoreboard/config"
	"scoreboard/internal/ratelimit"
	"scoreboard/n3fjp"
)

const (
	KindSeed = "seed"
	KindPoll = "poll"

	failureLogInterval = time.Minute
	maxSampleFields    = 64
)

// Fetcher returns the raw LIST response for the n most recent contacts.
// *n3fjp.Client satisfies it.
type Fetcher interface {
	FetchList(ctx context.Context, n int, totalTimeout, idleTimeout time.Duration) ([]byte, error)
}

// FetchOutcome describes one completed fetch-and-merge attempt.
type FetchOutcome struct {
	Kind       string
	Err        error
	Elapsed    time.Duration
	RawBytes   int
	Records    int
	Added      int
	Duplicates int
	Unchanged  bool
	// Contacts are the contacts this fetch added to the aggregate.
	Contacts []n3fjp.Contact
}

// Observer is told about every fetch outcome. Calls happen on the poller
// goroutine, so implementations must not block.
type Observer interface {
	ObserveFetch(FetchOutcome)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(FetchOutcome)

// ObserveFetch calls f.
func (f ObserverFunc) ObserveFetch(o FetchOutcome) { f(o) }

// Settings are the poll parameters, usually built by SettingsFromConfig.
type Settings struct {
	Host      string
	Port      int
	Transport string

	SeedCount int
	TailCount int
	Refresh   time.Duration
	SeedTotal time.Duration
	SeedIdle  time.Duration
	PollTotal time.Duration
	PollIdle  time.Duration
	StopGrace time.Duration
	SessionID string
}

// SettingsFromConfig maps the n3fjp config section onto Settings.
func SettingsFromConfig(cfg config.N3FJPConfig, sessionID string) Settings {
	return Settings{
		Host:      cfg.Host,
		Port:      cfg.Port,
		Transport: cfg.Transport,
		SeedCount: cfg.SeedCount,
		TailCount: cfg.TailCount,
		Refresh:   config.Seconds(cfg.RefreshSeconds),
		SeedTotal: config.Seconds(cfg.SeedTimeoutSeconds),
		SeedIdle:  config.Seconds(cfg.SeedIdleSeconds),
		PollTotal: config.Seconds(cfg.PollTimeoutSeconds),
		PollIdle:  config.Seconds(cfg.PollIdleSeconds),
		StopGrace: config.Seconds(cfg.StopGraceSeconds),
		SessionID: sessionID,
	}
}

func (s *Settings) applyDefaults() {
	if s.Refresh <= 0 {
		s.Refresh = 3 * time.Second
	}
	if s.SeedTotal <= 0 {
		s.SeedTotal = 60 * time.Second
	}
	if s.SeedIdle <= 0 {
		s.SeedIdle = 1750 * time.Millisecond
	}
	if s.PollTotal <= 0 {
		s.PollTotal = 8 * time.Second
	}
	if s.PollIdle <= 0 {
		s.PollIdle = 750 * time.Millisecond
	}
	if s.StopGrace <= 0 {
		s.StopGrace = 2 * time.Second
	}
}

// Poller owns the seed/poll loop for one N3FJP endpoint.
type Poller struct {
	fetcher   Fetcher
	agg       *aggregate.Aggregator
	settings  Settings
	observers []Observer

	failures map[string]*ratelimit.Counter

	diagMu   sync.Mutex
	diag     Diagnostics
	lastHash map[string]uint64

	// lastKeyed records whether every record in the last parsed response of
	// a kind had a primary key. Only then is a repeat response skippable.
	lastKeyed map[string]bool

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Poller. Observers may be nil.
func New(fetcher Fetcher, agg *aggregate.Aggregator, settings Settings, observers ...Observer) *Poller {
	settings.applyDefaults()
	p := &Poller{
		fetcher:  fetcher,
		agg:      agg,
		settings: settings,
		failures: map[string]*ratelimit.Counter{
			KindSeed: ratelimit.NewCounter(failureLogInterval),
			KindPoll: ratelimit.NewCounter(failureLogInterval),
		},
		lastHash:  make(map[string]uint64),
		lastKeyed: make(map[string]bool),
	}
	for _, o := range observers {
		if o != nil {
			p.observers = append(p.observers, o)
		}
	}
	p.diag = Diagnostics{
		N3FJP: Endpoint{
			Host:      settings.Host,
			Port:      settings.Port,
			Transport: settings.Transport,
		},
		State:     StateIdle,
		SessionID: settings.SessionID,
	}
	return p
}

// Purpose: Seed once, then poll until ctx is cancelled.
// Key aspects: A failed seed does not block polling; a failed poll is retried
// on the next interval with no backoff. Returns nil when ctx ends.
// Upstream: Start, main errgroup.
// Downstream: fetchAndMerge.
func (p *Poller) Run(ctx context.Context) error {
	defer p.setState(StateStopped)

	p.setState(StateSeeding)
	if err := p.fetchAndMerge(ctx, KindSeed, p.settings.SeedCount, p.settings.SeedTotal, p.settings.SeedIdle); err != nil {
		p.recordTopError(KindSeed, err)
	}

	p.setState(StatePolling)
	timer := time.NewTimer(p.settings.Refresh)
	defer timer.Stop()
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := p.fetchAndMerge(ctx, KindPoll, p.settings.TailCount, p.settings.PollTotal, p.settings.PollIdle); err != nil {
			p.recordTopError(KindPoll, err)
		}
		timer.Reset(p.settings.Refresh)
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
}

// Start runs the loop in its own goroutine. Calling Start twice is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.done != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		_ = p.Run(runCtx)
	}(p.done)
}

// Stop cancels the loop and waits up to grace (the configured stop grace when
// grace <= 0). It reports whether the loop exited in time. An in-flight
// fetch that outlives grace is abandoned, not awaited.
func (p *Poller) Stop(grace time.Duration) bool {
	p.runMu.Lock()
	cancel, done := p.cancel, p.done
	p.runMu.Unlock()
	if done == nil {
		return true
	}
	if grace <= 0 {
		grace = p.settings.StopGrace
	}
	cancel()
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		log.Printf("Poller: loop did not exit within %s", grace)
		return false
	}
}

// Purpose: One fetch, parse, and merge cycle with diagnostics.
// Key aspects: Network I/O happens with no locks held. An unchanged response
// (same xxh3 as the previous fetch of this kind) skips parsing only when every
// record in it had a primary key; keyless records count on every merge.
// Upstream: Run.
// Downstream: Fetcher.FetchList, n3fjp.ParseRecords, aggregate.Merge, observers.
func (p *Poller) fetchAndMerge(ctx context.Context, kind string, n int, total, idle time.Duration) error {
	start := time.Now()
	raw, err := p.fetcher.FetchList(ctx, n, total, idle)
	elapsed := time.Since(start)

	d := FetchDiag{
		Requested:    n,
		TotalTimeout: total.Seconds(),
		IdleTimeout:  idle.Seconds(),
		LastAtUTC:    time.Now().UTC().Format(time.RFC3339Nano),
		ElapsedMs:    elapsed.Milliseconds(),
		SampleFields: []string{},
	}
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown, not a failure.
			return nil
		}
		d.LastError = err.Error()
		p.storeFetchDiag(kind, d)
		p.logFailure(kind, err)
		p.notify(FetchOutcome{Kind: kind, Err: err, Elapsed: elapsed})
		return err
	}
	p.logRecovery(kind)

	hash := xxh3.Hash(raw)
	text := strings.ToValidUTF8(string(raw), "")
	d.RawBytes = len(raw)
	d.RawHash = formatHash(hash)
	d.Framing = string(n3fjp.DetectFraming(text))
	d.HasListResponseMarker, d.HasListResponseClose = n3fjp.HasMarkers(text)

	p.diagMu.Lock()
	prev, seen := p.lastHash[kind]
	keyed := p.lastKeyed[kind]
	p.lastHash[kind] = hash
	p.diagMu.Unlock()

	outcome := FetchOutcome{Kind: kind, Elapsed: elapsed, RawBytes: len(raw)}
	if seen && keyed && prev == hash && len(raw) > 0 {
		d.Unchanged = true
		outcome.Unchanged = true
		p.carryParseStats(kind, &d)
		p.storeFetchDiag(kind, d)
		p.notify(outcome)
		return nil
	}

	records := n3fjp.ParseRecords(text)
	p.diagMu.Lock()
	p.lastKeyed[kind] = allKeyed(records)
	p.diagMu.Unlock()
	if len(records) > 0 {
		d.SampleFields = sampleFields(records[0])
		if kind == KindSeed {
			log.Printf("Poller: seed returned %d records; fields: %s", len(records), strings.Join(d.SampleFields, ", "))
		}
	}
	res := p.agg.Merge(records)
	d.RecordsParsed = len(records)
	d.Added = res.Added
	d.Duplicates = res.Duplicates
	p.storeFetchDiag(kind, d)

	outcome.Records = len(records)
	outcome.Added = res.Added
	outcome.Duplicates = res.Duplicates
	outcome.Contacts = res.Contacts
	p.notify(outcome)
	return nil
}

func (p *Poller) notify(o FetchOutcome) {
	for _, obs := range p.observers {
		obs.ObserveFetch(o)
	}
}

func (p *Poller) logFailure(kind string, err error) {
	if n, ok := p.failures[kind].Inc(); ok {
		if n > 1 {
			log.Printf("Poller: %s fetch from %s failed (%d consecutive): %v", kind, p.endpoint(), n, err)
			return
		}
		log.Printf("Poller: %s fetch from %s failed: %v", kind, p.endpoint(), err)
	}
}

func (p *Poller) logRecovery(kind string) {
	if n := p.failures[kind].Reset(); n > 0 {
		log.Printf("Poller: %s fetch from %s recovered after %d failures", kind, p.endpoint(), n)
	}
}

func (p *Poller) endpoint() string {
	return net.JoinHostPort(p.settings.Host, strconv.Itoa(p.settings.Port))
}

func allKeyed(records []n3fjp.Record) bool {
	for _, r := range records {
		if !r.HasPrimaryKey() {
			return false
		}
	}
	return true
}

func sampleFields(r n3fjp.Record) []string {
	tags := r.Tags()
	if len(tags) > maxSampleFields {
		tags = tags[:maxSampleFields]
	}
	return tags
}
