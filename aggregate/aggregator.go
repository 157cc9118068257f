// Package aggregate keeps the running Field Day statistics built from logged
// contacts and projects them into immutable snapshots for the dashboard.
//
// Concurrency contract:
// - All state lives behind one mutex owned by the Aggregator.
// - Merge holds the lock only for bookkeeping; callers do network I/O outside.
// - Snapshot and Totals take the same lock and copy everything they return.
package aggregate

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"scoreboard/n3fjp"
	"scoreboard/strutil"
)

const (
	unknownOperator = "UNKNOWN"
	unknownMode     = "UNK"
)

// Locator fills in geography for a worked callsign when the logger did not
// send it. *cty.Database satisfies it.
type Locator interface {
	Locate(call string) (continent, country string, ok bool)
}

// Options configures an Aggregator.
type Options struct {
	// Year is used for hour buckets when the logger date has no year (M/D).
	// Zero selects the current UTC year.
	Year int
	// Locator is optional; nil disables continent/country fill-in.
	Locator Locator
	// SessionID is echoed in every snapshot so clients can spot a restart.
	SessionID string
	// Now overrides the snapshot clock in tests.
	Now func() time.Time
}

// Aggregator owns the aggregate state for the lifetime of the process.
type Aggregator struct {
	mu        sync.Mutex
	year      int
	locator   Locator
	sessionID string
	now       func() time.Time
	st        state
}

type state struct {
	seen map[string]struct{}

	totalContacts int
	totalPoints   int

	contactsByOperator  map[string]int
	pointsByOperator    map[string]int
	contactsByMode      map[string]int
	contactsByBand      map[string]int
	contactsByContinent map[string]int
	contactsByState     map[string]int
	contactsByCountry   map[string]int

	sections map[string]struct{}

	hourly     map[string]int            // "2026-06-28-18" -> count
	bandHourly map[string]map[string]int // band -> hour key -> count
	instants   []time.Time

	stations     map[string]*station
	stationOrder []string
}

// MergeResult summarizes one Merge call.
type MergeResult struct {
	Added      int
	Duplicates int
	// Contacts are the newly merged contacts after geography fill-in.
	Contacts []n3fjp.Contact
}

// New creates an empty Aggregator.
func New(opts Options) *Aggregator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	year := opts.Year
	if year <= 0 {
		year = now().UTC().Year()
	}
	return &Aggregator{
		year:      year,
		locator:   opts.Locator,
		sessionID: opts.SessionID,
		now:       now,
		st:        newState(),
	}
}

func newState() state {
	return state{
		seen:                make(map[string]struct{}),
		contactsByOperator:  make(map[string]int),
		pointsByOperator:    make(map[string]int),
		contactsByMode:      make(map[string]int),
		contactsByBand:      make(map[string]int),
		contactsByContinent: make(map[string]int),
		contactsByState:     make(map[string]int),
		contactsByCountry:   make(map[string]int),
		sections:            make(map[string]struct{}),
		hourly:              make(map[string]int),
		bandHourly:          make(map[string]map[string]int),
		stations:            make(map[string]*station),
	}
}

// Year returns the year applied to dates without one.
func (a *Aggregator) Year() int {
	return a.year
}

// Merge decodes and merges records under a single lock acquisition.
func (a *Aggregator) Merge(records []n3fjp.Record) MergeResult {
	contacts := make([]n3fjp.Contact, 0, len(records))
	for _, rec := range records {
		contacts = append(contacts, n3fjp.DecodeContact(rec))
	}
	return a.MergeContacts(contacts)
}

// MergeContacts merges already-decoded contacts. Geography lookups happen
// before the lock is taken.
func (a *Aggregator) MergeContacts(contacts []n3fjp.Contact) MergeResult {
	var res MergeResult
	if len(contacts) == 0 {
		return res
	}
	for i := range contacts {
		a.fillGeography(&contacts[i])
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range contacts {
		if !a.mergeLocked(c) {
			res.Duplicates++
			continue
		}
		res.Added++
		res.Contacts = append(res.Contacts, c)
	}
	return res
}

func (a *Aggregator) fillGeography(c *n3fjp.Contact) {
	if a.locator == nil || c.Call == "" || (c.Continent != "" && c.Country != "") {
		return
	}
	continent, country, ok := a.locator.Locate(c.Call)
	if !ok {
		return
	}
	if c.Continent == "" {
		c.Continent = continent
	}
	if c.Country == "" {
		c.Country = country
	}
}

// Purpose: Apply one contact to the running totals exactly once.
// Key aspects: Deduplicates on primary key; contacts without a key are always
// new. Timestamp failures skip only the hourly buckets.
// Upstream: MergeContacts with a.mu held.
// Downstream: deriveQSOTime, station upsert.
func (a *Aggregator) mergeLocked(c n3fjp.Contact) bool {
	st := &a.st
	if key := canonicalKey(c.PrimaryKey); key != "" {
		if _, dup := st.seen[key]; dup {
			return false
		}
		st.seen[key] = struct{}{}
	}

	op := strutil.OrDefault(c.Operator, unknownOperator)
	pts := PointsFromMode(c.ModeTest)

	st.totalContacts++
	st.totalPoints += pts
	st.contactsByOperator[op]++
	st.pointsByOperator[op] += pts

	mode := strutil.OrDefault(c.Mode, unknownMode)
	st.contactsByMode[mode]++
	increment(st.contactsByBand, c.Band)
	increment(st.contactsByContinent, c.Continent)
	increment(st.contactsByState, c.State)
	increment(st.contactsByCountry, c.Country)

	if c.Section != "" {
		st.sections[c.Section] = struct{}{}
	}

	if qt, ok := deriveQSOTime(c.Date, c.TimeOn, a.year); ok {
		st.hourly[qt.hourKey]++
		if c.Band != "" {
			byHour := st.bandHourly[c.Band]
			if byHour == nil {
				byHour = make(map[string]int)
				st.bandHourly[c.Band] = byHour
			}
			byHour[qt.hourKey]++
		}
		st.instants = append(st.instants, qt.at)
	}

	a.upsertStationLocked(c, op, mode)
	return true
}

// canonicalKey folds numeric keys so "0042" and "42" collide.
func canonicalKey(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return raw
}

func increment(m map[string]int, key string) {
	if key == "" {
		return
	}
	m[key]++
}

// Counts is a cheap point-in-time read of the headline numbers.
type Counts struct {
	Contacts      int
	Points        int
	Sections      int
	Stations      int
	TimedContacts int
	Hours         int
}

// Totals returns the headline counters without building a full snapshot.
func (a *Aggregator) Totals() Counts {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Counts{
		Contacts:      a.st.totalContacts,
		Points:        a.st.totalPoints,
		Sections:      len(a.st.sections),
		Stations:      len(a.st.stations),
		TimedContacts: len(a.st.instants),
		Hours:         len(a.st.hourly),
	}
}
