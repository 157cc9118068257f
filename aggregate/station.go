package aggregate

import (
	"strings"

	"scoreboard/n3fjp"
)

// maxRecentContacts caps each station's recent-contact ring.
const maxRecentContacts = 5

// station is a physical operating position ("Comm Trailer", "Little House").
// Operator/band/mode reflect whoever logged there most recently.
type station struct {
	name       string
	operator   string
	band       string
	mode       string
	lastUpdate string
	recent     []RecentContact // newest first
}

// RecentContact is the compact summary kept per station.
type RecentContact struct {
	Call     string `json:"call"`
	Operator string `json:"operator"`
	Band     string `json:"band"`
	Mode     string `json:"mode"`
	Time     string `json:"time"`
}

// stationName picks the logger's station field, falling back to the operator
// so single-position setups still show up.
func stationName(c n3fjp.Contact, op string) string {
	if c.Station != "" {
		return c.Station
	}
	return "Op: " + op
}

func (a *Aggregator) upsertStationLocked(c n3fjp.Contact, op, mode string) {
	st := &a.st
	name := stationName(c, op)
	s, ok := st.stations[name]
	if !ok {
		s = &station{name: name}
		st.stations[name] = s
		st.stationOrder = append(st.stationOrder, name)
	}
	when := strings.TrimSpace(c.Date + " " + c.TimeOn)
	s.operator = op
	s.band = c.Band
	s.mode = mode
	s.lastUpdate = when

	entry := RecentContact{
		Call:     c.Call,
		Operator: op,
		Band:     c.Band,
		Mode:     mode,
		Time:     when,
	}
	if len(s.recent) < maxRecentContacts {
		s.recent = append(s.recent, RecentContact{})
	}
	copy(s.recent[1:], s.recent[:len(s.recent)-1])
	s.recent[0] = entry
}
