package aggregate

import (
	"fmt"
	"testing"
	"time"

	"scoreboard/config"
	"scoreboard/n3fjp"
)

func fixedNow() time.Time {
	return time.Date(2026, 6, 28, 18, 30, 0, 0, time.UTC)
}

func newTestAggregator() *Aggregator {
	return New(Options{Year: 2026, SessionID: "test-session", Now: fixedNow})
}

func rec(fields map[string]string) n3fjp.Record {
	return n3fjp.NewRecord(fields)
}

func TestMergeIsIdempotentPerPrimaryKey(t *testing.T) {
	agg := newTestAggregator()
	batch := []n3fjp.Record{
		rec(map[string]string{"FLDPRIMARYKEY": "1", "OPERATOR": "K1ABC", "MODETEST": "CW", "BAND": "20"}),
		rec(map[string]string{"FLDPRIMARYKEY": "2", "OPERATOR": "K1ABC", "MODETEST": "PH", "BAND": "40"}),
	}
	first := agg.Merge(batch)
	if first.Added != 2 || first.Duplicates != 0 {
		t.Fatalf("first merge = %+v, want 2 added", first)
	}
	before := agg.Snapshot(nil)

	second := agg.Merge(batch)
	if second.Added != 0 || second.Duplicates != 2 {
		t.Fatalf("second merge = %+v, want 2 duplicates", second)
	}
	after := agg.Snapshot(nil)
	if before.Totals != after.Totals {
		t.Fatalf("totals changed on re-merge: %+v -> %+v", before.Totals, after.Totals)
	}
}

func TestNumericPrimaryKeysFold(t *testing.T) {
	agg := newTestAggregator()
	agg.Merge([]n3fjp.Record{rec(map[string]string{"PRIMARYKEY": "42", "MODETEST": "PH"})})
	res := agg.Merge([]n3fjp.Record{rec(map[string]string{"FLDPRIMARYKEY": "0042", "MODETEST": "PH"})})
	if res.Duplicates != 1 {
		t.Fatalf("expected 0042 to collide with 42, got %+v", res)
	}
}

func TestContactsWithoutKeyAlwaysCount(t *testing.T) {
	agg := newTestAggregator()
	r := rec(map[string]string{"CALL": "W1AW", "MODETEST": "PH"})
	agg.Merge([]n3fjp.Record{r})
	agg.Merge([]n3fjp.Record{r})
	if got := agg.Totals().Contacts; got != 2 {
		t.Fatalf("contacts = %d, want 2", got)
	}
}

func TestPointsFromMode(t *testing.T) {
	cases := map[string]int{"PH": 1, "ph": 1, "CW": 2, "DIG": 2, " dig ": 2, "": 0, "RTTY": 0}
	for in, want := range cases {
		if got := PointsFromMode(in); got != want {
			t.Fatalf("PointsFromMode(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestBreakdownSumsMatchTotals(t *testing.T) {
	agg := newTestAggregator()
	agg.Merge([]n3fjp.Record{
		rec(map[string]string{"FLDPRIMARYKEY": "1", "OPERATOR": "K1ABC", "MODETEST": "CW", "MODE": "CW"}),
		rec(map[string]string{"FLDPRIMARYKEY": "2", "MODETEST": "PH", "MODE": "SSB"}),
		rec(map[string]string{"FLDPRIMARYKEY": "3", "OPERATOR": "N0XYZ", "MODETEST": "DIG"}),
	})
	snap := agg.Snapshot(nil)

	sum := func(b Breakdown) int {
		total := 0
		for _, r := range b.Rows {
			total += r.Count
		}
		return total
	}
	if got := sum(snap.ContactsByOperator); got != snap.Totals.Contacts {
		t.Fatalf("operator contacts sum %d != total %d", got, snap.Totals.Contacts)
	}
	if got := sum(snap.PointsByOperator); got != snap.Totals.Points {
		t.Fatalf("operator points sum %d != total %d", got, snap.Totals.Points)
	}
	if got := sum(snap.ContactsByMode); got != snap.Totals.Contacts {
		t.Fatalf("mode sum %d != total %d", got, snap.Totals.Contacts)
	}
	if snap.Totals.Points != 5 {
		t.Fatalf("points = %d, want 5", snap.Totals.Points)
	}
	found := false
	for _, r := range snap.ContactsByOperator.Rows {
		if r.Name == unknownOperator && r.Count == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing UNKNOWN operator row: %+v", snap.ContactsByOperator.Rows)
	}
}

func TestBreakdownOrdering(t *testing.T) {
	agg := newTestAggregator()
	var batch []n3fjp.Record
	bands := []string{"40", "20", "20", "15", "20", "40"}
	for i, b := range bands {
		batch = append(batch, rec(map[string]string{"FLDPRIMARYKEY": fmt.Sprint(i + 1), "BAND": b}))
	}
	agg.Merge(batch)
	rows := agg.Snapshot(nil).ContactsByBand.Rows
	want := []Row{{"20", 3}, {"40", 2}, {"15", 1}}
	if len(rows) != len(want) {
		t.Fatalf("rows = %+v", rows)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Fatalf("row %d = %+v, want %+v", i, rows[i], want[i])
		}
	}
}

func TestBreakdownJSONKeys(t *testing.T) {
	b := Breakdown{NameKey: "Operator", CountKey: "Points", Rows: []Row{{"K1ABC", 4}}}
	raw, err := b.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(raw), `[{"Operator":"K1ABC","Points":4}]`; got != want {
		t.Fatalf("json = %s, want %s", got, want)
	}
	empty, _ := Breakdown{NameKey: "Band", CountKey: "Contacts"}.MarshalJSON()
	if string(empty) != "[]" {
		t.Fatalf("empty breakdown = %s", empty)
	}
}

func TestStationRecentKeepsNewestFive(t *testing.T) {
	agg := newTestAggregator()
	for i := 1; i <= 7; i++ {
		agg.Merge([]n3fjp.Record{rec(map[string]string{
			"FLDPRIMARYKEY": fmt.Sprint(i),
			"STATION":       "Comm Trailer",
			"OPERATOR":      "K1ABC",
			"CALL":          fmt.Sprintf("W%dAW", i),
			"BAND":          "20",
			"MODE":          "CW",
		})})
	}
	stations := agg.Snapshot(nil).Stations
	if len(stations) != 1 {
		t.Fatalf("stations = %+v", stations)
	}
	recent := stations[0].Recent
	if len(recent) != maxRecentContacts {
		t.Fatalf("recent len = %d, want %d", len(recent), maxRecentContacts)
	}
	if recent[0].Call != "W7AW" || recent[4].Call != "W3AW" {
		t.Fatalf("recent order wrong: first=%s last=%s", recent[0].Call, recent[4].Call)
	}
}

func TestStationFallsBackToOperatorAndKeepsFirstSeenOrder(t *testing.T) {
	agg := newTestAggregator()
	agg.Merge([]n3fjp.Record{
		rec(map[string]string{"FLDPRIMARYKEY": "1", "OPERATOR": "N0XYZ", "BAND": "40"}),
		rec(map[string]string{"FLDPRIMARYKEY": "2", "FLDSTATION": "Little House", "OPERATOR": "K1ABC"}),
		rec(map[string]string{"FLDPRIMARYKEY": "3", "OPERATOR": "N0XYZ", "BAND": "20"}),
	})
	stations := agg.Snapshot(nil).Stations
	if len(stations) != 2 {
		t.Fatalf("stations = %+v", stations)
	}
	if stations[0].Name != "Op: N0XYZ" || stations[1].Name != "Little House" {
		t.Fatalf("station order = %s, %s", stations[0].Name, stations[1].Name)
	}
	if stations[0].Band != "20" {
		t.Fatalf("station band not updated: %s", stations[0].Band)
	}
}

func TestSnapshotScoring(t *testing.T) {
	agg := newTestAggregator()
	var batch []n3fjp.Record
	for i := 1; i <= 10; i++ {
		batch = append(batch, rec(map[string]string{"FLDPRIMARYKEY": fmt.Sprint(i), "MODETEST": "CW"}))
	}
	agg.Merge(batch)

	sc := config.ScoringConfig{FieldDayClass: "3A", EmergencyPower: true, NTSMessageOriginated: 12, NTSMessageHandled: 3}
	snap := agg.Snapshot(&sc)
	// 20 points x 3 x 2 + 100 emergency power + (10+3)*10 NTS
	if snap.Totals.FinalScore != 20*3*2+100+130 {
		t.Fatalf("final score = %d", snap.Totals.FinalScore)
	}
	if snap.FieldDayBonus == nil || snap.FieldDayBonus.FDClass != "3A" {
		t.Fatalf("bonus section = %+v", snap.FieldDayBonus)
	}

	plain := agg.Snapshot(nil)
	if plain.FieldDayBonus != nil || plain.Totals.FinalScore != 20 || plain.Totals.ClassMultiplier != 1 {
		t.Fatalf("nil scoring snapshot = %+v", plain.Totals)
	}
}

func TestSnapshotMeta(t *testing.T) {
	snap := newTestAggregator().Snapshot(nil)
	if snap.Meta.SessionID != "test-session" {
		t.Fatalf("session id = %q", snap.Meta.SessionID)
	}
	if snap.Meta.GeneratedUTC != "2026-06-28T18:30:00Z" {
		t.Fatalf("generated = %q", snap.Meta.GeneratedUTC)
	}
	if snap.RateStats.BestHour != nil {
		t.Fatalf("best hour on empty state = %+v", snap.RateStats.BestHour)
	}
}

type stubLocator map[string][2]string

func (s stubLocator) Locate(call string) (string, string, bool) {
	v, ok := s[call]
	return v[0], v[1], ok
}

func TestLocatorFillsMissingGeography(t *testing.T) {
	agg := New(Options{Year: 2026, Locator: stubLocator{"DL1ABC": {"EU", "Germany"}}})
	res := agg.Merge([]n3fjp.Record{
		rec(map[string]string{"FLDPRIMARYKEY": "1", "CALL": "DL1ABC"}),
		rec(map[string]string{"FLDPRIMARYKEY": "2", "CALL": "DL1ABC", "COUNTRYWORKED": "Deutschland"}),
	})
	if res.Contacts[0].Continent != "EU" || res.Contacts[0].Country != "Germany" {
		t.Fatalf("geography not filled: %+v", res.Contacts[0])
	}
	if res.Contacts[1].Country != "Deutschland" {
		t.Fatalf("logger country overwritten: %+v", res.Contacts[1])
	}
	snap := agg.Snapshot(nil)
	if len(snap.ContactsByContinent.Rows) != 1 || snap.ContactsByContinent.Rows[0].Count != 2 {
		t.Fatalf("continent rows = %+v", snap.ContactsByContinent.Rows)
	}
}

func TestSectionsAreSortedAndUnique(t *testing.T) {
	agg := newTestAggregator()
	agg.Merge([]n3fjp.Record{
		rec(map[string]string{"FLDPRIMARYKEY": "1", "ARRLSECTION": "WMA"}),
		rec(map[string]string{"FLDPRIMARYKEY": "2", "SECTION": "CT"}),
		rec(map[string]string{"FLDPRIMARYKEY": "3", "ARRLSECTION": "WMA"}),
	})
	m := agg.Snapshot(nil).Multipliers
	if m.Sections != 2 || m.SectionsList[0] != "CT" || m.SectionsList[1] != "WMA" {
		t.Fatalf("multipliers = %+v", m)
	}
}
