package aggregate

import (
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"

	"scoreboard/config"
)

// Row is one line of a breakdown table.
type Row struct {
	Name  string
	Count int
}

// Breakdown is a sorted count table. It serializes as a list of two-key
// objects whose key names are chosen per table, e.g.
// [{"Operator":"K1ABC","Contacts":12}], which is what the dashboard reads.
type Breakdown struct {
	NameKey  string
	CountKey string
	Rows     []Row
}

// MarshalJSON renders the rows with the table's own key names.
func (b Breakdown) MarshalJSON() ([]byte, error) {
	api := jsoniter.ConfigCompatibleWithStandardLibrary
	stream := api.BorrowStream(nil)
	defer api.ReturnStream(stream)

	stream.WriteArrayStart()
	for i, r := range b.Rows {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectStart()
		stream.WriteObjectField(b.NameKey)
		stream.WriteString(r.Name)
		stream.WriteMore()
		stream.WriteObjectField(b.CountKey)
		stream.WriteInt(r.Count)
		stream.WriteObjectEnd()
	}
	stream.WriteArrayEnd()
	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

// Meta identifies when and by which process a snapshot was produced.
type Meta struct {
	GeneratedUTC string `json:"generatedUtc"`
	SessionID    string `json:"sessionId,omitempty"`
}

// TotalsView is the headline score block.
type TotalsView struct {
	Contacts        int `json:"contacts"`
	Points          int `json:"points"`
	BonusPoints     int `json:"bonusPoints"`
	FinalScore      int `json:"finalScore"`
	ClassMultiplier int `json:"classMultiplier"`
	PowerMultiplier int `json:"powerMultiplier"`
}

// Multipliers lists the ARRL/RAC sections worked.
type Multipliers struct {
	Sections     int      `json:"sections"`
	SectionsList []string `json:"sectionsList"`
}

// StationView is a station's current activity as shown on the dashboard.
type StationView struct {
	Name       string          `json:"name"`
	Operator   string          `json:"operator"`
	Band       string          `json:"band"`
	Mode       string          `json:"mode"`
	Recent     []RecentContact `json:"recent"`
	LastUpdate string          `json:"lastUpdate"`
}

// Snapshot is a self-contained copy of the aggregate state plus scoring. It
// shares no memory with the Aggregator.
type Snapshot struct {
	Meta                Meta           `json:"meta"`
	Totals              TotalsView     `json:"totals"`
	ContactsByOperator  Breakdown      `json:"contactsByOperator"`
	PointsByOperator    Breakdown      `json:"pointsByOperator"`
	ContactsByMode      Breakdown      `json:"contactsByMode"`
	ContactsByContinent Breakdown      `json:"contactsByContinent"`
	ContactsByState     Breakdown      `json:"contactsByState"`
	ContactsByCountry   Breakdown      `json:"contactsByCountry"`
	ContactsByBand      Breakdown      `json:"contactsByBand"`
	Multipliers         Multipliers    `json:"multipliers"`
	Stations            []StationView  `json:"stations"`
	RateStats           RateStats      `json:"rateStats"`
	FieldDayBonus       *FieldDayBonus `json:"fieldDayBonus,omitempty"`
}

// Snapshot projects the current state. A nil scoring config leaves the score
// equal to the QSO points and omits the bonus section.
func (a *Aggregator) Snapshot(scoring *config.ScoringConfig) Snapshot {
	var bonus *FieldDayBonus
	if scoring != nil {
		b := CalculateBonus(*scoring)
		bonus = &b
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	st := &a.st

	snap := Snapshot{
		Meta: Meta{
			GeneratedUTC: a.now().UTC().Format(time.RFC3339Nano),
			SessionID:    a.sessionID,
		},
		Totals: TotalsView{
			Contacts:        st.totalContacts,
			Points:          st.totalPoints,
			FinalScore:      FinalScore(st.totalPoints, bonus),
			ClassMultiplier: 1,
			PowerMultiplier: 1,
		},
		ContactsByOperator:  sortedBreakdown(st.contactsByOperator, "Operator", "Contacts"),
		PointsByOperator:    sortedBreakdown(st.pointsByOperator, "Operator", "Points"),
		ContactsByMode:      sortedBreakdown(st.contactsByMode, "Mode", "Contacts"),
		ContactsByContinent: sortedBreakdown(st.contactsByContinent, "Continent", "Contacts"),
		ContactsByState:     sortedBreakdown(st.contactsByState, "State", "Contacts"),
		ContactsByCountry:   sortedBreakdown(st.contactsByCountry, "Country", "Contacts"),
		ContactsByBand:      sortedBreakdown(st.contactsByBand, "Band", "Contacts"),
		Multipliers:         a.multipliersLocked(),
		Stations:            a.stationsLocked(),
		RateStats:           a.ratesLocked(),
		FieldDayBonus:       bonus,
	}
	if bonus != nil {
		snap.Totals.BonusPoints = bonus.BonusPoints
		snap.Totals.ClassMultiplier = bonus.ClassMultiplier
		snap.Totals.PowerMultiplier = bonus.PowerMultiplier
	}
	return snap
}

func sortedBreakdown(m map[string]int, nameKey, countKey string) Breakdown {
	rows := make([]Row, 0, len(m))
	for k, v := range m {
		rows = append(rows, Row{Name: k, Count: v})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Name < rows[j].Name
	})
	return Breakdown{NameKey: nameKey, CountKey: countKey, Rows: rows}
}

func (a *Aggregator) multipliersLocked() Multipliers {
	list := make([]string, 0, len(a.st.sections))
	for s := range a.st.sections {
		list = append(list, s)
	}
	sort.Strings(list)
	return Multipliers{Sections: len(list), SectionsList: list}
}

func (a *Aggregator) stationsLocked() []StationView {
	out := make([]StationView, 0, len(a.st.stationOrder))
	for _, name := range a.st.stationOrder {
		s := a.st.stations[name]
		recent := make([]RecentContact, len(s.recent))
		copy(recent, s.recent)
		out = append(out, StationView{
			Name:       s.name,
			Operator:   s.operator,
			Band:       s.band,
			Mode:       s.mode,
			Recent:     recent,
			LastUpdate: s.lastUpdate,
		})
	}
	return out
}
