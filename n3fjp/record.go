package n3fjp

import (
	"sort"
	"strings"

	"scoreboard/strutil"
)

// Record is one contact as a flat bag of uppercase tag -> value pairs, kept in
// the order the tags first appeared on the wire.
type Record struct {
	fields map[string]string
	order  []string
}

// NewRecord builds a Record from a map. Tags are uppercased and ordered
// alphabetically since a map carries no wire order.
func NewRecord(fields map[string]string) Record {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rec := Record{}
	for _, k := range keys {
		rec.Set(k, fields[k])
	}
	return rec
}

// Set stores value under the uppercased tag. Repeated tags overwrite.
func (r *Record) Set(tag, value string) {
	tag = strutil.NormalizeUpper(tag)
	if tag == "" {
		return
	}
	if r.fields == nil {
		r.fields = make(map[string]string)
	}
	if _, ok := r.fields[tag]; !ok {
		r.order = append(r.order, tag)
	}
	r.fields[tag] = value
}

// Get returns the value stored for tag (case-insensitive) and whether it exists.
func (r Record) Get(tag string) (string, bool) {
	v, ok := r.fields[strutil.NormalizeUpper(tag)]
	return v, ok
}

// First returns the first non-empty trimmed value among tags.
func (r Record) First(tags ...string) string {
	for _, tag := range tags {
		if v := strings.TrimSpace(r.fields[tag]); v != "" {
			return v
		}
	}
	return ""
}

// HasPrimaryKey reports whether the record carries a non-empty primary key
// under either spelling. Keyless records are never deduplicated.
func (r Record) HasPrimaryKey() bool {
	return r.First(tagsPrimaryKey...) != ""
}

// Len returns the number of tags.
func (r Record) Len() int {
	return len(r.fields)
}

// Tags returns the tag names in wire order.
func (r Record) Tags() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Map returns a copy of the tag bag.
func (r Record) Map() map[string]string {
	out := make(map[string]string, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

// Vendor tag aliases, first non-empty wins. The FLD* spellings come from the
// logger's internal column names and show up with INCLUDEALL.
var (
	tagsPrimaryKey = []string{"FLDPRIMARYKEY", "PRIMARYKEY"}
	tagsOperator   = []string{"FLDOPERATOR", "OPERATOR"}
	tagsModeTest   = []string{"MODETEST"}
	tagsMode       = []string{"MODE"}
	tagsBand       = []string{"BAND"}
	tagsContinent  = []string{"CONTINENT"}
	tagsState      = []string{"STATE"}
	tagsCountry    = []string{"COUNTRYWORKED"}
	tagsSection    = []string{"ARRLSECTION", "SECTION"}
	tagsDate       = []string{"DATE", "QSODATE", "FLDQSODATE"}
	tagsTimeOn     = []string{"TIMEON", "FLDTIMEON"}
	tagsStation    = []string{"STATION", "FLDSTATION"}
	tagsCall       = []string{"CALL"}
)

var knownTags = func() map[string]struct{} {
	set := make(map[string]struct{})
	for _, group := range [][]string{
		tagsPrimaryKey, tagsOperator, tagsModeTest, tagsMode, tagsBand,
		tagsContinent, tagsState, tagsCountry, tagsSection, tagsDate,
		tagsTimeOn, tagsStation, tagsCall,
	} {
		for _, tag := range group {
			set[tag] = struct{}{}
		}
	}
	return set
}()

// Contact is the typed view of a Record. Every field is optional; an empty
// string means the logger did not send it. Extra carries the tags this package
// does not interpret so newer logger versions pass through untouched.
type Contact struct {
	PrimaryKey string
	Operator   string
	ModeTest   string
	Mode       string
	Band       string
	Continent  string
	State      string
	Country    string
	Section    string
	Date       string
	TimeOn     string
	Station    string
	Call       string
	Extra      map[string]string
}

// DecodeContact maps a Record onto a Contact using the vendor aliases.
func DecodeContact(r Record) Contact {
	c := Contact{
		PrimaryKey: r.First(tagsPrimaryKey...),
		Operator:   r.First(tagsOperator...),
		ModeTest:   r.First(tagsModeTest...),
		Mode:       r.First(tagsMode...),
		Band:       r.First(tagsBand...),
		Continent:  r.First(tagsContinent...),
		State:      r.First(tagsState...),
		Country:    r.First(tagsCountry...),
		Section:    r.First(tagsSection...),
		Date:       r.First(tagsDate...),
		TimeOn:     r.First(tagsTimeOn...),
		Station:    r.First(tagsStation...),
		Call:       r.First(tagsCall...),
	}
	for tag, v := range r.fields {
		if _, ok := knownTags[tag]; ok {
			continue
		}
		if c.Extra == nil {
			c.Extra = make(map[string]string)
		}
		c.Extra[tag] = v
	}
	return c
}
