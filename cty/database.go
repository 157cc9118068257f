// Package cty loads the CTY prefix database (cty.plist) and resolves worked
// callsigns to their DXCC country and continent. The scoreboard uses it to
// fill in geography the logger left blank.
package cty

import (
	"container/list"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"howett.net/plist"
)

// PrefixInfo describes the metadata stored for each CTY entry.
type PrefixInfo struct {
	Country       string  `plist:"Country"`
	Prefix        string  `plist:"Prefix"`
	ADIF          int     `plist:"ADIF"`
	CQZone        int     `plist:"CQZone"`
	ITUZone       int     `plist:"ITUZone"`
	Continent     string  `plist:"Continent"`
	Latitude      float64 `plist:"Latitude"`
	Longitude     float64 `plist:"Longitude"`
	GMTOffset     float64 `plist:"GMTOffset"`
	ExactCallsign bool    `plist:"ExactCallsign"`
}

// Database holds the decoded plist and a prefix trie for longest-match lookup.
type Database struct {
	data map[string]PrefixInfo
	keys []string
	trie prefixTrie

	// cache memoizes lookups (hits and misses) with a bounded LRU; a Field Day
	// log works the same stations over and over.
	cacheMu   sync.Mutex
	cacheList *list.List
	cacheMap  map[string]*list.Element
	cacheCap  int

	lookups   atomic.Uint64
	cacheHits atomic.Uint64
}

type cacheItem struct {
	key  string
	info *PrefixInfo
	ok   bool
}

// prefixTrie is a read-only byte trie over CTY keys. Walking a callsign from
// the root and remembering the last terminal node yields the longest matching
// prefix. Children are slice indices to keep the tree compact.
type prefixTrie struct {
	nodes []trieNode
}

type trieNode struct {
	next        map[byte]int
	terminalKey string
}

func buildPrefixTrie(keys []string) prefixTrie {
	tr := prefixTrie{nodes: []trieNode{{next: make(map[byte]int)}}}
	for _, key := range keys {
		if key == "" {
			continue
		}
		state := 0
		for i := 0; i < len(key); i++ {
			next := tr.nodes[state].next
			if next == nil {
				next = make(map[byte]int)
				tr.nodes[state].next = next
			}
			child, ok := next[key[i]]
			if !ok {
				child = len(tr.nodes)
				tr.nodes = append(tr.nodes, trieNode{})
				next[key[i]] = child
			}
			state = child
		}
		tr.nodes[state].terminalKey = key
	}
	return tr
}

func (tr *prefixTrie) longest(cs string) (string, bool) {
	if len(tr.nodes) == 0 || cs == "" {
		return "", false
	}
	state := 0
	best := ""
	for i := 0; i < len(cs); i++ {
		child, ok := tr.nodes[state].next[cs[i]]
		if !ok {
			break
		}
		state = child
		if key := tr.nodes[state].terminalKey; key != "" {
			best = key
		}
	}
	return best, best != ""
}

const defaultCacheCapacity = 4096

// Load reads a cty.plist file.
func Load(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cty plist: %w", err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader decodes CTY data. Keys are uppercased.
func LoadFromReader(r io.ReadSeeker) (*Database, error) {
	var raw map[string]PrefixInfo
	if err := plist.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode plist: %w", err)
	}
	data := make(map[string]PrefixInfo, len(raw))
	keys := make([]string, 0, len(raw))
	for k, v := range raw {
		norm := strings.ToUpper(strings.TrimSpace(k))
		if norm == "" {
			continue
		}
		if _, dup := data[norm]; !dup {
			keys = append(keys, norm)
		}
		data[norm] = v
	}
	sort.Strings(keys)
	return &Database{
		data:      data,
		keys:      keys,
		trie:      buildPrefixTrie(keys),
		cacheCap:  defaultCacheCapacity,
		cacheList: list.New(),
		cacheMap:  make(map[string]*list.Element),
	}, nil
}

// Len returns the number of prefixes and exact calls loaded.
func (db *Database) Len() int {
	return len(db.keys)
}

// LookupCallsign resolves cs by exact entry, then longest prefix.
func (db *Database) LookupCallsign(cs string) (*PrefixInfo, bool) {
	cs = strings.ToUpper(strings.TrimSpace(cs))
	if cs == "" {
		return nil, false
	}
	db.lookups.Add(1)
	if item, ok := db.cacheGet(cs); ok {
		db.cacheHits.Add(1)
		return item.info, item.ok
	}
	info, ok := db.lookupNoCache(cs)
	db.cacheStore(cs, info, ok)
	return info, ok
}

func (db *Database) lookupNoCache(cs string) (*PrefixInfo, bool) {
	if info, ok := db.data[cs]; ok {
		return &info, true
	}
	if key, ok := db.trie.longest(cs); ok {
		info := db.data[key]
		return &info, true
	}
	return nil, false
}

// operating suffixes that say nothing about location
var ignoredSegments = map[string]struct{}{
	"P": {}, "M": {}, "MM": {}, "AM": {}, "QRP": {}, "B": {}, "A": {},
}

// LookupCallsignPortable handles slashed calls such as "W6/K1ABC" or
// "K1ABC/W6". Operating suffixes (/P, /QRP, ...) and call-area digits are
// dropped, the shortest remaining segment is tried first as the location
// prefix, and the full call is the last resort.
func (db *Database) LookupCallsignPortable(cs string) (*PrefixInfo, bool) {
	cs = strings.ToUpper(strings.TrimSpace(cs))
	if !strings.Contains(cs, "/") {
		return db.LookupCallsign(cs)
	}
	var segments []string
	for _, seg := range strings.Split(cs, "/") {
		if seg == "" {
			continue
		}
		if _, skip := ignoredSegments[seg]; skip {
			continue
		}
		if len(seg) == 1 && seg[0] >= '0' && seg[0] <= '9' {
			continue
		}
		segments = append(segments, seg)
	}
	sort.SliceStable(segments, func(i, j int) bool { return len(segments[i]) < len(segments[j]) })
	for _, seg := range segments {
		if info, ok := db.LookupCallsign(seg); ok {
			return info, true
		}
	}
	return db.LookupCallsign(cs)
}

// Locate returns the continent and country for a worked call.
func (db *Database) Locate(call string) (continent, country string, ok bool) {
	if db == nil {
		return "", "", false
	}
	info, found := db.LookupCallsignPortable(call)
	if !found {
		return "", "", false
	}
	return info.Continent, info.Country, true
}

// CacheStats returns total lookups and how many were answered from cache.
func (db *Database) CacheStats() (lookups, hits uint64) {
	return db.lookups.Load(), db.cacheHits.Load()
}

func (db *Database) cacheGet(cs string) (cacheItem, bool) {
	if db.cacheCap <= 0 {
		return cacheItem{}, false
	}
	db.cacheMu.Lock()
	defer db.cacheMu.Unlock()
	elem, ok := db.cacheMap[cs]
	if !ok {
		return cacheItem{}, false
	}
	db.cacheList.MoveToFront(elem)
	item := *elem.Value.(*cacheItem)
	if item.info != nil {
		// Callers get their own copy.
		info := *item.info
		item.info = &info
	}
	return item, true
}

func (db *Database) cacheStore(cs string, info *PrefixInfo, ok bool) {
	if db.cacheCap <= 0 {
		return
	}
	var stored *PrefixInfo
	if info != nil {
		c := *info
		stored = &c
	}
	db.cacheMu.Lock()
	defer db.cacheMu.Unlock()
	if elem, exists := db.cacheMap[cs]; exists {
		item := elem.Value.(*cacheItem)
		item.info, item.ok = stored, ok
		db.cacheList.MoveToFront(elem)
		return
	}
	db.cacheMap[cs] = db.cacheList.PushFront(&cacheItem{key: cs, info: stored, ok: ok})
	if len(db.cacheMap) > db.cacheCap {
		if tail := db.cacheList.Back(); tail != nil {
			db.cacheList.Remove(tail)
			delete(db.cacheMap, tail.Value.(*cacheItem).key)
		}
	}
}
