package n3fjp

import (
	"regexp"
	"strings"
)

// Framing identifies which of the two LIST response grammars a reply used.
type Framing string

const (
	// FramingNone means no LISTRESPONSE marker was found at all.
	FramingNone Framing = "none"
	// FramingClosed is <LISTRESPONSE>...</LISTRESPONSE> blocks.
	FramingClosed Framing = "closed"
	// FramingMarkers is a bare <LISTRESPONSE> marker opening each record, never closed.
	FramingMarkers Framing = "markers"
)

const (
	recordMarkerTag = "LISTRESPONSE"
	commandEchoTag  = "CMD"
)

var (
	closeMarkerRE = regexp.MustCompile(`(?i)</\s*LISTRESPONSE\s*>`)
	openMarkerRE  = regexp.MustCompile(`(?i)<\s*LISTRESPONSE\s*>`)
	closedBlockRE = regexp.MustCompile(`(?is)<LISTRESPONSE>(.*?)</LISTRESPONSE>`)
)

// DetectFraming picks the grammar for a whole response. Any closing marker
// anywhere selects FramingClosed for the entire text.
func DetectFraming(text string) Framing {
	if closeMarkerRE.MatchString(text) {
		return FramingClosed
	}
	if openMarkerRE.MatchString(text) {
		return FramingMarkers
	}
	return FramingNone
}

// HasMarkers reports whether the opening and closing record markers appear in
// text. Used for diagnostics only.
func HasMarkers(text string) (open, closed bool) {
	upper := strings.ToUpper(text)
	return strings.Contains(upper, "<"+recordMarkerTag), strings.Contains(upper, "</"+recordMarkerTag+">")
}

// ParseRecords extracts one Record per contact from a LIST response. The
// framing is decided once and never mixed; fragments without a single tag pair
// (typically a tail cut off by the idle timeout) are dropped.
func ParseRecords(text string) []Record {
	if text == "" {
		return nil
	}
	switch DetectFraming(text) {
	case FramingClosed:
		return parseClosed(text)
	case FramingMarkers:
		return parseMarkers(text)
	default:
		return nil
	}
}

func parseClosed(text string) []Record {
	var records []Record
	for _, m := range closedBlockRE.FindAllStringSubmatch(text, -1) {
		if rec := parseTags(m[1]); rec.Len() > 0 {
			records = append(records, rec)
		}
	}
	return records
}

func parseMarkers(text string) []Record {
	parts := openMarkerRE.Split(text, -1)
	var records []Record
	// parts[0] precedes the first marker (command echo, banner noise).
	for _, chunk := range parts[1:] {
		if rec := parseTags(chunk); rec.Len() > 0 {
			records = append(records, rec)
		}
	}
	return records
}

// parseTags walks <NAME>value</NAME> pairs. RE2 has no back-references, so the
// closing tag is located by hand; it must repeat the opening name, compared
// case-insensitively, and the shortest such span wins. An opening tag without a
// matching close is skipped and scanning resumes right after it.
func parseTags(block string) Record {
	rec := Record{}
	i := 0
	for i < len(block) {
		lt := strings.IndexByte(block[i:], '<')
		if lt < 0 {
			break
		}
		start := i + lt
		name, bodyStart, ok := readOpenTag(block, start)
		if !ok {
			i = start + 1
			continue
		}
		closeAt, closeEnd, ok := findCloseTag(block, bodyStart, name)
		if !ok {
			i = start + 1
			continue
		}
		upper := strings.ToUpper(name)
		if upper != commandEchoTag && upper != recordMarkerTag {
			rec.Set(upper, strings.TrimSpace(block[bodyStart:closeAt]))
		}
		i = closeEnd
	}
	return rec
}

// readOpenTag parses "<NAME>" at block[at] and returns NAME and the offset just
// past '>'.
func readOpenTag(block string, at int) (string, int, bool) {
	j := at + 1
	for j < len(block) && isTagByte(block[j]) {
		j++
	}
	if j == at+1 || j >= len(block) || block[j] != '>' {
		return "", 0, false
	}
	return block[at+1 : j], j + 1, true
}

func findCloseTag(block string, from int, name string) (int, int, bool) {
	for k := from; k < len(block); {
		idx := strings.Index(block[k:], "</")
		if idx < 0 {
			return 0, 0, false
		}
		pos := k + idx
		nameEnd := pos + 2 + len(name)
		if nameEnd < len(block) && block[nameEnd] == '>' && strings.EqualFold(block[pos+2:nameEnd], name) {
			return pos, nameEnd + 1, true
		}
		k = pos + 2
	}
	return 0, 0, false
}

func isTagByte(b byte) bool {
	return b == '_' ||
		(b >= 'A' && b <= 'Z') ||
		(b >= 'a' && b <= 'z') ||
		(b >= '0' && b <= '9')
}
