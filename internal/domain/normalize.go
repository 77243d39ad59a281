package domain

import (
	"strings"
)

// abbreviations expanded when they appear as a leading token of a locality
// name. The canonical list spells these out.
var abbreviations = map[string]string{
	"st":  "saint",
	"st.": "saint",
	"mt":  "mount",
	"mt.": "mount",
	"ft":  "fort",
	"ft.": "fort",
}

// joinKeyStrip lists the characters removed when building join keys, matching
// the key scheme of the downstream feature classes.
var joinKeyStrip = []string{"'", " ", ".", "-", "/"}

// Normalizer maps raw provider locality names onto canonical locality keys.
// The zero canonical set disables recognition flagging.
type Normalizer struct {
	canonical map[string]bool
}

// NewNormalizer builds a Normalizer from the canonical locality list. Names
// are themselves normalized, so the config list may use display spellings.
func NewNormalizer(localities []string) *Normalizer {
	n := &Normalizer{canonical: make(map[string]bool, len(localities))}
	for _, name := range localities {
		n.canonical[NormalizeLocality(name)] = true
	}
	return n
}

// Normalize returns the canonical locality key for a raw name and whether it
// matches the canonical list. With an empty canonical list every name is
// treated as recognized.
func (n *Normalizer) Normalize(raw string) (key string, recognized bool) {
	key = NormalizeLocality(raw)
	if len(n.canonical) == 0 {
		return key, true
	}
	return key, n.canonical[key]
}

// NormalizeLocality lowercases a locality name, strips apostrophes, periods,
// hyphens and slashes, collapses whitespace, and expands known leading
// abbreviations ("St Charles" → "saint charles").
func NormalizeLocality(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	fields := strings.Fields(s)
	if len(fields) > 1 {
		if full, ok := abbreviations[fields[0]]; ok {
			fields[0] = full
		}
	}
	s = strings.Join(fields, " ")
	for _, c := range []string{"'", ".", "-", "/"} {
		s = strings.ReplaceAll(s, c, "")
	}
	return strings.Join(strings.Fields(s), " ")
}

// JoinKey builds the composite provider+locality key used to join rows to
// the GIS feature classes: concatenated, lowercased, special characters and
// spaces removed.
func JoinKey(provider, locality string) string {
	s := strings.ToLower(provider + locality)
	for _, c := range joinKeyStrip {
		s = strings.ReplaceAll(s, c, "")
	}
	return s
}
