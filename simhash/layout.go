package simhash

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// DefaultDriftThreshold is the distance above which two layouts are
// considered different markup rather than different content.
const DefaultDriftThreshold = 12

// Layout fingerprints the structure of an HTML fragment. Tokens are the
// tag name plus its sorted class names, so renamed classes move the
// fingerprint while text, attributes and modifier classes do not.
func Layout(htmlStr string) uint64 {
	tokens := layoutTokens(htmlStr)
	if len(tokens) == 0 {
		return 0
	}
	if sh := shingles(tokens, 3); len(sh) > 0 {
		return Fingerprint(sh)
	}
	return Fingerprint(tokens)
}

func layoutTokens(htmlStr string) []string {
	z := html.NewTokenizer(strings.NewReader(htmlStr))
	var tokens []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			return tokens
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tok := string(name)
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) == "class" {
					if cls := classKey(string(val)); cls != "" {
						tok += "." + cls
					}
				}
			}
			tokens = append(tokens, tok)
		}
	}
}

// classKey keeps the structural class names. BEM-style modifiers such as
// "_full" or "_selected" describe state, not layout.
func classKey(attr string) string {
	var keep []string
	for _, c := range strings.Fields(attr) {
		if strings.HasPrefix(c, "_") {
			continue
		}
		keep = append(keep, c)
	}
	sort.Strings(keep)
	return strings.Join(keep, ".")
}

func shingles(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i <= len(tokens)-n; i++ {
		out = append(out, strings.Join(tokens[i:i+n], " "))
	}
	return out
}

// Tracker remembers the last layout seen per key (usually a host) and
// reports how far a new observation moved from it.
type Tracker struct {
	mu        sync.Mutex
	threshold int
	last      map[string]uint64
}

// NewTracker returns a Tracker. A threshold <= 0 selects
// DefaultDriftThreshold.
func NewTracker(threshold int) *Tracker {
	if threshold <= 0 {
		threshold = DefaultDriftThreshold
	}
	return &Tracker{threshold: threshold, last: make(map[string]uint64)}
}

// Observe records fp for key. It returns the distance from the previous
// fingerprint and whether that distance exceeds the threshold. The first
// observation of a key never drifts. Zero fingerprints are ignored.
func (t *Tracker) Observe(key string, fp uint64) (distance int, drifted bool) {
	if fp == 0 {
		return 0, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, ok := t.last[key]
	t.last[key] = fp
	if !ok {
		return 0, false
	}
	distance = Distance(prev, fp)
	return distance, distance > t.threshold
}
