package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// matcher is a compiled Pattern. A nil sel targets the element itself.
type matcher struct {
	sel  cascadia.Selector
	attr string
}

// chain is a compiled Chain.
type chain []matcher

func compileChain(field string, c Chain) (chain, error) {
	out := make(chain, 0, len(c))
	for i, p := range c {
		m := matcher{attr: p.Attr}
		if p.Selector != "" {
			sel, err := cascadia.Compile(p.Selector)
			if err != nil {
				return nil, fmt.Errorf("extract: %s[%d] %q: %w", field, i, p.Selector, err)
			}
			m.sel = sel
		}
		out = append(out, m)
	}
	return out, nil
}

func (m matcher) find(s *goquery.Selection) *goquery.Selection {
	if m.sel == nil {
		return s
	}
	return s.FindMatcher(m.sel)
}

// value returns the first match value accepted by ok. A nil ok accepts
// any non-empty value.
func (m matcher) value(s *goquery.Selection, ok func(string) bool) string {
	found := m.find(s)
	if found.Length() == 0 {
		return ""
	}
	if m.attr == AttrCount {
		if v := strconv.Itoa(found.Length()); accepts(ok, v) {
			return v
		}
		return ""
	}
	var v string
	found.EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if v = m.read(el); accepts(ok, v) {
			return false
		}
		v = ""
		return true
	})
	return v
}

func accepts(ok func(string) bool, v string) bool {
	return v != "" && (ok == nil || ok(v))
}

func (m matcher) read(el *goquery.Selection) string {
	switch m.attr {
	case "":
		return normalizeSpace(el.Text())
	case AttrBackground:
		style, _ := el.Attr("style")
		return backgroundURL(style)
	default:
		v, _ := el.Attr(m.attr)
		return strings.TrimSpace(v)
	}
}

// first walks the chain and returns the first non-empty value.
func (c chain) first(s *goquery.Selection) string {
	return c.firstWhere(s, nil)
}

// firstWhere walks the chain and returns the first value accepted by ok,
// looking past rejected siblings such as "more" toggles or star glyphs.
func (c chain) firstWhere(s *goquery.Selection, ok func(string) bool) string {
	for _, m := range c {
		if v := m.value(s, ok); v != "" {
			return v
		}
	}
	return ""
}

// all returns every non-empty value of the first pattern that yields any,
// de-duplicated in document order.
func (c chain) all(s *goquery.Selection) []string {
	for _, m := range c {
		if m.attr == AttrCount {
			continue
		}
		var vals []string
		seen := make(map[string]struct{})
		m.find(s).Each(func(_ int, el *goquery.Selection) {
			v := m.read(el)
			if v == "" {
				return
			}
			if _, dup := seen[v]; dup {
				return
			}
			seen[v] = struct{}{}
			vals = append(vals, v)
		})
		if len(vals) > 0 {
			return vals
		}
	}
	return nil
}

// elements returns the matches of the first pattern that matches anything.
func (c chain) elements(s *goquery.Selection) *goquery.Selection {
	for _, m := range c {
		if found := m.find(s); found.Length() > 0 {
			return found
		}
	}
	return s.Slice(0, 0)
}

var (
	spaceRe = regexp.MustCompile(`\s+`)
	bgURLRe = regexp.MustCompile(`url\(\s*['"]?([^'")]+)['"]?\s*\)`)
)

func normalizeSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func backgroundURL(style string) string {
	if m := bgURLRe.FindStringSubmatch(style); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// resolveURL makes ref absolute against base. data: URIs and unparsable
// references yield "".
func resolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
