package scraper

import (
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceTypes maps config names to blockable resource types. Blocking
// "Image" is possible but lazy loaders may then never set photo src
// attributes.
var resourceTypes = map[string]proto.NetworkResourceType{
	"Font":  proto.NetworkResourceTypeFont,
	"Media": proto.NetworkResourceTypeMedia,
	"Image": proto.NetworkResourceTypeImage,
	"Ping":  proto.NetworkResourceTypePing,
}

// trackerHosts are ad and analytics hosts. A request is blocked when its
// host equals an entry or is a subdomain of one.
var trackerHosts = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"mc.yandex.ru":          {},
	"an.yandex.ru":          {},
	"yandexadexchange.net":  {},
	"adfox.ru":              {},
	"top-fwz1.mail.ru":      {},
	"facebook.net":          {},
	"criteo.com":            {},
	"adnxs.com":             {},
	"hotjar.com":            {},
	"scorecardresearch.com": {},
	"amazon-adsystem.com":   {},
	"taboola.com":           {},
	"outbrain.com":          {},
}

// blocker decides which page requests are failed before they leave the
// browser.
type blocker struct {
	types    map[proto.NetworkResourceType]struct{}
	trackers bool
	blocked  atomic.Int64
}

func newBlocker(typeNames []string, blockTrackers bool) *blocker {
	b := &blocker{
		types:    make(map[proto.NetworkResourceType]struct{}, len(typeNames)),
		trackers: blockTrackers,
	}
	for _, name := range typeNames {
		if rt, ok := resourceTypes[name]; ok {
			b.types[rt] = struct{}{}
		} else {
			slog.Warn("unknown resource type in block list", "type", name)
		}
	}
	return b
}

func (b *blocker) active() bool {
	return len(b.types) > 0 || b.trackers
}

func (b *blocker) shouldBlock(rt proto.NetworkResourceType, rawURL string) bool {
	if _, ok := b.types[rt]; ok {
		return true
	}
	if !b.trackers {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return isTrackerHost(u.Hostname())
}

func isTrackerHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for host != "" {
		if _, ok := trackerHosts[host]; ok {
			return true
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			return false
		}
		host = host[i+1:]
	}
	return false
}

// install starts intercepting page requests. It returns nil when there is
// nothing to block; otherwise the caller must Stop the router.
func (b *blocker) install(page *rod.Page) *rod.HijackRouter {
	if !b.active() {
		return nil
	}
	router := page.HijackRequests()
	_ = router.Add("*", "", func(h *rod.Hijack) {
		if b.shouldBlock(h.Request.Type(), h.Request.URL().String()) {
			b.blocked.Add(1)
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	// Run blocks until Stop.
	go router.Run()
	return router
}
