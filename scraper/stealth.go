package scraper

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

// StealthProfile is the set of browser fingerprint values presented to the
// target site. Bump Version whenever a value changes so sessions can tell
// profiles apart.
type StealthProfile struct {
	Version        string
	UserAgent      string
	Platform       string
	AcceptLanguage string
	AcceptEncoding string
	Languages      []string
	Plugins        []string
}

// DefaultStealthProfile resembles a current desktop Chrome on Windows with
// a Russian-first locale, matching the audience of the target listings.
func DefaultStealthProfile() StealthProfile {
	return StealthProfile{
		Version:        "2024.10-win-chrome",
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
		Platform:       "Win32",
		AcceptLanguage: "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7",
		AcceptEncoding: "gzip, deflate, br",
		Languages:      []string{"ru-RU", "ru", "en-US", "en"},
		Plugins:        []string{"PDF Viewer", "Chrome PDF Viewer", "Chromium PDF Viewer"},
	}
}

const stealthScript = `(() => {
	const languages = %s;
	const plugins = %s || [];
	const platform = %s;
	const define = (name, get) => {
		try { Object.defineProperty(Navigator.prototype, name, { get, configurable: true }); } catch (e) {}
	};
	define('webdriver', () => undefined);
	define('languages', () => languages.slice());
	define('platform', () => platform);
	if (!navigator.plugins || navigator.plugins.length === 0) {
		const list = plugins.map((name) => ({
			name,
			filename: 'internal-pdf-viewer',
			description: 'Portable Document Format',
			length: 1,
		}));
		define('plugins', () => list);
	}
	const perms = navigator.permissions;
	if (perms && perms.query) {
		const query = perms.query.bind(perms);
		perms.query = (desc) => (desc && desc.name === 'notifications')
			? Promise.resolve({ state: Notification.permission, onchange: null })
			: query(desc);
	}
})();`

// Script returns the in-page shim that runs before any site script on
// every document.
func (p StealthProfile) Script() string {
	return fmt.Sprintf(stealthScript, jsValue(p.Languages), jsValue(p.Plugins), jsValue(p.Platform))
}

// Headers returns the extra request headers sent with every request.
func (p StealthProfile) Headers() proto.NetworkHeaders {
	h := make(proto.NetworkHeaders, 2)
	if p.AcceptLanguage != "" {
		h["Accept-Language"] = gson.New(p.AcceptLanguage)
	}
	if p.AcceptEncoding != "" {
		h["Accept-Encoding"] = gson.New(p.AcceptEncoding)
	}
	return h
}

func jsValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// ApplyStealth installs p on the session page. It must run before the
// first navigation. Applying a profile with the same non-empty Version
// again is a no-op.
func (s *Session) ApplyStealth(p StealthProfile) error {
	s.stealthMu.Lock()
	defer s.stealthMu.Unlock()

	if p.Version != "" && s.stealthVersion == p.Version {
		return nil
	}

	if err := (proto.NetworkSetUserAgentOverride{
		UserAgent:      p.UserAgent,
		AcceptLanguage: p.AcceptLanguage,
		Platform:       p.Platform,
	}).Call(s.page); err != nil {
		return fmt.Errorf("stealth: user agent override: %w", err)
	}

	if headers := p.Headers(); len(headers) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: headers}).Call(s.page); err != nil {
			return fmt.Errorf("stealth: extra headers: %w", err)
		}
	}

	if _, err := s.page.EvalOnNewDocument(stealth.JS); err != nil {
		return fmt.Errorf("stealth: evasion bundle: %w", err)
	}
	if _, err := s.page.EvalOnNewDocument(p.Script()); err != nil {
		return fmt.Errorf("stealth: profile shim: %w", err)
	}

	s.stealthVersion = p.Version
	slog.Debug("stealth profile applied", "version", p.Version)
	return nil
}
