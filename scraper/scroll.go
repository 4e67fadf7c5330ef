package scraper

import (
	"context"

	"github.com/go-rod/rod"
	"github.com/use-agent/reviewscope/config"
	"github.com/use-agent/reviewscope/converge"
)

// scrollJS pushes the document and every scrollable panel to its bottom.
// Listing sites usually keep reviews in an overflow container rather than
// the document, so both are driven.
const scrollJS = `() => {
	const targets = new Set();
	targets.add(document.scrollingElement || document.documentElement);
	for (const el of document.querySelectorAll('div, section, ul, ol, main, aside')) {
		if (el.scrollHeight - el.clientHeight < 20) continue;
		const oy = getComputedStyle(el).overflowY;
		if (oy === 'auto' || oy === 'scroll') targets.add(el);
	}
	let moved = 0;
	for (const el of targets) {
		const before = el.scrollTop;
		el.scrollTop = el.scrollHeight;
		if (el.scrollTop !== before) moved++;
	}
	return moved;
}`

// countJS counts review containers using the first selector that matches.
const countJS = `(selectors) => {
	for (const sel of selectors) {
		let n = 0;
		try { n = document.querySelectorAll(sel).length; } catch (e) { continue; }
		if (n > 0) return n;
	}
	return 0;
}`

// scrollToConvergence drives the page until the number of loaded review
// containers stops growing or the round budget runs out.
func scrollToConvergence(ctx context.Context, page *rod.Page, cfg config.ScraperConfig, containers []string) converge.Outcome {
	p := page.Context(ctx)

	scroll := func(context.Context) error {
		_, err := p.Eval(scrollJS)
		return err
	}
	sample := func(context.Context) (int, error) {
		res, err := p.Eval(countJS, containers)
		if err != nil {
			return 0, err
		}
		return res.Value.Int(), nil
	}

	ctrl := converge.New(converge.Config{
		MaxRounds:     cfg.ScrollRounds,
		SampleEvery:   cfg.SampleEvery,
		StableSamples: cfg.StableSamples,
		Interval:      cfg.ScrollInterval,
	}, scroll, sample)
	return ctrl.Run(ctx)
}
