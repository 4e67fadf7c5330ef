// Package extract turns a rendered listing page into review records.
//
// All field lookups go through declarative fallback chains (see Selectors):
// an ordered list of structural alternatives per field where the first
// non-empty match wins. A miss on any field is never an error; the field is
// defaulted or omitted and counted in the diagnostics.
package extract

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/reviewscope/models"
	"github.com/use-agent/reviewscope/simhash"
)

const (
	// MinTextRunes is the shortest review text that is emitted.
	MinTextRunes = 4

	// MinReplyRunes is the length a reply must exceed to be kept; shorter
	// blocks are usually UI chrome such as an "Answer" button.
	MinReplyRunes = 10
)

// Extraction is the raw output of one pass over the page, before
// deduplication.
type Extraction struct {
	Records     []models.ReviewRecord
	Rating      *float64
	ReviewCount int
	Diagnostics models.Diagnostics
}

type compiled struct {
	review, author, avatar, rating, text, date, photos chain
	replyBlock, replyText, replyDate                   chain
	pageRating, pageCount                              chain
}

// Extractor applies compiled selector chains to page snapshots.
// It is safe for concurrent use.
type Extractor struct {
	c   compiled
	now func() time.Time
}

// Option customises an Extractor.
type Option func(*Extractor)

// WithClock overrides the time source used for IDs and fallback dates.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// New compiles s. It fails if any selector is invalid or if the review
// container or text chains are empty.
func New(s Selectors, opts ...Option) (*Extractor, error) {
	if len(s.Review) == 0 {
		return nil, fmt.Errorf("extract: review container chain is empty")
	}
	if len(s.Text) == 0 {
		return nil, fmt.Errorf("extract: review text chain is empty")
	}

	var c compiled
	fields := []struct {
		name string
		src  Chain
		dst  *chain
	}{
		{"review", s.Review, &c.review},
		{"author", s.Author, &c.author},
		{"avatar", s.Avatar, &c.avatar},
		{"rating", s.Rating, &c.rating},
		{"text", s.Text, &c.text},
		{"date", s.Date, &c.date},
		{"photos", s.Photos, &c.photos},
		{"reply.block", s.Reply.Block, &c.replyBlock},
		{"reply.text", s.Reply.Text, &c.replyText},
		{"reply.date", s.Reply.Date, &c.replyDate},
		{"page_rating", s.PageRating, &c.pageRating},
		{"page_count", s.PageCount, &c.pageCount},
	}
	for _, f := range fields {
		compiledChain, err := compileChain(f.name, f.src)
		if err != nil {
			return nil, err
		}
		*f.dst = compiledChain
	}

	e := &Extractor{c: c, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Extract parses rawHTML (the rendered DOM of pageURL) into records and the
// page-level aggregate. Records follow DOM order.
func (e *Extractor) Extract(rawHTML, pageURL string) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("extract: parse document: %w", err)
	}
	base, _ := url.Parse(pageURL)
	now := e.now()

	out := &Extraction{Records: []models.ReviewRecord{}}

	containers := e.c.review.elements(doc.Selection)
	out.Diagnostics.Containers = containers.Length()
	if containers.Length() > 0 {
		if outer, err := goquery.OuterHtml(containers.First()); err == nil {
			out.Diagnostics.LayoutFingerprint = simhash.Hex(simhash.Layout(outer))
		}
	}

	containers.Each(func(i int, s *goquery.Selection) {
		rec, ok := e.extractOne(s, i, base, now, &out.Diagnostics)
		if !ok {
			return
		}
		out.Records = append(out.Records, rec)
	})
	out.Diagnostics.Emitted = len(out.Records)

	if v, ok := ParseRating(e.c.pageRating.firstWhere(doc.Selection, isRating)); ok {
		out.Rating = &v
	}
	if n, ok := ParseCount(e.c.pageCount.firstWhere(doc.Selection, isCount)); ok {
		out.ReviewCount = n
	}

	return out, nil
}

func (e *Extractor) extractOne(s *goquery.Selection, pos int, base *url.URL, now time.Time, diag *models.Diagnostics) (models.ReviewRecord, bool) {
	// Reply blocks are read first and then cut from a copy so that the
	// review text chain cannot pick up the owner's answer.
	var reply *models.BusinessComment
	body := s
	if blocks := e.c.replyBlock.elements(s); blocks.Length() > 0 {
		reply = e.extractReply(blocks.First(), now, diag)
		body = s.Clone()
		e.c.replyBlock.elements(body).Remove()
	}

	text := e.c.text.firstWhere(body, longEnough)
	if utf8.RuneCountInString(text) < MinTextRunes {
		diag.DroppedShortText++
		return models.ReviewRecord{}, false
	}

	rec := models.ReviewRecord{
		ID:              fmt.Sprintf("%d-%d", now.UnixMilli(), pos),
		Text:            text,
		Date:            e.c.date.first(body),
		BusinessComment: reply,
	}

	rec.Author.Name = e.c.author.first(body)
	if rec.Author.Name == "" {
		rec.Author.Name = models.DefaultAuthorName
		diag.AnonymousAuthors++
	}
	rec.Author.AvatarURL = resolveURL(base, e.c.avatar.first(body))

	if v, ok := ParseRating(e.c.rating.firstWhere(body, isRating)); ok {
		rec.Rating = v
	} else {
		rec.Rating = models.DefaultRating
		rec.RatingDefaulted = true
		diag.DefaultedRatings++
	}

	if rec.Date == "" {
		rec.Date = now.UTC().Format(time.RFC3339)
	}

	for _, p := range e.c.photos.all(body) {
		if u := resolveURL(base, p); u != "" && u != rec.Author.AvatarURL {
			rec.Photos = append(rec.Photos, u)
		}
	}

	return rec, true
}

func (e *Extractor) extractReply(block *goquery.Selection, now time.Time, diag *models.Diagnostics) *models.BusinessComment {
	text := e.c.replyText.first(block)
	if text == "" {
		text = normalizeSpace(block.Text())
	}
	if utf8.RuneCountInString(text) <= MinReplyRunes {
		diag.DroppedReplies++
		return nil
	}
	date := e.c.replyDate.first(block)
	if date == "" {
		date = now.UTC().Format(time.RFC3339)
	}
	return &models.BusinessComment{Text: text, Date: date}
}

func longEnough(v string) bool { return utf8.RuneCountInString(v) >= MinTextRunes }

func isRating(v string) bool {
	_, ok := ParseRating(v)
	return ok
}

func isCount(v string) bool {
	_, ok := ParseCount(v)
	return ok
}
