package extract

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Special Pattern.Attr values.
const (
	// AttrBackground reads the url(...) of an inline background-image.
	AttrBackground = "background-image"

	// AttrCount yields the number of matched elements (e.g. filled stars).
	AttrCount = "#count"
)

// Pattern is one structural alternative for locating a value.
//
// An empty Selector means the element the chain is applied to. An empty
// Attr means the element's text content.
type Pattern struct {
	Selector string `yaml:"selector"`
	Attr     string `yaml:"attr,omitempty"`
}

// Chain is an ordered list of alternatives. The first one yielding a
// non-empty value wins.
type Chain []Pattern

// ReplySelectors locate the listing owner's answer inside a review.
type ReplySelectors struct {
	Block Chain `yaml:"block"`
	Text  Chain `yaml:"text"`
	Date  Chain `yaml:"date"`
}

// Selectors maps every extracted field to its fallback chain. Updating
// extraction for a site redesign means editing this value, not code.
type Selectors struct {
	Review     Chain          `yaml:"review"`
	Author     Chain          `yaml:"author"`
	Avatar     Chain          `yaml:"avatar"`
	Rating     Chain          `yaml:"rating"`
	Text       Chain          `yaml:"text"`
	Date       Chain          `yaml:"date"`
	Photos     Chain          `yaml:"photos"`
	Reply      ReplySelectors `yaml:"reply"`
	PageRating Chain          `yaml:"page_rating"`
	PageCount  Chain          `yaml:"page_count"`
}

// DefaultSelectors covers the target listing site's current markup first,
// then schema.org microdata, then generic class-name heuristics.
func DefaultSelectors() Selectors {
	return Selectors{
		Review: Chain{
			{Selector: ".business-reviews-card-view__review"},
			{Selector: "[itemprop='review']"},
			{Selector: "[data-testid='review']"},
			{Selector: "[class*='review-item']"},
			{Selector: "[class*='ReviewItem']"},
		},
		Author: Chain{
			{Selector: ".business-review-view__author-name [itemprop='name']"},
			{Selector: ".business-review-view__author-name"},
			{Selector: "[itemprop='author'] [itemprop='name']", Attr: "content"},
			{Selector: "[itemprop='author'] [itemprop='name']"},
			{Selector: "[itemprop='author']"},
			{Selector: "[class*='author-name']"},
			{Selector: "[class*='user-name']"},
		},
		Avatar: Chain{
			{Selector: ".business-review-view__user-icon .user-icon-view__icon", Attr: AttrBackground},
			{Selector: "[class*='avatar'] img", Attr: "src"},
			{Selector: "img[class*='avatar']", Attr: "src"},
			{Selector: "[class*='avatar']", Attr: AttrBackground},
		},
		Rating: Chain{
			{Selector: ".business-review-view__rating meta[itemprop='ratingValue']", Attr: "content"},
			{Selector: "[itemprop='reviewRating'] [itemprop='ratingValue']", Attr: "content"},
			{Selector: "[itemprop='ratingValue']"},
			{Selector: ".business-rating-badge-view__star._full", Attr: AttrCount},
			{Selector: "[aria-label*='Оценка']", Attr: "aria-label"},
			{Selector: "[aria-label*='Rating']", Attr: "aria-label"},
			{Selector: "[data-rating]", Attr: "data-rating"},
		},
		Text: Chain{
			{Selector: ".business-review-view__body-text"},
			{Selector: "[itemprop='reviewBody']"},
			{Selector: "[class*='review-text']"},
			{Selector: "[class*='review__text']"},
			{Selector: "[class*='ReviewText']"},
			{Selector: "[class*='comment-text']"},
		},
		Date: Chain{
			{Selector: ".business-review-view__date meta[itemprop='datePublished']", Attr: "content"},
			{Selector: "meta[itemprop='datePublished']", Attr: "content"},
			{Selector: "time[datetime]", Attr: "datetime"},
			{Selector: ".business-review-view__date"},
			{Selector: "[class*='review-date']"},
			{Selector: "time"},
		},
		Photos: Chain{
			{Selector: ".business-review-media__item-img", Attr: "src"},
			{Selector: ".business-review-media__item", Attr: AttrBackground},
			{Selector: "[class*='review-photo'] img", Attr: "src"},
			{Selector: "[class*='photos'] img", Attr: "src"},
		},
		Reply: ReplySelectors{
			Block: Chain{
				{Selector: ".business-review-comment-content"},
				{Selector: ".business-review-view__comment"},
				{Selector: "[class*='business-reply']"},
				{Selector: "[class*='owner-response']"},
				{Selector: "[class*='answer']"},
			},
			Text: Chain{
				{Selector: ".business-review-comment-content__bubble"},
				{Selector: "[class*='reply-text']"},
				{Selector: "[class*='response-text']"},
				{Selector: "p"},
				{Selector: ""},
			},
			Date: Chain{
				{Selector: "meta[itemprop='datePublished']", Attr: "content"},
				{Selector: "time[datetime]", Attr: "datetime"},
				{Selector: ".business-review-comment-content__date"},
				{Selector: "[class*='date']"},
			},
		},
		PageRating: Chain{
			{Selector: ".business-summary-rating-badge-view__rating-text"},
			{Selector: ".business-rating-badge-view__rating-text"},
			{Selector: "[itemprop='aggregateRating'] [itemprop='ratingValue']", Attr: "content"},
			{Selector: "[itemprop='aggregateRating'] [itemprop='ratingValue']"},
			{Selector: "[class*='rating-value']"},
		},
		PageCount: Chain{
			{Selector: ".business-summary-rating-badge-view__rating-count"},
			{Selector: ".card-section-header__title._wide"},
			{Selector: "[itemprop='aggregateRating'] [itemprop='reviewCount']", Attr: "content"},
			{Selector: "[itemprop='aggregateRating'] [itemprop='reviewCount']"},
			{Selector: "[class*='reviews-count']"},
		},
	}
}

// LoadSelectors reads a YAML file over DefaultSelectors. Fields present in
// the file replace the default chain for that field wholesale; absent
// fields keep their defaults.
func LoadSelectors(path string) (Selectors, error) {
	s := DefaultSelectors()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("extract: read selectors file: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("extract: parse selectors file %s: %w", path, err)
	}
	return s, nil
}

// ContainerSelectors returns the review container alternatives in order.
// The browser side uses them to count loaded reviews while scrolling.
func (s Selectors) ContainerSelectors() []string {
	out := make([]string, 0, len(s.Review))
	for _, p := range s.Review {
		if p.Selector != "" {
			out = append(out, p.Selector)
		}
	}
	return out
}
