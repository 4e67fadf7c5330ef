package models

// DefaultAuthorName is used when no author selector resolves.
const DefaultAuthorName = "Anonymous"

// DefaultRating is assigned when a review's rating cannot be parsed.
// Callers should read it as "unknown, assumed neutral-positive", not as a
// genuine five-star signal. RatingDefaulted marks such records.
const DefaultRating = 5.0

// Author identifies who wrote a review.
type Author struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// BusinessComment is the listing owner's reply to a review.
type BusinessComment struct {
	Text string `json:"text"`
	Date string `json:"date"`
}

// ReviewRecord is one extracted review.
type ReviewRecord struct {
	// ID is synthetic (extraction time + DOM position) and not stable
	// across runs.
	ID     string  `json:"id"`
	Author Author  `json:"author"`
	Rating float64 `json:"rating"`

	// RatingDefaulted is true when Rating holds DefaultRating because no
	// rating selector produced a parseable value.
	RatingDefaulted bool `json:"-"`

	Text string `json:"text"`

	// Date is an ISO-8601 string when the page exposes a machine-readable
	// datetime, otherwise the raw display text, otherwise extraction time.
	Date            string           `json:"date"`
	Photos          []string         `json:"photos,omitempty"`
	BusinessComment *BusinessComment `json:"businessComment,omitempty"`
}

// ExtractionResult is the aggregate output of one scrape invocation.
type ExtractionResult struct {
	// Reviews follows DOM order at final extraction and never holds two
	// records with the same Text.
	Reviews []ReviewRecord `json:"reviews"`

	// Rating is the page's overall rating, nil when unresolved.
	Rating *float64 `json:"rating"`

	// ReviewCount is the count the page declares. It may disagree with
	// len(Reviews).
	ReviewCount int `json:"reviewCount"`
}

// Diagnostics describes how an extraction went. It travels next to the
// result, never inside it.
type Diagnostics struct {
	Containers        int    `json:"containers"`
	Emitted           int    `json:"emitted"`
	DroppedShortText  int    `json:"dropped_short_text"`
	DroppedReplies    int    `json:"dropped_replies"`
	DefaultedRatings  int    `json:"defaulted_ratings"`
	AnonymousAuthors  int    `json:"anonymous_authors"`
	Duplicates        int    `json:"duplicates"`
	Convergence       string `json:"convergence,omitempty"`
	ScrollRounds      int    `json:"scroll_rounds"`
	TabActivated      bool   `json:"tab_activated"`
	LayoutFingerprint string `json:"layout_fingerprint,omitempty"`
}
