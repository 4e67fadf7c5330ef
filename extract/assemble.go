package extract

import "github.com/use-agent/reviewscope/models"

// Dedupe keeps the first record per Text and preserves relative order.
// It does not modify records.
func Dedupe(records []models.ReviewRecord) []models.ReviewRecord {
	out := make([]models.ReviewRecord, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if _, dup := seen[r.Text]; dup {
			continue
		}
		seen[r.Text] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Assemble builds the caller-facing result from a raw extraction.
func Assemble(ex *Extraction) *models.ExtractionResult {
	if ex == nil {
		return &models.ExtractionResult{Reviews: []models.ReviewRecord{}}
	}
	reviews := Dedupe(ex.Records)
	ex.Diagnostics.Duplicates = len(ex.Records) - len(reviews)
	return &models.ExtractionResult{
		Reviews:     reviews,
		Rating:      ex.Rating,
		ReviewCount: ex.ReviewCount,
	}
}
