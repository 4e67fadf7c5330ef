package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/reviewscope/models"
)

func rec(id, text string) models.ReviewRecord {
	return models.ReviewRecord{ID: id, Text: text, Rating: models.DefaultRating}
}

func TestDedupe_KeepsFirstOccurrenceInOrder(t *testing.T) {
	in := []models.ReviewRecord{
		rec("a", "Great show!"),
		rec("b", "Kids loved it"),
		rec("c", "Great show!"),
		rec("d", "Too loud"),
		rec("e", "Kids loved it"),
	}

	out := Dedupe(in)

	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
	assert.Equal(t, "d", out[2].ID)
	assert.Len(t, in, 5, "input is left untouched")
}

func TestDedupe_Idempotent(t *testing.T) {
	in := []models.ReviewRecord{rec("1", "x y z w"), rec("2", "x y z w"), rec("3", "other text")}

	once := Dedupe(in)
	twice := Dedupe(once)

	assert.Equal(t, once, twice)
	assert.LessOrEqual(t, len(once), len(in))
}

func TestDedupe_Empty(t *testing.T) {
	out := Dedupe(nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestAssemble(t *testing.T) {
	rating := 4.6
	ex := &Extraction{
		Records:     []models.ReviewRecord{rec("1", "same text"), rec("2", "same text"), rec("3", "different")},
		Rating:      &rating,
		ReviewCount: 120,
	}

	res := Assemble(ex)

	require.Len(t, res.Reviews, 2)
	assert.Equal(t, &rating, res.Rating)
	assert.Equal(t, 120, res.ReviewCount)
	assert.Equal(t, 1, ex.Diagnostics.Duplicates)
}

func TestAssemble_Nil(t *testing.T) {
	res := Assemble(nil)
	assert.NotNil(t, res.Reviews)
	assert.Empty(t, res.Reviews)
	assert.Nil(t, res.Rating)
}
