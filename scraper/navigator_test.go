package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/reviewscope/config"
	"github.com/use-agent/reviewscope/models"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"https://yandex.ru/maps/org/berezka/123/reviews/", false},
		{"http://example.com", false},
		{"  https://example.com/x  ", false},
		{"ftp://example.com/file", true},
		{"/relative/path", true},
		{"https://", true},
		{"::not a url", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := ValidateURL(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, models.ErrCodeInvalidInput, models.ErrorCode(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNavigator_MatchTab(t *testing.T) {
	n := NewNavigator(config.ScraperConfig{})

	tests := []struct {
		name   string
		labels []string
		want   int
	}{
		{"russian tab", []string{"Обзор", "Меню", "Отзывы 1 234", "Фото"}, 2},
		{"case folding", []string{"Overview", "REVIEWS (87)"}, 1},
		{"ukrainian", []string{"Огляд", "Відгуки"}, 1},
		{"german", []string{"Übersicht", "Bewertungen"}, 1},
		{"prefix beats earlier contains", []string{"Написать отзыв", "Отзывы"}, 1},
		{"contains as fallback", []string{"Home", "See all reviews"}, 1},
		{"first prefix match wins", []string{"Reviews", "Comments"}, 0},
		{"no match", []string{"Main", "Menu", "Photos"}, -1},
		{"empty labels", []string{"", "  "}, -1},
		{"no labels", nil, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.matchTab(tt.labels))
		})
	}
}

func TestNavigator_CustomKeywords(t *testing.T) {
	n := NewNavigator(config.ScraperConfig{ReviewKeywords: []string{"Opinie", "", "Recenzje"}})

	assert.Equal(t, []string{"opinie", "recenzje"}, n.keywords)
	assert.Equal(t, 1, n.matchTab([]string{"Zdjęcia", "Opinie (12)"}))
	assert.Equal(t, -1, n.matchTab([]string{"Reviews"}))
}

func TestNavigator_Defaults(t *testing.T) {
	n := NewNavigator(config.ScraperConfig{})
	assert.Equal(t, 30*time.Second, n.cfg.NavigationTimeout)
	assert.NotEmpty(t, n.keywords)
}

func TestPause(t *testing.T) {
	require.NoError(t, pause(context.Background(), time.Millisecond))
	require.NoError(t, pause(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pause(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, pause(ctx, 0), context.Canceled)
}
