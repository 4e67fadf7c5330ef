package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRating(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"4", 4, true},
		{"4.5", 4.5, true},
		{"4,5", 4.5, true},
		{"Оценка 3,0 Из 5", 3, true},
		{"Rating 4.7 out of 5", 4.7, true},
		{"  5  ", 5, true},
		{"0", 0, false},
		{"", 0, false},
		{"no digits", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseRating(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"87", 87, true},
		{"1 234 отзыва", 1234, true},
		{"1 234 reviews", 1234, true},
		{"1 234", 1234, true},
		{"12,345 reviews", 12345, true},
		{"Отзывы 56", 56, true},
		{"Rating 4.5 · 120 reviews", 120, true},
		{"4,8 (1 234 отзыва)", 1234, true},
		{"4.8 · 1,234 reviews", 1234, true},
		{"4.5", 0, false},
		{"", 0, false},
		{"нет отзывов", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseCount(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
