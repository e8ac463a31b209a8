package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNightsBetween(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		end  time.Time
		want int
	}{
		{"three full days", base.AddDate(0, 0, 3), 3},
		{"partial day rounds up", base.Add(25 * time.Hour), 2},
		{"same instant", base, 0},
		{"end before start", base.Add(-time.Hour), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NightsBetween(base, tt.end))
		})
	}
}
