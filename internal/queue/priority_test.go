package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrawlPriority(t *testing.T) {
	tests := []struct {
		name      string
		hop       int
		maxHops   int
		citations int
		want      int
	}{
		{"seed with saturated citations", 0, 2, 90000, 100},
		{"seed with no citations", 0, 2, 0, 50},
		{"half depth saturated", 1, 2, 100, 50},
		{"half depth uncited", 1, 2, 0, 25},
		{"citations saturate at 100", 1, 2, 1000, 50},
		{"boundary hop scores zero", 2, 2, 90000, 0},
		{"beyond boundary clamps to zero", 5, 2, 90000, 0},
		{"third depth uncited rounds", 2, 3, 0, 17},
		{"partial citations", 0, 2, 50, 75},
		{"zero max hops seed", 0, 0, 0, 100},
		{"zero max hops neighbor", 1, 0, 1000, 0},
		{"negative citations clamp", 0, 2, -5, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CrawlPriority(tt.hop, tt.maxHops, tt.citations))
		})
	}
}

func TestShouldCrawl(t *testing.T) {
	// Seed always clears the floor.
	assert.True(t, ShouldCrawl(0, 2, 0))

	// Boundary papers never recurse further.
	assert.False(t, ShouldCrawl(2, 2, 90000))
	assert.False(t, ShouldCrawl(3, 2, 90000))

	// Deep, uncited papers fall below the floor.
	assert.False(t, ShouldCrawl(9, 10, 0)) // scores 5
	assert.True(t, ShouldCrawl(8, 10, 0))  // scores 10
}
