package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Tom Clancy's Rainbow Six Siege": "tom-clancys-rainbow-six-siege",
		"PUBG: BATTLEGROUNDS":            "pubg-battlegrounds",
		"Sid Meier’s Civilization VI":    "sid-meiers-civilization-vi",
		"  spaces  everywhere  ":         "spaces-everywhere",
		"already-a-slug":                 "already-a-slug",
	}
	for input, want := range cases {
		assert.Equal(t, want, Slugify(input), "input %q", input)
	}
}

func TestChunk(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, Chunk(items, 2))
	assert.Equal(t, [][]int{{1, 2, 3, 4, 5}}, Chunk(items, 5))
	assert.Equal(t, [][]int{{1, 2, 3, 4, 5}}, Chunk(items, 10))
	assert.Equal(t, [][]int{{1, 2, 3, 4, 5}}, Chunk(items, 0), "non-positive size yields one chunk")
	assert.Nil(t, Chunk([]int{}, 3))
}

func TestNonce(t *testing.T) {
	n := Nonce(30)
	assert.Len(t, n, 30)
	for _, c := range n {
		assert.Contains(t, nonceCharset, string(c))
	}
	assert.NotEqual(t, Nonce(30), Nonce(30))
}

func TestSessionID(t *testing.T) {
	id := SessionID(16)
	assert.Len(t, id, 16)
	for _, c := range id {
		assert.Contains(t, "0123456789abcdef", string(c))
	}
}

func TestMillify(t *testing.T) {
	assert.Equal(t, "999", Millify(999, 1))
	assert.Equal(t, "1K", Millify(1000, 1))
	assert.Equal(t, "1.5M", Millify(1500000, 1))
	assert.Equal(t, "-2.3K", Millify(-2300, 1))
	assert.Equal(t, "1B", Millify(1000000000, 2))
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 50, Percentage(30, 60))
	assert.Equal(t, 100, Percentage(60, 60))
	assert.Equal(t, 0, Percentage(0, 60))
	assert.Equal(t, 0, Percentage(30, 0))
}
