package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyBlocksDenylistedWords(t *testing.T) {
	f, err := NewFilter(nil)
	require.NoError(t, err)

	v := f.Classify("I will kill you")
	assert.False(t, v.Allowed)
	assert.Equal(t, "violence", v.Rule)
}

func TestClassifyWordBoundaryNotSubstring(t *testing.T) {
	f, err := NewFilter(nil)
	require.NoError(t, err)

	// "killer" contains "kill" but is a different word.
	assert.True(t, f.Classify("killer whale facts").Allowed)
	assert.True(t, f.Classify("skill issue").Allowed)
	assert.False(t, f.Classify("go kill it").Allowed)
}

func TestClassifyCaseInsensitive(t *testing.T) {
	f, err := NewFilter(nil)
	require.NoError(t, err)

	assert.False(t, f.Classify("MURDER mystery night").Allowed)
	assert.False(t, f.Classify("Hatred").Allowed)
}

func TestClassifyLeetspeakVariants(t *testing.T) {
	f, err := NewFilter(nil)
	require.NoError(t, err)

	assert.False(t, f.Classify("what a b1tch").Allowed)
	assert.False(t, f.Classify("f**k this").Allowed)
}

func TestClassifyAllowedText(t *testing.T) {
	f, err := NewFilter(nil)
	require.NoError(t, err)

	v := f.Classify("Hello world, lovely day for birdwatching")
	assert.True(t, v.Allowed)
	assert.Empty(t, v.Rule)
}

func TestClassifyDeterministic(t *testing.T) {
	f, err := NewFilter(nil)
	require.NoError(t, err)

	first := f.Classify("violence is never the answer")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, f.Classify("violence is never the answer"))
	}
}

func TestNewFilterExtraPatterns(t *testing.T) {
	f, err := NewFilter([]string{`\bcrypto\s+giveaway\b`})
	require.NoError(t, err)

	v := f.Classify("free CRYPTO giveaway inside")
	assert.False(t, v.Allowed)
	assert.Equal(t, "custom", v.Rule)
}

func TestNewFilterRejectsBadPattern(t *testing.T) {
	_, err := NewFilter([]string{`(`})
	assert.Error(t, err)
}
