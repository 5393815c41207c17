package policy

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountTokensEmpty(t *testing.T) {
	n, err := CountTokens("")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTruncateTokensHonorsBudget(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 50)

	for _, max := range []int{1, 5, 37, 100, 100000} {
		truncated, err := TruncateTokens(text, max)
		require.NoError(t, err)

		n, err := CountTokens(truncated)
		require.NoError(t, err)
		assert.LessOrEqual(t, n, max)
	}
}

func TestTruncateTokensIdempotent(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta ", 100)

	once, err := TruncateTokens(text, 40)
	require.NoError(t, err)
	twice, err := TruncateTokens(once, 40)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestTruncateTokensNonPositiveBudget(t *testing.T) {
	for _, max := range []int{0, -1, -100} {
		out, err := TruncateTokens("some text", max)
		require.NoError(t, err)
		assert.Empty(t, out)
	}
}

func TestTruncateTokensShortTextUnchanged(t *testing.T) {
	out, err := TruncateTokens("hello world", 100)
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
}

func TestChunkByTokensWindows(t *testing.T) {
	text := strings.Repeat("one two three four five six seven eight nine ten ", 20)

	chunks, err := ChunkByTokens(text, 10, 2)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		n, err := CountTokens(c)
		require.NoError(t, err)
		assert.LessOrEqual(t, n, 10)
	}
}

func TestChunkByTokensEmptyText(t *testing.T) {
	chunks, err := ChunkByTokens("", 10, 2)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkByTokensValidation(t *testing.T) {
	var invalid *ValidationError

	_, err := ChunkByTokens("text", 0, 0)
	require.True(t, errors.As(err, &invalid))

	_, err = ChunkByTokens("text", 10, -1)
	require.True(t, errors.As(err, &invalid))

	_, err = ChunkByTokens("text", 10, 10)
	require.True(t, errors.As(err, &invalid))
}
