package api

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBufferCapturesZerologLines(t *testing.T) {
	b := NewLogBuffer(10)

	_, err := b.Write([]byte(`{"level":"warn","message":"subscriber send failed, dropping"}` + "\n"))
	require.NoError(t, err)

	got := b.Recent(10)
	require.Len(t, got, 1)
	assert.Equal(t, "warn", got[0].Level)
	assert.Equal(t, "subscriber send failed, dropping", got[0].Message)
	assert.NotContains(t, got[0].Raw, "\n")
}

func TestLogBufferNonJSONLine(t *testing.T) {
	b := NewLogBuffer(10)
	_, err := b.Write([]byte("plain text line\n"))
	require.NoError(t, err)

	got := b.Recent(10)
	require.Len(t, got, 1)
	assert.Equal(t, "info", got[0].Level)
	assert.Equal(t, "plain text line", got[0].Raw)
}

func TestLogBufferWrapsOldestFirst(t *testing.T) {
	b := NewLogBuffer(3)
	for i := 0; i < 5; i++ {
		_, err := b.Write([]byte(fmt.Sprintf(`{"level":"info","message":"line %d"}`, i)))
		require.NoError(t, err)
	}

	got := b.Recent(3)
	require.Len(t, got, 3)
	assert.Equal(t, "line 2", got[0].Message)
	assert.Equal(t, "line 3", got[1].Message)
	assert.Equal(t, "line 4", got[2].Message)
}

func TestLogBufferRecentLimit(t *testing.T) {
	b := NewLogBuffer(10)
	for i := 0; i < 4; i++ {
		_, _ = b.Write([]byte(fmt.Sprintf(`{"level":"info","message":"line %d"}`, i)))
	}

	got := b.Recent(2)
	require.Len(t, got, 2)
	assert.Equal(t, "line 2", got[0].Message)
	assert.Equal(t, "line 3", got[1].Message)

	assert.Len(t, b.Recent(0), 4)
	assert.Len(t, b.Recent(100), 4)
}
