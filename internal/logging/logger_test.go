package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestLoggerLevelsAndFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "bot.log")

	l, err := NewLogger(Options{Level: LevelWarn, Path: path, JSON: true, Console: &console})
	require.NoError(t, err)

	l.Info("hidden %d", 1)
	l.Warn("shown %d", 2)
	l.Critical("boom")
	require.NoError(t, l.Close())

	out := console.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, `"critical":true`)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestAsyncWriterDropsWhenFull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w.log")
	aw, err := NewAsyncWriter(path, 1)
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		n, err := aw.Write([]byte("x\n"))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}
	require.NoError(t, aw.Close())

	_, err = aw.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	written := uint64(strings.Count(string(data), "\n"))
	assert.Equal(t, uint64(1000), written+aw.Dropped())
}

func TestRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.log")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("a"), 64), 0644))

	lr := LogRotation{MaxSize: 32}
	assert.True(t, lr.ShouldRotate(path))
	rotateIfNeeded(path, lr)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
