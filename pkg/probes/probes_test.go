package probes

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkReady(t *testing.T) {
	file := filepath.Join(t.TempDir(), "ready")

	require.NoError(t, MarkReady(file))
	assert.FileExists(t, file)

	require.NoError(t, MarkNotReady(file))
	assert.NoFileExists(t, file)
	require.NoError(t, MarkNotReady(file), "removing twice is fine")
}

func TestRunLiveness(t *testing.T) {
	// given
	file := filepath.Join(t.TempDir(), "live")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	// when
	go func() { done <- RunLiveness(ctx, file, 10*time.Millisecond, logger) }()

	// then
	require.Eventually(t, func() bool {
		_, err := os.Stat(file)
		return err == nil
	}, time.Second, 5*time.Millisecond)
	first, err := os.Stat(file)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		info, err := os.Stat(file)
		return err == nil && info.ModTime().After(first.ModTime())
	}, time.Second, 5*time.Millisecond, "liveness file is refreshed")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.NoFileExists(t, file)
}
