package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retrying/internal/runner"
	"retrying/pkg/logger"
)

func TestOpenCheckpointAndPending(t *testing.T) {
	t.Cleanup(func() { cpPath = "" })
	cpPath = filepath.Join(t.TempDir(), "batch.checkpoint.json")

	jobs := []runner.Job{
		{ID: 1, Args: []string{"echo", "a"}},
		{ID: 2, Args: []string{"echo", "b"}},
		{ID: 3, Args: []string{"echo", "c"}},
	}

	mgr, cp, err := openCheckpoint("-", jobs, logger.NewTestLogger())
	require.NoError(t, err)
	assert.Equal(t, cpPath, mgr.Path())
	assert.Len(t, pending(jobs, cp), 3)

	require.NoError(t, mgr.RecordSuccess(cp, 2, "echo b"))

	_, cp, err = openCheckpoint("-", jobs, logger.NewTestLogger())
	require.NoError(t, err)
	left := pending(jobs, cp)
	require.Len(t, left, 2)
	assert.Equal(t, 1, left[0].ID)
	assert.Equal(t, 3, left[1].ID)
	assert.Len(t, jobs, 3, "pending must not modify its input")

	// a different job list starts over
	_, cp, err = openCheckpoint("-", jobs[:2], logger.NewTestLogger())
	require.NoError(t, err)
	assert.Len(t, pending(jobs[:2], cp), 2)
}

func TestOpenCheckpointStdinNeedsPath(t *testing.T) {
	cpPath = ""
	_, _, err := openCheckpoint("-", nil, logger.NewTestLogger())
	assert.ErrorContains(t, err, "--checkpoint")
}

func TestParseHeaders(t *testing.T) {
	headers, err := parseHeaders([]string{"x-token: abc", "Accept:application/json", "X-Empty:"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"X-Token": "abc",
		"Accept":  "application/json",
		"X-Empty": "",
	}, headers)

	_, err = parseHeaders([]string{"no-colon"})
	assert.Error(t, err)
	_, err = parseHeaders([]string{": value"})
	assert.Error(t, err)
}
