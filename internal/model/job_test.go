package model_test

import (
	"testing"

	"github.com/CZERTAINLY/Prospector/internal/model"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		from model.Status
		to   model.Status
		ok   bool
	}{
		{model.StatusQueued, model.StatusRunning, true},
		{model.StatusQueued, model.StatusCompleted, false},
		{model.StatusQueued, model.StatusFailed, false},
		{model.StatusRunning, model.StatusCompleted, true},
		{model.StatusRunning, model.StatusFailed, true},
		{model.StatusRunning, model.StatusQueued, false},
		{model.StatusCompleted, model.StatusRunning, false},
		{model.StatusCompleted, model.StatusFailed, false},
		{model.StatusFailed, model.StatusRunning, false},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.ok, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestStatusTerminal(t *testing.T) {
	t.Parallel()
	require.False(t, model.StatusQueued.Terminal())
	require.False(t, model.StatusRunning.Terminal())
	require.True(t, model.StatusCompleted.Terminal())
	require.True(t, model.StatusFailed.Terminal())
}

func TestParseTool(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]model.Tool{
		"":          model.ToolBoth,
		"both":      model.ToolBoth,
		"scanner":   model.ToolScanner,
		"inventory": model.ToolInventory,
	} {
		got, err := model.ParseTool(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := model.ParseTool("semgrep")
	require.Error(t, err)
	_, err = model.ParseTool("BOTH")
	require.Error(t, err)
}

func TestToolArtifactSelection(t *testing.T) {
	t.Parallel()
	require.True(t, model.ToolBoth.KeepsFindings())
	require.True(t, model.ToolBoth.KeepsInventory())
	require.True(t, model.ToolScanner.KeepsFindings())
	require.False(t, model.ToolScanner.KeepsInventory())
	require.False(t, model.ToolInventory.KeepsFindings())
	require.True(t, model.ToolInventory.KeepsInventory())
}
