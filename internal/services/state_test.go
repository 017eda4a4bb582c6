package services

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	legal := [][2]State{
		{StateIdle, StateConverting},
		{StateIdle, StateRecognizing},
		{StateIdle, StateValidating},
		{StateConverting, StateRecognizing},
		{StateRecognizing, StateExtracting},
		{StateExtracting, StateValidating},
		{StateValidating, StateUploading},
		{StateUploading, StateSucceeded},
		{StateIdle, StateFailed},
		{StateConverting, StateFailed},
		{StateValidating, StateFailed},
		{StateUploading, StateFailed},
	}
	for _, tr := range legal {
		assert.True(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	illegal := [][2]State{
		{StateIdle, StateUploading},
		{StateConverting, StateExtracting},
		{StateExtracting, StateUploading},
		{StateValidating, StateSucceeded},
		{StateSucceeded, StateFailed},
		{StateFailed, StateIdle},
		{StateFailed, StateFailed},
	}
	for _, tr := range illegal {
		assert.False(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestAttemptAdvance(t *testing.T) {
	a := newAttempt("id", slog.Default())
	require.NoError(t, a.advance(StateRecognizing))
	require.Error(t, a.advance(StateUploading))
	assert.Equal(t, StateRecognizing, a.state)

	a.fail()
	assert.Equal(t, StateFailed, a.state)
	a.fail()
	assert.Equal(t, []State{StateIdle, StateRecognizing, StateFailed}, a.history)
}

func TestTerminal(t *testing.T) {
	assert.True(t, StateSucceeded.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateUploading.Terminal())
}
