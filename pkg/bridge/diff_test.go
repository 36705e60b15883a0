// Copyright 2024-2026 Aiku AI

package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msgs(texts ...string) []Message {
	out := make([]Message, len(texts))
	for i, t := range texts {
		out[i] = Message{ID: t, Text: t, Position: i}
	}
	return out
}

func TestDiffEqualLengthsIsNoop(t *testing.T) {
	t.Parallel()
	dir, surplus := Diff(msgs("a", "b"), msgs("x", "y"))
	assert.Equal(t, DirectionNone, dir)
	assert.Empty(t, surplus)
}

func TestDiffBothEmpty(t *testing.T) {
	t.Parallel()
	dir, surplus := Diff(nil, nil)
	assert.Equal(t, DirectionNone, dir)
	assert.Empty(t, surplus)
}

func TestDiffCommentsAhead(t *testing.T) {
	t.Parallel()
	// The thread's single message occupies position 0, so only the last two
	// comments are surplus.
	dir, surplus := Diff(msgs("c0", "c1", "c2"), msgs("m0"))
	assert.Equal(t, DirectionToThread, dir)
	require.Len(t, surplus, 2)
	assert.Equal(t, "c1", surplus[0].ID)
	assert.Equal(t, "c2", surplus[1].ID)
}

func TestDiffThreadAhead(t *testing.T) {
	t.Parallel()
	dir, surplus := Diff(msgs("c0"), msgs("m0", "m1", "m2", "m3"))
	assert.Equal(t, DirectionToDiscussion, dir)
	require.Len(t, surplus, 3)
	assert.Equal(t, "m1", surplus[0].ID)
	assert.Equal(t, "m3", surplus[2].ID)
}

func TestDiffEmptyBehindSidePushesEverything(t *testing.T) {
	t.Parallel()
	dir, surplus := Diff(msgs("c0", "c1"), nil)
	assert.Equal(t, DirectionToThread, dir)
	require.Len(t, surplus, 2)
	assert.Equal(t, "c0", surplus[0].ID)
}

func TestDiffSurplusPreservesOrder(t *testing.T) {
	t.Parallel()
	comments := msgs("c0", "c1", "c2", "c3", "c4")
	_, surplus := Diff(comments, msgs("m0", "m1"))
	require.Len(t, surplus, 3)
	for i, m := range surplus {
		assert.Equal(t, comments[i+2].ID, m.ID)
	}
}

// TestDiffDeletionShiftsPositions documents the known limitation of the
// position-based diff: a deletion on the longer side hides newer content
// instead of being detected. This behavior is intentional; do not "fix" it
// here without redesigning the diff.
func TestDiffDeletionShiftsPositions(t *testing.T) {
	t.Parallel()
	// c0 was deleted on the forum after m0/m1 mirrored c0/c1. The counts now
	// match, so c2 is silently never pushed.
	dir, surplus := Diff(msgs("c1", "c2"), msgs("m0", "m1"))
	assert.Equal(t, DirectionNone, dir)
	assert.Empty(t, surplus)
}

func TestDirectionString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "none", DirectionNone.String())
	assert.Equal(t, "to_thread", DirectionToThread.String())
	assert.Equal(t, "to_discussion", DirectionToDiscussion.String())
}
