package resilience

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scorePtr(v float64) *float64 { return &v }

func TestFeedbackStore_AppendAndAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.jsonl")
	store := NewFeedbackStore(path)

	require.NoError(t, store.Append(FeedbackEntry{Type: FeedbackRating, Query: "how does billing work", Score: scorePtr(0.2), Timestamp: time.Now()}))
	require.NoError(t, store.Append(FeedbackEntry{Type: FeedbackGap, Query: "find the refund handler", MissingUnit: "refund_handler", Timestamp: time.Now()}))

	entries, err := store.All()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, FeedbackRating, entries[0].Type)
	assert.Equal(t, "refund_handler", entries[1].MissingUnit)
}

func TestFeedbackStore_AllOnMissingFileReturnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.jsonl")
	store := NewFeedbackStore(path)

	entries, err := store.All()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFeedbackStore_StreamStopsOnCallbackError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.jsonl")
	store := NewFeedbackStore(path)
	require.NoError(t, store.Append(FeedbackEntry{Type: FeedbackGap, MissingUnit: "a"}))
	require.NoError(t, store.Append(FeedbackEntry{Type: FeedbackGap, MissingUnit: "b"}))

	seen := 0
	err := store.Stream(func(FeedbackEntry) error {
		seen++
		return assertErr
	})
	assert.Equal(t, assertErr, err)
	assert.Equal(t, 1, seen)
}
