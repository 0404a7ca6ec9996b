package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyExceptions(t *testing.T) {
	expanded := []Session{
		{Start: ts(6, 9, 0), End: ts(6, 10, 0)},
		{Start: ts(13, 9, 0), End: ts(13, 10, 0)},
		{Start: ts(20, 9, 0), End: ts(20, 10, 0)},
	}

	t.Run("no exceptions leaves the expansion unchanged", func(t *testing.T) {
		out := ApplyExceptions(expanded, nil)
		require.Equal(t, expanded, out)
	})

	t.Run("cancelled anchors are filtered out", func(t *testing.T) {
		out := ApplyExceptions(expanded, []Exception{
			{Anchor: ts(13, 9, 0), Status: ExceptionCancelled},
		})
		require.Len(t, out, 2)
		require.Equal(t, ts(6, 9, 0), out[0].Start)
		require.Equal(t, ts(20, 9, 0), out[1].Start)
	})

	t.Run("modified anchors are substituted", func(t *testing.T) {
		newStart := ts(14, 18, 0)
		newEnd := ts(14, 19, 30)
		out := ApplyExceptions(expanded, []Exception{
			{Anchor: ts(13, 9, 0), Status: ExceptionModified, NewStart: &newStart, NewEnd: &newEnd},
		})
		require.Len(t, out, 3)
		require.Equal(t, newStart, out[1].Start)
		require.Equal(t, newEnd, out[1].End)
	})

	t.Run("cancellation beats modification on the same anchor", func(t *testing.T) {
		newStart := ts(14, 18, 0)
		newEnd := ts(14, 19, 30)
		out := ApplyExceptions(expanded, []Exception{
			{Anchor: ts(13, 9, 0), Status: ExceptionModified, NewStart: &newStart, NewEnd: &newEnd},
			{Anchor: ts(13, 9, 0), Status: ExceptionCancelled},
		})
		require.Len(t, out, 2)
		for _, session := range out {
			require.NotEqual(t, newStart, session.Start)
		}
	})

	t.Run("exceptions for vanished anchors are ignored", func(t *testing.T) {
		out := ApplyExceptions(expanded, []Exception{
			{Anchor: ts(27, 9, 0), Status: ExceptionCancelled},
		})
		require.Equal(t, expanded, out)
	})

	t.Run("incomplete modifications are ignored", func(t *testing.T) {
		newStart := ts(14, 18, 0)
		out := ApplyExceptions(expanded, []Exception{
			{Anchor: ts(13, 9, 0), Status: ExceptionModified, NewStart: &newStart},
		})
		require.Equal(t, expanded, out)
	})

	t.Run("cancelling everything yields an empty slice", func(t *testing.T) {
		out := ApplyExceptions(expanded, []Exception{
			{Anchor: ts(6, 9, 0), Status: ExceptionCancelled},
			{Anchor: ts(13, 9, 0), Status: ExceptionCancelled},
			{Anchor: ts(20, 9, 0), Status: ExceptionCancelled},
		})
		require.Empty(t, out)
	})
}
