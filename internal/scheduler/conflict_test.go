package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ts(day, hour, minute int) time.Time {
	return time.Date(2026, time.January, day, hour, minute, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a    Interval
		b    Interval
		want bool
	}{
		{
			name: "partial overlap",
			a:    Interval{Start: ts(6, 9, 0), End: ts(6, 10, 0)},
			b:    Interval{Start: ts(6, 9, 30), End: ts(6, 10, 30)},
			want: true,
		},
		{
			name: "containment",
			a:    Interval{Start: ts(6, 9, 0), End: ts(6, 12, 0)},
			b:    Interval{Start: ts(6, 10, 0), End: ts(6, 11, 0)},
			want: true,
		},
		{
			name: "identical",
			a:    Interval{Start: ts(6, 9, 0), End: ts(6, 10, 0)},
			b:    Interval{Start: ts(6, 9, 0), End: ts(6, 10, 0)},
			want: true,
		},
		{
			name: "back to back",
			a:    Interval{Start: ts(6, 9, 0), End: ts(6, 10, 0)},
			b:    Interval{Start: ts(6, 10, 0), End: ts(6, 11, 0)},
			want: false,
		},
		{
			name: "disjoint",
			a:    Interval{Start: ts(6, 9, 0), End: ts(6, 10, 0)},
			b:    Interval{Start: ts(7, 9, 0), End: ts(7, 10, 0)},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Overlaps(tt.a, tt.b))
			require.Equal(t, tt.want, Overlaps(tt.b, tt.a))
		})
	}
}

func yogaSeries() Series {
	return Series{
		ID:             "class-yoga",
		Title:          "Morning Yoga",
		InstructorID:   "instructor-ana",
		InstructorName: "Ana Silva",
		RoomID:         "room-a",
		RoomName:       "Studio A",
		Sessions: []Session{
			{ID: "s1", Start: ts(6, 9, 0), End: ts(6, 10, 0)},
			{ID: "s2", Start: ts(13, 9, 0), End: ts(13, 10, 0)},
		},
	}
}

func TestDetectConflicts(t *testing.T) {
	t.Run("room conflict", func(t *testing.T) {
		existing := []Series{yogaSeries()}
		candidates := []Interval{{Start: ts(6, 9, 30), End: ts(6, 10, 30)}}

		conflicts := DetectConflicts(existing, candidates, "room-a", "instructor-bo", "", time.UTC)
		require.Len(t, conflicts, 1)
		require.Equal(t, FieldRoom, conflicts[0].Field)
		require.Equal(t, "class-yoga", conflicts[0].SeriesID)
		require.Equal(t, "s1", conflicts[0].Session.ID)
		require.Equal(t,
			`"Morning Yoga" already books room Studio A on Tuesday, January 6, 2026 at 9:00 AM - 10:00 AM`,
			conflicts[0].Message)
	})

	t.Run("instructor conflict wins over room for the same series", func(t *testing.T) {
		existing := []Series{yogaSeries()}
		candidates := []Interval{{Start: ts(6, 9, 30), End: ts(6, 10, 30)}}

		conflicts := DetectConflicts(existing, candidates, "room-a", "instructor-ana", "", time.UTC)
		require.Len(t, conflicts, 1)
		require.Equal(t, FieldInstructor, conflicts[0].Field)
		require.Contains(t, conflicts[0].Message, "instructor Ana Silva")
	})

	t.Run("both dimensions collide against different series", func(t *testing.T) {
		pilates := Series{
			ID:             "class-pilates",
			Title:          "Evening Pilates",
			InstructorID:   "instructor-bo",
			InstructorName: "Bo Chen",
			RoomID:         "room-b",
			RoomName:       "Studio B",
			Sessions:       []Session{{ID: "p1", Start: ts(6, 9, 0), End: ts(6, 10, 0)}},
		}
		existing := []Series{yogaSeries(), pilates}
		candidates := []Interval{{Start: ts(6, 9, 30), End: ts(6, 10, 30)}}

		conflicts := DetectConflicts(existing, candidates, "room-a", "instructor-bo", "", time.UTC)
		require.Len(t, conflicts, 2)
		require.Equal(t, FieldInstructor, conflicts[0].Field)
		require.Equal(t, "class-pilates", conflicts[0].SeriesID)
		require.Equal(t, FieldRoom, conflicts[1].Field)
		require.Equal(t, "class-yoga", conflicts[1].SeriesID)
	})

	t.Run("own series is excluded during updates", func(t *testing.T) {
		existing := []Series{yogaSeries()}
		candidates := []Interval{{Start: ts(6, 9, 0), End: ts(6, 10, 0)}}

		conflicts := DetectConflicts(existing, candidates, "room-a", "instructor-ana", "class-yoga", time.UTC)
		require.Empty(t, conflicts)
	})

	t.Run("back to back sessions do not conflict", func(t *testing.T) {
		existing := []Series{yogaSeries()}
		candidates := []Interval{{Start: ts(6, 10, 0), End: ts(6, 11, 0)}}

		conflicts := DetectConflicts(existing, candidates, "room-a", "instructor-ana", "", time.UTC)
		require.Empty(t, conflicts)
	})

	t.Run("different room and instructor never conflict", func(t *testing.T) {
		existing := []Series{yogaSeries()}
		candidates := []Interval{{Start: ts(6, 9, 0), End: ts(6, 10, 0)}}

		conflicts := DetectConflicts(existing, candidates, "room-b", "instructor-bo", "", time.UTC)
		require.Empty(t, conflicts)
	})

	t.Run("no candidates", func(t *testing.T) {
		require.Empty(t, DetectConflicts([]Series{yogaSeries()}, nil, "room-a", "instructor-ana", "", time.UTC))
	})

	t.Run("message uses the detector's timezone", func(t *testing.T) {
		loc := time.FixedZone("UTC+2", 2*60*60)
		existing := []Series{yogaSeries()}
		candidates := []Interval{{Start: ts(6, 9, 30), End: ts(6, 10, 30)}}

		conflicts := DetectConflicts(existing, candidates, "room-a", "", "", loc)
		require.Len(t, conflicts, 1)
		require.Contains(t, conflicts[0].Message, "11:00 AM - 12:00 PM")
	})
}

func TestCombineMessages(t *testing.T) {
	require.Equal(t, "", CombineMessages(nil))
	require.Equal(t, "a", CombineMessages([]Conflict{{Message: "a"}}))
	require.Equal(t, "a; b", CombineMessages([]Conflict{{Message: "a"}, {Message: "b"}}))
}
