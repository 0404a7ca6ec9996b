package application

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/class-scheduler/internal/cache"
	"github.com/example/class-scheduler/internal/persistence"
	"github.com/example/class-scheduler/internal/recurrence"
	"github.com/example/class-scheduler/internal/testfixtures"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type classServiceFixture struct {
	service     *ClassService
	classes     *stubClassRepository
	instructors *stubInstructorRepository
	rooms       *stubRoomRepository
	invalidator *recordingInvalidator
	clock       *testfixtures.Clock
}

func newClassServiceFixture(t *testing.T) *classServiceFixture {
	t.Helper()

	classes := newStubClassRepository()
	instructors := newStubInstructorRepository("instructor-ana", "instructor-bo")
	rooms := newStubRoomRepository("room-a", "room-b")
	invalidator := &recordingInvalidator{repo: classes}
	clock := testfixtures.NewClock(time.Time{})
	engine := recurrence.NewEngine(time.UTC, discardLogger())
	ids := testfixtures.NewIDGenerator("gen")

	service := NewClassService(classes, instructors, rooms, engine, invalidator, ids.NextFunc(), clock.NowFunc(), discardLogger())
	return &classServiceFixture{
		service:     service,
		classes:     classes,
		instructors: instructors,
		rooms:       rooms,
		invalidator: invalidator,
		clock:       clock,
	}
}

// weeklyInput books Tuesdays 09:00-10:00 from 2026-01-06 through 2026-01-20,
// which expands to three sessions relative to the reference clock.
func weeklyInput() ClassInput {
	return ClassInput{
		Title:        "Morning Yoga",
		InstructorID: "instructor-ana",
		RoomID:       "room-a",
		Recurrence: RuleInput{
			Kind:        "weekly",
			SeriesStart: "2026-01-06",
			SeriesEnd:   "2026-01-20",
			Weekdays:    []int{int(time.Tuesday)},
			TimeSlots:   []TimeSlotInput{{Start: "09:00", End: "10:00"}},
		},
	}
}

func singleInput() ClassInput {
	return ClassInput{
		Title:        "Workshop",
		InstructorID: "instructor-ana",
		RoomID:       "room-a",
		Recurrence: RuleInput{
			Kind:        "single",
			SeriesStart: "2026-01-06",
			TimeSlots:   []TimeSlotInput{{Start: "09:00", End: "10:30"}},
		},
	}
}

func sessionAt(day int, hour, minute int) time.Time {
	return time.Date(2026, time.January, day, hour, minute, 0, 0, time.UTC)
}

func TestCreateClass(t *testing.T) {
	t.Run("expands and persists the schedule", func(t *testing.T) {
		f := newClassServiceFixture(t)

		class, err := f.service.CreateClass(context.Background(), CreateClassParams{Input: weeklyInput()})
		require.NoError(t, err)
		require.NotEmpty(t, class.ID)
		require.Len(t, class.Sessions, 3)
		require.Equal(t, sessionAt(6, 9, 0), class.Sessions[0].Start)
		require.Equal(t, sessionAt(13, 9, 0), class.Sessions[1].Start)
		require.Equal(t, sessionAt(20, 9, 0), class.Sessions[2].Start)
		for _, session := range class.Sessions {
			require.NotEmpty(t, session.ID)
		}

		stored, err := f.classes.GetClass(context.Background(), class.ID)
		require.NoError(t, err)
		require.Len(t, stored.Sessions, 3)

		require.Equal(t, [][]cache.Tag{{cache.TagClasses}}, f.invalidator.tags)
		require.Equal(t, []string{"create:" + class.ID, "invalidate"}, f.classes.ops)
	})

	t.Run("collects field errors", func(t *testing.T) {
		f := newClassServiceFixture(t)

		input := weeklyInput()
		input.Title = ""
		input.InstructorID = "instructor-ghost"
		input.Recurrence.Kind = "yearly"

		_, err := f.service.CreateClass(context.Background(), CreateClassParams{Input: input})

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		require.Contains(t, vErr.FieldErrors, "title")
		require.Contains(t, vErr.FieldErrors, "instructor_id")
		require.Contains(t, vErr.FieldErrors, "recurrence_kind")
		require.Empty(t, f.classes.ops, "validation failures must not touch the store")
	})

	t.Run("weekly rules require a weekday", func(t *testing.T) {
		f := newClassServiceFixture(t)

		input := weeklyInput()
		input.Recurrence.Weekdays = nil

		_, err := f.service.CreateClass(context.Background(), CreateClassParams{Input: input})

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		require.Contains(t, vErr.FieldErrors, "weekdays")
	})

	t.Run("maps an exhausted expansion to a field error", func(t *testing.T) {
		f := newClassServiceFixture(t)

		input := weeklyInput()
		input.Recurrence.SeriesStart = "2025-12-02"
		input.Recurrence.SeriesEnd = "2025-12-30"

		_, err := f.service.CreateClass(context.Background(), CreateClassParams{Input: input})

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		require.Contains(t, vErr.FieldErrors, "schedule")
	})

	t.Run("a conflict blocks persistence", func(t *testing.T) {
		f := newClassServiceFixture(t)
		f.classes.overlapping = []persistence.OverlappingClass{{
			Class: persistence.Class{
				ID:           "class-existing",
				Title:        "Evening Pilates",
				InstructorID: "instructor-bo",
				RoomID:       "room-a",
				Sessions: []persistence.Session{{
					ID:    "existing-1",
					Start: sessionAt(6, 9, 30),
					End:   sessionAt(6, 10, 30),
				}},
			},
			InstructorName: "Bo Chen",
			RoomName:       "Room room-a",
		}}

		_, err := f.service.CreateClass(context.Background(), CreateClassParams{Input: weeklyInput()})

		var cErr *ConflictError
		require.ErrorAs(t, err, &cErr)
		require.Equal(t, "room", cErr.Field)
		require.Contains(t, cErr.Message, "Evening Pilates")
		require.Empty(t, f.classes.ops, "a conflicting schedule must never be written")
		require.Empty(t, f.invalidator.tags)
	})
}

// TestConcurrentCreateClass races two writers for the same room and slot. The
// first writer is held open inside the repository write while the second is
// launched; the second must not run its overlap check until the first has
// persisted, so only one booking can win.
func TestConcurrentCreateClass(t *testing.T) {
	f := newClassServiceFixture(t)
	f.classes.computeOverlap = true
	f.classes.createStarted = make(chan struct{}, 2)
	f.classes.createRelease = make(chan struct{})

	errs := make(chan error, 2)
	create := func() {
		_, err := f.service.CreateClass(context.Background(), CreateClassParams{Input: singleInput()})
		errs <- err
	}

	go create()
	<-f.classes.createStarted
	go create()
	close(f.classes.createRelease)

	var persisted, rejected int
	for i := 0; i < 2; i++ {
		err := <-errs
		if err == nil {
			persisted++
			continue
		}
		var cErr *ConflictError
		require.ErrorAs(t, err, &cErr)
		require.Equal(t, "instructor", cErr.Field)
		rejected++
	}
	require.Equal(t, 1, persisted, "exactly one writer may book the slot")
	require.Equal(t, 1, rejected)
	require.Len(t, f.classes.classes, 1)
}

func TestUpdateClass(t *testing.T) {
	t.Run("replays exceptions and keeps surviving session ids", func(t *testing.T) {
		f := newClassServiceFixture(t)

		created, err := f.service.CreateClass(context.Background(), CreateClassParams{Input: weeklyInput()})
		require.NoError(t, err)

		stored, _ := f.classes.GetClass(context.Background(), created.ID)
		stored.Exceptions = append(stored.Exceptions, persistence.Exception{
			ID:      "exc-1",
			ClassID: created.ID,
			Anchor:  sessionAt(13, 9, 0),
			Status:  persistence.ExceptionStatusCancelled,
			Reason:  "holiday",
		})
		f.classes.classes[created.ID] = stored

		updated, err := f.service.UpdateClass(context.Background(), UpdateClassParams{
			ClassID: created.ID,
			Input:   weeklyInput(),
		})
		require.NoError(t, err)
		require.Len(t, updated.Sessions, 2)
		require.Equal(t, sessionAt(6, 9, 0), updated.Sessions[0].Start)
		require.Equal(t, sessionAt(20, 9, 0), updated.Sessions[1].Start)
		require.Equal(t, created.Sessions[0].ID, updated.Sessions[0].ID)
		require.Equal(t, created.Sessions[2].ID, updated.Sessions[1].ID)

		require.Equal(t, created.ID, f.classes.lastQuery.ExcludeClassID,
			"the class must be excluded from its own conflict check")
	})

	t.Run("rejects an update whose every session is cancelled", func(t *testing.T) {
		f := newClassServiceFixture(t)

		input := singleInput()
		created, err := f.service.CreateClass(context.Background(), CreateClassParams{Input: input})
		require.NoError(t, err)

		stored, _ := f.classes.GetClass(context.Background(), created.ID)
		stored.Exceptions = append(stored.Exceptions, persistence.Exception{
			ID:      "exc-1",
			ClassID: created.ID,
			Anchor:  sessionAt(6, 9, 0),
			Status:  persistence.ExceptionStatusCancelled,
		})
		f.classes.classes[created.ID] = stored

		_, err = f.service.UpdateClass(context.Background(), UpdateClassParams{
			ClassID: created.ID,
			Input:   input,
		})

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		require.Contains(t, vErr.FieldErrors, "schedule")
	})

	t.Run("unknown class", func(t *testing.T) {
		f := newClassServiceFixture(t)
		_, err := f.service.UpdateClass(context.Background(), UpdateClassParams{
			ClassID: "missing",
			Input:   weeklyInput(),
		})
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDetachSession(t *testing.T) {
	t.Run("splits the session into its own class", func(t *testing.T) {
		f := newClassServiceFixture(t)

		parent, err := f.service.CreateClass(context.Background(), CreateClassParams{Input: weeklyInput()})
		require.NoError(t, err)
		target := parent.Sessions[1]

		newStart := sessionAt(14, 18, 0)
		newEnd := sessionAt(14, 19, 30)
		detached, err := f.service.DetachSession(context.Background(), DetachSessionParams{
			ClassID:   parent.ID,
			SessionID: target.ID,
			NewStart:  &newStart,
			NewEnd:    &newEnd,
			Reason:    "moved to evening",
		})
		require.NoError(t, err)
		require.NotEqual(t, parent.ID, detached.ID)
		require.Equal(t, recurrence.KindSingle, detached.Rule.Kind)
		require.Len(t, detached.Sessions, 1)
		require.Equal(t, newStart, detached.Sessions[0].Start)
		require.Equal(t, newEnd, detached.Sessions[0].End)
		require.Equal(t, parent.Title, detached.Title)

		storedParent, _ := f.classes.GetClass(context.Background(), parent.ID)
		require.Len(t, storedParent.Sessions, 2)
		require.Len(t, storedParent.Exceptions, 1)
		require.Equal(t, persistence.ExceptionStatusCancelled, storedParent.Exceptions[0].Status)
		require.Equal(t, target.Start, storedParent.Exceptions[0].Anchor,
			"the exception must anchor to the original session start")
		require.Equal(t, "moved to evening", storedParent.Exceptions[0].Reason)

		// The new class is written before the parent is touched.
		require.Equal(t, []string{
			"create:" + parent.ID,
			"invalidate",
			"create:" + detached.ID,
			"update:" + parent.ID,
			"invalidate",
		}, f.classes.ops)
	})

	t.Run("a single-session class is edited in place", func(t *testing.T) {
		f := newClassServiceFixture(t)

		parent, err := f.service.CreateClass(context.Background(), CreateClassParams{Input: singleInput()})
		require.NoError(t, err)
		target := parent.Sessions[0]

		newStart := sessionAt(7, 14, 0)
		newEnd := sessionAt(7, 15, 30)
		result, err := f.service.DetachSession(context.Background(), DetachSessionParams{
			ClassID:   parent.ID,
			SessionID: target.ID,
			NewStart:  &newStart,
			NewEnd:    &newEnd,
		})
		require.NoError(t, err)
		require.Equal(t, parent.ID, result.ID, "no split occurs for a single-session class")
		require.Len(t, result.Sessions, 1)
		require.Equal(t, newStart, result.Sessions[0].Start)
		require.Equal(t, target.ID, result.Sessions[0].ID)
		require.Len(t, result.Exceptions, 1)
		require.Equal(t, string(persistence.ExceptionStatusModified), result.Exceptions[0].Status)
		require.Equal(t, target.Start, result.Exceptions[0].Anchor)
	})

	t.Run("overrides can move the session to another room", func(t *testing.T) {
		f := newClassServiceFixture(t)

		parent, err := f.service.CreateClass(context.Background(), CreateClassParams{Input: weeklyInput()})
		require.NoError(t, err)

		detached, err := f.service.DetachSession(context.Background(), DetachSessionParams{
			ClassID:   parent.ID,
			SessionID: parent.Sessions[0].ID,
			RoomID:    "room-b",
		})
		require.NoError(t, err)
		require.Equal(t, "room-b", detached.RoomID)
		require.Equal(t, parent.InstructorID, detached.InstructorID)
	})

	t.Run("rejects a new time inside the lead buffer", func(t *testing.T) {
		f := newClassServiceFixture(t)

		parent, err := f.service.CreateClass(context.Background(), CreateClassParams{Input: weeklyInput()})
		require.NoError(t, err)

		// The reference clock reads 2026-01-05 09:00.
		newStart := sessionAt(5, 9, 15)
		newEnd := sessionAt(5, 10, 15)
		_, err = f.service.DetachSession(context.Background(), DetachSessionParams{
			ClassID:   parent.ID,
			SessionID: parent.Sessions[0].ID,
			NewStart:  &newStart,
			NewEnd:    &newEnd,
		})

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		require.Contains(t, vErr.FieldErrors, "new_start")
	})

	t.Run("unknown session", func(t *testing.T) {
		f := newClassServiceFixture(t)

		parent, err := f.service.CreateClass(context.Background(), CreateClassParams{Input: weeklyInput()})
		require.NoError(t, err)

		_, err = f.service.DetachSession(context.Background(), DetachSessionParams{
			ClassID:   parent.ID,
			SessionID: "missing",
		})
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCancelSession(t *testing.T) {
	t.Run("removes the session and records the exception", func(t *testing.T) {
		f := newClassServiceFixture(t)

		class, err := f.service.CreateClass(context.Background(), CreateClassParams{Input: weeklyInput()})
		require.NoError(t, err)
		target := class.Sessions[1]

		updated, err := f.service.CancelSession(context.Background(), CancelSessionParams{
			ClassID:   class.ID,
			SessionID: target.ID,
			Reason:    "instructor away",
		})
		require.NoError(t, err)
		require.Len(t, updated.Sessions, 2)
		require.Len(t, updated.Exceptions, 1)
		require.Equal(t, string(persistence.ExceptionStatusCancelled), updated.Exceptions[0].Status)
		require.Equal(t, target.Start, updated.Exceptions[0].Anchor)
		require.Equal(t, "instructor away", updated.Exceptions[0].Reason)
	})

	t.Run("refuses to empty the class", func(t *testing.T) {
		f := newClassServiceFixture(t)

		class, err := f.service.CreateClass(context.Background(), CreateClassParams{Input: singleInput()})
		require.NoError(t, err)

		_, err = f.service.CancelSession(context.Background(), CancelSessionParams{
			ClassID:   class.ID,
			SessionID: class.Sessions[0].ID,
		})

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		require.Contains(t, vErr.FieldErrors, "session_id")
	})
}

func TestPreviewSchedule(t *testing.T) {
	f := newClassServiceFixture(t)

	previews, err := f.service.PreviewSchedule(context.Background(), weeklyInput().Recurrence)
	require.NoError(t, err)
	require.Len(t, previews, 3)
	require.Empty(t, f.classes.ops, "previews must not persist anything")
	require.Empty(t, f.invalidator.tags)
}

func TestDeleteClass(t *testing.T) {
	f := newClassServiceFixture(t)

	class, err := f.service.CreateClass(context.Background(), CreateClassParams{Input: weeklyInput()})
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteClass(context.Background(), class.ID))
	_, err = f.service.GetClass(context.Background(), class.ID)
	require.ErrorIs(t, err, ErrNotFound)

	require.Equal(t, "invalidate", f.classes.ops[len(f.classes.ops)-1],
		"cache invalidation runs after the delete")
}
