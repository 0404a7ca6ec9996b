package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/class-scheduler/internal/cache"
	"github.com/example/class-scheduler/internal/persistence"
	"github.com/example/class-scheduler/internal/testfixtures"
)

func newRoomService(repo *stubRoomRepository, inv *recordingInvalidator) *RoomService {
	return NewRoomService(
		repo,
		inv,
		testfixtures.NewIDGenerator("room").NextFunc(),
		testfixtures.NewClock(time.Time{}).NowFunc(),
		discardLogger(),
	)
}

func TestRoomService(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		repo := newStubRoomRepository()
		inv := &recordingInvalidator{}
		service := newRoomService(repo, inv)

		room, err := service.CreateRoom(context.Background(), RoomInput{
			Name:     "Studio A",
			Location: "2nd floor",
			Capacity: 18,
		})
		require.NoError(t, err)
		require.NotEmpty(t, room.ID)
		require.Equal(t, "Studio A", room.Name)
		require.Equal(t, [][]cache.Tag{{cache.TagRooms}}, inv.tags)
	})

	t.Run("create collects field errors", func(t *testing.T) {
		service := newRoomService(newStubRoomRepository(), &recordingInvalidator{})

		_, err := service.CreateRoom(context.Background(), RoomInput{Capacity: -3})

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		require.Contains(t, vErr.FieldErrors, "name")
		require.Contains(t, vErr.FieldErrors, "location")
		require.Contains(t, vErr.FieldErrors, "capacity")
	})

	t.Run("update drops the class listings too", func(t *testing.T) {
		repo := newStubRoomRepository("room-a")
		inv := &recordingInvalidator{}
		service := newRoomService(repo, inv)

		updated, err := service.UpdateRoom(context.Background(), "room-a", RoomInput{
			Name:     "Studio A",
			Location: "3rd floor",
			Capacity: 24,
		})
		require.NoError(t, err)
		require.Equal(t, 24, updated.Capacity)
		require.Equal(t, [][]cache.Tag{{cache.TagRooms, cache.TagClasses}}, inv.tags)
	})

	t.Run("delete of a booked room is a field error", func(t *testing.T) {
		repo := newStubRoomRepository("room-a")
		repo.deleteErr = persistence.ErrForeignKeyViolation
		service := newRoomService(repo, &recordingInvalidator{})

		err := service.DeleteRoom(context.Background(), "room-a")

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		require.Contains(t, vErr.FieldErrors, "id")
	})

	t.Run("delete of a missing room", func(t *testing.T) {
		service := newRoomService(newStubRoomRepository(), &recordingInvalidator{})
		require.ErrorIs(t, service.DeleteRoom(context.Background(), "missing"), ErrNotFound)
	})
}
