package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/class-scheduler/internal/cache"
	"github.com/example/class-scheduler/internal/persistence"
)

// RoomService manages the room catalog.
type RoomService struct {
	rooms       persistence.RoomRepository
	invalidator cache.Invalidator
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRoomService creates a RoomService. idGenerator and now may be nil, in
// which case UUIDs and the wall clock are used.
func NewRoomService(
	rooms persistence.RoomRepository,
	invalidator cache.Invalidator,
	idGenerator func() string,
	now func() time.Time,
	logger *slog.Logger,
) *RoomService {
	if invalidator == nil {
		invalidator = cache.Noop{}
	}
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomService{
		rooms:       rooms,
		invalidator: invalidator,
		idGenerator: idGenerator,
		now:         now,
		logger:      logger,
	}
}

// CreateRoom validates and stores a new room.
func (s *RoomService) CreateRoom(ctx context.Context, input RoomInput) (Room, error) {
	if err := validateRoomInput(input); err != nil {
		return Room{}, err
	}

	now := s.now()
	stored := persistence.Room{
		ID:        s.idGenerator(),
		Name:      strings.TrimSpace(input.Name),
		Location:  strings.TrimSpace(input.Location),
		Capacity:  input.Capacity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.rooms.CreateRoom(ctx, stored); err != nil {
		return Room{}, fmt.Errorf("failed to create room: %w", mapRepositoryError(err))
	}
	s.invalidate(ctx, cache.TagRooms)
	return toApplicationRoom(stored), nil
}

// UpdateRoom validates and stores changes to an existing room. Class listings
// embed room names, so their cache tag is dropped too.
func (s *RoomService) UpdateRoom(ctx context.Context, id string, input RoomInput) (Room, error) {
	if err := validateRoomInput(input); err != nil {
		return Room{}, err
	}

	existing, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		return Room{}, fmt.Errorf("failed to load room %s: %w", id, mapRepositoryError(err))
	}

	existing.Name = strings.TrimSpace(input.Name)
	existing.Location = strings.TrimSpace(input.Location)
	existing.Capacity = input.Capacity
	existing.UpdatedAt = s.now()
	if err := s.rooms.UpdateRoom(ctx, existing); err != nil {
		return Room{}, fmt.Errorf("failed to update room %s: %w", id, mapRepositoryError(err))
	}
	s.invalidate(ctx, cache.TagRooms, cache.TagClasses)
	return toApplicationRoom(existing), nil
}

// GetRoom returns one room by id.
func (s *RoomService) GetRoom(ctx context.Context, id string) (Room, error) {
	stored, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		return Room{}, fmt.Errorf("failed to load room %s: %w", id, mapRepositoryError(err))
	}
	return toApplicationRoom(stored), nil
}

// ListRooms returns every room ordered by name.
func (s *RoomService) ListRooms(ctx context.Context) ([]Room, error) {
	stored, err := s.rooms.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	rooms := make([]Room, 0, len(stored))
	for _, room := range stored {
		rooms = append(rooms, toApplicationRoom(room))
	}
	return rooms, nil
}

// DeleteRoom removes a room. Rooms still referenced by a class cannot be
// deleted.
func (s *RoomService) DeleteRoom(ctx context.Context, id string) error {
	if err := s.rooms.DeleteRoom(ctx, id); err != nil {
		if errors.Is(err, persistence.ErrForeignKeyViolation) {
			vErr := &ValidationError{}
			vErr.add("id", "room is still assigned to one or more classes")
			return vErr
		}
		return fmt.Errorf("failed to delete room %s: %w", id, mapRepositoryError(err))
	}
	s.invalidate(ctx, cache.TagRooms, cache.TagClasses)
	return nil
}

func (s *RoomService) invalidate(ctx context.Context, tags ...cache.Tag) {
	if err := s.invalidator.Invalidate(ctx, tags...); err != nil {
		s.logger.Warn("failed to invalidate cache", "tags", tags, "error", err)
	}
}

func validateRoomInput(input RoomInput) error {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if strings.TrimSpace(input.Location) == "" {
		vErr.add("location", "location is required")
	}
	if input.Capacity <= 0 {
		vErr.add("capacity", "capacity must be a positive number")
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}
