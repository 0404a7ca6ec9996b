package sqlite

import (
	"context"
	"fmt"

	"github.com/example/class-scheduler/internal/persistence"
)

// RoomRepository implements persistence.RoomRepository using SQLite.
type RoomRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewRoomRepository creates a new SQLite room repository.
func NewRoomRepository(pool *ConnectionPool) *RoomRepository {
	return &RoomRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateRoom inserts a new room record.
func (r *RoomRepository) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.helper.Exec(ctx, `
		INSERT INTO rooms (id, name, location, capacity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		room.ID, room.Name, room.Location, room.Capacity,
		formatTime(room.CreatedAt), formatTime(room.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateRoom updates an existing room record.
func (r *RoomRepository) UpdateRoom(ctx context.Context, room persistence.Room) error {
	result, err := r.helper.Exec(ctx, `
		UPDATE rooms SET name = ?, location = ?, capacity = ?, updated_at = ? WHERE id = ?`,
		room.Name, room.Location, room.Capacity, formatTime(room.UpdatedAt), room.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetRoom retrieves a room by id.
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	if id == "" {
		return persistence.Room{}, persistence.ErrNotFound
	}

	var room persistence.Room
	var createdStr, updatedStr string
	err := r.helper.QueryRow(ctx, `
		SELECT id, name, location, capacity, created_at, updated_at FROM rooms WHERE id = ?`, id,
	).Scan(&room.ID, &room.Name, &room.Location, &room.Capacity, &createdStr, &updatedStr)
	if err != nil {
		return persistence.Room{}, r.mapper.MapError(err)
	}

	if room.CreatedAt, err = parseTime(createdStr); err != nil {
		return persistence.Room{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if room.UpdatedAt, err = parseTime(updatedStr); err != nil {
		return persistence.Room{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return room, nil
}

// ListRooms returns all rooms ordered by name.
func (r *RoomRepository) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT id, name, location, capacity, created_at, updated_at FROM rooms ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var rooms []persistence.Room
	for rows.Next() {
		var room persistence.Room
		var createdStr, updatedStr string
		if err := rows.Scan(&room.ID, &room.Name, &room.Location, &room.Capacity, &createdStr, &updatedStr); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if room.CreatedAt, err = parseTime(createdStr); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		if room.UpdatedAt, err = parseTime(updatedStr); err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// DeleteRoom removes a room by id.
func (r *RoomRepository) DeleteRoom(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, "DELETE FROM rooms WHERE id = ?", id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
