package sqlite

import (
	"context"
	"fmt"

	"github.com/example/class-scheduler/internal/persistence"
)

// InstructorRepository implements persistence.InstructorRepository using SQLite.
type InstructorRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewInstructorRepository creates a new SQLite instructor repository.
func NewInstructorRepository(pool *ConnectionPool) *InstructorRepository {
	return &InstructorRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateInstructor inserts a new instructor record.
func (r *InstructorRepository) CreateInstructor(ctx context.Context, instructor persistence.Instructor) error {
	if instructor.ID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.helper.Exec(ctx, `
		INSERT INTO instructors (id, name, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		instructor.ID, instructor.Name, instructor.Email,
		formatTime(instructor.CreatedAt), formatTime(instructor.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateInstructor updates an existing instructor record.
func (r *InstructorRepository) UpdateInstructor(ctx context.Context, instructor persistence.Instructor) error {
	result, err := r.helper.Exec(ctx, `
		UPDATE instructors SET name = ?, email = ?, updated_at = ? WHERE id = ?`,
		instructor.Name, instructor.Email, formatTime(instructor.UpdatedAt), instructor.ID,
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

// GetInstructor retrieves an instructor by id.
func (r *InstructorRepository) GetInstructor(ctx context.Context, id string) (persistence.Instructor, error) {
	if id == "" {
		return persistence.Instructor{}, persistence.ErrNotFound
	}

	var instructor persistence.Instructor
	var createdStr, updatedStr string
	err := r.helper.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at FROM instructors WHERE id = ?`, id,
	).Scan(&instructor.ID, &instructor.Name, &instructor.Email, &createdStr, &updatedStr)
	if err != nil {
		return persistence.Instructor{}, r.mapper.MapError(err)
	}

	if instructor.CreatedAt, err = parseTime(createdStr); err != nil {
		return persistence.Instructor{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if instructor.UpdatedAt, err = parseTime(updatedStr); err != nil {
		return persistence.Instructor{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return instructor, nil
}

// ListInstructors returns all instructors ordered by name.
func (r *InstructorRepository) ListInstructors(ctx context.Context) ([]persistence.Instructor, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT id, name, email, created_at, updated_at FROM instructors ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var instructors []persistence.Instructor
	for rows.Next() {
		var instructor persistence.Instructor
		var createdStr, updatedStr string
		if err := rows.Scan(&instructor.ID, &instructor.Name, &instructor.Email, &createdStr, &updatedStr); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if instructor.CreatedAt, err = parseTime(createdStr); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		if instructor.UpdatedAt, err = parseTime(updatedStr); err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}
		instructors = append(instructors, instructor)
	}
	return instructors, rows.Err()
}

// DeleteInstructor removes an instructor by id.
func (r *InstructorRepository) DeleteInstructor(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, "DELETE FROM instructors WHERE id = ?", id)
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
