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

// InstructorService manages the instructor catalog.
type InstructorService struct {
	instructors persistence.InstructorRepository
	invalidator cache.Invalidator
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewInstructorService creates an InstructorService. idGenerator and now may
// be nil, in which case UUIDs and the wall clock are used.
func NewInstructorService(
	instructors persistence.InstructorRepository,
	invalidator cache.Invalidator,
	idGenerator func() string,
	now func() time.Time,
	logger *slog.Logger,
) *InstructorService {
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
	return &InstructorService{
		instructors: instructors,
		invalidator: invalidator,
		idGenerator: idGenerator,
		now:         now,
		logger:      logger,
	}
}

// CreateInstructor validates and stores a new instructor.
func (s *InstructorService) CreateInstructor(ctx context.Context, input InstructorInput) (Instructor, error) {
	if err := validateInstructorInput(input); err != nil {
		return Instructor{}, err
	}

	now := s.now()
	stored := persistence.Instructor{
		ID:        s.idGenerator(),
		Name:      strings.TrimSpace(input.Name),
		Email:     strings.TrimSpace(input.Email),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.instructors.CreateInstructor(ctx, stored); err != nil {
		return Instructor{}, fmt.Errorf("failed to create instructor: %w", mapRepositoryError(err))
	}
	s.invalidate(ctx, cache.TagInstructors)
	return toApplicationInstructor(stored), nil
}

// UpdateInstructor validates and stores changes to an existing instructor.
// Class listings embed instructor names, so their cache tag is dropped too.
func (s *InstructorService) UpdateInstructor(ctx context.Context, id string, input InstructorInput) (Instructor, error) {
	if err := validateInstructorInput(input); err != nil {
		return Instructor{}, err
	}

	existing, err := s.instructors.GetInstructor(ctx, id)
	if err != nil {
		return Instructor{}, fmt.Errorf("failed to load instructor %s: %w", id, mapRepositoryError(err))
	}

	existing.Name = strings.TrimSpace(input.Name)
	existing.Email = strings.TrimSpace(input.Email)
	existing.UpdatedAt = s.now()
	if err := s.instructors.UpdateInstructor(ctx, existing); err != nil {
		return Instructor{}, fmt.Errorf("failed to update instructor %s: %w", id, mapRepositoryError(err))
	}
	s.invalidate(ctx, cache.TagInstructors, cache.TagClasses)
	return toApplicationInstructor(existing), nil
}

// GetInstructor returns one instructor by id.
func (s *InstructorService) GetInstructor(ctx context.Context, id string) (Instructor, error) {
	stored, err := s.instructors.GetInstructor(ctx, id)
	if err != nil {
		return Instructor{}, fmt.Errorf("failed to load instructor %s: %w", id, mapRepositoryError(err))
	}
	return toApplicationInstructor(stored), nil
}

// ListInstructors returns every instructor ordered by name.
func (s *InstructorService) ListInstructors(ctx context.Context) ([]Instructor, error) {
	stored, err := s.instructors.ListInstructors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list instructors: %w", err)
	}
	instructors := make([]Instructor, 0, len(stored))
	for _, instructor := range stored {
		instructors = append(instructors, toApplicationInstructor(instructor))
	}
	return instructors, nil
}

// DeleteInstructor removes an instructor. Instructors still referenced by a
// class cannot be deleted.
func (s *InstructorService) DeleteInstructor(ctx context.Context, id string) error {
	if err := s.instructors.DeleteInstructor(ctx, id); err != nil {
		if errors.Is(err, persistence.ErrForeignKeyViolation) {
			vErr := &ValidationError{}
			vErr.add("id", "instructor is still assigned to one or more classes")
			return vErr
		}
		return fmt.Errorf("failed to delete instructor %s: %w", id, mapRepositoryError(err))
	}
	s.invalidate(ctx, cache.TagInstructors, cache.TagClasses)
	return nil
}

func (s *InstructorService) invalidate(ctx context.Context, tags ...cache.Tag) {
	if err := s.invalidator.Invalidate(ctx, tags...); err != nil {
		s.logger.Warn("failed to invalidate cache", "tags", tags, "error", err)
	}
}

func validateInstructorInput(input InstructorInput) error {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	email := strings.TrimSpace(input.Email)
	if email == "" {
		vErr.add("email", "email is required")
	} else if !strings.Contains(email, "@") {
		vErr.add("email", fmt.Sprintf("%q is not a valid email address", email))
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}
