package persistence

import "context"

// InstructorRepository exposes CRUD operations for instructors.
type InstructorRepository interface {
	CreateInstructor(ctx context.Context, instructor Instructor) error
	UpdateInstructor(ctx context.Context, instructor Instructor) error
	GetInstructor(ctx context.Context, id string) (Instructor, error)
	ListInstructors(ctx context.Context) ([]Instructor, error)
	DeleteInstructor(ctx context.Context, id string) error
}

// RoomRepository exposes CRUD operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	DeleteRoom(ctx context.Context, id string) error
}

// ClassRepository stores class series together with their owned sessions and
// exception history. Update replaces the session list and exception history
// wholesale; the reconciled expansion is the authoritative state.
type ClassRepository interface {
	CreateClass(ctx context.Context, class Class) error
	UpdateClass(ctx context.Context, class Class) error
	GetClass(ctx context.Context, id string) (Class, error)
	ListClasses(ctx context.Context, filter ClassFilter) ([]Class, error)
	DeleteClass(ctx context.Context, id string) error

	// FindOverlapping answers the conflict-check query: every class booked on
	// the queried room or instructor with at least one session intersecting a
	// candidate range, under the half-open overlap test.
	FindOverlapping(ctx context.Context, query OverlapQuery) ([]OverlappingClass, error)
}
