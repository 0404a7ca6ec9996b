package application

import (
	"context"
	"sync"

	"github.com/example/class-scheduler/internal/cache"
	"github.com/example/class-scheduler/internal/persistence"
)

// stubClassRepository is an in-memory persistence.ClassRepository that records
// the order of write operations so tests can assert sequencing.
type stubClassRepository struct {
	mu      sync.Mutex
	classes map[string]persistence.Class
	ops     []string

	createErr error
	updateErr error

	overlapping []persistence.OverlappingClass
	lastQuery   persistence.OverlapQuery

	// computeOverlap makes FindOverlapping scan the stored classes instead
	// of returning the canned overlapping slice.
	computeOverlap bool

	// createStarted and createRelease let a test hold a CreateClass call
	// open while it drives a second writer.
	createStarted chan struct{}
	createRelease chan struct{}
}

func newStubClassRepository() *stubClassRepository {
	return &stubClassRepository{classes: make(map[string]persistence.Class)}
}

func (s *stubClassRepository) record(op string) {
	s.ops = append(s.ops, op)
}

func (s *stubClassRepository) CreateClass(ctx context.Context, class persistence.Class) error {
	if s.createStarted != nil {
		s.createStarted <- struct{}{}
	}
	if s.createRelease != nil {
		<-s.createRelease
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("create:" + class.ID)
	if s.createErr != nil {
		return s.createErr
	}
	if _, exists := s.classes[class.ID]; exists {
		return persistence.ErrDuplicate
	}
	s.classes[class.ID] = class
	return nil
}

func (s *stubClassRepository) UpdateClass(ctx context.Context, class persistence.Class) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("update:" + class.ID)
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, exists := s.classes[class.ID]; !exists {
		return persistence.ErrNotFound
	}
	s.classes[class.ID] = class
	return nil
}

func (s *stubClassRepository) GetClass(ctx context.Context, id string) (persistence.Class, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	class, ok := s.classes[id]
	if !ok {
		return persistence.Class{}, persistence.ErrNotFound
	}
	return class, nil
}

func (s *stubClassRepository) ListClasses(ctx context.Context, filter persistence.ClassFilter) ([]persistence.Class, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]persistence.Class, 0, len(s.classes))
	for _, class := range s.classes {
		out = append(out, class)
	}
	return out, nil
}

func (s *stubClassRepository) DeleteClass(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("delete:" + id)
	if _, ok := s.classes[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.classes, id)
	return nil
}

func (s *stubClassRepository) FindOverlapping(ctx context.Context, query persistence.OverlapQuery) ([]persistence.OverlappingClass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQuery = query
	if !s.computeOverlap {
		return s.overlapping, nil
	}

	var matches []persistence.OverlappingClass
	for _, class := range s.classes {
		if class.ID == query.ExcludeClassID {
			continue
		}
		sameRoom := query.RoomID != "" && class.RoomID == query.RoomID
		sameInstructor := query.InstructorID != "" && class.InstructorID == query.InstructorID
		if !sameRoom && !sameInstructor {
			continue
		}
		if !sessionsIntersect(class.Sessions, query.Candidates) {
			continue
		}
		matches = append(matches, persistence.OverlappingClass{
			Class:          class,
			InstructorName: "Instructor " + class.InstructorID,
			RoomName:       "Room " + class.RoomID,
		})
	}
	return matches, nil
}

func sessionsIntersect(sessions []persistence.Session, candidates []persistence.TimeRange) bool {
	for _, session := range sessions {
		for _, candidate := range candidates {
			if session.Start.Before(candidate.End) && session.End.After(candidate.Start) {
				return true
			}
		}
	}
	return false
}

type stubInstructorRepository struct {
	instructors map[string]persistence.Instructor
	deleteErr   error
}

func newStubInstructorRepository(ids ...string) *stubInstructorRepository {
	repo := &stubInstructorRepository{instructors: make(map[string]persistence.Instructor)}
	for _, id := range ids {
		repo.instructors[id] = persistence.Instructor{ID: id, Name: "Instructor " + id, Email: id + "@example.com"}
	}
	return repo
}

func (s *stubInstructorRepository) CreateInstructor(ctx context.Context, instructor persistence.Instructor) error {
	if _, exists := s.instructors[instructor.ID]; exists {
		return persistence.ErrDuplicate
	}
	s.instructors[instructor.ID] = instructor
	return nil
}

func (s *stubInstructorRepository) UpdateInstructor(ctx context.Context, instructor persistence.Instructor) error {
	if _, exists := s.instructors[instructor.ID]; !exists {
		return persistence.ErrNotFound
	}
	s.instructors[instructor.ID] = instructor
	return nil
}

func (s *stubInstructorRepository) GetInstructor(ctx context.Context, id string) (persistence.Instructor, error) {
	instructor, ok := s.instructors[id]
	if !ok {
		return persistence.Instructor{}, persistence.ErrNotFound
	}
	return instructor, nil
}

func (s *stubInstructorRepository) ListInstructors(ctx context.Context) ([]persistence.Instructor, error) {
	out := make([]persistence.Instructor, 0, len(s.instructors))
	for _, instructor := range s.instructors {
		out = append(out, instructor)
	}
	return out, nil
}

func (s *stubInstructorRepository) DeleteInstructor(ctx context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.instructors[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.instructors, id)
	return nil
}

type stubRoomRepository struct {
	rooms     map[string]persistence.Room
	deleteErr error
}

func newStubRoomRepository(ids ...string) *stubRoomRepository {
	repo := &stubRoomRepository{rooms: make(map[string]persistence.Room)}
	for _, id := range ids {
		repo.rooms[id] = persistence.Room{ID: id, Name: "Room " + id, Location: "Floor 1", Capacity: 20}
	}
	return repo
}

func (s *stubRoomRepository) CreateRoom(ctx context.Context, room persistence.Room) error {
	if _, exists := s.rooms[room.ID]; exists {
		return persistence.ErrDuplicate
	}
	s.rooms[room.ID] = room
	return nil
}

func (s *stubRoomRepository) UpdateRoom(ctx context.Context, room persistence.Room) error {
	if _, exists := s.rooms[room.ID]; !exists {
		return persistence.ErrNotFound
	}
	s.rooms[room.ID] = room
	return nil
}

func (s *stubRoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	room, ok := s.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return room, nil
}

func (s *stubRoomRepository) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	out := make([]persistence.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		out = append(out, room)
	}
	return out, nil
}

func (s *stubRoomRepository) DeleteRoom(ctx context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.rooms[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.rooms, id)
	return nil
}

// recordingInvalidator captures invalidations, appending to the shared op log
// of the class repository when one is attached so write ordering is visible.
type recordingInvalidator struct {
	repo *stubClassRepository
	tags [][]cache.Tag
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, tags ...cache.Tag) error {
	if r.repo != nil {
		r.repo.mu.Lock()
		r.repo.record("invalidate")
		r.repo.mu.Unlock()
	}
	r.tags = append(r.tags, tags)
	return nil
}
