package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/class-scheduler/internal/cache"
	"github.com/example/class-scheduler/internal/persistence"
	"github.com/example/class-scheduler/internal/recurrence"
	"github.com/example/class-scheduler/internal/scheduler"
)

const dateLayout = "2006-01-02"

// ClassService owns the class lifecycle: expanding recurrence rules into
// sessions, rejecting conflicting schedules, and reconciling manual
// exceptions against re-expansions.
type ClassService struct {
	classes     persistence.ClassRepository
	instructors persistence.InstructorRepository
	rooms       persistence.RoomRepository
	engine      *recurrence.Engine
	invalidator cache.Invalidator
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger

	// writeMu serializes each conflict check with the write it authorizes,
	// so two concurrent writers cannot both pass the check for the same slot.
	writeMu sync.Mutex
}

// NewClassService creates a ClassService. idGenerator and now may be nil, in
// which case UUIDs and the wall clock are used.
func NewClassService(
	classes persistence.ClassRepository,
	instructors persistence.InstructorRepository,
	rooms persistence.RoomRepository,
	engine *recurrence.Engine,
	invalidator cache.Invalidator,
	idGenerator func() string,
	now func() time.Time,
	logger *slog.Logger,
) *ClassService {
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
	return &ClassService{
		classes:     classes,
		instructors: instructors,
		rooms:       rooms,
		engine:      engine,
		invalidator: invalidator,
		idGenerator: idGenerator,
		now:         now,
		logger:      logger,
	}
}

// CreateClass validates the input, expands the recurrence rule into sessions,
// verifies the schedule against every persisted class, and stores the result.
func (s *ClassService) CreateClass(ctx context.Context, params CreateClassParams) (Class, error) {
	input := params.Input
	rule, err := s.validateClassInput(ctx, input)
	if err != nil {
		return Class{}, err
	}

	expanded, err := s.engine.Expand(rule, s.now())
	if err != nil {
		return Class{}, mapExpansionError(err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	candidates := expandedIntervals(expanded)
	if err := s.checkConflicts(ctx, candidates, input.RoomID, input.InstructorID, ""); err != nil {
		return Class{}, err
	}

	now := s.now()
	stored := persistence.Class{
		ID:           s.idGenerator(),
		Title:        input.Title,
		Description:  input.Description,
		InstructorID: input.InstructorID,
		RoomID:       input.RoomID,
		Recurrence:   toStoredRecurrence(rule),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, session := range expanded {
		stored.Sessions = append(stored.Sessions, persistence.Session{
			ID:      s.idGenerator(),
			ClassID: stored.ID,
			Start:   session.Start,
			End:     session.End,
		})
	}

	if err := s.classes.CreateClass(ctx, stored); err != nil {
		return Class{}, fmt.Errorf("failed to create class: %w", mapRepositoryError(err))
	}
	s.invalidate(ctx, cache.TagClasses)
	return toApplicationClass(stored, s.engine.Location()), nil
}

// UpdateClass re-expands the class schedule from the submitted rule, replays
// the recorded exceptions onto the fresh expansion, and replaces the stored
// session list. Sessions whose times survive the re-expansion keep their ids.
func (s *ClassService) UpdateClass(ctx context.Context, params UpdateClassParams) (Class, error) {
	existing, err := s.classes.GetClass(ctx, params.ClassID)
	if err != nil {
		return Class{}, fmt.Errorf("failed to load class %s: %w", params.ClassID, mapRepositoryError(err))
	}

	input := params.Input
	rule, err := s.validateClassInput(ctx, input)
	if err != nil {
		return Class{}, err
	}

	expanded, err := s.engine.Expand(rule, s.now())
	if err != nil {
		return Class{}, mapExpansionError(err)
	}

	reconciled := scheduler.ApplyExceptions(rawSessions(expanded), toSchedulerExceptions(existing.Exceptions))
	if len(reconciled) == 0 {
		vErr := &ValidationError{}
		vErr.add("schedule", "every generated session is cancelled by a recorded exception")
		return Class{}, vErr
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	candidates := toCandidateIntervals(reconciled)
	if err := s.checkConflicts(ctx, candidates, input.RoomID, input.InstructorID, existing.ID); err != nil {
		return Class{}, err
	}

	previousIDs := make(map[int64]string, len(existing.Sessions))
	for _, session := range existing.Sessions {
		previousIDs[session.Start.UnixNano()] = session.ID
	}

	stored := persistence.Class{
		ID:           existing.ID,
		Title:        input.Title,
		Description:  input.Description,
		InstructorID: input.InstructorID,
		RoomID:       input.RoomID,
		Recurrence:   toStoredRecurrence(rule),
		Exceptions:   existing.Exceptions,
		CreatedAt:    existing.CreatedAt,
		UpdatedAt:    s.now(),
	}
	for _, session := range reconciled {
		id, ok := previousIDs[session.Start.UnixNano()]
		if !ok {
			id = s.idGenerator()
		}
		stored.Sessions = append(stored.Sessions, persistence.Session{
			ID:      id,
			ClassID: stored.ID,
			Start:   session.Start,
			End:     session.End,
		})
	}

	if err := s.classes.UpdateClass(ctx, stored); err != nil {
		return Class{}, fmt.Errorf("failed to update class %s: %w", stored.ID, mapRepositoryError(err))
	}
	s.invalidate(ctx, cache.TagClasses)
	return toApplicationClass(stored, s.engine.Location()), nil
}

// DetachSession splits one occurrence out of a series into its own
// single-session class, optionally moving it to a new time, room, instructor
// or title. The parent keeps a cancelled exception in place of the session.
// When the parent is itself a single-session class, it is edited in place
// instead of split.
//
// The new class is written before the parent is touched, so a failure between
// the two writes leaves the occurrence present in both classes rather than in
// neither.
func (s *ClassService) DetachSession(ctx context.Context, params DetachSessionParams) (Class, error) {
	parent, err := s.classes.GetClass(ctx, params.ClassID)
	if err != nil {
		return Class{}, fmt.Errorf("failed to load class %s: %w", params.ClassID, mapRepositoryError(err))
	}

	session, index, ok := findSession(parent, params.SessionID)
	if !ok {
		return Class{}, ErrNotFound
	}

	start, end := session.Start, session.End
	if params.NewStart != nil {
		start = *params.NewStart
	}
	if params.NewEnd != nil {
		end = *params.NewEnd
	}

	vErr := &ValidationError{}
	if !end.After(start) {
		vErr.add("new_end", "session end must be after its start")
	} else if end.Sub(start) < recurrence.MinSessionDuration {
		vErr.add("new_end", fmt.Sprintf("session must last at least %s", recurrence.MinSessionDuration))
	}
	if start.Before(s.now().Add(recurrence.ScheduleLeadTime)) {
		vErr.add("new_start", fmt.Sprintf("session must start at least %s in the future", recurrence.ScheduleLeadTime))
	}

	instructorID := parent.InstructorID
	if params.InstructorID != "" {
		instructorID = params.InstructorID
		if _, err := s.instructors.GetInstructor(ctx, instructorID); err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				vErr.add("instructor_id", fmt.Sprintf("unknown instructor %q", instructorID))
			} else {
				return Class{}, fmt.Errorf("failed to load instructor %s: %w", instructorID, err)
			}
		}
	}
	roomID := parent.RoomID
	if params.RoomID != "" {
		roomID = params.RoomID
		if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				vErr.add("room_id", fmt.Sprintf("unknown room %q", roomID))
			} else {
				return Class{}, fmt.Errorf("failed to load room %s: %w", roomID, err)
			}
		}
	}
	if vErr.HasErrors() {
		return Class{}, vErr
	}

	title := parent.Title
	if params.Title != "" {
		title = params.Title
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	candidate := []scheduler.Interval{{Start: start, End: end}}
	if err := s.checkConflicts(ctx, candidate, roomID, instructorID, parent.ID); err != nil {
		return Class{}, err
	}

	loc := s.engine.Location()
	now := s.now()
	slot := persistence.TimeSlot{
		Start: start.In(loc).Format("15:04"),
		End:   end.In(loc).Format("15:04"),
	}

	if parent.Recurrence.Kind == recurrence.KindSingle.String() {
		anchor := session.Start
		parent.Title = title
		parent.InstructorID = instructorID
		parent.RoomID = roomID
		parent.Sessions[index].Start = start
		parent.Sessions[index].End = end
		parent.Recurrence.SeriesStart = startOfDay(start, loc)
		parent.Recurrence.TimeSlots = []persistence.TimeSlot{slot}
		parent.Exceptions = append(parent.Exceptions, persistence.Exception{
			ID:        s.idGenerator(),
			ClassID:   parent.ID,
			Anchor:    anchor,
			Status:    persistence.ExceptionStatusModified,
			Reason:    params.Reason,
			NewStart:  &start,
			NewEnd:    &end,
			CreatedAt: now,
		})
		parent.UpdatedAt = now

		if err := s.classes.UpdateClass(ctx, parent); err != nil {
			return Class{}, fmt.Errorf("failed to update class %s: %w", parent.ID, mapRepositoryError(err))
		}
		s.invalidate(ctx, cache.TagClasses)
		return toApplicationClass(parent, loc), nil
	}

	detached := persistence.Class{
		ID:           s.idGenerator(),
		Title:        title,
		Description:  parent.Description,
		InstructorID: instructorID,
		RoomID:       roomID,
		Recurrence: persistence.Recurrence{
			Kind:         recurrence.KindSingle.String(),
			SeriesStart:  startOfDay(start, loc),
			IntervalUnit: 1,
			TimeSlots:    []persistence.TimeSlot{slot},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	detached.Sessions = []persistence.Session{{
		ID:      s.idGenerator(),
		ClassID: detached.ID,
		Start:   start,
		End:     end,
	}}

	if err := s.classes.CreateClass(ctx, detached); err != nil {
		return Class{}, fmt.Errorf("failed to create detached class: %w", mapRepositoryError(err))
	}

	parent.Sessions = append(parent.Sessions[:index], parent.Sessions[index+1:]...)
	parent.Exceptions = append(parent.Exceptions, persistence.Exception{
		ID:        s.idGenerator(),
		ClassID:   parent.ID,
		Anchor:    session.Start,
		Status:    persistence.ExceptionStatusCancelled,
		Reason:    params.Reason,
		CreatedAt: now,
	})
	parent.UpdatedAt = now

	if err := s.classes.UpdateClass(ctx, parent); err != nil {
		return Class{}, fmt.Errorf("failed to update class %s after detach: %w", parent.ID, mapRepositoryError(err))
	}
	s.invalidate(ctx, cache.TagClasses)
	return toApplicationClass(detached, loc), nil
}

// CancelSession removes one occurrence from a class and records a cancelled
// exception in its place, so later rule edits do not resurrect it.
func (s *ClassService) CancelSession(ctx context.Context, params CancelSessionParams) (Class, error) {
	class, err := s.classes.GetClass(ctx, params.ClassID)
	if err != nil {
		return Class{}, fmt.Errorf("failed to load class %s: %w", params.ClassID, mapRepositoryError(err))
	}

	session, index, ok := findSession(class, params.SessionID)
	if !ok {
		return Class{}, ErrNotFound
	}
	if len(class.Sessions) == 1 {
		vErr := &ValidationError{}
		vErr.add("session_id", "cancelling the last session would leave the class empty; delete the class instead")
		return Class{}, vErr
	}

	now := s.now()
	class.Sessions = append(class.Sessions[:index], class.Sessions[index+1:]...)
	class.Exceptions = append(class.Exceptions, persistence.Exception{
		ID:        s.idGenerator(),
		ClassID:   class.ID,
		Anchor:    session.Start,
		Status:    persistence.ExceptionStatusCancelled,
		Reason:    params.Reason,
		CreatedAt: now,
	})
	class.UpdatedAt = now

	if err := s.classes.UpdateClass(ctx, class); err != nil {
		return Class{}, fmt.Errorf("failed to update class %s: %w", class.ID, mapRepositoryError(err))
	}
	s.invalidate(ctx, cache.TagClasses)
	return toApplicationClass(class, s.engine.Location()), nil
}

// GetClass returns one class with its sessions and exception history.
func (s *ClassService) GetClass(ctx context.Context, id string) (Class, error) {
	stored, err := s.classes.GetClass(ctx, id)
	if err != nil {
		return Class{}, fmt.Errorf("failed to load class %s: %w", id, mapRepositoryError(err))
	}
	return toApplicationClass(stored, s.engine.Location()), nil
}

// ListClasses returns classes matching the filter, ordered by series start.
func (s *ClassService) ListClasses(ctx context.Context, params ListClassesParams) ([]Class, error) {
	stored, err := s.classes.ListClasses(ctx, persistence.ClassFilter{
		InstructorID: params.InstructorID,
		RoomID:       params.RoomID,
		StartsAfter:  params.StartsAfter,
		EndsBefore:   params.EndsBefore,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	loc := s.engine.Location()
	classes := make([]Class, 0, len(stored))
	for _, class := range stored {
		classes = append(classes, toApplicationClass(class, loc))
	}
	return classes, nil
}

// DeleteClass removes a class and all of its sessions and exceptions.
func (s *ClassService) DeleteClass(ctx context.Context, id string) error {
	if err := s.classes.DeleteClass(ctx, id); err != nil {
		return fmt.Errorf("failed to delete class %s: %w", id, mapRepositoryError(err))
	}
	s.invalidate(ctx, cache.TagClasses)
	return nil
}

// PreviewSchedule expands a rule without persisting anything, so callers can
// inspect the sessions a create or update would produce.
func (s *ClassService) PreviewSchedule(ctx context.Context, input RuleInput) ([]SessionPreview, error) {
	vErr := &ValidationError{}
	rule := parseRuleInput(input, vErr, s.engine.Location())
	if vErr.HasErrors() {
		return nil, vErr
	}

	expanded, err := s.engine.Expand(rule, s.now())
	if err != nil {
		return nil, mapExpansionError(err)
	}

	previews := make([]SessionPreview, 0, len(expanded))
	for _, session := range expanded {
		previews = append(previews, SessionPreview{Start: session.Start, End: session.End})
	}
	return previews, nil
}

// validateClassInput checks the scalar fields, verifies the referenced
// instructor and room exist, and parses the recurrence input into a typed
// rule. All field problems are collected into one ValidationError.
func (s *ClassService) validateClassInput(ctx context.Context, input ClassInput) (recurrence.Rule, error) {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Title) == "" {
		vErr.add("title", "title is required")
	}

	if input.InstructorID == "" {
		vErr.add("instructor_id", "instructor is required")
	} else if _, err := s.instructors.GetInstructor(ctx, input.InstructorID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			vErr.add("instructor_id", fmt.Sprintf("unknown instructor %q", input.InstructorID))
		} else {
			return recurrence.Rule{}, fmt.Errorf("failed to load instructor %s: %w", input.InstructorID, err)
		}
	}

	if input.RoomID == "" {
		vErr.add("room_id", "room is required")
	} else if _, err := s.rooms.GetRoom(ctx, input.RoomID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			vErr.add("room_id", fmt.Sprintf("unknown room %q", input.RoomID))
		} else {
			return recurrence.Rule{}, fmt.Errorf("failed to load room %s: %w", input.RoomID, err)
		}
	}

	rule := parseRuleInput(input.Recurrence, vErr, s.engine.Location())
	if vErr.HasErrors() {
		return rule, vErr
	}
	return rule, nil
}

// parseRuleInput turns the wire form of a recurrence rule into a typed
// recurrence.Rule, recording every field problem it finds. The returned rule
// is only meaningful when vErr stays empty.
func parseRuleInput(input RuleInput, vErr *ValidationError, loc *time.Location) recurrence.Rule {
	rule := recurrence.Rule{IntervalUnit: input.IntervalUnit}

	kind, ok := recurrence.ParseKind(input.Kind)
	if !ok {
		vErr.add("recurrence_kind", fmt.Sprintf("unsupported recurrence kind %q", input.Kind))
	}
	rule.Kind = kind

	if input.SeriesStart == "" {
		vErr.add("series_start", "series start date is required")
	} else if start, err := time.ParseInLocation(dateLayout, input.SeriesStart, loc); err != nil {
		vErr.add("series_start", fmt.Sprintf("%q is not a valid date, expected YYYY-MM-DD", input.SeriesStart))
	} else {
		rule.SeriesStart = start
	}

	if input.SeriesEnd != "" {
		if end, err := time.ParseInLocation(dateLayout, input.SeriesEnd, loc); err != nil {
			vErr.add("series_end", fmt.Sprintf("%q is not a valid date, expected YYYY-MM-DD", input.SeriesEnd))
		} else {
			rule.SeriesEnd = &end
		}
	}

	if input.IntervalUnit < 0 {
		vErr.add("interval_unit", "interval must be at least 1")
	}

	switch kind {
	case recurrence.KindWeekly:
		if len(input.Weekdays) == 0 {
			vErr.add("weekdays", "weekly rules require at least one weekday")
		}
	case recurrence.KindMonthly:
		if len(input.MonthDays) == 0 {
			vErr.add("month_days", "monthly rules require at least one day of the month")
		}
	}

	for _, day := range input.Weekdays {
		if day < 0 || day > 6 {
			vErr.add("weekdays", fmt.Sprintf("weekday %d is out of range, expected 0 (Sunday) through 6 (Saturday)", day))
			continue
		}
		rule.Weekdays = append(rule.Weekdays, time.Weekday(day))
	}
	for _, day := range input.MonthDays {
		if day < 1 || day > 31 {
			vErr.add("month_days", fmt.Sprintf("day of month %d is out of range, expected 1 through 31", day))
			continue
		}
		rule.MonthDays = append(rule.MonthDays, day)
	}
	rule.ManualDates = append([]string(nil), input.ManualDates...)

	if len(input.TimeSlots) == 0 {
		vErr.add("time_slots", "at least one time slot is required")
	}
	for _, slot := range input.TimeSlots {
		rule.TimeSlots = append(rule.TimeSlots, recurrence.TimeSlot{Start: slot.Start, End: slot.End})
	}

	return rule
}

// checkConflicts loads every persisted class that could collide with the
// candidate intervals on the target room or instructor and runs the conflict
// detector over them. A non-nil return is a *ConflictError or a repository
// failure.
func (s *ClassService) checkConflicts(ctx context.Context, candidates []scheduler.Interval, roomID, instructorID, excludeID string) error {
	matches, err := s.classes.FindOverlapping(ctx, persistence.OverlapQuery{
		RoomID:         roomID,
		InstructorID:   instructorID,
		Candidates:     toTimeRanges(candidates),
		ExcludeClassID: excludeID,
	})
	if err != nil {
		return fmt.Errorf("failed to search for overlapping classes: %w", err)
	}

	conflicts := scheduler.DetectConflicts(toSchedulerSeries(matches), candidates, roomID, instructorID, excludeID, s.engine.Location())
	if len(conflicts) == 0 {
		return nil
	}

	fields := make([]string, 0, len(conflicts))
	for _, conflict := range conflicts {
		fields = append(fields, string(conflict.Field))
	}
	return &ConflictError{
		Field:   strings.Join(fields, ","),
		Message: scheduler.CombineMessages(conflicts),
		Start:   conflicts[0].Session.Start,
		End:     conflicts[0].Session.End,
	}
}

func (s *ClassService) invalidate(ctx context.Context, tags ...cache.Tag) {
	if err := s.invalidator.Invalidate(ctx, tags...); err != nil {
		s.logger.Warn("failed to invalidate cache", "tags", tags, "error", err)
	}
}

func mapExpansionError(err error) error {
	vErr := &ValidationError{}
	switch {
	case errors.Is(err, recurrence.ErrInvalidTimeSlot):
		vErr.add("time_slots", err.Error())
	case errors.Is(err, recurrence.ErrMissingBoundary), errors.Is(err, recurrence.ErrInvalidRange):
		vErr.add("series_end", err.Error())
	case errors.Is(err, recurrence.ErrNoFutureSessions):
		vErr.add("schedule", fmt.Sprintf("the rule produces no sessions starting at least %s in the future", recurrence.ScheduleLeadTime))
	case errors.Is(err, recurrence.ErrInvalidKind):
		vErr.add("recurrence_kind", err.Error())
	default:
		return fmt.Errorf("failed to expand recurrence rule: %w", err)
	}
	return vErr
}

func mapRepositoryError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	default:
		return err
	}
}

func findSession(class persistence.Class, sessionID string) (persistence.Session, int, bool) {
	for i, session := range class.Sessions {
		if session.ID == sessionID {
			return session, i, true
		}
	}
	return persistence.Session{}, 0, false
}

func expandedIntervals(sessions []recurrence.Session) []scheduler.Interval {
	intervals := make([]scheduler.Interval, 0, len(sessions))
	for _, session := range sessions {
		intervals = append(intervals, scheduler.Interval{Start: session.Start, End: session.End})
	}
	return intervals
}

func rawSessions(sessions []recurrence.Session) []scheduler.Session {
	raw := make([]scheduler.Session, 0, len(sessions))
	for _, session := range sessions {
		raw = append(raw, scheduler.Session{Start: session.Start, End: session.End})
	}
	return raw
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
