package application

import (
	"time"

	"github.com/example/class-scheduler/internal/persistence"
	"github.com/example/class-scheduler/internal/recurrence"
	"github.com/example/class-scheduler/internal/scheduler"
)

// TimeSlotInput is a caller provided "HH:mm" start/end pair.
type TimeSlotInput struct {
	Start string
	End   string
}

// RuleInput captures the recurrence fields of a write request before they are
// validated into a typed recurrence.Rule.
type RuleInput struct {
	Kind         string
	SeriesStart  string
	SeriesEnd    string
	IntervalUnit int
	Weekdays     []int
	MonthDays    []int
	ManualDates  []string
	TimeSlots    []TimeSlotInput
}

// ClassInput captures caller provided class fields.
type ClassInput struct {
	Title        string
	Description  string
	InstructorID string
	RoomID       string
	Recurrence   RuleInput
}

// Session is one materialized occurrence of a class.
type Session struct {
	ID    string
	Start time.Time
	End   time.Time
}

// SessionPreview is a candidate occurrence from an expansion that was not
// persisted.
type SessionPreview struct {
	Start time.Time
	End   time.Time
}

// Exception is a recorded manual override on a class series.
type Exception struct {
	ID        string
	Anchor    time.Time
	Status    string
	Reason    string
	NewStart  *time.Time
	NewEnd    *time.Time
	CreatedAt time.Time
}

// Class represents a class series with its authoritative session list and
// exception history.
type Class struct {
	ID           string
	Title        string
	Description  string
	InstructorID string
	RoomID       string
	Rule         recurrence.Rule
	Sessions     []Session
	Exceptions   []Exception
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateClassParams wraps the data required to create a class.
type CreateClassParams struct {
	Input ClassInput
}

// UpdateClassParams wraps the data required to update an existing class.
type UpdateClassParams struct {
	ClassID string
	Input   ClassInput
}

// DetachSessionParams wraps the data required to split one occurrence out of
// a series. Title, RoomID, InstructorID, NewStart and NewEnd override the
// values inherited from the parent when set.
type DetachSessionParams struct {
	ClassID      string
	SessionID    string
	Title        string
	RoomID       string
	InstructorID string
	NewStart     *time.Time
	NewEnd       *time.Time
	Reason       string
}

// CancelSessionParams wraps the data required to cancel one occurrence.
type CancelSessionParams struct {
	ClassID   string
	SessionID string
	Reason    string
}

// ListClassesParams narrows class listings.
type ListClassesParams struct {
	InstructorID string
	RoomID       string
	StartsAfter  *time.Time
	EndsBefore   *time.Time
}

// InstructorInput captures caller provided instructor fields.
type InstructorInput struct {
	Name  string
	Email string
}

// Instructor represents a teaching staff record.
type Instructor struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Name     string
	Location string
	Capacity int
}

// Room represents a bookable room catalog entry.
type Room struct {
	ID        string
	Name      string
	Location  string
	Capacity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// --- conversions between layers ---

func toApplicationClass(stored persistence.Class, loc *time.Location) Class {
	class := Class{
		ID:           stored.ID,
		Title:        stored.Title,
		Description:  stored.Description,
		InstructorID: stored.InstructorID,
		RoomID:       stored.RoomID,
		Rule:         toRule(stored.Recurrence),
		CreatedAt:    stored.CreatedAt,
		UpdatedAt:    stored.UpdatedAt,
	}
	for _, session := range stored.Sessions {
		class.Sessions = append(class.Sessions, Session{
			ID:    session.ID,
			Start: session.Start.In(loc),
			End:   session.End.In(loc),
		})
	}
	for _, exc := range stored.Exceptions {
		class.Exceptions = append(class.Exceptions, Exception{
			ID:        exc.ID,
			Anchor:    exc.Anchor.In(loc),
			Status:    exc.Status,
			Reason:    exc.Reason,
			NewStart:  timePtrIn(exc.NewStart, loc),
			NewEnd:    timePtrIn(exc.NewEnd, loc),
			CreatedAt: exc.CreatedAt,
		})
	}
	return class
}

func toRule(stored persistence.Recurrence) recurrence.Rule {
	kind, _ := recurrence.ParseKind(stored.Kind)
	rule := recurrence.Rule{
		Kind:         kind,
		SeriesStart:  stored.SeriesStart,
		SeriesEnd:    stored.SeriesEnd,
		IntervalUnit: stored.IntervalUnit,
		MonthDays:    append([]int(nil), stored.MonthDays...),
		ManualDates:  append([]string(nil), stored.ManualDates...),
	}
	for _, day := range stored.Weekdays {
		rule.Weekdays = append(rule.Weekdays, time.Weekday(day))
	}
	for _, slot := range stored.TimeSlots {
		rule.TimeSlots = append(rule.TimeSlots, recurrence.TimeSlot{Start: slot.Start, End: slot.End})
	}
	return rule
}

func toStoredRecurrence(rule recurrence.Rule) persistence.Recurrence {
	stored := persistence.Recurrence{
		Kind:         rule.Kind.String(),
		SeriesStart:  rule.SeriesStart,
		SeriesEnd:    rule.SeriesEnd,
		IntervalUnit: rule.IntervalUnit,
		MonthDays:    append([]int(nil), rule.MonthDays...),
		ManualDates:  append([]string(nil), rule.ManualDates...),
	}
	for _, day := range rule.Weekdays {
		stored.Weekdays = append(stored.Weekdays, int(day))
	}
	for _, slot := range rule.TimeSlots {
		stored.TimeSlots = append(stored.TimeSlots, persistence.TimeSlot{Start: slot.Start, End: slot.End})
	}
	return stored
}

func toSchedulerSeries(matches []persistence.OverlappingClass) []scheduler.Series {
	series := make([]scheduler.Series, 0, len(matches))
	for _, match := range matches {
		entry := scheduler.Series{
			ID:             match.ID,
			Title:          match.Title,
			InstructorID:   match.InstructorID,
			InstructorName: match.InstructorName,
			RoomID:         match.RoomID,
			RoomName:       match.RoomName,
		}
		for _, session := range match.Sessions {
			entry.Sessions = append(entry.Sessions, scheduler.Session{
				ID:    session.ID,
				Start: session.Start,
				End:   session.End,
			})
		}
		series = append(series, entry)
	}
	return series
}

func toCandidateIntervals(sessions []scheduler.Session) []scheduler.Interval {
	intervals := make([]scheduler.Interval, 0, len(sessions))
	for _, session := range sessions {
		intervals = append(intervals, session.Interval())
	}
	return intervals
}

func toTimeRanges(intervals []scheduler.Interval) []persistence.TimeRange {
	ranges := make([]persistence.TimeRange, 0, len(intervals))
	for _, interval := range intervals {
		ranges = append(ranges, persistence.TimeRange{Start: interval.Start, End: interval.End})
	}
	return ranges
}

func toSchedulerExceptions(stored []persistence.Exception) []scheduler.Exception {
	exceptions := make([]scheduler.Exception, 0, len(stored))
	for _, exc := range stored {
		exceptions = append(exceptions, scheduler.Exception{
			Anchor:   exc.Anchor,
			Status:   scheduler.ExceptionStatus(exc.Status),
			Reason:   exc.Reason,
			NewStart: exc.NewStart,
			NewEnd:   exc.NewEnd,
		})
	}
	return exceptions
}

func toApplicationInstructor(stored persistence.Instructor) Instructor {
	return Instructor(stored)
}

func toApplicationRoom(stored persistence.Room) Room {
	return Room(stored)
}

func timePtrIn(t *time.Time, loc *time.Location) *time.Time {
	if t == nil {
		return nil
	}
	converted := t.In(loc)
	return &converted
}
