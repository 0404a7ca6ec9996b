package scheduler

import (
	"fmt"
	"time"
)

// Interval is a half-open [Start, End) time range.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Session is one persisted occurrence belonging to a class series.
type Session struct {
	ID    string
	Start time.Time
	End   time.Time
}

// Interval returns the session's time range.
func (s Session) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

// Series is the snapshot of a persisted class the detector searches.
// Instructor and room names are denormalized so conflict messages can name
// the colliding entity without further lookups.
type Series struct {
	ID             string
	Title          string
	InstructorID   string
	InstructorName string
	RoomID         string
	RoomName       string
	Sessions       []Session
}

// ConflictField identifies which scheduling dimension a conflict occupies.
type ConflictField string

const (
	// FieldInstructor indicates the instructor is double-booked.
	FieldInstructor ConflictField = "instructor"
	// FieldRoom indicates the room is double-booked.
	FieldRoom ConflictField = "room"
)

// Conflict describes one overlap between a candidate interval and an
// already-persisted session, attributable to a specific entity.
type Conflict struct {
	Field    ConflictField
	SeriesID string
	Session  Session
	Message  string
}

const (
	startLayout = "Monday, January 2, 2006 at 3:04 PM"
	endLayout   = "3:04 PM"
)

// Overlaps reports whether two intervals intersect. The test is half-open:
// back-to-back intervals (a.End == b.Start) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// DetectConflicts searches existing series for sessions overlapping any
// candidate interval on the targeted room or instructor, skipping the series
// identified by excludeID (the caller's own series during updates).
//
// At most one conflict per field is returned, each naming the first
// overlapping session of the first colliding series in iteration order.
// Attribution follows the series' instructor: when the colliding series is
// taught by the targeted instructor the conflict is an instructor conflict,
// otherwise it is a room conflict. When room and instructor collide against
// different series, both conflicts are reported.
func DetectConflicts(existing []Series, candidates []Interval, roomID, instructorID, excludeID string, loc *time.Location) []Conflict {
	if len(candidates) == 0 {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	var instructorConflict, roomConflict *Conflict
	for i := range existing {
		series := &existing[i]
		if series.ID != "" && series.ID == excludeID {
			continue
		}

		sameInstructor := instructorID != "" && series.InstructorID == instructorID
		sameRoom := roomID != "" && series.RoomID == roomID
		if !sameInstructor && !sameRoom {
			continue
		}

		session, ok := firstOverlap(series.Sessions, candidates)
		if !ok {
			continue
		}

		if sameInstructor && instructorConflict == nil {
			instructorConflict = &Conflict{
				Field:    FieldInstructor,
				SeriesID: series.ID,
				Session:  session,
				Message:  conflictMessage(FieldInstructor, series, session, loc),
			}
		}
		if sameRoom && !sameInstructor && roomConflict == nil {
			roomConflict = &Conflict{
				Field:    FieldRoom,
				SeriesID: series.ID,
				Session:  session,
				Message:  conflictMessage(FieldRoom, series, session, loc),
			}
		}
		if instructorConflict != nil && roomConflict != nil {
			break
		}
	}

	var conflicts []Conflict
	if instructorConflict != nil {
		conflicts = append(conflicts, *instructorConflict)
	}
	if roomConflict != nil {
		conflicts = append(conflicts, *roomConflict)
	}
	return conflicts
}

func firstOverlap(sessions []Session, candidates []Interval) (Session, bool) {
	for _, session := range sessions {
		for _, candidate := range candidates {
			if Overlaps(session.Interval(), candidate) {
				return session, true
			}
		}
	}
	return Session{}, false
}

func conflictMessage(field ConflictField, series *Series, session Session, loc *time.Location) string {
	entity := series.RoomName
	if field == FieldInstructor {
		entity = series.InstructorName
	}
	return fmt.Sprintf("%q already books %s %s on %s - %s",
		series.Title, string(field), entity,
		session.Start.In(loc).Format(startLayout),
		session.End.In(loc).Format(endLayout))
}

// CombineMessages joins per-field conflict messages into one explanation
// when a candidate collides on both dimensions against different series.
func CombineMessages(conflicts []Conflict) string {
	switch len(conflicts) {
	case 0:
		return ""
	case 1:
		return conflicts[0].Message
	}
	combined := conflicts[0].Message
	for _, c := range conflicts[1:] {
		combined += "; " + c.Message
	}
	return combined
}
