package persistence

import "time"

// Instructor represents a teaching staff record.
type Instructor struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
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

// TimeSlot is a civil "HH:mm" start/end pair persisted with a class rule.
type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Recurrence holds the flattened rule fields persisted on a class.
type Recurrence struct {
	Kind         string
	SeriesStart  time.Time
	SeriesEnd    *time.Time
	IntervalUnit int
	Weekdays     []int
	MonthDays    []int
	ManualDates  []string
	TimeSlots    []TimeSlot
}

// Session is one materialized occurrence owned by a class. Sessions are
// stored as child rows with stable identifiers rather than embedded blobs.
type Session struct {
	ID      string
	ClassID string
	Start   time.Time
	End     time.Time
}

// Exception statuses persisted on class exception records.
const (
	ExceptionStatusModified  = "modified"
	ExceptionStatusCancelled = "cancelled"
)

// Exception records a manual override anchored to an original session start.
type Exception struct {
	ID        string
	ClassID   string
	Anchor    time.Time
	Status    string
	Reason    string
	NewStart  *time.Time
	NewEnd    *time.Time
	CreatedAt time.Time
}

// Class represents a class series: its definition, the authoritative session
// list generated from the rule, and the accumulated exception history.
type Class struct {
	ID           string
	Title        string
	Description  string
	InstructorID string
	RoomID       string
	Recurrence   Recurrence
	Sessions     []Session
	Exceptions   []Exception
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TimeRange is a half-open candidate interval used by overlap queries.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// OverlapQuery selects classes booked on a room or instructor whose sessions
// intersect any of the candidate ranges. ExcludeClassID skips the caller's
// own series during updates.
type OverlapQuery struct {
	RoomID         string
	InstructorID   string
	Candidates     []TimeRange
	ExcludeClassID string
}

// OverlappingClass is an overlap query result with the entity display names
// denormalized for conflict reporting.
type OverlappingClass struct {
	Class
	InstructorName string
	RoomName       string
}

// ClassFilter narrows class listing queries.
type ClassFilter struct {
	InstructorID string
	RoomID       string
	StartsAfter  *time.Time
	EndsBefore   *time.Time
}
