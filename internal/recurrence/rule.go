package recurrence

import (
	"errors"
	"time"
)

// Kind identifies the supported recurrence rule variants.
type Kind int

const (
	// KindUnspecified indicates the rule kind is not set.
	KindUnspecified Kind = iota
	// KindSingle generates sessions for the series start date only.
	KindSingle
	// KindDaily generates sessions every IntervalUnit days.
	KindDaily
	// KindWeekly generates sessions on the selected weekdays every IntervalUnit weeks.
	KindWeekly
	// KindMonthly generates sessions on the selected days of each month.
	KindMonthly
	// KindCustom generates sessions from explicit dates, or falls back to a
	// weekly-style walk when no manual dates are listed.
	KindCustom
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindDaily:
		return "daily"
	case KindWeekly:
		return "weekly"
	case KindMonthly:
		return "monthly"
	case KindCustom:
		return "custom"
	default:
		return "unspecified"
	}
}

// ParseKind maps a wire name onto a Kind.
func ParseKind(value string) (Kind, bool) {
	switch value {
	case "single":
		return KindSingle, true
	case "daily":
		return KindDaily, true
	case "weekly":
		return KindWeekly, true
	case "monthly":
		return KindMonthly, true
	case "custom":
		return KindCustom, true
	default:
		return KindUnspecified, false
	}
}

// TimeSlot is a civil start/end time pair in "HH:mm" form.
type TimeSlot struct {
	Start string
	End   string
}

// Rule describes a recurrence configuration for a class series.
//
// The rule is validated once at the request boundary; the engine dispatches
// on Kind and reads only the fields that variant uses.
type Rule struct {
	Kind         Kind
	SeriesStart  time.Time
	SeriesEnd    *time.Time
	IntervalUnit int
	Weekdays     []time.Weekday
	MonthDays    []int
	ManualDates  []string
	TimeSlots    []TimeSlot
}

// Session is one concrete start/end interval produced by expansion.
// Identifiers are assigned at persistence, never by the engine.
type Session struct {
	Start time.Time
	End   time.Time
}

var (
	// ErrInvalidTimeSlot indicates a slot is malformed or shorter than the minimum duration.
	ErrInvalidTimeSlot = errors.New("recurrence: invalid time slot")
	// ErrMissingBoundary indicates a recurring rule lacks a series end date.
	ErrMissingBoundary = errors.New("recurrence: series end date is required")
	// ErrInvalidRange indicates the series end date precedes the series start date.
	ErrInvalidRange = errors.New("recurrence: series end must not precede series start")
	// ErrNoFutureSessions indicates expansion produced no viable sessions.
	ErrNoFutureSessions = errors.New("recurrence: no future sessions")
	// ErrInvalidKind indicates the rule kind is not supported.
	ErrInvalidKind = errors.New("recurrence: invalid rule kind")
)
