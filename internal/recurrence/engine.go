package recurrence

import (
	"fmt"
	"log/slog"
	"time"
)

const (
	// MinSessionDuration is the shortest session a time slot may describe.
	MinSessionDuration = 30 * time.Minute
	// ScheduleLeadTime is the future buffer every generated session must clear.
	// Sessions starting earlier than now+ScheduleLeadTime are dropped silently.
	ScheduleLeadTime = 30 * time.Minute

	dateLayout = "2006-01-02"
	slotLayout = "15:04"
)

// Engine expands recurrence rules into concrete class sessions.
type Engine struct {
	location *time.Location
	logger   *slog.Logger
}

// NewEngine constructs an Engine that generates sessions in the provided
// civil timezone. If loc is nil, UTC is used.
func NewEngine(loc *time.Location, logger *slog.Logger) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{location: loc, logger: logger}
}

// Location returns the civil timezone the engine generates sessions in.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return time.UTC
	}
	return e.location
}

// Expand materializes the rule into an ordered sequence of sessions.
//
// Semantics:
//   - Every time slot must parse as "HH:mm", end strictly after start, and
//     describe at least MinSessionDuration.
//   - Recurring kinds (everything except SINGLE and CUSTOM with manual
//     dates) require a series end on or after the series start.
//   - Matching days emit one session per time slot, in day-then-slot order.
//   - A session survives only when its start is at least ScheduleLeadTime
//     after now; dropped sessions are not an error.
//   - An empty result is a hard error: an empty schedule is never a valid
//     outcome of a write request.
func (e *Engine) Expand(rule Rule, now time.Time) ([]Session, error) {
	loc := e.Location()

	slots, err := parseSlots(rule.TimeSlots)
	if err != nil {
		return nil, err
	}

	interval := rule.IntervalUnit
	if interval < 1 {
		interval = 1
	}

	start := dateOnly(rule.SeriesStart, loc)
	cutoff := now.Add(ScheduleLeadTime)

	var sessions []Session
	emit := func(day time.Time) error {
		for i, slot := range slots {
			s := Session{
				Start: combine(day, slot.startHour, slot.startMinute, loc),
				End:   combine(day, slot.endHour, slot.endMinute, loc),
			}
			// Re-check the realized interval: DST transitions can shrink a
			// slot below the minimum even though its civil times are valid.
			if !s.End.After(s.Start) || s.End.Sub(s.Start) < MinSessionDuration {
				return fmt.Errorf("%w: slot %d (%s-%s) lasts %s on %s",
					ErrInvalidTimeSlot, i+1, rule.TimeSlots[i].Start, rule.TimeSlots[i].End,
					s.End.Sub(s.Start), day.Format(dateLayout))
			}
			if s.Start.Before(cutoff) {
				continue
			}
			sessions = append(sessions, s)
		}
		return nil
	}

	switch rule.Kind {
	case KindSingle:
		if err := emit(start); err != nil {
			return nil, err
		}

	case KindCustom:
		if len(rule.ManualDates) > 0 {
			for _, raw := range rule.ManualDates {
				day, perr := time.ParseInLocation(dateLayout, raw, loc)
				if perr != nil {
					e.logger.Warn("skipping unparseable manual date", "date", raw, "error", perr)
					continue
				}
				if err := emit(day); err != nil {
					return nil, err
				}
			}
			break
		}
		// Pattern mode walks like WEEKLY; an empty weekday set matches every day.
		fallthrough

	case KindDaily, KindWeekly, KindMonthly:
		end, err := e.boundedSeriesEnd(rule, start, loc)
		if err != nil {
			return nil, err
		}
		weekdays := weekdaySet(rule.Weekdays)
		for day, offset := start, 0; !day.After(end); day, offset = day.AddDate(0, 0, 1), offset+1 {
			if !matchesDay(rule, day, start, offset, interval, weekdays, loc) {
				continue
			}
			if err := emit(day); err != nil {
				return nil, err
			}
		}

	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, rule.Kind)
	}

	if len(sessions) == 0 {
		return nil, ErrNoFutureSessions
	}
	return sessions, nil
}

func (e *Engine) boundedSeriesEnd(rule Rule, start time.Time, loc *time.Location) (time.Time, error) {
	if rule.SeriesEnd == nil {
		return time.Time{}, fmt.Errorf("%w: %s rules must define one", ErrMissingBoundary, rule.Kind)
	}
	end := dateOnly(*rule.SeriesEnd, loc)
	if end.Before(start) {
		return time.Time{}, fmt.Errorf("%w: %s ends before %s",
			ErrInvalidRange, end.Format(dateLayout), start.Format(dateLayout))
	}
	return end, nil
}

func matchesDay(rule Rule, day, start time.Time, daysSinceStart, interval int, weekdays map[time.Weekday]struct{}, loc *time.Location) bool {
	switch rule.Kind {
	case KindDaily:
		return daysSinceStart%interval == 0

	case KindWeekly, KindCustom:
		// Week offset comes from the calendar week difference between the day
		// and the series start, not from a weekday-aligned epoch.
		weeks := civilDaysBetween(startOfWeek(day, loc), startOfWeek(start, loc)) / 7
		if weeks%interval != 0 {
			return false
		}
		if len(weekdays) == 0 {
			// WEEKLY requires a weekday selection upstream; an empty set only
			// reaches here for CUSTOM pattern mode, where it matches every day.
			return rule.Kind == KindCustom
		}
		_, ok := weekdays[day.Weekday()]
		return ok

	case KindMonthly:
		if containsInt(rule.MonthDays, day.Day()) {
			return true
		}
		// Last-day fallback: a configured day beyond the month's true length
		// matches the month's final day (31 matches Feb 28/29). This also
		// makes [30] match February's last day; kept for fidelity with the
		// source behavior.
		last := lastDayOfMonth(day)
		if day.Day() != last {
			return false
		}
		for _, md := range rule.MonthDays {
			if md > last {
				return true
			}
		}
		return false

	default:
		return false
	}
}

type civilSlot struct {
	startHour   int
	startMinute int
	endHour     int
	endMinute   int
}

func parseSlots(slots []TimeSlot) ([]civilSlot, error) {
	if len(slots) == 0 {
		return nil, fmt.Errorf("%w: at least one time slot is required", ErrInvalidTimeSlot)
	}

	parsed := make([]civilSlot, 0, len(slots))
	for i, slot := range slots {
		start, err := time.Parse(slotLayout, slot.Start)
		if err != nil {
			return nil, fmt.Errorf("%w: slot %d start %q is not HH:mm", ErrInvalidTimeSlot, i+1, slot.Start)
		}
		end, err := time.Parse(slotLayout, slot.End)
		if err != nil {
			return nil, fmt.Errorf("%w: slot %d end %q is not HH:mm", ErrInvalidTimeSlot, i+1, slot.End)
		}

		duration := end.Sub(start)
		if duration <= 0 {
			return nil, fmt.Errorf("%w: slot %d (%s-%s) must end after it starts", ErrInvalidTimeSlot, i+1, slot.Start, slot.End)
		}
		if duration < MinSessionDuration {
			return nil, fmt.Errorf("%w: slot %d (%s-%s) lasts %s, minimum is %s",
				ErrInvalidTimeSlot, i+1, slot.Start, slot.End, duration, MinSessionDuration)
		}

		parsed = append(parsed, civilSlot{
			startHour:   start.Hour(),
			startMinute: start.Minute(),
			endHour:     end.Hour(),
			endMinute:   end.Minute(),
		})
	}
	return parsed, nil
}

func dateOnly(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func combine(day time.Time, hour, minute int, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, loc)
}

func startOfWeek(t time.Time, loc *time.Location) time.Time {
	day := dateOnly(t, loc)
	// Monday-start weeks. In Go, Monday == 1 and Sunday == 0.
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// civilDaysBetween counts calendar days from earlier to later, ignoring DST
// by re-anchoring both civil dates in UTC.
func civilDaysBetween(later, earlier time.Time) int {
	ly, lm, ld := later.Date()
	ey, em, ed := earlier.Date()
	l := time.Date(ly, lm, ld, 0, 0, 0, 0, time.UTC)
	e := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return int(l.Sub(e) / (24 * time.Hour))
}

func lastDayOfMonth(t time.Time) int {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func containsInt(values []int, target int) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func weekdaySet(days []time.Weekday) map[time.Weekday]struct{} {
	set := make(map[time.Weekday]struct{}, len(days))
	for _, d := range days {
		set[d] = struct{}{}
	}
	return set
}
