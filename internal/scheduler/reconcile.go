package scheduler

import "time"

// ExceptionStatus classifies a recorded manual override.
type ExceptionStatus string

const (
	// ExceptionModified marks an occurrence whose times were edited by hand.
	ExceptionModified ExceptionStatus = "modified"
	// ExceptionCancelled marks an occurrence removed from the series.
	ExceptionCancelled ExceptionStatus = "cancelled"
)

// Exception records a manual override anchored to the original start of a
// generated occurrence. Exceptions accumulate on a series and are re-applied
// every time the rule is re-expanded, so manual edits survive bulk updates.
type Exception struct {
	Anchor   time.Time
	Status   ExceptionStatus
	Reason   string
	NewStart *time.Time
	NewEnd   *time.Time
}

// ApplyExceptions reconciles freshly expanded sessions with a series'
// accumulated exceptions. MODIFIED substitutions are applied first, keyed on
// each session's original start; CANCELLED filtering runs afterwards against
// the same original start, so a cancelled anchor can never be resurrected by
// a modification sharing it.
func ApplyExceptions(sessions []Session, exceptions []Exception) []Session {
	if len(sessions) == 0 || len(exceptions) == 0 {
		out := make([]Session, len(sessions))
		copy(out, sessions)
		return out
	}

	modified := make(map[int64]Exception)
	cancelled := make(map[int64]struct{})
	for _, exc := range exceptions {
		key := exc.Anchor.UnixNano()
		switch exc.Status {
		case ExceptionModified:
			if exc.NewStart != nil && exc.NewEnd != nil {
				modified[key] = exc
			}
		case ExceptionCancelled:
			cancelled[key] = struct{}{}
		}
	}

	out := make([]Session, 0, len(sessions))
	for _, session := range sessions {
		anchor := session.Start.UnixNano()
		if _, gone := cancelled[anchor]; gone {
			continue
		}
		if exc, ok := modified[anchor]; ok {
			session.Start = *exc.NewStart
			session.End = *exc.NewEnd
		}
		out = append(out, session)
	}
	return out
}
