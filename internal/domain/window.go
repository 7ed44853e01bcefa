package domain

import (
	"fmt"
	"strings"
	"time"
)

// Phase is the competition-wide temporal state, independent of any participant.
type Phase string

const (
	PhaseUpcoming  Phase = "upcoming"
	PhaseEnterable Phase = "enterable"
	PhaseLocked    Phase = "locked"
	PhaseEnded     Phase = "ended"
)

// Window holds the configuration-derived competition boundaries.
// It is built once at process start and never mutated; derived instants are
// computed on every call.
type Window struct {
	Start            time.Time
	EntranceDuration time.Duration
	Length           time.Duration
}

// Validate rejects windows that cannot describe a competition.
func (w Window) Validate() error {
	if w.Start.IsZero() {
		return fmt.Errorf("%w: start time is required", ErrInvalidWindow)
	}
	if w.EntranceDuration <= 0 {
		return fmt.Errorf("%w: entrance duration must be positive", ErrInvalidWindow)
	}
	if w.Length <= 0 {
		return fmt.Errorf("%w: length must be positive", ErrInvalidWindow)
	}
	if w.EntranceDuration > w.Length {
		return fmt.Errorf("%w: entrance deadline %s is after absolute end %s",
			ErrInvalidWindow, w.EntranceDeadline().Format(time.RFC3339), w.AbsoluteEnd().Format(time.RFC3339))
	}
	return nil
}

// EntranceDeadline is the first instant at which new joins are rejected.
func (w Window) EntranceDeadline() time.Time {
	return w.Start.Add(w.EntranceDuration)
}

// AbsoluteEnd is the first instant at which the whole competition is over.
func (w Window) AbsoluteEnd() time.Time {
	return w.Start.Add(w.Length)
}

// PhaseAt reports the window phase at now.
func (w Window) PhaseAt(now time.Time) Phase {
	switch {
	case now.Before(w.Start):
		return PhaseUpcoming
	case now.Before(w.EntranceDeadline()):
		return PhaseEnterable
	case now.Before(w.AbsoluteEnd()):
		return PhaseLocked
	default:
		return PhaseEnded
	}
}

// UserEndTime is the effective deadline of a participant who joined at startedAt:
// their allotted length, cut short by the absolute end of the window.
func (w Window) UserEndTime(startedAt time.Time) time.Time {
	end := startedAt.Add(w.Length)
	if abs := w.AbsoluteEnd(); abs.Before(end) {
		return abs
	}
	return end
}

// RemainingSeconds is the whole number of seconds left before the participant's
// effective deadline. It is 0 from the deadline onwards and never negative.
func (w Window) RemainingSeconds(startedAt, now time.Time) int64 {
	left := w.UserEndTime(startedAt).Sub(now)
	if left <= 0 {
		return 0
	}
	return int64(left / time.Second)
}

// FormatSeconds renders a duration such as 9015 as "2h 30m 15s".
func FormatSeconds(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	var b strings.Builder
	if hours > 0 {
		fmt.Fprintf(&b, "%dh ", hours)
	}
	if minutes > 0 || hours > 0 {
		fmt.Fprintf(&b, "%dm ", minutes)
	}
	fmt.Fprintf(&b, "%ds", secs)
	return b.String()
}
