// Package liveness holds the timing policy for check-ins: cadence to
// interval mapping, the grace window, overdue evaluation, streak rules
// and alert severity. Every component that reasons about time goes
// through this package so only one definition of "a day" exists.
package liveness

import (
	"fmt"
	"time"
)

// Status reports whether a subject is currently on time.
type Status string

const (
	StatusOnTime  Status = "on_time"
	StatusOverdue Status = "overdue"
)

// Severity classifies how far past the grace window a subject is.
// Informational only; it never decides whether an alert fires.
type Severity string

const (
	SeverityStandard Severity = "standard"
	SeverityElevated Severity = "elevated"
	SeverityCritical Severity = "critical"
)

// MinFrequencyDays and MaxFrequencyDays bound the configurable cadence.
const (
	MinFrequencyDays = 1
	MaxFrequencyDays = 30
)

// Interval maps a cadence in days to a duration. Cadence is validated
// at the API boundary; non-positive values fall back to one day.
func Interval(cadenceDays int) time.Duration {
	if cadenceDays < 1 {
		cadenceDays = 1
	}
	return time.Duration(cadenceDays) * 24 * time.Hour
}

// Grace returns the tolerance window for an interval. A subject is not
// considered overdue (and a streak is not broken) until twice the
// cadence has elapsed since the last check-in.
func Grace(interval time.Duration) time.Duration {
	return 2 * interval
}

// Evaluation is the result of judging a subject at a point in time.
type Evaluation struct {
	Status Status
	// OverdueBy is elapsed time beyond the grace window. Zero unless
	// Status is StatusOverdue and a baseline exists.
	OverdueBy time.Duration
	// HasBaseline is false when the subject has never checked in; such
	// subjects are overdue but there is no episode to measure from.
	HasBaseline bool
}

// Evaluate judges a subject given the current time, their last check-in
// (nil when they never checked in) and their cadence. The grace
// boundary is inclusive: elapsed == Grace(interval) is still on time.
func Evaluate(now time.Time, lastCheckIn *time.Time, cadenceDays int) Evaluation {
	if lastCheckIn == nil {
		return Evaluation{Status: StatusOverdue}
	}
	grace := Grace(Interval(cadenceDays))
	elapsed := now.Sub(*lastCheckIn)
	if elapsed <= grace {
		return Evaluation{Status: StatusOnTime, HasBaseline: true}
	}
	return Evaluation{
		Status:      StatusOverdue,
		OverdueBy:   elapsed - grace,
		HasBaseline: true,
	}
}

// ClassifySeverity grades an overdue-by duration, not elapsed time
// since check-in.
func ClassifySeverity(overdueBy time.Duration) Severity {
	switch {
	case overdueBy > 48*time.Hour:
		return SeverityCritical
	case overdueBy > 24*time.Hour:
		return SeverityElevated
	default:
		return SeverityStandard
	}
}

// NextStreak computes the streak after a check-in at now. The streak
// survives as long as check-ins land within the same grace window used
// for overdue detection, so "still within streak" and "not yet overdue"
// cannot drift apart.
func NextStreak(now time.Time, lastCheckIn *time.Time, cadenceDays int, current int) int {
	if lastCheckIn == nil {
		return 1
	}
	if now.Sub(*lastCheckIn) <= Grace(Interval(cadenceDays)) {
		return current + 1
	}
	return 1
}

// FormatDuration renders a duration in the largest sensible unit, e.g.
// "3 days", "5 hours", "12 minutes".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d >= 24*time.Hour:
		return plural(int(d.Hours())/24, "day")
	case d >= time.Hour:
		return plural(int(d.Hours()), "hour")
	case d >= time.Minute:
		return plural(int(d.Minutes()), "minute")
	default:
		return plural(int(d.Seconds()), "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
