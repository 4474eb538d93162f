package liveness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInterval(t *testing.T) {
	require.Equal(t, 24*time.Hour, Interval(1))
	require.Equal(t, 7*24*time.Hour, Interval(7))
	require.Equal(t, 30*24*time.Hour, Interval(30))

	// Defensive fallback; the API layer rejects these before they get here.
	require.Equal(t, 24*time.Hour, Interval(0))
	require.Equal(t, 24*time.Hour, Interval(-3))
}

func TestGrace(t *testing.T) {
	require.Equal(t, 48*time.Hour, Grace(Interval(1)))
	require.Equal(t, 10*24*time.Hour, Grace(Interval(5)))
}

func TestEvaluateNeverCheckedIn(t *testing.T) {
	ev := Evaluate(time.Now(), nil, 1)
	require.Equal(t, StatusOverdue, ev.Status)
	require.False(t, ev.HasBaseline)
	require.Zero(t, ev.OverdueBy)
}

func TestEvaluateBoundaryInclusive(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for cadence := MinFrequencyDays; cadence <= MaxFrequencyDays; cadence++ {
		grace := Grace(Interval(cadence))

		last := now.Add(-grace)
		ev := Evaluate(now, &last, cadence)
		require.Equal(t, StatusOnTime, ev.Status, "elapsed == grace must be on time (cadence %d)", cadence)

		last = now.Add(-grace - time.Second)
		ev = Evaluate(now, &last, cadence)
		require.Equal(t, StatusOverdue, ev.Status, "cadence %d", cadence)
		require.Equal(t, time.Second, ev.OverdueBy)
		require.True(t, ev.HasBaseline)
	}
}

// Cadence 1 day, last check-in 3 days ago: overdue by 1 day (elapsed
// minus the 2-day grace), and severity is graded on that 1 day, not on
// the 3 days elapsed.
func TestEvaluateOverdueByNotElapsed(t *testing.T) {
	now := time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC)
	last := now.Add(-3 * 24 * time.Hour)

	ev := Evaluate(now, &last, 1)
	require.Equal(t, StatusOverdue, ev.Status)
	require.Equal(t, 24*time.Hour, ev.OverdueBy)
	require.Equal(t, SeverityStandard, ClassifySeverity(ev.OverdueBy))
}

func TestClassifySeverity(t *testing.T) {
	tests := []struct {
		overdueBy time.Duration
		want      Severity
	}{
		{0, SeverityStandard},
		{time.Hour, SeverityStandard},
		{24 * time.Hour, SeverityStandard},
		{24*time.Hour + time.Minute, SeverityElevated},
		{48 * time.Hour, SeverityElevated},
		{48*time.Hour + time.Minute, SeverityCritical},
		{200 * time.Hour, SeverityCritical},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ClassifySeverity(tt.overdueBy), "overdueBy=%s", tt.overdueBy)
	}
}

func TestNextStreak(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	t.Run("first check-in starts at one", func(t *testing.T) {
		require.Equal(t, 1, NextStreak(now, nil, 1, 0))
	})

	t.Run("within grace increments", func(t *testing.T) {
		last := now.Add(-20 * time.Hour)
		require.Equal(t, 6, NextStreak(now, &last, 1, 5))
	})

	t.Run("boundary still increments", func(t *testing.T) {
		last := now.Add(-Grace(Interval(2)))
		require.Equal(t, 4, NextStreak(now, &last, 2, 3))
	})

	t.Run("past grace resets to one", func(t *testing.T) {
		last := now.Add(-Grace(Interval(1)) - time.Minute)
		require.Equal(t, 1, NextStreak(now, &last, 1, 9))
	})

	t.Run("consecutive on-time check-ins grow by one", func(t *testing.T) {
		streak := 0
		var last *time.Time
		at := now
		for i := 0; i < 5; i++ {
			streak = NextStreak(at, last, 1, streak)
			require.Equal(t, i+1, streak)
			checkedIn := at
			last = &checkedIn
			at = at.Add(24 * time.Hour)
		}
	})
}

func TestFormatDuration(t *testing.T) {
	require.Equal(t, "3 days", FormatDuration(3*24*time.Hour))
	require.Equal(t, "1 day", FormatDuration(25*time.Hour))
	require.Equal(t, "5 hours", FormatDuration(5*time.Hour+30*time.Minute))
	require.Equal(t, "1 hour", FormatDuration(time.Hour))
	require.Equal(t, "12 minutes", FormatDuration(12*time.Minute))
	require.Equal(t, "45 seconds", FormatDuration(45*time.Second))
	require.Equal(t, "0 seconds", FormatDuration(-time.Minute))
}
