package checkin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/stillalive/api/models"
)

type RecorderSuite struct {
	suite.Suite
	store *MemoryStore
	rec   *Recorder
	now   time.Time
	ctx   context.Context
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}

func (s *RecorderSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.now = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	s.rec = New(s.store).WithClock(func() time.Time { return s.now })
	s.ctx = context.Background()

	s.store.PutUser(models.User{ID: 1, DeviceID: "dev-1", DisplayName: "Ana", CheckInFrequency: 1})
}

func (s *RecorderSuite) TestFirstCheckIn() {
	res, err := s.rec.Record(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(1, res.Streak)
	s.Equal(1, res.TotalCheckIns)
	s.Equal(s.now, res.CheckedInAt)

	user := s.store.User(1)
	s.Equal(1, user.Streak)
	s.Equal(1, user.TotalCheckIns)
	s.Require().NotNil(user.LastCheckIn)
	s.Equal(s.now, *user.LastCheckIn)

	events := s.store.Events()
	s.Require().Len(events, 1)
	s.Equal(uint(1), events[0].UserID)
	s.Equal(s.now, events[0].CheckedInAt)
	s.Equal(1, events[0].Streak)
	s.Equal(1, events[0].TotalCheckIns)
}

func (s *RecorderSuite) TestTotalIncrementsByOneRegardlessOfStreak() {
	// First check-in, then one within the grace window (streak grows),
	// then one far past it (streak resets). The total marches up by
	// exactly one every time.
	res, err := s.rec.Record(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(1, res.Streak)
	s.Equal(1, res.TotalCheckIns)

	s.now = s.now.Add(30 * time.Hour) // within 2x the 1-day cadence
	res, err = s.rec.Record(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(2, res.Streak)
	s.Equal(2, res.TotalCheckIns)

	s.now = s.now.Add(10 * 24 * time.Hour)
	res, err = s.rec.Record(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(1, res.Streak, "streak resets after a long lapse")
	s.Equal(3, res.TotalCheckIns, "total keeps counting through the reset")

	events := s.store.Events()
	s.Require().Len(events, 3)
	for i, ev := range events {
		s.Equal(i+1, ev.TotalCheckIns)
	}
}

func (s *RecorderSuite) TestMissingUser() {
	_, err := s.rec.Record(s.ctx, 99)
	s.ErrorIs(err, ErrNotFound)
	s.Empty(s.store.Events())
}

func (s *RecorderSuite) TestEventAppendFailureRollsBackUserUpdate() {
	_, err := s.rec.Record(s.ctx, 1)
	s.Require().NoError(err)
	before := s.store.User(1)

	s.now = s.now.Add(30 * time.Hour)
	s.store.FailNextAppend(errors.New("insert failed"))

	_, err = s.rec.Record(s.ctx, 1)
	s.Require().Error(err)

	after := s.store.User(1)
	s.Equal(before.Streak, after.Streak)
	s.Equal(before.TotalCheckIns, after.TotalCheckIns)
	s.Equal(*before.LastCheckIn, *after.LastCheckIn)
	s.Len(s.store.Events(), 1, "no event row from the failed attempt")

	// The failure was consumed; the next attempt goes through.
	res, err := s.rec.Record(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(2, res.TotalCheckIns)
	s.Len(s.store.Events(), 2)
}
