package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/stillalive/api/models"
)

type RegistrySuite struct {
	suite.Suite
	store *MemoryStore
	reg   *Registry
	now   time.Time
	ctx   context.Context
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.store = NewMemoryStore()
	s.now = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	s.reg = New(s.store).WithClock(func() time.Time { return s.now })
	s.ctx = context.Background()

	s.store.PutUser(models.User{ID: 1, DeviceID: "dev-1", DisplayName: "Ana", Code: "AAAAAA", CheckInFrequency: 1})
	s.store.PutUser(models.User{ID: 2, DeviceID: "dev-2", DisplayName: "Ben", Code: "BBBBBB", CheckInFrequency: 2})
	s.store.PutUser(models.User{ID: 3, DeviceID: "dev-3", DisplayName: "Cho", Code: "CCCCCC", CheckInFrequency: 1})
}

// count-matches-rows is the core invariant of this package.
func (s *RegistrySuite) assertConserved(ids ...uint) {
	for _, id := range ids {
		s.Require().Equal(s.store.LiveWatchesTargeting(id), s.store.WatchersCount(id),
			"watchers_count must equal live rows for user %d", id)
		s.Require().GreaterOrEqual(s.store.WatchersCount(id), 0)
	}
}

func (s *RegistrySuite) TestAddWatch() {
	s.Run("creates row and increments counter", func() {
		w, err := s.reg.AddWatch(s.ctx, 1, "bbbbbb", "")
		s.Require().NoError(err)
		s.Equal(uint(2), w.TargetID)
		s.Equal("BBBBBB", w.TargetCode)
		s.Equal("Ben", w.CustomName, "defaults to target display name")
		s.Equal(s.now, w.AddedAt)
		s.Equal(1, s.store.WatchersCount(2))
		s.assertConserved(1, 2, 3)
	})

	s.Run("custom name wins over display name", func() {
		w, err := s.reg.AddWatch(s.ctx, 1, "CCCCCC", "  Grandpa  ")
		s.Require().NoError(err)
		s.Equal("Grandpa", w.CustomName)
	})

	s.Run("unknown code", func() {
		_, err := s.reg.AddWatch(s.ctx, 1, "ZZZZZZ", "")
		s.ErrorIs(err, ErrCodeNotFound)
	})

	s.Run("own code is rejected", func() {
		_, err := s.reg.AddWatch(s.ctx, 1, "AAAAAA", "")
		s.ErrorIs(err, ErrSelfWatch)
		s.Equal(0, s.store.WatchersCount(1))
	})

	s.Run("duplicate pair conflicts without touching the counter", func() {
		before := s.store.WatchersCount(2)
		_, err := s.reg.AddWatch(s.ctx, 1, "BBBBBB", "")
		s.ErrorIs(err, ErrConflict)
		s.Equal(before, s.store.WatchersCount(2))
		s.assertConserved(2)
	})

	s.Run("two watchers on one target", func() {
		_, err := s.reg.AddWatch(s.ctx, 3, "BBBBBB", "")
		s.Require().NoError(err)
		s.Equal(2, s.store.WatchersCount(2))
		s.assertConserved(2)
	})
}

func (s *RegistrySuite) TestRemoveWatch() {
	w, err := s.reg.AddWatch(s.ctx, 1, "BBBBBB", "")
	s.Require().NoError(err)

	s.Run("non-owner is forbidden and nothing changes", func() {
		err := s.reg.RemoveWatch(s.ctx, w.ID, 3)
		s.ErrorIs(err, ErrForbidden)
		s.Equal(1, s.store.WatchersCount(2))
		s.assertConserved(2)
	})

	s.Run("owner removes and counter decrements", func() {
		err := s.reg.RemoveWatch(s.ctx, w.ID, 1)
		s.Require().NoError(err)
		s.Equal(0, s.store.WatchersCount(2))
		s.assertConserved(2)
	})

	s.Run("missing watch", func() {
		err := s.reg.RemoveWatch(s.ctx, w.ID, 1)
		s.ErrorIs(err, ErrNotFound)
	})
}

// blindStore hides existing pairs from the pre-check, standing in for a
// second AddWatch landing between the duplicate check and the insert.
type blindStore struct {
	*MemoryStore
}

func (b *blindStore) FindWatch(ctx context.Context, watcherID, targetID uint) (*models.Watch, error) {
	return nil, ErrNotFound
}

func (s *RegistrySuite) TestRacingAddWatchLoserGetsConflict() {
	_, err := s.reg.AddWatch(s.ctx, 1, "BBBBBB", "")
	s.Require().NoError(err)

	blind := New(&blindStore{s.store}).WithClock(func() time.Time { return s.now })
	_, err = blind.AddWatch(s.ctx, 1, "BBBBBB", "")
	s.ErrorIs(err, ErrConflict, "unique pair index surfaces as a conflict, not an internal error")

	s.Equal(1, s.store.WatchersCount(2), "loser's transaction must not touch the counter")
	s.assertConserved(2)
}

func (s *RegistrySuite) TestDecrementFloorsAtZero() {
	w, err := s.reg.AddWatch(s.ctx, 1, "BBBBBB", "")
	s.Require().NoError(err)

	// Simulate counter drift from an out-of-band write.
	s.Require().NoError(s.store.SetWatchersCount(s.ctx, 2, 0))

	s.Require().NoError(s.reg.RemoveWatch(s.ctx, w.ID, 1))
	s.Equal(0, s.store.WatchersCount(2), "never negative")
}

func (s *RegistrySuite) TestRemoveAllForUser() {
	// 1 watches 2 and 3; 3 watches 1 and 2.
	_, err := s.reg.AddWatch(s.ctx, 1, "BBBBBB", "")
	s.Require().NoError(err)
	_, err = s.reg.AddWatch(s.ctx, 1, "CCCCCC", "")
	s.Require().NoError(err)
	_, err = s.reg.AddWatch(s.ctx, 3, "AAAAAA", "")
	s.Require().NoError(err)
	_, err = s.reg.AddWatch(s.ctx, 3, "BBBBBB", "")
	s.Require().NoError(err)
	s.assertConserved(1, 2, 3)

	// Account 1 goes away: its outgoing watches decrement targets, its
	// incoming watch rows disappear.
	s.Require().NoError(s.reg.RemoveAllForUser(s.ctx, 1))

	s.Equal(1, s.store.WatchersCount(2), "only 3's watch remains")
	s.Equal(0, s.store.WatchersCount(3))
	s.Equal(0, s.store.LiveWatchesTargeting(1))

	remaining, err := s.store.ListByWatcher(s.ctx, 1)
	s.Require().NoError(err)
	s.Empty(remaining)
	s.assertConserved(2, 3)
}

func (s *RegistrySuite) TestConservationUnderMixedSequence() {
	ops := []func(){
		func() { _, _ = s.reg.AddWatch(s.ctx, 1, "BBBBBB", "") },
		func() { _, _ = s.reg.AddWatch(s.ctx, 3, "BBBBBB", "") },
		func() { _, _ = s.reg.AddWatch(s.ctx, 1, "BBBBBB", "") }, // conflict
		func() {
			if w, err := s.store.FindWatch(s.ctx, 1, 2); err == nil {
				_ = s.reg.RemoveWatch(s.ctx, w.ID, 1)
			}
		},
		func() { _, _ = s.reg.AddWatch(s.ctx, 1, "BBBBBB", "") },
		func() { _ = s.reg.RemoveAllForUser(s.ctx, 3) },
		func() { _, _ = s.reg.AddWatch(s.ctx, 2, "AAAAAA", "") },
	}
	for _, op := range ops {
		op()
		s.assertConserved(1, 2, 3)
	}
}

func (s *RegistrySuite) TestListWatching() {
	aliveAt := s.now.Add(-20 * time.Hour) // within 1-day interval
	missedAt := s.now.Add(-30 * time.Hour)
	s.store.PutUser(models.User{ID: 1, DeviceID: "dev-1", DisplayName: "Ana", Code: "AAAAAA", CheckInFrequency: 1, LastCheckIn: &aliveAt, Streak: 4, TotalCheckIns: 20})
	s.store.PutUser(models.User{ID: 2, DeviceID: "dev-2", DisplayName: "Ben", Code: "BBBBBB", CheckInFrequency: 1, LastCheckIn: &missedAt})
	// user 3 never checked in

	_, err := s.reg.AddWatch(s.ctx, 9, "AAAAAA", "")
	s.Require().NoError(err)
	_, err = s.reg.AddWatch(s.ctx, 9, "BBBBBB", "")
	s.Require().NoError(err)
	_, err = s.reg.AddWatch(s.ctx, 9, "CCCCCC", "")
	s.Require().NoError(err)

	views, err := s.reg.ListWatching(s.ctx, 9)
	s.Require().NoError(err)
	s.Require().Len(views, 3)

	byCode := map[string]WatchView{}
	for _, v := range views {
		byCode[v.Code] = v
	}

	s.Equal("alive", byCode["AAAAAA"].Status)
	s.Equal(int64(20*60*60), byCode["AAAAAA"].TimeSinceSeconds)
	s.Equal(4, byCode["AAAAAA"].Target.Streak)

	s.Equal("missed", byCode["BBBBBB"].Status, "past the interval even though not yet past grace")

	s.Equal("missed", byCode["CCCCCC"].Status, "never checked in")
	s.Nil(byCode["CCCCCC"].LastCheckIn)
}

func (s *RegistrySuite) TestListWatchingSkipsDeletedTargets() {
	_, err := s.reg.AddWatch(s.ctx, 9, "AAAAAA", "")
	s.Require().NoError(err)

	// Target row vanished but the watch row has not been collected yet.
	delete(s.store.data.users, 1)

	views, err := s.reg.ListWatching(s.ctx, 9)
	s.Require().NoError(err)
	s.Empty(views)
}
