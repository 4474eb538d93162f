package sweep

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/stillalive/api/models"
)

type fakeStore struct {
	mu         sync.Mutex
	candidates []Candidate
	ledger     map[string]models.MissedAlert

	monitoredErr   error
	alertExistsErr error
	saveErr        error
	saveCalls      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{ledger: map[string]models.MissedAlert{}}
}

func (f *fakeStore) MonitoredUsers(ctx context.Context) ([]Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.monitoredErr != nil {
		return nil, f.monitoredErr
	}
	out := make([]Candidate, len(f.candidates))
	copy(out, f.candidates)
	return out, nil
}

func (f *fakeStore) AlertExists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.alertExistsErr != nil {
		return false, f.alertExistsErr
	}
	_, ok := f.ledger[key]
	return ok, nil
}

func (f *fakeStore) SaveAlerts(ctx context.Context, alerts []models.MissedAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saveCalls++
	for _, a := range alerts {
		if _, ok := f.ledger[a.AlertKey]; ok {
			continue
		}
		f.ledger[a.AlertKey] = a
	}
	return nil
}

func (f *fakeStore) ledgerSize() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ledger)
}

type fakeMailer struct {
	mu      sync.Mutex
	sends   []string
	failFor map[string]bool
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{failFor: map[string]bool{}}
}

func (f *fakeMailer) SendMissedCheckIn(ctx context.Context, to string, user models.User, overdueBy time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[to] {
		return errors.New("smtp unavailable")
	}
	f.sends = append(f.sends, to)
	return nil
}

func (f *fakeMailer) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

type SweeperSuite struct {
	suite.Suite
	store  *fakeStore
	mailer *fakeMailer
	sw     *Sweeper
	now    time.Time
	ctx    context.Context
}

func TestSweeperSuite(t *testing.T) {
	suite.Run(t, new(SweeperSuite))
}

func (s *SweeperSuite) SetupTest() {
	s.store = newFakeStore()
	s.mailer = newFakeMailer()
	s.now = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	s.sw = New(s.store, s.mailer, zap.NewNop().Sugar()).WithClock(func() time.Time { return s.now })
	s.ctx = context.Background()
}

func (s *SweeperSuite) candidate(id uint, name string, lastCheckIn time.Time, cadence int, emails ...string) Candidate {
	squad := make([]models.SquadMember, 0, len(emails))
	for _, e := range emails {
		squad = append(squad, models.SquadMember{UserID: id, Email: e})
	}
	return Candidate{
		User: models.User{
			ID:               id,
			DisplayName:      name,
			LastCheckIn:      &lastCheckIn,
			CheckInFrequency: cadence,
		},
		Squad: squad,
	}
}

func (s *SweeperSuite) TestOnTimeSubjectNotAlerted() {
	// Exactly at the grace boundary: still on time.
	s.store.candidates = []Candidate{
		s.candidate(1, "Ana", s.now.Add(-48*time.Hour), 1, "a@example.com"),
	}

	sum, err := s.sw.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, sum.Scanned)
	s.Equal(0, sum.Missed)
	s.Equal(0, s.store.ledgerSize())
	s.Equal(0, s.mailer.total())
}

func (s *SweeperSuite) TestOverdueSubjectAlertedOnce() {
	s.store.candidates = []Candidate{
		s.candidate(1, "Ana", s.now.Add(-72*time.Hour), 1, "a@example.com", "b@example.com"),
	}

	sum, err := s.sw.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, sum.Missed)
	s.Equal(2, sum.EmailsSent)
	s.Equal(0, sum.EmailsFailed)
	s.Equal(1, s.store.ledgerSize())

	entry := s.store.ledger[AlertKey(1, s.now.Add(-72*time.Hour))]
	s.Equal("Ana", entry.UserName)
	s.Equal("a@example.com,b@example.com", entry.NotifiedEmails)
	// 72h elapsed minus 48h grace.
	s.Equal(int64(24*60*60), entry.OverdueSeconds)
	s.Equal(1, entry.CheckInFrequency)
}

func (s *SweeperSuite) TestRepeatedSweepsAreIdempotent() {
	s.store.candidates = []Candidate{
		s.candidate(1, "Ana", s.now.Add(-5*24*time.Hour), 1, "a@example.com", "b@example.com", "c@example.com"),
	}

	for i := 0; i < 4; i++ {
		_, err := s.sw.RunOnce(s.ctx)
		s.Require().NoError(err)
	}

	s.Equal(1, s.store.ledgerSize(), "one ledger entry across all runs")
	s.Equal(3, s.mailer.total(), "one notification batch across all runs")

	sum, err := s.sw.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, sum.Missed)
	s.Equal(1, sum.AlreadyAlerted)
}

func (s *SweeperSuite) TestRecoveryThenRelapseProducesNewEpisode() {
	firstBaseline := s.now.Add(-4 * 24 * time.Hour)
	s.store.candidates = []Candidate{
		s.candidate(1, "Ana", firstBaseline, 1, "a@example.com"),
	}

	_, err := s.sw.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, s.store.ledgerSize())

	// Ana checks in, then lapses again: same subject, new baseline.
	secondBaseline := s.now.Add(-3 * 24 * time.Hour)
	s.store.candidates = []Candidate{
		s.candidate(1, "Ana", secondBaseline, 1, "a@example.com"),
	}

	sum, err := s.sw.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, sum.Missed)
	s.Equal(2, s.store.ledgerSize(), "distinct episode keys")
	s.Equal(2, s.mailer.total())
	s.NotEqual(AlertKey(1, firstBaseline), AlertKey(1, secondBaseline))
}

func (s *SweeperSuite) TestPartialMailFailureDoesNotBlockOthers() {
	s.store.candidates = []Candidate{
		s.candidate(1, "Ana", s.now.Add(-72*time.Hour), 1, "one@example.com", "two@example.com", "three@example.com"),
	}
	s.mailer.failFor["two@example.com"] = true

	sum, err := s.sw.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, sum.EmailsSent)
	s.Equal(1, sum.EmailsFailed)
	s.ElementsMatch([]string{"one@example.com", "three@example.com"}, s.mailer.sends)
	// The ledger row still lands; delivery is best-effort.
	s.Equal(1, s.store.ledgerSize())
}

func (s *SweeperSuite) TestSkipsSubjectsWithoutSquadOrBaseline() {
	noSquad := s.candidate(1, "Ana", s.now.Add(-72*time.Hour), 1)
	noBaseline := s.candidate(2, "Ben", s.now, 1, "b@example.com")
	noBaseline.User.LastCheckIn = nil
	s.store.candidates = []Candidate{noSquad, noBaseline}

	sum, err := s.sw.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, sum.Missed)
	s.Equal(0, s.store.ledgerSize())
	s.Equal(0, s.mailer.total())
}

func (s *SweeperSuite) TestLedgerCheckFailureSkipsSubjectOnly() {
	s.store.candidates = []Candidate{
		s.candidate(1, "Ana", s.now.Add(-72*time.Hour), 1, "a@example.com"),
	}
	s.store.alertExistsErr = errors.New("store timeout")

	sum, err := s.sw.RunOnce(s.ctx)
	s.Require().NoError(err, "transient store failure must not fail the sweep")
	s.Equal(0, sum.Missed)
	s.Equal(0, s.mailer.total())

	// Next tick the store recovered; the subject is picked up.
	s.store.mu.Lock()
	s.store.alertExistsErr = nil
	s.store.mu.Unlock()
	sum, err = s.sw.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, sum.Missed)
}

func (s *SweeperSuite) TestMonitoredUsersFailureReturnsError() {
	s.store.monitoredErr = errors.New("connection refused")
	_, err := s.sw.RunOnce(s.ctx)
	s.Error(err)
}

func (s *SweeperSuite) TestOverlappingRunRejected() {
	s.sw.running.Store(true)
	_, err := s.sw.RunOnce(s.ctx)
	s.ErrorIs(err, ErrSweepRunning)

	s.sw.running.Store(false)
	_, err = s.sw.RunOnce(s.ctx)
	s.NoError(err)
}

func (s *SweeperSuite) TestMixedPopulationSingleSweep() {
	s.store.candidates = []Candidate{
		s.candidate(1, "Ana", s.now.Add(-72*time.Hour), 1, "a@example.com"),
		s.candidate(2, "Ben", s.now.Add(-12*time.Hour), 1, "b@example.com"),
		s.candidate(3, "Cho", s.now.Add(-15*24*time.Hour), 3, "c1@example.com", "c2@example.com"),
	}

	sum, err := s.sw.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, sum.Scanned)
	s.Equal(2, sum.Missed)
	s.Equal(3, sum.EmailsSent)
	s.Equal(2, s.store.ledgerSize())
	s.Equal(1, s.store.saveCalls, "all ledger rows committed in one batch")
}

func TestAlertKey(t *testing.T) {
	ts := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	if AlertKey(7, ts) != AlertKey(7, ts) {
		t.Fatal("key must be deterministic")
	}
	if AlertKey(7, ts) == AlertKey(8, ts) {
		t.Fatal("key must depend on the user")
	}
	if AlertKey(7, ts) == AlertKey(7, ts.Add(time.Millisecond)) {
		t.Fatal("key must depend on the exact check-in timestamp")
	}
}
