package checkin

import (
	"context"
	"sync"
	"time"

	"github.com/stillalive/api/models"
)

// MemoryStore is an in-memory Store used by tests. InTx snapshots the
// state and restores it when the closure fails, so rollback behavior
// matches a real transaction.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	var failAppend error
	return &MemoryStore{data: &memData{
		users:      map[uint]models.User{},
		failAppend: &failAppend,
	}}
}

// PutUser inserts or replaces a user row.
func (m *MemoryStore) PutUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.users[u.ID] = u
}

// User reads a user row by id.
func (m *MemoryStore) User(id uint) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.users[id]
}

// Events returns a copy of all appended event rows.
func (m *MemoryStore) Events() []models.CheckIn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.CheckIn, len(m.data.events))
	copy(out, m.data.events)
	return out
}

// FailNextAppend makes the next AppendEvent return err, once.
func (m *MemoryStore) FailNextAppend(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*m.data.failAppend = err
}

func (m *MemoryStore) GetUserLocked(ctx context.Context, id uint) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.GetUserLocked(ctx, id)
}

func (m *MemoryStore) UpdateCheckInState(ctx context.Context, userID uint, streak, totalCheckIns int, lastCheckIn time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.UpdateCheckInState(ctx, userID, streak, totalCheckIns, lastCheckIn)
}

func (m *MemoryStore) AppendEvent(ctx context.Context, event *models.CheckIn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.AppendEvent(ctx, event)
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.data.clone()
	if err := fn(m.data); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

// memData holds the actual state; its methods run unlocked and are only
// reached through MemoryStore, which owns the mutex. The failAppend
// pointer is shared across snapshots so a consumed failure injection
// stays consumed after a rollback.
type memData struct {
	users      map[uint]models.User
	events     []models.CheckIn
	failAppend *error
}

func (d *memData) clone() *memData {
	users := make(map[uint]models.User, len(d.users))
	for id, u := range d.users {
		users[id] = u
	}
	events := make([]models.CheckIn, len(d.events))
	copy(events, d.events)
	return &memData{users: users, events: events, failAppend: d.failAppend}
}

func (d *memData) GetUserLocked(ctx context.Context, id uint) (*models.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	user := u
	return &user, nil
}

func (d *memData) UpdateCheckInState(ctx context.Context, userID uint, streak, totalCheckIns int, lastCheckIn time.Time) error {
	u, ok := d.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Streak = streak
	u.TotalCheckIns = totalCheckIns
	t := lastCheckIn
	u.LastCheckIn = &t
	d.users[userID] = u
	return nil
}

func (d *memData) AppendEvent(ctx context.Context, event *models.CheckIn) error {
	if err := *d.failAppend; err != nil {
		*d.failAppend = nil
		return err
	}
	event.ID = uint(len(d.events) + 1)
	d.events = append(d.events, *event)
	return nil
}

func (d *memData) InTx(ctx context.Context, fn func(Store) error) error {
	return fn(d)
}
