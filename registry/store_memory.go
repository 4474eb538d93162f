package registry

import (
	"context"
	"sync"

	"github.com/stillalive/api/models"
)

// MemoryStore is an in-memory Store used by tests and local runs
// without MySQL. A single mutex serializes transactions, which is
// enough to honor the atomicity the Registry relies on.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memData{
		users:   map[uint]models.User{},
		watches: map[uint]models.Watch{},
	}}
}

// PutUser inserts or replaces a user row.
func (m *MemoryStore) PutUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.users[u.ID] = u
}

// WatchersCount reads the denormalized counter for a user.
func (m *MemoryStore) WatchersCount(id uint) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.users[id].WatchersCount
}

// LiveWatchesTargeting counts actual rows pointing at a user.
func (m *MemoryStore) LiveWatchesTargeting(id uint) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, w := range m.data.watches {
		if w.TargetID == id {
			n++
		}
	}
	return n
}

func (m *MemoryStore) FindUserByCode(ctx context.Context, code string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.FindUserByCode(ctx, code)
}

func (m *MemoryStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.GetUser(ctx, id)
}

func (m *MemoryStore) GetUserLocked(ctx context.Context, id uint) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.GetUser(ctx, id)
}

func (m *MemoryStore) GetWatch(ctx context.Context, id uint) (*models.Watch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.GetWatch(ctx, id)
}

func (m *MemoryStore) FindWatch(ctx context.Context, watcherID, targetID uint) (*models.Watch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.FindWatch(ctx, watcherID, targetID)
}

func (m *MemoryStore) ListByWatcher(ctx context.Context, watcherID uint) ([]models.Watch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.ListByWatcher(ctx, watcherID)
}

func (m *MemoryStore) ListByTarget(ctx context.Context, targetID uint) ([]models.Watch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.ListByTarget(ctx, targetID)
}

func (m *MemoryStore) CreateWatch(ctx context.Context, w *models.Watch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.CreateWatch(ctx, w)
}

func (m *MemoryStore) DeleteWatch(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.DeleteWatch(ctx, id)
}

func (m *MemoryStore) SetWatchersCount(ctx context.Context, userID uint, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.SetWatchersCount(ctx, userID, count)
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.data)
}

// memData holds the actual state; its methods run unlocked and are only
// reached through MemoryStore, which owns the mutex. It also implements
// Store so InTx can hand it to transaction closures directly.
type memData struct {
	users       map[uint]models.User
	watches     map[uint]models.Watch
	nextWatchID uint
}

func (d *memData) FindUserByCode(ctx context.Context, code string) (*models.User, error) {
	for _, u := range d.users {
		if u.Code == code && code != "" {
			user := u
			return &user, nil
		}
	}
	return nil, ErrCodeNotFound
}

func (d *memData) GetUser(ctx context.Context, id uint) (*models.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	user := u
	return &user, nil
}

func (d *memData) GetUserLocked(ctx context.Context, id uint) (*models.User, error) {
	return d.GetUser(ctx, id)
}

func (d *memData) GetWatch(ctx context.Context, id uint) (*models.Watch, error) {
	w, ok := d.watches[id]
	if !ok {
		return nil, ErrNotFound
	}
	watch := w
	return &watch, nil
}

func (d *memData) FindWatch(ctx context.Context, watcherID, targetID uint) (*models.Watch, error) {
	for _, w := range d.watches {
		if w.WatcherID == watcherID && w.TargetID == targetID {
			watch := w
			return &watch, nil
		}
	}
	return nil, ErrNotFound
}

func (d *memData) ListByWatcher(ctx context.Context, watcherID uint) ([]models.Watch, error) {
	var out []models.Watch
	for _, w := range d.watches {
		if w.WatcherID == watcherID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (d *memData) ListByTarget(ctx context.Context, targetID uint) ([]models.Watch, error) {
	var out []models.Watch
	for _, w := range d.watches {
		if w.TargetID == targetID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (d *memData) CreateWatch(ctx context.Context, w *models.Watch) error {
	// Mirrors the unique (watcher, target) index.
	for _, existing := range d.watches {
		if existing.WatcherID == w.WatcherID && existing.TargetID == w.TargetID {
			return ErrConflict
		}
	}
	d.nextWatchID++
	w.ID = d.nextWatchID
	d.watches[w.ID] = *w
	return nil
}

func (d *memData) DeleteWatch(ctx context.Context, id uint) error {
	delete(d.watches, id)
	return nil
}

func (d *memData) SetWatchersCount(ctx context.Context, userID uint, count int) error {
	u, ok := d.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.WatchersCount = count
	d.users[userID] = u
	return nil
}

func (d *memData) InTx(ctx context.Context, fn func(Store) error) error {
	return fn(d)
}
