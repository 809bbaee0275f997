package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ericfisherdev/taskapi/internal/domain/model"
	"github.com/ericfisherdev/taskapi/internal/domain/port/driven"
)

// --- Mock implementations ---

var errStoreDown = errors.New("store unavailable")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockUserStore struct {
	mu     sync.Mutex
	users  map[int64]model.User
	nextID int64
	err    error
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[int64]model.User)}
}

func (m *mockUserStore) Create(_ context.Context, u model.User) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return nil, driven.ErrUserAlreadyExists
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = u
	return &u, nil
}

func (m *mockUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (m *mockUserStore) GetByID(_ context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

// mockHasher is a transparent "hash" that records how often Verify runs.
type mockHasher struct {
	verifyCalls int
	hashErr     error
}

func (m *mockHasher) Hash(plaintext string) (string, error) {
	if m.hashErr != nil {
		return "", m.hashErr
	}
	return "hashed:" + plaintext, nil
}

func (m *mockHasher) Verify(plaintext, hash string) bool {
	m.verifyCalls++
	return strings.TrimPrefix(hash, "hashed:") == plaintext && strings.HasPrefix(hash, "hashed:")
}

type mockTokenIssuer struct {
	issued []int64
}

func (m *mockTokenIssuer) Issue(userID int64) (string, time.Time, error) {
	m.issued = append(m.issued, userID)
	return "token-for-user", time.Now().Add(time.Hour), nil
}

func (m *mockTokenIssuer) Verify(string) (int64, error) {
	return 0, driven.ErrInvalidToken
}

type mockTaskStore struct {
	mu     sync.Mutex
	tasks  map[int64]model.Task
	nextID int64
	clock  time.Time
	err    error
}

func newMockTaskStore() *mockTaskStore {
	return &mockTaskStore{
		tasks: make(map[int64]model.Task),
		clock: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func (m *mockTaskStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *mockTaskStore) Create(_ context.Context, t model.Task) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.nextID++
	t.ID = m.nextID
	t.CreatedAt = m.tick()
	t.UpdatedAt = t.CreatedAt
	m.tasks[t.ID] = t
	return &t, nil
}

func (m *mockTaskStore) ListByUser(_ context.Context, userID int64, status *model.TaskStatus) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []model.Task{}
	for _, t := range m.tasks {
		if t.UserID != userID || (status != nil && t.Status != *status) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockTaskStore) GetByIDAndUser(_ context.Context, id, userID int64) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	t, ok := m.tasks[id]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	return &t, nil
}

func (m *mockTaskStore) Update(_ context.Context, t model.Task) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.tasks[t.ID]
	if !ok || existing.UserID != t.UserID {
		return nil, driven.ErrTaskNotFound
	}
	t.UpdatedAt = m.tick()
	m.tasks[t.ID] = t
	return &t, nil
}

func (m *mockTaskStore) Delete(_ context.Context, id, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.tasks[id]
	if !ok || existing.UserID != userID {
		return driven.ErrTaskNotFound
	}
	delete(m.tasks, id)
	return nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(context.Context) error { return m.err }
