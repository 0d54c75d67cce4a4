package users

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hrdesk/hrdesk/internal/rbac"
	"github.com/hrdesk/hrdesk/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	users  map[string]User
	nextID int
	err    error
}

func newMemoryRepo(seed ...User) *memoryRepo {
	repo := &memoryRepo{users: make(map[string]User)}
	for _, u := range seed {
		if u.ID == "" {
			repo.nextID++
			u.ID = strconv.Itoa(repo.nextID)
		}
		u.Role = u.Roles.Primary()
		repo.users[u.ID] = u
	}
	return repo
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter, page shared.PageRequest) ([]User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, 0, m.err
	}
	var out []User
	for _, u := range m.users {
		if filter.Role != "" && !u.Roles.Contains(filter.Role) {
			continue
		}
		if filter.Active != nil && u.IsActive != *filter.Active {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(u.Name+" "+u.Email), strings.ToLower(filter.Query)) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := int64(len(out))
	start := int(page.Skip())
	if start > len(out) {
		start = len(out)
	}
	end := start + page.PerPage
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (m *memoryRepo) Get(ctx context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memoryRepo) FindByEmail(ctx context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return User{}, m.err
	}
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *memoryRepo) Insert(ctx context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return User{}, ErrDuplicateEmail
		}
	}
	m.nextID++
	u.ID = strconv.Itoa(m.nextID)
	u.Role = u.Roles.Primary()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = u
	return u, nil
}

func (m *memoryRepo) Update(ctx context.Context, id string, patch Patch) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.Department != nil {
		u.Department = *patch.Department
	}
	if patch.ManagerID != nil {
		u.ManagerID = *patch.ManagerID
	}
	if patch.IsActive != nil {
		u.IsActive = *patch.IsActive
	}
	u.UpdatedAt = time.Now()
	m.users[id] = u
	return u, nil
}

func (m *memoryRepo) SetPassword(ctx context.Context, email, hash string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.Email == email {
			u.PasswordHash = hash
			m.users[id] = u
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *memoryRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memoryRepo) CountByRole(ctx context.Context) (map[rbac.Role]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[rbac.Role]int64)
	for _, u := range m.users {
		if !u.IsActive {
			continue
		}
		for _, r := range u.Roles {
			out[r]++
		}
	}
	return out, nil
}

type revokeSpy struct {
	revoked []string
}

func (r *revokeSpy) RevokeAllForUser(ctx context.Context, userID string) error {
	r.revoked = append(r.revoked, userID)
	return nil
}

type auditSpy struct {
	actions []string
}

func (a *auditSpy) Record(ctx context.Context, log shared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}
