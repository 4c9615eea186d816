package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/paneladmin/apiserver/types"
)

// MemoryUserRepository is an in-memory user store.
// It is intended for tests and single-process development setups.
type MemoryUserRepository struct {
	mu     sync.RWMutex
	users  map[int]types.User
	nextID int
	now    func() time.Time
}

// NewMemoryUserRepository creates an empty in-memory store. Ids start at 1.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users:  make(map[int]types.User),
		nextID: 1,
		now:    time.Now,
	}
}

func (r *MemoryUserRepository) List(ctx context.Context) ([]types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]types.User, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, cloneUser(user))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.emailTaken(user.Email, 0) {
		return types.User{}, ErrConflict
	}

	user.ID = r.nextID
	user.RegisterDate = r.now().UTC().Truncate(time.Second)
	r.nextID++
	r.users[user.ID] = cloneUser(user)
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.users[user.ID]
	if !ok {
		return types.User{}, ErrNotFound
	}
	if r.emailTaken(user.Email, user.ID) {
		return types.User{}, ErrConflict
	}

	current.Email = user.Email
	current.Name = user.Name
	current.Activity = user.Activity
	current.Lang = user.Lang
	current.ValidTill = user.ValidTill
	r.users[user.ID] = current
	return cloneUser(current), nil
}

func (r *MemoryUserRepository) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.users, id)
	return nil
}

// emailTaken reports whether another user than exceptID owns email.
// Callers must hold the lock.
func (r *MemoryUserRepository) emailTaken(email string, exceptID int) bool {
	for id, user := range r.users {
		if id != exceptID && strings.EqualFold(user.Email, email) {
			return true
		}
	}
	return false
}

func cloneUser(user types.User) types.User {
	if user.Roles != nil {
		user.Roles = append([]string(nil), user.Roles...)
	}
	return user
}
