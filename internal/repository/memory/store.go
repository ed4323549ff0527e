// Package memory is an in-process implementation of the repository
// contracts. It backs DB_DRIVER=memory and the service and handler tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/metapantry/internal/apperror"
	"github.com/sakif/metapantry/internal/model"
	"github.com/sakif/metapantry/internal/repository"
)

var (
	_ repository.ItemStore      = (*Store)(nil)
	_ repository.UserRepository = (*Store)(nil)
)

// Store keeps users and items in maps guarded by one mutex. Records are
// copied in and out so callers never share memory with the store.
type Store struct {
	mu        sync.RWMutex
	items     map[string]model.FoodItem
	itemOrder []string
	users     map[string]model.User
	now       func() time.Time

	// Err, when set, is returned by every call to simulate an unavailable store.
	Err error
}

func New() *Store {
	return &Store{
		items: make(map[string]model.FoodItem),
		users: make(map[string]model.User),
		now:   time.Now,
	}
}

func (s *Store) fail(op string) error {
	if s.Err != nil {
		return apperror.StorageUnavailable(op, s.Err)
	}
	return nil
}

func (s *Store) Insert(_ context.Context, rec *model.FoodItem, ownerID string) error {
	if err := s.fail("creating food item"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = xid.New().String()
	rec.OwnerID = ownerID
	rec.AddedAt = s.now().UTC()
	s.items[rec.ID] = *rec
	s.itemOrder = append(s.itemOrder, rec.ID)
	return nil
}

func (s *Store) FindByID(_ context.Context, id string) (*model.FoodItem, error) {
	if err := s.fail("getting food item"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, apperror.NotFound("food item", id)
	}
	return &item, nil
}

func (s *Store) FindByOwner(_ context.Context, ownerID string, filter model.ItemFilter, opts repository.ListOptions) ([]model.FoodItem, error) {
	if err := s.fail("listing food items"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]model.FoodItem, 0)
	for _, id := range s.itemOrder {
		item, ok := s.items[id]
		if !ok || item.OwnerID != ownerID || !filter.Matches(item) {
			continue
		}
		matched = append(matched, item)
	}

	if opts.Offset >= len(matched) {
		return []model.FoodItem{}, nil
	}
	matched = matched[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

func (s *Store) Save(_ context.Context, rec *model.FoodItem) error {
	if err := s.fail("updating food item"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[rec.ID]; !ok {
		return apperror.NotFound("food item", rec.ID)
	}
	s.items[rec.ID] = *rec
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	if err := s.fail("deleting food item"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return apperror.NotFound("food item", id)
	}
	delete(s.items, id)
	s.itemOrder = removeID(s.itemOrder, id)
	return nil
}

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	if err := s.fail("creating user"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return apperror.Conflict("user", "email")
		}
		if existing.Username == u.Username {
			return apperror.Conflict("user", "username")
		}
	}
	u.ID = xid.New().String()
	u.CreatedAt = s.now().UTC()
	s.users[u.ID] = *u
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if err := s.fail("getting user"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return &u, nil
}

func (s *Store) GetUserByLogin(_ context.Context, login string) (*model.User, error) {
	if err := s.fail("getting user"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, login) || u.Username == login {
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user", login)
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	if err := s.fail("deleting user"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	for itemID, item := range s.items {
		if item.OwnerID == id {
			delete(s.items, itemID)
			s.itemOrder = removeID(s.itemOrder, itemID)
		}
	}
	delete(s.users, id)
	return nil
}

// Close satisfies the same lifecycle as the SQL store.
func (s *Store) Close() error { return nil }

// Ping fails only while Err is set.
func (s *Store) Ping(context.Context) error { return s.fail("pinging store") }

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
