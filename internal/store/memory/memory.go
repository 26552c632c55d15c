// Package memory provides map-backed repositories for local runs and tests.
// Each repository serializes all access under one mutex, which also makes
// the stock check-and-update in DecrementStock atomic.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sweetshop/apiserver/internal/store"
	"github.com/sweetshop/apiserver/types"
)

type UserRepository struct {
	mu      sync.RWMutex
	users   map[string]types.User
	byEmail map[string]string
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:   make(map[string]types.User),
		byEmail: make(map[string]string),
	}
}

func (r *UserRepository) GetByID(_ context.Context, id string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return r.users[id], nil
}

func (r *UserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return types.User{}, store.ErrDuplicate
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	r.users[user.ID] = user
	r.byEmail[user.Email] = user.ID
	return user, nil
}

type sweetRecord struct {
	sweet types.Sweet
	seq   uint64
}

type SweetRepository struct {
	mu     sync.Mutex
	sweets map[string]sweetRecord
	seq    uint64
	now    func() time.Time
}

func NewSweetRepository() *SweetRepository {
	return &SweetRepository{
		sweets: make(map[string]sweetRecord),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *SweetRepository) List(ctx context.Context) ([]types.Sweet, error) {
	return r.Search(ctx, types.SweetFilter{})
}

func (r *SweetRepository) Search(_ context.Context, filter types.SweetFilter) ([]types.Sweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.ToLower(filter.Name)
	matches := make([]sweetRecord, 0, len(r.sweets))
	for _, rec := range r.sweets {
		s := rec.sweet
		if name != "" && !strings.Contains(strings.ToLower(s.Name), name) {
			continue
		}
		if filter.Category != "" && s.Category != filter.Category {
			continue
		}
		if filter.MinPrice != nil && s.Price < *filter.MinPrice {
			continue
		}
		if filter.MaxPrice != nil && s.Price > *filter.MaxPrice {
			continue
		}
		matches = append(matches, rec)
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if !a.sweet.CreatedAt.Equal(b.sweet.CreatedAt) {
			return a.sweet.CreatedAt.After(b.sweet.CreatedAt)
		}
		return a.seq > b.seq
	})

	sweets := make([]types.Sweet, 0, len(matches))
	for _, rec := range matches {
		sweets = append(sweets, rec.sweet)
	}
	return sweets, nil
}

func (r *SweetRepository) Get(_ context.Context, id string) (types.Sweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sweets[id]
	if !ok {
		return types.Sweet{}, store.ErrNotFound
	}
	return rec.sweet, nil
}

func (r *SweetRepository) Create(_ context.Context, sweet types.Sweet) (types.Sweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	sweet.ID = uuid.NewString()
	sweet.CreatedAt = now
	sweet.UpdatedAt = now
	r.seq++
	r.sweets[sweet.ID] = sweetRecord{sweet: sweet, seq: r.seq}
	return sweet, nil
}

func (r *SweetRepository) Update(_ context.Context, id string, changes types.SweetChanges) (types.Sweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sweets[id]
	if !ok {
		return types.Sweet{}, store.ErrNotFound
	}
	s := &rec.sweet
	if changes.Name != nil {
		s.Name = *changes.Name
	}
	if changes.Category != nil {
		s.Category = *changes.Category
	}
	if changes.Price != nil {
		s.Price = *changes.Price
	}
	if changes.Quantity != nil {
		s.Quantity = *changes.Quantity
	}
	if changes.Description != nil {
		s.Description = *changes.Description
	}
	s.UpdatedAt = r.now()
	r.sweets[id] = rec
	return rec.sweet, nil
}

func (r *SweetRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sweets[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.sweets, id)
	return nil
}

func (r *SweetRepository) DecrementStock(_ context.Context, id string, n int) (types.Sweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sweets[id]
	if !ok {
		return types.Sweet{}, store.ErrNotFound
	}
	if rec.sweet.Quantity < n {
		return types.Sweet{}, store.ErrInsufficientStock
	}
	rec.sweet.Quantity -= n
	rec.sweet.UpdatedAt = r.now()
	r.sweets[id] = rec
	return rec.sweet, nil
}

func (r *SweetRepository) IncrementStock(_ context.Context, id string, n int) (types.Sweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sweets[id]
	if !ok {
		return types.Sweet{}, store.ErrNotFound
	}
	if n > types.MaxQuantity-rec.sweet.Quantity {
		return types.Sweet{}, store.ErrQuantityOverflow
	}
	rec.sweet.Quantity += n
	rec.sweet.UpdatedAt = r.now()
	r.sweets[id] = rec
	return rec.sweet, nil
}
