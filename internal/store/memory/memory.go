// Package memory provides in-memory repository implementations used by the
// dev backend and by tests. Everything is guarded by a single mutex; the
// dataset is assumed small.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pennywise/pennywise/internal/store"
)

// TransactionStore implements store.TransactionRepository.
type TransactionStore struct {
	mu   sync.RWMutex
	rows map[string]*store.TransactionRow
}

var _ store.TransactionRepository = (*TransactionStore)(nil)

// NewTransactionStore creates an empty in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{rows: make(map[string]*store.TransactionRow)}
}

func (s *TransactionStore) Insert(ctx context.Context, row *store.TransactionRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *row
	s.rows[cp.ID] = &cp
	return nil
}

func (s *TransactionStore) InsertMany(ctx context.Context, rows []*store.TransactionRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range rows {
		cp := *row
		s.rows[cp.ID] = &cp
	}
	return nil
}

func (s *TransactionStore) GetByID(ctx context.Context, ownerID, id string) (*store.TransactionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[id]
	if !ok || row.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *TransactionStore) List(ctx context.Context, ownerID string, f store.TransactionFilter) ([]*store.TransactionRow, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*store.TransactionRow
	for _, row := range s.rows {
		if row.OwnerID != ownerID || !matchesFilter(row, f) {
			continue
		}
		cp := *row
		matched = append(matched, &cp)
	}

	// Newest first; CreatedAt breaks date ties deterministically.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit
	if offset >= total {
		return []*store.TransactionRow{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func matchesFilter(row *store.TransactionRow, f store.TransactionFilter) bool {
	if f.Category != "" && row.Category != f.Category {
		return false
	}
	if f.Type != "" && row.Type != f.Type {
		return false
	}
	if f.StartDate != nil && row.Date.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && row.Date.After(*f.EndDate) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(row.Description), needle) &&
			!strings.Contains(strings.ToLower(row.Category), needle) &&
			!strings.Contains(strings.ToLower(row.Notes), needle) {
			return false
		}
	}
	return true
}

func (s *TransactionStore) Update(ctx context.Context, ownerID, id string, upd store.TransactionUpdate) (*store.TransactionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok || row.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}

	if upd.Description != nil {
		row.Description = *upd.Description
	}
	if upd.Amount != nil {
		row.Amount = *upd.Amount
	}
	if upd.Type != nil {
		row.Type = *upd.Type
	}
	if upd.Category != nil {
		row.Category = *upd.Category
	}
	if upd.Subcategory != nil {
		row.Subcategory = *upd.Subcategory
	}
	if upd.Date != nil {
		row.Date = *upd.Date
	}
	if upd.Tags != nil {
		row.Tags = append([]string(nil), (*upd.Tags)...)
	}
	if upd.Notes != nil {
		row.Notes = *upd.Notes
	}
	if upd.IsRecurring != nil {
		row.IsRecurring = *upd.IsRecurring
	}
	if upd.Recurring != nil {
		cp := *upd.Recurring
		row.Recurring = &cp
	}
	row.UpdatedAt = time.Now()

	cp := *row
	return &cp, nil
}

func (s *TransactionStore) Delete(ctx context.Context, ownerID, id string) (*store.TransactionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok || row.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	delete(s.rows, id)
	cp := *row
	return &cp, nil
}

func (s *TransactionStore) CategoryCounts(ctx context.Context, ownerID string) ([]store.CategoryCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byCat := make(map[string]*store.CategoryCount)
	for _, row := range s.rows {
		if row.OwnerID != ownerID {
			continue
		}
		c, ok := byCat[row.Category]
		if !ok {
			c = &store.CategoryCount{Category: row.Category}
			byCat[row.Category] = c
		}
		c.Count++
		c.Total += row.Amount
	}

	out := make([]store.CategoryCount, 0, len(byCat))
	for _, c := range byCat {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

func (s *TransactionStore) QueryWindow(ctx context.Context, ownerID string, start, end *time.Time) ([]*store.TransactionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*store.TransactionRow
	for _, row := range s.rows {
		if row.OwnerID != ownerID {
			continue
		}
		if start != nil && row.Date.Before(*start) {
			continue
		}
		if end != nil && row.Date.After(*end) {
			continue
		}
		cp := *row
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// UserStore implements store.UserRepository.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*store.UserRow
}

var _ store.UserRepository = (*UserStore)(nil)

// NewUserStore creates an empty in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*store.UserRow)}
}

func (s *UserStore) UpsertByGoogleID(ctx context.Context, googleID, email, name, avatarURL string) (*store.UserRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, u := range s.users {
		if u.GoogleID == googleID {
			u.Name = name
			u.AvatarURL = avatarURL
			u.LastLoginAt = now
			u.UpdatedAt = now
			cp := *u
			return &cp, nil
		}
	}

	u := &store.UserRow{
		ID:          uuid.NewString(),
		GoogleID:    googleID,
		Email:       email,
		Name:        name,
		AvatarURL:   avatarURL,
		Currency:    "USD",
		Timezone:    "UTC",
		LastLoginAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*store.UserRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *UserStore) UpdateProfile(ctx context.Context, id string, upd store.ProfileUpdate) (*store.UserRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.AvatarURL != nil {
		u.AvatarURL = *upd.AvatarURL
	}
	if upd.Currency != nil {
		u.Currency = *upd.Currency
	}
	if upd.Timezone != nil {
		u.Timezone = *upd.Timezone
	}
	if upd.Notifications != nil {
		u.Notifications = *upd.Notifications
	}
	u.UpdatedAt = time.Now()

	cp := *u
	return &cp, nil
}
