package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for an unknown id and for cross-owner access alike,
// so callers cannot distinguish "exists but not yours" from "doesn't exist".
var ErrNotFound = errors.New("store: not found")

// TransactionRepository is the persistence contract for transactions. All
// operations are owner-scoped.
type TransactionRepository interface {
	// Insert persists a new transaction.
	Insert(ctx context.Context, row *TransactionRow) error

	// InsertMany persists a batch of transactions in one call.
	InsertMany(ctx context.Context, rows []*TransactionRow) error

	// GetByID fetches a single transaction or ErrNotFound.
	GetByID(ctx context.Context, ownerID, id string) (*TransactionRow, error)

	// List returns a filtered page plus the total match count, newest first.
	List(ctx context.Context, ownerID string, f TransactionFilter) ([]*TransactionRow, int, error)

	// Update applies a partial update and returns the updated row, or
	// ErrNotFound.
	Update(ctx context.Context, ownerID, id string, upd TransactionUpdate) (*TransactionRow, error)

	// Delete removes a transaction and returns the deleted row, or
	// ErrNotFound.
	Delete(ctx context.Context, ownerID, id string) (*TransactionRow, error)

	// CategoryCounts lists the distinct categories the owner has used, with
	// transaction counts and summed amounts, most used first.
	CategoryCounts(ctx context.Context, ownerID string) ([]CategoryCount, error)

	// QueryWindow returns the owner's transactions within the inclusive
	// date window, ascending by date. Nil bounds are unbounded.
	QueryWindow(ctx context.Context, ownerID string, start, end *time.Time) ([]*TransactionRow, error)
}

// UserRepository is the persistence contract for users.
type UserRepository interface {
	// UpsertByGoogleID creates the user on first login and refreshes
	// name, avatar, and last-login on every subsequent one.
	UpsertByGoogleID(ctx context.Context, googleID, email, name, avatarURL string) (*UserRow, error)

	// GetByID fetches a user or ErrNotFound.
	GetByID(ctx context.Context, id string) (*UserRow, error)

	// UpdateProfile applies a partial profile update and returns the
	// updated user, or ErrNotFound.
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*UserRow, error)
}
