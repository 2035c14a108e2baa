// Package store defines the persisted record types and the repository
// interfaces the storage backends implement. Concrete backends live in the
// subpackages (bigquery, sqlite, memory) and are selected through
// internal/backend.
package store

import "time"

// TransactionType is the direction of a transaction. Amounts are always
// stored as positive magnitudes; direction lives here, never in the sign.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// ValidType reports whether t is one of the two known directions.
func ValidType(t TransactionType) bool {
	return t == TypeIncome || t == TypeExpense
}

// RecurringInfo is inert schedule metadata. Nothing in the system expands it
// into future transactions.
type RecurringInfo struct {
	Frequency string     `json:"frequency,omitempty"`
	Interval  int        `json:"interval,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

// TransactionRow is one persisted transaction. OwnerID is immutable after
// creation and every query is scoped to it.
type TransactionRow struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"-"`
	Description string          `json:"description"`
	Amount      float64         `json:"amount"`
	Type        TransactionType `json:"type"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory,omitempty"`
	Date        time.Time       `json:"date"`
	Tags        []string        `json:"tags,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	IsRecurring bool            `json:"isRecurring"`
	Recurring   *RecurringInfo  `json:"recurringInfo,omitempty"`
	AiParsed    bool            `json:"aiParsed"`
	RawInput    string          `json:"rawInput,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// TransactionUpdate carries a partial update; nil fields are left untouched.
// OwnerID is deliberately absent.
type TransactionUpdate struct {
	Description *string
	Amount      *float64
	Type        *TransactionType
	Category    *string
	Subcategory *string
	Date        *time.Time
	Tags        *[]string
	Notes       *string
	IsRecurring *bool
	Recurring   *RecurringInfo
}

// TransactionFilter selects and pages a transaction listing.
type TransactionFilter struct {
	Page      int
	Limit     int
	Category  string
	Type      TransactionType
	StartDate *time.Time
	EndDate   *time.Time
	// Search matches description, category, and notes case-insensitively.
	Search string
}

// CategoryCount is one row of the distinct-categories listing.
type CategoryCount struct {
	Category string  `json:"category"`
	Count    int     `json:"count"`
	Total    float64 `json:"total"`
}

// UserRow is one registered user, created on first OAuth callback.
type UserRow struct {
	ID            string    `json:"id"`
	GoogleID      string    `json:"-"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	Currency      string    `json:"currency"`
	Timezone      string    `json:"timezone"`
	Notifications bool      `json:"notifications"`
	LastLoginAt   time.Time `json:"lastLoginAt"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ProfileUpdate carries a partial profile update; nil fields are left
// untouched.
type ProfileUpdate struct {
	Name          *string
	AvatarURL     *string
	Currency      *string
	Timezone      *string
	Notifications *bool
}
