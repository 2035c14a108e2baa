// Package bigquery implements the repositories on Google BigQuery. Writes go
// through the streaming inserter; updates and deletes are parameterized DML.
package bigquery

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/pennywise/pennywise/internal/store"
)

const (
	transactionsTable = "transactions"
	usersTable        = "users"
)

// transactionRow is the BigQuery shape of a store.TransactionRow.
type transactionRow struct {
	TransactionID string `bigquery:"transaction_id"`
	OwnerID       string `bigquery:"owner_id"`

	Description string  `bigquery:"description"`
	Amount      float64 `bigquery:"amount"`
	Type        string  `bigquery:"type"`

	Category    string              `bigquery:"category"`
	Subcategory bigquery.NullString `bigquery:"subcategory"`

	Date time.Time `bigquery:"date"`

	Tags  []string            `bigquery:"tags"`
	Notes bigquery.NullString `bigquery:"notes"`

	IsRecurring bool              `bigquery:"is_recurring"`
	Recurring   bigquery.NullJSON `bigquery:"recurring"`

	AiParsed bool                `bigquery:"ai_parsed"`
	RawInput bigquery.NullString `bigquery:"raw_input"`

	CreatedTS time.Time `bigquery:"created_ts"`
	UpdatedTS time.Time `bigquery:"updated_ts"`
}

// userRow is the BigQuery shape of a store.UserRow.
type userRow struct {
	UserID   string `bigquery:"user_id"`
	GoogleID string `bigquery:"google_id"`

	Email     string              `bigquery:"email"`
	Name      string              `bigquery:"name"`
	AvatarURL bigquery.NullString `bigquery:"avatar_url"`

	Currency      string `bigquery:"currency"`
	Timezone      string `bigquery:"timezone"`
	Notifications bool   `bigquery:"notifications"`

	LastLoginTS time.Time `bigquery:"last_login_ts"`
	CreatedTS   time.Time `bigquery:"created_ts"`
	UpdatedTS   time.Time `bigquery:"updated_ts"`
}

func toTransactionRow(t *store.TransactionRow) (*transactionRow, error) {
	row := &transactionRow{
		TransactionID: t.ID,
		OwnerID:       t.OwnerID,
		Description:   t.Description,
		Amount:        t.Amount,
		Type:          string(t.Type),
		Category:      t.Category,
		Subcategory:   nullString(t.Subcategory),
		Date:          t.Date.UTC(),
		Tags:          t.Tags,
		Notes:         nullString(t.Notes),
		IsRecurring:   t.IsRecurring,
		AiParsed:      t.AiParsed,
		RawInput:      nullString(t.RawInput),
		CreatedTS:     t.CreatedAt.UTC(),
		UpdatedTS:     t.UpdatedAt.UTC(),
	}
	if t.Recurring != nil {
		b, err := json.Marshal(t.Recurring)
		if err != nil {
			return nil, fmt.Errorf("toTransactionRow: encode recurring: %w", err)
		}
		row.Recurring = bigquery.NullJSON{JSONVal: string(b), Valid: true}
	}
	return row, nil
}

func fromTransactionRow(row *transactionRow) (*store.TransactionRow, error) {
	t := &store.TransactionRow{
		ID:          row.TransactionID,
		OwnerID:     row.OwnerID,
		Description: row.Description,
		Amount:      row.Amount,
		Type:        store.TransactionType(row.Type),
		Category:    row.Category,
		Subcategory: row.Subcategory.StringVal,
		Date:        row.Date,
		Tags:        row.Tags,
		Notes:       row.Notes.StringVal,
		IsRecurring: row.IsRecurring,
		AiParsed:    row.AiParsed,
		RawInput:    row.RawInput.StringVal,
		CreatedAt:   row.CreatedTS,
		UpdatedAt:   row.UpdatedTS,
	}
	if row.Recurring.Valid && row.Recurring.JSONVal != "" {
		var r store.RecurringInfo
		if err := json.Unmarshal([]byte(row.Recurring.JSONVal), &r); err != nil {
			return nil, fmt.Errorf("fromTransactionRow: decode recurring: %w", err)
		}
		t.Recurring = &r
	}
	return t, nil
}

func fromUserRow(row *userRow) *store.UserRow {
	return &store.UserRow{
		ID:            row.UserID,
		GoogleID:      row.GoogleID,
		Email:         row.Email,
		Name:          row.Name,
		AvatarURL:     row.AvatarURL.StringVal,
		Currency:      row.Currency,
		Timezone:      row.Timezone,
		Notifications: row.Notifications,
		LastLoginAt:   row.LastLoginTS,
		CreatedAt:     row.CreatedTS,
		UpdatedAt:     row.UpdatedTS,
	}
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
