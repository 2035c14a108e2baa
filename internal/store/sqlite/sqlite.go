// Package sqlite provides a file-backed repository implementation on top of
// modernc.org/sqlite. It is the default backend for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pennywise/pennywise/internal/store"
	_ "modernc.org/sqlite"
)

// Store implements store.TransactionRepository and store.UserRepository on a
// single SQLite database file.
type Store struct {
	db *sql.DB
}

var (
	_ store.TransactionRepository = (*Store)(nil)
	_ store.UserRepository        = userRepository{}
)

// NewStore opens (creating if needed) the database at dbPath and applies the
// embedded migrations.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// modernc.org/sqlite is not safe for concurrent writers on one file;
	// serialize through a single connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const transactionColumns = `id, owner_id, description, amount, type, category, subcategory,
	date, tags, notes, is_recurring, recurring, ai_parsed, raw_input, created_at, updated_at`

func (s *Store) Insert(ctx context.Context, row *store.TransactionRow) error {
	tags, recurring, err := encodeJSONFields(row)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.OwnerID, row.Description, row.Amount, string(row.Type),
		row.Category, row.Subcategory, row.Date.UTC(), tags, row.Notes,
		row.IsRecurring, recurring, row.AiParsed, row.RawInput,
		row.CreatedAt.UTC(), row.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *Store) InsertMany(ctx context.Context, rows []*store.TransactionRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		tags, recurring, err := encodeJSONFields(row)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			row.ID, row.OwnerID, row.Description, row.Amount, string(row.Type),
			row.Category, row.Subcategory, row.Date.UTC(), tags, row.Notes,
			row.IsRecurring, recurring, row.AiParsed, row.RawInput,
			row.CreatedAt.UTC(), row.UpdatedAt.UTC()); err != nil {
			return fmt.Errorf("insert transaction %s: %w", row.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch insert: %w", err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, ownerID, id string) (*store.TransactionRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanTransaction(row)
}

func (s *Store) List(ctx context.Context, ownerID string, f store.TransactionFilter) ([]*store.TransactionRow, int, error) {
	where := []string{"owner_id = ?"}
	args := []any{ownerID}

	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.StartDate != nil {
		where = append(where, "date >= ?")
		args = append(args, f.StartDate.UTC())
	}
	if f.EndDate != nil {
		where = append(where, "date <= ?")
		args = append(args, f.EndDate.UTC())
	}
	if f.Search != "" {
		where = append(where, "(lower(description) LIKE ? OR lower(category) LIKE ? OR lower(notes) LIKE ?)")
		needle := "%" + strings.ToLower(f.Search) + "%"
		args = append(args, needle, needle, needle)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions WHERE `+clause+`
		ORDER BY date DESC, created_at DESC
		LIMIT ? OFFSET ?`, append(args, limit, (page-1)*limit)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []*store.TransactionRow{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, total, nil
}

func (s *Store) Update(ctx context.Context, ownerID, id string, upd store.TransactionUpdate) (*store.TransactionRow, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := scanTransaction(tx.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID))
	if err != nil {
		return nil, err
	}

	applyUpdate(current, upd)
	current.UpdatedAt = time.Now()

	tags, recurring, err := encodeJSONFields(current)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE transactions SET
			description = ?, amount = ?, type = ?, category = ?, subcategory = ?,
			date = ?, tags = ?, notes = ?, is_recurring = ?, recurring = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		current.Description, current.Amount, string(current.Type), current.Category,
		current.Subcategory, current.Date.UTC(), tags, current.Notes,
		current.IsRecurring, recurring, current.UpdatedAt.UTC(),
		id, ownerID); err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return current, nil
}

func applyUpdate(row *store.TransactionRow, upd store.TransactionUpdate) {
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
}

func (s *Store) Delete(ctx context.Context, ownerID, id string) (*store.TransactionRow, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := scanTransaction(tx.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID))
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM transactions WHERE id = ? AND owner_id = ?", id, ownerID); err != nil {
		return nil, fmt.Errorf("delete transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete: %w", err)
	}
	return current, nil
}

func (s *Store) CategoryCounts(ctx context.Context, ownerID string) ([]store.CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*), SUM(amount)
		FROM transactions WHERE owner_id = ?
		GROUP BY category
		ORDER BY COUNT(*) DESC, category ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("count categories: %w", err)
	}
	defer rows.Close()

	var out []store.CategoryCount
	for rows.Next() {
		var c store.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count, &c.Total); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category counts: %w", err)
	}
	return out, nil
}

func (s *Store) QueryWindow(ctx context.Context, ownerID string, start, end *time.Time) ([]*store.TransactionRow, error) {
	where := []string{"owner_id = ?"}
	args := []any{ownerID}
	if start != nil {
		where = append(where, "date >= ?")
		args = append(args, start.UTC())
	}
	if end != nil {
		where = append(where, "date <= ?")
		args = append(args, end.UTC())
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions WHERE `+strings.Join(where, " AND ")+`
		ORDER BY date ASC, created_at ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query window: %w", err)
	}
	defer rows.Close()

	var out []*store.TransactionRow
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate window: %w", err)
	}
	return out, nil
}

func (s *Store) UpsertByGoogleID(ctx context.Context, googleID, email, name, avatarURL string) (*store.UserRow, error) {
	now := time.Now()

	var id string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM users WHERE google_id = ?", googleID).Scan(&id)
	switch {
	case err == nil:
		if _, err := s.db.ExecContext(ctx, `
			UPDATE users SET name = ?, avatar_url = ?, last_login_at = ?, updated_at = ?
			WHERE id = ?`, name, avatarURL, now.UTC(), now.UTC(), id); err != nil {
			return nil, fmt.Errorf("refresh user: %w", err)
		}
		return s.GetUserByID(ctx, id)
	case errors.Is(err, sql.ErrNoRows):
		id = uuid.NewString()
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO users (id, google_id, email, name, avatar_url, currency, timezone,
				notifications, last_login_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 'USD', 'UTC', 0, ?, ?, ?)`,
			id, googleID, email, name, avatarURL, now.UTC(), now.UTC(), now.UTC()); err != nil {
			return nil, fmt.Errorf("insert user: %w", err)
		}
		return s.GetUserByID(ctx, id)
	default:
		return nil, fmt.Errorf("lookup user by google id: %w", err)
	}
}

// GetUserByID is the user-side lookup; the transaction GetByID occupies the
// method name store.UserRepository wants, so Users() adapts the signature.
func (s *Store) GetUserByID(ctx context.Context, id string) (*store.UserRow, error) {
	var u store.UserRow
	err := s.db.QueryRowContext(ctx, `
		SELECT id, google_id, email, name, avatar_url, currency, timezone,
			notifications, last_login_at, created_at, updated_at
		FROM users WHERE id = ?`, id).Scan(
		&u.ID, &u.GoogleID, &u.Email, &u.Name, &u.AvatarURL, &u.Currency,
		&u.Timezone, &u.Notifications, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id string, upd store.ProfileUpdate) (*store.UserRow, error) {
	u, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
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

	if _, err := s.db.ExecContext(ctx, `
		UPDATE users SET name = ?, avatar_url = ?, currency = ?, timezone = ?,
			notifications = ?, updated_at = ?
		WHERE id = ?`,
		u.Name, u.AvatarURL, u.Currency, u.Timezone, u.Notifications,
		u.UpdatedAt.UTC(), id); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

// Users adapts the store to store.UserRepository.
func (s *Store) Users() store.UserRepository {
	return userRepository{s}
}

type userRepository struct {
	s *Store
}

func (u userRepository) UpsertByGoogleID(ctx context.Context, googleID, email, name, avatarURL string) (*store.UserRow, error) {
	return u.s.UpsertByGoogleID(ctx, googleID, email, name, avatarURL)
}

func (u userRepository) GetByID(ctx context.Context, id string) (*store.UserRow, error) {
	return u.s.GetUserByID(ctx, id)
}

func (u userRepository) UpdateProfile(ctx context.Context, id string, upd store.ProfileUpdate) (*store.UserRow, error) {
	return u.s.UpdateProfile(ctx, id, upd)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(sc rowScanner) (*store.TransactionRow, error) {
	var (
		t         store.TransactionRow
		typ       string
		tags      string
		recurring sql.NullString
	)
	err := sc.Scan(&t.ID, &t.OwnerID, &t.Description, &t.Amount, &typ,
		&t.Category, &t.Subcategory, &t.Date, &tags, &t.Notes,
		&t.IsRecurring, &recurring, &t.AiParsed, &t.RawInput,
		&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	t.Type = store.TransactionType(typ)
	if tags != "" && tags != "[]" {
		if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	if recurring.Valid && recurring.String != "" {
		var r store.RecurringInfo
		if err := json.Unmarshal([]byte(recurring.String), &r); err != nil {
			return nil, fmt.Errorf("decode recurring info: %w", err)
		}
		t.Recurring = &r
	}
	return &t, nil
}

func encodeJSONFields(row *store.TransactionRow) (tags string, recurring any, err error) {
	b, err := json.Marshal(row.Tags)
	if err != nil {
		return "", nil, fmt.Errorf("encode tags: %w", err)
	}
	if row.Tags == nil {
		b = []byte("[]")
	}
	tags = string(b)

	if row.Recurring != nil {
		rb, err := json.Marshal(row.Recurring)
		if err != nil {
			return "", nil, fmt.Errorf("encode recurring info: %w", err)
		}
		recurring = string(rb)
	}
	return tags, recurring, nil
}
