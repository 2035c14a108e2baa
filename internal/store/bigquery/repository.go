package bigquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/pennywise/pennywise/internal/store"
	"google.golang.org/api/iterator"
)

// Repository implements store.TransactionRepository and store.UserRepository
// against a BigQuery dataset.
type Repository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

var (
	_ store.TransactionRepository = (*Repository)(nil)
	_ store.UserRepository        = userRepository{}
)

// NewRepository wraps an existing BigQuery client. The caller owns the
// client's lifecycle.
func NewRepository(client *bigquery.Client, projectID, datasetID string) *Repository {
	return &Repository{client: client, projectID: projectID, datasetID: datasetID}
}

func (r *Repository) table(name string) string {
	return fmt.Sprintf("%s.%s", r.datasetID, name)
}

// runDML runs a parameterized statement and waits for the job to finish.
func (r *Repository) runDML(ctx context.Context, name, stmt string, params []bigquery.QueryParameter) error {
	q := r.client.Query(stmt)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("%s: running query: %w", name, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("%s: waiting for job: %w", name, err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("%s: job error: %w", name, err)
	}
	return nil
}

func (r *Repository) Insert(ctx context.Context, row *store.TransactionRow) error {
	return r.InsertMany(ctx, []*store.TransactionRow{row})
}

func (r *Repository) InsertMany(ctx context.Context, rows []*store.TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	bqRows := make([]*transactionRow, 0, len(rows))
	for _, t := range rows {
		row, err := toTransactionRow(t)
		if err != nil {
			return fmt.Errorf("InsertMany: %w", err)
		}
		bqRows = append(bqRows, row)
	}

	table := r.client.DatasetInProject(r.projectID, r.datasetID).Table(transactionsTable)
	if err := table.Inserter().Put(ctx, bqRows); err != nil {
		return fmt.Errorf("InsertMany: inserting rows: %w", err)
	}
	return nil
}

const transactionSelect = `
	SELECT
		transaction_id, owner_id, description, amount, type,
		category, subcategory, date, tags, notes,
		is_recurring, recurring, ai_parsed, raw_input,
		created_ts, updated_ts
	FROM %s
`

func (r *Repository) GetByID(ctx context.Context, ownerID, id string) (*store.TransactionRow, error) {
	q := r.client.Query(fmt.Sprintf(transactionSelect, r.table(transactionsTable)) + `
		WHERE transaction_id = @id AND owner_id = @owner_id
		LIMIT 1`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "id", Value: id},
		{Name: "owner_id", Value: ownerID},
	}

	rows, err := r.readTransactions(ctx, q, "GetByID")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	return rows[0], nil
}

func (r *Repository) List(ctx context.Context, ownerID string, f store.TransactionFilter) ([]*store.TransactionRow, int, error) {
	where := []string{"owner_id = @owner_id"}
	params := []bigquery.QueryParameter{{Name: "owner_id", Value: ownerID}}

	if f.Category != "" {
		where = append(where, "category = @category")
		params = append(params, bigquery.QueryParameter{Name: "category", Value: f.Category})
	}
	if f.Type != "" {
		where = append(where, "type = @type")
		params = append(params, bigquery.QueryParameter{Name: "type", Value: string(f.Type)})
	}
	if f.StartDate != nil {
		where = append(where, "date >= @start_date")
		params = append(params, bigquery.QueryParameter{Name: "start_date", Value: f.StartDate.UTC()})
	}
	if f.EndDate != nil {
		where = append(where, "date <= @end_date")
		params = append(params, bigquery.QueryParameter{Name: "end_date", Value: f.EndDate.UTC()})
	}
	if f.Search != "" {
		where = append(where, `(
			STRPOS(LOWER(description), @search) > 0
			OR STRPOS(LOWER(category), @search) > 0
			OR STRPOS(LOWER(notes), @search) > 0)`)
		params = append(params, bigquery.QueryParameter{Name: "search", Value: strings.ToLower(f.Search)})
	}
	clause := strings.Join(where, " AND ")

	countQ := r.client.Query(fmt.Sprintf(
		"SELECT COUNT(*) AS total FROM %s WHERE %s", r.table(transactionsTable), clause))
	countQ.Parameters = params

	it, err := countQ.Read(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("List: count read: %w", err)
	}
	var count struct {
		Total int64 `bigquery:"total"`
	}
	if err := it.Next(&count); err != nil && err != iterator.Done {
		return nil, 0, fmt.Errorf("List: count next: %w", err)
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 {
		limit = 20
	}

	q := r.client.Query(fmt.Sprintf(transactionSelect, r.table(transactionsTable)) + `
		WHERE ` + clause + `
		ORDER BY date DESC, created_ts DESC
		LIMIT @limit OFFSET @offset`)
	q.Parameters = append(params,
		bigquery.QueryParameter{Name: "limit", Value: int64(limit)},
		bigquery.QueryParameter{Name: "offset", Value: int64((page - 1) * limit)})

	rows, err := r.readTransactions(ctx, q, "List")
	if err != nil {
		return nil, 0, err
	}
	return rows, int(count.Total), nil
}

// buildUpdateSet turns a partial update into SET clauses and their bound
// parameters. The recurring payload binds as bigquery.NullJSON; a plain
// string parameter is typed STRING and the DML job fails assigning it to
// the JSON column.
func buildUpdateSet(upd store.TransactionUpdate, now time.Time) ([]string, []bigquery.QueryParameter, error) {
	set := []string{"updated_ts = @updated_ts"}
	params := []bigquery.QueryParameter{{Name: "updated_ts", Value: now.UTC()}}

	addSet := func(column, param string, value any) {
		set = append(set, fmt.Sprintf("%s = @%s", column, param))
		params = append(params, bigquery.QueryParameter{Name: param, Value: value})
	}

	if upd.Description != nil {
		addSet("description", "description", *upd.Description)
	}
	if upd.Amount != nil {
		addSet("amount", "amount", *upd.Amount)
	}
	if upd.Type != nil {
		addSet("type", "type", string(*upd.Type))
	}
	if upd.Category != nil {
		addSet("category", "category", *upd.Category)
	}
	if upd.Subcategory != nil {
		addSet("subcategory", "subcategory", *upd.Subcategory)
	}
	if upd.Date != nil {
		addSet("date", "date", upd.Date.UTC())
	}
	if upd.Tags != nil {
		addSet("tags", "tags", *upd.Tags)
	}
	if upd.Notes != nil {
		addSet("notes", "notes", *upd.Notes)
	}
	if upd.IsRecurring != nil {
		addSet("is_recurring", "is_recurring", *upd.IsRecurring)
	}
	if upd.Recurring != nil {
		row, err := toTransactionRow(&store.TransactionRow{Recurring: upd.Recurring})
		if err != nil {
			return nil, nil, err
		}
		addSet("recurring", "recurring", row.Recurring)
	}

	return set, params, nil
}

func (r *Repository) Update(ctx context.Context, ownerID, id string, upd store.TransactionUpdate) (*store.TransactionRow, error) {
	set, params, err := buildUpdateSet(upd, time.Now())
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}
	params = append(params,
		bigquery.QueryParameter{Name: "id", Value: id},
		bigquery.QueryParameter{Name: "owner_id", Value: ownerID})

	// Existence check first so a missing row surfaces as ErrNotFound rather
	// than a zero-row update.
	if _, err := r.GetByID(ctx, ownerID, id); err != nil {
		return nil, err
	}

	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE transaction_id = @id AND owner_id = @owner_id",
		r.table(transactionsTable), strings.Join(set, ", "))
	if err := r.runDML(ctx, "Update", stmt, params); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, ownerID, id)
}

func (r *Repository) Delete(ctx context.Context, ownerID, id string) (*store.TransactionRow, error) {
	row, err := r.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	stmt := fmt.Sprintf("DELETE FROM %s WHERE transaction_id = @id AND owner_id = @owner_id",
		r.table(transactionsTable))
	params := []bigquery.QueryParameter{
		{Name: "id", Value: id},
		{Name: "owner_id", Value: ownerID},
	}
	if err := r.runDML(ctx, "Delete", stmt, params); err != nil {
		return nil, err
	}
	return row, nil
}

func (r *Repository) CategoryCounts(ctx context.Context, ownerID string) ([]store.CategoryCount, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT category, COUNT(*) AS count, SUM(amount) AS total
		FROM %s
		WHERE owner_id = @owner_id
		GROUP BY category
		ORDER BY count DESC, category ASC`, r.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "owner_id", Value: ownerID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("CategoryCounts: query read: %w", err)
	}

	var out []store.CategoryCount
	for {
		var row struct {
			Category string  `bigquery:"category"`
			Count    int64   `bigquery:"count"`
			Total    float64 `bigquery:"total"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CategoryCounts: iter next: %w", err)
		}
		out = append(out, store.CategoryCount{
			Category: row.Category,
			Count:    int(row.Count),
			Total:    row.Total,
		})
	}
	return out, nil
}

func (r *Repository) QueryWindow(ctx context.Context, ownerID string, start, end *time.Time) ([]*store.TransactionRow, error) {
	where := []string{"owner_id = @owner_id"}
	params := []bigquery.QueryParameter{{Name: "owner_id", Value: ownerID}}
	if start != nil {
		where = append(where, "date >= @start_date")
		params = append(params, bigquery.QueryParameter{Name: "start_date", Value: start.UTC()})
	}
	if end != nil {
		where = append(where, "date <= @end_date")
		params = append(params, bigquery.QueryParameter{Name: "end_date", Value: end.UTC()})
	}

	q := r.client.Query(fmt.Sprintf(transactionSelect, r.table(transactionsTable)) + `
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY date ASC, created_ts ASC`)
	q.Parameters = params

	return r.readTransactions(ctx, q, "QueryWindow")
}

func (r *Repository) readTransactions(ctx context.Context, q *bigquery.Query, name string) ([]*store.TransactionRow, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: query read: %w", name, err)
	}

	var out []*store.TransactionRow
	for {
		var row transactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: iter next: %w", name, err)
		}
		t, err := fromTransactionRow(&row)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *Repository) UpsertByGoogleID(ctx context.Context, googleID, email, name, avatarURL string) (*store.UserRow, error) {
	now := time.Now().UTC()

	existing, err := r.findUserByGoogleID(ctx, googleID)
	if err != nil && err != store.ErrNotFound {
		return nil, err
	}

	if existing != nil {
		stmt := fmt.Sprintf(`
			UPDATE %s
			SET name = @name, avatar_url = @avatar_url,
			    last_login_ts = @now, updated_ts = @now
			WHERE user_id = @id`, r.table(usersTable))
		params := []bigquery.QueryParameter{
			{Name: "name", Value: name},
			{Name: "avatar_url", Value: avatarURL},
			{Name: "now", Value: now},
			{Name: "id", Value: existing.ID},
		}
		if err := r.runDML(ctx, "UpsertByGoogleID", stmt, params); err != nil {
			return nil, err
		}
		return r.GetUserByID(ctx, existing.ID)
	}

	id := uuid.NewString()
	stmt := fmt.Sprintf(`
		INSERT %s (
			user_id, google_id, email, name, avatar_url,
			currency, timezone, notifications,
			last_login_ts, created_ts, updated_ts
		)
		VALUES (@id, @google_id, @email, @name, @avatar_url,
			'USD', 'UTC', FALSE, @now, @now, @now)`, r.table(usersTable))
	params := []bigquery.QueryParameter{
		{Name: "id", Value: id},
		{Name: "google_id", Value: googleID},
		{Name: "email", Value: email},
		{Name: "name", Value: name},
		{Name: "avatar_url", Value: avatarURL},
		{Name: "now", Value: now},
	}
	if err := r.runDML(ctx, "UpsertByGoogleID", stmt, params); err != nil {
		return nil, err
	}
	return r.GetUserByID(ctx, id)
}

// GetByID on the user side is exposed as GetUserByID to keep the two
// repository interfaces implementable by one type; see Users().
func (r *Repository) GetUserByID(ctx context.Context, id string) (*store.UserRow, error) {
	return r.readUser(ctx, "user_id = @v", id, "GetUserByID")
}

func (r *Repository) findUserByGoogleID(ctx context.Context, googleID string) (*store.UserRow, error) {
	return r.readUser(ctx, "google_id = @v", googleID, "findUserByGoogleID")
}

func (r *Repository) readUser(ctx context.Context, cond, value, name string) (*store.UserRow, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT user_id, google_id, email, name, avatar_url,
			currency, timezone, notifications,
			last_login_ts, created_ts, updated_ts
		FROM %s WHERE %s LIMIT 1`, r.table(usersTable), cond))
	q.Parameters = []bigquery.QueryParameter{{Name: "v", Value: value}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: query read: %w", name, err)
	}

	var row userRow
	switch err := it.Next(&row); err {
	case nil:
		return fromUserRow(&row), nil
	case iterator.Done:
		return nil, store.ErrNotFound
	default:
		return nil, fmt.Errorf("%s: iter next: %w", name, err)
	}
}

func (r *Repository) UpdateProfile(ctx context.Context, id string, upd store.ProfileUpdate) (*store.UserRow, error) {
	if _, err := r.GetUserByID(ctx, id); err != nil {
		return nil, err
	}

	set := []string{"updated_ts = @now"}
	params := []bigquery.QueryParameter{
		{Name: "now", Value: time.Now().UTC()},
		{Name: "id", Value: id},
	}
	addSet := func(column, param string, value any) {
		set = append(set, fmt.Sprintf("%s = @%s", column, param))
		params = append(params, bigquery.QueryParameter{Name: param, Value: value})
	}

	if upd.Name != nil {
		addSet("name", "name", *upd.Name)
	}
	if upd.AvatarURL != nil {
		addSet("avatar_url", "avatar_url", *upd.AvatarURL)
	}
	if upd.Currency != nil {
		addSet("currency", "currency", *upd.Currency)
	}
	if upd.Timezone != nil {
		addSet("timezone", "timezone", *upd.Timezone)
	}
	if upd.Notifications != nil {
		addSet("notifications", "notifications", *upd.Notifications)
	}

	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE user_id = @id",
		r.table(usersTable), strings.Join(set, ", "))
	if err := r.runDML(ctx, "UpdateProfile", stmt, params); err != nil {
		return nil, err
	}
	return r.GetUserByID(ctx, id)
}

// Users adapts the repository to store.UserRepository, whose GetByID has a
// different signature than the transaction one.
func (r *Repository) Users() store.UserRepository {
	return userRepository{r}
}

type userRepository struct {
	r *Repository
}

func (u userRepository) UpsertByGoogleID(ctx context.Context, googleID, email, name, avatarURL string) (*store.UserRow, error) {
	return u.r.UpsertByGoogleID(ctx, googleID, email, name, avatarURL)
}

func (u userRepository) GetByID(ctx context.Context, id string) (*store.UserRow, error) {
	return u.r.GetUserByID(ctx, id)
}

func (u userRepository) UpdateProfile(ctx context.Context, id string, upd store.ProfileUpdate) (*store.UserRow, error) {
	return u.r.UpdateProfile(ctx, id, upd)
}
