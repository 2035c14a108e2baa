package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pennywise/pennywise/internal/api/middleware"
	"github.com/pennywise/pennywise/internal/parser"
	"github.com/pennywise/pennywise/internal/store"
)

const (
	maxDescriptionLen = 200
	maxNotesLen       = 500
	maxTagLen         = 30
	maxParseTextLen   = 500
)

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	repo   store.TransactionRepository
	parser *parser.Parser
	log    zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repo store.TransactionRepository, p *parser.Parser, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		repo:   repo,
		parser: p,
		log:    log,
	}
}

// transactionRequest is the create/bulk-create payload.
type transactionRequest struct {
	Description string               `json:"description"`
	Amount      float64              `json:"amount"`
	Type        string               `json:"type"`
	Category    string               `json:"category"`
	Subcategory string               `json:"subcategory"`
	Date        string               `json:"date"`
	Tags        []string             `json:"tags"`
	Notes       string               `json:"notes"`
	IsRecurring bool                 `json:"isRecurring"`
	Recurring   *store.RecurringInfo `json:"recurringInfo"`
	AiParsed    bool                 `json:"aiParsed"`
	RawInput    string               `json:"rawInput"`
}

func (req *transactionRequest) validate() []middleware.FieldError {
	var details []middleware.FieldError

	if strings.TrimSpace(req.Description) == "" {
		details = append(details, middleware.FieldError{Field: "description", Message: "description is required"})
	} else if utf8.RuneCountInString(req.Description) > maxDescriptionLen {
		details = append(details, middleware.FieldError{Field: "description", Message: fmt.Sprintf("description must be at most %d characters", maxDescriptionLen)})
	}

	if req.Amount <= 0 {
		details = append(details, middleware.FieldError{Field: "amount", Message: "amount must be greater than zero"})
	}

	if !store.ValidType(store.TransactionType(req.Type)) {
		details = append(details, middleware.FieldError{Field: "type", Message: "type must be income or expense"})
	}

	if strings.TrimSpace(req.Category) == "" {
		details = append(details, middleware.FieldError{Field: "category", Message: "category is required"})
	}

	if req.Date != "" {
		if _, err := parseDate(req.Date); err != nil {
			details = append(details, middleware.FieldError{Field: "date", Message: "date must be YYYY-MM-DD or RFC 3339"})
		}
	}

	for _, tag := range req.Tags {
		if utf8.RuneCountInString(tag) > maxTagLen {
			details = append(details, middleware.FieldError{Field: "tags", Message: fmt.Sprintf("tags must be at most %d characters", maxTagLen)})
			break
		}
	}

	if utf8.RuneCountInString(req.Notes) > maxNotesLen {
		details = append(details, middleware.FieldError{Field: "notes", Message: fmt.Sprintf("notes must be at most %d characters", maxNotesLen)})
	}

	return details
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// toRow converts a validated request into a row owned by ownerID. Tags are
// stored trimmed and lower-cased.
func (req *transactionRequest) toRow(ownerID string) *store.TransactionRow {
	now := time.Now()

	date := now
	if req.Date != "" {
		if parsed, err := parseDate(req.Date); err == nil {
			date = parsed
		}
	}

	var tags []string
	for _, tag := range req.Tags {
		if t := strings.ToLower(strings.TrimSpace(tag)); t != "" {
			tags = append(tags, t)
		}
	}

	return &store.TransactionRow{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Description: req.Description,
		Amount:      req.Amount,
		Type:        store.TransactionType(req.Type),
		Category:    req.Category,
		Subcategory: req.Subcategory,
		Date:        date,
		Tags:        tags,
		Notes:       req.Notes,
		IsRecurring: req.IsRecurring,
		Recurring:   req.Recurring,
		AiParsed:    req.AiParsed,
		RawInput:    req.RawInput,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// List handles GET /transactions
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := middleware.OwnerID(ctx)

	query := r.URL.Query()
	filter := store.TransactionFilter{
		Category: query.Get("category"),
		Type:     store.TransactionType(query.Get("type")),
		Search:   query.Get("search"),
		Page:     1,
		Limit:    20,
	}

	if pageStr := query.Get("page"); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			filter.Page = page
		}
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if s := query.Get("startDate"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid startDate format")
			return
		}
		filter.StartDate = &t
	}
	if s := query.Get("endDate"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid endDate format")
			return
		}
		filter.EndDate = &t
	}

	rows, total, err := h.repo.List(ctx, ownerID, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	pages := (total + filter.Limit - 1) / filter.Limit
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": rows,
		"pagination": map[string]int{
			"page":  filter.Page,
			"limit": filter.Limit,
			"total": total,
			"pages": pages,
		},
	})
}

// Get handles GET /transactions/{id}
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	row, err := h.repo.GetByID(ctx, middleware.OwnerID(ctx), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		h.log.Error().Err(err).Str("transaction_id", id).Msg("Failed to get transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, row)
}

// Create handles POST /transactions
func (h *TransactionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if details := req.validate(); len(details) > 0 {
		middleware.WriteValidationError(w, details)
		return
	}

	row := req.toRow(middleware.OwnerID(ctx))
	if err := h.repo.Insert(ctx, row); err != nil {
		h.log.Error().Err(err).Msg("Failed to insert transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, row)
}

// CreateBulk handles POST /transactions/bulk
func (h *TransactionsHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Transactions []transactionRequest `json:"transactions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Transactions) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "transactions array is required")
		return
	}

	// Same per-item validation as single create; one bad item rejects the
	// whole batch.
	var details []middleware.FieldError
	for i := range req.Transactions {
		for _, d := range req.Transactions[i].validate() {
			details = append(details, middleware.FieldError{
				Field:   fmt.Sprintf("transactions[%d].%s", i, d.Field),
				Message: d.Message,
			})
		}
	}
	if len(details) > 0 {
		middleware.WriteValidationError(w, details)
		return
	}

	ownerID := middleware.OwnerID(ctx)
	rows := make([]*store.TransactionRow, 0, len(req.Transactions))
	for i := range req.Transactions {
		rows = append(rows, req.Transactions[i].toRow(ownerID))
	}

	if err := h.repo.InsertMany(ctx, rows); err != nil {
		h.log.Error().Err(err).Int("count", len(rows)).Msg("Failed to bulk insert transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"transactions": rows,
		"count":        len(rows),
	})
}

// Update handles PUT /transactions/{id}
func (h *TransactionsHandler) Update(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	var req struct {
		Description *string              `json:"description"`
		Amount      *float64             `json:"amount"`
		Type        *string              `json:"type"`
		Category    *string              `json:"category"`
		Subcategory *string              `json:"subcategory"`
		Date        *string              `json:"date"`
		Tags        *[]string            `json:"tags"`
		Notes       *string              `json:"notes"`
		IsRecurring *bool                `json:"isRecurring"`
		Recurring   *store.RecurringInfo `json:"recurringInfo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var details []middleware.FieldError
	upd := store.TransactionUpdate{
		Subcategory: req.Subcategory,
		Notes:       req.Notes,
		IsRecurring: req.IsRecurring,
		Recurring:   req.Recurring,
	}

	if req.Description != nil {
		if strings.TrimSpace(*req.Description) == "" || len(*req.Description) > maxDescriptionLen {
			details = append(details, middleware.FieldError{Field: "description", Message: fmt.Sprintf("description must be 1-%d characters", maxDescriptionLen)})
		}
		upd.Description = req.Description
	}
	if req.Amount != nil {
		if *req.Amount <= 0 {
			details = append(details, middleware.FieldError{Field: "amount", Message: "amount must be greater than zero"})
		}
		upd.Amount = req.Amount
	}
	if req.Type != nil {
		t := store.TransactionType(*req.Type)
		if !store.ValidType(t) {
			details = append(details, middleware.FieldError{Field: "type", Message: "type must be income or expense"})
		}
		upd.Type = &t
	}
	if req.Category != nil {
		if strings.TrimSpace(*req.Category) == "" {
			details = append(details, middleware.FieldError{Field: "category", Message: "category cannot be empty"})
		}
		upd.Category = req.Category
	}
	if req.Date != nil {
		t, err := parseDate(*req.Date)
		if err != nil {
			details = append(details, middleware.FieldError{Field: "date", Message: "date must be YYYY-MM-DD or RFC 3339"})
		} else {
			upd.Date = &t
		}
	}
	if req.Notes != nil && len(*req.Notes) > maxNotesLen {
		details = append(details, middleware.FieldError{Field: "notes", Message: fmt.Sprintf("notes must be at most %d characters", maxNotesLen)})
	}
	if req.Tags != nil {
		tags := make([]string, 0, len(*req.Tags))
		for _, tag := range *req.Tags {
			t := strings.ToLower(strings.TrimSpace(tag))
			if len(t) > maxTagLen {
				details = append(details, middleware.FieldError{Field: "tags", Message: fmt.Sprintf("tags must be at most %d characters", maxTagLen)})
				break
			}
			if t != "" {
				tags = append(tags, t)
			}
		}
		upd.Tags = &tags
	}

	if len(details) > 0 {
		middleware.WriteValidationError(w, details)
		return
	}

	row, err := h.repo.Update(ctx, middleware.OwnerID(ctx), id, upd)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		h.log.Error().Err(err).Str("transaction_id", id).Msg("Failed to update transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, row)
}

// Delete handles DELETE /transactions/{id}
func (h *TransactionsHandler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	row, err := h.repo.Delete(ctx, middleware.OwnerID(ctx), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		h.log.Error().Err(err).Str("transaction_id", id).Msg("Failed to delete transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Transaction deleted",
		"transaction": row,
	})
}

// Parse handles POST /transactions/parse
func (h *TransactionsHandler) Parse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		middleware.WriteValidationError(w, []middleware.FieldError{{Field: "text", Message: "text is required"}})
		return
	}
	if utf8.RuneCountInString(text) > maxParseTextLen {
		middleware.WriteValidationError(w, []middleware.FieldError{{Field: "text", Message: fmt.Sprintf("text must be at most %d characters", maxParseTextLen)}})
		return
	}

	// The parser absorbs every failure mode into the keyword fallback, so
	// this endpoint never reports "could not understand the text".
	parsed := h.parser.ParseAll(ctx, text)

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"parsedTransactions": parsed,
		"isMultiple":         len(parsed) > 1,
		"count":              len(parsed),
	})
}

// CategoriesList handles GET /transactions/categories/list
func (h *TransactionsHandler) CategoriesList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	counts, err := h.repo.CategoryCounts(ctx, middleware.OwnerID(ctx))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list categories")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": counts,
		"count":      len(counts),
	})
}
