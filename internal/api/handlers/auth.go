package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pennywise/pennywise/internal/api/middleware"
	"github.com/pennywise/pennywise/internal/auth"
	"github.com/pennywise/pennywise/internal/store"
)

// AuthHandler handles the sign-in, token, and profile endpoints.
type AuthHandler struct {
	svc *auth.Service
	log zerolog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(svc *auth.Service, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, log: log}
}

// GoogleLogin handles GET /auth/google
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"url":   h.svc.LoginURL(state),
		"state": state,
	})
}

// GoogleCallback handles GET /auth/google/callback
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if errStr := r.URL.Query().Get("error"); errStr != "" {
		middleware.WriteError(w, http.StatusBadRequest, "OAuth error: "+errStr)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Authorization code is required")
		return
	}

	session, err := h.svc.HandleCallback(ctx, code)
	if err != nil {
		h.log.Error().Err(err).Msg("OAuth callback failed")
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, session)
}

// Profile handles GET /auth/profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.svc.Profile(ctx, middleware.OwnerID(ctx))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "User not found")
			return
		}
		h.log.Error().Err(err).Msg("Failed to load profile")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, user)
}

// UpdateProfile handles PUT /auth/profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Name          *string `json:"name"`
		AvatarURL     *string `json:"avatarUrl"`
		Currency      *string `json:"currency"`
		Timezone      *string `json:"timezone"`
		Notifications *bool   `json:"notifications"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		middleware.WriteValidationError(w, []middleware.FieldError{{Field: "name", Message: "name cannot be empty"}})
		return
	}

	user, err := h.svc.UpdateProfile(ctx, middleware.OwnerID(ctx), store.ProfileUpdate{
		Name:          req.Name,
		AvatarURL:     req.AvatarURL,
		Currency:      req.Currency,
		Timezone:      req.Timezone,
		Notifications: req.Notifications,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "User not found")
			return
		}
		h.log.Error().Err(err).Msg("Failed to update profile")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, user)
}

// Logout handles POST /auth/logout. Tokens are stateless, so logout is the
// client discarding its token; the endpoint exists for API symmetry.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// VerifyToken handles POST /auth/verify-token
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		middleware.WriteError(w, http.StatusBadRequest, "token is required")
		return
	}

	userID, err := h.svc.VerifyToken(req.Token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenMalformed) {
			middleware.WriteError(w, http.StatusUnauthorized, "Malformed token")
		} else {
			middleware.WriteError(w, http.StatusForbidden, "Invalid or expired token")
		}
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"valid":  true,
		"userId": userID,
	})
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		middleware.WriteError(w, http.StatusBadRequest, "token is required")
		return
	}

	fresh, err := h.svc.Refresh(req.Token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenMalformed) {
			middleware.WriteError(w, http.StatusUnauthorized, "Malformed token")
		} else {
			middleware.WriteError(w, http.StatusForbidden, "Invalid or expired token")
		}
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"token": fresh})
}
