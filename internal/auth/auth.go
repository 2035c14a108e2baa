// Package auth handles Google sign-in and bearer-token issuance. The OAuth
// client is constructed once at startup and injected; there is no ambient
// global state.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2v2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/pennywise/pennywise/internal/store"
)

// Service performs the OAuth code exchange and owns token issuance.
type Service struct {
	oauth  *oauth2.Config
	users  store.UserRepository
	secret []byte
	ttl    time.Duration
	log    zerolog.Logger
	now    func() time.Time

	// fetchUserinfo is swappable in tests; the default asks Google.
	fetchUserinfo func(ctx context.Context, ts oauth2.TokenSource) (*oauth2v2.Userinfo, error)
}

// Config carries the OAuth client settings and token parameters.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	JWTSecret    string
	JWTTTL       time.Duration
}

// NewService builds the auth service with an explicitly constructed OAuth
// client.
func NewService(cfg Config, users store.UserRepository, log zerolog.Logger) *Service {
	return &Service{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		users:         users,
		secret:        []byte(cfg.JWTSecret),
		ttl:           cfg.JWTTTL,
		log:           log,
		now:           time.Now,
		fetchUserinfo: googleUserinfo,
	}
}

func googleUserinfo(ctx context.Context, ts oauth2.TokenSource) (*oauth2v2.Userinfo, error) {
	svc, err := oauth2v2.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("userinfo service: %w", err)
	}
	return svc.Userinfo.Get().Context(ctx).Do()
}

// LoginURL returns the Google consent URL for the given anti-forgery state.
func (s *Service) LoginURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Session is a successful login: the bearer token and its user.
type Session struct {
	Token string         `json:"token"`
	User  *store.UserRow `json:"user"`
}

// HandleCallback exchanges the authorization code, fetches the Google
// identity, upserts the user record, and issues a bearer token.
func (s *Service) HandleCallback(ctx context.Context, code string) (*Session, error) {
	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("HandleCallback: code exchange: %w", err)
	}

	info, err := s.fetchUserinfo(ctx, s.oauth.TokenSource(ctx, tok))
	if err != nil {
		return nil, fmt.Errorf("HandleCallback: fetching userinfo: %w", err)
	}
	if info.Id == "" || info.Email == "" {
		return nil, fmt.Errorf("HandleCallback: userinfo missing id or email")
	}

	user, err := s.users.UpsertByGoogleID(ctx, info.Id, info.Email, info.Name, info.Picture)
	if err != nil {
		return nil, fmt.Errorf("HandleCallback: upserting user: %w", err)
	}

	bearer, err := issueToken(s.secret, user.ID, s.ttl, s.now())
	if err != nil {
		return nil, fmt.Errorf("HandleCallback: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User logged in")

	return &Session{Token: bearer, User: user}, nil
}

// VerifyToken validates a bearer token and returns the user id it names.
// The error distinguishes malformed tokens from expired/invalid ones.
func (s *Service) VerifyToken(raw string) (string, error) {
	return verifyToken(s.secret, raw)
}

// Refresh validates an unexpired token and issues a fresh one for the same
// user.
func (s *Service) Refresh(raw string) (string, error) {
	userID, err := s.VerifyToken(raw)
	if err != nil {
		return "", err
	}
	return issueToken(s.secret, userID, s.ttl, s.now())
}

// Profile returns the user record behind a token subject.
func (s *Service) Profile(ctx context.Context, userID string) (*store.UserRow, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateProfile applies a partial profile update.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd store.ProfileUpdate) (*store.UserRow, error) {
	return s.users.UpdateProfile(ctx, userID, upd)
}
