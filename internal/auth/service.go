package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"aigate.org/internal/obs"
)

const defaultLoginTimeout = 5 * time.Second

// Service orchestrates the credential store, password verifier and token
// codec to turn an (email, password) pair into an issued token. Safe for
// concurrent use; the only shared mutable resource is the backing store.
type Service struct {
	store Store
	codec *Codec
	now   func() time.Time

	loginTimeout time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithLoginTimeout bounds the store round-trips of a single login.
func WithLoginTimeout(d time.Duration) ServiceOption {
	return func(s *Service) error {
		if d <= 0 {
			return errors.New("auth: login timeout must be greater than zero")
		}
		s.loginTimeout = d
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(store Store, codec *Codec, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: codec is required")
	}
	svc := &Service{
		store:        store,
		codec:        codec,
		now:          time.Now,
		loginTimeout: defaultLoginTimeout,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// LoginResult is the successful outcome of a login.
type LoginResult struct {
	AccessToken string
	ExpiresIn   int
	User        PublicUser
}

// Login authenticates the credentials and issues an access token.
//
// Unknown email, inactive account and wrong password all collapse into
// ErrInvalidCredentials so responses cannot be used for user enumeration.
// Store faults surface as ErrServer with full detail logged internally only.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrMissingFields
	}

	ctx, cancel := context.WithTimeout(ctx, s.loginTimeout)
	defer cancel()

	user, err := s.store.FindActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		obs.LogError("login: store lookup failed", err, nil)
		return nil, ErrServer
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, _, err := s.codec.Issue(IdentityFromUser(user))
	if err != nil {
		obs.LogError("login: token issuance failed", err, nil)
		return nil, ErrServer
	}

	// Best-effort bookkeeping: a failed update is logged, never surfaced.
	if err := s.store.TouchLastLogin(ctx, user.ID); err != nil {
		obs.LogError("login: last-login update failed", err, map[string]any{"user_id": user.ID})
	}

	return &LoginResult{
		AccessToken: token,
		ExpiresIn:   int(s.codec.TTL().Seconds()),
		User:        user.Public(),
	}, nil
}

// Validate checks an access token. Pure computation, no store round-trip;
// the gate answers "who is this", not "may they do X".
func (s *Service) Validate(token string) (*Claims, error) {
	return s.codec.Validate(token)
}
