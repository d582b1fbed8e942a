package anonymous

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"printstore/internal/storage"
)

var ErrInvalidToken = errors.New("invalid token")

// DefaultTTL is how long an unused session token stays valid.
const DefaultTTL = 30 * 24 * time.Hour

// Session identifies an anonymous shopper. ID keys the shopper's cart.
type Session struct {
	Token      string    `json:"token"`
	ID         string    `json:"sessionId"`
	ExpiresAt  time.Time `json:"expiresAt"`
	TTLSeconds int       `json:"ttlSeconds"`
}

type Service struct {
	tokens *tokenManager
	ttl    time.Duration
}

type Option func(*Service)

// WithStore persists tokens in store, typically the backend that holds the
// carts, so a restarted process still resolves them.
func WithStore(store storage.Backend) Option {
	return func(s *Service) {
		s.tokens.store = store
	}
}

func New(ttl time.Duration, opts ...Option) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Service{
		tokens: newTokenManager(time.Now, nil),
		ttl:    ttl,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Issue starts a new shopper session.
func (s *Service) Issue(ctx context.Context) (Session, error) {
	id := uuid.NewString()
	token, expires, err := s.tokens.Issue(ctx, id, s.ttl)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ID: id, ExpiresAt: expires, TTLSeconds: s.TTLSeconds()}, nil
}

// Lookup resolves a token to its session id and slides its expiry forward.
func (s *Service) Lookup(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken
	}
	meta, ok, err := s.tokens.Touch(ctx, token, s.ttl)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrInvalidToken
	}
	return meta.SessionID, nil
}

// Sweep drops expired tokens, and tokens idle longer than idle when a store
// backs them, from memory. It returns the affected session ids so callers can
// release per-session state.
func (s *Service) Sweep(idle time.Duration) []string {
	return s.tokens.Sweep(idle)
}

func (s *Service) TTLSeconds() int {
	return int(s.ttl.Seconds())
}
