package anonymous

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"printstore/internal/storage"
)

const tokenKeyPrefix = "session:"

// touchPersistEvery limits how often a sliding expiry is written back.
const touchPersistEvery = time.Minute

type tokenMeta struct {
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// tokenManager maps opaque tokens to session ids. Entries are cached in
// memory and written through to store when one is configured, so tokens
// survive a restart.
type tokenManager struct {
	mu     sync.Mutex
	now    func() time.Time
	tokens map[string]cachedToken
	store  storage.Backend
}

type cachedToken struct {
	meta tokenMeta
	seen time.Time
}

func newTokenManager(now func() time.Time, store storage.Backend) *tokenManager {
	return &tokenManager{
		now:    now,
		tokens: make(map[string]cachedToken),
		store:  store,
	}
}

func tokenKey(token string) string {
	return tokenKeyPrefix + token
}

func (m *tokenManager) Issue(ctx context.Context, sessionID string, ttl time.Duration) (string, time.Time, error) {
	token, err := randomToken()
	if err != nil {
		return "", time.Time{}, err
	}
	meta := tokenMeta{
		SessionID: sessionID,
		ExpiresAt: m.now().Add(ttl),
	}
	if err := m.persist(ctx, token, meta); err != nil {
		return "", time.Time{}, err
	}
	m.remember(token, meta)
	return token, meta.ExpiresAt, nil
}

// Touch validates token and, if still live, extends it by ttl. Unknown and
// expired tokens report ok=false; err is only set when the store fails.
func (m *tokenManager) Touch(ctx context.Context, token string, ttl time.Duration) (tokenMeta, bool, error) {
	meta, ok, err := m.lookup(ctx, token)
	if err != nil || !ok {
		return tokenMeta{}, false, err
	}

	now := m.now()
	if now.After(meta.ExpiresAt) {
		m.drop(ctx, token)
		return tokenMeta{}, false, nil
	}

	next := meta
	next.ExpiresAt = now.Add(ttl)
	if next.ExpiresAt.Sub(meta.ExpiresAt) >= touchPersistEvery {
		if err := m.persist(ctx, token, next); err != nil {
			return tokenMeta{}, false, err
		}
	} else {
		next.ExpiresAt = meta.ExpiresAt
	}
	m.remember(token, next)
	return next, true, nil
}

// Sweep evicts expired tokens from memory and returns their session ids.
// With a store configured, tokens unused for idle are evicted as well; they
// reload from the store on next use.
func (m *tokenManager) Sweep(idle time.Duration) []string {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	var gone []string
	for token, c := range m.tokens {
		expired := now.After(c.meta.ExpiresAt)
		stale := m.store != nil && idle > 0 && now.Sub(c.seen) > idle
		if expired || stale {
			gone = append(gone, c.meta.SessionID)
			delete(m.tokens, token)
		}
	}
	return gone
}

func (m *tokenManager) remember(token string, meta tokenMeta) {
	m.mu.Lock()
	m.tokens[token] = cachedToken{meta: meta, seen: m.now()}
	m.mu.Unlock()
}

func (m *tokenManager) lookup(ctx context.Context, token string) (tokenMeta, bool, error) {
	m.mu.Lock()
	c, ok := m.tokens[token]
	m.mu.Unlock()
	if ok || m.store == nil {
		return c.meta, ok, nil
	}

	var meta tokenMeta
	raw, err := m.store.Read(ctx, tokenKey(token))
	if errors.Is(err, storage.ErrSlotEmpty) {
		return tokenMeta{}, false, nil
	}
	if err != nil {
		return tokenMeta{}, false, fmt.Errorf("read session: %w", err)
	}
	if err := json.Unmarshal(raw, &meta); err != nil || meta.SessionID == "" {
		m.drop(ctx, token)
		return tokenMeta{}, false, nil
	}
	return meta, true, nil
}

func (m *tokenManager) persist(ctx context.Context, token string, meta tokenMeta) error {
	if m.store == nil {
		return nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := m.store.Write(ctx, tokenKey(token), raw); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (m *tokenManager) drop(ctx context.Context, token string) {
	m.mu.Lock()
	delete(m.tokens, token)
	m.mu.Unlock()
	if m.store != nil {
		_ = m.store.Delete(ctx, tokenKey(token))
	}
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
