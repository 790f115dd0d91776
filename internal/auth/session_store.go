package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"idgate/internal/cache"
)

const (
	blacklistKeyPrefix = "blacklist:token:"
	sessionKeyPrefix   = "session:"
)

// SessionInfo records the last observed client activity for a user.
type SessionInfo struct {
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// SessionStoreInterface defines revocation and session bookkeeping operations.
type SessionStoreInterface interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsTokenBlacklisted(ctx context.Context, jti string) (bool, error)
	TouchSession(ctx context.Context, userID string, info SessionInfo) error
	GetSession(ctx context.Context, userID string) (*SessionInfo, error)
}

// SessionStore keeps a revocation deny-list and per-user session records in
// Redis. Absence means valid: the deny-list supplements stateless token
// validation and a redis outage never blocks authentication.
type SessionStore struct {
	cache      *cache.Client
	sessionTTL time.Duration
}

// Ensure SessionStore implements SessionStoreInterface
var _ SessionStoreInterface = (*SessionStore)(nil)

// NewSessionStore creates a new session store. Session records expire after
// sessionTTL; the refresh-token lifetime is the natural choice, since a user
// idle longer than that has to authenticate again anyway.
func NewSessionStore(cache *cache.Client, sessionTTL time.Duration) *SessionStore {
	return &SessionStore{cache: cache, sessionTTL: sessionTTL}
}

// BlacklistToken revokes a token id until its natural expiry.
func (s *SessionStore) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // already expired by clock
	}
	return s.cache.Set(ctx, blacklistKeyPrefix+jti, []byte("1"), ttl)
}

// IsTokenBlacklisted checks whether a token id has been revoked.
func (s *SessionStore) IsTokenBlacklisted(ctx context.Context, jti string) (bool, error) {
	return s.cache.Exists(ctx, blacklistKeyPrefix+jti)
}

// TouchSession records the latest activity for a user.
func (s *SessionStore) TouchSession(ctx context.Context, userID string, info SessionInfo) error {
	payload, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.cache.Set(ctx, sessionKeyPrefix+userID, payload, s.sessionTTL)
}

// GetSession returns the last recorded activity for a user, nil if none.
func (s *SessionStore) GetSession(ctx context.Context, userID string) (*SessionInfo, error) {
	data, err := s.cache.Get(ctx, sessionKeyPrefix+userID)
	if err != nil || data == nil {
		return nil, nil
	}
	var info SessionInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &info, nil
}
