package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/medistore/medistore/internal/shared"
)

// TokenStore issues opaque bearer tokens and maps them back to claims.
// A token is "<uuid>.<signature>"; only the uuid is used as the Redis key.
type TokenStore struct {
	client *redis.Client
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client, secret string, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL exposes the configured token lifetime.
func (ts *TokenStore) TTL() time.Duration {
	return ts.ttl
}

// Issue stores claims under a fresh token.
func (ts *TokenStore) Issue(ctx context.Context, claims shared.Claims) (Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return Session{}, fmt.Errorf("auth: token id: %w", err)
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return Session{}, err
	}
	if err := ts.client.Set(ctx, ts.redisKey(id.String()), payload, ts.ttl).Err(); err != nil {
		return Session{}, fmt.Errorf("auth: store token: %w", err)
	}
	return Session{
		Token:     id.String() + "." + ts.sign(id.String()),
		ExpiresAt: ts.now().Add(ts.ttl),
		Claims:    claims,
	}, nil
}

// Lookup verifies token and returns its claims.
func (ts *TokenStore) Lookup(ctx context.Context, token string) (shared.Claims, error) {
	id, err := ts.verify(token)
	if err != nil {
		return shared.Claims{}, err
	}
	payload, err := ts.client.Get(ctx, ts.redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return shared.Claims{}, shared.ErrTokenInvalid
		}
		return shared.Claims{}, err
	}
	var claims shared.Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return shared.Claims{}, shared.ErrTokenInvalid
	}
	return claims, nil
}

// Revoke deletes the token. Unknown tokens are ignored.
func (ts *TokenStore) Revoke(ctx context.Context, token string) error {
	id, err := ts.verify(token)
	if err != nil {
		return err
	}
	if err := ts.client.Del(ctx, ts.redisKey(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (ts *TokenStore) verify(token string) (string, error) {
	id, sig, ok := strings.Cut(token, ".")
	if !ok || id == "" || sig == "" {
		return "", shared.ErrTokenInvalid
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", shared.ErrTokenInvalid
	}
	if !hmac.Equal([]byte(sig), []byte(ts.sign(id))) {
		return "", shared.ErrTokenInvalid
	}
	return id, nil
}

func (ts *TokenStore) sign(id string) string {
	mac := hmac.New(sha256.New, ts.secret)
	mac.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (ts *TokenStore) redisKey(id string) string {
	return "token:" + id
}
