package sunat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"github.com/jhoicas/tributa-api/internal/application/taxpayer"
)

// expirySkew margen para no usar un token a punto de vencer.
const expirySkew = 30 * time.Second

// TokenStore caché de tokens SIRE por owner. Get devuelve nil si no hay token vigente.
type TokenStore interface {
	Get(ctx context.Context, ownerID string) (*oauth2.Token, error)
	Set(ctx context.Context, ownerID string, tok *oauth2.Token) error
	Invalidate(ctx context.Context, ownerID string) error
}

var (
	_ TokenStore                = (*MemoryTokenStore)(nil)
	_ TokenStore                = (*RedisTokenStore)(nil)
	_ taxpayer.TokenInvalidator = (*MemoryTokenStore)(nil)
	_ taxpayer.TokenInvalidator = (*RedisTokenStore)(nil)
)

func usable(tok *oauth2.Token, now time.Time) bool {
	if tok == nil || tok.AccessToken == "" {
		return false
	}
	return tok.Expiry.IsZero() || tok.Expiry.After(now.Add(expirySkew))
}

// MemoryTokenStore caché local del proceso.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*oauth2.Token
	now    func() time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]*oauth2.Token), now: time.Now}
}

func (s *MemoryTokenStore) Get(ctx context.Context, ownerID string) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := s.tokens[ownerID]
	if !usable(tok, s.now()) {
		delete(s.tokens, ownerID)
		return nil, nil
	}
	cp := *tok
	return &cp, nil
}

func (s *MemoryTokenStore) Set(ctx context.Context, ownerID string, tok *oauth2.Token) error {
	cp := *tok
	s.mu.Lock()
	s.tokens[ownerID] = &cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryTokenStore) Invalidate(ctx context.Context, ownerID string) error {
	s.mu.Lock()
	delete(s.tokens, ownerID)
	s.mu.Unlock()
	return nil
}

// RedisTokenStore caché compartida entre réplicas; el TTL de la clave sigue al vencimiento del token.
type RedisTokenStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis crea el cliente desde una URL redis:// y valida la conexión.
func NewRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func NewRedisTokenStore(rdb *redis.Client, prefix string) *RedisTokenStore {
	if prefix == "" {
		prefix = "tributa"
	}
	return &RedisTokenStore{rdb: rdb, prefix: prefix}
}

type cachedToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Expiry      time.Time `json:"expiry"`
}

func (s *RedisTokenStore) key(ownerID string) string {
	return s.prefix + ":sunat:token:" + ownerID
}

func (s *RedisTokenStore) Get(ctx context.Context, ownerID string) (*oauth2.Token, error) {
	raw, err := s.rdb.Get(ctx, s.key(ownerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get token: %w", err)
	}
	var c cachedToken
	if err := json.Unmarshal(raw, &c); err != nil {
		// entrada corrupta: se descarta
		_ = s.rdb.Del(ctx, s.key(ownerID)).Err()
		return nil, nil
	}
	tok := &oauth2.Token{AccessToken: c.AccessToken, TokenType: c.TokenType, Expiry: c.Expiry}
	if !usable(tok, time.Now()) {
		return nil, nil
	}
	return tok, nil
}

func (s *RedisTokenStore) Set(ctx context.Context, ownerID string, tok *oauth2.Token) error {
	b, err := json.Marshal(cachedToken{AccessToken: tok.AccessToken, TokenType: tok.TokenType, Expiry: tok.Expiry})
	if err != nil {
		return err
	}
	var ttl time.Duration
	if !tok.Expiry.IsZero() {
		ttl = time.Until(tok.Expiry) - expirySkew
		if ttl <= 0 {
			return nil
		}
	}
	if err := s.rdb.Set(ctx, s.key(ownerID), b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set token: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) Invalidate(ctx context.Context, ownerID string) error {
	if err := s.rdb.Del(ctx, s.key(ownerID)).Err(); err != nil {
		return fmt.Errorf("redis del token: %w", err)
	}
	return nil
}
