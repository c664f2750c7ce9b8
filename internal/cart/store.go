package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Store persists carts.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (Cart, error)
	Save(ctx context.Context, c Cart) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// MemoryStore keeps carts in process memory and drops them once expired.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[uuid.UUID]Cart
	Now   func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: map[uuid.UUID]Cart{}}
}

func (s *MemoryStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Get returns the cart or ErrNotFound when missing or expired.
func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (Cart, error) {
	s.mu.RLock()
	c, ok := s.carts[id]
	s.mu.RUnlock()
	if !ok {
		return Cart{}, ErrNotFound
	}
	now := s.now()
	if !c.Expired(now) {
		return c.clone(), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// A Save may have replaced the cart since the read lock was released.
	if cur, ok := s.carts[id]; ok && !cur.Expired(now) {
		return cur.clone(), nil
	}
	delete(s.carts, id)
	return Cart{}, ErrNotFound
}

// Save stores the cart.
func (s *MemoryStore) Save(_ context.Context, c Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.carts == nil {
		s.carts = map[uuid.UUID]Cart{}
	}
	s.carts[c.ID] = c.clone()
	return nil
}

// Delete removes the cart.
func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, id)
	return nil
}

// RedisStore keeps carts as JSON documents that expire with the cart.
type RedisStore struct {
	R      *redis.Client
	Prefix string
	Now    func() time.Time
}

func (s RedisStore) key(id uuid.UUID) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "cart:"
	}
	return prefix + id.String()
}

func (s RedisStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Get loads a cart.
func (s RedisStore) Get(ctx context.Context, id uuid.UUID) (Cart, error) {
	data, err := s.R.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, fmt.Errorf("load cart: %w", err)
	}
	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return Cart{}, fmt.Errorf("decode cart: %w", err)
	}
	if c.Expired(s.now()) {
		return Cart{}, ErrNotFound
	}
	return c, nil
}

// Save writes the cart with a TTL matching its expiry.
func (s RedisStore) Save(ctx context.Context, c Cart) error {
	ttl := c.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Delete(ctx, c.ID)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.R.Set(ctx, s.key(c.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// Delete removes the cart.
func (s RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.R.Del(ctx, s.key(id)).Err()
}
