package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/maphash"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const redisKeyPrefix = "geoguard:doc:"

// CacheConfig configures the read-through cache tiers
type CacheConfig struct {
	L1Size int
	L1TTL  time.Duration
	L2TTL  time.Duration
}

// DefaultCacheConfig returns conservative cache settings. Short TTLs bound how
// long another replica's write can stay invisible.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		L1Size: 10000,
		L1TTL:  30 * time.Second,
		L2TTL:  5 * time.Minute,
	}
}

// CacheRecorder receives cache hit and miss notifications
type CacheRecorder interface {
	ObserveCache(tier string, hit bool)
}

// CachedStore is a read-through cache for Get in front of another Store.
// L1 is an in-process expirable LRU, L2 an optional Redis. Writes go to the
// backing store first and then invalidate both tiers; queries are never cached.
type CachedStore struct {
	next     Store
	l1       *lru.LRU[string, *Document]
	redis    *redis.Client
	config   CacheConfig
	recorder CacheRecorder

	seed    maphash.Seed
	stripes [generationStripes]generation
}

const generationStripes = 256

// generation counts invalidations for the keys hashed to a stripe. A fill
// only lands if no invalidation happened since its read began.
type generation struct {
	mu sync.Mutex
	n  uint64
}

// NewCachedStore wraps next with an L1 cache and, if client is non-nil, a Redis L2
func NewCachedStore(next Store, client *redis.Client, config CacheConfig, recorder CacheRecorder) *CachedStore {
	if config.L1Size <= 0 {
		config.L1Size = DefaultCacheConfig().L1Size
	}
	return &CachedStore{
		next:     next,
		l1:       lru.NewLRU[string, *Document](config.L1Size, nil, config.L1TTL),
		redis:    client,
		config:   config,
		recorder: recorder,
		seed:     maphash.MakeSeed(),
	}
}

// NewRedisClient parses a Redis URL and verifies the connection
func NewRedisClient(ctx context.Context, redisURL, password string, db int) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	if db >= 0 {
		opts.DB = db
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func cacheKey(collection, id string) string {
	return collection + ":" + id
}

func (s *CachedStore) observe(tier string, hit bool) {
	if s.recorder != nil {
		s.recorder.ObserveCache(tier, hit)
	}
}

func (s *CachedStore) stripe(key string) *generation {
	return &s.stripes[maphash.String(s.seed, key)%generationStripes]
}

func (s *CachedStore) generationOf(key string) uint64 {
	g := s.stripe(key)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// fill caches doc unless key was invalidated after seen was taken.
// toRedis also writes the L2 copy.
func (s *CachedStore) fill(ctx context.Context, key string, seen uint64, doc *Document, toRedis bool) {
	g := s.stripe(key)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.n != seen {
		return
	}
	s.l1.Add(key, cloneDocument(doc))
	if toRedis && s.redis != nil {
		// best effort; the backing store already answered
		_ = s.setRedis(ctx, key, doc)
	}
}

// Get implements Store.Get
func (s *CachedStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	key := cacheKey(collection, id)

	if doc, ok := s.l1.Get(key); ok {
		s.observe("l1", true)
		return cloneDocument(doc), nil
	}
	s.observe("l1", false)

	seen := s.generationOf(key)
	if s.redis != nil {
		doc, err := s.getRedis(ctx, key)
		if err == nil && doc != nil {
			s.observe("l2", true)
			s.fill(ctx, key, seen, doc, false)
			return doc, nil
		}
		s.observe("l2", false)
	}

	doc, err := s.next.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, key, seen, doc, true)
	return doc, nil
}

func (s *CachedStore) getRedis(ctx context.Context, key string) (*Document, error) {
	data, err := s.redis.Get(ctx, redisKeyPrefix+key).Result()
	if err == redis.Nil {
		return nil, nil // Cache miss
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var doc Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		// If unmarshal fails, delete corrupt data
		s.redis.Del(ctx, redisKeyPrefix+key)
		return nil, fmt.Errorf("failed to unmarshal cached document: %w", err)
	}
	return &doc, nil
}

func (s *CachedStore) setRedis(ctx context.Context, key string, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	return s.redis.Set(ctx, redisKeyPrefix+key, data, s.config.L2TTL).Err()
}

// invalidate drops a document from both tiers and voids fills already in flight
func (s *CachedStore) invalidate(ctx context.Context, collection, id string) {
	key := cacheKey(collection, id)
	g := s.stripe(key)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	s.l1.Remove(key)
	if s.redis != nil {
		s.redis.Del(ctx, redisKeyPrefix+key)
	}
}

// Insert implements Store.Insert
func (s *CachedStore) Insert(ctx context.Context, collection string, data map[string]any) (string, error) {
	return s.next.Insert(ctx, collection, data)
}

// Put implements Store.Put
func (s *CachedStore) Put(ctx context.Context, collection, id string, data map[string]any) error {
	err := s.next.Put(ctx, collection, id, data)
	s.invalidate(ctx, collection, id)
	return err
}

// Query implements Store.Query
func (s *CachedStore) Query(ctx context.Context, q Query) ([]*Document, error) {
	return s.next.Query(ctx, q)
}

// Update implements Store.Update
func (s *CachedStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	err := s.next.Update(ctx, collection, id, fields)
	s.invalidate(ctx, collection, id)
	return err
}

// Delete implements Store.Delete
func (s *CachedStore) Delete(ctx context.Context, collection, id string) error {
	err := s.next.Delete(ctx, collection, id)
	s.invalidate(ctx, collection, id)
	return err
}

// Close closes the backing store and the Redis client
func (s *CachedStore) Close() error {
	s.l1.Purge()
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			return fmt.Errorf("failed to close redis: %w", err)
		}
	}
	return s.next.Close()
}
