package store

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/benz9527/bidtree/bid"
)

const DefaultCacheSize = 1024

var _ Backend = (*CachedStore)(nil)

type CacheStats struct {
	Hits   int64
	Misses int64
}

// CachedStore serves Find from an LRU cache of the found bids in front of
// the backend. Every write drops the cached copies it may have changed.
type CachedStore struct {
	Backend
	cache  *lru.Cache[int64, bid.Bid]
	hits   atomic.Int64
	misses atomic.Int64
}

func NewCachedStore(backend Backend, size int) (*CachedStore, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[int64, bid.Bid](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{Backend: backend, cache: cache}, nil
}

func (s *CachedStore) Name() string {
	return s.Backend.Name() + "+lru"
}

func (s *CachedStore) Load(ctx context.Context, bids []bid.Bid, policy DuplicatePolicy) (LoadStats, error) {
	defer s.cache.Purge()
	return s.Backend.Load(ctx, bids, policy)
}

func (s *CachedStore) Find(ctx context.Context, id int64) (bid.Bid, bool, error) {
	if b, ok := s.cache.Get(id); ok {
		s.hits.Add(1)
		return b, true, nil
	}
	s.misses.Add(1)
	b, ok, err := s.Backend.Find(ctx, id)
	if err != nil || !ok {
		return b, ok, err
	}
	s.cache.Add(id, b)
	return b, true, nil
}

func (s *CachedStore) Remove(ctx context.Context, id int64) (bool, error) {
	defer s.cache.Remove(id)
	return s.Backend.Remove(ctx, id)
}

func (s *CachedStore) Clear(ctx context.Context) error {
	defer s.cache.Purge()
	return s.Backend.Clear(ctx)
}

func (s *CachedStore) Close() error {
	s.cache.Purge()
	return s.Backend.Close()
}

func (s *CachedStore) Stats() CacheStats {
	return CacheStats{Hits: s.hits.Load(), Misses: s.misses.Load()}
}

func (s *CachedStore) Len() int {
	return s.cache.Len()
}
