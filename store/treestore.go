package store

import (
	"context"
	"strings"
	"sync"

	"github.com/benz9527/bidtree/bid"
	"github.com/benz9527/bidtree/lib/tree"
)

type TreeKind string

const (
	RBTreeKind TreeKind = "rbtree"
	BSTreeKind TreeKind = "bstree"
)

func ParseTreeKind(kind string) (TreeKind, error) {
	switch k := TreeKind(strings.ToLower(strings.TrimSpace(kind))); k {
	case "", RBTreeKind:
		return RBTreeKind, nil
	case BSTreeKind:
		return BSTreeKind, nil
	default:
	}
	return "", ErrUnknownBackend
}

var _ Backend = (*TreeStore)(nil)

// TreeStore keeps the bids in an in-memory ordered tree. The trees are not
// thread safe, so every operation holds the mutex, reads included.
type TreeStore struct {
	mu     sync.Mutex
	kind   TreeKind
	rbt    tree.RBTree[bid.Bid]
	tree   tree.OrderedTree[bid.Bid]
	closed bool
}

func NewTreeStore(kind TreeKind) (*TreeStore, error) {
	s := &TreeStore{kind: kind}
	switch kind {
	case RBTreeKind:
		s.rbt = tree.NewRBTree[bid.Bid](bid.Compare)
		s.tree = s.rbt
	case BSTreeKind:
		s.tree = tree.NewBSTree[bid.Bid](bid.Compare)
	default:
		return nil, ErrUnknownBackend
	}
	return s, nil
}

func (s *TreeStore) Name() string {
	return string(s.kind)
}

const ctxCheckInterval = 1024

func (s *TreeStore) Load(ctx context.Context, bids []bid.Bid, policy DuplicatePolicy) (LoadStats, error) {
	if err := checkPolicy(policy); err != nil {
		return LoadStats{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return LoadStats{}, ErrClosed
	}

	stats := LoadStats{}
	for i, b := range bids {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}
		if s.tree.Insert(b) {
			stats.Inserted++
			continue
		}
		if policy == IgnoreDuplicates {
			stats.Ignored++
			continue
		}
		// The key of a node is never rewritten in place, replacing is a
		// removal and a fresh insertion.
		s.tree.Remove(b)
		s.tree.Insert(b)
		stats.Replaced++
	}
	return stats, nil
}

func (s *TreeStore) List(ctx context.Context) ([]bid.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.tree.Keys(), nil
}

func (s *TreeStore) Find(ctx context.Context, id int64) (bid.Bid, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return bid.Bid{}, false, ErrClosed
	}
	b, ok := s.tree.Search(bid.Probe(id))
	return b, ok, nil
}

func (s *TreeStore) Remove(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	return s.tree.Remove(bid.Probe(id)), nil
}

func (s *TreeStore) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.tree.Len(), nil
}

func (s *TreeStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.tree.Release()
	return nil
}

func (s *TreeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.tree.Release()
		s.closed = true
	}
	return nil
}

func (s *TreeStore) Height() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Height()
}

// Validate checks the order of the keys, plus the red black properties for
// the rbtree.
func (s *TreeStore) Validate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rbt != nil {
		return tree.RBTreeValidate(s.rbt)
	}
	return tree.BSTOrderValidate(s.tree)
}
