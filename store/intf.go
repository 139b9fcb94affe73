package store

import (
	"context"
	"strconv"

	"github.com/benz9527/bidtree/bid"
)

type DuplicatePolicy uint8

const (
	// IgnoreDuplicates keeps the stored record, the first one wins inside a
	// single load.
	IgnoreDuplicates DuplicatePolicy = iota
	// ReplaceDuplicates overwrites the stored record, the last one wins
	// inside a single load.
	ReplaceDuplicates
)

func (p DuplicatePolicy) String() string {
	switch p {
	case IgnoreDuplicates:
		return "ignore"
	case ReplaceDuplicates:
		return "replace"
	default:
	}
	return "policy(" + strconv.Itoa(int(p)) + ")"
}

type LoadStats struct {
	Inserted int
	Replaced int
	Ignored  int
}

func (s LoadStats) Total() int {
	return s.Inserted + s.Replaced + s.Ignored
}

// Backend stores the bids ordered by ID. The absent ID is never an error,
// the found flag or the removed flag reports it.
type Backend interface {
	Name() string
	Load(ctx context.Context, bids []bid.Bid, policy DuplicatePolicy) (LoadStats, error)
	List(ctx context.Context) ([]bid.Bid, error)
	Find(ctx context.Context, id int64) (bid.Bid, bool, error)
	Remove(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context) (int64, error)
	Clear(ctx context.Context) error
	Close() error
}

type StoreErr string

const (
	ErrClosed            StoreErr = "bid store closed"
	ErrUnknownBackend    StoreErr = "unknown bid store backend"
	ErrUnknownPolicy     StoreErr = "unknown duplicate policy"
	ErrProtectedColumn   StoreErr = "bid store column is protected"
	ErrUnsupportedType   StoreErr = "bid store column type unsupported"
	ErrMalformedRecord   StoreErr = "bid store malformed record"
	ErrInvalidIdentifier StoreErr = "bid store invalid identifier"
)

func (err StoreErr) Error() string {
	return string(err)
}

// dedupe applies the policy to the duplicated IDs inside the bids. The
// result keeps the position of the first occurrence.
func dedupe(bids []bid.Bid, policy DuplicatePolicy) ([]bid.Bid, int) {
	pos := make(map[int64]int, len(bids))
	uniq := make([]bid.Bid, 0, len(bids))
	dups := 0
	for _, b := range bids {
		i, ok := pos[b.ID]
		if !ok {
			pos[b.ID] = len(uniq)
			uniq = append(uniq, b)
			continue
		}
		dups++
		if policy == ReplaceDuplicates {
			uniq[i] = b
		}
	}
	return uniq, dups
}

func checkPolicy(policy DuplicatePolicy) error {
	if policy != IgnoreDuplicates && policy != ReplaceDuplicates {
		return ErrUnknownPolicy
	}
	return nil
}

// loadStats counts the stats for the deduped bids and the existing ones.
func loadStats(uniq, dups, existing int, policy DuplicatePolicy) LoadStats {
	stats := LoadStats{Inserted: uniq - existing}
	if policy == ReplaceDuplicates {
		stats.Replaced = dups + existing
	} else {
		stats.Ignored = dups + existing
	}
	return stats
}
