package store

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/benz9527/bidtree/bid"
	"github.com/benz9527/bidtree/lib/hrtime"
	"github.com/benz9527/bidtree/observability"
	"github.com/benz9527/bidtree/xlog"
)

var _ Backend = (*ObservedStore)(nil)

// ObservedStore records the latency and the result of every operation and
// logs the failed ones.
type ObservedStore struct {
	Backend
	stats  *observability.OpStats
	logger xlog.XLogger
	clock  hrtime.Clock
}

type ObservedStoreOption func(*ObservedStore)

func WithObservedStoreClock(clock hrtime.Clock) ObservedStoreOption {
	return func(s *ObservedStore) {
		s.clock = clock
	}
}

func NewObservedStore(backend Backend, mp metric.MeterProvider, logger xlog.XLogger, opts ...ObservedStoreOption) (*ObservedStore, error) {
	s := &ObservedStore{
		Backend: backend,
		stats:   observability.NewOpStats(mp, backend.Name()),
		logger:  logger,
		clock:   hrtime.SysClock,
	}
	for _, o := range opts {
		o(s)
	}
	if err := s.stats.ObserveRecords(s.records); err != nil {
		return nil, err
	}
	return s, nil
}

// records reports no bids for the closed backend rather than failing the
// whole metrics collection.
func (s *ObservedStore) records(ctx context.Context) (int64, error) {
	n, err := s.Backend.Count(ctx)
	if errors.Is(err, ErrClosed) {
		return 0, nil
	}
	return n, err
}

func (s *ObservedStore) done(ctx context.Context, op observability.Op, sw hrtime.Stopwatch, err error) time.Duration {
	elapsed := sw.Elapsed()
	s.stats.Record(ctx, op, elapsed, err)
	if err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, err, "bid store operation failed",
			zap.String("backend", s.Backend.Name()),
			zap.String("op", string(op)),
			zap.Duration("elapsed", elapsed),
		)
	}
	return elapsed
}

func (s *ObservedStore) Load(ctx context.Context, bids []bid.Bid, policy DuplicatePolicy) (LoadStats, error) {
	sw := hrtime.StartStopwatch(s.clock)
	stats, err := s.Backend.Load(ctx, bids, policy)
	elapsed := s.done(ctx, observability.OpLoad, sw, err)
	if err == nil && s.logger != nil {
		s.logger.Debug("bids loaded",
			zap.String("backend", s.Backend.Name()),
			zap.Stringer("policy", policy),
			zap.Int("inserted", stats.Inserted),
			zap.Int("replaced", stats.Replaced),
			zap.Int("ignored", stats.Ignored),
			zap.Duration("elapsed", elapsed),
		)
	}
	return stats, err
}

func (s *ObservedStore) List(ctx context.Context) ([]bid.Bid, error) {
	sw := hrtime.StartStopwatch(s.clock)
	bids, err := s.Backend.List(ctx)
	s.done(ctx, observability.OpList, sw, err)
	return bids, err
}

func (s *ObservedStore) Find(ctx context.Context, id int64) (bid.Bid, bool, error) {
	sw := hrtime.StartStopwatch(s.clock)
	b, ok, err := s.Backend.Find(ctx, id)
	s.done(ctx, observability.OpFind, sw, err)
	return b, ok, err
}

func (s *ObservedStore) Remove(ctx context.Context, id int64) (bool, error) {
	sw := hrtime.StartStopwatch(s.clock)
	ok, err := s.Backend.Remove(ctx, id)
	s.done(ctx, observability.OpRemove, sw, err)
	return ok, err
}

func (s *ObservedStore) Clear(ctx context.Context) error {
	sw := hrtime.StartStopwatch(s.clock)
	err := s.Backend.Clear(ctx)
	s.done(ctx, observability.OpClear, sw, err)
	return err
}
