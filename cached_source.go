package problemcache

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.uber.org/zap"
)

// CachedSource is a ProblemSource that maintains an ordered, lazily populated
// cache of problems on top of a Provider.
//
// The cache is populated on the first GetProblems call, mutated incrementally
// as problems are inserted and deleted, and discarded as a whole by DropCache.
// A CachedSource is not safe for concurrent use.
type CachedSource struct {
	observers Observers
	provider  Provider
	opts      options

	// cache is nil before the first population (distinct from populated and empty).
	cache    []*Problem
	loadedAt time.Time
}

var (
	_ ProblemSource = (*CachedSource)(nil)
	_ ItemSource    = (*CachedSource)(nil)
)

// NewCachedSource creates a cached source on top of the given provider.
// Honored options: WithLogger, WithApplicationResolver, WithNewProblemFunc,
// WithStaleness, WithClock.
func NewCachedSource(provider Provider, opts ...Option) *CachedSource {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}

	s := &CachedSource{
		provider: provider,
		opts:     o,
	}
	s.observers.SetLogger(o.logger)
	if s.opts.newProblem == nil {
		s.opts.newProblem = func(ctx context.Context, problemID string, src ItemSource) (*Problem, error) {
			return newProblem(ctx, problemID, src, o.resolver, o.logger)
		}
	}
	return s
}

// Attach registers an observer. Attaching an already attached observer is a no-op.
func (s *CachedSource) Attach(observer Observer) {
	s.observers.Attach(observer)
}

// Detach unregisters an observer. Detaching an unknown observer is tolerated.
func (s *CachedSource) Detach(observer Observer) {
	s.observers.Detach(observer)
}

// Notify delivers a change notification to all attached observers.
func (s *CachedSource) Notify(change ChangeType, problem *Problem) {
	s.observers.Notify(s, change, problem)
}

// GetItems fetches the given fields of a problem from the provider.
func (s *CachedSource) GetItems(ctx context.Context, problemID string, fields ...string) (ProblemData, error) {
	return s.provider.GetItems(ctx, problemID, fields...)
}

// GetProblems returns all problems known to the provider, populating the
// cache on first access. A populated cache is returned unchanged until it is
// dropped, a deletion invalidates it, or the staleness policy expires it.
//
// Ids whose problem construction fails with InvalidProblemError or
// UnavailableSourceError are skipped with a warning; any other construction
// error aborts the population and leaves the cache unpopulated.
func (s *CachedSource) GetProblems(ctx context.Context) ([]*Problem, error) {
	if s.cache != nil && s.opts.staleness.IsStale(s.opts.clock.Now(), s.loadedAt) {
		s.opts.logger.Debug("problem cache is stale, repopulating")
		s.cache = nil
	}

	if s.cache == nil {
		if err := s.populate(ctx); err != nil {
			return nil, err
		}
	}
	return s.cache, nil
}

func (s *CachedSource) populate(ctx context.Context) error {
	ids, err := s.provider.ProblemIDs(ctx)
	if err != nil {
		return err
	}

	cache := make([]*Problem, 0, len(ids))
	for _, id := range ids {
		problem, err := s.opts.newProblem(ctx, id, s)
		if err != nil {
			if isSkippableConstructionError(err) {
				s.opts.logger.Warn("skipping problem that failed to construct",
					zap.String("problem_id", id),
					zap.Error(err))
				continue
			}
			return err
		}
		cache = append(cache, problem)
	}

	s.cache = cache
	s.loadedAt = s.opts.clock.Now()
	return nil
}

// DropCache discards the cache and notifies observers with SourceUpdated.
func (s *CachedSource) DropCache(_ context.Context) {
	s.cache = nil
	s.Notify(SourceUpdated, nil)
}

// insertToCache appends a problem to a populated cache.
// Inserting an id that is already cached fails with InvalidProblemError
// without mutating the cache. An unpopulated cache accepts nothing; the
// problem will be picked up by the next population instead.
func (s *CachedSource) insertToCache(problem *Problem) error {
	if s.cache == nil {
		return nil
	}

	if slices.ContainsFunc(s.cache, problem.Equal) {
		return &InvalidProblemError{ProblemID: problem.ID(), Err: errors.New("already in the cache")}
	}

	s.cache = append(s.cache, problem)
	return nil
}

// removeFromCache removes the problem with the given id from a populated
// cache, preserving the order of the rest, and returns the removed problem.
func (s *CachedSource) removeFromCache(problemID string) *Problem {
	i := slices.IndexFunc(s.cache, func(p *Problem) bool {
		return p.ID() == problemID
	})
	if i < 0 {
		return nil
	}

	removed := s.cache[i]
	s.cache = slices.Delete(s.cache, i, i+1)
	return removed
}

// DeleteProblem deletes a problem through the provider and keeps the cache
// in sync.
//
// A refused deletion returns ErrDeleteRefused and leaves the cache and
// observers untouched. On success the cached entry is removed and observers
// are notified with DeletedProblem; if the id is unexpectedly missing from a
// populated cache, the whole cache is invalidated and a SourceUpdated
// notification is emitted instead.
func (s *CachedSource) DeleteProblem(ctx context.Context, problemID string) error {
	ok, err := s.provider.DeleteProblem(ctx, problemID)
	if err != nil {
		return err
	}
	if !ok {
		s.opts.logger.Debug("provider refused to delete problem", zap.String("problem_id", problemID))
		return ErrDeleteRefused
	}

	if removed := s.removeFromCache(problemID); removed != nil {
		s.Notify(DeletedProblem, removed)
		return nil
	}

	if s.cache != nil {
		s.opts.logger.Warn("problem not found in cache but deleted, invalidating cache",
			zap.String("problem_id", problemID))
		s.cache = nil
	}
	s.Notify(SourceUpdated, nil)
	return nil
}

// ProcessNewProblemID handles a problem id discovered outside of a full
// population, e.g. by a provider watching for new crash reports. It
// constructs the problem, inserts it into the cache and notifies observers
// with NewProblem. Construction and insertion failures are logged and
// swallowed so a single bad id cannot break the discovery loop.
func (s *CachedSource) ProcessNewProblemID(ctx context.Context, problemID string) {
	problem, err := s.opts.newProblem(ctx, problemID, s)
	if err != nil {
		s.opts.logger.Warn("can't process new problem id",
			zap.String("problem_id", problemID),
			zap.Error(err))
		return
	}

	if err := s.insertToCache(problem); err != nil {
		s.opts.logger.Warn("can't insert new problem into the cache",
			zap.String("problem_id", problemID),
			zap.Error(err))
		return
	}
	s.Notify(NewProblem, problem)
}

// ProcessDeletedProblemID handles a problem id that vanished from the
// underlying store without a deletion request, e.g. removed by another
// client. The cached entry, if any, is tombstoned, removed and observers are
// notified with DeletedProblem.
func (s *CachedSource) ProcessDeletedProblemID(problemID string) {
	removed := s.removeFromCache(problemID)
	if removed == nil {
		s.opts.logger.Debug("vanished problem was not cached", zap.String("problem_id", problemID))
		return
	}

	removed.markDeleted()
	s.Notify(DeletedProblem, removed)
}
