package problemcache

import (
	"context"
	"slices"
)

// MultipleSources is a composite ProblemSource aggregating several child
// sources. It forwards every child's change notifications to its own
// observers and batches a full cache drop into a single notification.
//
// The child list is fixed at construction. A MultipleSources is not safe for
// concurrent use.
type MultipleSources struct {
	observers Observers
	sources   []ProblemSource
	forward   ObserverFunc

	// disableNotify suppresses forwarded notifications during DropCache.
	disableNotify bool
}

var _ ProblemSource = (*MultipleSources)(nil)

// NewMultipleSources creates a composite over the given sources.
// It fails with ErrNoSources if no source is given.
//
// The composite subscribes to every child at construction; child
// notifications are forwarded to the composite's own observers.
// Honored options: WithLogger.
func NewMultipleSources(sources []ProblemSource, opts ...Option) (*MultipleSources, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}

	ms := &MultipleSources{
		sources: slices.Clone(sources),
	}
	ms.observers.SetLogger(o.logger)

	ms.forward = func(_ ProblemSource, change ChangeType, problem *Problem) {
		ms.Notify(change, problem)
	}
	for _, src := range ms.sources {
		src.Attach(&ms.forward)
	}
	return ms, nil
}

// Attach registers an observer. Attaching an already attached observer is a no-op.
func (ms *MultipleSources) Attach(observer Observer) {
	ms.observers.Attach(observer)
}

// Detach unregisters an observer. Detaching an unknown observer is tolerated.
func (ms *MultipleSources) Detach(observer Observer) {
	ms.observers.Detach(observer)
}

// Notify delivers a change notification to all attached observers,
// unless notifications are currently suppressed by DropCache.
func (ms *MultipleSources) Notify(change ChangeType, problem *Problem) {
	if ms.disableNotify {
		return
	}
	ms.observers.Notify(ms, change, problem)
}

// GetProblems returns the concatenation of every child's problems, in child
// order. Problems known to several children are not deduplicated.
func (ms *MultipleSources) GetProblems(ctx context.Context) ([]*Problem, error) {
	var result []*Problem
	for _, src := range ms.sources {
		problems, err := src.GetProblems(ctx)
		if err != nil {
			return nil, err
		}
		result = append(result, problems...)
	}
	return result, nil
}

// DropCache drops every child's cache and emits exactly one SourceUpdated
// notification for the whole batch, suppressing the children's individual
// drop notifications.
func (ms *MultipleSources) DropCache(ctx context.Context) {
	ms.dropChildCaches(ctx)
	ms.Notify(SourceUpdated, nil)
}

// dropChildCaches drops the children's caches with forwarding suppressed.
// The suppression flag is cleared even if a child panics.
func (ms *MultipleSources) dropChildCaches(ctx context.Context) {
	ms.disableNotify = true
	defer func() {
		ms.disableNotify = false
	}()

	for _, src := range ms.sources {
		src.DropCache(ctx)
	}
}
