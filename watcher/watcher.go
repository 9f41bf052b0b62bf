package watcher

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// CacheUpdater is the part of a CachedSource a Watcher feeds.
type CacheUpdater interface {
	// ProcessNewProblemID handles a newly discovered problem id.
	ProcessNewProblemID(ctx context.Context, problemID string)

	// ProcessDeletedProblemID handles a problem id that vanished from the provider.
	ProcessDeletedProblemID(problemID string)
}

// ProblemLister lists the ids of all problems a provider currently knows.
type ProblemLister interface {
	ProblemIDs(ctx context.Context) ([]string, error)
}

// Watcher polls a provider's problem listing at a fixed interval and feeds
// the differences into a cache updater: unseen ids as new problems, ids
// missing from the listing as deleted ones.
//
// The updater is called from the watcher's polling goroutine. Cached sources
// are not safe for concurrent use, so while a watcher runs it must be the
// only code mutating its source.
type Watcher struct {
	updater           CacheUpdater
	lister            ProblemLister
	interval          time.Duration
	onBackgroundError func(error)

	known map[string]struct{}
}

// NewWatcher creates a new Watcher.
// The Watcher includes a callback mechanism for handling errors that occur
// during background polling. When creating a watcher, you must provide an
// error handler function as a parameter.
func NewWatcher(updater CacheUpdater, lister ProblemLister, interval time.Duration, onBackgroundError func(error)) *Watcher {
	return &Watcher{
		updater:           updater,
		lister:            lister,
		interval:          interval,
		onBackgroundError: onBackgroundError,
		known:             map[string]struct{}{},
	}
}

// Launch starts the watcher in the background.
// The watcher can be stopped by canceling the context passed to Launch.
func (w *Watcher) Launch(ctx context.Context) {
	go w.Run(ctx) //nolint:errcheck // Run only returns the context's error
}

// Run polls the provider at the fixed interval until the context is
// canceled. The first poll happens immediately. On the first poll every
// listed id is reported as new; afterwards only the differences to the
// previous poll are reported.
func (w *Watcher) Run(ctx context.Context) error {
	w.poll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll lists the provider once and feeds the differences into the updater.
func (w *Watcher) poll(ctx context.Context) {
	ids, err := w.lister.ProblemIDs(ctx)
	if err != nil {
		w.onBackgroundError(err)
		return
	}

	current := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		current[id] = struct{}{}
		if _, ok := w.known[id]; !ok {
			w.updater.ProcessNewProblemID(ctx, id)
		}
	}
	for id := range w.known {
		if _, ok := current[id]; !ok {
			w.updater.ProcessDeletedProblemID(id)
		}
	}
	w.known = current
}

// Group runs several watchers together, one goroutine each.
// This is the polling counterpart of a MultipleSources composite: one
// watcher per child source.
type Group struct {
	// Watchers are the watchers to run.
	Watchers []*Watcher
}

// Run runs all watchers until the context is canceled.
func (g *Group) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, w := range g.Watchers {
		eg.Go(func() error {
			return w.Run(ctx)
		})
	}
	return eg.Wait()
}
