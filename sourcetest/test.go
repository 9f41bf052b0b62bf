// sourcetest package provides generic test cases for ProblemSource implementations.
package sourcetest

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	problemcache "github.com/karupanerura/problem-cache"
)

// Recorder is an observer that records every notification it receives.
type Recorder struct {
	// Changes are the recorded change types, in delivery order.
	Changes []problemcache.ChangeType

	// Problems are the recorded problems, in delivery order. Entries are nil
	// for general notifications.
	Problems []*problemcache.Problem
}

var _ problemcache.Observer = (*Recorder)(nil)

// Changed records the notification.
func (r *Recorder) Changed(_ problemcache.ProblemSource, change problemcache.ChangeType, problem *problemcache.Problem) {
	r.Changes = append(r.Changes, change)
	r.Problems = append(r.Problems, problem)
}

// TestObserverContract verifies the observer semantics every ProblemSource
// must provide: idempotent attach, tolerated detach of unknown observers,
// no delivery after detach, and a single SourceUpdated notification per
// DropCache call.
//
// The provider function must return a fresh source and a release function.
func TestObserverContract(t *testing.T, provider func() (problemcache.ProblemSource, func())) {
	t.Run("AttachIsIdempotent", func(t *testing.T) {
		src, release := provider()
		defer release()

		rec := &Recorder{}
		src.Attach(rec)
		src.Attach(rec)

		src.DropCache(t.Context())
		if diff := cmp.Diff([]problemcache.ChangeType{problemcache.SourceUpdated}, rec.Changes); diff != "" {
			t.Errorf("unexpected notifications (-want +got):\n%s", diff)
		}
	})

	t.Run("DetachStopsDelivery", func(t *testing.T) {
		src, release := provider()
		defer release()

		rec := &Recorder{}
		src.Attach(rec)
		src.Detach(rec)

		src.DropCache(t.Context())
		if len(rec.Changes) != 0 {
			t.Errorf("detached observer was notified: %v", rec.Changes)
		}
	})

	t.Run("DetachUnknownObserverIsTolerated", func(t *testing.T) {
		src, release := provider()
		defer release()

		src.Detach(&Recorder{})
	})

	t.Run("DropCacheNotifiesExactlyOnce", func(t *testing.T) {
		src, release := provider()
		defer release()

		rec := &Recorder{}
		src.Attach(rec)

		src.DropCache(t.Context())
		src.DropCache(t.Context())
		want := []problemcache.ChangeType{problemcache.SourceUpdated, problemcache.SourceUpdated}
		if diff := cmp.Diff(want, rec.Changes); diff != "" {
			t.Errorf("unexpected notifications (-want +got):\n%s", diff)
		}
	})

	t.Run("PanickingObserverDoesNotBreakDelivery", func(t *testing.T) {
		src, release := provider()
		defer release()

		panicking := problemcache.ObserverFunc(func(problemcache.ProblemSource, problemcache.ChangeType, *problemcache.Problem) {
			panic("broken observer")
		})
		rec := &Recorder{}
		src.Attach(&panicking)
		src.Attach(rec)

		src.DropCache(t.Context())
		if diff := cmp.Diff([]problemcache.ChangeType{problemcache.SourceUpdated}, rec.Changes); diff != "" {
			t.Errorf("unexpected notifications (-want +got):\n%s", diff)
		}
	})
}
