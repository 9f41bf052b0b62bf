package problemcache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	problemcache "github.com/karupanerura/problem-cache"
	"github.com/karupanerura/problem-cache/source"
	"github.com/karupanerura/problem-cache/sourcetest"
	"github.com/karupanerura/problem-cache/staleness"
)

// fakeProvider is a scriptable in-memory Provider.
type fakeProvider struct {
	ids     []string
	records map[string]problemcache.ProblemData

	listCalls   int
	listErr     error
	getItemsErr func(problemID string) error
	refuse      bool
	deleteErr   error
}

func (p *fakeProvider) provider() *source.FunctionsProvider {
	return &source.FunctionsProvider{
		ProblemIDsFunc: func(context.Context) ([]string, error) {
			p.listCalls++
			if p.listErr != nil {
				return nil, p.listErr
			}
			return p.ids, nil
		},
		GetItemsFunc: func(_ context.Context, problemID string, fields ...string) (problemcache.ProblemData, error) {
			if p.getItemsErr != nil {
				if err := p.getItemsErr(problemID); err != nil {
					return nil, err
				}
			}
			items := problemcache.ProblemData{}
			for _, field := range fields {
				if v, ok := p.records[problemID][field]; ok {
					items[field] = v
				}
			}
			return items, nil
		},
		DeleteProblemFunc: func(_ context.Context, problemID string) (bool, error) {
			if p.deleteErr != nil {
				return false, p.deleteErr
			}
			return !p.refuse, nil
		},
	}
}

func problemIDs(problems []*problemcache.Problem) []string {
	ids := make([]string, len(problems))
	for i, p := range problems {
		ids[i] = p.ID()
	}
	return ids
}

func TestCachedSource_ObserverContract(t *testing.T) {
	t.Parallel()

	sourcetest.TestObserverContract(t, func() (problemcache.ProblemSource, func()) {
		fake := &fakeProvider{}
		return problemcache.NewCachedSource(fake.provider()), func() {}
	})
}

func TestCachedSource_GetProblems(t *testing.T) {
	t.Parallel()

	t.Run("PopulatesOnceAndPreservesOrder", func(t *testing.T) {
		t.Parallel()

		fake := &fakeProvider{ids: []string{"ccpp-2", "ccpp-1", "ccpp-3"}}
		src := problemcache.NewCachedSource(fake.provider())

		problems, err := src.GetProblems(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"ccpp-2", "ccpp-1", "ccpp-3"}, problemIDs(problems)); diff != "" {
			t.Errorf("unexpected problems (-want +got):\n%s", diff)
		}

		again, err := src.GetProblems(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if fake.listCalls != 1 {
			t.Errorf("populated cache was listed again, %d calls", fake.listCalls)
		}
		if diff := cmp.Diff(problemIDs(problems), problemIDs(again)); diff != "" {
			t.Errorf("cached result changed (-want +got):\n%s", diff)
		}
	})

	t.Run("SkipsProblemsThatFailToConstruct", func(t *testing.T) {
		t.Parallel()

		fake := &fakeProvider{
			ids: []string{"ccpp-1", "ccpp-bad", "ccpp-unreachable", "ccpp-2"},
			getItemsErr: func(problemID string) error {
				switch problemID {
				case "ccpp-bad":
					return &problemcache.InvalidProblemError{ProblemID: problemID}
				case "ccpp-unreachable":
					return &problemcache.UnavailableSourceError{Err: errors.New("dbus timeout")}
				default:
					return nil
				}
			},
		}
		src := problemcache.NewCachedSource(fake.provider())

		problems, err := src.GetProblems(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"ccpp-1", "ccpp-2"}, problemIDs(problems)); diff != "" {
			t.Errorf("unexpected problems (-want +got):\n%s", diff)
		}
	})

	t.Run("ListingFailureLeavesCacheUnpopulated", func(t *testing.T) {
		t.Parallel()

		fake := &fakeProvider{ids: []string{"ccpp-1"}, listErr: errors.New("dbus timeout")}
		src := problemcache.NewCachedSource(fake.provider())

		if _, err := src.GetProblems(t.Context()); err == nil {
			t.Fatal("expected an error")
		}

		// The next call starts over instead of serving a broken cache.
		fake.listErr = nil
		problems, err := src.GetProblems(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"ccpp-1"}, problemIDs(problems)); diff != "" {
			t.Errorf("unexpected problems (-want +got):\n%s", diff)
		}
	})

	t.Run("EmptyListingPopulates", func(t *testing.T) {
		t.Parallel()

		fake := &fakeProvider{}
		src := problemcache.NewCachedSource(fake.provider())

		problems, err := src.GetProblems(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if len(problems) != 0 {
			t.Fatalf("expected no problems, got %v", problemIDs(problems))
		}

		// The empty cache counts as populated: no new listing.
		if _, err := src.GetProblems(t.Context()); err != nil {
			t.Fatal(err)
		}
		if fake.listCalls != 1 {
			t.Errorf("loaded empty cache was listed again, %d calls", fake.listCalls)
		}
	})
}

func TestCachedSource_DropCache(t *testing.T) {
	t.Parallel()

	fake := &fakeProvider{ids: []string{"ccpp-1"}}
	src := problemcache.NewCachedSource(fake.provider())
	if _, err := src.GetProblems(t.Context()); err != nil {
		t.Fatal(err)
	}

	rec := &sourcetest.Recorder{}
	src.Attach(rec)
	src.DropCache(t.Context())

	if diff := cmp.Diff([]problemcache.ChangeType{problemcache.SourceUpdated}, rec.Changes); diff != "" {
		t.Errorf("unexpected notifications (-want +got):\n%s", diff)
	}
	if _, err := src.GetProblems(t.Context()); err != nil {
		t.Fatal(err)
	}
	if fake.listCalls != 2 {
		t.Errorf("dropped cache was not repopulated, %d listings", fake.listCalls)
	}
}

func TestCachedSource_ProcessNewProblemID(t *testing.T) {
	t.Parallel()

	t.Run("InsertsAndNotifies", func(t *testing.T) {
		t.Parallel()

		fake := &fakeProvider{ids: []string{"ccpp-1"}}
		src := problemcache.NewCachedSource(fake.provider())
		if _, err := src.GetProblems(t.Context()); err != nil {
			t.Fatal(err)
		}

		rec := &sourcetest.Recorder{}
		src.Attach(rec)
		src.ProcessNewProblemID(t.Context(), "ccpp-2")

		if diff := cmp.Diff([]problemcache.ChangeType{problemcache.NewProblem}, rec.Changes); diff != "" {
			t.Errorf("unexpected notifications (-want +got):\n%s", diff)
		}
		problems, err := src.GetProblems(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"ccpp-1", "ccpp-2"}, problemIDs(problems)); diff != "" {
			t.Errorf("unexpected problems (-want +got):\n%s", diff)
		}
	})

	t.Run("DuplicateIsRejectedWithoutNotification", func(t *testing.T) {
		t.Parallel()

		fake := &fakeProvider{ids: []string{"ccpp-1"}}
		src := problemcache.NewCachedSource(fake.provider())
		if _, err := src.GetProblems(t.Context()); err != nil {
			t.Fatal(err)
		}

		rec := &sourcetest.Recorder{}
		src.Attach(rec)
		src.ProcessNewProblemID(t.Context(), "ccpp-1")

		if len(rec.Changes) != 0 {
			t.Errorf("duplicate insert notified observers: %v", rec.Changes)
		}
		problems, err := src.GetProblems(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"ccpp-1"}, problemIDs(problems)); diff != "" {
			t.Errorf("duplicate insert mutated the cache (-want +got):\n%s", diff)
		}
	})

	t.Run("InsertsIntoLoadedEmptyCache", func(t *testing.T) {
		t.Parallel()

		fake := &fakeProvider{}
		src := problemcache.NewCachedSource(fake.provider())
		if _, err := src.GetProblems(t.Context()); err != nil {
			t.Fatal(err)
		}

		src.ProcessNewProblemID(t.Context(), "ccpp-1")
		problems, err := src.GetProblems(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"ccpp-1"}, problemIDs(problems)); diff != "" {
			t.Errorf("unexpected problems (-want +got):\n%s", diff)
		}
		if fake.listCalls != 1 {
			t.Errorf("loaded empty cache was repopulated, %d listings", fake.listCalls)
		}
	})

	t.Run("ConstructionFailureIsTolerated", func(t *testing.T) {
		t.Parallel()

		fake := &fakeProvider{
			getItemsErr: func(string) error {
				return &problemcache.UnavailableSourceError{Err: errors.New("dbus timeout")}
			},
		}
		src := problemcache.NewCachedSource(fake.provider())

		rec := &sourcetest.Recorder{}
		src.Attach(rec)
		src.ProcessNewProblemID(t.Context(), "ccpp-1")
		if len(rec.Changes) != 0 {
			t.Errorf("failed construction notified observers: %v", rec.Changes)
		}
	})

	t.Run("UnpopulatedCacheStillNotifies", func(t *testing.T) {
		t.Parallel()

		fake := &fakeProvider{ids: []string{"ccpp-1"}}
		src := problemcache.NewCachedSource(fake.provider())

		rec := &sourcetest.Recorder{}
		src.Attach(rec)
		src.ProcessNewProblemID(t.Context(), "ccpp-1")

		// Nothing is inserted before the first population, but observers
		// still learn about the discovery; the problem is picked up by the
		// next population.
		if diff := cmp.Diff([]problemcache.ChangeType{problemcache.NewProblem}, rec.Changes); diff != "" {
			t.Errorf("unexpected notifications (-want +got):\n%s", diff)
		}
		problems, err := src.GetProblems(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"ccpp-1"}, problemIDs(problems)); diff != "" {
			t.Errorf("unexpected problems (-want +got):\n%s", diff)
		}
	})
}

func TestCachedSource_DeleteProblem(t *testing.T) {
	t.Parallel()

	t.Run("RemovesAndNotifies", func(t *testing.T) {
		t.Parallel()

		fake := &fakeProvider{ids: []string{"ccpp-1", "ccpp-2"}}
		src := problemcache.NewCachedSource(fake.provider())
		if _, err := src.GetProblems(t.Context()); err != nil {
			t.Fatal(err)
		}

		rec := &sourcetest.Recorder{}
		src.Attach(rec)
		if err := src.DeleteProblem(t.Context(), "ccpp-1"); err != nil {
			t.Fatal(err)
		}

		if diff := cmp.Diff([]problemcache.ChangeType{problemcache.DeletedProblem}, rec.Changes); diff != "" {
			t.Errorf("unexpected notifications (-want +got):\n%s", diff)
		}
		if len(rec.Problems) != 1 || rec.Problems[0] == nil || rec.Problems[0].ID() != "ccpp-1" {
			t.Errorf("notification does not carry the removed problem: %v", rec.Problems)
		}

		problems, err := src.GetProblems(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"ccpp-2"}, problemIDs(problems)); diff != "" {
			t.Errorf("unexpected problems (-want +got):\n%s", diff)
		}
	})

	t.Run("RefusedDeletionLeavesEverythingUntouched", func(t *testing.T) {
		t.Parallel()

		fake := &fakeProvider{ids: []string{"ccpp-1"}, refuse: true}
		src := problemcache.NewCachedSource(fake.provider())
		if _, err := src.GetProblems(t.Context()); err != nil {
			t.Fatal(err)
		}

		rec := &sourcetest.Recorder{}
		src.Attach(rec)
		if err := src.DeleteProblem(t.Context(), "ccpp-1"); !errors.Is(err, problemcache.ErrDeleteRefused) {
			t.Fatalf("expected ErrDeleteRefused, got %v", err)
		}

		if len(rec.Changes) != 0 {
			t.Errorf("refused deletion notified observers: %v", rec.Changes)
		}
		problems, err := src.GetProblems(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"ccpp-1"}, problemIDs(problems)); diff != "" {
			t.Errorf("refused deletion mutated the cache (-want +got):\n%s", diff)
		}
	})

	t.Run("ProviderErrorPropagates", func(t *testing.T) {
		t.Parallel()

		fake := &fakeProvider{ids: []string{"ccpp-1"}, deleteErr: errors.New("permission denied")}
		src := problemcache.NewCachedSource(fake.provider())
		if _, err := src.GetProblems(t.Context()); err != nil {
			t.Fatal(err)
		}

		rec := &sourcetest.Recorder{}
		src.Attach(rec)
		if err := src.DeleteProblem(t.Context(), "ccpp-1"); err == nil {
			t.Fatal("expected an error")
		}
		if len(rec.Changes) != 0 {
			t.Errorf("failed deletion notified observers: %v", rec.Changes)
		}
	})

	t.Run("MissingFromCacheInvalidatesIt", func(t *testing.T) {
		t.Parallel()

		fake := &fakeProvider{ids: []string{"ccpp-1"}}
		src := problemcache.NewCachedSource(fake.provider())
		if _, err := src.GetProblems(t.Context()); err != nil {
			t.Fatal(err)
		}

		rec := &sourcetest.Recorder{}
		src.Attach(rec)
		if err := src.DeleteProblem(t.Context(), "ccpp-ghost"); err != nil {
			t.Fatal(err)
		}

		if diff := cmp.Diff([]problemcache.ChangeType{problemcache.SourceUpdated}, rec.Changes); diff != "" {
			t.Errorf("unexpected notifications (-want +got):\n%s", diff)
		}
		if _, err := src.GetProblems(t.Context()); err != nil {
			t.Fatal(err)
		}
		if fake.listCalls != 2 {
			t.Errorf("inconsistent cache was not invalidated, %d listings", fake.listCalls)
		}
	})

	t.Run("ThroughProblemDelete", func(t *testing.T) {
		t.Parallel()

		fake := &fakeProvider{ids: []string{"ccpp-1", "ccpp-2"}}
		src := problemcache.NewCachedSource(fake.provider())
		problems, err := src.GetProblems(t.Context())
		if err != nil {
			t.Fatal(err)
		}

		rec := &sourcetest.Recorder{}
		src.Attach(rec)
		if err := problems[0].Delete(t.Context()); err != nil {
			t.Fatal(err)
		}

		if !problems[0].Deleted() {
			t.Error("problem is not marked deleted")
		}
		if diff := cmp.Diff([]problemcache.ChangeType{problemcache.DeletedProblem}, rec.Changes); diff != "" {
			t.Errorf("unexpected notifications (-want +got):\n%s", diff)
		}
		remaining, err := src.GetProblems(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"ccpp-2"}, problemIDs(remaining)); diff != "" {
			t.Errorf("unexpected problems (-want +got):\n%s", diff)
		}
	})
}

func TestCachedSource_ProcessDeletedProblemID(t *testing.T) {
	t.Parallel()

	fake := &fakeProvider{ids: []string{"ccpp-1", "ccpp-2"}}
	src := problemcache.NewCachedSource(fake.provider())
	problems, err := src.GetProblems(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	rec := &sourcetest.Recorder{}
	src.Attach(rec)
	src.ProcessDeletedProblemID("ccpp-1")

	if diff := cmp.Diff([]problemcache.ChangeType{problemcache.DeletedProblem}, rec.Changes); diff != "" {
		t.Errorf("unexpected notifications (-want +got):\n%s", diff)
	}
	if !problems[0].Deleted() {
		t.Error("vanished problem is not tombstoned")
	}

	// Unknown ids are ignored.
	src.ProcessDeletedProblemID("ccpp-ghost")
	if len(rec.Changes) != 1 {
		t.Errorf("unknown id notified observers: %v", rec.Changes)
	}

	remaining, err := src.GetProblems(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"ccpp-2"}, problemIDs(remaining)); diff != "" {
		t.Errorf("unexpected problems (-want +got):\n%s", diff)
	}
}

func TestCachedSource_Staleness(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 2, 30, 45, 0, time.UTC)
	clock := problemcache.ClockFunc(func() time.Time { return now })

	fake := &fakeProvider{ids: []string{"ccpp-1"}}
	src := problemcache.NewCachedSource(fake.provider(),
		problemcache.WithStaleness(staleness.MaxAge{TTL: time.Minute}),
		problemcache.WithClock(clock),
	)

	if _, err := src.GetProblems(t.Context()); err != nil {
		t.Fatal(err)
	}
	if _, err := src.GetProblems(t.Context()); err != nil {
		t.Fatal(err)
	}
	if fake.listCalls != 1 {
		t.Fatalf("fresh cache was repopulated, %d listings", fake.listCalls)
	}

	now = now.Add(2 * time.Minute)
	if _, err := src.GetProblems(t.Context()); err != nil {
		t.Fatal(err)
	}
	if fake.listCalls != 2 {
		t.Errorf("stale cache was not repopulated, %d listings", fake.listCalls)
	}
}

func TestCachedSource_WithNewProblemFunc(t *testing.T) {
	t.Parallel()

	fake := &fakeProvider{ids: []string{"ccpp-1", "ccpp-quarantined"}}
	src := problemcache.NewCachedSource(fake.provider(),
		problemcache.WithNewProblemFunc(func(ctx context.Context, problemID string, itemSrc problemcache.ItemSource) (*problemcache.Problem, error) {
			if problemID == "ccpp-quarantined" {
				return nil, &problemcache.InvalidProblemError{ProblemID: problemID, Err: errors.New("quarantined")}
			}
			return problemcache.NewProblem(ctx, problemID, itemSrc)
		}),
	)

	problems, err := src.GetProblems(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"ccpp-1"}, problemIDs(problems)); diff != "" {
		t.Errorf("unexpected problems (-want +got):\n%s", diff)
	}
}
