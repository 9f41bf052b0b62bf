package problemcache

import (
	"context"
)

// ChangeType describes what kind of change a source is reporting to its observers.
type ChangeType uint8

const (
	// SourceUpdated is a general change notification without a specific problem.
	// It is emitted when the whole source changed at once, e.g. after a cache drop.
	SourceUpdated ChangeType = iota

	// NewProblem indicates that a problem was discovered and added to the source.
	NewProblem

	// DeletedProblem indicates that a problem was removed from the source.
	DeletedProblem

	// ChangedProblem indicates that an existing problem was modified.
	ChangedProblem
)

// String returns the name of the change type.
func (c ChangeType) String() string {
	switch c {
	case SourceUpdated:
		return "SourceUpdated"
	case NewProblem:
		return "NewProblem"
	case DeletedProblem:
		return "DeletedProblem"
	case ChangedProblem:
		return "ChangedProblem"
	default:
		return "Unknown"
	}
}

// ProblemData is a set of named field values of a problem record.
// A key that is absent from the map means the field has no value at all,
// which is distinct from a field holding an empty string.
type ProblemData map[string]string

// Observer receives change notifications from a ProblemSource.
//
// Changed is invoked synchronously on the notifying source's call stack.
// The problem argument is nil for SourceUpdated notifications.
// Observers must not mutate the notifying source from within Changed.
//
// Observers are tracked in a set, so an Observer value must be comparable.
type Observer interface {
	Changed(src ProblemSource, change ChangeType, problem *Problem)
}

// ObserverFunc is a function type that implements the Observer interface
// through its pointer, which keeps the observer value comparable:
//
//	f := problemcache.ObserverFunc(func(...) { ... })
//	src.Attach(&f)
type ObserverFunc func(src ProblemSource, change ChangeType, problem *Problem)

// Changed calls the function.
func (f *ObserverFunc) Changed(src ProblemSource, change ChangeType, problem *Problem) {
	(*f)(src, change, problem)
}

// ProblemSource is an observable provider of problem records.
// Implementations are not safe for concurrent use.
type ProblemSource interface {
	// GetProblems returns all problems known to the source.
	GetProblems(ctx context.Context) ([]*Problem, error)

	// DropCache discards any cached state and notifies observers with SourceUpdated.
	DropCache(ctx context.Context)

	// Attach registers an observer. Attaching an already attached observer is a no-op.
	Attach(observer Observer)

	// Detach unregisters an observer. Detaching an unknown observer is tolerated.
	Detach(observer Observer)
}

// ItemSource is the part of a source that an individual Problem talks to.
// It serves field loads, forwards deletions to the underlying provider,
// and delivers change notifications on the problem's behalf.
type ItemSource interface {
	// GetItems fetches the given fields of a problem.
	// Fields without a value are absent from the returned map.
	GetItems(ctx context.Context, problemID string, fields ...string) (ProblemData, error)

	// DeleteProblem requests deletion of a problem from the underlying provider.
	// It returns ErrDeleteRefused if the provider refused the deletion.
	DeleteProblem(ctx context.Context, problemID string) error

	// Notify delivers a change notification to all attached observers.
	Notify(change ChangeType, problem *Problem)
}

// Provider is the external collaborator a CachedSource is built on.
// It is the only component that knows where problem records actually live.
type Provider interface {
	// ProblemIDs lists the ids of all problems the provider currently knows.
	ProblemIDs(ctx context.Context) ([]string, error)

	// GetItems fetches the given fields of a problem.
	// Fields without a value must be absent from the returned map.
	GetItems(ctx context.Context, problemID string, fields ...string) (ProblemData, error)

	// DeleteProblem deletes a problem from the underlying store.
	// It returns false if the provider refused the deletion.
	DeleteProblem(ctx context.Context, problemID string) (bool, error)
}

// Application identifies the desktop application a problem belongs to.
type Application struct {
	// Name is the human readable application name.
	Name string

	// Icon is the name of the application icon, if known.
	Icon string
}

// ApplicationResolver looks up the application a problem belongs to.
// The lookup is external to this library; a typical implementation consults
// the desktop file database of the running system.
type ApplicationResolver interface {
	// FindApplication resolves an application from a problem's component and
	// executable fields. It returns false if no application matches.
	FindApplication(component, executable string) (*Application, bool)
}

// ApplicationResolverFunc is a function type that implements the ApplicationResolver interface.
type ApplicationResolverFunc func(component, executable string) (*Application, bool)

// FindApplication calls the function.
func (f ApplicationResolverFunc) FindApplication(component, executable string) (*Application, bool) {
	return f(component, executable)
}
