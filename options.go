package problemcache

import (
	"go.uber.org/zap"

	"github.com/karupanerura/problem-cache/staleness"
)

type options struct {
	logger     *zap.Logger
	resolver   ApplicationResolver
	clock      Clock
	staleness  staleness.Policy
	newProblem NewProblemFunc
}

func defaultOptions() options {
	return options{
		logger:    zap.NewNop(),
		clock:     SystemClock,
		staleness: staleness.Never{},
	}
}

// Option is the interface for the options of this package's constructors.
// Each constructor documents which options it honors.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) {
	f(o)
}

// WithLogger sets the logger.
// The default logger discards everything.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = logger
	})
}

// WithApplicationResolver sets the resolver used to look up the application
// a problem belongs to. Without a resolver, application lookups resolve to nothing.
func WithApplicationResolver(resolver ApplicationResolver) Option {
	return optionFunc(func(o *options) {
		o.resolver = resolver
	})
}

// WithClock sets the clock used for cache staleness checks.
// The default clock is SystemClock.
func WithClock(clock Clock) Option {
	return optionFunc(func(o *options) {
		o.clock = clock
	})
}

// WithStaleness sets the staleness policy of a CachedSource.
// A populated cache the policy deems stale is silently repopulated on the
// next GetProblems call. The default policy is staleness.Never.
func WithStaleness(policy staleness.Policy) Option {
	return optionFunc(func(o *options) {
		o.staleness = policy
	})
}

// WithNewProblemFunc sets the function a CachedSource uses to construct
// problems from discovered ids. The default constructs a Problem via NewProblem.
func WithNewProblemFunc(f NewProblemFunc) Option {
	return optionFunc(func(o *options) {
		o.newProblem = f
	})
}
