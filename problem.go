package problemcache

import (
	"context"
	"maps"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// initialFields is the field set fetched on construction and refresh.
var initialFields = []string{"component", "executable", "time", "reason"}

// Problem is one crash/report record, lazily populated from its source.
//
// Field values are cached as they are loaded. Once a problem is deleted it
// never queries its source again; field access on a deleted problem resolves
// to absent values.
type Problem struct {
	id     string
	source ItemSource

	data ProblemData

	resolver ApplicationResolver
	logger   *zap.Logger

	app               *Application
	submissions       []Submission
	submissionsParsed bool

	deleted bool
}

// NewProblemFunc constructs a Problem for a freshly discovered id.
// It is the extension point concrete providers can override via WithNewProblemFunc.
type NewProblemFunc func(ctx context.Context, problemID string, src ItemSource) (*Problem, error)

// NewProblem constructs a problem backed by the given source and eagerly
// fetches its initial field set (component, executable, time, reason).
// Honored options: WithLogger, WithApplicationResolver.
func NewProblem(ctx context.Context, problemID string, src ItemSource, opts ...Option) (*Problem, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}
	return newProblem(ctx, problemID, src, o.resolver, o.logger)
}

func newProblem(ctx context.Context, problemID string, src ItemSource, resolver ApplicationResolver, logger *zap.Logger) (*Problem, error) {
	data, err := src.GetItems(ctx, problemID, initialFields...)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = ProblemData{}
	}
	return &Problem{
		id:       problemID,
		source:   src,
		data:     data,
		resolver: resolver,
		logger:   logger,
	}, nil
}

// ID returns the problem id. Two problems are the same record iff their ids are equal.
func (p *Problem) ID() string {
	return p.id
}

// String returns the problem id.
func (p *Problem) String() string {
	return p.id
}

// Equal reports whether both problems refer to the same record.
func (p *Problem) Equal(other *Problem) bool {
	if other == nil {
		return false
	}
	return p.id == other.id
}

// Deleted reports whether the problem was deleted.
func (p *Problem) Deleted() bool {
	return p.deleted
}

// Data returns a copy of the currently cached field values.
// It does not load anything from the source.
func (p *Problem) Data() ProblemData {
	return maps.Clone(p.data)
}

// Field returns the value of a raw field.
//
// Cached values are returned as-is; a missing field is fetched from the
// source and cached. A field that has no value resolves to ("", false),
// except "count" which defaults to "1". Load failures never surface as
// errors here; they are logged and the field resolves as absent.
func (p *Problem) Field(ctx context.Context, name string) (string, bool) {
	if v, ok := p.data[name]; ok {
		return v, true
	}

	loaded := p.loadItems(ctx, name)
	if v, ok := loaded[name]; ok {
		return v, true
	}

	if name == "count" {
		return "1", true
	}
	return "", false
}

// loadItems fetches the given fields from the source and merges them into the
// cached data. Deleted problems skip the source and resolve to nothing.
func (p *Problem) loadItems(ctx context.Context, fields ...string) ProblemData {
	if p.deleted {
		p.logger.Debug("accessing deleted problem", zap.String("problem_id", p.id))
		return ProblemData{}
	}

	items, err := p.source.GetItems(ctx, p.id, fields...)
	if err != nil {
		p.logger.Warn("can't load problem fields",
			zap.String("problem_id", p.id),
			zap.Strings("fields", fields),
			zap.Error(err))
		return ProblemData{}
	}

	for k, v := range items {
		p.data[k] = v
	}
	return items
}

// Date returns the time the problem occurred, parsed from the "time" field
// as a unix timestamp with an optional fractional part.
func (p *Problem) Date(ctx context.Context) (time.Time, bool) {
	raw, ok := p.Field(ctx, "time")
	if !ok {
		return time.Time{}, false
	}

	ts, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.logger.Warn("problem has a malformed time field",
			zap.String("problem_id", p.id),
			zap.String("time", raw))
		return time.Time{}, false
	}

	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))), true
}

// Count returns how many times the problem occurred. Defaults to 1.
func (p *Problem) Count(ctx context.Context) int {
	raw, _ := p.Field(ctx, "count")
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.logger.Warn("problem has a malformed count field",
			zap.String("problem_id", p.id),
			zap.String("count", raw))
		return 1
	}
	return n
}

// IsReported reports whether the problem was reported anywhere.
// An empty "reported_to" field still counts as reported; only a problem
// without the field at all is unreported.
func (p *Problem) IsReported(ctx context.Context) bool {
	_, ok := p.Field(ctx, "reported_to")
	return ok
}

// Application resolves the application the problem belongs to.
// A successful lookup is memoized; failed lookups are retried on next access.
func (p *Problem) Application(ctx context.Context) (*Application, bool) {
	if p.app != nil {
		return p.app, true
	}
	if p.resolver == nil {
		return nil, false
	}

	component, _ := p.Field(ctx, "component")
	executable, _ := p.Field(ctx, "executable")
	app, ok := p.resolver.FindApplication(component, executable)
	if !ok {
		return nil, false
	}

	p.app = app
	return p.app, true
}

// Submissions returns the destinations the problem was reported to, parsed
// from the "reported_to" field. The parse result is memoized until Refresh.
func (p *Problem) Submissions(ctx context.Context) []Submission {
	if p.submissionsParsed {
		return p.submissions
	}

	raw, _ := p.Field(ctx, "reported_to")
	p.submissions = parseSubmissions(raw, p.logger)
	p.submissionsParsed = true
	return p.submissions
}

// Refresh re-fetches the initial field set from the source, replacing all
// cached data, invalidates the memoized submissions and notifies observers
// with ChangedProblem. Refreshing a deleted problem is a no-op.
func (p *Problem) Refresh(ctx context.Context) error {
	if p.deleted {
		p.logger.Debug("not refreshing deleted problem", zap.String("problem_id", p.id))
		return nil
	}

	p.logger.Debug("refreshing problem", zap.String("problem_id", p.id))
	data, err := p.source.GetItems(ctx, p.id, initialFields...)
	if err != nil {
		return err
	}
	if data == nil {
		data = ProblemData{}
	}

	p.data = data
	p.submissions = nil
	p.submissionsParsed = false
	p.source.Notify(ChangedProblem, p)
	return nil
}

// Delete marks the problem deleted and asks the source to delete the
// underlying record. If the source fails or refuses, the deletion mark is
// rolled back so a later retry starts from a clean state, and the error is
// both logged and returned.
func (p *Problem) Delete(ctx context.Context) error {
	p.deleted = true
	if err := p.source.DeleteProblem(ctx, p.id); err != nil {
		p.deleted = false
		p.logger.Warn("can't delete problem",
			zap.String("problem_id", p.id),
			zap.Error(err))
		return err
	}
	return nil
}

// markDeleted tombstones the problem without touching the provider.
// Used when a deletion is observed rather than requested.
func (p *Problem) markDeleted() {
	p.deleted = true
}
