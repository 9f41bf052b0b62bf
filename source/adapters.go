package source

import (
	"context"
	"slices"

	problemcache "github.com/karupanerura/problem-cache"
)

// LintProvider is a provider wrapper that is used for linting purposes.
// It uses a provider to serve the data.
type LintProvider struct {
	Provider problemcache.Provider
}

var _ problemcache.Provider = (*LintProvider)(nil)

// ProblemIDs lists the provider's problem ids.
// It validates the behavior of the provider implementation, ensuring it
// properly follows the Provider contract. In particular, it checks that the
// listing contains no duplicate ids.
func (p *LintProvider) ProblemIDs(ctx context.Context) ([]string, error) {
	ids, err := p.Provider.ProblemIDs(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			panic("duplicate problem id in listing")
		}
		seen[id] = struct{}{}
	}
	return ids, nil
}

// GetItems fetches the given fields of a problem from the provider.
// It validates the behavior of the provider implementation, ensuring it
// properly follows the Provider contract. In particular, it checks that the
// result contains no fields that were not requested.
func (p *LintProvider) GetItems(ctx context.Context, problemID string, fields ...string) (problemcache.ProblemData, error) {
	items, err := p.Provider.GetItems(ctx, problemID, fields...)
	if err != nil {
		return nil, err
	}

	requested := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		requested[field] = struct{}{}
	}
	for field := range items {
		if _, ok := requested[field]; !ok {
			panic("unrequested field in result: " + field)
		}
	}
	return items, nil
}

// DeleteProblem deletes a problem through the provider.
func (p *LintProvider) DeleteProblem(ctx context.Context, problemID string) (bool, error) {
	return p.Provider.DeleteProblem(ctx, problemID)
}

// FunctionsProvider is a provider that uses functions to serve the data.
type FunctionsProvider struct {
	// ProblemIDsFunc is a function that lists the ids of all known problems.
	ProblemIDsFunc func(context.Context) ([]string, error)

	// GetItemsFunc is a function that fetches the given fields of a problem.
	// Fields without a value must be absent from the returned map.
	GetItemsFunc func(context.Context, string, ...string) (problemcache.ProblemData, error)

	// DeleteProblemFunc is a function that deletes a problem.
	// It returns false if the deletion is refused.
	DeleteProblemFunc func(context.Context, string) (bool, error)
}

var _ problemcache.Provider = (*FunctionsProvider)(nil)

// ProblemIDs calls the ProblemIDsFunc function.
func (p *FunctionsProvider) ProblemIDs(ctx context.Context) ([]string, error) {
	return p.ProblemIDsFunc(ctx)
}

// GetItems calls the GetItemsFunc function.
func (p *FunctionsProvider) GetItems(ctx context.Context, problemID string, fields ...string) (problemcache.ProblemData, error) {
	return p.GetItemsFunc(ctx, problemID, fields...)
}

// DeleteProblem calls the DeleteProblemFunc function.
func (p *FunctionsProvider) DeleteProblem(ctx context.Context, problemID string) (bool, error) {
	return p.DeleteProblemFunc(ctx, problemID)
}

// StaticProvider is a read-only provider backed by a fixed map of problem
// records. It is useful for tests and demos.
type StaticProvider struct {
	// Problems maps problem ids to their field values.
	Problems map[string]problemcache.ProblemData
}

var _ problemcache.Provider = (*StaticProvider)(nil)

// ProblemIDs lists the ids of all problems, in lexical order.
func (p *StaticProvider) ProblemIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(p.Problems))
	for id := range p.Problems {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// GetItems fetches the given fields of a problem.
// An unknown problem id resolves to no fields at all.
func (p *StaticProvider) GetItems(_ context.Context, problemID string, fields ...string) (problemcache.ProblemData, error) {
	record, ok := p.Problems[problemID]
	if !ok {
		return problemcache.ProblemData{}, nil
	}

	items := make(problemcache.ProblemData, len(fields))
	for _, field := range fields {
		if v, ok := record[field]; ok {
			items[field] = v
		}
	}
	return items, nil
}

// DeleteProblem refuses every deletion; the provider is read-only.
func (p *StaticProvider) DeleteProblem(_ context.Context, _ string) (bool, error) {
	return false, nil
}
