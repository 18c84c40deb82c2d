package saga

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

type Action struct {
	Name string
	Fn   func(ctx context.Context) error
}

type Result struct {
	Name string
	Err  error
}

// Parallel runs independent actions concurrently and waits for all of them.
// A failure does not cancel its siblings. Every outcome is returned, and the
// error joins the failed ones.
func Parallel(ctx context.Context, actions ...Action) ([]Result, error) {
	results := make([]Result, len(actions))

	var g errgroup.Group
	for i, a := range actions {
		g.Go(func() error {
			results[i] = Result{Name: a.Name, Err: a.Fn(ctx)}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, r.Err))
		}
	}
	return results, errors.Join(errs...)
}
