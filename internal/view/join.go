package view

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Join runs calls concurrently and waits for all of them. Siblings are not
// cancelled when one fails. If several fail, the error of the lowest-index
// call is returned so the reported cause does not depend on timing.
func Join(ctx context.Context, calls ...func(context.Context) error) error {
	errs := make([]error, len(calls))

	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			errs[i] = call(ctx)
			return nil
		})
	}
	g.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Join2 fetches two resources concurrently. Priority is a before b.
func Join2[A, B any](ctx context.Context, fa Fetch[A], fb Fetch[B]) (A, B, error) {
	var a A
	var b B
	err := Join(ctx,
		func(ctx context.Context) error {
			var err error
			a, err = fa(ctx)
			return err
		},
		func(ctx context.Context) error {
			var err error
			b, err = fb(ctx)
			return err
		},
	)
	if err != nil {
		var za A
		var zb B
		return za, zb, err
	}
	return a, b, nil
}
