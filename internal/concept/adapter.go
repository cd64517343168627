package concept

import (
	"context"

	"github.com/loomworks/loom/internal/ir"
	"github.com/loomworks/loom/internal/pipeline"
)

// QueryAdapter bridges a registered concept query to the pipeline's
// array-of-objects shape. The single result object becomes a one-element
// array, so the {error} convention flows through unchanged: a sync
// consuming the adapter's output binds both the success and error
// branches and routes on them.
//
// The wrapped query's output is returned verbatim. It is the query's
// contract (and the sync author's responsibility via the output pattern)
// that every declared branch field is present, with ir.None on the
// branch that does not apply.
func QueryAdapter(r *Registry, uri ir.ActionRef) pipeline.Adapter {
	return func(ctx context.Context, args ir.Object) ([]ir.Object, error) {
		out, err := r.Invoke(ctx, uri, args)
		if err != nil {
			return nil, err
		}
		return []ir.Object{out}, nil
	}
}

// FanOutAdapter bridges a concept query whose output carries an array
// under field to a one-object-per-element adapter. An empty or absent
// array removes the frame (the query stage's filtering behavior); an
// {error} output is forwarded as a single element so error routing still
// works.
func FanOutAdapter(r *Registry, uri ir.ActionRef, field string) pipeline.Adapter {
	return func(ctx context.Context, args ir.Object) ([]ir.Object, error) {
		out, err := r.Invoke(ctx, uri, args)
		if err != nil {
			return nil, err
		}
		if ir.IsErrorOutput(out) {
			return []ir.Object{out}, nil
		}

		arr, ok := out[field].(ir.Array)
		if !ok {
			return nil, nil
		}
		results := make([]ir.Object, 0, len(arr))
		for _, elem := range arr {
			if obj, ok := elem.(ir.Object); ok {
				results = append(results, obj)
			}
		}
		return results, nil
	}
}
