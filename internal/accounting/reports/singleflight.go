package reports

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// flight collapses concurrent builds of the same key. A caller whose ctx
// ends stops waiting; the build itself keeps running for the others.
func flight(ctx context.Context, group *singleflight.Group, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	resultChan := group.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}
