package bundler

import (
	"context"
	"io"
)

// CustomServer replaces or prefixes the default startup for a playground
// that needs its own server.
//
// PreServe, when set, runs before anything else. Serve, when set, fully
// replaces the default dev/build startup: the harness does not navigate
// and uses the returned URL, which may be empty, as the suite URL. A
// CustomServer with only PreServe still gets the default startup.
type CustomServer struct {
	PreServe func(ctx context.Context, rootDir string, isBuild bool) error
	Serve    func(ctx context.Context, rootDir string, isBuild bool) (srv io.Closer, url string, err error)
}

// ReplacesDefault reports whether Serve takes over startup.
func (c CustomServer) ReplacesDefault() bool {
	return c.Serve != nil
}
