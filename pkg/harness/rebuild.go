package harness

import (
	"context"
	"errors"
	"sync"

	"github.com/thesyncim/playground-harness/pkg/bundler"
)

// NotifyRebuildComplete blocks until w reports the end of a build cycle.
//
// The listener is removed before returning, so later cycles have no effect
// on the caller. Only END counts: an ERROR cycle in watch mode is followed by
// another attempt once the sources change, and the caller keeps waiting.
// A fatal ERROR means the watcher stopped for good; its error is returned.
func NotifyRebuildComplete(ctx context.Context, w bundler.Watcher) error {
	done := make(chan struct{})
	var (
		once sync.Once
		err  error
	)
	remove := w.OnEvent(func(ev bundler.Event) {
		switch {
		case ev.Code == bundler.EventEnd:
			once.Do(func() { close(done) })
		case ev.Code == bundler.EventError && ev.Fatal:
			once.Do(func() {
				err = ev.Err
				if err == nil {
					err = errors.New("watcher stopped")
				}
				close(done)
			})
		}
	})
	defer remove()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
