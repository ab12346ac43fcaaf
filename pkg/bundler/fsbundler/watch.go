package fsbundler

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/thesyncim/playground-harness/pkg/bundler"
)

// watcher rebuilds a project whenever a file under its root changes.
type watcher struct {
	*bundler.Emitter

	b    *Bundler
	opts bundler.Options
	out  string
	fsw  *fsnotify.Watcher
	log  logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

var _ bundler.Watcher = (*watcher)(nil)

func (b *Bundler) watch(opts bundler.Options) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &watcher{
		Emitter: bundler.NewEmitter(),
		b:       b,
		opts:    opts,
		out:     outDir(opts),
		fsw:     fsw,
		log:     b.cfg.Logger.WithField("root", opts.Root),
		ctx:     ctx,
		cancel:  cancel,
	}
	if err := w.addTree(opts.Root); err != nil {
		cancel()
		_ = fsw.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// addTree watches dir and every directory below it, except the output
// directory and skipped ones.
func (w *watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if within(p, w.out) || (p != dir && SkippedDirs[d.Name()]) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}

func (w *watcher) loop() {
	defer w.wg.Done()

	w.cycle()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if within(ev.Name, w.out) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				// New directories are not watched until added.
				_ = w.addTree(ev.Name)
			}
			w.log.WithField("file", ev.Name).Debug("change detected")
			timer.Reset(w.b.cfg.Debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.Emit(bundler.Event{Code: bundler.EventError, Err: err})
		case <-timer.C:
			w.cycle()
		}
	}
}

// cycle runs one build and reports it.
func (w *watcher) cycle() {
	w.Emit(bundler.Event{Code: bundler.EventStart})
	w.Emit(bundler.Event{Code: bundler.EventBundleStart})

	d, err := w.b.build(w.ctx, w.opts)
	if err != nil {
		if w.ctx.Err() != nil {
			return
		}
		w.Emit(bundler.Event{Code: bundler.EventError, Err: err})
		return
	}
	w.Emit(bundler.Event{Code: bundler.EventBundleEnd, Duration: d})
	w.Emit(bundler.Event{Code: bundler.EventEnd})
}

// Close stops watching and waits for an in-flight build to stop.
func (w *watcher) Close() error {
	var err error
	w.once.Do(func() {
		w.cancel()
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}
