// Package watcher triggers sync cycles from local filesystem activity,
// so the engine reacts to a save instead of waiting out the next
// interval-driven tick. Grounded on the reference architecture's
// sync3.FileWatcher (github.com/rjeczalik/notify, recursive watch via a
// "/..." path suffix), extended with the debounce this system needs: a
// burst of writes (a note-taking app writing several times per
// keystroke pause) collapses into a single triggered cycle rather than
// one per event.
package watcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rjeczalik/notify"
)

// Trigger runs one sync cycle. It is called at most once per debounce
// window regardless of how many filesystem events arrived during it.
type Trigger func(ctx context.Context)

// Watcher watches a vault directory recursively and calls Trigger after
// a debounce period following the last observed change.
type Watcher struct {
	dir      string
	debounce time.Duration
	trigger  Trigger

	events chan notify.EventInfo
	stop   chan struct{}
	wg     sync.WaitGroup
}

const defaultDebounce = 2 * time.Second

// New builds a Watcher over dir. debounce <= 0 uses the default of 2s.
func New(dir string, debounce time.Duration, trigger Trigger) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		trigger:  trigger,
		events:   make(chan notify.EventInfo, 64),
		stop:     make(chan struct{}),
	}
}

// Start begins watching. It returns once the watch is registered; event
// handling and debouncing run in a background goroutine until ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	slog.Info("file watcher start", "dir", w.dir)

	recursivePath := w.dir + "/..."
	if err := notify.Watch(recursivePath, w.events, notify.Write, notify.Create, notify.Remove, notify.Rename); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.run(ctx)

	return nil
}

// Stop unregisters the watch and waits for the background goroutine to
// exit.
func (w *Watcher) Stop() {
	notify.Stop(w.events)
	close(w.stop)
	w.wg.Wait()
	slog.Info("file watcher stop")
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case _, ok := <-w.events:
			if !ok {
				return
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerC = timer.C
		case <-timerC:
			timerC = nil
			w.trigger(ctx)
		}
	}
}
