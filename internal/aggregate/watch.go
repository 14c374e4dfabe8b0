package aggregate

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/orizon-lang/memscope/internal/lockfree"
	"github.com/orizon-lang/memscope/internal/obslog"
)

// LiveAggregator re-runs Run over dir whenever its thread logs change,
// grounded on the teacher's fsnotify-backed filesystem watcher
// (internal/runtime/vfs.FSNotifyWatcher). Unlike that watcher it is
// single-purpose: it collapses bursts of writes (a thread's binary log is
// appended to continuously) into one debounced Run per quiet period rather
// than exposing a raw event channel.
type LiveAggregator struct {
	dir         string
	cfgByThread map[uint64]lockfree.Config
	opts        Options
	debounce    time.Duration

	w *fsnotify.Watcher
}

// NewLiveAggregator starts watching dir for changes to its per-thread log
// files. Watch performs an initial aggregation and then streams updates.
func NewLiveAggregator(dir string, cfgByThread map[uint64]lockfree.Config, opts Options) (*LiveAggregator, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}

	return &LiveAggregator{
		dir:         dir,
		cfgByThread: cfgByThread,
		opts:        opts,
		debounce:    200 * time.Millisecond,
		w:           w,
	}, nil
}

// Close stops the underlying watcher.
func (l *LiveAggregator) Close() error {
	return l.w.Close()
}

// Watch sends one Result computed at once, then a freshly computed Result
// each time dir's contents settle after a change, until ctx is cancelled or
// the watcher is closed; the result channel is closed when it stops. Read errors during a re-aggregation are logged
// and swallowed rather than terminating the stream — a transient truncated
// read (§4.I's "truncated records" tolerance extends here) should not kill
// a long-running live session.
func (l *LiveAggregator) Watch(ctx context.Context) <-chan *Result {
	out := make(chan *Result, 1)

	go func() {
		defer close(out)

		var timer *time.Timer

		pending := false

		emit := func() {
			res, err := Run(l.dir, l.cfgByThread, l.opts)
			if err != nil {
				obslog.Warnf("live aggregation pass over %s failed: %v", l.dir, err)
				return
			}

			select {
			case out <- res:
			case <-ctx.Done():
			}
		}

		emit()

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}

				return

			case _, ok := <-l.w.Events:
				if !ok {
					return
				}

				pending = true

				if timer == nil {
					timer = time.NewTimer(l.debounce)
				} else {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}

					timer.Reset(l.debounce)
				}

			case err, ok := <-l.w.Errors:
				if !ok {
					return
				}

				obslog.Warnf("watching %s: %v", l.dir, err)

			case <-timerC(timer):
				if pending {
					pending = false
					emit()
				}
			}
		}
	}()

	return out
}

// timerC returns t.C, or a nil channel (which blocks forever in a select)
// when t is not yet armed.
func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}

	return t.C
}
