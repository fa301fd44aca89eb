// ABOUTME: Cancellable recurring tasks owned by a single component instance.
// ABOUTME: Used for autosave; a stopped task never fires again.

package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

// Task runs a function on a fixed interval until stopped
type Task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Every starts fn on a ticker of the given interval. The first run happens one
// interval after the call. fn receives a context cancelled by Stop.
func Every(ctx context.Context, clk clock.WithTicker, name string, interval time.Duration, fn func(context.Context), logger *logrus.Logger) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	ticker := clk.NewTicker(interval)
	log := logger.WithFields(logrus.Fields{
		"component": "schedule",
		"task":      name,
	})
	log.WithField("interval", interval).Debug("Scheduled recurring task")

	go func() {
		defer close(t.done)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Debug("Recurring task stopped")
				return
			case <-ticker.C():
				// Stop may have raced with the tick
				if ctx.Err() != nil {
					return
				}
				fn(ctx)
			}
		}
	}()

	return t
}

// Stop cancels the task and waits for an in-progress run to finish.
// It must not be called from inside the task function.
func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.once.Do(t.cancel)
	<-t.done
}

// Done is closed once the task loop has exited
func (t *Task) Done() <-chan struct{} {
	return t.done
}
