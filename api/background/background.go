package background

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Background runs best-effort tasks (confirmation mail, invoices) off the
// request path. Task failures are logged, never retried.
type Background struct {
	log logrus.FieldLogger
	wg  sync.WaitGroup
}

func New(log logrus.FieldLogger) *Background {
	return &Background{log: log}
}

func (b *Background) Add(name string, task func() error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				b.log.WithField("task", name).Errorf("background task panicked: %v", rec)
			}
		}()

		if err := task(); err != nil {
			b.log.WithField("task", name).Errorf("background task failed: %v", err)
		}
	}()
}

// Shutdown waits for in-flight tasks until the context expires.
func (b *Background) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("background tasks still running: %w", ctx.Err())
	}
}
