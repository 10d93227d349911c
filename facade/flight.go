package facade

import (
	"context"
	"sync"
)

// flight coalesces concurrent invocations of one parser: the first
// caller runs it, later callers observe the first completion.
type flight struct {
	mu      sync.Mutex
	done    chan struct{}
	err     error
	running bool
}

func (f *flight) do(ctx context.Context, fn func(context.Context) error) error {
	f.mu.Lock()
	if f.running {
		done := f.done
		f.mu.Unlock()
		select {
		case <-done:
			f.mu.Lock()
			err := f.err
			f.mu.Unlock()
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.running = true
	f.done = make(chan struct{})
	done := f.done
	f.mu.Unlock()

	err := fn(ctx)

	f.mu.Lock()
	f.err = err
	f.running = false
	close(done)
	f.mu.Unlock()
	return err
}
