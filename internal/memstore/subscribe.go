package memstore

import (
	"context"
	"sync"
)

// subscription is woken after every write and recomputes its snapshot, so
// the newest state is always the last one delivered.
type subscription struct {
	wake chan struct{}
	done chan struct{}
}

// subscribe runs deliver once immediately and again after every write until
// the returned function is called, ctx ends, or deliver returns an error.
func (s *Store) subscribe(ctx context.Context, deliver func() error) func() {
	sub := &subscription{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	sub.wake <- struct{}{}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(sub.done)
			s.mu.Lock()
			delete(s.subs, sub)
			s.mu.Unlock()
		})
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-sub.done:
				return
			case <-sub.wake:
			}
			select {
			case <-sub.done:
				return
			default:
			}
			if err := deliver(); err != nil {
				cancel()
				return
			}
		}
	}()
	return cancel
}

func (s *Store) notifyLocked() {
	if s.paused {
		return
	}
	for sub := range s.subs {
		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
}
