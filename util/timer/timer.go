package timer

import (
	"sync"
	"time"
)

type Ticker interface {
	Stop()
}

type ticker struct {
	t    *time.Ticker
	stop chan struct{}
	once sync.Once
	done chan struct{}
}

// NewTicker calls f every d on its own goroutine until Stop. Stop waits for
// a running f to return.
func NewTicker(d time.Duration, f func()) Ticker {
	t := &ticker{
		t:    time.NewTicker(d),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(t.done)

	EndFor:
		for {
			select {
			case <-t.t.C:
				f()
			case <-t.stop:
				break EndFor
			}
		}
		t.t.Stop()
	}()

	return t
}

func (t *ticker) Stop() {
	t.once.Do(func() {
		close(t.stop)
	})

	<-t.done
}
