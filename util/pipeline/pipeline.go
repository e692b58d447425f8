package pipeline

import (
	"context"
	"errors"
	"sync"
)

var DefaultLen = 64

var (
	ErrorChanFull = errors.New("channel full")
	ErrorStopped  = errors.New("pipeline stopped")
)

// Pipeline hands messages to a single consumer goroutine in the order they
// were accepted. Run must be started by the owner; Stop drains whatever was
// accepted before it returns.
type Pipeline[T any] struct {
	stopCh   chan bool
	isStopCh chan bool

	goCh chan T
	f    func(T)

	mtx      sync.RWMutex
	isClosed bool
}

func NewDefault[T any](f func(T)) *Pipeline[T] {
	return NewPipeline(DefaultLen, f)
}

func NewPipeline[T any](goLen int, f func(T)) *Pipeline[T] {
	if goLen < 1 {
		goLen = 1
	}

	return &Pipeline[T]{
		stopCh:   make(chan bool, 1),
		isStopCh: make(chan bool, 1),
		goCh:     make(chan T, goLen),
		f:        f,
	}
}

func (p *Pipeline[T]) Run() {
GoEndFor:
	for {
		select {
		case <-p.stopCh:
			break GoEndFor
		case msg := <-p.goCh:
			p.f(msg)
		}
	}

DrainEndFor:
	for {
		select {
		case msg := <-p.goCh:
			p.f(msg)
		default:
			break DrainEndFor
		}
	}

	p.isStopCh <- true
}

// Go enqueues m without blocking.
func (p *Pipeline[T]) Go(m T) error {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	if p.isClosed {
		return ErrorStopped
	}

	select {
	case p.goCh <- m:
	default:
		return ErrorChanFull
	}

	return nil
}

// Put enqueues m, waiting for room until ctx is done.
func (p *Pipeline[T]) Put(ctx context.Context, m T) error {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	if p.isClosed {
		return ErrorStopped
	}

	select {
	case p.goCh <- m:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

func (p *Pipeline[T]) Len() int {
	return len(p.goCh)
}

func (p *Pipeline[T]) Stop() {
	p.mtx.Lock()
	if p.isClosed {
		p.mtx.Unlock()

		return
	}

	p.isClosed = true
	p.mtx.Unlock()

	p.stopCh <- true
	<-p.isStopCh
}
