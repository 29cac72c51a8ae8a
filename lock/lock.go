// Package lock serializes writers of the same item.
//
// The Tracker takes one lock per item id around every read-modify-write of
// an item's history. Local works within one process; Redis works across
// replicas sharing a database.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrNotObtained is returned when a lock could not be acquired before the
// context ended or the retry budget ran out.
var ErrNotObtained = errors.New("lock: not obtained")

// Release frees a held lock. It is safe to call once.
type Release func(ctx context.Context) error

// Locker acquires exclusive named locks.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// Noop never blocks.
type Noop struct{}

// Acquire implements Locker.
func (Noop) Acquire(context.Context, string) (Release, error) {
	return func(context.Context) error { return nil }, nil
}

// Local is an in-process keyed mutex. Idle keys are dropped.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal returns an empty Local locker.
func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

// Acquire implements Locker.
func (l *Local) Acquire(ctx context.Context, key string) (Release, error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, s)
		return nil, errors.Join(ErrNotObtained, ctx.Err())
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-s.ch
			l.unref(key, s)
		})
		return nil
	}, nil
}

func (l *Local) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// Len returns the number of keys currently held or awaited.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
