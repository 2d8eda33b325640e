// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package lending

import (
	"sync"
	"sync/atomic"
)

// Guard admits a single operation at a time. It does not queue: a caller
// that finds the guard held, including an operation re-entered from a
// transfer callback, is rejected with ErrReentrant.
type Guard struct {
	held atomic.Bool
}

// Lock is the token of an admitted operation.
type Lock struct {
	guard   *Guard
	release sync.Once
}

// Acquire returns a Lock that must be released when the operation exits.
func (g *Guard) Acquire() (*Lock, error) {
	if !g.held.CompareAndSwap(false, true) {
		return nil, ErrReentrant
	}
	return &Lock{guard: g}, nil
}

// Held reports whether an operation is in progress.
func (g *Guard) Held() bool {
	return g.held.Load()
}

// Release frees the guard. Releasing twice is a no-op.
func (l *Lock) Release() {
	l.release.Do(func() {
		l.guard.held.Store(false)
	})
}
