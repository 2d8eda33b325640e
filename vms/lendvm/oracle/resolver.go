// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/ids"
)

var (
	ErrUnknownOracle    = errors.New("unknown oracle")
	ErrOracleRegistered = errors.New("oracle already registered")
)

// Resolver maps an oracle identity to the feed serving it.
type Resolver interface {
	Feed(oracle ids.ShortID) (PriceFeed, error)
}

var _ Resolver = (*Feeds)(nil)

// Feeds is a Resolver backed by an in-memory table.
type Feeds struct {
	mu    sync.RWMutex
	feeds map[ids.ShortID]PriceFeed
}

func NewFeeds() *Feeds {
	return &Feeds{
		feeds: make(map[ids.ShortID]PriceFeed),
	}
}

// Register makes feed reachable as oracle.
func (f *Feeds) Register(oracle ids.ShortID, feed PriceFeed) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.feeds[oracle]; ok {
		return fmt.Errorf("%w: %s", ErrOracleRegistered, oracle)
	}
	f.feeds[oracle] = feed
	return nil
}

// Deregister removes oracle's feed, if any.
func (f *Feeds) Deregister(oracle ids.ShortID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.feeds, oracle)
}

func (f *Feeds) Feed(oracle ids.ShortID) (PriceFeed, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	feed, ok := f.feeds[oracle]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOracle, oracle)
	}
	return feed, nil
}

// Len returns the number of registered feeds.
func (f *Feeds) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.feeds)
}
