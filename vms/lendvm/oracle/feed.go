// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oracle provides round based price feeds and the conversion between
// asset amounts and the pool's unit of account.
package oracle

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/luxfi/lendvm/utils/timer/mockable"
)

var (
	// ErrNoRounds indicates the feed has never been updated.
	ErrNoRounds = errors.New("feed has no rounds")

	// ErrRoundNotFound indicates the requested round was pruned or never
	// published.
	ErrRoundNotFound = errors.New("round not found")

	// ErrInvalidHistory indicates a non-positive round history size.
	ErrInvalidHistory = errors.New("round history must be positive")

	// DefaultHistory is the number of rounds a feed keeps by default.
	DefaultHistory = 256
)

// Quote is one published round of a feed. Price is signed and scaled by
// Scale.
type Quote struct {
	RoundID   uint64    `json:"roundID"`
	Price     *big.Int  `json:"price"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PriceFeed returns the latest quote of a single asset pair.
type PriceFeed interface {
	LatestPrice(ctx context.Context) (Quote, error)
}

var _ PriceFeed = (*RoundFeed)(nil)

// RoundFeed is an in-process PriceFeed. Every Record publishes a new round;
// the oldest rounds are dropped once the history is full.
type RoundFeed struct {
	mu          sync.RWMutex
	clock       *mockable.Clock
	rounds      []Quote
	history     int
	description string
}

// NewRoundFeed creates a feed keeping at most history rounds. A nil clock
// uses the wall clock.
func NewRoundFeed(description string, history int, clock *mockable.Clock) (*RoundFeed, error) {
	if history <= 0 {
		return nil, ErrInvalidHistory
	}
	if clock == nil {
		clock = &mockable.Clock{}
	}
	return &RoundFeed{
		clock:       clock,
		rounds:      make([]Quote, 0, min(history, 64)),
		history:     history,
		description: description,
	}, nil
}

// Description names the pair the feed prices.
func (f *RoundFeed) Description() string {
	return f.description
}

// Record publishes price as a new round. The price is stored as given; zero
// and negative values are passed on to consumers.
func (f *RoundFeed) Record(price *big.Int) Quote {
	f.mu.Lock()
	defer f.mu.Unlock()

	var roundID uint64 = 1
	if n := len(f.rounds); n > 0 {
		roundID = f.rounds[n-1].RoundID + 1
	}
	quote := Quote{
		RoundID:   roundID,
		Price:     new(big.Int).Set(price),
		UpdatedAt: f.clock.Time(),
	}
	f.rounds = append(f.rounds, quote)

	if excess := len(f.rounds) - f.history; excess > 0 {
		copy(f.rounds, f.rounds[excess:])
		f.rounds = f.rounds[:f.history]
	}
	return copyQuote(quote)
}

// LatestPrice returns the most recent round.
func (f *RoundFeed) LatestPrice(context.Context) (Quote, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.rounds) == 0 {
		return Quote{}, ErrNoRounds
	}
	return copyQuote(f.rounds[len(f.rounds)-1]), nil
}

// Round returns the round with the given id if it is still retained.
func (f *RoundFeed) Round(roundID uint64) (Quote, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.rounds) == 0 {
		return Quote{}, ErrRoundNotFound
	}
	first := f.rounds[0].RoundID
	if roundID < first || roundID-first >= uint64(len(f.rounds)) {
		return Quote{}, ErrRoundNotFound
	}
	return copyQuote(f.rounds[roundID-first]), nil
}

// Rounds returns the number of retained rounds.
func (f *RoundFeed) Rounds() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.rounds)
}

func copyQuote(q Quote) Quote {
	q.Price = new(big.Int).Set(q.Price)
	return q
}
