// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/lendvm/utils/timer/mockable"
)

func TestNewRoundFeedInvalidHistory(t *testing.T) {
	_, err := NewRoundFeed("ETH / USD", 0, nil)
	require.ErrorIs(t, err, ErrInvalidHistory)
}

func TestRoundFeedLatestPrice(t *testing.T) {
	require := require.New(t)

	clock := &mockable.Clock{}
	clock.Set(time.Unix(1_700_000_000, 0))
	feed, err := NewRoundFeed("ETH / USD", 4, clock)
	require.NoError(err)
	require.Equal("ETH / USD", feed.Description())

	_, err = feed.LatestPrice(context.Background())
	require.ErrorIs(err, ErrNoRounds)

	feed.Record(big.NewInt(1900))
	clock.Advance(time.Minute)
	published := feed.Record(big.NewInt(2000))
	require.Equal(uint64(2), published.RoundID)

	quote, err := feed.LatestPrice(context.Background())
	require.NoError(err)
	require.Equal(uint64(2), quote.RoundID)
	require.Zero(quote.Price.Cmp(big.NewInt(2000)))
	require.Equal(clock.Time(), quote.UpdatedAt)

	// Callers cannot mutate the stored round.
	quote.Price.SetInt64(1)
	again, err := feed.LatestPrice(context.Background())
	require.NoError(err)
	require.Zero(again.Price.Cmp(big.NewInt(2000)))
}

func TestRoundFeedKeepsPassThroughPrices(t *testing.T) {
	require := require.New(t)

	feed, err := NewRoundFeed("BAD / USD", 2, nil)
	require.NoError(err)

	feed.Record(big.NewInt(0))
	quote, err := feed.LatestPrice(context.Background())
	require.NoError(err)
	require.Zero(quote.Price.Sign())

	feed.Record(big.NewInt(-5))
	quote, err = feed.LatestPrice(context.Background())
	require.NoError(err)
	require.Equal(-1, quote.Price.Sign())
}

func TestRoundFeedPrunesHistory(t *testing.T) {
	require := require.New(t)

	feed, err := NewRoundFeed("BTC / USD", 3, nil)
	require.NoError(err)
	for i := int64(1); i <= 5; i++ {
		feed.Record(big.NewInt(i * 100))
	}
	require.Equal(3, feed.Rounds())

	_, err = feed.Round(2)
	require.ErrorIs(err, ErrRoundNotFound)
	_, err = feed.Round(6)
	require.ErrorIs(err, ErrRoundNotFound)

	round, err := feed.Round(3)
	require.NoError(err)
	require.Zero(round.Price.Cmp(big.NewInt(300)))

	latest, err := feed.LatestPrice(context.Background())
	require.NoError(err)
	require.Equal(uint64(5), latest.RoundID)
}
