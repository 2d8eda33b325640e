// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	safemath "github.com/luxfi/lendvm/utils/math"
)

var (
	ErrAssetNotAllowed = errors.New("asset not allowed")
	ErrNegativePrice   = errors.New("oracle reported a negative price")

	// ErrArithmeticOverflow and ErrDivisionByZero are fatal: a conversion that
	// hits either never produces a value.
	ErrArithmeticOverflow = safemath.ErrOverflow
	ErrDivisionByZero     = safemath.ErrDivisionByZero

	// Scale is the fixed point factor of prices and unit of account values.
	Scale = uint256.NewInt(1e18)
)

// OracleSource returns the oracle bound to an asset, or ids.ShortEmpty when
// the asset is not allowed.
type OracleSource interface {
	Oracle(asset ids.ShortID) (ids.ShortID, error)
}

// Converter prices asset amounts in the unit of account using the oracle
// currently bound to each asset.
type Converter struct {
	oracles OracleSource
	feeds   Resolver
}

func NewConverter(oracles OracleSource, feeds Resolver) *Converter {
	return &Converter{
		oracles: oracles,
		feeds:   feeds,
	}
}

// Price returns the latest unsigned price of asset.
func (c *Converter) Price(ctx context.Context, asset ids.ShortID) (*uint256.Int, error) {
	oracle, err := c.oracles.Oracle(asset)
	if err != nil {
		return nil, err
	}
	if oracle == ids.ShortEmpty {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotAllowed, asset)
	}
	feed, err := c.feeds.Feed(oracle)
	if err != nil {
		return nil, err
	}
	quote, err := feed.LatestPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read oracle %s: %w", oracle, err)
	}
	if quote.Price == nil || quote.Price.Sign() < 0 {
		return nil, fmt.Errorf("%w: asset %s round %d", ErrNegativePrice, asset, quote.RoundID)
	}
	price, overflow := uint256.FromBig(quote.Price)
	if overflow {
		return nil, fmt.Errorf("%w: price of %s", ErrArithmeticOverflow, asset)
	}
	return price, nil
}

// ToUnitOfAccount returns amount * price / Scale.
func (c *Converter) ToUnitOfAccount(ctx context.Context, asset ids.ShortID, amount *uint256.Int) (*uint256.Int, error) {
	price, err := c.Price(ctx, asset)
	if err != nil {
		return nil, err
	}
	value, err := safemath.MulDiv(amount, price, Scale)
	if err != nil {
		return nil, fmt.Errorf("failed to value %s of %s: %w", amount.Dec(), asset, err)
	}
	return value, nil
}

// FromUnitOfAccount returns value * Scale / price. A zero price fails with
// ErrDivisionByZero.
func (c *Converter) FromUnitOfAccount(ctx context.Context, asset ids.ShortID, value *uint256.Int) (*uint256.Int, error) {
	price, err := c.Price(ctx, asset)
	if err != nil {
		return nil, err
	}
	amount, err := safemath.MulDiv(value, Scale, price)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s into %s: %w", value.Dec(), asset, err)
	}
	return amount, nil
}
