// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package health values accounts in the unit of account and derives their
// health factor.
package health

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	safemath "github.com/luxfi/lendvm/utils/math"
)

const (
	// LiquidationThreshold is the percentage of collateral value that counts
	// toward covering debt.
	LiquidationThreshold = 80
	ThresholdPrecision   = 100
)

var (
	// MinHealthFactor is the lowest factor at which an account is safe.
	MinHealthFactor = uint256.NewInt(1e18)

	// MaxHealthFactor is reported for accounts without debt.
	MaxHealthFactor = new(uint256.Int).Mul(uint256.NewInt(100), uint256.NewInt(1e18))

	scale              = uint256.NewInt(1e18)
	liquidationPercent = uint256.NewInt(LiquidationThreshold)
	thresholdPrecision = uint256.NewInt(ThresholdPrecision)
)

// Assets lists the allowed assets.
type Assets interface {
	Assets() ([]ids.ShortID, error)
}

// Balances exposes an account's ledger entries.
type Balances interface {
	GetDeposit(account, asset ids.ShortID) (*uint256.Int, error)
	GetBorrow(account, asset ids.ShortID) (*uint256.Int, error)
}

// Valuer prices an asset amount in the unit of account.
type Valuer interface {
	ToUnitOfAccount(ctx context.Context, asset ids.ShortID, amount *uint256.Int) (*uint256.Int, error)
}

// Calculator computes account values from live balances and prices. Nothing
// is cached: every call walks the whole allowed asset list.
type Calculator struct {
	assets   Assets
	balances Balances
	valuer   Valuer
}

func NewCalculator(assets Assets, balances Balances, valuer Valuer) *Calculator {
	return &Calculator{
		assets:   assets,
		balances: balances,
		valuer:   valuer,
	}
}

// AccountValues returns the total borrowed and deposited value of account.
func (c *Calculator) AccountValues(ctx context.Context, account ids.ShortID) (*uint256.Int, *uint256.Int, error) {
	borrowed, err := c.BorrowedValue(ctx, account)
	if err != nil {
		return nil, nil, err
	}
	collateral, err := c.CollateralValue(ctx, account)
	if err != nil {
		return nil, nil, err
	}
	return borrowed, collateral, nil
}

// CollateralValue returns the total deposited value of account.
func (c *Calculator) CollateralValue(ctx context.Context, account ids.ShortID) (*uint256.Int, error) {
	return c.sum(ctx, account, c.balances.GetDeposit)
}

// BorrowedValue returns the total borrowed value of account.
func (c *Calculator) BorrowedValue(ctx context.Context, account ids.ShortID) (*uint256.Int, error) {
	return c.sum(ctx, account, c.balances.GetBorrow)
}

// HealthFactor returns the health factor of account.
func (c *Calculator) HealthFactor(ctx context.Context, account ids.ShortID) (*uint256.Int, error) {
	borrowed, collateral, err := c.AccountValues(ctx, account)
	if err != nil {
		return nil, err
	}
	return Factor(borrowed, collateral)
}

// Factor returns collateral*80/100 scaled by 1e18 and divided by borrowed, or
// MaxHealthFactor when borrowed is zero.
func Factor(borrowed, collateral *uint256.Int) (*uint256.Int, error) {
	adjusted, err := safemath.MulDiv(collateral, liquidationPercent, thresholdPrecision)
	if err != nil {
		return nil, fmt.Errorf("failed to adjust collateral: %w", err)
	}
	if borrowed.IsZero() {
		return new(uint256.Int).Set(MaxHealthFactor), nil
	}
	factor, err := safemath.MulDiv(adjusted, scale, borrowed)
	if err != nil {
		return nil, fmt.Errorf("failed to compute health factor: %w", err)
	}
	return factor, nil
}

// IsHealthy reports whether factor is at or above MinHealthFactor.
func IsHealthy(factor *uint256.Int) bool {
	return !factor.Lt(MinHealthFactor)
}

func (c *Calculator) sum(
	ctx context.Context,
	account ids.ShortID,
	balance func(account, asset ids.ShortID) (*uint256.Int, error),
) (*uint256.Int, error) {
	assets, err := c.assets.Assets()
	if err != nil {
		return nil, err
	}

	total := new(uint256.Int)
	for _, asset := range assets {
		amount, err := balance(account, asset)
		if err != nil {
			return nil, err
		}
		// An asset the account doesn't hold contributes nothing, whatever
		// its oracle reports.
		if amount.IsZero() {
			continue
		}
		value, err := c.valuer.ToUnitOfAccount(ctx, asset, amount)
		if err != nil {
			return nil, err
		}
		total, err = safemath.Add(total, value)
		if err != nil {
			return nil, fmt.Errorf("failed to sum account value: %w", err)
		}
	}
	return total, nil
}
