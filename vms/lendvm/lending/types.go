// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package lending

import (
	"bytes"
	"context"
	"errors"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/luxfi/pubsub"

	"github.com/luxfi/lendvm/vms/lendvm/health"
	"github.com/luxfi/lendvm/vms/lendvm/ledger"
	"github.com/luxfi/lendvm/vms/lendvm/oracle"
)

const (
	// LiquidationReward is the percentage premium a liquidator receives on
	// top of the debt it repays.
	LiquidationReward = 5
	rewardPrecision   = 100
)

// Operation names used in logs and metrics.
const (
	OpSetAllowedAsset = "setAllowedAsset"
	OpDeposit         = "deposit"
	OpWithdraw        = "withdraw"
	OpBorrow          = "borrow"
	OpRepay           = "repay"
	OpLiquidate       = "liquidate"
)

var (
	ErrAssetNotAllowed       = oracle.ErrAssetNotAllowed
	ErrAmountMustBePositive  = errors.New("amount must be positive")
	ErrInsufficientFunds     = ledger.ErrInsufficientFunds
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrHealthFactorTooLow    = errors.New("health factor check failed")
	ErrRepaidTooMuch         = ledger.ErrRepaidTooMuch
	ErrNoDebtToPay           = errors.New("no debt to pay")
	ErrTransferFailed        = errors.New("transfer failed")
	ErrReentrant             = errors.New("reentrant call")

	MinHealthFactor = health.MinHealthFactor
)

// Transferrer moves tokens between accounts and the pool.
type Transferrer interface {
	// TransferIn pulls amount of asset from from into the pool.
	TransferIn(ctx context.Context, asset, from ids.ShortID, amount *uint256.Int) error
	// TransferOut pushes amount of asset from the pool to to.
	TransferOut(ctx context.Context, asset, to ids.ShortID, amount *uint256.Int) error
	// BalanceOf returns the amount of asset held by holder.
	BalanceOf(ctx context.Context, asset, holder ids.ShortID) (*uint256.Int, error)
}

// Publisher delivers committed events to subscribers.
type Publisher interface {
	Publish(pubsub.Filterer)
}

// Liquidation describes a completed liquidation.
type Liquidation struct {
	Account     ids.ShortID `json:"account"`
	Liquidator  ids.ShortID `json:"liquidator"`
	RepayAsset  ids.ShortID `json:"repayAsset"`
	RewardAsset ids.ShortID `json:"rewardAsset"`
	// Repaid is half of the account's debt in RepayAsset.
	Repaid *uint256.Int `json:"repaid"`
	// Value is Repaid in the unit of account.
	Value *uint256.Int `json:"value"`
	// Reward is the amount of RewardAsset paid to the liquidator, worth
	// Value plus the liquidation reward.
	Reward *uint256.Int `json:"reward"`
}

// AccountHealth pairs an account with its current health factor.
type AccountHealth struct {
	Account      ids.ShortID  `json:"account"`
	HealthFactor *uint256.Int `json:"healthFactor"`
}

// Compare orders accounts by ascending health factor, so the most
// undercollateralized come first, breaking ties by account id.
func (a AccountHealth) Compare(other AccountHealth) int {
	if c := a.HealthFactor.Cmp(other.HealthFactor); c != 0 {
		return c
	}
	return bytes.Compare(a.Account[:], other.Account[:])
}
