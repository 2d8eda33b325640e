// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
)

// Vault is the pool's view of a Bank: funds move into and out of a single
// pool address.
type Vault struct {
	bank *Bank
	pool ids.ShortID
}

func NewVault(bank *Bank, pool ids.ShortID) *Vault {
	return &Vault{
		bank: bank,
		pool: pool,
	}
}

// Address returns the holder id of the pool.
func (v *Vault) Address() ids.ShortID {
	return v.pool
}

// TransferIn pulls amount from from into the pool. from must have approved
// the pool for at least amount.
func (v *Vault) TransferIn(ctx context.Context, asset, from ids.ShortID, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return v.bank.TransferFrom(asset, v.pool, from, v.pool, amount)
}

// TransferOut pushes amount from the pool to to.
func (v *Vault) TransferOut(ctx context.Context, asset, to ids.ShortID, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return v.bank.Transfer(asset, v.pool, to, amount)
}

func (v *Vault) BalanceOf(_ context.Context, asset, holder ids.ShortID) (*uint256.Int, error) {
	return v.bank.BalanceOf(asset, holder)
}
