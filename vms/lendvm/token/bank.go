// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package token implements fungible token balances with transfer and approve
// semantics for every asset the pool handles.
package token

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/ids"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrBalanceOverflow       = errors.New("balance overflow")
	ErrStateCorrupted        = errors.New("state corrupted")

	// Database prefixes
	prefixBalance   = []byte("balance:")
	prefixAllowance = []byte("allowance:")
)

// Bank holds token balances and allowances in a database. It keeps no cache,
// so reads always reflect the database including uncommitted writes.
type Bank struct {
	db database.Database
}

// NewBank creates a bank over db.
func NewBank(db database.Database) *Bank {
	return &Bank{db: db}
}

// BalanceOf returns the balance of asset held by holder.
func (b *Bank) BalanceOf(asset, holder ids.ShortID) (*uint256.Int, error) {
	return b.get(key(prefixBalance, asset, holder))
}

// Allowance returns how much of owner's asset spender may move.
func (b *Bank) Allowance(asset, owner, spender ids.ShortID) (*uint256.Int, error) {
	return b.get(key(prefixAllowance, asset, owner, spender))
}

// Mint credits amount of asset to holder out of thin air. Used to seed
// genesis balances.
func (b *Bank) Mint(asset, holder ids.ShortID, amount *uint256.Int) error {
	k := key(prefixBalance, asset, holder)
	balance, err := b.get(k)
	if err != nil {
		return err
	}
	if _, overflow := balance.AddOverflow(balance, amount); overflow {
		return ErrBalanceOverflow
	}
	return b.put(k, balance)
}

// Approve sets the allowance of spender over owner's asset to amount.
func (b *Bank) Approve(asset, owner, spender ids.ShortID, amount *uint256.Int) error {
	return b.put(key(prefixAllowance, asset, owner, spender), amount)
}

// Transfer moves amount of asset from one holder to another.
func (b *Bank) Transfer(asset, from, to ids.ShortID, amount *uint256.Int) error {
	fromKey := key(prefixBalance, asset, from)
	fromBalance, err := b.get(fromKey)
	if err != nil {
		return err
	}
	if fromBalance.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s",
			ErrInsufficientBalance, from, fromBalance.Dec(), asset, amount.Dec())
	}
	if from == to {
		return nil
	}

	toKey := key(prefixBalance, asset, to)
	toBalance, err := b.get(toKey)
	if err != nil {
		return err
	}
	if _, overflow := toBalance.AddOverflow(toBalance, amount); overflow {
		return ErrBalanceOverflow
	}
	if err := b.put(fromKey, fromBalance.Sub(fromBalance, amount)); err != nil {
		return err
	}
	return b.put(toKey, toBalance)
}

// TransferFrom moves amount of from's asset to to, spending spender's
// allowance.
func (b *Bank) TransferFrom(asset, spender, from, to ids.ShortID, amount *uint256.Int) error {
	allowanceKey := key(prefixAllowance, asset, from, spender)
	allowance, err := b.get(allowanceKey)
	if err != nil {
		return err
	}
	if allowance.Lt(amount) {
		return fmt.Errorf("%w: %s may spend %s of %s, needs %s",
			ErrInsufficientAllowance, spender, allowance.Dec(), asset, amount.Dec())
	}
	if err := b.Transfer(asset, from, to, amount); err != nil {
		return err
	}
	return b.put(allowanceKey, allowance.Sub(allowance, amount))
}

func (b *Bank) get(k []byte) (*uint256.Int, error) {
	data, err := b.db.Get(k)
	if errors.Is(err, database.ErrNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) != 32 {
		return nil, ErrStateCorrupted
	}
	return new(uint256.Int).SetBytes32(data), nil
}

func (b *Bank) put(k []byte, value *uint256.Int) error {
	if value.IsZero() {
		return b.db.Delete(k)
	}
	data := value.Bytes32()
	return b.db.Put(k, data[:])
}

func key(prefix []byte, parts ...ids.ShortID) []byte {
	k := make([]byte, 0, len(prefix)+len(parts)*len(ids.ShortID{}))
	k = append(k, prefix...)
	for _, part := range parts {
		k = append(k, part[:]...)
	}
	return k
}
