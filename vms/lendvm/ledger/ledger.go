// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger stores per account, per asset deposit and borrow balances.
package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/ids"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrRepaidTooMuch     = errors.New("repaid too much")
	ErrBalanceOverflow   = errors.New("balance overflow")
	ErrCorrupted         = errors.New("ledger state corrupted")

	prefixDeposit = []byte("deposit:")
	prefixBorrow  = []byte("borrow:")
)

const (
	idLen      = len(ids.ShortID{})
	balanceLen = 32
)

// Position is the pair of balances an account holds in one asset.
type Position struct {
	Asset   ids.ShortID  `json:"asset"`
	Deposit *uint256.Int `json:"deposit"`
	Borrow  *uint256.Int `json:"borrow"`
}

// Ledger is the source of truth for account balances. Absent entries read as
// zero and entries that reach zero are deleted.
type Ledger struct {
	db database.Database
}

func New(db database.Database) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) GetDeposit(account, asset ids.ShortID) (*uint256.Int, error) {
	return l.get(balanceKey(prefixDeposit, account, asset))
}

func (l *Ledger) GetBorrow(account, asset ids.ShortID) (*uint256.Int, error) {
	return l.get(balanceKey(prefixBorrow, account, asset))
}

func (l *Ledger) IncreaseDeposit(account, asset ids.ShortID, amount *uint256.Int) error {
	return l.increase(balanceKey(prefixDeposit, account, asset), amount)
}

// DecreaseDeposit fails with ErrInsufficientFunds if the deposit is smaller
// than amount.
func (l *Ledger) DecreaseDeposit(account, asset ids.ShortID, amount *uint256.Int) error {
	return l.decrease(balanceKey(prefixDeposit, account, asset), amount, ErrInsufficientFunds)
}

func (l *Ledger) IncreaseBorrow(account, asset ids.ShortID, amount *uint256.Int) error {
	return l.increase(balanceKey(prefixBorrow, account, asset), amount)
}

// DecreaseBorrow fails with ErrRepaidTooMuch if the borrow is smaller than
// amount.
func (l *Ledger) DecreaseBorrow(account, asset ids.ShortID, amount *uint256.Int) error {
	return l.decrease(balanceKey(prefixBorrow, account, asset), amount, ErrRepaidTooMuch)
}

// Positions returns every asset in which account has a non-zero balance,
// ordered by asset.
func (l *Ledger) Positions(account ids.ShortID) ([]Position, error) {
	positions := make(map[ids.ShortID]*Position)
	position := func(asset ids.ShortID) *Position {
		p, ok := positions[asset]
		if !ok {
			p = &Position{
				Asset:   asset,
				Deposit: new(uint256.Int),
				Borrow:  new(uint256.Int),
			}
			positions[asset] = p
		}
		return p
	}

	err := l.scan(accountPrefix(prefixDeposit, account), func(_, asset ids.ShortID, balance *uint256.Int) {
		position(asset).Deposit = balance
	})
	if err != nil {
		return nil, err
	}
	err = l.scan(accountPrefix(prefixBorrow, account), func(_, asset ids.ShortID, balance *uint256.Int) {
		position(asset).Borrow = balance
	})
	if err != nil {
		return nil, err
	}

	result := make([]Position, 0, len(positions))
	for _, p := range positions {
		result = append(result, *p)
	}
	slices.SortFunc(result, func(a, b Position) int {
		return bytes.Compare(a.Asset[:], b.Asset[:])
	})
	return result, nil
}

// Accounts returns every account holding at least one non-zero balance,
// ordered by account.
func (l *Ledger) Accounts() ([]ids.ShortID, error) {
	seen := make(map[ids.ShortID]struct{})
	collect := func(account, _ ids.ShortID, _ *uint256.Int) {
		seen[account] = struct{}{}
	}
	if err := l.scan(prefixDeposit, collect); err != nil {
		return nil, err
	}
	if err := l.scan(prefixBorrow, collect); err != nil {
		return nil, err
	}

	accounts := make([]ids.ShortID, 0, len(seen))
	for account := range seen {
		accounts = append(accounts, account)
	}
	slices.SortFunc(accounts, func(a, b ids.ShortID) int {
		return bytes.Compare(a[:], b[:])
	})
	return accounts, nil
}

func (l *Ledger) get(key []byte) (*uint256.Int, error) {
	data, err := l.db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) != balanceLen {
		return nil, ErrCorrupted
	}
	return new(uint256.Int).SetBytes32(data), nil
}

func (l *Ledger) put(key []byte, balance *uint256.Int) error {
	if balance.IsZero() {
		return l.db.Delete(key)
	}
	value := balance.Bytes32()
	return l.db.Put(key, value[:])
}

func (l *Ledger) increase(key []byte, amount *uint256.Int) error {
	balance, err := l.get(key)
	if err != nil {
		return err
	}
	if _, overflow := balance.AddOverflow(balance, amount); overflow {
		return ErrBalanceOverflow
	}
	return l.put(key, balance)
}

func (l *Ledger) decrease(key []byte, amount *uint256.Int, short error) error {
	balance, err := l.get(key)
	if err != nil {
		return err
	}
	if balance.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", short, balance.Dec(), amount.Dec())
	}
	return l.put(key, balance.Sub(balance, amount))
}

func (l *Ledger) scan(prefix []byte, f func(account, asset ids.ShortID, balance *uint256.Int)) error {
	it := l.db.NewIteratorWithPrefix(prefix)
	defer it.Release()

	for it.Next() {
		key := it.Key()
		value := it.Value()
		if len(key) < idLen*2 || len(value) != balanceLen {
			return ErrCorrupted
		}
		var account, asset ids.ShortID
		tail := key[len(key)-idLen*2:]
		copy(account[:], tail[:idLen])
		copy(asset[:], tail[idLen:])
		f(account, asset, new(uint256.Int).SetBytes32(value))
	}
	return it.Error()
}

func accountPrefix(prefix []byte, account ids.ShortID) []byte {
	key := make([]byte, 0, len(prefix)+idLen)
	key = append(key, prefix...)
	return append(key, account[:]...)
}

func balanceKey(prefix []byte, account, asset ids.ShortID) []byte {
	return append(accountPrefix(prefix, account), asset[:]...)
}
