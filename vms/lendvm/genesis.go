// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package lendvm

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/lendvm/vms/lendvm/registry"
)

var (
	errDuplicateOracle = errors.New("duplicate oracle")
	errUnknownOracle   = errors.New("asset references an undefined oracle")
	errInvalidPrice    = errors.New("invalid price")
	errInvalidAmount   = errors.New("invalid amount")
	errEmptyID         = errors.New("id must be non-zero")
)

// Genesis is the initial state of the lending VM.
type Genesis struct {
	// Oracles are the price feeds available at launch.
	Oracles []GenesisOracle `json:"oracles"`
	// Assets are listed in order, each bound to one of Oracles.
	Assets []registry.AllowedAsset `json:"assets"`
	// Balances seed the token bank, including the pool's reserves.
	Balances []GenesisBalance `json:"balances"`
}

// GenesisOracle describes a price feed and its first quote.
type GenesisOracle struct {
	ID          ids.ShortID `json:"id"`
	Description string      `json:"description"`
	// Price is a base 10 integer scaled by 1e18.
	Price string `json:"price"`
}

// GenesisBalance credits Amount of Asset to Holder.
type GenesisBalance struct {
	Asset  ids.ShortID `json:"asset"`
	Holder ids.ShortID `json:"holder"`
	// Amount is a base 10 integer in the asset's smallest unit.
	Amount string `json:"amount"`
}

// ParseGenesis decodes and verifies genesisBytes.
func ParseGenesis(genesisBytes []byte) (*Genesis, error) {
	genesis := &Genesis{}
	if err := json.Unmarshal(genesisBytes, genesis); err != nil {
		return nil, err
	}
	return genesis, genesis.Verify()
}

// Verify checks that every value parses and every asset is bound to a
// defined oracle.
func (g *Genesis) Verify() error {
	oracles := make(map[ids.ShortID]struct{}, len(g.Oracles))
	for _, o := range g.Oracles {
		if o.ID == ids.ShortEmpty {
			return fmt.Errorf("oracle %q: %w", o.Description, errEmptyID)
		}
		if _, ok := oracles[o.ID]; ok {
			return fmt.Errorf("%w: %s", errDuplicateOracle, o.ID)
		}
		if _, err := parsePrice(o.Price); err != nil {
			return fmt.Errorf("oracle %s: %w", o.ID, err)
		}
		oracles[o.ID] = struct{}{}
	}
	for _, asset := range g.Assets {
		if asset.Asset == ids.ShortEmpty {
			return fmt.Errorf("asset: %w", errEmptyID)
		}
		if _, ok := oracles[asset.Oracle]; !ok {
			return fmt.Errorf("%w: %s -> %s", errUnknownOracle, asset.Asset, asset.Oracle)
		}
	}
	for _, balance := range g.Balances {
		if balance.Asset == ids.ShortEmpty || balance.Holder == ids.ShortEmpty {
			return fmt.Errorf("balance: %w", errEmptyID)
		}
		if _, err := parseAmount(balance.Amount); err != nil {
			return fmt.Errorf("balance of %s for %s: %w", balance.Asset, balance.Holder, err)
		}
	}
	return nil
}

func parsePrice(s string) (*big.Int, error) {
	price, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", errInvalidPrice, s)
	}
	return price, nil
}

func parseAmount(s string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", errInvalidAmount, s, err)
	}
	return amount, nil
}
