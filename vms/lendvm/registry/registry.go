// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry tracks which assets the lending pool accepts and which
// price oracle values each of them.
package registry

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
)

var (
	ErrUnauthorized  = errors.New("caller does not hold the registry admin capability")
	ErrInvalidAsset  = errors.New("asset must be non-zero")
	ErrInvalidOracle = errors.New("oracle must be non-zero")
	ErrCorrupted     = errors.New("registry state corrupted")

	prefixOracle = []byte("oracle:")
	prefixAsset  = []byte("asset:")
	keyCount     = []byte("count")
)

// AdminCap is the capability required to mutate a Registry. Only New mints
// one, and it is bound to the registry that minted it.
type AdminCap struct {
	registry *Registry
}

// AllowedAsset pairs an asset with the oracle that prices it.
type AllowedAsset struct {
	Asset  ids.ShortID `json:"asset"`
	Oracle ids.ShortID `json:"oracle"`
}

// Registry persists the asset -> oracle binding and the insertion ordered
// list of allowed assets. It keeps no in-memory copy, so a rollback of the
// underlying database is always reflected.
type Registry struct {
	db database.Database
}

// New returns a registry over db and the admin capability for it.
func New(db database.Database) (*Registry, *AdminCap) {
	r := &Registry{db: db}
	return r, &AdminCap{registry: r}
}

// SetAllowedAsset binds asset to oracle. The asset is appended to the list on
// first use; later calls only rebind the oracle. It reports whether the asset
// was newly listed.
func (r *Registry) SetAllowedAsset(admin *AdminCap, asset, oracle ids.ShortID) (bool, error) {
	if admin == nil || admin.registry != r {
		return false, ErrUnauthorized
	}
	if asset == ids.ShortEmpty {
		return false, ErrInvalidAsset
	}
	if oracle == ids.ShortEmpty {
		return false, ErrInvalidOracle
	}

	allowed, err := r.IsAllowed(asset)
	if err != nil {
		return false, err
	}
	if !allowed {
		if err := r.appendAsset(asset); err != nil {
			return false, err
		}
	}
	if err := r.db.Put(oracleKey(asset), oracle[:]); err != nil {
		return false, fmt.Errorf("failed to bind oracle: %w", err)
	}
	return !allowed, nil
}

// IsAllowed reports whether asset has a non-zero oracle bound.
func (r *Registry) IsAllowed(asset ids.ShortID) (bool, error) {
	oracle, err := r.Oracle(asset)
	if err != nil {
		return false, err
	}
	return oracle != ids.ShortEmpty, nil
}

// Oracle returns the oracle bound to asset, or ids.ShortEmpty.
func (r *Registry) Oracle(asset ids.ShortID) (ids.ShortID, error) {
	data, err := r.db.Get(oracleKey(asset))
	if errors.Is(err, database.ErrNotFound) {
		return ids.ShortEmpty, nil
	}
	if err != nil {
		return ids.ShortEmpty, err
	}
	oracle, err := ids.ToShortID(data)
	if err != nil {
		return ids.ShortEmpty, fmt.Errorf("%w: %w", ErrCorrupted, err)
	}
	return oracle, nil
}

// Assets returns the allowed assets in the order they were first listed.
func (r *Registry) Assets() ([]ids.ShortID, error) {
	it := r.db.NewIteratorWithPrefix(prefixAsset)
	defer it.Release()

	var assets []ids.ShortID
	for it.Next() {
		asset, err := ids.ToShortID(it.Value())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupted, err)
		}
		assets = append(assets, asset)
	}
	return assets, it.Error()
}

// AllowedAssets returns every listed asset with its current oracle.
func (r *Registry) AllowedAssets() ([]AllowedAsset, error) {
	assets, err := r.Assets()
	if err != nil {
		return nil, err
	}
	allowed := make([]AllowedAsset, 0, len(assets))
	for _, asset := range assets {
		oracle, err := r.Oracle(asset)
		if err != nil {
			return nil, err
		}
		allowed = append(allowed, AllowedAsset{Asset: asset, Oracle: oracle})
	}
	return allowed, nil
}

// Len returns the number of listed assets.
func (r *Registry) Len() (uint64, error) {
	data, err := r.db.Get(keyCount)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, ErrCorrupted
	}
	return binary.BigEndian.Uint64(data), nil
}

func (r *Registry) appendAsset(asset ids.ShortID) error {
	count, err := r.Len()
	if err != nil {
		return err
	}
	if err := r.db.Put(assetKey(count), asset[:]); err != nil {
		return fmt.Errorf("failed to list asset: %w", err)
	}
	return r.db.Put(keyCount, binary.BigEndian.AppendUint64(nil, count+1))
}

func oracleKey(asset ids.ShortID) []byte {
	return append(append([]byte{}, prefixOracle...), asset[:]...)
}

// assetKey encodes the list position big endian so prefix iteration returns
// assets in insertion order.
func assetKey(index uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte{}, prefixAsset...), index)
}
