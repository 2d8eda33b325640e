// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package lendvm implements a collateralized lending pool VM.
//
// Accounts deposit listed assets as collateral, borrow pool reserves against
// it and are liquidated once their health factor drops below one. Prices come
// from round based feeds that only the configured admin can update.
package lendvm

import (
	"github.com/luxfi/ids"

	"github.com/luxfi/lendvm/vms/lendvm/config"
)

// VMID is the unique identifier for the lending VM
var VMID = ids.ID{'l', 'e', 'n', 'd', 'v', 'm'}

// Factory creates new lending VM instances.
type Factory struct {
	config.Config
}

// New returns an uninitialized VM carrying the factory's configuration.
func (f *Factory) New() *VM {
	return &VM{Config: f.Config}
}
