// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config defines configuration types for the lending VM.
package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luxfi/ids"

	"github.com/luxfi/lendvm/vms/lendvm/oracle"
)

var (
	ErrInvalidPool        = errors.New("pool address must be non-zero")
	ErrInvalidMaxEvents   = errors.New("maxEvents must be positive")
	ErrInvalidFeedHistory = errors.New("feedHistory must be positive")

	// DefaultPool is the holder id of the pool's reserves unless configured.
	DefaultPool = ids.ShortID{'l', 'e', 'n', 'd', 'p', 'o', 'o', 'l'}
)

// Config contains configuration parameters for the lending VM.
type Config struct {
	// Admin is the address allowed to list assets and push prices over the
	// API. The empty address disables both.
	Admin ids.ShortID `json:"admin"`
	// Pool is the holder id of the pool's reserves in the token bank.
	Pool ids.ShortID `json:"pool"`
	// MaxEvents caps the number of events returned by one query.
	MaxEvents int `json:"maxEvents"`
	// FeedHistory is the number of rounds each price feed retains.
	FeedHistory int `json:"feedHistory"`
}

// DefaultConfig returns the default configuration for the lending VM.
func DefaultConfig() Config {
	return Config{
		Pool:        DefaultPool,
		MaxEvents:   1024,
		FeedHistory: oracle.DefaultHistory,
	}
}

// ParseConfig overlays the json in data on the defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if len(data) == 0 {
		return cfg, nil
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, cfg.Verify()
}

// Verify checks the configuration for values the VM can't run with.
func (c Config) Verify() error {
	switch {
	case c.Pool == ids.ShortEmpty:
		return ErrInvalidPool
	case c.MaxEvents <= 0:
		return ErrInvalidMaxEvents
	case c.FeedHistory <= 0:
		return ErrInvalidFeedHistory
	default:
		return nil
	}
}
