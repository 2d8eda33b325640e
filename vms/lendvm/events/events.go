// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package events records the audit trail of pool operations.
package events

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"

	"github.com/luxfi/lendvm/utils/timer/mockable"
)

var (
	ErrCorrupted = errors.New("event log corrupted")

	prefixEvent = []byte("event:")
	keyNext     = []byte("next")
)

// Kind names the operation an event records.
type Kind string

const (
	AllowedAssetSet Kind = "AllowedAssetSet"
	Deposit         Kind = "Deposit"
	Withdraw        Kind = "Withdraw"
	Borrow          Kind = "Borrow"
	Repay           Kind = "Repay"
	Liquidate       Kind = "Liquidate"
)

// Event is one entry of the audit trail. Amounts are decimal strings in the
// asset's smallest unit; Value is in the unit of account.
type Event struct {
	Seq       uint64      `json:"seq"`
	Kind      Kind        `json:"kind"`
	Timestamp int64       `json:"timestamp"`
	Account   ids.ShortID `json:"account"`
	Asset     ids.ShortID `json:"asset"`
	Amount    string      `json:"amount,omitempty"`

	// AllowedAssetSet
	Oracle *ids.ShortID `json:"oracle,omitempty"`

	// Liquidate
	RewardAsset  *ids.ShortID `json:"rewardAsset,omitempty"`
	RewardAmount string       `json:"rewardAmount,omitempty"`
	Value        string       `json:"value,omitempty"`
	Liquidator   *ids.ShortID `json:"liquidator,omitempty"`
}

// Addresses returns the ids ev refers to, skipping unset ones.
func (ev Event) Addresses() []ids.ShortID {
	addrs := make([]ids.ShortID, 0, 5)
	for _, id := range []*ids.ShortID{&ev.Account, &ev.Asset, ev.Oracle, ev.RewardAsset, ev.Liquidator} {
		if id != nil && *id != ids.ShortEmpty {
			addrs = append(addrs, *id)
		}
	}
	return addrs
}

// Log is an append-only sequence of events stored in a database.
type Log struct {
	db    database.Database
	clock *mockable.Clock
}

// NewLog returns a log over db. A nil clock uses the wall clock.
func NewLog(db database.Database, clock *mockable.Clock) *Log {
	if clock == nil {
		clock = &mockable.Clock{}
	}
	return &Log{
		db:    db,
		clock: clock,
	}
}

// Append stamps ev with the next sequence number and the current time and
// stores it.
func (l *Log) Append(ev Event) (Event, error) {
	seq, err := l.Len()
	if err != nil {
		return Event{}, err
	}
	ev.Seq = seq
	ev.Timestamp = l.clock.Time().Unix()

	data, err := json.Marshal(ev)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode event: %w", err)
	}
	if err := l.db.Put(eventKey(seq), data); err != nil {
		return Event{}, err
	}
	if err := l.db.Put(keyNext, binary.BigEndian.AppendUint64(nil, seq+1)); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Len returns the number of events recorded.
func (l *Log) Len() (uint64, error) {
	data, err := l.db.Get(keyNext)
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

// Get returns the event with sequence number seq.
func (l *Log) Get(seq uint64) (Event, error) {
	data, err := l.db.Get(eventKey(seq))
	if err != nil {
		return Event{}, err
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrCorrupted, err)
	}
	return ev, nil
}

// Range returns up to limit events starting at sequence number start.
func (l *Log) Range(start uint64, limit int) ([]Event, error) {
	end, err := l.Len()
	if err != nil {
		return nil, err
	}
	if start >= end || limit <= 0 {
		return nil, nil
	}
	end = min(end, start+uint64(limit))

	evs := make([]Event, 0, end-start)
	for seq := start; seq < end; seq++ {
		ev, err := l.Get(seq)
		if err != nil {
			return nil, err
		}
		evs = append(evs, ev)
	}
	return evs, nil
}

func eventKey(seq uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte{}, prefixEvent...), seq)
}
