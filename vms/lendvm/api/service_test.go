// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"context"
	"fmt"
	"math/big"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/utils/json"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/lendvm/vms/lendvm/oracle"
)

// stubVM records deposits, serves the rounds of one feed and panics on
// anything else.
type stubVM struct {
	VM

	initialized bool
	deposits    []*uint256.Int
	oracle      ids.ShortID
	rounds      []oracle.Quote
}

func (s *stubVM) IsInitialized() bool {
	return s.initialized
}

func (s *stubVM) Deposit(_ context.Context, _, _ ids.ShortID, amount *uint256.Int) error {
	s.deposits = append(s.deposits, amount)
	return nil
}

func (s *stubVM) Round(oracleID ids.ShortID, roundID uint64) (oracle.Quote, int, error) {
	if oracleID != s.oracle {
		return oracle.Quote{}, 0, fmt.Errorf("%w: %s", oracle.ErrUnknownOracle, oracleID)
	}
	for _, quote := range s.rounds {
		if quote.RoundID == roundID {
			return quote, len(s.rounds), nil
		}
	}
	return oracle.Quote{}, 0, oracle.ErrRoundNotFound
}

func TestDepositArgs(t *testing.T) {
	from := ids.GenerateTestShortID().String()
	asset := ids.GenerateTestShortID().String()

	tests := []struct {
		name        string
		initialized bool
		args        AmountArgs
		expectedErr error
	}{
		{
			name:        "not initialized",
			args:        AmountArgs{From: from, Asset: asset, Amount: "1"},
			expectedErr: ErrNotInitialized,
		},
		{
			name:        "missing from",
			initialized: true,
			args:        AmountArgs{Asset: asset, Amount: "1"},
			expectedErr: ErrInvalidRequest,
		},
		{
			name:        "malformed asset",
			initialized: true,
			args:        AmountArgs{From: from, Asset: "not an id", Amount: "1"},
			expectedErr: ErrInvalidRequest,
		},
		{
			name:        "negative amount",
			initialized: true,
			args:        AmountArgs{From: from, Asset: asset, Amount: "-1"},
			expectedErr: ErrInvalidRequest,
		},
		{
			name:        "amount above 256 bits",
			initialized: true,
			args: AmountArgs{
				From:   from,
				Asset:  asset,
				Amount: "115792089237316195423570985008687907853269984665640564039457584007913129639936",
			},
			expectedErr: ErrInvalidRequest,
		},
		{
			name:        "valid",
			initialized: true,
			args:        AmountArgs{From: from, Asset: asset, Amount: "42"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			vm := &stubVM{initialized: test.initialized}
			s := NewService(vm, log.NewNoOpLogger())

			var reply SuccessReply
			err := s.Deposit(httptest.NewRequest("POST", "/", nil), &test.args, &reply)
			require.ErrorIs(err, test.expectedErr)
			require.Equal(test.expectedErr == nil, reply.Success)
			if test.expectedErr == nil {
				require.Len(vm.deposits, 1)
				require.Equal(uint64(42), vm.deposits[0].Uint64())
			} else {
				require.Empty(vm.deposits)
			}
		})
	}
}

func TestPing(t *testing.T) {
	s := NewService(&stubVM{}, log.NewNoOpLogger())

	var reply PingReply
	require.NoError(t, s.Ping(nil, &struct{}{}, &reply))
	require.True(t, reply.Success)
}

func TestGetRound(t *testing.T) {
	oracleID := ids.GenerateTestShortID()
	updatedAt := time.Unix(1700000000, 0)
	rounds := []oracle.Quote{
		{RoundID: 4, Price: big.NewInt(10), UpdatedAt: updatedAt},
		{RoundID: 5, Price: big.NewInt(11), UpdatedAt: updatedAt.Add(time.Minute)},
	}

	tests := []struct {
		name          string
		initialized   bool
		args          GetRoundArgs
		expectedErr   error
		expectedReply GetRoundReply
	}{
		{
			name:        "not initialized",
			args:        GetRoundArgs{Oracle: oracleID.String(), RoundID: 4},
			expectedErr: ErrNotInitialized,
		},
		{
			name:        "missing oracle",
			initialized: true,
			args:        GetRoundArgs{RoundID: 4},
			expectedErr: ErrInvalidRequest,
		},
		{
			name:        "unknown oracle",
			initialized: true,
			args:        GetRoundArgs{Oracle: ids.GenerateTestShortID().String(), RoundID: 4},
			expectedErr: oracle.ErrUnknownOracle,
		},
		{
			name:        "evicted round",
			initialized: true,
			args:        GetRoundArgs{Oracle: oracleID.String(), RoundID: 3},
			expectedErr: oracle.ErrRoundNotFound,
		},
		{
			name:        "retained round",
			initialized: true,
			args:        GetRoundArgs{Oracle: oracleID.String(), RoundID: 5},
			expectedReply: GetRoundReply{
				RoundID:   json.Uint64(5),
				Price:     "11",
				UpdatedAt: updatedAt.Add(time.Minute).Unix(),
				Rounds:    2,
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			vm := &stubVM{
				initialized: test.initialized,
				oracle:      oracleID,
				rounds:      rounds,
			}
			s := NewService(vm, log.NewNoOpLogger())

			var reply GetRoundReply
			err := s.GetRound(httptest.NewRequest("POST", "/", nil), &test.args, &reply)
			require.ErrorIs(err, test.expectedErr)
			require.Equal(test.expectedReply, reply)
		})
	}
}
