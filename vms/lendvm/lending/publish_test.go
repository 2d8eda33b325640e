// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package lending

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/luxfi/mock/gomock"
	"github.com/luxfi/pubsub"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/lendvm/vms/lendvm/events"
	"github.com/luxfi/lendvm/vms/lendvm/lending/lendingmock"
)

// published returns the events handed to publisher, in order.
func published(ctrl *gomock.Controller) (*lendingmock.Publisher, *[]events.Event) {
	publisher := lendingmock.NewPublisher(ctrl)
	var evs []events.Event
	publisher.EXPECT().Publish(gomock.Any()).Do(func(f pubsub.Filterer) {
		_, value := f.Filter(nil)
		evs = append(evs, value.(events.Event))
	}).AnyTimes()
	return publisher, &evs
}

func TestCommittedEventsArePublished(t *testing.T) {
	require := require.New(t)

	ctrl := gomock.NewController(t)
	publisher, evs := published(ctrl)

	env := newTestEnv(t)
	env.engine.publisher = publisher

	asset := env.list(1)
	alice := ids.GenerateTestShortID()
	env.fund(asset, alice, units(3))
	require.NoError(env.engine.Deposit(env.ctx, alice, asset, units(3)))
	require.NoError(env.engine.Withdraw(env.ctx, alice, asset, units(1)))

	require.Len(*evs, 3)
	require.Equal(events.AllowedAssetSet, (*evs)[0].Kind)
	require.Equal(asset, (*evs)[0].Asset)
	require.NotNil((*evs)[0].Oracle)
	require.Equal(events.Deposit, (*evs)[1].Kind)
	require.Equal(events.Withdraw, (*evs)[2].Kind)
	for i, ev := range *evs {
		require.Equal(uint64(i), ev.Seq)
	}

	stored, err := env.engine.Events(0, 10)
	require.NoError(err)
	require.Equal(stored, *evs)
}

func TestRejectedOperationPublishesNothing(t *testing.T) {
	require := require.New(t)

	ctrl := gomock.NewController(t)
	publisher := lendingmock.NewPublisher(ctrl)

	env := newTestEnv(t)
	asset := env.list(1)
	alice := ids.GenerateTestShortID()
	env.fund(asset, alice, units(1))

	env.engine.publisher = publisher
	env.transfers.beforeIn = func() error { return errRejected }
	err := env.engine.Deposit(env.ctx, alice, asset, units(1))
	require.ErrorIs(err, errRejected)

	err = env.engine.Withdraw(env.ctx, alice, asset, units(1))
	require.ErrorIs(err, ErrInsufficientFunds)

	// A later operation publishes only its own events.
	env.transfers.beforeIn = nil
	publisher.EXPECT().Publish(gomock.Any()).Do(func(f pubsub.Filterer) {
		_, value := f.Filter(nil)
		ev := value.(events.Event)
		require.Equal(events.Deposit, ev.Kind)
		require.Equal(alice, ev.Account)
	}).Times(1)
	require.NoError(env.engine.Deposit(env.ctx, alice, asset, units(1)))
}

func TestLiquidatableIsOrdered(t *testing.T) {
	require := require.New(t)

	env := newTestEnv(t)
	assetA := env.list(2000)
	assetB := env.list(30000)
	lender := ids.GenerateTestShortID()
	env.fund(assetB, lender, units(10))
	require.NoError(env.engine.Deposit(env.ctx, lender, assetB, units(10)))

	// Each borrower deposits A at 2000 and borrows 1 B worth 30000. Smaller
	// deposits give lower health factors.
	deposits := []uint64{10, 6, 8}
	borrowers := make([]ids.ShortID, len(deposits))
	for i, deposit := range deposits {
		borrowers[i] = ids.GenerateTestShortID()
		env.fund(assetA, borrowers[i], units(deposit))
		require.NoError(env.engine.Deposit(env.ctx, borrowers[i], assetA, units(deposit)))
		require.NoError(env.engine.Borrow(env.ctx, borrowers[i], assetB, units(1)))
	}

	unhealthy, err := env.engine.Liquidatable(env.ctx)
	require.NoError(err)
	require.Len(unhealthy, 3)
	require.Equal([]ids.ShortID{borrowers[1], borrowers[2], borrowers[0]}, []ids.ShortID{
		unhealthy[0].Account,
		unhealthy[1].Account,
		unhealthy[2].Account,
	})
}

func TestAccountHealthCompare(t *testing.T) {
	low := ids.ShortID{1}
	high := ids.ShortID{2}

	tests := []struct {
		name     string
		a        AccountHealth
		b        AccountHealth
		expected int
	}{
		{
			name:     "lower factor first",
			a:        AccountHealth{Account: high, HealthFactor: uint256.NewInt(1)},
			b:        AccountHealth{Account: low, HealthFactor: uint256.NewInt(2)},
			expected: -1,
		},
		{
			name:     "higher factor last",
			a:        AccountHealth{Account: low, HealthFactor: uint256.NewInt(3)},
			b:        AccountHealth{Account: high, HealthFactor: uint256.NewInt(2)},
			expected: 1,
		},
		{
			name:     "ties broken by account",
			a:        AccountHealth{Account: low, HealthFactor: uint256.NewInt(2)},
			b:        AccountHealth{Account: high, HealthFactor: uint256.NewInt(2)},
			expected: -1,
		},
		{
			name:     "equal",
			a:        AccountHealth{Account: low, HealthFactor: uint256.NewInt(2)},
			b:        AccountHealth{Account: low, HealthFactor: uint256.NewInt(2)},
			expected: 0,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, test.a.Compare(test.b))
		})
	}
}
