// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/luxfi/lendvm/vms/lendvm/oracle"
	"github.com/luxfi/lendvm/vms/lendvm/oracle/oraclemock"
	"github.com/luxfi/lendvm/vms/lendvm/registry"
)

var errFeedDown = errors.New("feed down")

func TestConverterPropagatesFeedError(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)

	reg, admin := registry.New(memdb.New())
	asset := ids.GenerateTestShortID()
	oracleID := ids.GenerateTestShortID()
	_, err := reg.SetAllowedAsset(admin, asset, oracleID)
	require.NoError(err)

	feed := oraclemock.NewFeed(ctrl)
	feed.EXPECT().LatestPrice(gomock.Any()).Return(oracle.Quote{}, errFeedDown)

	feeds := oracle.NewFeeds()
	require.NoError(feeds.Register(oracleID, feed))

	c := oracle.NewConverter(reg, feeds)
	_, err = c.ToUnitOfAccount(context.Background(), asset, uint256.NewInt(1))
	require.ErrorIs(err, errFeedDown)
}

func TestConverterUsesLatestOracleBinding(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)

	reg, admin := registry.New(memdb.New())
	asset := ids.GenerateTestShortID()
	firstID := ids.GenerateTestShortID()
	secondID := ids.GenerateTestShortID()

	first := oraclemock.NewFeed(ctrl)
	first.EXPECT().LatestPrice(gomock.Any()).Return(oracle.Quote{RoundID: 1, Price: big.NewInt(1e18)}, nil).Times(1)
	second := oraclemock.NewFeed(ctrl)
	second.EXPECT().LatestPrice(gomock.Any()).Return(oracle.Quote{RoundID: 9, Price: big.NewInt(3e18)}, nil).Times(1)

	feeds := oracle.NewFeeds()
	require.NoError(feeds.Register(firstID, first))
	require.NoError(feeds.Register(secondID, second))
	c := oracle.NewConverter(reg, feeds)

	_, err := reg.SetAllowedAsset(admin, asset, firstID)
	require.NoError(err)
	value, err := c.ToUnitOfAccount(context.Background(), asset, uint256.NewInt(10))
	require.NoError(err)
	require.Equal(uint64(10), value.Uint64())

	_, err = reg.SetAllowedAsset(admin, asset, secondID)
	require.NoError(err)
	value, err = c.ToUnitOfAccount(context.Background(), asset, uint256.NewInt(10))
	require.NoError(err)
	require.Equal(uint64(30), value.Uint64())

	assets, err := reg.Assets()
	require.NoError(err)
	require.Len(assets, 1)
}
