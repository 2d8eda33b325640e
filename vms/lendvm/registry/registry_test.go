// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"testing"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func TestSetAllowedAsset(t *testing.T) {
	require := require.New(t)

	r, admin := New(memdb.New())
	asset := ids.GenerateTestShortID()
	oracle := ids.GenerateTestShortID()

	allowed, err := r.IsAllowed(asset)
	require.NoError(err)
	require.False(allowed)

	added, err := r.SetAllowedAsset(admin, asset, oracle)
	require.NoError(err)
	require.True(added)

	allowed, err = r.IsAllowed(asset)
	require.NoError(err)
	require.True(allowed)

	bound, err := r.Oracle(asset)
	require.NoError(err)
	require.Equal(oracle, bound)
}

func TestSetAllowedAssetRebindDoesNotDuplicate(t *testing.T) {
	require := require.New(t)

	r, admin := New(memdb.New())
	asset := ids.GenerateTestShortID()
	first := ids.GenerateTestShortID()
	second := ids.GenerateTestShortID()

	_, err := r.SetAllowedAsset(admin, asset, first)
	require.NoError(err)
	added, err := r.SetAllowedAsset(admin, asset, second)
	require.NoError(err)
	require.False(added)

	assets, err := r.Assets()
	require.NoError(err)
	require.Equal([]ids.ShortID{asset}, assets)

	bound, err := r.Oracle(asset)
	require.NoError(err)
	require.Equal(second, bound)
}

func TestAssetsKeepInsertionOrder(t *testing.T) {
	require := require.New(t)

	r, admin := New(memdb.New())
	expected := make([]ids.ShortID, 0, 300)
	for range 300 {
		asset := ids.GenerateTestShortID()
		expected = append(expected, asset)
		_, err := r.SetAllowedAsset(admin, asset, ids.GenerateTestShortID())
		require.NoError(err)
	}

	assets, err := r.Assets()
	require.NoError(err)
	require.Equal(expected, assets)

	count, err := r.Len()
	require.NoError(err)
	require.Equal(uint64(300), count)

	allowed, err := r.AllowedAssets()
	require.NoError(err)
	require.Len(allowed, 300)
	require.Equal(expected[7], allowed[7].Asset)
}

func TestSetAllowedAssetRejects(t *testing.T) {
	r, admin := New(memdb.New())
	_, otherAdmin := New(memdb.New())

	tests := []struct {
		name        string
		admin       *AdminCap
		asset       ids.ShortID
		oracle      ids.ShortID
		expectedErr error
	}{
		{
			name:        "nil capability",
			admin:       nil,
			asset:       ids.GenerateTestShortID(),
			oracle:      ids.GenerateTestShortID(),
			expectedErr: ErrUnauthorized,
		},
		{
			name:        "foreign capability",
			admin:       otherAdmin,
			asset:       ids.GenerateTestShortID(),
			oracle:      ids.GenerateTestShortID(),
			expectedErr: ErrUnauthorized,
		},
		{
			name:        "forged capability",
			admin:       &AdminCap{},
			asset:       ids.GenerateTestShortID(),
			oracle:      ids.GenerateTestShortID(),
			expectedErr: ErrUnauthorized,
		},
		{
			name:        "zero asset",
			admin:       admin,
			asset:       ids.ShortEmpty,
			oracle:      ids.GenerateTestShortID(),
			expectedErr: ErrInvalidAsset,
		},
		{
			name:        "zero oracle",
			admin:       admin,
			asset:       ids.GenerateTestShortID(),
			oracle:      ids.ShortEmpty,
			expectedErr: ErrInvalidOracle,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			_, err := r.SetAllowedAsset(test.admin, test.asset, test.oracle)
			require.ErrorIs(err, test.expectedErr)

			assets, err := r.Assets()
			require.NoError(err)
			require.Empty(assets)
		})
	}
}

func TestRegistryFollowsRollback(t *testing.T) {
	require := require.New(t)

	db := versiondb.New(memdb.New())
	r, admin := New(db)
	asset := ids.GenerateTestShortID()

	_, err := r.SetAllowedAsset(admin, asset, ids.GenerateTestShortID())
	require.NoError(err)
	db.Abort()

	allowed, err := r.IsAllowed(asset)
	require.NoError(err)
	require.False(allowed)

	assets, err := r.Assets()
	require.NoError(err)
	require.Empty(assets)
}
