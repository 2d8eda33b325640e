// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"encoding/json"
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	admin := ids.GenerateTestShortID()
	adminJSON, err := json.Marshal(admin)
	require.NoError(t, err)

	tests := []struct {
		name        string
		data        string
		expected    Config
		expectedErr error
	}{
		{
			name:     "empty",
			expected: DefaultConfig(),
		},
		{
			name:     "empty object",
			data:     `{}`,
			expected: DefaultConfig(),
		},
		{
			name: "overrides",
			data: `{"admin":` + string(adminJSON) + `,"maxEvents":10}`,
			expected: Config{
				Admin:       admin,
				Pool:        DefaultPool,
				MaxEvents:   10,
				FeedHistory: DefaultConfig().FeedHistory,
			},
		},
		{
			name:        "zero max events",
			data:        `{"maxEvents":0}`,
			expectedErr: ErrInvalidMaxEvents,
		},
		{
			name:        "negative feed history",
			data:        `{"feedHistory":-1}`,
			expectedErr: ErrInvalidFeedHistory,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			cfg, err := ParseConfig([]byte(test.data))
			require.ErrorIs(err, test.expectedErr)
			if test.expectedErr != nil {
				return
			}
			require.Equal(test.expected, cfg)
		})
	}
}

func TestParseConfigMalformed(t *testing.T) {
	_, err := ParseConfig([]byte(`{"maxEvents":`))
	require.Error(t, err)
}

func TestVerifyEmptyPool(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pool = ids.ShortEmpty
	require.ErrorIs(t, cfg.Verify(), ErrInvalidPool)
}
