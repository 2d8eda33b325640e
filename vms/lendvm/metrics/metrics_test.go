// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"errors"
	"testing"

	"github.com/luxfi/metric"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersOnce(t *testing.T) {
	require := require.New(t)

	reg := metric.NewRegistry()
	m, err := New(reg, nil)
	require.NoError(err)

	m.MarkOperation("deposit", nil)
	m.MarkOperation("deposit", errors.New("boom"))
	m.SetAllowedAssets(3)
	m.SetEvents(7)

	families, err := reg.Gather()
	require.NoError(err)
	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.Name)
	}
	require.Contains(names, "lending_operations")
	require.Contains(names, "lending_allowed_assets")
	require.Contains(names, "lending_events")

	_, err = New(reg, nil)
	require.Error(err)
}
