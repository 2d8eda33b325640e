// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package version

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/lendvm/vms/lendvm"
)

func TestVersion(t *testing.T) {
	require := require.New(t)

	var out bytes.Buffer
	c := Command()
	c.SetOut(&out)
	c.SetArgs(nil)
	require.NoError(c.Execute())
	require.Contains(out.String(), "lendvm/"+lendvm.Version)
	require.Contains(out.String(), lendvm.VMID.String())
}

func TestVersionRejectsArgs(t *testing.T) {
	c := Command()
	c.SetOut(&bytes.Buffer{})
	c.SetErr(&bytes.Buffer{})
	c.SetArgs([]string{"extra"})
	require.Error(t, c.Execute()) //nolint:forbidigo // cobra's argument error is not exported
}
