// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luxfi/lendvm/vms/lendvm"
)

func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints the version of the lending VM",
		Args:  cobra.NoArgs,
		RunE:  versionFunc,
	}
}

func versionFunc(c *cobra.Command, _ []string) error {
	_, err := fmt.Fprintf(c.OutOrStdout(), "lendvm/%s [vmID=%s]\n", lendvm.Version, lendvm.VMID)
	return err
}
