// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luxfi/lendvm/vms/lendvm/cmd/serve"
	"github.com/luxfi/lendvm/vms/lendvm/cmd/version"
)

func init() {
	cobra.EnablePrefixMatching = true
}

func main() {
	cmd := &cobra.Command{
		Use:          "lendvm",
		Short:        "Runs and inspects the lending VM",
		SilenceUsage: true,
	}
	cmd.AddCommand(
		serve.Command(),
		version.Command(),
	)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "command failed %v\n", err)
		os.Exit(1)
	}
}
