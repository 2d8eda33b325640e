// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package serve

import (
	"errors"
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/luxfi/log"
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "Runs the lending VM behind its HTTP API",
		RunE:  serveFunc,
	}
	flags := c.Flags()
	AddFlags(flags)
	return c
}

func serveFunc(c *cobra.Command, args []string) error {
	config, err := ParseFlags(c.Flags(), args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := log.NewLogger("lendvm")
	listener, err := net.Listen("tcp", config.HTTPAddress)
	if err != nil {
		return err
	}
	node, err := NewNode(ctx, logger, config, listener)
	if err != nil {
		return errors.Join(err, listener.Close())
	}
	return node.Run(ctx)
}
