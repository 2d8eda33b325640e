// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/database"
	"github.com/luxfi/database/badgerdb"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/lendvm/api/server"
	"github.com/luxfi/lendvm/vms/lendvm"
)

const (
	lendEndpoint = "lend"
	lendAlias    = "lending"
	healthPath   = "/health"
	metricsPath  = "/metrics"
	emptyGenesis = "{}"
	dbDirPerms   = 0o700
)

var _ prometheus.Gatherer = gatherer{}

// Node runs a lending VM behind the HTTP API.
type Node struct {
	log    log.Logger
	vm     *lendvm.VM
	server server.Server
}

// NewNode opens the database, initializes the VM and registers its routes on
// an HTTP server bound to listener.
func NewNode(ctx context.Context, logger log.Logger, c *Config, listener net.Listener) (*Node, error) {
	genesisBytes := []byte(emptyGenesis)
	if c.GenesisFile != "" {
		b, err := os.ReadFile(c.GenesisFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read genesis: %w", err)
		}
		genesisBytes = b
	}

	db, err := openDB(c)
	if err != nil {
		return nil, err
	}

	registry := metric.NewRegistry()
	factory := lendvm.Factory{Config: c.VM}
	vm := factory.New()
	if err := vm.Initialize(ctx, logger, db, genesisBytes, nil, registry); err != nil {
		return nil, errors.Join(err, db.Close())
	}

	n := &Node{
		log: logger,
		vm:  vm,
	}
	if err := n.initServer(ctx, c, listener, registry); err != nil {
		return nil, errors.Join(err, vm.Shutdown(ctx))
	}
	return n, nil
}

func (n *Node) initServer(ctx context.Context, c *Config, listener net.Listener, registry metric.Registry) error {
	s, err := server.New(
		n.log,
		listener,
		c.AllowedOrigins,
		c.AllowedHosts,
		c.ShutdownTimeout,
		registry,
		c.HTTP,
	)
	if err != nil {
		return err
	}

	handlers, err := n.vm.CreateHandlers(ctx)
	if err != nil {
		return err
	}
	for extension, handler := range handlers {
		if err := s.AddRoute(handler, lendEndpoint, extension); err != nil {
			return err
		}
	}
	if err := s.AddAliases(lendEndpoint, lendAlias); err != nil {
		return err
	}
	if err := s.Handle(healthPath, http.HandlerFunc(n.health)); err != nil {
		return err
	}
	metricsHandler := promhttp.HandlerFor(gatherer{registry}, promhttp.HandlerOpts{})
	if err := s.Handle(metricsPath, metricsHandler); err != nil {
		return err
	}
	n.server = s
	return nil
}

// Handler returns the node's HTTP handler.
func (n *Node) Handler() http.Handler {
	return n.server.Handler()
}

// Run serves the API until ctx is cancelled or the server fails, then shuts
// the server and the VM down.
func (n *Node) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(n.server.Dispatch)
	g.Go(func() error {
		<-ctx.Done()
		n.log.Info("shutting down lending node")
		return errors.Join(
			n.server.Shutdown(),
			n.vm.Shutdown(context.Background()),
		)
	})
	return g.Wait()
}

func (n *Node) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	status, err := n.vm.HealthCheck(r.Context())
	if err != nil {
		n.log.Warn("health check failed",
			log.Err(err),
		)
		w.WriteHeader(http.StatusServiceUnavailable)
		status = map[string]interface{}{
			"healthy": false,
			"error":   err.Error(),
		}
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		n.log.Debug("failed to write health response",
			log.Err(err),
		)
	}
}

func openDB(c *Config) (database.Database, error) {
	switch c.DBType {
	case MemDB:
		return memdb.New(), nil
	case BadgerDB:
		if err := os.MkdirAll(c.DBDir, dbDirPerms); err != nil {
			return nil, err
		}
		db, err := badgerdb.New(c.DBDir, nil, "", nil)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s at %q: %w", BadgerDB, c.DBDir, err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownDBType, c.DBType)
	}
}

// gatherer exposes a metric.Gatherer to promhttp.
type gatherer struct {
	metric.Gatherer
}

func (g gatherer) Gather() ([]*dto.MetricFamily, error) {
	families, err := g.Gatherer.Gather()
	return metric.NativeToDTO(families), err
}
