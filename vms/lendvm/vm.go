// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package lendvm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"

	"github.com/gorilla/rpc/v2"
	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/luxfi/pubsub"

	utiljson "github.com/luxfi/utils/json"

	"github.com/luxfi/lendvm/utils/timer/mockable"
	"github.com/luxfi/lendvm/vms/lendvm/api"
	"github.com/luxfi/lendvm/vms/lendvm/config"
	"github.com/luxfi/lendvm/vms/lendvm/events"
	"github.com/luxfi/lendvm/vms/lendvm/ledger"
	"github.com/luxfi/lendvm/vms/lendvm/lending"
	"github.com/luxfi/lendvm/vms/lendvm/metrics"
	"github.com/luxfi/lendvm/vms/lendvm/oracle"
	"github.com/luxfi/lendvm/vms/lendvm/registry"
	"github.com/luxfi/lendvm/vms/lendvm/token"
)

const Version = "1.0.0"

var (
	errNotInitialized = errors.New("VM not initialized")
	errShutdown       = errors.New("VM is shutting down")

	bankPrefix  = []byte("bank")
	feedsPrefix = []byte("feeds")
	vmPrefix    = []byte("vm")

	keyInitialized = []byte("initialized")

	_ api.VM = (*VM)(nil)
)

// storedFeed is the persisted form of a price feed's latest quote.
type storedFeed struct {
	Description string `json:"description"`
	Price       string `json:"price"`
}

// VM runs the lending pool over a database. All mutations are serialized by
// the VM lock and each one either commits in full or leaves no trace.
type VM struct {
	config.Config

	log log.Logger

	// Lock for thread safety: writes for operations, reads for queries
	lock sync.RWMutex

	baseDB database.Database
	db     *versiondb.Database
	feedDB database.Database
	vmDB   database.Database

	// Used to stamp events and quotes
	clock mockable.Clock

	metrics metrics.Metrics

	// Delivers committed events to websocket subscribers
	pubsub *pubsub.Server

	bank       *token.Bank
	vault      *token.Vault
	feeds      *oracle.Feeds
	priceFeeds map[ids.ShortID]*oracle.RoundFeed
	engine     *lending.Engine
	admin      *registry.AdminCap

	isInitialized bool
	shutdown      bool
}

// Initialize sets up the VM over db. Genesis is applied only to an empty
// database; configBytes overlay the VM's defaults.
func (vm *VM) Initialize(
	ctx context.Context,
	logger log.Logger,
	db database.Database,
	genesisBytes []byte,
	configBytes []byte,
	registerer metric.Registerer,
) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if len(configBytes) > 0 {
		cfg, err := config.ParseConfig(configBytes)
		if err != nil {
			return err
		}
		vm.Config = cfg
	} else if err := vm.Config.Verify(); err != nil {
		return err
	}

	vm.log = logger
	vm.baseDB = db
	vm.db = versiondb.New(db)
	vm.feedDB = prefixdb.New(feedsPrefix, vm.db)
	vm.vmDB = prefixdb.New(vmPrefix, vm.db)

	m, err := metrics.New(registerer, &vm.clock)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	vm.metrics = m
	vm.pubsub = pubsub.New(logger)

	vm.bank = token.NewBank(prefixdb.New(bankPrefix, vm.db))
	vm.vault = token.NewVault(vm.bank, vm.Pool)
	vm.feeds = oracle.NewFeeds()
	vm.priceFeeds = make(map[ids.ShortID]*oracle.RoundFeed)
	vm.engine, vm.admin = lending.New(lending.Config{
		Log:       logger,
		DB:        vm.db,
		Feeds:     vm.feeds,
		Transfers: vm.vault,
		Pool:      vm.Pool,
		Metrics:   m,
		Clock:     &vm.clock,
		Publisher: vm.pubsub,
	})

	initialized, err := vm.vmDB.Has(keyInitialized)
	if err != nil {
		return err
	}
	if !initialized && len(genesisBytes) > 0 {
		if err := vm.applyGenesis(ctx, genesisBytes); err != nil {
			return fmt.Errorf("failed to apply genesis: %w", err)
		}
	}
	if err := vm.loadFeeds(); err != nil {
		return fmt.Errorf("failed to load price feeds: %w", err)
	}

	allowed, err := vm.engine.AllowedAssets()
	if err != nil {
		return err
	}
	vm.metrics.SetAllowedAssets(uint64(len(allowed)))
	eventCount, err := vm.engine.EventCount()
	if err != nil {
		return err
	}
	vm.metrics.SetEvents(eventCount)

	vm.isInitialized = true
	vm.log.Info("lending VM initialized",
		log.Stringer("pool", vm.Pool),
		log.Stringer("admin", vm.Admin),
		log.Int("assets", len(allowed)),
		log.Uint64("events", eventCount),
	)
	return nil
}

// applyGenesis seeds the feeds, balances and registry. Feeds and balances are
// written first so that listing the assets commits them together.
func (vm *VM) applyGenesis(ctx context.Context, genesisBytes []byte) error {
	genesis, err := ParseGenesis(genesisBytes)
	if err != nil {
		return err
	}

	for _, o := range genesis.Oracles {
		price, err := parsePrice(o.Price)
		if err != nil {
			return err
		}
		if err := vm.putFeed(o.ID, o.Description, price); err != nil {
			return err
		}
	}
	for _, balance := range genesis.Balances {
		amount, err := parseAmount(balance.Amount)
		if err != nil {
			return err
		}
		if err := vm.bank.Mint(balance.Asset, balance.Holder, amount); err != nil {
			return err
		}
	}
	if err := vm.vmDB.Put(keyInitialized, nil); err != nil {
		return err
	}
	if err := vm.loadFeeds(); err != nil {
		return err
	}
	for _, asset := range genesis.Assets {
		if err := vm.engine.SetAllowedAsset(ctx, vm.admin, asset.Asset, asset.Oracle); err != nil {
			return err
		}
	}
	if err := vm.db.Commit(); err != nil {
		return err
	}

	vm.log.Info("applied genesis",
		log.Int("oracles", len(genesis.Oracles)),
		log.Int("assets", len(genesis.Assets)),
		log.Int("balances", len(genesis.Balances)),
	)
	return nil
}

// loadFeeds registers a RoundFeed for every persisted feed not yet loaded.
func (vm *VM) loadFeeds() error {
	it := vm.feedDB.NewIterator()
	defer it.Release()

	for it.Next() {
		oracleID, err := ids.ToShortID(it.Key())
		if err != nil {
			return err
		}
		if _, ok := vm.priceFeeds[oracleID]; ok {
			continue
		}

		var stored storedFeed
		if err := json.Unmarshal(it.Value(), &stored); err != nil {
			return err
		}
		price, err := parsePrice(stored.Price)
		if err != nil {
			return err
		}
		feed, err := oracle.NewRoundFeed(stored.Description, vm.FeedHistory, &vm.clock)
		if err != nil {
			return err
		}
		feed.Record(price)
		if err := vm.feeds.Register(oracleID, feed); err != nil {
			return err
		}
		vm.priceFeeds[oracleID] = feed
	}
	return it.Error()
}

func (vm *VM) putFeed(oracleID ids.ShortID, description string, price *big.Int) error {
	data, err := json.Marshal(storedFeed{
		Description: description,
		Price:       price.String(),
	})
	if err != nil {
		return err
	}
	return vm.feedDB.Put(oracleID[:], data)
}

// Shutdown closes the database. Operations started afterwards fail.
func (vm *VM) Shutdown(context.Context) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.shutdown || vm.db == nil {
		vm.shutdown = true
		return nil
	}
	vm.shutdown = true
	vm.log.Info("shutting down lending VM")

	vm.db.Abort()
	return errors.Join(vm.db.Close(), vm.baseDB.Close())
}

// Version returns the version of the VM.
func (*VM) Version(context.Context) (string, error) {
	return Version, nil
}

// CreateHandlers returns the JSON-RPC handler of the "lend" service and the
// websocket feed of committed events.
func (vm *VM) CreateHandlers(context.Context) (map[string]http.Handler, error) {
	codec := utiljson.NewCodec()
	server := rpc.NewServer()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	server.RegisterInterceptFunc(vm.metrics.InterceptRequest)
	server.RegisterAfterFunc(vm.metrics.AfterRequest)
	if err := server.RegisterService(api.NewService(vm, vm.log), "lend"); err != nil {
		return nil, fmt.Errorf("failed to register lend service: %w", err)
	}

	return map[string]http.Handler{
		"":        server,
		"/events": vm.pubsub,
	}, nil
}

// HealthCheck reports the state of the VM and its database.
func (vm *VM) HealthCheck(ctx context.Context) (interface{}, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if err := vm.ready(); err != nil {
		return nil, err
	}
	dbHealth, err := vm.baseDB.HealthCheck(ctx)
	if err != nil {
		return nil, fmt.Errorf("database unhealthy: %w", err)
	}
	allowed, err := vm.engine.AllowedAssets()
	if err != nil {
		return nil, err
	}
	eventCount, err := vm.engine.EventCount()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"healthy":  true,
		"pool":     vm.vault.Address().String(),
		"assets":   len(allowed),
		"feeds":    vm.feeds.Len(),
		"events":   eventCount,
		"database": dbHealth,
	}, nil
}

func (vm *VM) IsInitialized() bool {
	vm.lock.RLock()
	defer vm.lock.RUnlock()
	return vm.isInitialized && !vm.shutdown
}

func (vm *VM) Deposit(ctx context.Context, from, asset ids.ShortID, amount *uint256.Int) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.ready(); err != nil {
		return err
	}
	return vm.engine.Deposit(ctx, from, asset, amount)
}

func (vm *VM) Withdraw(ctx context.Context, from, asset ids.ShortID, amount *uint256.Int) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.ready(); err != nil {
		return err
	}
	return vm.engine.Withdraw(ctx, from, asset, amount)
}

func (vm *VM) Borrow(ctx context.Context, from, asset ids.ShortID, amount *uint256.Int) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.ready(); err != nil {
		return err
	}
	return vm.engine.Borrow(ctx, from, asset, amount)
}

func (vm *VM) Repay(ctx context.Context, from, asset ids.ShortID, amount *uint256.Int) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.ready(); err != nil {
		return err
	}
	return vm.engine.Repay(ctx, from, asset, amount)
}

func (vm *VM) Liquidate(ctx context.Context, from, account, repayAsset, rewardAsset ids.ShortID) (*lending.Liquidation, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.ready(); err != nil {
		return nil, err
	}
	return vm.engine.Liquidate(ctx, from, account, repayAsset, rewardAsset)
}

// SetAllowedAsset lists asset priced by oracleID. from must be the configured
// admin and oracleID must name a known feed.
func (vm *VM) SetAllowedAsset(ctx context.Context, from, asset, oracleID ids.ShortID) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.ready(); err != nil {
		return err
	}
	if err := vm.authorize(from); err != nil {
		return err
	}
	if _, err := vm.feeds.Feed(oracleID); err != nil {
		return err
	}
	return vm.engine.SetAllowedAsset(ctx, vm.admin, asset, oracleID)
}

// SetPrice records a new round on oracleID's feed, creating the feed if it
// doesn't exist yet. from must be the configured admin.
func (vm *VM) SetPrice(_ context.Context, from, oracleID ids.ShortID, description string, price *big.Int) (oracle.Quote, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.ready(); err != nil {
		return oracle.Quote{}, err
	}
	if err := vm.authorize(from); err != nil {
		return oracle.Quote{}, err
	}
	if oracleID == ids.ShortEmpty {
		return oracle.Quote{}, registry.ErrInvalidOracle
	}

	// Everything that can fail happens before the commit, so a returned
	// error always means the price was not stored.
	feed, ok := vm.priceFeeds[oracleID]
	if ok {
		description = feed.Description()
	} else {
		var err error
		feed, err = oracle.NewRoundFeed(description, vm.FeedHistory, &vm.clock)
		if err != nil {
			return oracle.Quote{}, err
		}
		if err := vm.feeds.Register(oracleID, feed); err != nil {
			return oracle.Quote{}, err
		}
	}
	if err := vm.putFeed(oracleID, description, price); err != nil {
		vm.abortPrice(oracleID, ok)
		return oracle.Quote{}, err
	}
	if err := vm.db.Commit(); err != nil {
		vm.abortPrice(oracleID, ok)
		return oracle.Quote{}, err
	}
	if !ok {
		vm.priceFeeds[oracleID] = feed
	}

	quote := feed.Record(price)
	vm.log.Debug("price updated",
		log.Stringer("oracle", oracleID),
		log.Uint64("round", quote.RoundID),
		log.Stringer("price", price),
	)
	return quote, nil
}

// abortPrice discards a failed price update, deregistering the feed it
// created if any.
func (vm *VM) abortPrice(oracleID ids.ShortID, existing bool) {
	vm.db.Abort()
	if !existing {
		vm.feeds.Deregister(oracleID)
	}
}

// Round returns round roundID of oracleID's feed and the number of rounds
// the feed retains.
func (vm *VM) Round(oracleID ids.ShortID, roundID uint64) (oracle.Quote, int, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if err := vm.ready(); err != nil {
		return oracle.Quote{}, 0, err
	}
	feed, ok := vm.priceFeeds[oracleID]
	if !ok {
		return oracle.Quote{}, 0, fmt.Errorf("%w: %s", oracle.ErrUnknownOracle, oracleID)
	}
	quote, err := feed.Round(roundID)
	if err != nil {
		return oracle.Quote{}, 0, fmt.Errorf("%w: %d of %s", err, roundID, oracleID)
	}
	return quote, feed.Rounds(), nil
}

// Approve sets the amount of asset the pool may pull from owner.
func (vm *VM) Approve(_ context.Context, owner, asset ids.ShortID, amount *uint256.Int) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.ready(); err != nil {
		return err
	}
	if err := vm.bank.Approve(asset, owner, vm.vault.Address(), amount); err != nil {
		vm.db.Abort()
		return err
	}
	return vm.db.Commit()
}

func (vm *VM) BalanceOf(asset, holder ids.ShortID) (*uint256.Int, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if err := vm.ready(); err != nil {
		return nil, err
	}
	return vm.bank.BalanceOf(asset, holder)
}

func (vm *VM) Allowance(asset, owner ids.ShortID) (*uint256.Int, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if err := vm.ready(); err != nil {
		return nil, err
	}
	return vm.bank.Allowance(asset, owner, vm.vault.Address())
}

// Account returns the positions of account and its aggregate values.
func (vm *VM) Account(ctx context.Context, account ids.ShortID) (api.AccountState, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if err := vm.ready(); err != nil {
		return api.AccountState{}, err
	}
	positions, err := vm.engine.Positions(account)
	if err != nil {
		return api.AccountState{}, err
	}
	borrowed, collateral, err := vm.engine.AccountInformation(ctx, account)
	if err != nil {
		return api.AccountState{}, err
	}
	factor, err := vm.engine.HealthFactor(ctx, account)
	if err != nil {
		return api.AccountState{}, err
	}
	if positions == nil {
		positions = []ledger.Position{}
	}
	return api.AccountState{
		Positions:       positions,
		BorrowedValue:   borrowed,
		CollateralValue: collateral,
		HealthFactor:    factor,
	}, nil
}

func (vm *VM) HealthFactor(ctx context.Context, account ids.ShortID) (*uint256.Int, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if err := vm.ready(); err != nil {
		return nil, err
	}
	return vm.engine.HealthFactor(ctx, account)
}

func (vm *VM) AllowedAssets() ([]registry.AllowedAsset, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if err := vm.ready(); err != nil {
		return nil, err
	}
	return vm.engine.AllowedAssets()
}

func (vm *VM) Liquidatable(ctx context.Context) ([]lending.AccountHealth, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if err := vm.ready(); err != nil {
		return nil, err
	}
	return vm.engine.Liquidatable(ctx)
}

// Events returns up to limit events from seq, capped at MaxEvents.
func (vm *VM) Events(seq uint64, limit int) ([]events.Event, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if err := vm.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > vm.MaxEvents {
		limit = vm.MaxEvents
	}
	return vm.engine.Events(seq, limit)
}

func (vm *VM) authorize(from ids.ShortID) error {
	if vm.Admin == ids.ShortEmpty || from != vm.Admin {
		return fmt.Errorf("%w: %s", registry.ErrUnauthorized, from)
	}
	return nil
}

// ready must be called with the lock held.
func (vm *VM) ready() error {
	switch {
	case vm.shutdown:
		return errShutdown
	case !vm.isInitialized:
		return errNotInitialized
	default:
		return nil
	}
}
