// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package lending implements the pool's operations: deposit, withdraw,
// borrow, repay and liquidate.
package lending

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/utils"

	"github.com/luxfi/lendvm/utils/timer/mockable"
	"github.com/luxfi/lendvm/vms/lendvm/events"
	"github.com/luxfi/lendvm/vms/lendvm/health"
	"github.com/luxfi/lendvm/vms/lendvm/ledger"
	"github.com/luxfi/lendvm/vms/lendvm/metrics"
	"github.com/luxfi/lendvm/vms/lendvm/oracle"
	"github.com/luxfi/lendvm/vms/lendvm/registry"

	safemath "github.com/luxfi/lendvm/utils/math"
)

var (
	registryPrefix = []byte("registry")
	ledgerPrefix   = []byte("ledger")
	eventsPrefix   = []byte("events")

	rewardPercent = uint256.NewInt(LiquidationReward)
	rewardScale   = uint256.NewInt(rewardPrecision)
)

// Config wires an Engine to its collaborators.
type Config struct {
	Log log.Logger
	// DB holds all pool state. Every operation commits it on success and
	// aborts it on failure, so anything else written to DB by a
	// collaborator during an operation shares the same fate.
	DB *versiondb.Database
	// Feeds resolves the oracles bound in the registry.
	Feeds oracle.Resolver
	// Transfers moves tokens in and out of Pool.
	Transfers Transferrer
	// Pool is the holder id of the pool's own reserves.
	Pool    ids.ShortID
	Metrics metrics.Metrics
	Clock   *mockable.Clock
	// Publisher, if set, receives every event once its operation commits.
	Publisher Publisher
}

// Engine executes pool operations. Operations are not queued: the caller
// must serialize them, and an operation started while another is running on
// the same Engine fails with ErrReentrant.
type Engine struct {
	log       log.Logger
	db        *versiondb.Database
	transfers Transferrer
	pool      ids.ShortID
	metrics   metrics.Metrics
	publisher Publisher
	guard     Guard

	// events emitted by the running operation
	pending []events.Event

	registry  *registry.Registry
	ledger    *ledger.Ledger
	converter *oracle.Converter
	health    *health.Calculator
	events    *events.Log
}

// New returns an Engine and the capability that administers its registry.
func New(config Config) (*Engine, *registry.AdminCap) {
	reg, admin := registry.New(prefixdb.New(registryPrefix, config.DB))
	l := ledger.New(prefixdb.New(ledgerPrefix, config.DB))
	converter := oracle.NewConverter(reg, config.Feeds)

	return &Engine{
		log:       config.Log,
		db:        config.DB,
		transfers: config.Transfers,
		pool:      config.Pool,
		metrics:   config.Metrics,
		publisher: config.Publisher,
		registry:  reg,
		ledger:    l,
		converter: converter,
		health:    health.NewCalculator(reg, l, converter),
		events:    events.NewLog(prefixdb.New(eventsPrefix, config.DB), config.Clock),
	}, admin
}

// SetAllowedAsset lists asset, or rebinds its oracle if already listed.
func (e *Engine) SetAllowedAsset(ctx context.Context, admin *registry.AdminCap, asset, oracleID ids.ShortID) error {
	return e.execute(ctx, OpSetAllowedAsset, func(context.Context) error {
		if _, err := e.registry.SetAllowedAsset(admin, asset, oracleID); err != nil {
			return err
		}
		if err := e.emit(events.Event{
			Kind:   events.AllowedAssetSet,
			Asset:  asset,
			Oracle: &oracleID,
		}); err != nil {
			return err
		}
		count, err := e.registry.Len()
		if err != nil {
			return err
		}
		e.metrics.SetAllowedAssets(count)
		return nil
	})
}

// Deposit credits amount of asset to caller's collateral and pulls the funds
// from caller.
func (e *Engine) Deposit(ctx context.Context, caller, asset ids.ShortID, amount *uint256.Int) error {
	return e.execute(ctx, OpDeposit, func(ctx context.Context) error {
		if err := e.requireAllowed(asset); err != nil {
			return err
		}
		if err := requirePositive(amount); err != nil {
			return err
		}
		if err := e.ledger.IncreaseDeposit(caller, asset, amount); err != nil {
			return err
		}
		if err := e.emit(events.Event{
			Kind:    events.Deposit,
			Account: caller,
			Asset:   asset,
			Amount:  amount.Dec(),
		}); err != nil {
			return err
		}
		return e.transferIn(ctx, asset, caller, amount)
	})
}

// Withdraw returns amount of caller's deposited asset. The health factor is
// checked against the balances held before the withdrawal.
func (e *Engine) Withdraw(ctx context.Context, caller, asset ids.ShortID, amount *uint256.Int) error {
	return e.execute(ctx, OpWithdraw, func(ctx context.Context) error {
		if err := requirePositive(amount); err != nil {
			return err
		}
		deposit, err := e.ledger.GetDeposit(caller, asset)
		if err != nil {
			return err
		}
		if deposit.Lt(amount) {
			return fmt.Errorf("%w: deposited %s, requested %s", ErrInsufficientFunds, deposit.Dec(), amount.Dec())
		}
		factor, err := e.health.HealthFactor(ctx, caller)
		if err != nil {
			return err
		}
		if !health.IsHealthy(factor) {
			return fmt.Errorf("%w: %s is below %s", ErrHealthFactorTooLow, factor.Dec(), MinHealthFactor.Dec())
		}
		return e.pullFunds(ctx, events.Withdraw, caller, caller, asset, amount)
	})
}

// Borrow lends amount of asset to caller out of the pool's reserves. No
// health factor check is performed.
func (e *Engine) Borrow(ctx context.Context, caller, asset ids.ShortID, amount *uint256.Int) error {
	return e.execute(ctx, OpBorrow, func(ctx context.Context) error {
		if err := e.requireAllowed(asset); err != nil {
			return err
		}
		if err := requirePositive(amount); err != nil {
			return err
		}
		held, err := e.transfers.BalanceOf(ctx, asset, e.pool)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
		if held.Lt(amount) {
			return fmt.Errorf("%w: pool holds %s, requested %s", ErrInsufficientLiquidity, held.Dec(), amount.Dec())
		}
		if err := e.ledger.IncreaseBorrow(caller, asset, amount); err != nil {
			return err
		}
		if err := e.emit(events.Event{
			Kind:    events.Borrow,
			Account: caller,
			Asset:   asset,
			Amount:  amount.Dec(),
		}); err != nil {
			return err
		}
		return e.transferOut(ctx, asset, caller, amount)
	})
}

// Repay pays back amount of caller's asset debt.
func (e *Engine) Repay(ctx context.Context, caller, asset ids.ShortID, amount *uint256.Int) error {
	return e.execute(ctx, OpRepay, func(ctx context.Context) error {
		if err := e.requireAllowed(asset); err != nil {
			return err
		}
		if err := requirePositive(amount); err != nil {
			return err
		}
		if err := e.emit(events.Event{
			Kind:    events.Repay,
			Account: caller,
			Asset:   asset,
			Amount:  amount.Dec(),
		}); err != nil {
			return err
		}
		return e.repay(ctx, caller, caller, asset, amount)
	})
}

// Liquidate repays half of account's repayAsset debt on behalf of caller and
// pays caller the equivalent value plus LiquidationReward percent out of
// account's rewardAsset deposit.
func (e *Engine) Liquidate(ctx context.Context, caller, account, repayAsset, rewardAsset ids.ShortID) (*Liquidation, error) {
	var result *Liquidation
	err := e.execute(ctx, OpLiquidate, func(ctx context.Context) error {
		factor, err := e.health.HealthFactor(ctx, account)
		if err != nil {
			return err
		}
		if health.IsHealthy(factor) {
			return fmt.Errorf("%w: %s can't be liquidated at %s", ErrHealthFactorTooLow, account, factor.Dec())
		}

		debt, err := e.ledger.GetBorrow(account, repayAsset)
		if err != nil {
			return err
		}
		half := new(uint256.Int).Rsh(debt, 1)
		if half.IsZero() {
			return fmt.Errorf("%w: %s owes %s of %s", ErrNoDebtToPay, account, debt.Dec(), repayAsset)
		}
		value, err := e.converter.ToUnitOfAccount(ctx, repayAsset, half)
		if err != nil {
			return err
		}
		if value.IsZero() {
			return fmt.Errorf("%w: half of %s debt is worth nothing", ErrNoDebtToPay, repayAsset)
		}
		reward, err := safemath.MulDiv(value, rewardPercent, rewardScale)
		if err != nil {
			return err
		}
		total, err := safemath.Add(value, reward)
		if err != nil {
			return err
		}
		rewardAmount, err := e.converter.FromUnitOfAccount(ctx, rewardAsset, total)
		if err != nil {
			return err
		}

		if err := e.emit(events.Event{
			Kind:         events.Liquidate,
			Account:      account,
			Asset:        repayAsset,
			Amount:       half.Dec(),
			RewardAsset:  &rewardAsset,
			RewardAmount: rewardAmount.Dec(),
			Value:        value.Dec(),
			Liquidator:   &caller,
		}); err != nil {
			return err
		}
		if err := e.repay(ctx, caller, account, repayAsset, half); err != nil {
			return err
		}
		if err := e.pullFunds(ctx, "", caller, account, rewardAsset, rewardAmount); err != nil {
			return err
		}

		result = &Liquidation{
			Account:     account,
			Liquidator:  caller,
			RepayAsset:  repayAsset,
			RewardAsset: rewardAsset,
			Repaid:      half,
			Value:       value,
			Reward:      rewardAmount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("account liquidated",
		log.Stringer("account", account),
		log.Stringer("liquidator", caller),
		log.Stringer("repayAsset", repayAsset),
		log.String("repaid", result.Repaid.Dec()),
		log.Stringer("rewardAsset", rewardAsset),
		log.String("reward", result.Reward.Dec()),
	)
	return result, nil
}

// AccountInformation returns the total borrowed and collateral value of
// account in the unit of account.
func (e *Engine) AccountInformation(ctx context.Context, account ids.ShortID) (*uint256.Int, *uint256.Int, error) {
	return e.health.AccountValues(ctx, account)
}

// HealthFactor returns the current health factor of account.
func (e *Engine) HealthFactor(ctx context.Context, account ids.ShortID) (*uint256.Int, error) {
	return e.health.HealthFactor(ctx, account)
}

// Positions returns the non-zero balances of account.
func (e *Engine) Positions(account ids.ShortID) ([]ledger.Position, error) {
	return e.ledger.Positions(account)
}

// Liquidatable returns every account whose health factor is below
// MinHealthFactor, lowest health factor first.
func (e *Engine) Liquidatable(ctx context.Context) ([]AccountHealth, error) {
	accounts, err := e.ledger.Accounts()
	if err != nil {
		return nil, err
	}
	var unhealthy []AccountHealth
	for _, account := range accounts {
		factor, err := e.health.HealthFactor(ctx, account)
		if err != nil {
			return nil, err
		}
		if !health.IsHealthy(factor) {
			unhealthy = append(unhealthy, AccountHealth{
				Account:      account,
				HealthFactor: factor,
			})
		}
	}
	utils.Sort(unhealthy)
	return unhealthy, nil
}

// AllowedAssets returns the listed assets and their oracles.
func (e *Engine) AllowedAssets() ([]registry.AllowedAsset, error) {
	return e.registry.AllowedAssets()
}

// IsAllowed reports whether asset is listed.
func (e *Engine) IsAllowed(asset ids.ShortID) (bool, error) {
	return e.registry.IsAllowed(asset)
}

// Events returns up to limit events starting at seq.
func (e *Engine) Events(seq uint64, limit int) ([]events.Event, error) {
	return e.events.Range(seq, limit)
}

// EventCount returns the number of recorded events.
func (e *Engine) EventCount() (uint64, error) {
	return e.events.Len()
}

// ToUnitOfAccount values amount of asset at the current oracle price.
func (e *Engine) ToUnitOfAccount(ctx context.Context, asset ids.ShortID, amount *uint256.Int) (*uint256.Int, error) {
	return e.converter.ToUnitOfAccount(ctx, asset, amount)
}

// FromUnitOfAccount converts value into an amount of asset at the current
// oracle price.
func (e *Engine) FromUnitOfAccount(ctx context.Context, asset ids.ShortID, value *uint256.Int) (*uint256.Int, error) {
	return e.converter.FromUnitOfAccount(ctx, asset, value)
}

// execute runs f as one atomic operation under the reentrancy guard.
func (e *Engine) execute(ctx context.Context, op string, f func(context.Context) error) (err error) {
	lock, err := e.guard.Acquire()
	if err != nil {
		e.metrics.MarkOperation(op, err)
		return err
	}
	defer lock.Release()

	e.pending = e.pending[:0]
	committed := false
	defer func() {
		if !committed {
			e.db.Abort()
		}
		e.metrics.MarkOperation(op, err)
	}()

	if err := f(ctx); err != nil {
		e.log.Debug("operation rejected",
			log.String("op", op),
			log.Err(err),
		)
		return err
	}
	if err := e.db.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", op, err)
	}
	committed = true

	if count, err := e.events.Len(); err == nil {
		e.metrics.SetEvents(count)
	}
	e.publish()
	e.log.Debug("operation executed",
		log.String("op", op),
	)
	return nil
}

// repay reduces account's asset debt by amount, paid by payer.
func (e *Engine) repay(ctx context.Context, payer, account, asset ids.ShortID, amount *uint256.Int) error {
	if err := e.ledger.DecreaseBorrow(account, asset, amount); err != nil {
		return err
	}
	return e.transferIn(ctx, asset, payer, amount)
}

// pullFunds reduces account's asset deposit by amount and sends it to
// recipient. kind, if set, is recorded as an event.
func (e *Engine) pullFunds(ctx context.Context, kind events.Kind, recipient, account, asset ids.ShortID, amount *uint256.Int) error {
	if err := e.ledger.DecreaseDeposit(account, asset, amount); err != nil {
		return err
	}
	if kind != "" {
		if err := e.emit(events.Event{
			Kind:    kind,
			Account: account,
			Asset:   asset,
			Amount:  amount.Dec(),
		}); err != nil {
			return err
		}
	}
	return e.transferOut(ctx, asset, recipient, amount)
}

func (e *Engine) emit(ev events.Event) error {
	ev, err := e.events.Append(ev)
	if err != nil {
		return err
	}
	e.pending = append(e.pending, ev)
	return nil
}

// publish hands the events of the committed operation to the publisher.
func (e *Engine) publish() {
	if e.publisher != nil {
		for _, ev := range e.pending {
			e.publisher.Publish(events.NewFilterer(ev))
		}
	}
	e.pending = e.pending[:0]
}

func (e *Engine) transferIn(ctx context.Context, asset, from ids.ShortID, amount *uint256.Int) error {
	if err := e.transfers.TransferIn(ctx, asset, from, amount); err != nil {
		return fmt.Errorf("%w: %s of %s from %s: %w", ErrTransferFailed, amount.Dec(), asset, from, err)
	}
	return nil
}

func (e *Engine) transferOut(ctx context.Context, asset, to ids.ShortID, amount *uint256.Int) error {
	if err := e.transfers.TransferOut(ctx, asset, to, amount); err != nil {
		return fmt.Errorf("%w: %s of %s to %s: %w", ErrTransferFailed, amount.Dec(), asset, to, err)
	}
	return nil
}

func (e *Engine) requireAllowed(asset ids.ShortID) error {
	allowed, err := e.registry.IsAllowed(asset)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: %s", ErrAssetNotAllowed, asset)
	}
	return nil
}

func requirePositive(amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrAmountMustBePositive
	}
	return nil
}
