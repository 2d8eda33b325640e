// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api provides the JSON-RPC service of the lending VM.
package api

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/utils/json"

	"github.com/luxfi/lendvm/vms/lendvm/events"
	"github.com/luxfi/lendvm/vms/lendvm/ledger"
	"github.com/luxfi/lendvm/vms/lendvm/lending"
	"github.com/luxfi/lendvm/vms/lendvm/oracle"
	"github.com/luxfi/lendvm/vms/lendvm/registry"
)

const service = "lend"

var (
	ErrNotInitialized = errors.New("lending VM not initialized")
	ErrInvalidRequest = errors.New("invalid request")
)

// VM is the part of the lending VM the service drives.
type VM interface {
	IsInitialized() bool

	Deposit(ctx context.Context, from, asset ids.ShortID, amount *uint256.Int) error
	Withdraw(ctx context.Context, from, asset ids.ShortID, amount *uint256.Int) error
	Borrow(ctx context.Context, from, asset ids.ShortID, amount *uint256.Int) error
	Repay(ctx context.Context, from, asset ids.ShortID, amount *uint256.Int) error
	Liquidate(ctx context.Context, from, account, repayAsset, rewardAsset ids.ShortID) (*lending.Liquidation, error)

	SetAllowedAsset(ctx context.Context, from, asset, oracle ids.ShortID) error
	SetPrice(ctx context.Context, from, oracle ids.ShortID, description string, price *big.Int) (oracle.Quote, error)
	// Round returns a retained round of oracle's feed and how many rounds
	// the feed retains.
	Round(oracle ids.ShortID, roundID uint64) (oracle.Quote, int, error)

	Approve(ctx context.Context, owner, asset ids.ShortID, amount *uint256.Int) error
	BalanceOf(asset, holder ids.ShortID) (*uint256.Int, error)
	Allowance(asset, owner ids.ShortID) (*uint256.Int, error)

	Account(ctx context.Context, account ids.ShortID) (AccountState, error)
	HealthFactor(ctx context.Context, account ids.ShortID) (*uint256.Int, error)
	AllowedAssets() ([]registry.AllowedAsset, error)
	Liquidatable(ctx context.Context) ([]lending.AccountHealth, error)
	Events(seq uint64, limit int) ([]events.Event, error)
}

// AccountState is the full view of one account.
type AccountState struct {
	Positions       []ledger.Position
	BorrowedValue   *uint256.Int
	CollateralValue *uint256.Int
	HealthFactor    *uint256.Int
}

// Service provides the RPC API for the lending VM.
type Service struct {
	vm  VM
	log log.Logger
}

// NewService creates a new API service.
func NewService(vm VM, logger log.Logger) *Service {
	return &Service{
		vm:  vm,
		log: logger,
	}
}

// ============================================
// Health and Status APIs
// ============================================

// PingReply is the reply for the Ping API.
type PingReply struct {
	Success bool `json:"success"`
}

// Ping returns a simple health check response.
func (s *Service) Ping(_ *http.Request, _ *struct{}, reply *PingReply) error {
	reply.Success = true
	return nil
}

// StatusReply is the reply for the Status API.
type StatusReply struct {
	Initialized bool `json:"initialized"`
	Assets      int  `json:"assets"`
}

// Status returns whether the VM is serving and how many assets it lists.
func (s *Service) Status(_ *http.Request, _ *struct{}, reply *StatusReply) error {
	s.called("status")

	reply.Initialized = s.vm.IsInitialized()
	if !reply.Initialized {
		return nil
	}
	assets, err := s.vm.AllowedAssets()
	if err != nil {
		return err
	}
	reply.Assets = len(assets)
	return nil
}

// ============================================
// Pool operations
// ============================================

// AmountArgs names an account, an asset and an amount in the asset's
// smallest unit, as a base 10 string.
type AmountArgs struct {
	From   string `json:"from"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

// SuccessReply is the reply of operations that return nothing else.
type SuccessReply struct {
	Success bool `json:"success"`
}

// Deposit adds collateral to the caller's account.
func (s *Service) Deposit(r *http.Request, args *AmountArgs, reply *SuccessReply) error {
	return s.amountOp(r, "deposit", args, reply, s.vm.Deposit)
}

// Withdraw removes collateral from the caller's account.
func (s *Service) Withdraw(r *http.Request, args *AmountArgs, reply *SuccessReply) error {
	return s.amountOp(r, "withdraw", args, reply, s.vm.Withdraw)
}

// Borrow lends pool reserves to the caller.
func (s *Service) Borrow(r *http.Request, args *AmountArgs, reply *SuccessReply) error {
	return s.amountOp(r, "borrow", args, reply, s.vm.Borrow)
}

// Repay pays back the caller's debt.
func (s *Service) Repay(r *http.Request, args *AmountArgs, reply *SuccessReply) error {
	return s.amountOp(r, "repay", args, reply, s.vm.Repay)
}

// Approve lets the pool pull up to Amount of Asset from the caller.
func (s *Service) Approve(r *http.Request, args *AmountArgs, reply *SuccessReply) error {
	return s.amountOp(r, "approve", args, reply, s.vm.Approve)
}

// LiquidateArgs is the argument for the Liquidate API.
type LiquidateArgs struct {
	From        string `json:"from"`
	Account     string `json:"account"`
	RepayAsset  string `json:"repayAsset"`
	RewardAsset string `json:"rewardAsset"`
}

// LiquidateReply is the reply for the Liquidate API.
type LiquidateReply struct {
	Repaid string `json:"repaid"`
	Value  string `json:"value"`
	Reward string `json:"reward"`
}

// Liquidate repays half of an unhealthy account's debt in exchange for its
// collateral.
func (s *Service) Liquidate(r *http.Request, args *LiquidateArgs, reply *LiquidateReply) error {
	s.called("liquidate")

	if !s.vm.IsInitialized() {
		return ErrNotInitialized
	}
	from, err := parseID("from", args.From)
	if err != nil {
		return err
	}
	account, err := parseID("account", args.Account)
	if err != nil {
		return err
	}
	repayAsset, err := parseID("repayAsset", args.RepayAsset)
	if err != nil {
		return err
	}
	rewardAsset, err := parseID("rewardAsset", args.RewardAsset)
	if err != nil {
		return err
	}

	result, err := s.vm.Liquidate(r.Context(), from, account, repayAsset, rewardAsset)
	if err != nil {
		return err
	}
	reply.Repaid = result.Repaid.Dec()
	reply.Value = result.Value.Dec()
	reply.Reward = result.Reward.Dec()
	return nil
}

// ============================================
// Admin APIs
// ============================================

// SetAllowedAssetArgs is the argument for the SetAllowedAsset API.
type SetAllowedAssetArgs struct {
	From   string `json:"from"`
	Asset  string `json:"asset"`
	Oracle string `json:"oracle"`
}

// SetAllowedAsset lists an asset or rebinds its oracle. Only the admin may
// call it.
func (s *Service) SetAllowedAsset(r *http.Request, args *SetAllowedAssetArgs, reply *SuccessReply) error {
	s.called("setAllowedAsset")

	if !s.vm.IsInitialized() {
		return ErrNotInitialized
	}
	from, err := parseID("from", args.From)
	if err != nil {
		return err
	}
	asset, err := parseID("asset", args.Asset)
	if err != nil {
		return err
	}
	oracleID, err := parseID("oracle", args.Oracle)
	if err != nil {
		return err
	}
	if err := s.vm.SetAllowedAsset(r.Context(), from, asset, oracleID); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

// SetPriceArgs is the argument for the SetPrice API.
type SetPriceArgs struct {
	From   string `json:"from"`
	Oracle string `json:"oracle"`
	// Description names a new feed. It is ignored for existing feeds.
	Description string `json:"description"`
	// Price is a base 10 integer scaled by 1e18.
	Price string `json:"price"`
}

// SetPriceReply is the reply for the SetPrice API.
type SetPriceReply struct {
	RoundID   json.Uint64 `json:"roundId"`
	Price     string      `json:"price"`
	UpdatedAt int64       `json:"updatedAt"`
}

// SetPrice publishes a new price round on an oracle feed. Only the admin
// may call it.
func (s *Service) SetPrice(r *http.Request, args *SetPriceArgs, reply *SetPriceReply) error {
	s.called("setPrice")

	if !s.vm.IsInitialized() {
		return ErrNotInitialized
	}
	from, err := parseID("from", args.From)
	if err != nil {
		return err
	}
	oracleID, err := parseID("oracle", args.Oracle)
	if err != nil {
		return err
	}
	price, ok := new(big.Int).SetString(args.Price, 10)
	if !ok {
		return fmt.Errorf("%w: invalid price %q", ErrInvalidRequest, args.Price)
	}

	quote, err := s.vm.SetPrice(r.Context(), from, oracleID, args.Description, price)
	if err != nil {
		return err
	}
	reply.RoundID = json.Uint64(quote.RoundID)
	reply.Price = quote.Price.String()
	reply.UpdatedAt = quote.UpdatedAt.Unix()
	return nil
}

// GetRoundArgs is the argument for the GetRound API.
type GetRoundArgs struct {
	Oracle  string      `json:"oracle"`
	RoundID json.Uint64 `json:"roundId"`
}

// GetRoundReply is the reply for the GetRound API.
type GetRoundReply struct {
	RoundID   json.Uint64 `json:"roundId"`
	Price     string      `json:"price"`
	UpdatedAt int64       `json:"updatedAt"`
	// Rounds is the number of rounds the feed currently retains.
	Rounds int `json:"rounds"`
}

// GetRound returns a past price round of an oracle feed, as long as the feed
// still retains it.
func (s *Service) GetRound(_ *http.Request, args *GetRoundArgs, reply *GetRoundReply) error {
	s.called("getRound")

	if !s.vm.IsInitialized() {
		return ErrNotInitialized
	}
	oracleID, err := parseID("oracle", args.Oracle)
	if err != nil {
		return err
	}

	quote, rounds, err := s.vm.Round(oracleID, uint64(args.RoundID))
	if err != nil {
		return err
	}
	reply.RoundID = json.Uint64(quote.RoundID)
	reply.Price = quote.Price.String()
	reply.UpdatedAt = quote.UpdatedAt.Unix()
	reply.Rounds = rounds
	return nil
}

// ============================================
// Query APIs
// ============================================

// BalanceArgs is the argument for the BalanceOf API.
type BalanceArgs struct {
	Asset  string `json:"asset"`
	Holder string `json:"holder"`
}

// BalanceReply is the reply for the BalanceOf API.
type BalanceReply struct {
	Balance   string `json:"balance"`
	Allowance string `json:"allowance"`
}

// BalanceOf returns a holder's token balance and the pool's allowance over
// it.
func (s *Service) BalanceOf(_ *http.Request, args *BalanceArgs, reply *BalanceReply) error {
	s.called("balanceOf")

	if !s.vm.IsInitialized() {
		return ErrNotInitialized
	}
	asset, err := parseID("asset", args.Asset)
	if err != nil {
		return err
	}
	holder, err := parseID("holder", args.Holder)
	if err != nil {
		return err
	}

	balance, err := s.vm.BalanceOf(asset, holder)
	if err != nil {
		return err
	}
	allowance, err := s.vm.Allowance(asset, holder)
	if err != nil {
		return err
	}
	reply.Balance = balance.Dec()
	reply.Allowance = allowance.Dec()
	return nil
}

// AccountArgs names an account.
type AccountArgs struct {
	Account string `json:"account"`
}

// PositionReply is one asset position of an account.
type PositionReply struct {
	Asset   ids.ShortID `json:"asset"`
	Deposit string      `json:"deposit"`
	Borrow  string      `json:"borrow"`
}

// GetAccountReply is the reply for the GetAccount API.
type GetAccountReply struct {
	Positions       []PositionReply `json:"positions"`
	BorrowedValue   string          `json:"borrowedValue"`
	CollateralValue string          `json:"collateralValue"`
	HealthFactor    string          `json:"healthFactor"`
}

// GetAccount returns an account's positions and aggregate values.
func (s *Service) GetAccount(r *http.Request, args *AccountArgs, reply *GetAccountReply) error {
	s.called("getAccount")

	if !s.vm.IsInitialized() {
		return ErrNotInitialized
	}
	account, err := parseID("account", args.Account)
	if err != nil {
		return err
	}

	state, err := s.vm.Account(r.Context(), account)
	if err != nil {
		return err
	}
	reply.Positions = make([]PositionReply, len(state.Positions))
	for i, position := range state.Positions {
		reply.Positions[i] = PositionReply{
			Asset:   position.Asset,
			Deposit: position.Deposit.Dec(),
			Borrow:  position.Borrow.Dec(),
		}
	}
	reply.BorrowedValue = state.BorrowedValue.Dec()
	reply.CollateralValue = state.CollateralValue.Dec()
	reply.HealthFactor = state.HealthFactor.Dec()
	return nil
}

// HealthFactorReply is the reply for the HealthFactor API.
type HealthFactorReply struct {
	HealthFactor string `json:"healthFactor"`
	Healthy      bool   `json:"healthy"`
}

// HealthFactor returns an account's health factor, scaled by 1e18.
func (s *Service) HealthFactor(r *http.Request, args *AccountArgs, reply *HealthFactorReply) error {
	s.called("healthFactor")

	if !s.vm.IsInitialized() {
		return ErrNotInitialized
	}
	account, err := parseID("account", args.Account)
	if err != nil {
		return err
	}

	factor, err := s.vm.HealthFactor(r.Context(), account)
	if err != nil {
		return err
	}
	reply.HealthFactor = factor.Dec()
	reply.Healthy = !factor.Lt(lending.MinHealthFactor)
	return nil
}

// GetAllowedAssetsReply is the reply for the GetAllowedAssets API.
type GetAllowedAssetsReply struct {
	Assets []registry.AllowedAsset `json:"assets"`
}

// GetAllowedAssets returns the listed assets in listing order.
func (s *Service) GetAllowedAssets(_ *http.Request, _ *struct{}, reply *GetAllowedAssetsReply) error {
	s.called("getAllowedAssets")

	if !s.vm.IsInitialized() {
		return ErrNotInitialized
	}
	assets, err := s.vm.AllowedAssets()
	if err != nil {
		return err
	}
	reply.Assets = assets
	if reply.Assets == nil {
		reply.Assets = []registry.AllowedAsset{}
	}
	return nil
}

// AccountHealthReply pairs an account with its health factor.
type AccountHealthReply struct {
	Account      ids.ShortID `json:"account"`
	HealthFactor string      `json:"healthFactor"`
}

// GetLiquidatableReply is the reply for the GetLiquidatable API.
type GetLiquidatableReply struct {
	Accounts []AccountHealthReply `json:"accounts"`
}

// GetLiquidatable returns every account that can be liquidated.
func (s *Service) GetLiquidatable(r *http.Request, _ *struct{}, reply *GetLiquidatableReply) error {
	s.called("getLiquidatable")

	if !s.vm.IsInitialized() {
		return ErrNotInitialized
	}
	unhealthy, err := s.vm.Liquidatable(r.Context())
	if err != nil {
		return err
	}
	reply.Accounts = make([]AccountHealthReply, len(unhealthy))
	for i, account := range unhealthy {
		reply.Accounts[i] = AccountHealthReply{
			Account:      account.Account,
			HealthFactor: account.HealthFactor.Dec(),
		}
	}
	return nil
}

// GetEventsArgs is the argument for the GetEvents API.
type GetEventsArgs struct {
	StartSeq json.Uint64 `json:"startSeq"`
	// Limit of zero returns the VM's maximum page.
	Limit int `json:"limit"`
}

// GetEventsReply is the reply for the GetEvents API.
type GetEventsReply struct {
	Events []events.Event `json:"events"`
}

// GetEvents pages through the audit trail.
func (s *Service) GetEvents(_ *http.Request, args *GetEventsArgs, reply *GetEventsReply) error {
	s.called("getEvents")

	if !s.vm.IsInitialized() {
		return ErrNotInitialized
	}
	evs, err := s.vm.Events(uint64(args.StartSeq), args.Limit)
	if err != nil {
		return err
	}
	reply.Events = evs
	if reply.Events == nil {
		reply.Events = []events.Event{}
	}
	return nil
}

func (s *Service) amountOp(
	r *http.Request,
	method string,
	args *AmountArgs,
	reply *SuccessReply,
	op func(context.Context, ids.ShortID, ids.ShortID, *uint256.Int) error,
) error {
	s.called(method)

	if !s.vm.IsInitialized() {
		return ErrNotInitialized
	}
	from, err := parseID("from", args.From)
	if err != nil {
		return err
	}
	asset, err := parseID("asset", args.Asset)
	if err != nil {
		return err
	}
	amount, err := uint256.FromDecimal(args.Amount)
	if err != nil {
		return fmt.Errorf("%w: invalid amount %q: %w", ErrInvalidRequest, args.Amount, err)
	}

	if err := op(r.Context(), from, asset, amount); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

func (s *Service) called(method string) {
	s.log.Debug("API called",
		log.String("service", service),
		log.String("method", method),
	)
}

func parseID(field, s string) (ids.ShortID, error) {
	if s == "" {
		return ids.ShortEmpty, fmt.Errorf("%w: %s required", ErrInvalidRequest, field)
	}
	id, err := ids.ShortFromString(s)
	if err != nil {
		return ids.ShortEmpty, fmt.Errorf("%w: invalid %s %q: %w", ErrInvalidRequest, field, s, err)
	}
	return id, nil
}
