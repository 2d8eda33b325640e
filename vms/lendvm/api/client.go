// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"context"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/luxfi/rpc"
	"github.com/luxfi/utils/json"

	"github.com/luxfi/lendvm/vms/lendvm/events"
	"github.com/luxfi/lendvm/vms/lendvm/registry"
)

// Client for the "lend" service of a node.
type Client struct {
	Requester rpc.EndpointRequester
}

// NewClient returns a client for the node serving at uri.
func NewClient(uri string) *Client {
	return &Client{Requester: rpc.NewEndpointRequester(
		uri + "/ext/" + service,
	)}
}

func (c *Client) Status(ctx context.Context, options ...rpc.Option) (*StatusReply, error) {
	res := &StatusReply{}
	err := c.Requester.SendRequest(ctx, service+".status", struct{}{}, res, options...)
	return res, err
}

func (c *Client) Deposit(ctx context.Context, from, asset ids.ShortID, amount *uint256.Int, options ...rpc.Option) error {
	return c.amountOp(ctx, "deposit", from, asset, amount, options)
}

func (c *Client) Withdraw(ctx context.Context, from, asset ids.ShortID, amount *uint256.Int, options ...rpc.Option) error {
	return c.amountOp(ctx, "withdraw", from, asset, amount, options)
}

func (c *Client) Borrow(ctx context.Context, from, asset ids.ShortID, amount *uint256.Int, options ...rpc.Option) error {
	return c.amountOp(ctx, "borrow", from, asset, amount, options)
}

func (c *Client) Repay(ctx context.Context, from, asset ids.ShortID, amount *uint256.Int, options ...rpc.Option) error {
	return c.amountOp(ctx, "repay", from, asset, amount, options)
}

func (c *Client) Approve(ctx context.Context, owner, asset ids.ShortID, amount *uint256.Int, options ...rpc.Option) error {
	return c.amountOp(ctx, "approve", owner, asset, amount, options)
}

func (c *Client) Liquidate(
	ctx context.Context,
	from ids.ShortID,
	account ids.ShortID,
	repayAsset ids.ShortID,
	rewardAsset ids.ShortID,
	options ...rpc.Option,
) (*LiquidateReply, error) {
	res := &LiquidateReply{}
	err := c.Requester.SendRequest(ctx, service+".liquidate", &LiquidateArgs{
		From:        from.String(),
		Account:     account.String(),
		RepayAsset:  repayAsset.String(),
		RewardAsset: rewardAsset.String(),
	}, res, options...)
	return res, err
}

func (c *Client) SetAllowedAsset(ctx context.Context, from, asset, oracleID ids.ShortID, options ...rpc.Option) error {
	return c.Requester.SendRequest(ctx, service+".setAllowedAsset", &SetAllowedAssetArgs{
		From:   from.String(),
		Asset:  asset.String(),
		Oracle: oracleID.String(),
	}, &SuccessReply{}, options...)
}

// SetPrice pushes a new round to oracleID. description only names new feeds.
func (c *Client) SetPrice(
	ctx context.Context,
	from ids.ShortID,
	oracleID ids.ShortID,
	description string,
	price *big.Int,
	options ...rpc.Option,
) (*SetPriceReply, error) {
	res := &SetPriceReply{}
	err := c.Requester.SendRequest(ctx, service+".setPrice", &SetPriceArgs{
		From:        from.String(),
		Oracle:      oracleID.String(),
		Description: description,
		Price:       price.String(),
	}, res, options...)
	return res, err
}

func (c *Client) GetRound(ctx context.Context, oracleID ids.ShortID, roundID uint64, options ...rpc.Option) (*GetRoundReply, error) {
	res := &GetRoundReply{}
	err := c.Requester.SendRequest(ctx, service+".getRound", &GetRoundArgs{
		Oracle:  oracleID.String(),
		RoundID: json.Uint64(roundID),
	}, res, options...)
	return res, err
}

func (c *Client) BalanceOf(ctx context.Context, asset, holder ids.ShortID, options ...rpc.Option) (*BalanceReply, error) {
	res := &BalanceReply{}
	err := c.Requester.SendRequest(ctx, service+".balanceOf", &BalanceArgs{
		Asset:  asset.String(),
		Holder: holder.String(),
	}, res, options...)
	return res, err
}

func (c *Client) GetAccount(ctx context.Context, account ids.ShortID, options ...rpc.Option) (*GetAccountReply, error) {
	res := &GetAccountReply{}
	err := c.Requester.SendRequest(ctx, service+".getAccount", &AccountArgs{
		Account: account.String(),
	}, res, options...)
	return res, err
}

func (c *Client) HealthFactor(ctx context.Context, account ids.ShortID, options ...rpc.Option) (*HealthFactorReply, error) {
	res := &HealthFactorReply{}
	err := c.Requester.SendRequest(ctx, service+".healthFactor", &AccountArgs{
		Account: account.String(),
	}, res, options...)
	return res, err
}

func (c *Client) GetAllowedAssets(ctx context.Context, options ...rpc.Option) ([]registry.AllowedAsset, error) {
	res := &GetAllowedAssetsReply{}
	err := c.Requester.SendRequest(ctx, service+".getAllowedAssets", struct{}{}, res, options...)
	return res.Assets, err
}

func (c *Client) GetLiquidatable(ctx context.Context, options ...rpc.Option) ([]AccountHealthReply, error) {
	res := &GetLiquidatableReply{}
	err := c.Requester.SendRequest(ctx, service+".getLiquidatable", struct{}{}, res, options...)
	return res.Accounts, err
}

// GetEvents returns up to limit events from startSeq. A limit of zero asks
// for the node's maximum page.
func (c *Client) GetEvents(ctx context.Context, startSeq uint64, limit int, options ...rpc.Option) ([]events.Event, error) {
	res := &GetEventsReply{}
	err := c.Requester.SendRequest(ctx, service+".getEvents", &GetEventsArgs{
		StartSeq: json.Uint64(startSeq),
		Limit:    limit,
	}, res, options...)
	return res.Events, err
}

func (c *Client) amountOp(
	ctx context.Context,
	method string,
	from ids.ShortID,
	asset ids.ShortID,
	amount *uint256.Int,
	options []rpc.Option,
) error {
	return c.Requester.SendRequest(ctx, service+"."+method, &AmountArgs{
		From:   from.String(),
		Asset:  asset.String(),
		Amount: amount.Dec(),
	}, &SuccessReply{}, options...)
}
