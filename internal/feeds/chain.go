package feeds

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	synthetixABIJSON = `[
		{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"collateral","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"internalType":"address","name":"_issuer","type":"address"}],"name":"collateralisationRatio","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"internalType":"address","name":"account","type":"address"},{"internalType":"bytes32","name":"currencyKey","type":"bytes32"}],"name":"debtBalanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"internalType":"bytes32","name":"currencyKey","type":"bytes32"}],"name":"totalIssuedSynths","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
	]`

	exchangeRatesABIJSON = `[
		{"inputs":[{"internalType":"bytes32[]","name":"currencyKeys","type":"bytes32[]"}],"name":"ratesForCurrencies","outputs":[{"internalType":"uint256[]","name":"","type":"uint256[]"}],"stateMutability":"view","type":"function"}
	]`

	feePoolABIJSON = `[
		{"inputs":[{"internalType":"uint256","name":"index","type":"uint256"}],"name":"recentFeePeriods","outputs":[{"internalType":"uint64","name":"feePeriodId","type":"uint64"},{"internalType":"uint64","name":"startingDebtIndex","type":"uint64"},{"internalType":"uint64","name":"startTime","type":"uint64"},{"internalType":"uint256","name":"feesToDistribute","type":"uint256"},{"internalType":"uint256","name":"feesClaimed","type":"uint256"},{"internalType":"uint256","name":"rewardsToDistribute","type":"uint256"},{"internalType":"uint256","name":"rewardsClaimed","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[],"name":"feePeriodDuration","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
	]`

	exchangerABIJSON = `[
		{"inputs":[{"internalType":"address","name":"account","type":"address"},{"internalType":"bytes32","name":"currencyKey","type":"bytes32"}],"name":"maxSecsLeftInWaitingPeriod","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
	]`

	issuerABIJSON = `[
		{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"canBurnSynths","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"lastIssueEvent","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[],"name":"minimumStakeTime","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
	]`

	systemSettingsABIJSON = `[
		{"inputs":[],"name":"issuanceRatio","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
	]`

	erc20ABIJSON = `[
		{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
	]`
)

var (
	synthetixABI      abi.ABI
	exchangeRatesABI  abi.ABI
	feePoolABI        abi.ABI
	exchangerABI      abi.ABI
	issuerABI         abi.ABI
	systemSettingsABI abi.ABI
	erc20ABI          abi.ABI
)

func init() {
	for _, entry := range []struct {
		target *abi.ABI
		json   string
	}{
		{&synthetixABI, synthetixABIJSON},
		{&exchangeRatesABI, exchangeRatesABIJSON},
		{&feePoolABI, feePoolABIJSON},
		{&exchangerABI, exchangerABIJSON},
		{&issuerABI, issuerABIJSON},
		{&systemSettingsABI, systemSettingsABIJSON},
		{&erc20ABI, erc20ABIJSON},
	} {
		parsed, err := abi.JSON(strings.NewReader(entry.json))
		if err != nil {
			panic("failed to parse contract ABI: " + err.Error())
		}
		*entry.target = parsed
	}
}

// ChainOptions parameterise the on-chain feed reader.
type ChainOptions struct {
	RPCURL                string
	SynthetixAddress      string
	ExchangeRatesAddress  string
	FeePoolAddress        string
	ExchangerAddress      string
	IssuerAddress         string
	SystemSettingsAddress string
	SUSDTokenAddress      string
	Timeout               time.Duration
}

// Chain reads staking state from the protocol contracts over Ethereum RPC.
// It backs the rates, fee-pool, account, network-debt, and lock-probe feeds.
type Chain struct {
	opts      ChainOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewChain builds an on-chain feed reader.
func NewChain(opts ChainOptions, logger zerolog.Logger) *Chain {
	return &Chain{opts: opts, logger: logger.With().Str("component", "chain_feed").Logger()}
}

func (c *Chain) getClient(ctx context.Context) (*ethclient.Client, error) {
	c.clientMux.Lock()
	defer c.clientMux.Unlock()

	if c.client != nil {
		return c.client, nil
	}
	if c.opts.RPCURL == "" {
		return nil, errors.New("ethereum rpc url not configured")
	}

	client, err := ethclient.DialContext(ctx, c.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

func (c *Chain) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := c.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// call packs, executes, and unpacks one contract view.
func (c *Chain) call(ctx context.Context, contractABI abi.ABI, address, method string, args ...any) ([]any, error) {
	if address == "" {
		return nil, fmt.Errorf("contract address for %s not configured", method)
	}

	client, err := c.getClient(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	addr := common.HexToAddress(address)
	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	outputs, err := contractABI.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return outputs, nil
}

func currencyKey(symbol string) [32]byte {
	var key [32]byte
	copy(key[:], symbol)
	return key
}

func toDecimal(output any) (decimal.Decimal, error) {
	value, ok := output.(*big.Int)
	if !ok {
		return decimal.Decimal{}, errors.New("unexpected contract output type")
	}
	return decimal.NewFromBigInt(value, -18), nil
}

// FetchRates reads the sUSD and SNX oracle rates in one call.
func (c *Chain) FetchRates(ctx context.Context) (Rates, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	keys := [][32]byte{currencyKey("sUSD"), currencyKey("SNX")}
	outputs, err := c.call(ctx, exchangeRatesABI, c.opts.ExchangeRatesAddress, "ratesForCurrencies", keys)
	if err != nil {
		return Rates{}, err
	}
	if len(outputs) != 1 {
		return Rates{}, errors.New("unexpected ratesForCurrencies response")
	}
	values, ok := outputs[0].([]*big.Int)
	if !ok || len(values) != 2 {
		return Rates{}, errors.New("failed to decode ratesForCurrencies output")
	}

	return Rates{
		SUSD: decimal.NewFromBigInt(values[0], -18),
		SNX:  decimal.NewFromBigInt(values[1], -18),
	}, nil
}

// FetchFeePeriod reads one recent fee period by index ("0" current, "1"
// previous).
func (c *Chain) FetchFeePeriod(ctx context.Context, index string) (FeePeriod, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	idx, ok := new(big.Int).SetString(index, 10)
	if !ok {
		return FeePeriod{}, fmt.Errorf("invalid fee period index %q", index)
	}

	outputs, err := c.call(ctx, feePoolABI, c.opts.FeePoolAddress, "recentFeePeriods", idx)
	if err != nil {
		return FeePeriod{}, err
	}
	if len(outputs) != 7 {
		return FeePeriod{}, errors.New("unexpected recentFeePeriods response")
	}

	startTime, ok := outputs[2].(uint64)
	if !ok {
		return FeePeriod{}, errors.New("failed to decode fee period start time")
	}
	fees, err := toDecimal(outputs[3])
	if err != nil {
		return FeePeriod{}, err
	}
	rewards, err := toDecimal(outputs[5])
	if err != nil {
		return FeePeriod{}, err
	}

	durationOut, err := c.call(ctx, feePoolABI, c.opts.FeePoolAddress, "feePeriodDuration")
	if err != nil {
		return FeePeriod{}, err
	}
	duration, ok := durationOut[0].(*big.Int)
	if !ok {
		return FeePeriod{}, errors.New("failed to decode fee period duration")
	}

	return FeePeriod{
		StartTime:           int64(startTime),
		FeePeriodDuration:   duration.Int64(),
		FeesToDistribute:    fees,
		RewardsToDistribute: rewards,
	}, nil
}

// FetchAccount reads the staker's collateral, debt, ratios, and balances.
func (c *Chain) FetchAccount(ctx context.Context, address string) (Account, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	client, err := c.getClient(ctx)
	if err != nil {
		return Account{}, err
	}

	addr := common.HexToAddress(address)
	account := Account{}

	reads := []struct {
		abi      abi.ABI
		contract string
		method   string
		args     []any
		into     *decimal.Decimal
	}{
		{synthetixABI, c.opts.SynthetixAddress, "collateral", []any{addr}, &account.Collateral},
		{synthetixABI, c.opts.SynthetixAddress, "collateralisationRatio", []any{addr}, &account.CurrentCRatio},
		{synthetixABI, c.opts.SynthetixAddress, "debtBalanceOf", []any{addr, currencyKey("sUSD")}, &account.DebtBalance},
		{systemSettingsABI, c.opts.SystemSettingsAddress, "issuanceRatio", nil, &account.TargetCRatio},
		{erc20ABI, c.opts.SUSDTokenAddress, "balanceOf", []any{addr}, &account.SUSDBalance},
	}
	for _, read := range reads {
		outputs, err := c.call(ctx, read.abi, read.contract, read.method, read.args...)
		if err != nil {
			return Account{}, err
		}
		value, err := toDecimal(outputs[0])
		if err != nil {
			return Account{}, fmt.Errorf("decode %s: %w", read.method, err)
		}
		*read.into = value
	}

	ethBalance, err := client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return Account{}, fmt.Errorf("fetch eth balance: %w", err)
	}
	account.ETHBalance = decimal.NewFromBigInt(ethBalance, -18)

	return account, nil
}

// FetchTotalNetworkDebt reads the network-wide issued synth total in sUSD.
func (c *Chain) FetchTotalNetworkDebt(ctx context.Context) (decimal.Decimal, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	outputs, err := c.call(ctx, synthetixABI, c.opts.SynthetixAddress, "totalIssuedSynths", currencyKey("sUSD"))
	if err != nil {
		return decimal.Decimal{}, err
	}
	return toDecimal(outputs[0])
}

// WaitingPeriod probes the conversion cool-down remaining for the account,
// in seconds.
func (c *Chain) WaitingPeriod(ctx context.Context, address string) (int64, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	outputs, err := c.call(ctx, exchangerABI, c.opts.ExchangerAddress, "maxSecsLeftInWaitingPeriod",
		common.HexToAddress(address), currencyKey("sUSD"))
	if err != nil {
		return 0, err
	}
	secs, ok := outputs[0].(*big.Int)
	if !ok {
		return 0, errors.New("failed to decode waiting period")
	}
	return secs.Int64(), nil
}

// IssuanceLock probes the issuer's minimum-stake-time views.
func (c *Chain) IssuanceLock(ctx context.Context, address string) (IssuanceLock, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	addr := common.HexToAddress(address)
	lock := IssuanceLock{}

	canBurnOut, err := c.call(ctx, issuerABI, c.opts.IssuerAddress, "canBurnSynths", addr)
	if err != nil {
		return IssuanceLock{}, err
	}
	canBurn, ok := canBurnOut[0].(bool)
	if !ok {
		return IssuanceLock{}, errors.New("failed to decode canBurnSynths")
	}
	lock.CanBurn = canBurn

	lastIssueOut, err := c.call(ctx, issuerABI, c.opts.IssuerAddress, "lastIssueEvent", addr)
	if err != nil {
		return IssuanceLock{}, err
	}
	lastIssue, ok := lastIssueOut[0].(*big.Int)
	if !ok {
		return IssuanceLock{}, errors.New("failed to decode lastIssueEvent")
	}
	lock.LastIssueEvent = lastIssue.Int64()

	minStakeOut, err := c.call(ctx, issuerABI, c.opts.IssuerAddress, "minimumStakeTime")
	if err != nil {
		return IssuanceLock{}, err
	}
	minStake, ok := minStakeOut[0].(*big.Int)
	if !ok {
		return IssuanceLock{}, errors.New("failed to decode minimumStakeTime")
	}
	lock.MinimumStakeTime = minStake.Int64()

	return lock, nil
}

var (
	_ RatesFeed       = (*Chain)(nil)
	_ FeePoolFeed     = (*Chain)(nil)
	_ AccountFeed     = (*Chain)(nil)
	_ NetworkDebtFeed = (*Chain)(nil)
	_ LockProbe       = (*Chain)(nil)
)
