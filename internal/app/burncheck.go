package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"stake-mirror-watch/internal/guard"
	"stake-mirror-watch/internal/txsubmit"
)

// BurnCheck validates a proposed burn against the live feed values and,
// when asked, walks it through a dry-run submission. 不会向链上发送任何交易。
func (a *App) BurnCheck(ctx context.Context, opts BurnCheckOptions) error {
	mode, err := parseBurnMode(opts.Mode)
	if err != nil {
		return err
	}

	chain := a.newChain()
	account, err := chain.FetchAccount(ctx, a.Config.Wallet.Address)
	if err != nil {
		return fmt.Errorf("fetch account: %w", err)
	}

	waiting, err := chain.WaitingPeriod(ctx, a.Config.Wallet.Address)
	if err != nil {
		return fmt.Errorf("probe waiting period: %w", err)
	}
	lock, err := chain.IssuanceLock(ctx, a.Config.Wallet.Address)
	if err != nil {
		return fmt.Errorf("probe issuance lock: %w", err)
	}

	req := guard.Request{Amount: opts.Amount, Mode: mode}
	feedValues := guard.Feeds{
		DebtBalance:   account.DebtBalance,
		SUSDBalance:   account.SUSDBalance,
		ETHBalance:    account.ETHBalance,
		WaitingPeriod: waiting,
		IssuanceDelay: guard.IssuanceDelay(lock.LastIssueEvent, lock.MinimumStakeTime, lock.CanBurn, time.Now()),
	}

	var swapCall txsubmit.CallDescriptor
	if mode == guard.ModeClearDebt {
		plan := guard.PlanClearDebt(account.DebtBalance, account.SUSDBalance)
		feedValues.NeedToBuy = plan.NeedToBuy
		req.Amount = plan.DebtWithBuffer

		if plan.NeedToBuy {
			quote, err := a.newSwap().FetchSwapQuote(ctx, plan.MissingSUSD)
			if err != nil {
				return fmt.Errorf("fetch swap quote: %w", err)
			}
			feedValues.SwapQuote = quote.RequiredETH
			swapCall = quote.Call
		}
	}

	machine := guard.NewMachine(txsubmit.NewLogSubmitter(a.Logger), a.Logger)
	result := machine.Validate(req, feedValues)

	printBurnResult(req, feedValues, result)

	if !opts.Submit || result.State != guard.StateReady {
		return nil
	}

	submitOpts := guard.SubmitOptions{
		Delegate: a.Config.Wallet.Delegate,
		GasPrice: a.gasPrice(),
		SwapCall: swapCall,
	}
	if err := machine.Submit(ctx, req, feedValues, submitOpts); err != nil {
		// The dry-run submitter confirms instantly, so a pending swap here
		// means the eligibility edge itself rejected the burn.
		if errors.Is(err, guard.ErrSwapPending) {
			fmt.Fprintln(os.Stdout, "swap submitted; burn withheld until it confirms")
			return nil
		}
		return err
	}

	fmt.Fprintln(os.Stdout, "dry-run submission accepted")
	machine.Complete()
	return nil
}

func parseBurnMode(mode string) (guard.BurnMode, error) {
	switch guard.BurnMode(mode) {
	case guard.ModeCustom, guard.ModeToTarget, guard.ModeClearDebt:
		return guard.BurnMode(mode), nil
	default:
		return "", fmt.Errorf("unknown burn mode %q (want custom, target, or clear)", mode)
	}
}

func printBurnResult(req guard.Request, feedValues guard.Feeds, result guard.Result) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Mode\t%s\n", req.Mode)
	fmt.Fprintf(writer, "Amount (sUSD)\t%s\n", formatDecimal(req.Amount, 2))
	fmt.Fprintf(writer, "Debt Balance (sUSD)\t%s\n", formatDecimal(feedValues.DebtBalance, 2))
	fmt.Fprintf(writer, "sUSD Balance\t%s\n", formatDecimal(feedValues.SUSDBalance, 2))
	if feedValues.NeedToBuy {
		fmt.Fprintf(writer, "Swap Required (ETH)\t%s\n", formatDecimal(feedValues.SwapQuote, 6))
	}
	fmt.Fprintf(writer, "State\t%s\n", result.State)
	if result.State == guard.StateBlocked {
		fmt.Fprintf(writer, "Blocked\t%s\n", result.Block.Reason)
	}
	writer.Flush()
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
