package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"stake-mirror-watch/internal/service"
)

// Position computes and prints the account's full staking position.
func (a *App) Position(ctx context.Context) error {
	svc := service.New(a.Config, nil, a.newFeeds(), nil, nil, a.Logger)

	obs, err := svc.Observe(ctx)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Account\t%s\n", a.Config.Wallet.Address)
	fmt.Fprintf(writer, "Collateral (SNX)\t%s\n", formatDecimal(obs.Position.Collateral, 2))
	fmt.Fprintf(writer, "Debt Balance (sUSD)\t%s\n", formatDecimal(obs.Position.DebtBalance, 2))
	fmt.Fprintf(writer, "Current C-Ratio\t%s\n", formatDecimal(obs.Position.CurrentCRatio, 4))
	fmt.Fprintf(writer, "Target C-Ratio\t%s\n", formatDecimal(obs.Position.TargetCRatio, 4))
	fmt.Fprintf(writer, "Issuable Debt (sUSD)\t%s\n", formatDecimal(obs.Position.IssuableDebt, 2))
	fmt.Fprintf(writer, "Staked Value (sUSD)\t%s\n", formatDecimal(obs.Position.StakedValue, 2))
	fmt.Fprintf(writer, "Staking APR\t%.2f%%\n", obs.Position.StakingAPR*100)
	fmt.Fprintf(writer, "Claimed This Period\t%t\n", obs.HasClaimed)
	fmt.Fprintf(writer, "Waiting Period (s)\t%d\n", obs.WaitingPeriod)
	fmt.Fprintf(writer, "Issuance Delay (s)\t%d\n", obs.IssuanceDelay)
	writer.Flush()
	return nil
}
