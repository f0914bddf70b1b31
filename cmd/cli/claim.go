package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theblitlabs/cook-staking/internal/utils/cliutil"
	"github.com/theblitlabs/cook-staking/internal/utils/contextutil"
	"github.com/theblitlabs/cook-staking/pkg/logger"
)

func NewClaimCommand(opts *Options) *cobra.Command {
	log := logger.WithComponent("claim")

	return cliutil.CreateCommand(cliutil.CommandConfig{
		Use:   "claim",
		Short: "Claim staking rewards",
		Flags: map[string]cliutil.Flag{
			"timeout": {
				Type:        cliutil.FlagTypeDuration,
				Description: "Overall deadline for the transactions (defaults to ethereum.tx_timeout)",
			},
		},
		RunFunc: func(cmd *cobra.Command, args []string) error {
			timeout, err := cmd.Flags().GetDuration("timeout")
			if err != nil {
				return err
			}
			return runClaim(cmd.Context(), opts, timeout)
		},
	}, log)
}

func runClaim(ctx context.Context, opts *Options, timeout time.Duration) error {
	log := logger.WithComponent("claim")

	app, err := NewApp(ctx, opts, log)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	ctx, cancel := contextutil.WithTimeout(ctx, txTimeout(app, timeout))
	defer cancel()

	if err := connectWallet(ctx, app); err != nil {
		return err
	}

	log.Info().Str("wallet", app.Session.Snapshot().WalletAddress.Hex()).Msg("Claiming rewards...")
	if err := app.Session.Claim(ctx); err != nil {
		return fmt.Errorf("%s: %w", noticeOr(app, "Claim failed"), err)
	}

	log.Info().Msg(noticeOr(app, "Rewards claimed!"))
	return nil
}
