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

func NewStakeCommand(opts *Options) *cobra.Command {
	log := logger.WithComponent("stake")

	return cliutil.CreateCommand(cliutil.CommandConfig{
		Use:     "stake",
		Short:   "Approve and stake tokens",
		Example: "  cook-staking stake --amount 10.5",
		Flags: map[string]cliutil.Flag{
			"amount": {
				Type:        cliutil.FlagTypeString,
				Shorthand:   "a",
				Description: "Amount of tokens to stake",
				Required:    true,
			},
			"timeout": {
				Type:        cliutil.FlagTypeDuration,
				Description: "Overall deadline for the transactions (defaults to ethereum.tx_timeout)",
			},
		},
		RunFunc: func(cmd *cobra.Command, args []string) error {
			amount, err := cmd.Flags().GetString("amount")
			if err != nil {
				return err
			}
			timeout, err := cmd.Flags().GetDuration("timeout")
			if err != nil {
				return err
			}
			return runStake(cmd.Context(), opts, amount, timeout)
		},
	}, log)
}

func runStake(ctx context.Context, opts *Options, amount string, timeout time.Duration) error {
	log := logger.WithComponent("stake")

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
	if err := app.Session.RefreshBalance(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to check token balance")
	}

	s := app.Session.Snapshot()
	log.Info().
		Str("wallet", s.WalletAddress.Hex()).
		Str("balance", s.Balance.DisplayValue+" "+app.Config.Token.Symbol).
		Str("amount", amount+" "+app.Config.Token.Symbol).
		Msg("Processing stake request")

	if err := app.Session.Stake(ctx, amount); err != nil {
		return fmt.Errorf("%s: %w", noticeOr(app, "Stake failed"), err)
	}

	log.Info().Msg(noticeOr(app, "Successfully staked!"))
	return nil
}

// txTimeout prefers the --timeout flag over the configured deadline
func txTimeout(app *App, flag time.Duration) time.Duration {
	if flag > 0 {
		return flag
	}
	return app.Config.Ethereum.TxTimeout
}

func noticeOr(app *App, fallback string) string {
	if n := app.Session.Snapshot().Notice; n != nil {
		return n.Message
	}
	return fallback
}
