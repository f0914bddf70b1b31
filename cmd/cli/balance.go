package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theblitlabs/cook-staking/internal/session"
	"github.com/theblitlabs/cook-staking/internal/utils/cliutil"
	"github.com/theblitlabs/cook-staking/internal/utils/contextutil"
	"github.com/theblitlabs/cook-staking/pkg/logger"
)

func NewBalanceCommand(opts *Options) *cobra.Command {
	log := logger.WithComponent("balance")

	return cliutil.CreateCommand(cliutil.CommandConfig{
		Use:   "balance",
		Short: "Show the wallet's token balance and staking allowance",
		RunFunc: func(cmd *cobra.Command, args []string) error {
			return runBalance(cmd.Context(), opts)
		},
	}, log)
}

func runBalance(ctx context.Context, opts *Options) error {
	log := logger.WithComponent("balance")

	app, err := NewApp(ctx, opts, log)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	ctx, cancel := contextutil.WithShortTimeout(ctx)
	defer cancel()

	if err := connectWallet(ctx, app); err != nil {
		return err
	}
	if err := app.Session.RefreshBalance(ctx); err != nil {
		return fmt.Errorf("failed to check token balance - please try again: %w", err)
	}

	s := app.Session.Snapshot()
	wallet := *s.WalletAddress

	symbol, err := app.Token.Symbol(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Token symbol unavailable, using configured label")
		symbol = app.Config.Token.Symbol
	}

	allowance, err := app.Token.Allowance(ctx, wallet, app.Staking.Address())
	if err != nil {
		return fmt.Errorf("failed to check token allowance - please try again: %w", err)
	}

	log.Info().
		Str("wallet", wallet.Hex()).
		Str("balance", s.Balance.DisplayValue+" "+symbol).
		Str("raw_balance", s.Balance.RawBalance.String()).
		Str("token_address", app.Token.Address().Hex()).
		Msg("Token balance")

	log.Info().
		Str("allowance", session.FormatUnits(allowance, s.Balance.Decimals)+" "+symbol).
		Str("staking_address", app.Staking.Address().Hex()).
		Msg("Staking allowance")
	return nil
}

// connectWallet connects the session, reporting the wallet's own reason on
// failure.
func connectWallet(ctx context.Context, app *App) error {
	if err := app.Session.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect wallet - run 'cook-staking auth' and check the passphrase: %w", err)
	}
	if !app.Session.Snapshot().Connected() {
		return session.ErrNotConnected
	}
	return nil
}
