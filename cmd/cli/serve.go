package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/theblitlabs/cook-staking/internal/api"
	"github.com/theblitlabs/cook-staking/internal/monitoring/health"
	"github.com/theblitlabs/cook-staking/internal/utils/cliutil"
	"github.com/theblitlabs/cook-staking/internal/utils/contextutil"
	"github.com/theblitlabs/cook-staking/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func NewServeCommand(opts *Options) *cobra.Command {
	log := logger.WithComponent("serve")

	return cliutil.CreateCommand(cliutil.CommandConfig{
		Use:   "serve",
		Short: "Serve the staking UI and API",
		Flags: map[string]cliutil.Flag{
			"connect": {
				Type:        cliutil.FlagTypeBool,
				Description: "Connect the wallet on startup",
			},
		},
		RunFunc: func(cmd *cobra.Command, args []string) error {
			connect, err := cmd.Flags().GetBool("connect")
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), opts, connect)
		},
	}, log)
}

func runServe(ctx context.Context, opts *Options, connect bool) error {
	log := logger.WithComponent("serve")

	app, err := NewApp(ctx, opts, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		app.Close(closeCtx)
	}()

	addr := net.JoinHostPort(app.Config.Server.Host, app.Config.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %s is not available: %w", app.Config.Server.Port, err)
	}

	checker := newHealthChecker(app)
	checker.Start(ctx)
	defer checker.Stop()

	handler := api.NewHandler(app.Session, app.Config.Token.Symbol, app.Config.Ethereum.TxTimeout).
		WithHealth(checker)
	srv := &http.Server{
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if connect {
		connectCtx, cancel := contextutil.WithShortTimeout(ctx)
		if err := app.Session.Connect(connectCtx); err != nil {
			log.Warn().Err(err).Msg("Wallet connection on startup failed - connect from the UI")
		}
		cancel()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", "http://"+ln.Addr().String()).Msg("Staking UI listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info().Msg("Server stopped")
	return nil
}

func newHealthChecker(app *App) *health.Checker {
	checker := health.NewChecker(30 * time.Second)

	checker.Register("rpc", func(ctx context.Context) (string, error) {
		chainID, err := app.Client.ChainID(ctx)
		if err != nil {
			return "", fmt.Errorf("rpc not responding: %w", err)
		}
		if chainID.Int64() != app.Config.Ethereum.ChainID {
			return "", fmt.Errorf("rpc serves chain %s, want %d", chainID, app.Config.Ethereum.ChainID)
		}
		return fmt.Sprintf("chain %s", chainID), nil
	})

	checker.Register("wallet", func(ctx context.Context) (string, error) {
		s := app.Session.Snapshot()
		if !s.Connected() {
			return "", health.Warning(fmt.Errorf("wallet %s", s.ConnectionState))
		}
		return s.WalletAddress.Hex(), nil
	})

	return checker
}
