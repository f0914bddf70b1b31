package cli

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"

	"github.com/theblitlabs/cook-staking/internal/config"
	"github.com/theblitlabs/cook-staking/internal/session"
	"github.com/theblitlabs/cook-staking/internal/telemetry"
	"github.com/theblitlabs/cook-staking/internal/utils/configutil"
	"github.com/theblitlabs/cook-staking/internal/utils/errorutil"
	"github.com/theblitlabs/cook-staking/pkg/staking"
	"github.com/theblitlabs/cook-staking/pkg/token"
	"github.com/theblitlabs/cook-staking/pkg/wallet"
)

const clientIDHeader = "x-client-id"

// Options are the persistent flags shared by every command
type Options struct {
	ConfigPath string
}

// App holds the chain clients and session controller for one command run
type App struct {
	Config  *config.Config
	Client  *ethclient.Client
	Wallet  *wallet.Provider
	Token   *token.Token
	Staking *staking.Staking
	Session *session.Controller

	log      zerolog.Logger
	shutdown telemetry.Shutdown
}

func NewApp(ctx context.Context, opts *Options, log zerolog.Logger) (*App, error) {
	cfg, err := configutil.GetConfig(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration - please ensure %s exists: %w", opts.ConfigPath, err)
	}

	shutdown, err := telemetry.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	client, err := dial(ctx, cfg.Ethereum)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	w := wallet.NewProvider(wallet.Config{
		KeystoreDir: cfg.Wallet.KeystoreDir,
		Account:     cfg.Wallet.Account,
		Passphrase:  cfg.Wallet.Passphrase,
		ChainID:     cfg.Ethereum.ChainID,
		LightKDF:    cfg.Wallet.LightKDF,
	}, client)

	tok, err := token.New(common.HexToAddress(cfg.Ethereum.TokenAddress), client, w)
	if err != nil {
		client.Close()
		_ = shutdown(ctx)
		return nil, fmt.Errorf("failed to bind token contract: %w", err)
	}

	stk, err := staking.New(common.HexToAddress(cfg.Ethereum.StakingAddress), client, w)
	if err != nil {
		client.Close()
		_ = shutdown(ctx)
		return nil, fmt.Errorf("failed to bind staking contract: %w", err)
	}

	log.Debug().
		Str("rpc", cfg.Ethereum.RPC).
		Int64("chain_id", cfg.Ethereum.ChainID).
		Str("token", tok.Address().Hex()).
		Str("staking", stk.Address().Hex()).
		Msg("Chain clients ready")

	return &App{
		Config:   cfg,
		Client:   client,
		Wallet:   w,
		Token:    tok,
		Staking:  stk,
		Session:  session.NewController(w, tok, stk),
		log:      log,
		shutdown: shutdown,
	}, nil
}

// dial connects to the RPC endpoint, sending the client id header when one
// is configured.
func dial(ctx context.Context, cfg config.EthereumConfig) (*ethclient.Client, error) {
	var opts []rpc.ClientOption
	if cfg.ClientID != "" {
		opts = append(opts, rpc.WithHeader(clientIDHeader, cfg.ClientID))
	}

	rpcClient, err := rpc.DialOptions(ctx, cfg.RPC, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.RPC, err)
	}
	return ethclient.NewClient(rpcClient), nil
}

// Close stops the session, disconnects the wallet and flushes telemetry
func (a *App) Close(ctx context.Context) {
	a.Session.Close()
	errorutil.LogContextError(a.log, ctx, a.Wallet.Disconnect(ctx), "Failed to lock wallet")
	a.Client.Close()
	errorutil.LogContextError(a.log, ctx, a.shutdown(ctx), "Failed to flush telemetry")
}
