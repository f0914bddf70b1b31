package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theblitlabs/cook-staking/internal/utils/cliutil"
	"github.com/theblitlabs/cook-staking/internal/utils/configutil"
	"github.com/theblitlabs/cook-staking/pkg/logger"
	"github.com/theblitlabs/cook-staking/pkg/wallet"
)

func NewAuthCommand(opts *Options) *cobra.Command {
	log := logger.WithComponent("auth")

	return cliutil.CreateCommand(cliutil.CommandConfig{
		Use:   "auth",
		Short: "Import a private key into the wallet keystore",
		Flags: map[string]cliutil.Flag{
			"private-key": {
				Type:        cliutil.FlagTypeString,
				Shorthand:   "k",
				Description: "Private key in hex format",
				Required:    true,
			},
		},
		RunFunc: func(cmd *cobra.Command, args []string) error {
			privateKey, err := cmd.Flags().GetString("private-key")
			if err != nil {
				return fmt.Errorf("failed to get private key flag: %w", err)
			}
			return ExecuteAuth(opts, privateKey)
		},
	}, log)
}

// ExecuteAuth encrypts privateKey into the configured keystore with the
// configured passphrase.
func ExecuteAuth(opts *Options, privateKey string) error {
	log := logger.WithComponent("auth")

	if privateKey == "" {
		return fmt.Errorf("private key is required")
	}

	cfg, err := configutil.GetConfig(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Wallet.Passphrase == "" {
		log.Warn().Msg("Keystore passphrase is empty - set wallet.passphrase or COOK_STAKING_WALLET_PASSPHRASE")
	}

	provider := wallet.NewProvider(wallet.Config{
		KeystoreDir: cfg.Wallet.KeystoreDir,
		Passphrase:  cfg.Wallet.Passphrase,
		ChainID:     cfg.Ethereum.ChainID,
		LightKDF:    cfg.Wallet.LightKDF,
	}, nil)

	address, err := provider.ImportKey(privateKey)
	if err != nil {
		return err
	}

	log.Info().
		Str("address", address.Hex()).
		Str("keystore", cfg.Wallet.KeystoreDir).
		Msg("Successfully authenticated")

	if accounts := provider.Accounts(); len(accounts) > 1 && cfg.Wallet.Account == "" {
		log.Warn().
			Int("accounts", len(accounts)).
			Msg("Keystore holds several accounts - set wallet.account to choose which one signs")
	}
	return nil
}
