package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/theblitlabs/cook-staking/cmd/cli"
	"github.com/theblitlabs/cook-staking/internal/utils/configutil"
	"github.com/theblitlabs/cook-staking/pkg/logger"
)

var (
	logMode string
	opts    = &cli.Options{}
)

var rootCmd = &cobra.Command{
	Use:   "cook-staking",
	Short: "COOK staking client",
	Long:  `Connect a wallet, stake COOK tokens and claim staking rewards from the browser or the command line`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.InitWithMode(logger.ParseMode(logMode))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logMode, "log", "pretty", "Log mode: debug, pretty, info, prod, test")
	rootCmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", configutil.DefaultConfigPath, "Path to the configuration file")

	rootCmd.AddCommand(cli.NewServeCommand(opts))
	rootCmd.AddCommand(cli.NewBalanceCommand(opts))
	rootCmd.AddCommand(cli.NewStakeCommand(opts))
	rootCmd.AddCommand(cli.NewClaimCommand(opts))
	rootCmd.AddCommand(cli.NewAuthCommand(opts))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
