package cliutil

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type CommandConfig struct {
	Use     string
	Short   string
	Long    string
	Example string

	RunFunc func(cmd *cobra.Command, args []string) error

	Flags map[string]Flag
}

type Flag struct {
	Type        FlagType
	Shorthand   string
	Description string
	Required    bool

	DefaultString   string
	DefaultBool     bool
	DefaultDuration time.Duration
}

type FlagType int

const (
	FlagTypeString FlagType = iota
	FlagTypeBool
	FlagTypeDuration
)

// CreateCommand builds a cobra command from config. Errors from RunFunc
// are returned to cobra, which prints usage only for flag errors.
func CreateCommand(config CommandConfig, log zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:          config.Use,
		Short:        config.Short,
		Long:         config.Long,
		Example:      config.Example,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.RunFunc == nil {
				return cmd.Help()
			}
			return config.RunFunc(cmd, args)
		},
	}

	for name, flag := range config.Flags {
		switch flag.Type {
		case FlagTypeString:
			cmd.Flags().StringP(name, flag.Shorthand, flag.DefaultString, flag.Description)
		case FlagTypeBool:
			cmd.Flags().BoolP(name, flag.Shorthand, flag.DefaultBool, flag.Description)
		case FlagTypeDuration:
			cmd.Flags().DurationP(name, flag.Shorthand, flag.DefaultDuration, flag.Description)
		}

		if flag.Required {
			if err := cmd.MarkFlagRequired(name); err != nil {
				log.Error().Err(err).Str("flag", name).Msg("Failed to mark flag as required")
			}
		}
	}

	return cmd
}

// ExecuteCommand runs the root command and exits non-zero on failure
func ExecuteCommand(cmd *cobra.Command, log zerolog.Logger) {
	if err := cmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}
