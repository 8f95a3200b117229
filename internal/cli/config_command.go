package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/codestream/internal/config"
)

const (
	configUse                  = "config"
	configShortDescription     = "manage codestream configuration"
	configInitUse              = "init"
	configInitShortDescription = "write the default configuration file"
	globalFlagName             = "global"
	globalFlagDescription      = "write to the global configuration directory"
	forceFlagName              = "force"
	forceFlagDescription       = "overwrite an existing configuration file"
	configWrittenFormat        = "configuration written to %s\n"
)

func createConfigCommand() *cobra.Command {
	configCommand := &cobra.Command{
		Use:   configUse,
		Short: configShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}

	var global bool
	var force bool
	initCommand := &cobra.Command{
		Use:   configInitUse,
		Short: configInitShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			path, err := config.InitializeConfiguration(config.InitOptions{Target: target, Force: force})
			if err != nil {
				return err
			}
			fmt.Fprintf(command.OutOrStdout(), configWrittenFormat, path)
			return nil
		},
	}
	initCommand.Flags().BoolVar(&global, globalFlagName, false, globalFlagDescription)
	initCommand.Flags().BoolVar(&force, forceFlagName, false, forceFlagDescription)
	configCommand.AddCommand(initCommand)
	return configCommand
}
