// Package cli provides the command line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/codestream/internal/config"
	"github.com/temirov/codestream/internal/utils"
)

const (
	configFlagName        = "config"
	configFlagDescription = "path to a configuration file (default ./" + utils.ConfigFileName + ")"
	versionTemplate       = "codestream version: {{.Version}}\n"
	rootUse               = "codestream"
	rootShortDescription  = "codestream streaming session server"
	rootLongDescription   = `codestream serves a WebSocket session that streams a project's files and
language-model completions to a dashboard as typed JSON events.
Settings come from ` + utils.ConfigFileName + `, a .env file and the environment.`
)

// application carries state shared by every command of one invocation.
type application struct {
	configFilePath string
	configuration  config.ApplicationConfiguration
	logger         *zap.Logger
}

// Execute runs the codestream application until it finishes or the process
// receives an interrupt.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return createRootCommand().ExecuteContext(ctx)
}

// createRootCommand builds the root Cobra command.
func createRootCommand() *cobra.Command {
	app := &application{logger: zap.NewNop()}

	rootCommand := &cobra.Command{
		Use:           rootUse,
		Short:         rootShortDescription,
		Long:          rootLongDescription,
		Version:       utils.GetApplicationVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return app.load()
		},
		PersistentPostRun: func(command *cobra.Command, arguments []string) {
			_ = app.logger.Sync()
		},
	}
	rootCommand.SetVersionTemplate(versionTemplate)
	rootCommand.PersistentFlags().StringVar(&app.configFilePath, configFlagName, "", configFlagDescription)
	rootCommand.AddCommand(
		createServeCommand(app),
		createWalkCommand(app),
		createConfigCommand(),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

func (app *application) load() error {
	configuration, loadErr := config.LoadApplicationConfiguration(config.LoadOptions{ExplicitFilePath: app.configFilePath})
	if loadErr != nil {
		return loadErr
	}
	logger, loggerErr := utils.NewLogger(utils.LoggerOptions{Level: configuration.Log.Level, Format: configuration.Log.Format})
	if loggerErr != nil {
		return fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerErr)
	}
	app.configuration = configuration
	app.logger = logger
	return nil
}
