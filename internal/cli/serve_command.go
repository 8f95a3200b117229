package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/codestream/internal/classifier"
	"github.com/temirov/codestream/internal/completion"
	"github.com/temirov/codestream/internal/services/server"
	"github.com/temirov/codestream/internal/session"
	"github.com/temirov/codestream/internal/tokenizer"
	"github.com/temirov/codestream/internal/types"
)

const (
	serveShortDescription = "run the WebSocket session server"
	serveLongDescription  = `Listen for dashboard connections on server.path. Every connection receives a
connection event, an optional snapshot of walker.root, and then one event
stream per prompt it sends.`
	serveUsageExample = `  # Serve the current directory with an OpenAI key from the environment
  OPENAI_API_KEY=sk-... codestream serve

  # Serve offline, echoing prompts back
  CODESTREAM_PROVIDER_NAME=echo codestream serve`
)

func createServeCommand(app *application) *cobra.Command {
	return &cobra.Command{
		Use:     types.CommandServe,
		Short:   serveShortDescription,
		Long:    serveLongDescription,
		Example: serveUsageExample,
		Args:    cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return app.serve(command)
		},
	}
}

func (app *application) serve(command *cobra.Command) error {
	configuration := app.configuration
	if err := configuration.Validate(); err != nil {
		return err
	}

	relay, relayErr := completion.NewRelay(completion.Options{
		Provider: configuration.Provider.Name,
		APIKey:   configuration.Provider.APIKey,
		BaseURL:  configuration.Provider.BaseURL,
		Model:    configuration.Provider.Model,
		Timeout:  configuration.Provider.Timeout,
	})
	if relayErr != nil {
		return relayErr
	}

	var counter tokenizer.Counter
	if configuration.Tokens.Enabled {
		tokenCounter, resolvedModel, counterErr := tokenizer.NewCounter(configuration.Tokens.Model)
		if counterErr != nil {
			app.logger.Warn("token usage logging disabled", zap.Error(counterErr))
		} else {
			counter = tokenCounter
			app.logger.Debug("token usage logging enabled", zap.String("model", resolvedModel))
		}
	}

	sessionServer := server.NewServer(server.Config{
		Address:         configuration.Server.Address(),
		Path:            configuration.Server.Path,
		ShutdownTimeout: configuration.Server.ShutdownTimeout,
		Logger:          app.logger,
		Session: session.Dependencies{
			Relay:             relay,
			Intents:           classifier.NewSubstringClassifier(configuration.Generation.Triggers),
			Walker:            configuration.Walker.Options(),
			SnapshotOnConnect: configuration.Walker.OnConnect,
			TokenCounter:      counter,
			InboundQueue:      configuration.Server.InboundQueue,
			PingInterval:      configuration.Server.PingInterval,
		},
	})

	return sessionServer.Run(command.Context(), func(address string) {
		app.logger.Info("listening",
			zap.String("address", address),
			zap.String("path", configuration.Server.Path),
			zap.String("provider", configuration.Provider.Name),
			zap.String("model", configuration.Provider.Model),
			zap.String("root", configuration.Walker.Root))
	})
}
