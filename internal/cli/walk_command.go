package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/codestream/internal/services/stream"
	"github.com/temirov/codestream/internal/types"
	"github.com/temirov/codestream/internal/utils"
)

const (
	walkUse              = types.CommandWalk + " [root]"
	walkShortDescription = "print the file snapshot a session would stream"
	walkLongDescription  = `Walk a directory (walker.root by default) and print one JSON event per line:
a file event per regular file followed by file_stream_done, or a single error
event when the walk fails.`
	contentFlagName          = "content"
	contentFlagDescription   = "include text file content"
	exclusionFlagName        = "e"
	exclusionFlagDescription = "exclude a path prefix relative to the root"
)

func createWalkCommand(app *application) *cobra.Command {
	var includeContent bool
	var exclusionPatterns []string
	walkCommand := &cobra.Command{
		Use:   walkUse,
		Short: walkShortDescription,
		Long:  walkLongDescription,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			options := app.configuration.Walker.Options()
			if len(arguments) == 1 {
				options.Root = arguments[0]
			}
			if command.Flags().Changed(contentFlagName) {
				options.IncludeContent = includeContent
			}
			for _, exclusion := range exclusionPatterns {
				options.IgnorePatterns = append(options.IgnorePatterns, utils.ExclusionPrefix+strings.Trim(exclusion, "/"))
			}
			options.Warn = func(message string) {
				app.logger.Warn("file snapshot", zap.String("detail", message))
			}

			encoder := json.NewEncoder(command.OutOrStdout())
			encoder.SetEscapeHTML(false)
			summary, err := stream.StreamSnapshot(command.Context(), options, func(event stream.Event) error {
				return encoder.Encode(event)
			})
			if errors.Is(err, stream.ErrSnapshotFailed) {
				return fmt.Errorf("walk %s: %w", options.Root, err)
			}
			if err != nil {
				return fmt.Errorf("write snapshot: %w", err)
			}
			app.logger.Debug("snapshot written", zap.Int("files", summary.Files), zap.Int("skipped", summary.Skipped))
			return nil
		},
	}
	walkCommand.Flags().BoolVar(&includeContent, contentFlagName, false, contentFlagDescription)
	walkCommand.Flags().StringArrayVarP(&exclusionPatterns, exclusionFlagName, exclusionFlagName, nil, exclusionFlagDescription)
	return walkCommand
}
