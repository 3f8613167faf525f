package cli

import (
	"os/signal"
	"syscall"

	"github.com/smarty-bms/smarty/pkgs/app"
	"github.com/spf13/cobra"
)

func NewRunCommand(app *app.SmartyApp) *cobra.Command {
	command := &cobra.Command{
		Use:   "run",
		Short: "Start the runtime engine and the HTTP API, until interrupted",
		RunE: func(command *cobra.Command, args []string) error {
			if err := app.Initialize(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(command.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return app.RunAction(ctx)
		},
	}

	command.Flags().BoolVarP(&app.Debug, "debug", "v", false, "Increase verbosity to the debug level")

	return command
}
