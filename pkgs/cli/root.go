package cli

import (
	"github.com/smarty-bms/smarty/pkgs/app"
	"github.com/spf13/cobra"
)

func NewRootCommand(app *app.SmartyApp) *cobra.Command {
	command := &cobra.Command{
		Use:   "smarty",
		Short: "Building automation runtime: point engine, FBD and script programs, HTTP control plane",
		RunE: func(command *cobra.Command, args []string) error {
			return command.Help()
		},
	}

	command.AddCommand(NewRunCommand(app))
	command.AddCommand(NewScriptCommand(app))

	return command
}
