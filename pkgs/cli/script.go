package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/smarty-bms/smarty/pkgs/app"
	"github.com/spf13/cobra"
)

func NewScriptCommand(app *app.SmartyApp) *cobra.Command {
	command := &cobra.Command{
		Use:   "script",
		Short: "Work with script programs without a running engine",
		RunE: func(command *cobra.Command, args []string) error {
			return errors.New("please select a command")
		},
	}

	command.AddCommand(NewScriptCheckCommand(app))

	return command
}

func NewScriptCheckCommand(app *app.SmartyApp) *cobra.Command {
	command := &cobra.Command{
		Use:   "check [file]",
		Short: "Validate a script program from a file, or from stdin when '-' is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			if err := app.Initialize(); err != nil {
				return err
			}

			source, err := readScriptSource(args)
			if err != nil {
				return err
			}
			return app.CheckScriptAction(source)
		},
	}

	command.Flags().BoolVarP(&app.Debug, "debug", "v", false, "Increase verbosity to the debug level")

	return command
}

func readScriptSource(args []string) (string, error) {
	// read from stdin when "-" was specified instead of a file name
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %v", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("cannot read script file: %v", err)
	}
	return string(data), nil
}
