package main

import (
	"os"

	"github.com/smarty-bms/smarty/pkgs/app"
	"github.com/smarty-bms/smarty/pkgs/cli"
)

func main() {
	app := app.SmartyApp{}
	cmd := cli.NewRootCommand(&app)
	args := os.Args
	if args != nil {
		args = args[1:]
		cmd.SetArgs(args)
	}
	err := cmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
