package main

import (
	"os"

	"taskdesk/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		format, _ := cmd.PersistentFlags().GetString("format")
		cli.WriteError(os.Stderr, format, err)
		os.Exit(cli.GetExitCode(err))
	}
}
