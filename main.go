package main

import (
	"github.com/bonfire-gw/bonfire/internal/app"
	"github.com/bonfire-gw/bonfire/internal/cli"
)

func main() {
	rootCmd := app.Bonfire()
	rootCmd.AddCommand(
		cli.Version(),
		cli.CheckConfig(),
		cli.DefaultConfigCommand(),
		cli.DefaultEnv(),
		cli.CheckFixture(),
	)
	_ = rootCmd.Execute()
}
