package app

import (
	"github.com/bonfire-gw/bonfire/internal/config"

	"github.com/spf13/cobra"
)

func Bonfire() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:   "bonfire",
		Short: "Bonfire",
		Long:  "Bonfire is a real-time chat gateway serving client sessions over WebSocket",
		Run: func(cmd *cobra.Command, args []string) {
			Run(cmd, configFile)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "config.json", "path to config file")
	config.DefineFlags(cmd)
	return cmd
}
