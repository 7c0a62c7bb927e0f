package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/bonfire-gw/bonfire/internal/store"

	"github.com/spf13/cobra"
)

func CheckFixture() *cobra.Command {
	var fixtureFile string
	var checkFixtureCmd = &cobra.Command{
		Use:   "checkfixture",
		Short: "Check memory store fixture file",
		Long:  `Load memory store fixture file and print number of loaded entities`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := checkFixture(cmd.OutOrStdout(), fixtureFile); err != nil {
				fmt.Printf("error: %v\n", err)
				os.Exit(1)
			}
		},
	}
	checkFixtureCmd.Flags().StringVarP(&fixtureFile, "fixture", "f", "fixture.yaml", "path to fixture file to check")
	return checkFixtureCmd
}

func checkFixture(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	fixture, err := store.ParseFixture(data)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "users: %d, sessions: %d, servers: %d, channels: %d, members: %d, emojis: %d\n",
		len(fixture.Users), len(fixture.Sessions), len(fixture.Servers), len(fixture.Channels), len(fixture.Members), len(fixture.Emojis))
	return nil
}
