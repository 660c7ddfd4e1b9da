package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProfilesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the configured connection profiles",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			names := a.profiles.Names()
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no profiles configured")
				return
			}
			for _, name := range names {
				p := a.profiles[name]
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s@%s:%d\t%s\n", name, p.Username, p.Host, p.WithDefaults().Port, p.Root)
			}
		},
	}
}
