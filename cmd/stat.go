package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatCmd(a *app) *cobra.Command {
	var conn connectionFlags
	var mimetype bool

	cmd := &cobra.Command{
		Use:   "stat PATH",
		Short: "Print the metadata record of a remote path as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, closeFn, err := conn.open(cmd.Context(), a)
			if err != nil {
				return err
			}
			defer closeFn()

			record, err := ops.GetMetadata(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(record, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))

			if mimetype && !record.IsDir() {
				mt, err := ops.GetMimetype(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "mimetype: %s\n", mt)
			}
			return nil
		},
	}

	conn.register(cmd)
	cmd.Flags().BoolVar(&mimetype, "mimetype", false, "also detect the media type of a file")
	return cmd
}
