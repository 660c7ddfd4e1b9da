package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"sftp-mcp/internal/file"
)

func newLsCmd(a *app) *cobra.Command {
	var conn connectionFlags
	var recursive bool

	cmd := &cobra.Command{
		Use:   "ls [PATH]",
		Short: "List a remote directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}

			ops, closeFn, err := conn.open(cmd.Context(), a)
			if err != nil {
				return err
			}
			defer closeFn()

			records, err := ops.ListContents(cmd.Context(), dir, recursive)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, r := range records {
				fmt.Fprintln(w, formatRecord(r))
			}
			return w.Flush()
		},
	}

	conn.register(cmd)
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "descend into subdirectories")
	return cmd
}

// formatRecord renders one listing line: type, visibility, size, time, path.
func formatRecord(r file.Record) string {
	modified := time.Unix(r.Timestamp, 0).Format("2006-01-02 15:04")
	if r.IsDir() {
		return fmt.Sprintf("d\t-\t-\t%s\t%s/", modified, r.Path)
	}
	return fmt.Sprintf("-\t%s\t%s\t%s\t%s", r.Visibility, units.HumanSize(float64(r.Size)), modified, r.Path)
}
