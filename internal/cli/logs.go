package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newLogsCommand(v *viper.Viper) *cobra.Command {
	var cf commonFlags
	var follow bool
	var tail int

	cmd := &cobra.Command{
		Use:   "logs <name>",
		Short: "Dump or follow one container's log",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cond, err := newConductor(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer cond.Close()

			return cond.Logs(cmd.Context(), cf.selection(args), follow, tail, cmd.OutOrStdout())
		},
	}

	addCommonFlags(cmd, &cf)
	cmd.Flags().BoolVarP(&follow, "follow", "F", false, "keep streaming new log output")
	cmd.Flags().IntVarP(&tail, "tail", "n", 0, "only show the last N lines (0 = all)")
	return cmd
}
