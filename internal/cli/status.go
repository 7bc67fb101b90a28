package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStatusCommand(v *viper.Viper) *cobra.Command {
	var cf commonFlags
	var full bool

	cmd := &cobra.Command{
		Use:   "status [name...]",
		Short: "Report the status of containers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cond, err := newConductor(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer cond.Close()

			results, err := cond.Status(cmd.Context(), cf.selection(args), full, cf.playOptions())
			if err != nil {
				return err
			}
			renderResults(cmd.OutOrStdout(), results)
			return resultsError(results)
		},
	}

	addCommonFlags(cmd, &cf)
	cmd.Flags().BoolVar(&full, "full", false, "also verify lifecycle checks pass")
	return cmd
}
