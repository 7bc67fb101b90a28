package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newCompleteCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:    "complete",
		Short:  "Print service and container names for shell completion",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cond, err := newConductor(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer cond.Close()

			for _, word := range cond.CompletionWords() {
				fmt.Fprintln(cmd.OutOrStdout(), word)
			}
			return nil
		},
	}
}
