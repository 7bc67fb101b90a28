package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newDepTreeCommand(v *viper.Viper) *cobra.Command {
	var reverse bool

	cmd := &cobra.Command{
		Use:   "deptree [name...]",
		Short: "Render the service dependency tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			cond, err := newConductor(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer cond.Close()

			tree, err := cond.DepTree(args, reverse)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), tree)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&reverse, "reverse", "r", false, "show dependents instead of dependencies")
	return cmd
}
