package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flotilla-orch/flotilla/internal/conductor"
	"github.com/flotilla-orch/flotilla/internal/shell/play"
)

type playFunc func(*conductor.Conductor, context.Context, conductor.Selection, play.Options) ([]play.Result, error)

// newPlayCommand builds a lifecycle command that selects, orders and
// runs, then renders per-container results.
func newPlayCommand(v *viper.Viper, use, short string, cf *commonFlags, opts func() play.Options, run playFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cond, err := newConductor(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer cond.Close()

			results, err := run(cond, cmd.Context(), cf.selection(args), opts())
			if err != nil {
				return err
			}
			renderResults(cmd.OutOrStdout(), results)
			return resultsError(results)
		},
	}
	addCommonFlags(cmd, cf)
	return cmd
}

func newPullCommand(v *viper.Viper) *cobra.Command {
	var cf commonFlags
	return newPlayCommand(v, "pull [name...]", "Pull service images on their ships",
		&cf, cf.playOptions, (*conductor.Conductor).Pull)
}

func newStartCommand(v *viper.Viper) *cobra.Command {
	var cf commonFlags
	var refreshImages, reuse bool

	cmd := newPlayCommand(v, "start [name...]", "Start containers in dependency order",
		&cf, func() play.Options {
			opts := cf.playOptions()
			opts.RefreshImages = refreshImages
			opts.Reuse = reuse
			return opts
		}, (*conductor.Conductor).Start)

	cmd.Flags().BoolVar(&refreshImages, "refresh-images", false, "pull images before starting")
	cmd.Flags().BoolVar(&reuse, "reuse", false, "start existing containers instead of recreating them")
	return cmd
}

func newStopCommand(v *viper.Viper) *cobra.Command {
	var cf commonFlags
	return newPlayCommand(v, "stop [name...]", "Stop containers in reverse dependency order",
		&cf, cf.playOptions, (*conductor.Conductor).Stop)
}

func newRestartCommand(v *viper.Viper) *cobra.Command {
	var cf commonFlags
	var rf restartFlags

	cmd := newPlayCommand(v, "restart [name...]", "Stop then start containers in dependency order",
		&cf, func() play.Options {
			opts := cf.playOptions()
			opts.StepDelay = rf.stepDelay
			opts.StopStartDelay = rf.stopStartDelay
			opts.Reuse = rf.reuse
			opts.OnlyIfChanged = rf.onlyIfChanged
			return opts
		}, (*conductor.Conductor).Restart)

	addRestartFlags(cmd, &rf)
	return cmd
}

func newKillCommand(v *viper.Viper) *cobra.Command {
	var cf commonFlags
	return newPlayCommand(v, "kill [name...]", "Forcibly terminate containers",
		&cf, cf.playOptions, (*conductor.Conductor).Kill)
}

func newCleanCommand(v *viper.Viper) *cobra.Command {
	var cf commonFlags
	return newPlayCommand(v, "clean [name...]", "Remove stopped containers",
		&cf, cf.playOptions, (*conductor.Conductor).Clean)
}
