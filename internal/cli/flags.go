package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/flotilla-orch/flotilla/internal/conductor"
	"github.com/flotilla-orch/flotilla/internal/shell/play"
)

// commonFlags are the selection and concurrency knobs every lifecycle
// command shares.
type commonFlags struct {
	withDependencies   bool
	ignoreDependencies bool
	expandServices     bool
	concurrency        int
	containerFilter    string
	shipFilter         string
}

func addCommonFlags(cmd *cobra.Command, cf *commonFlags) {
	cmd.Flags().BoolVarP(&cf.withDependencies, "with-dependencies", "d", false, "include dependencies in the operation")
	cmd.Flags().BoolVarP(&cf.ignoreDependencies, "ignore-dependencies", "i", false, "ignore dependency ordering")
	cmd.Flags().BoolVarP(&cf.expandServices, "expand-services", "e", false, "allow service names to expand to their containers")
	cmd.Flags().IntVarP(&cf.concurrency, "concurrency", "c", 0, "max containers operated on at once (0 = unbounded)")
	cmd.Flags().StringVar(&cf.containerFilter, "container-filter", "", "glob filter on container names")
	cmd.Flags().StringVar(&cf.shipFilter, "ship-filter", "", "glob filter on ship names")
}

func (cf *commonFlags) selection(names []string) conductor.Selection {
	return conductor.Selection{
		Names:            names,
		ExpandServices:   cf.expandServices,
		ContainerFilter:  cf.containerFilter,
		ShipFilter:       cf.shipFilter,
		WithDependencies: cf.withDependencies,
	}
}

func (cf *commonFlags) playOptions() play.Options {
	return play.Options{
		Concurrency:        cf.concurrency,
		IgnoreDependencies: cf.ignoreDependencies,
	}
}

// restartFlags are the extra knobs of restart.
type restartFlags struct {
	stepDelay      time.Duration
	stopStartDelay time.Duration
	reuse          bool
	onlyIfChanged  bool
}

func addRestartFlags(cmd *cobra.Command, rf *restartFlags) {
	cmd.Flags().DurationVar(&rf.stepDelay, "step-delay", 0, "delay between container launches within a wave")
	cmd.Flags().DurationVar(&rf.stopStartDelay, "stop-start-delay", 0, "pause between the stop and start of each container")
	cmd.Flags().BoolVar(&rf.reuse, "reuse", false, "restart existing containers instead of recreating them")
	cmd.Flags().BoolVar(&rf.onlyIfChanged, "only-if-changed", false, "skip containers whose image did not change (implies pulling)")
}
