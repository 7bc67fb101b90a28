package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/ryanuber/columnize"

	"github.com/flotilla-orch/flotilla/internal/shell/play"
)

var (
	okColor      = color.New(color.FgGreen)
	failedColor  = color.New(color.FgRed)
	skippedColor = color.New(color.FgYellow)
)

// renderResults prints one aligned row per container result.
func renderResults(w io.Writer, results []play.Result) {
	lines := []string{"CONTAINER | SERVICE | SHIP | RESULT | DETAIL"}
	for _, r := range results {
		detail := r.State
		if r.Err != nil {
			detail = r.Err.Error()
		}
		lines = append(lines, strings.Join([]string{
			r.Container,
			r.Service,
			r.Ship,
			colorOutcome(r.Outcome),
			detail,
		}, " | "))
	}
	fmt.Fprintln(w, columnize.SimpleFormat(lines))
}

func colorOutcome(outcome string) string {
	switch outcome {
	case play.OutcomeOK:
		return okColor.Sprint(outcome)
	case play.OutcomeFailed:
		return failedColor.Sprint(outcome)
	case play.OutcomeSkipped:
		return skippedColor.Sprint(outcome)
	default:
		return outcome
	}
}

// resultsError folds failures into one error so the process exits
// non-zero when any container failed.
func resultsError(results []play.Result) error {
	var failed []string
	for _, r := range results {
		if r.Outcome == play.OutcomeFailed {
			failed = append(failed, r.Container)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d container(s) failed: %s", len(failed), strings.Join(failed, ", "))
}
