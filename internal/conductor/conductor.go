// Package conductor ties the layers together: it resolves ships through
// the configured provider, builds the environment graph, selects and
// orders containers, and dispatches plays. One Conductor serves one
// loaded description for the lifetime of an invocation.
package conductor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/flotilla-orch/flotilla/internal/core/agent"
	"github.com/flotilla-orch/flotilla/internal/core/description"
	"github.com/flotilla-orch/flotilla/internal/core/environment"
	"github.com/flotilla-orch/flotilla/internal/shell/audit"
	"github.com/flotilla-orch/flotilla/internal/shell/docker"
	"github.com/flotilla-orch/flotilla/internal/shell/play"
	"github.com/flotilla-orch/flotilla/internal/shell/ship"
)

// ErrNotSingleContainer rejects operations that need exactly one
// container.
var ErrNotSingleContainer = errors.New("operation needs exactly one container")

// ParameterError reports a command invocation problem.
type ParameterError struct {
	Command string
	Message string
	Err     error
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Message)
}

func (e *ParameterError) Unwrap() error { return e.Err }

// Selection carries the per-command container selection knobs.
type Selection struct {
	Names            []string
	ExpandServices   bool
	ContainerFilter  string
	ShipFilter       string
	WithDependencies bool
}

// Conductor executes commands against one environment.
type Conductor struct {
	desc    *description.Description
	env     *environment.Environment
	pool    *docker.Pool
	auditor audit.Auditor
	logger  *slog.Logger
}

// New resolves ships, builds the environment, and wires the audit
// sinks. Callers own Close.
func New(ctx context.Context, desc *description.Description) (*Conductor, error) {
	logger := slog.Default().With("component", "conductor")

	provider, err := ship.NewProvider(desc, logger)
	if err != nil {
		return nil, err
	}
	ships, err := provider.Ships(ctx)
	if err != nil {
		return nil, err
	}

	env, err := environment.Build(desc, ships)
	if err != nil {
		return nil, err
	}

	auditors, err := audit.NewAuditors(desc.Audit)
	if err != nil {
		return nil, err
	}

	return &Conductor{
		desc:    desc,
		env:     env,
		pool:    docker.NewPool(docker.BackendOptions{}),
		auditor: audit.NewMulti(auditors),
		logger:  logger,
	}, nil
}

// Environment exposes the built graph for rendering commands.
func (c *Conductor) Environment() *environment.Environment { return c.env }

// Close releases all ship connections and audit sinks.
func (c *Conductor) Close() error {
	err := c.pool.Close()
	if auditErr := c.auditor.Close(); err == nil {
		err = auditErr
	}
	return err
}

// =============================================================================
// Lifecycle Commands
// =============================================================================

// Status reports every selected container's state.
func (c *Conductor) Status(ctx context.Context, sel Selection, full bool, opts play.Options) ([]play.Result, error) {
	op := play.OpStatus
	if full {
		op = play.OpFullStatus
	}
	return c.runPlay(ctx, op, sel, opts)
}

// Pull refreshes every selected container's image on its ship.
func (c *Conductor) Pull(ctx context.Context, sel Selection, opts play.Options) ([]play.Result, error) {
	return c.runPlay(ctx, play.OpPull, sel, opts)
}

// Start brings the selected containers up in dependency order.
func (c *Conductor) Start(ctx context.Context, sel Selection, opts play.Options) ([]play.Result, error) {
	return c.runPlay(ctx, play.OpStart, sel, opts)
}

// Stop takes the selected containers down in reverse dependency order.
func (c *Conductor) Stop(ctx context.Context, sel Selection, opts play.Options) ([]play.Result, error) {
	return c.runPlay(ctx, play.OpStop, sel, opts)
}

// Restart stops then starts the selected containers in reverse
// dependency order.
func (c *Conductor) Restart(ctx context.Context, sel Selection, opts play.Options) ([]play.Result, error) {
	return c.runPlay(ctx, play.OpRestart, sel, opts)
}

// Kill forcibly terminates the selected containers in reverse
// dependency order.
func (c *Conductor) Kill(ctx context.Context, sel Selection, opts play.Options) ([]play.Result, error) {
	return c.runPlay(ctx, play.OpKill, sel, opts)
}

// Clean removes the selected stopped containers.
func (c *Conductor) Clean(ctx context.Context, sel Selection, opts play.Options) ([]play.Result, error) {
	return c.runPlay(ctx, play.OpClean, sel, opts)
}

func (c *Conductor) runPlay(ctx context.Context, op play.Op, sel Selection, opts play.Options) ([]play.Result, error) {
	ordered, err := c.orderedSelection(sel, op, opts.IgnoreDependencies)
	if err != nil {
		return nil, err
	}

	executor := play.New(c.env, c.pool, c.auditor, c.desc.Registries, opts)
	return executor.Run(ctx, op, ordered), nil
}

// orderedSelection resolves the selection and sequences it for the
// operation's direction. Without dependency expansion the ordering is
// computed over the closure and then trimmed back to the selection, so
// relative order is honored without acting on extra containers.
func (c *Conductor) orderedSelection(sel Selection, op play.Op, ignoreDeps bool) ([]*environment.Container, error) {
	selected, err := c.env.Select(sel.Names, sel.ExpandServices, sel.ContainerFilter, sel.ShipFilter)
	if err != nil {
		return nil, err
	}
	if ignoreDeps {
		return selected, nil
	}

	forward := op != play.OpStop && op != play.OpRestart && op != play.OpKill
	ordered, err := c.env.Order(selected, forward)
	if err != nil {
		return nil, err
	}
	if sel.WithDependencies {
		return ordered, nil
	}

	inSelection := make(map[string]bool, len(selected))
	for _, cnt := range selected {
		inSelection[cnt.Name] = true
	}
	trimmed := ordered[:0:0]
	for _, cnt := range ordered {
		if inSelection[cnt.Name] {
			trimmed = append(trimmed, cnt)
		}
	}
	return trimmed, nil
}

// =============================================================================
// Logs
// =============================================================================

// Logs streams one container's log to w. The selection must resolve to
// exactly one container.
func (c *Conductor) Logs(ctx context.Context, sel Selection, follow bool, tail int, w io.Writer) error {
	selected, err := c.env.Select(sel.Names, sel.ExpandServices, sel.ContainerFilter, sel.ShipFilter)
	if err != nil {
		return err
	}
	if len(selected) != 1 {
		return &ParameterError{
			Command: "logs",
			Message: fmt.Sprintf("selection matches %d containers, need exactly 1", len(selected)),
			Err:     ErrNotSingleContainer,
		}
	}
	target := selected[0]

	backend, err := c.pool.Get(c.env.ContainerShip(target))
	if err != nil {
		return err
	}

	reader, err := backend.ContainerLogs(ctx, target.Name, agent.LogsRequest{Follow: follow, Tail: tail})
	if err != nil {
		return err
	}
	defer reader.Close()

	_, err = io.Copy(w, reader)
	return err
}

// =============================================================================
// Completion
// =============================================================================

// CompletionWords returns every service and container name, sorted, for
// shell completion.
func (c *Conductor) CompletionWords() []string {
	words := append(c.env.ServiceNames(), c.env.ContainerNames()...)
	sort.Strings(words)
	return words
}
