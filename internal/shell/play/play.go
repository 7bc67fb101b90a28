// Package play executes lifecycle operations over an ordered container
// sequence: containers whose predecessors have completed run
// concurrently within a wave, with a barrier between waves. A failed
// container marks everything waiting on it as skipped. This is part of
// the Imperative Shell.
package play

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/flotilla-orch/flotilla/internal/core/description"
	"github.com/flotilla-orch/flotilla/internal/core/environment"
	"github.com/flotilla-orch/flotilla/internal/shell/audit"
	"github.com/flotilla-orch/flotilla/internal/shell/docker"
)

// Op is one lifecycle operation.
type Op string

const (
	OpStatus     Op = "status"
	OpFullStatus Op = "fullstatus"
	OpPull       Op = "pull"
	OpStart      Op = "start"
	OpStop       Op = "stop"
	OpRestart    Op = "restart"
	OpKill       Op = "kill"
	OpClean      Op = "clean"
)

// Outcome classifies a per-container result.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// defaultStopTimeout is the grace period before the daemon kills a
// container that ignores SIGTERM.
const defaultStopTimeout = 10 * time.Second

// Options tune a play's execution.
type Options struct {
	// Concurrency bounds how many containers run at once within a
	// wave. Zero means unbounded.
	Concurrency int

	// IgnoreDependencies collapses the sequence into a single wave.
	IgnoreDependencies bool

	// RefreshImages pulls images before (re)creating containers.
	RefreshImages bool

	// Reuse starts an existing stopped container instead of recreating
	// it.
	Reuse bool

	// OnlyIfChanged skips the restart of containers whose image was
	// not refreshed to a new version. Implies RefreshImages.
	OnlyIfChanged bool

	// StepDelay is inserted between container launches within a wave.
	StepDelay time.Duration

	// StopStartDelay is the pause between the stop and start halves of
	// a restart.
	StopStartDelay time.Duration

	// StopTimeout is the stop grace period. Zero means the default.
	StopTimeout time.Duration
}

// Result is the outcome of one operation on one container. Err is set
// only when Outcome is failed.
type Result struct {
	Container string
	Service   string
	Ship      string
	Op        Op
	Outcome   string
	State     string // human-readable container state or action detail
	Err       error
}

// Backends resolves the runtime backend serving a ship. *docker.Pool is
// the production implementation.
type Backends interface {
	Get(ship *environment.Ship) (docker.Backend, error)
}

// Play drives one operation across an environment's containers.
type Play struct {
	env        *environment.Environment
	backends   Backends
	auditor    audit.Auditor
	registries map[string]description.Registry
	logger     *slog.Logger
	opts       Options
}

// New creates a play executor. The auditor may be nil when no sinks are
// configured.
func New(env *environment.Environment, backends Backends, auditor audit.Auditor, registries map[string]description.Registry, opts Options) *Play {
	if opts.StopTimeout == 0 {
		opts.StopTimeout = defaultStopTimeout
	}
	if opts.OnlyIfChanged {
		opts.RefreshImages = true
	}
	return &Play{
		env:        env,
		backends:   backends,
		auditor:    auditor,
		registries: registries,
		logger:     slog.Default().With("component", "play"),
		opts:       opts,
	}
}

// Run executes op over the ordered containers and returns one result
// per container, in completion order within waves. The ordering must
// already match the operation's direction: start order for forward
// operations, stop order for backward ones.
func (p *Play) Run(ctx context.Context, op Op, ordered []*environment.Container) []Result {
	runID := audit.NewRunID()
	p.record(ctx, runID, op, ordered, audit.StatusStarted, "")

	var results []Result
	switch op {
	case OpStatus, OpFullStatus, OpPull:
		// Dependency-free operations: one wave over everything.
		results = p.runWave(ctx, op, ordered)
	default:
		results = p.runOrdered(ctx, op, ordered)
	}

	status, message := summarize(results)
	p.record(ctx, runID, op, ordered, status, message)
	return results
}

// runOrdered walks the sequence in waves. Each wave holds every pending
// container whose predecessors succeeded; containers waiting on a
// failure are skipped without being touched.
func (p *Play) runOrdered(ctx context.Context, op Op, ordered []*environment.Container) []Result {
	if p.opts.IgnoreDependencies {
		return p.runWave(ctx, op, ordered)
	}

	forward := isForward(op)
	members := make(map[string]bool, len(ordered))
	for _, c := range ordered {
		members[c.Name] = true
	}
	done := make(map[string]string, len(ordered)) // name -> outcome
	results := make([]Result, 0, len(ordered))
	pending := ordered

	for len(pending) > 0 {
		var wave, wait []*environment.Container
		for _, c := range pending {
			switch p.predecessorState(c, members, done, forward) {
			case OutcomeOK:
				wave = append(wave, c)
			case OutcomeFailed:
				done[c.Name] = OutcomeSkipped
				results = append(results, Result{
					Container: c.Name,
					Service:   c.Service,
					Ship:      c.Ship,
					Op:        op,
					Outcome:   OutcomeSkipped,
					State:     "dependency failed",
				})
			default:
				wait = append(wait, c)
			}
		}

		// The ordering is acyclic, so an empty wave means everything
		// left was just skipped.
		if len(wave) == 0 && len(wait) == len(pending) {
			break
		}

		for _, r := range p.runWave(ctx, op, wave) {
			done[r.Container] = r.Outcome
			results = append(results, r)
		}
		pending = wait
	}

	return results
}

// predecessorState reduces a container's predecessors to a single
// state: ok when all succeeded, failed when any failed or was skipped,
// pending otherwise. Predecessors outside the play's container set are
// not being acted on and do not gate anything.
func (p *Play) predecessorState(c *environment.Container, members map[string]bool, done map[string]string, forward bool) string {
	state := OutcomeOK
	for _, pred := range p.env.Closure([]*environment.Container{c}, forward) {
		if pred.Name == c.Name || !members[pred.Name] {
			continue
		}
		switch done[pred.Name] {
		case OutcomeOK:
		case OutcomeFailed, OutcomeSkipped:
			return OutcomeFailed
		default:
			state = ""
		}
	}
	return state
}

// runWave executes one operation over a set of containers with the
// configured concurrency bound.
func (p *Play) runWave(ctx context.Context, op Op, wave []*environment.Container) []Result {
	if len(wave) == 0 {
		return nil
	}

	results := make([]Result, len(wave))

	var sem chan struct{}
	if p.opts.Concurrency > 0 {
		sem = make(chan struct{}, p.opts.Concurrency)
	}

	var wg sync.WaitGroup
	for i, c := range wave {
		if i > 0 && p.opts.StepDelay > 0 {
			time.Sleep(p.opts.StepDelay)
		}

		wg.Add(1)
		go func(i int, c *environment.Container) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			results[i] = p.apply(ctx, op, c)
		}(i, c)
	}
	wg.Wait()

	return results
}

// apply dispatches one operation on one container.
func (p *Play) apply(ctx context.Context, op Op, c *environment.Container) Result {
	result := Result{
		Container: c.Name,
		Service:   c.Service,
		Ship:      c.Ship,
		Op:        op,
		Outcome:   OutcomeOK,
	}

	var state string
	var err error
	switch op {
	case OpStatus:
		state, err = p.statusContainer(ctx, c, false)
	case OpFullStatus:
		state, err = p.statusContainer(ctx, c, true)
	case OpPull:
		state, err = p.pullContainer(ctx, c)
	case OpStart:
		state, err = p.startContainer(ctx, c)
	case OpStop:
		state, err = p.stopContainer(ctx, c)
	case OpRestart:
		state, err = p.restartContainer(ctx, c)
	case OpKill:
		state, err = p.killContainer(ctx, c)
	case OpClean:
		state, err = p.cleanContainer(ctx, c)
	default:
		err = fmt.Errorf("unknown operation %q", op)
	}

	result.State = state
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		p.logger.Warn("container operation failed",
			"op", string(op), "container", c.Name, "ship", c.Ship, "error", err)
	}
	return result
}

// record sends one audit event, ignoring sink failures.
func (p *Play) record(ctx context.Context, runID string, op Op, containers []*environment.Container, status, message string) {
	if p.auditor == nil {
		return
	}
	targets := make([]string, 0, len(containers))
	for _, c := range containers {
		targets = append(targets, c.Name)
	}
	err := p.auditor.Record(ctx, audit.Event{
		RunID:   runID,
		Time:    time.Now(),
		Who:     audit.Who(),
		Action:  string(op),
		Targets: targets,
		Status:  status,
		Message: message,
	})
	if err != nil {
		p.logger.Warn("audit sink failed", "error", err)
	}
}

// isForward reports whether the operation walks the startup ordering.
// Restart takes containers down before bringing them back, so it walks
// the shutdown ordering like stop and kill; clean only touches
// already-stopped containers and walks the startup ordering.
func isForward(op Op) bool {
	switch op {
	case OpStop, OpRestart, OpKill:
		return false
	default:
		return true
	}
}

// summarize folds per-container results into one audit status.
func summarize(results []Result) (string, string) {
	var failed []string
	for _, r := range results {
		if r.Outcome == OutcomeFailed {
			failed = append(failed, r.Container)
		}
	}
	if len(failed) == 0 {
		return audit.StatusSuccess, ""
	}
	return audit.StatusError, "failed: " + strings.Join(failed, ", ")
}
