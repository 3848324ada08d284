package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/linkscan/internal/model"
)

// Step is one stage of a scan. Steps run in order and share the scan state.
type Step interface {
	// Do executes the step. A returned error stops the pipeline.
	// Per-link failures are recorded on the links and are not errors.
	Do(ctx context.Context, scan *model.Scan) error

	// Name returns the step's name for logging.
	Name() string
}

// Pipeline runs steps in sequence.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used by the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends several steps.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs every step in order and stops at the first error.
//
// When ctx is cancelled, before or during a step, the scan's aggregator is
// marked interrupted and ctx.Err() is returned. Links already added to the
// aggregator stay there, so the caller can still finalize and persist a
// partial report.
func (p *Pipeline) Execute(ctx context.Context, scan *model.Scan) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled", "step", step.Name(), "reason", err)
			scan.Results.MarkInterrupted()
			return err
		}

		p.logger.Debug("executing step", "step", step.Name(), "source", scan.Source.Location)

		if err := step.Do(ctx, scan); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				p.logger.Warn("pipeline cancelled", "step", step.Name(), "reason", ctxErr)
				scan.Results.MarkInterrupted()
				return ctxErr
			}
			p.logger.Error("step failed", "step", step.Name(), "source", scan.Source.Location, "error", err)
			return err
		}

		p.logger.Debug("step completed", "step", step.Name(), "source", scan.Source.Location)
	}
	return nil
}

// StepCount returns the number of steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
