package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/linkscan/internal/classify"
	"github.com/nao1215/linkscan/internal/model"
	"github.com/nao1215/linkscan/internal/verify"
)

// SourceLoader reads raw link strings from a source.
// *source.Loader implements it.
type SourceLoader interface {
	Load(ctx context.Context, src model.Source) ([]string, error)
}

// LoadStep fills Scan.RawLinks from the scan's source.
type LoadStep struct {
	loader SourceLoader
	logger *slog.Logger
}

// NewLoadStep creates a LoadStep.
func NewLoadStep(loader SourceLoader, logger *slog.Logger) *LoadStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoadStep{loader: loader, logger: logger}
}

// Name returns the step name.
func (s *LoadStep) Name() string {
	return "load"
}

// Do executes the step. A load failure is returned unchanged so callers
// can recognize a *source.SourceError.
func (s *LoadStep) Do(ctx context.Context, scan *model.Scan) error {
	raws, err := s.loader.Load(ctx, scan.Source)
	if err != nil {
		return err
	}
	scan.RawLinks = raws
	scan.Loaded = true
	s.logger.Info("links discovered", "source", scan.Source.Location, "count", len(raws))
	return nil
}

// ClassifyStep fills Scan.Links from Scan.RawLinks.
type ClassifyStep struct{}

// NewClassifyStep creates a ClassifyStep.
func NewClassifyStep() *ClassifyStep {
	return &ClassifyStep{}
}

// Name returns the step name.
func (s *ClassifyStep) Name() string {
	return "classify"
}

// Do executes the step.
func (s *ClassifyStep) Do(_ context.Context, scan *model.Scan) error {
	scan.Links = classify.ClassifyAll(scan.RawLinks, scan.Source.BaseDomain)
	return nil
}

// VerifyStep checks every classified link and adds it to the aggregator.
type VerifyStep struct {
	verifier verify.Verifier
	workers  int
	onResult func(model.Link)
	logger   *slog.Logger
}

// VerifyStepOption configures a VerifyStep.
type VerifyStepOption func(*VerifyStep)

// WithWorkers sets the number of concurrent checks. One means strictly
// sequential processing in discovery order.
func WithWorkers(n int) VerifyStepOption {
	return func(s *VerifyStep) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithResultCallback registers fn to be called once per processed link,
// in completion order. Calls never overlap.
func WithResultCallback(fn func(model.Link)) VerifyStepOption {
	return func(s *VerifyStep) {
		s.onResult = fn
	}
}

// WithVerifyLogger sets the logger.
func WithVerifyLogger(logger *slog.Logger) VerifyStepOption {
	return func(s *VerifyStep) {
		s.logger = logger
	}
}

// NewVerifyStep creates a VerifyStep with DefaultWorkers workers.
func NewVerifyStep(verifier verify.Verifier, opts ...VerifyStepOption) *VerifyStep {
	s := &VerifyStep{
		verifier: verifier,
		workers:  DefaultWorkers,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *VerifyStep) Name() string {
	return "verify"
}

// Do executes the step.
func (s *VerifyStep) Do(ctx context.Context, scan *model.Scan) error {
	s.logger.Debug("verifying links", "count", len(scan.Links), "workers", s.workers)

	pool := newWorkerPool(s.workers, s.onResult)
	return pool.run(ctx, scan.Links, func(ctx context.Context, l model.Link) (model.Link, bool) {
		if !l.Scheme.Testable() {
			return l, true
		}
		checked := s.verifier.Verify(ctx, l)
		if ctx.Err() != nil {
			// Cut short by cancellation: not a verdict on the link.
			return l, false
		}
		return checked, true
	}, scan.Results.Add)
}

// DefaultPipelineOption configures DefaultPipeline.
type DefaultPipelineOption func(*defaultPipelineConfig)

type defaultPipelineConfig struct {
	workers  int
	onResult func(model.Link)
}

// WithPipelineWorkers sets the verification concurrency.
func WithPipelineWorkers(n int) DefaultPipelineOption {
	return func(c *defaultPipelineConfig) {
		c.workers = n
	}
}

// WithPipelineResultCallback registers a per-link callback.
func WithPipelineResultCallback(fn func(model.Link)) DefaultPipelineOption {
	return func(c *defaultPipelineConfig) {
		c.onResult = fn
	}
}

// DefaultPipeline builds the load, classify, verify pipeline.
func DefaultPipeline(loader SourceLoader, verifier verify.Verifier, pipelineOpts []Option, opts ...DefaultPipelineOption) *Pipeline {
	cfg := &defaultPipelineConfig{workers: DefaultWorkers}
	for _, opt := range opts {
		opt(cfg)
	}

	p := New(pipelineOpts...)
	p.AddSteps(
		NewLoadStep(loader, p.logger),
		NewClassifyStep(),
		NewVerifyStep(verifier,
			WithWorkers(cfg.workers),
			WithResultCallback(cfg.onResult),
			WithVerifyLogger(p.logger),
		),
	)
	return p
}
