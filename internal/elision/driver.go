// Package elision decides, per procedure, whether its instrumentation points
// can ever contribute to a match, and disables them when they cannot.
package elision

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mpyw/tmelide/internal/automaton"
	"github.com/mpyw/tmelide/internal/cfg"
	"github.com/mpyw/tmelide/internal/configuration"
	"github.com/mpyw/tmelide/internal/constraint"
	"github.com/mpyw/tmelide/internal/reach"
	"github.com/mpyw/tmelide/internal/shadow"
)

const tracerName = "github.com/mpyw/tmelide/internal/elision"

// Procedure is one analysis unit.
type Procedure struct {
	Name   string
	Graph  *cfg.Graph
	Oracle constraint.AliasOracle
}

// Outcome reports what Apply decided for a procedure.
type Outcome struct {
	Procedure  string
	Status     reach.Status
	Reason     string
	Eliminated bool
	// Disabled lists the shadows this call turned off, in graph order.
	Disabled []string
	// Iterations counts node visits of the analysis.
	Iterations int
	// Result holds the flows of the analysis, nil when nothing was analyzed.
	Result *reach.Result
}

// Driver applies the elision to procedures against one automaton.
type Driver struct {
	auto          *automaton.Automaton
	registry      *shadow.Registry
	cache         *configuration.Cache
	logger        *slog.Logger
	maxIterations int
	tracer        trace.Tracer
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithCache shares a configuration cache across drivers.
func WithCache(c *configuration.Cache) Option {
	return func(d *Driver) { d.cache = c }
}

// WithMaxIterations bounds node visits per procedure.
func WithMaxIterations(n int) Option {
	return func(d *Driver) { d.maxIterations = n }
}

// WithTracerProvider sets the provider of the per-procedure spans. The
// default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Driver) { d.tracer = tp.Tracer(tracerName) }
}

// NewDriver creates a driver that disables shadows through registry.
func NewDriver(a *automaton.Automaton, registry *shadow.Registry, opts ...Option) *Driver {
	d := &Driver{
		auto:     a,
		registry: registry,
		logger:   slog.New(slog.DiscardHandler),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.cache == nil {
		d.cache = configuration.NewCache()
	}
	return d
}

// Cache returns the configuration cache of the driver.
func (d *Driver) Cache() *configuration.Cache { return d.cache }

// Apply analyzes p, together with its callers and the code running after
// it returns, and disables its active shadows on a Complete outcome.
// HitFinal and Aborted outcomes leave every shadow enabled.
func (d *Driver) Apply(ctx context.Context, p Procedure) (Outcome, error) {
	ctx, span := d.tracer.Start(ctx, "elision.Apply",
		trace.WithAttributes(attribute.String("procedure", p.Name)),
	)
	defer span.End()

	out := Outcome{Procedure: p.Name}

	aug, active, err := Augment(p.Graph, d.auto, d.registry.IsEnabled)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, fmt.Errorf("augment %s: %w", p.Name, err)
	}
	span.SetAttributes(attribute.Int("shadows", len(active)))

	if len(active) == 0 {
		out.Status = reach.Complete
		out.Reason = "no active shadows"
		span.SetStatus(codes.Ok, "")
		return out, nil
	}

	res, err := reach.Run(ctx, aug, d.auto, d.cache, p.Oracle, reach.Options{
		MaxIterations: d.maxIterations,
		Logger:        d.logger,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, fmt.Errorf("analyze %s: %w", p.Name, err)
	}

	out.Status = res.Status()
	out.Reason = res.Reason()
	out.Iterations = res.Iterations()
	out.Result = res

	if out.Status == reach.Complete {
		out.Eliminated = true
		for _, s := range active {
			if d.registry.Disable(s.ID) {
				out.Disabled = append(out.Disabled, s.ID)
			}
		}
	}

	span.SetAttributes(
		attribute.String("status", out.Status.String()),
		attribute.Int("disabled", len(out.Disabled)),
	)
	span.SetStatus(codes.Ok, "")

	d.logger.Debug("elision: procedure analyzed",
		slog.String("procedure", p.Name),
		slog.String("status", out.Status.String()),
		slog.String("reason", out.Reason),
		slog.Int("iterations", out.Iterations),
		slog.Int("shadows", len(active)),
	)
	return out, nil
}

// ApplyAll runs Apply on every procedure with at most parallelism running
// at once; parallelism <= 0 means no limit. Outcomes are returned in input
// order. The first error cancels the remaining procedures.
func (d *Driver) ApplyAll(ctx context.Context, procs []Procedure, parallelism int) ([]Outcome, error) {
	g, gctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}

	outcomes := make([]Outcome, len(procs))
	for i, p := range procs {
		g.Go(func() error {
			o, err := d.Apply(gctx, p)
			if err != nil {
				return err
			}
			outcomes[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
