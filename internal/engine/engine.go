// Package engine fans generation out over a frozen catalog: one task per
// model, service and controller, plus one for the bootstrap file.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mark3labs/eyriegen/internal/ir"
	"github.com/mark3labs/eyriegen/internal/store"
)

// Outcome says what emitting one file did.
type Outcome string

const (
	Created     Outcome = "created"
	Overwritten Outcome = "overwritten"
	// Merged: the file existed and was reconciled instead of replaced.
	Merged    Outcome = "merged"
	Unchanged Outcome = "unchanged"
)

// Kind names what a generated file holds.
type Kind string

const (
	KindModel      Kind = "model"
	KindService    Kind = "service"
	KindController Kind = "controller"
	KindBootstrap  Kind = "bootstrap"
)

// Result describes one generated file.
type Result struct {
	Kind    Kind
	Name    string
	Path    string
	Outcome Outcome
}

// Emitter turns IR nodes into files. Implementations are called
// concurrently, one call per node.
type Emitter interface {
	EmitModel(ctx context.Context, m ir.Model) (Result, error)
	EmitService(ctx context.Context, s ir.Service) (Result, error)
	EmitController(ctx context.Context, c ir.Controller) (Result, error)
	EmitBootstrap(ctx context.Context, controllers []ir.Controller) (Result, error)
}

// Report lists the results of one run sorted by path.
type Report struct {
	Results []Result
}

// Count returns how many results had outcome o.
func (r Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Engine drives an Emitter over a catalog.
type Engine struct {
	emitter Emitter
	logger  *zap.Logger
	limit   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger; the default discards.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithConcurrency bounds the number of emission tasks in flight. Zero or
// less means unbounded.
func WithConcurrency(n int) Option {
	return func(e *Engine) { e.limit = n }
}

// New returns an engine emitting through em.
func New(em Emitter, opts ...Option) *Engine {
	e := &Engine{emitter: em, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process freezes the catalog and emits every stored node. The first failure
// cancels the remaining tasks; files already written stay written. The
// returned report holds whatever completed, also on error.
func (e *Engine) Process(ctx context.Context, catalog *store.Catalog) (Report, error) {
	catalog.Freeze()

	g, gctx := errgroup.WithContext(ctx)
	if e.limit > 0 {
		g.SetLimit(e.limit)
	}

	var (
		mu      sync.Mutex
		results []Result
	)
	record := func(kind Kind, name string) func(Result, error) error {
		return func(res Result, err error) error {
			if err != nil {
				return fmt.Errorf("emit %s %q: %w", kind, name, err)
			}
			e.logger.Info("emitted",
				zap.String("kind", string(res.Kind)),
				zap.String("path", res.Path),
				zap.String("outcome", string(res.Outcome)))
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		}
	}

	for _, m := range catalog.Models.Values() {
		done := record(KindModel, m.Name)
		g.Go(func() error { return done(e.emitter.EmitModel(gctx, m)) })
	}
	for _, s := range catalog.Services.Values() {
		done := record(KindService, s.Name)
		g.Go(func() error { return done(e.emitter.EmitService(gctx, s)) })
	}
	controllers := catalog.Controllers.Values()
	for _, c := range controllers {
		done := record(KindController, c.Name)
		g.Go(func() error { return done(e.emitter.EmitController(gctx, c)) })
	}
	bootstrap := record(KindBootstrap, "main")
	g.Go(func() error { return bootstrap(e.emitter.EmitBootstrap(gctx, controllers)) })

	err := g.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return Report{Results: results}, err
}
