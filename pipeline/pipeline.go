// Package pipeline compiles many functions concurrently. Each job is tried
// as optimized code first when requested and falls back to unoptimized code
// when the optimized attempt bails out.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/VictoriaMetrics/metrics"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/bcgen/alloc"
	"github.com/chazu/bcgen/bytecode"
	"github.com/chazu/bcgen/codecache"
	"github.com/chazu/bcgen/codegen"
	"github.com/chazu/bcgen/codeimage"
	"github.com/chazu/bcgen/ir"
	"github.com/chazu/bcgen/irtext"
	"github.com/chazu/bcgen/source"
)

var log = commonlog.GetLogger("bcgen.pipeline")

var (
	fallbacksTotal = metrics.NewCounter(`bcgen_pipeline_fallbacks_total`)
	jobsFailed     = metrics.NewCounter(`bcgen_pipeline_jobs_failed_total`)
)

// Job is one function to compile. Build is called once per attempt and must
// return a fresh graph each time, since location assignment rewrites it.
type Job struct {
	Name  string
	Build func() (*ir.FlowGraph, error)
}

// JobsFromText returns one job per function of IR text.
func JobsFromText(text string, script *source.Script) ([]Job, error) {
	units, err := irtext.Split(text, script)
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, len(units))
	for i, u := range units {
		jobs[i] = Job{Name: u.Name, Build: u.Build}
	}
	return jobs, nil
}

// Result is the outcome of one job.
type Result struct {
	Name  string
	Code  *codegen.Code
	Image *codeimage.Image
	Hash  [32]byte

	// Bailout is the optimized attempt's error when the job fell back to
	// unoptimized code.
	Bailout error
	Err     error
}

// FellBack reports whether the job was compiled unoptimized after an
// optimized attempt bailed out.
func (r *Result) FellBack() bool { return r.Bailout != nil && r.Err == nil }

// Options configures a pipeline.
type Options struct {
	Codegen             codegen.Options
	Workers             int
	FallbackUnoptimized bool

	// Store receives every compiled image. A new store is created when nil.
	Store *codeimage.Store
	// Cache, when set, persists every compiled image.
	Cache *codecache.Cache
}

// Pipeline compiles jobs with a bounded number of workers. Selectors are
// interned in one symbol table shared by all compilations.
type Pipeline struct {
	opts    Options
	store   *codeimage.Store
	symbols *bytecode.SymbolTable
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	p := &Pipeline{opts: opts, store: opts.Store, symbols: opts.Codegen.Symbols}
	if p.store == nil {
		p.store = codeimage.NewStore()
	}
	if p.symbols == nil {
		p.symbols = bytecode.NewSymbolTable()
	}
	if p.opts.Workers <= 0 {
		p.opts.Workers = 1
	}
	return p
}

// Store returns the store compiled images are put in.
func (p *Pipeline) Store() *codeimage.Store { return p.store }

// Symbols returns the shared selector table.
func (p *Pipeline) Symbols() *bytecode.SymbolTable { return p.symbols }

// Run compiles jobs and returns their results in job order. A job that fails
// to compile reports its error in its Result; Run itself fails only when ctx
// is cancelled or an image cannot be stored.
func (p *Pipeline) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	results := make([]Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for i, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r := &results[i]
			r.Name = job.Name
			r.Code, r.Bailout, r.Err = p.compile(gctx, job)
			if r.Err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				jobsFailed.Inc()
				log.Errorf("%s: %s", job.Name, r.Err)
				return nil
			}
			return p.publish(gctx, r)
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

func (p *Pipeline) compile(ctx context.Context, job Job) (code *codegen.Code, bailout error, err error) {
	opts := p.opts.Codegen
	opts.Symbols = p.symbols

	code, err = p.attempt(ctx, job, opts)
	if err == nil || !opts.Optimizing || !p.opts.FallbackUnoptimized || !codegen.IsBailout(err) {
		return code, nil, err
	}

	fallbacksTotal.Inc()
	log.Noticef("%s: falling back to unoptimized code: %s", job.Name, err)
	opts.Optimizing = false
	code, ferr := p.attempt(ctx, job, opts)
	return code, err, ferr
}

// attempt runs one compilation, recovering from panics.
func (p *Pipeline) attempt(ctx context.Context, job Job, opts codegen.Options) (code *codegen.Code, err error) {
	defer func() {
		if r := recover(); r != nil {
			code = nil
			if e, ok := r.(error); ok {
				err = fmt.Errorf("compiling %s: %w", job.Name, e)
			} else {
				err = fmt.Errorf("compiling %s: %v", job.Name, r)
			}
		}
	}()

	g, err := job.Build()
	if err != nil {
		return nil, err
	}
	if opts.Optimizing {
		if _, err := alloc.Allocate(g, codegen.LocationsFor); err != nil {
			return nil, fmt.Errorf("allocating %s: %w", job.Name, err)
		}
	}
	return codegen.Compile(ctx, g, opts)
}

func (p *Pipeline) publish(ctx context.Context, r *Result) error {
	r.Image = codeimage.FromCode(r.Code)
	h, err := p.store.Put(r.Image)
	if err != nil {
		return fmt.Errorf("storing %s: %w", r.Name, err)
	}
	r.Hash = h
	if p.opts.Cache != nil {
		if _, err := p.opts.Cache.Put(ctx, r.Image); err != nil {
			return err
		}
	}
	log.Infof("%s: %s %d bytes", r.Name, codeimage.ShortHash(h), len(r.Code.Bytecode))
	return nil
}

// Errors joins the errors of failed results.
func Errors(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}
