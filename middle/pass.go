// Package middle is the veldt compiler's normalization pass: it takes the
// reachability analysis's live-class forest and rewrites the program's type
// and value representation into a monomorphic, layout-concrete form for code
// generation. Types are normalized and memoized, live classes get compact
// identity ranges and dispatch tables, and every live heap value and method
// signature is re-materialized under the new representation.
package middle

import (
	"log/slog"

	"github.com/veldt-lang/veldt/analysis"
	"github.com/veldt-lang/veldt/internal/log"
	"github.com/veldt-lang/veldt/ir"
)

// MethodRewriter rewrites one method body to use normalized types. It is a
// black box: the middle end hands it the original body and the rewritten
// signature and stores whatever comes back.
type MethodRewriter interface {
	Rewrite(m *analysis.Method, sig *Signature) (*ir.Body, error)
}

// Specializer may intercept normalization at two points: after field layout
// (to adjust a class's laid-out fields) and before per-method codegen (to
// produce a specialized method instead of the default normalization). A
// Specializer that declines must fall through untouched.
type Specializer interface {
	SpecializeLayout(mod *analysis.Module, class *analysis.Class, fields []ir.Field) []ir.Field
	Specialize(m *analysis.Method) (*ir.Method, bool)
}

// DeadCodeReporter receives the methods the dispatch builder drops because
// they are neither live nor virtually reachable.
type DeadCodeReporter interface {
	DroppedMethod(ref analysis.MethodRef)
}

// Signature is a normalized calling convention: the positional slot lists
// after flattening plus the overflow fields carrying any excess.
type Signature struct {
	Params      []analysis.Type
	Results     []analysis.Type
	ParamSpill  []*ir.Field
	ResultSpill []*ir.Field
}

type passthroughRewriter struct{}

func (passthroughRewriter) Rewrite(m *analysis.Method, _ *Signature) (*ir.Body, error) {
	return &ir.Body{Source: m.Body}, nil
}

type noSpecializer struct{}

func (noSpecializer) SpecializeLayout(_ *analysis.Module, _ *analysis.Class, fields []ir.Field) []ir.Field {
	return fields
}
func (noSpecializer) Specialize(*analysis.Method) (*ir.Method, bool) { return nil, false }

type noopDeadCode struct{}

func (noopDeadCode) DroppedMethod(analysis.MethodRef) {}

type Option func(*Pass)

func WithRewriter(r MethodRewriter) Option { return func(p *Pass) { p.rewriter = r } }
func WithSpecializer(s Specializer) Option { return func(p *Pass) { p.specializer = s } }
func WithDeadCodeReporter(r DeadCodeReporter) Option {
	return func(p *Pass) { p.deadCode = r }
}
func WithLogger(l *slog.Logger) Option { return func(p *Pass) { p.logger = l } }

// flatState is the tri-state (plus result split) cycle guard for variant
// flattening decisions.
type flatState uint8

const (
	flatNotStarted flatState = iota
	flatInProgress
	flatBoxed
	flatEnum
	flatDone
)

// Pass holds all mutable state of one normalization run. It is
// single-threaded: every mutation emanates from the driving loop in Run.
type Pass struct {
	mod *analysis.Module
	cfg *analysis.Config

	logger      *slog.Logger
	rewriter    MethodRewriter
	specializer Specializer
	deadCode    DeadCodeReporter

	types     map[uint64]*ir.NormType
	flatState map[analysis.ClassID]flatState
	flats     map[analysis.ClassID]*ir.FlatInfo

	classes map[analysis.ClassID]*ir.Class
	methods map[analysis.MethodRef]*ir.Method

	records    map[*analysis.Record]*ir.Record
	flatValues map[*analysis.Record][]ir.Value
	queue      []*analysis.Record
	queued     map[*analysis.Record]struct{}

	overflow *overflowAllocator

	out *ir.Module
}

func newPass(mod *analysis.Module, cfg *analysis.Config, opts ...Option) *Pass {
	p := &Pass{
		mod:         mod,
		cfg:         cfg,
		logger:      log.DefaultLogger.With("section", "middle"),
		rewriter:    passthroughRewriter{},
		specializer: noSpecializer{},
		deadCode:    noopDeadCode{},
		types:       make(map[uint64]*ir.NormType),
		flatState:   make(map[analysis.ClassID]flatState),
		flats:       make(map[analysis.ClassID]*ir.FlatInfo),
		classes:     make(map[analysis.ClassID]*ir.Class),
		methods:     make(map[analysis.MethodRef]*ir.Method),
		records:     make(map[*analysis.Record]*ir.Record),
		flatValues:  make(map[*analysis.Record][]ir.Value),
		queued:      make(map[*analysis.Record]struct{}),
		out: &ir.Module{
			Name:  mod.Name,
			Types: make(map[uint64]*ir.NormType),
			Flats: make(map[analysis.ClassID]*ir.FlatInfo),
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.overflow = newOverflowAllocator(cfg)
	return p
}

// Run executes the whole pass and returns the normalized module. A fatal
// analysis inconsistency aborts the run; partial results are never returned.
func Run(mod *analysis.Module, cfg *analysis.Config, opts ...Option) (res *ir.Module, err error) {
	p := newPass(mod, cfg, opts...)
	defer func() {
		if err != nil {
			p.logger.Error("normalization aborted", "err", err)
		} else {
			p.logger.Info("normalization finished",
				"classes", len(res.Classes),
				"types", len(res.Types),
				"tables", len(res.Tables),
				"records", len(res.Records))
		}
	}()

	if err := p.assignIdentity(); err != nil {
		return nil, err
	}
	if err := p.layoutClasses(); err != nil {
		return nil, err
	}
	if err := p.buildDispatch(); err != nil {
		return nil, err
	}
	for _, record := range mod.Records {
		p.enqueue(record)
	}
	if err := p.drainQueue(); err != nil {
		return nil, err
	}
	if err := p.normalizeMethods(); err != nil {
		return nil, err
	}
	p.finish()
	return p.out, nil
}

func (p *Pass) enqueue(r *analysis.Record) {
	if r == nil {
		return
	}
	if _, seen := p.queued[r]; seen {
		return
	}
	p.queued[r] = struct{}{}
	p.queue = append(p.queue, r)
}

// drainQueue visits every enqueued heap record exactly once, FIFO, so
// discovery order cannot change the result.
func (p *Pass) drainQueue() error {
	for len(p.queue) > 0 {
		record := p.queue[0]
		p.queue = p.queue[1:]
		if _, err := p.normRecord(record); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pass) finish() {
	for hash, norm := range p.types {
		p.out.Types[hash] = norm
	}
	for root, flat := range p.flats {
		p.out.Flats[root] = flat
	}
	for _, ref := range p.mod.Roots {
		if m, ok := p.methods[ref]; ok {
			p.out.Roots = append(p.out.Roots, m)
		}
	}
	if global := p.overflow.global(); global != nil {
		p.out.Overflow = global
	}
}
