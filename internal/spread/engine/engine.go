package engine

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kolkov/spreadcall/internal/spread/bailout"
	"github.com/kolkov/spreadcall/internal/spread/expand"
	"github.com/kolkov/spreadcall/internal/spread/feedback"
	"github.com/kolkov/spreadcall/internal/spread/guard"
	"github.com/kolkov/spreadcall/internal/spread/install"
	"github.com/kolkov/spreadcall/internal/spread/realm"
	"github.com/kolkov/spreadcall/internal/spread/shape"
	"github.com/kolkov/spreadcall/internal/spread/site"
	"github.com/kolkov/spreadcall/internal/spread/watchpoint"
)

// Path identifies how an execution produced its argument list.
type Path uint8

const (
	// PathGeneral is full protocol-respecting expansion.
	PathGeneral Path = iota
	// PathFast is a direct storage read behind a guard.
	PathFast
)

func (p Path) String() string {
	if p == PathFast {
		return "fast"
	}
	return "general"
}

// CallResult is the outcome of one expansion call.
type CallResult struct {
	// Value is the target's return value.
	Value realm.Value

	// Path is how the argument list was produced.
	Path Path

	// Bailout is set when a published fast path was refused.
	Bailout bailout.Reason
}

// Options configures an Engine.
type Options struct {
	// Threshold is the qualifying streak length. Zero selects
	// feedback.DefaultThreshold.
	Threshold uint32

	// Background moves installation to compiler goroutines.
	Background bool

	// Workers and QueueSize size the background compiler.
	Workers   int
	QueueSize int

	// MaxArguments bounds general expansion. Zero selects
	// expand.DefaultMaxArguments.
	MaxArguments int

	// Logger receives engine events. Nil disables logging.
	Logger *zap.Logger
}

// Stats is a snapshot of engine counters.
type Stats struct {
	Executions   uint64
	FastCalls    uint64
	GeneralCalls uint64
	Bailouts     uint64
	Syntheses    uint64
	Installs     uint64
	Rejected     uint64
	Retirements  uint64
	Poisoned     uint64
	Dropped      uint64
	Sites        int
}

// Engine is the speculative specialization engine for one realm.
//
// Thread Safety: all methods are safe for concurrent use.
type Engine struct {
	realm      *realm.Realm
	logger     *zap.Logger
	sites      *site.Table
	recorder   *feedback.Recorder
	manager    *watchpoint.Manager
	installer  *install.Installer
	dispatcher *bailout.Dispatcher
	expander   *expand.Executor
	compiler   *install.Compiler

	executions atomic.Uint64
	fastCalls  atomic.Uint64
	general    atomic.Uint64
	syntheses  atomic.Uint64
}

// New creates an engine over r.
func New(r *realm.Realm, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := watchpoint.NewManager(r, logger.Named("watchpoint"))
	in := install.NewInstaller(r, m, logger.Named("install"))
	ex := expand.NewExecutor(opts.MaxArguments)
	e := &Engine{
		realm:      r,
		logger:     logger,
		sites:      site.NewTable(),
		recorder:   feedback.NewRecorder(r, opts.Threshold),
		manager:    m,
		installer:  in,
		dispatcher: bailout.NewDispatcher(m, ex.MaxArguments, logger.Named("bailout")),
		expander:   ex,
	}
	if opts.Background {
		e.compiler = install.NewCompiler(context.Background(), in, install.CompilerOptions{
			Workers:   opts.Workers,
			QueueSize: opts.QueueSize,
		}, logger.Named("compiler"))
	}
	return e
}

// Realm returns the engine's realm.
func (e *Engine) Realm() *realm.Realm { return e.realm }

// Threshold returns the qualification threshold in effect.
func (e *Engine) Threshold() uint32 { return e.recorder.Threshold() }

// Site returns the call site named id, creating it on first execution.
func (e *Engine) Site(id string) *site.CallSite { return e.sites.GetOrCreate(id) }

// State returns the state-machine position of s.
func (e *Engine) State(s *site.CallSite) site.State { return e.recorder.State(s) }

// Sites returns every known call site.
func (e *Engine) Sites() []*site.CallSite { return e.sites.All() }

// ExecuteExpansionCall evaluates target(...value) at call site s.
func (e *Engine) ExecuteExpansionCall(s *site.CallSite, value realm.Value, target realm.Value) (CallResult, error) {
	e.executions.Add(1)

	var refused bailout.Reason
	if s.FastPathInstalled() {
		res := e.dispatcher.Enter(s, value)
		if res.Fast() {
			s.RecordExecution()
			e.fastCalls.Add(1)
			return e.call(target, res.Args, PathFast, bailout.ReasonNone)
		}
		e.dispatcher.Bailout(s, res)
		refused = res.Reason
	}

	obs := e.recorder.Observe(s, value)
	if e.recorder.Eligible(s) {
		e.specialize(s, obs)
	}

	args, err := e.expander.Expand(value)
	if err != nil {
		return CallResult{Value: realm.Undefined, Path: PathGeneral, Bailout: refused}, err
	}
	e.general.Add(1)
	return e.call(target, args, PathGeneral, refused)
}

func (e *Engine) call(target realm.Value, args []realm.Value, path Path, refused bailout.Reason) (CallResult, error) {
	v, err := realm.Call(target, realm.Undefined, args)
	return CallResult{Value: v, Path: path, Bailout: refused}, err
}

// specialize synthesizes a guard from obs and installs it, or queues the
// installation on the background compiler.
func (e *Engine) specialize(s *site.CallSite, obs shape.Observation) {
	if !s.TryBeginCompile() {
		return
	}
	g, err := guard.Synthesize(e.realm, obs, s)
	if err != nil {
		s.EndCompile()
		return
	}
	e.syntheses.Add(1)
	gen := s.Generation()

	if e.compiler != nil {
		if err := e.compiler.Enqueue(install.Request{Site: s, Guard: g, Generation: gen}); err != nil {
			e.logger.Debug("compile request not queued",
				zap.String("site", s.ID),
				zap.Stringer("guard", g),
				zap.Error(err))
		}
		return
	}
	if ok, _ := e.installer.InstallAt(s, g, gen); ok {
		e.logger.Debug("call site specialized",
			zap.String("site", s.ID),
			zap.Uint32("threshold", e.recorder.Threshold()))
	}
	s.EndCompile()
}

// Stats returns a snapshot of engine counters.
func (e *Engine) Stats() Stats {
	wp := e.manager.Stats()
	in := e.installer.Stats()
	st := Stats{
		Executions:   e.executions.Load(),
		FastCalls:    e.fastCalls.Load(),
		GeneralCalls: e.general.Load(),
		Bailouts:     e.dispatcher.Bailouts(),
		Syntheses:    e.syntheses.Load(),
		Installs:     in.Installed,
		Rejected:     in.Rejected,
		Retirements:  wp.Retired,
		Poisoned:     wp.Poisoned,
		Sites:        len(e.sites.All()),
	}
	if e.compiler != nil {
		st.Dropped = e.compiler.Dropped()
	}
	return st
}

// Close stops the background compiler, if any, after draining its queue.
func (e *Engine) Close() error {
	if e.compiler == nil {
		return nil
	}
	return e.compiler.Close()
}
