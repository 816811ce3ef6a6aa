package install

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kolkov/spreadcall/internal/spread/guard"
	"github.com/kolkov/spreadcall/internal/spread/site"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("install: compiler closed")

// Request asks for g to be installed at Site if Site is still at Generation.
type Request struct {
	Site       *site.CallSite
	Guard      *guard.Guard
	Generation uint64
}

// CompilerOptions configures background compilation.
type CompilerOptions struct {
	// Workers is the number of compile goroutines. Default 1.
	Workers int
	// QueueSize bounds pending requests. Default 64.
	QueueSize int
	// OnDone, if set, runs after each request is processed.
	OnDone func(req Request, installed bool, err error)
}

// Compiler installs fast paths on background goroutines.
//
// Thread Safety: Enqueue may be called concurrently with itself and with
// Close.
type Compiler struct {
	installer *Installer
	logger    *zap.Logger
	onDone    func(Request, bool, error)

	queue chan Request
	group *errgroup.Group

	mu     sync.RWMutex
	closed bool

	processed atomic.Uint64
	dropped   atomic.Uint64
}

// NewCompiler starts the worker goroutines. They run until Close is called
// or ctx is canceled.
func NewCompiler(ctx context.Context, in *Installer, opts CompilerOptions, logger *zap.Logger) *Compiler {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	g, gctx := errgroup.WithContext(ctx)
	c := &Compiler{
		installer: in,
		logger:    logger,
		onDone:    opts.OnDone,
		queue:     make(chan Request, opts.QueueSize),
		group:     g,
	}
	for i := 0; i < opts.Workers; i++ {
		g.Go(func() error { return c.work(gctx) })
	}
	return c
}

func (c *Compiler) work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req, ok := <-c.queue:
			if !ok {
				return nil
			}
			c.process(req)
		}
	}
}

func (c *Compiler) process(req Request) {
	installed, err := c.installer.InstallAt(req.Site, req.Guard, req.Generation)
	req.Site.EndCompile()
	c.processed.Add(1)
	if c.onDone != nil {
		c.onDone(req, installed, err)
	}
}

// Enqueue submits req without blocking. The call site must already be
// marked pending with TryBeginCompile; when the queue is full the request is
// dropped and the mark cleared, so a later execution can retry.
func (c *Compiler) Enqueue(req Request) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		req.Site.EndCompile()
		return ErrClosed
	}
	select {
	case c.queue <- req:
		return nil
	default:
		req.Site.EndCompile()
		c.dropped.Add(1)
		c.logger.Warn("compile queue full, request dropped", zap.String("site", req.Site.ID))
		return nil
	}
}

// Close stops accepting requests, lets workers drain the queue, and waits
// for them to exit.
func (c *Compiler) Close() error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
	c.mu.Unlock()
	return c.group.Wait()
}

// Processed returns the number of requests handled.
func (c *Compiler) Processed() uint64 { return c.processed.Load() }

// Dropped returns the number of requests dropped on a full queue.
func (c *Compiler) Dropped() uint64 { return c.dropped.Load() }
