// Package graph implements the social graph engine: characters and handles,
// link-lists and the link graph, notes and their mint tokens, and the
// dispatch of link and mint modules.
//
// Every public mutating operation runs as one atomic transaction. Module
// callbacks receive a context that carries the running transaction; when a
// module calls back into the engine with that context the nested call joins
// the outer transaction behind a savepoint instead of deadlocking.
package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/loom/pkg/types"
)

// Engine owns the graph state. It is safe for concurrent use; mutating
// operations are serialized.
type Engine struct {
	mu    sync.RWMutex
	state *State

	log       *zap.Logger
	now       func() time.Time
	store     types.Store
	oracle    types.HandleOracle
	modules   *Registry
	sinks     []EventSink
	minHandle int
	entry     common.Address
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithClock sets the time source used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithStore makes every commit persist its change set to s before it becomes
// visible. A Persist error aborts the operation.
func WithStore(s types.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithHandleOracle sets the reservation oracle consulted on handle claims.
func WithHandleOracle(o types.HandleOracle) Option {
	return func(e *Engine) { e.oracle = o }
}

// WithRegistry sets the module registry used to resolve module addresses.
func WithRegistry(r *Registry) Option {
	return func(e *Engine) { e.modules = r }
}

// WithSinks adds sinks that receive events after each commit.
func WithSinks(sinks ...EventSink) Option {
	return func(e *Engine) { e.sinks = append(e.sinks, sinks...) }
}

// WithMinHandleLength overrides the shortest accepted handle.
func WithMinHandleLength(n int) Option {
	return func(e *Engine) { e.minHandle = n }
}

// WithEntryAddress sets the address note tokens are deployed from.
func WithEntryAddress(addr common.Address) Option {
	return func(e *Engine) { e.entry = addr }
}

// New returns an engine over an empty graph.
func New(opts ...Option) *Engine {
	e := &Engine{
		state:     newState(),
		log:       zap.NewNop(),
		now:       time.Now,
		modules:   NewRegistry(),
		minHandle: types.DefaultMinHandleLength,
		entry:     types.DefaultEntryAddress,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open returns an engine whose state is loaded from store. Commits are
// persisted back to the same store.
func Open(ctx context.Context, store types.Store, opts ...Option) (*Engine, error) {
	e := New(append(opts, WithStore(store))...)
	cs, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading graph: %w", err)
	}
	e.state.load(cs)
	e.log.Info("graph loaded",
		zap.Int("characters", len(e.state.characters)),
		zap.Int("linklists", len(e.state.linklists)),
		zap.Int("notes", len(e.state.notes)),
	)
	return e, nil
}

// Modules returns the engine's module registry.
func (e *Engine) Modules() *Registry {
	return e.modules
}

// scope marks a context as running inside a transaction of engine.
type scope struct {
	engine *Engine
	tx     *tx
}

type scopeKey struct{}

func (e *Engine) scopeOf(ctx context.Context) *tx {
	if s, ok := ctx.Value(scopeKey{}).(*scope); ok && s.engine == e {
		return s.tx
	}
	return nil
}

// update runs fn as one atomic operation. A nested call from a module joins
// the running transaction behind a savepoint; otherwise a new transaction is
// opened, persisted, and its events delivered after commit.
func (e *Engine) update(ctx context.Context, op string, fn func(ctx context.Context, t *tx) error) error {
	if t := e.scopeOf(ctx); t != nil {
		sp := t.savepoint()
		if err := fn(ctx, t); err != nil {
			t.rollbackTo(sp)
			return err
		}
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t := newTx(e.state, e.now)
	ctx = context.WithValue(ctx, scopeKey{}, &scope{engine: e, tx: t})
	if err := fn(ctx, t); err != nil {
		t.rollbackTo(savepoint{})
		e.log.Debug("operation aborted",
			zap.String("op", op), zap.String("tx", t.id), zap.Error(err))
		return err
	}

	cs := t.changeSet()
	if e.store != nil && !cs.Empty() {
		if err := e.store.Persist(ctx, cs); err != nil {
			t.rollbackTo(savepoint{})
			e.log.Error("persist failed",
				zap.String("op", op), zap.String("tx", t.id), zap.Error(err))
			return fmt.Errorf("persisting %s: %w", op, err)
		}
	}

	e.log.Debug("operation committed",
		zap.String("op", op), zap.String("tx", t.id), zap.Int("events", len(t.events)))
	for _, ev := range t.events {
		for _, sink := range e.sinks {
			sink.Emit(ctx, ev)
		}
	}
	return nil
}

// Update runs fn as one atomic operation on behalf of code outside the
// engine, such as a module changing its own state. Writes made by fn must be
// journaled with OnRollback. When fn succeeds and returns an event with a
// kind, the event is emitted with the commit. Called with a context from a
// running operation, fn joins that operation.
func (e *Engine) Update(ctx context.Context, op string, fn func(ctx context.Context) (types.Event, error)) error {
	return e.update(ctx, op, func(ctx context.Context, t *tx) error {
		ev, err := fn(ctx)
		if err != nil {
			return err
		}
		if ev.Kind != "" {
			t.emit(ev)
		}
		return nil
	})
}

// view runs fn with read access. Calls made from inside a module callback
// read the uncommitted state of the running transaction.
func (e *Engine) view(ctx context.Context, fn func() error) error {
	if e.scopeOf(ctx) != nil {
		return fn()
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fn()
}

func newTxID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// OnRollback registers undo to run if the operation running in ctx is rolled
// back, including a rollback to a savepoint taken before this call. Modules
// use it to keep their own state in step with the graph. Outside an
// operation it does nothing.
func OnRollback(ctx context.Context, undo func()) {
	if s, ok := ctx.Value(scopeKey{}).(*scope); ok {
		s.tx.undo = append(s.tx.undo, undo)
	}
}
