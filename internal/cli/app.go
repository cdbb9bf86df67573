package cli

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mesh-intelligence/loom/internal/graph"
	"github.com/mesh-intelligence/loom/internal/modules"
	"github.com/mesh-intelligence/loom/internal/paths"
	"github.com/mesh-intelligence/loom/internal/resolver"
	"github.com/mesh-intelligence/loom/internal/sqlite"
	"github.com/mesh-intelligence/loom/pkg/types"
)

// app is everything a command needs: the opened engine and its
// collaborators. Close must be called when the command finishes.
type app struct {
	settings *settings
	log      *zap.Logger
	store    *sqlite.Backend
	engine   *graph.Engine
	resolver *resolver.Resolver
	modules  *modules.Builtins
}

// newLogger builds a production zap logger at level, writing to stderr.
func newLogger(level string) (*zap.Logger, error) {
	lvl := zapcore.WarnLevel
	if level != "" {
		var err error
		if lvl, err = zapcore.ParseLevel(level); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// openApp loads settings, attaches the store, and opens the engine with the
// reservation oracle and built-in modules wired in. With the sqlite backend
// the built-in module state is restored and saved after each commit.
func openApp(ctx context.Context, flags *rootFlags) (*app, error) {
	s, err := loadSettings(flags)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(s.config.LogLevel)
	if err != nil {
		return nil, err
	}

	admin, err := s.address(cfgKeyResolverAdmin)
	if err != nil {
		return nil, err
	}
	res, err := resolver.Load(paths.ReservedFile(s.configDir), admin)
	if err != nil {
		return nil, err
	}

	registry := graph.NewRegistry()
	opts := []graph.Option{
		graph.WithLogger(log.Named("graph")),
		graph.WithSinks(graph.NewLogSink(log.Named("events"))),
		graph.WithHandleOracle(res),
		graph.WithRegistry(registry),
		graph.WithMinHandleLength(s.config.HandleMinimum()),
		graph.WithEntryAddress(s.config.EntryAddress),
	}

	a := &app{settings: s, log: log, resolver: res}
	if s.config.Backend != types.BackendSQLite {
		a.engine = graph.New(opts...)
		a.modules = modules.Register(registry, a.engine)
		return a, nil
	}

	a.store = sqlite.NewBackend(log.Named("sqlite"))
	if err := a.store.Attach(s.config); err != nil {
		return nil, sysErr("attach store: %w", err)
	}
	state := modules.NewStateSink(a.store, log.Named("modules"))
	if a.engine, err = graph.Open(ctx, a.store, append(opts, graph.WithSinks(state))...); err != nil {
		a.store.Detach()
		return nil, sysErr("open graph: %w", err)
	}
	a.modules = modules.Register(registry, a.engine)
	if err := state.Track(ctx, a.modules); err != nil {
		a.store.Detach()
		return nil, sysErr("load module state: %w", err)
	}
	return a, nil
}

// Close detaches the store and flushes the logger.
func (a *app) Close() error {
	defer a.log.Sync()
	if a.store != nil {
		return a.store.Detach()
	}
	return nil
}

// caller returns the acting address from --as or the caller setting.
func (a *app) caller(flags *rootFlags) (common.Address, error) {
	raw := flags.caller
	if raw == "" {
		raw = a.settings.viper.GetString(cfgKeyCaller)
	}
	if raw == "" {
		return common.Address{}, fmt.Errorf("no caller: pass --as or set %s in config.yaml", cfgKeyCaller)
	}
	return parseAddress("--as", raw)
}

// withApp opens the app, runs fn and closes the app.
func withApp(ctx context.Context, flags *rootFlags, fn func(a *app) error) error {
	a, err := openApp(ctx, flags)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
