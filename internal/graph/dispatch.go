package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mesh-intelligence/loom/pkg/types"
)

// Registry maps module addresses to implementations. Objects store only the
// address; the registry resolves it at call time.
type Registry struct {
	mu   sync.RWMutex
	link map[common.Address]types.LinkModule
	mint map[common.Address]types.MintModule
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		link: make(map[common.Address]types.LinkModule),
		mint: make(map[common.Address]types.MintModule),
	}
}

// RegisterLinkModule binds addr to m, replacing any earlier binding.
func (r *Registry) RegisterLinkModule(addr common.Address, m types.LinkModule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.link[addr] = m
}

// RegisterMintModule binds addr to m, replacing any earlier binding.
func (r *Registry) RegisterMintModule(addr common.Address, m types.MintModule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mint[addr] = m
}

// LinkModule returns the link module at addr.
// Returns ErrModuleNotRegistered when nothing is bound to addr.
func (r *Registry) LinkModule(addr common.Address) (types.LinkModule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.link[addr]
	if !ok {
		return nil, fmt.Errorf("%w: link module %s", types.ErrModuleNotRegistered, addr.Hex())
	}
	return m, nil
}

// MintModule returns the mint module at addr.
// Returns ErrModuleNotRegistered when nothing is bound to addr.
func (r *Registry) MintModule(addr common.Address) (types.MintModule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mint[addr]
	if !ok {
		return nil, fmt.Errorf("%w: mint module %s", types.ErrModuleNotRegistered, addr.Hex())
	}
	return m, nil
}

// initLinkModule attaches the module at addr to target. The zero address
// means no module.
func (e *Engine) initLinkModule(ctx context.Context, addr common.Address, target types.Target, data []byte) error {
	if addr == (common.Address{}) {
		return nil
	}
	m, err := e.modules.LinkModule(addr)
	if err != nil {
		return err
	}
	if err := m.InitializeLinkModule(ctx, target, data); err != nil {
		return fmt.Errorf("initializing link module %s: %w", addr.Hex(), err)
	}
	return nil
}

func (e *Engine) processLink(ctx context.Context, addr, caller common.Address, from uint64, target types.Target, data []byte) error {
	if addr == (common.Address{}) {
		return nil
	}
	m, err := e.modules.LinkModule(addr)
	if err != nil {
		return err
	}
	if err := m.ProcessLink(ctx, caller, from, target, data); err != nil {
		return fmt.Errorf("link module %s: %w", addr.Hex(), err)
	}
	return nil
}

func (e *Engine) initMintModule(ctx context.Context, addr common.Address, characterID, noteID uint64, data []byte) error {
	if addr == (common.Address{}) {
		return nil
	}
	m, err := e.modules.MintModule(addr)
	if err != nil {
		return err
	}
	if err := m.InitializeMintModule(ctx, characterID, noteID, data); err != nil {
		return fmt.Errorf("initializing mint module %s: %w", addr.Hex(), err)
	}
	return nil
}

func (e *Engine) processMint(ctx context.Context, addr, caller common.Address, characterID, noteID uint64, to common.Address, data []byte) error {
	if addr == (common.Address{}) {
		return nil
	}
	m, err := e.modules.MintModule(addr)
	if err != nil {
		return err
	}
	if err := m.ProcessMint(ctx, caller, characterID, noteID, to, data); err != nil {
		return fmt.Errorf("mint module %s: %w", addr.Hex(), err)
	}
	return nil
}
