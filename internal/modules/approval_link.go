package modules

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mesh-intelligence/loom/internal/graph"
	"github.com/mesh-intelligence/loom/pkg/types"
)

// Graph is the engine access modules need: owner lookups, and Update to
// change module state as a graph operation.
type Graph interface {
	Character(ctx context.Context, id uint64) (*types.Character, error)
	Linklist(ctx context.Context, id uint64) (*types.Linklist, error)
	Update(ctx context.Context, op string, fn func(ctx context.Context) (types.Event, error)) error
}

type targetKey struct {
	kind types.Kind
	key  common.Hash
}

// ApprovalLinkModule lets only approved callers link to the objects it is
// attached to. Init data is the ABI-encoded address[] of approved callers.
type ApprovalLinkModule struct {
	graph Graph

	mu       sync.Mutex
	approved map[targetKey]map[common.Address]bool
}

// NewApprovalLinkModule returns a module that resolves target owners
// through g.
func NewApprovalLinkModule(g Graph) *ApprovalLinkModule {
	return &ApprovalLinkModule{
		graph:    g,
		approved: make(map[targetKey]map[common.Address]bool),
	}
}

// InitializeLinkModule implements types.LinkModule.
func (m *ApprovalLinkModule) InitializeLinkModule(ctx context.Context, target types.Target, data []byte) error {
	addrs, err := DecodeAddresses(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, addr := range addrs {
		m.set(ctx, keyOf(target), addr, true)
	}
	return nil
}

// ProcessLink implements types.LinkModule.
func (m *ApprovalLinkModule) ProcessLink(_ context.Context, caller common.Address, _ uint64, target types.Target, _ []byte) error {
	if !m.Approved(target, caller) {
		return fmt.Errorf("%w: %s may not link to %s", types.ErrNotApproved, caller.Hex(), target.Kind())
	}
	return nil
}

// Approve grants or revokes link approval on target as one graph operation.
// Only the target's owner may change it.
func (m *ApprovalLinkModule) Approve(ctx context.Context, caller common.Address, target types.Target, addrs []common.Address, approved bool) error {
	return m.graph.Update(ctx, "approveLink", func(ctx context.Context) (types.Event, error) {
		owner, err := m.ownerOf(ctx, target)
		if err != nil {
			return types.Event{}, err
		}
		if caller != owner {
			return types.Event{}, fmt.Errorf("%w: %s does not own the target", types.ErrNotOwner, caller.Hex())
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, addr := range addrs {
			m.set(ctx, keyOf(target), addr, approved)
		}
		return types.Event{
			Kind:   types.EventModuleApproval,
			Caller: caller,
			Module: AddressOf(ApprovalLinkName),
			Target: types.NewLinkItem(target),
		}, nil
	})
}

// Approved reports whether addr may link to target.
func (m *ApprovalLinkModule) Approved(target types.Target, addr common.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.approved[keyOf(target)][addr]
}

// set must be called with m.mu held.
func (m *ApprovalLinkModule) set(ctx context.Context, k targetKey, addr common.Address, v bool) {
	set, ok := m.approved[k]
	if !ok {
		set = make(map[common.Address]bool)
		m.approved[k] = set
	}
	old, had := set[addr]
	set[addr] = v
	graph.OnRollback(ctx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if had {
			set[addr] = old
		} else {
			delete(set, addr)
		}
	})
}

func (m *ApprovalLinkModule) ownerOf(ctx context.Context, target types.Target) (common.Address, error) {
	switch t := target.(type) {
	case types.CharacterTarget:
		c, err := m.graph.Character(ctx, t.CharacterID)
		if err != nil {
			return common.Address{}, err
		}
		return c.Owner, nil
	case types.NoteTarget:
		c, err := m.graph.Character(ctx, t.CharacterID)
		if err != nil {
			return common.Address{}, err
		}
		return c.Owner, nil
	case types.LinklistTarget:
		l, err := m.graph.Linklist(ctx, t.LinklistID)
		if err != nil {
			return common.Address{}, err
		}
		return l.Owner, nil
	case types.AddressTarget:
		return t.Address, nil
	default:
		return common.Address{}, fmt.Errorf("%w: %T has no owner", types.ErrInvalidTarget, target)
	}
}

func keyOf(t types.Target) targetKey {
	return targetKey{kind: t.Kind(), key: t.Key()}
}
