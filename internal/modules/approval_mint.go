package modules

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mesh-intelligence/loom/internal/graph"
	"github.com/mesh-intelligence/loom/pkg/types"
)

// ApprovalMintModule lets each approved recipient mint a note once. Init
// data is the ABI-encoded address[] of approved recipients.
type ApprovalMintModule struct {
	graph Graph

	mu    sync.Mutex
	notes map[types.NoteRef]map[common.Address]approval
}

type approval struct {
	approved bool
	minted   bool
}

// NewApprovalMintModule returns a module that checks note owners through g.
func NewApprovalMintModule(g Graph) *ApprovalMintModule {
	return &ApprovalMintModule{
		graph: g,
		notes: make(map[types.NoteRef]map[common.Address]approval),
	}
}

// InitializeMintModule implements types.MintModule.
func (m *ApprovalMintModule) InitializeMintModule(ctx context.Context, characterID, noteID uint64, data []byte) error {
	addrs, err := DecodeAddresses(data)
	if err != nil {
		return err
	}
	ref := types.NoteRef{CharacterID: characterID, NoteID: noteID}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, addr := range addrs {
		a := m.notes[ref][addr]
		a.approved = true
		m.set(ctx, ref, addr, a)
	}
	return nil
}

// ProcessMint implements types.MintModule.
func (m *ApprovalMintModule) ProcessMint(ctx context.Context, _ common.Address, characterID, noteID uint64, to common.Address, _ []byte) error {
	ref := types.NoteRef{CharacterID: characterID, NoteID: noteID}
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.notes[ref][to]
	if !a.approved {
		return fmt.Errorf("%w: %s may not mint note %d of character %d", types.ErrNotApproved, to.Hex(), noteID, characterID)
	}
	if a.minted {
		return fmt.Errorf("%w: %s already minted note %d of character %d", types.ErrNotApproved, to.Hex(), noteID, characterID)
	}
	a.minted = true
	m.set(ctx, ref, to, a)
	return nil
}

// Approve grants or revokes mint approval on a note as one graph operation.
// Only the owner of the note's character may change it.
func (m *ApprovalMintModule) Approve(ctx context.Context, caller common.Address, characterID, noteID uint64, addrs []common.Address, approved bool) error {
	return m.graph.Update(ctx, "approveMint", func(ctx context.Context) (types.Event, error) {
		c, err := m.graph.Character(ctx, characterID)
		if err != nil {
			return types.Event{}, err
		}
		if caller != c.Owner {
			return types.Event{}, fmt.Errorf("%w: %s does not own character %d", types.ErrNotOwner, caller.Hex(), characterID)
		}
		ref := types.NoteRef{CharacterID: characterID, NoteID: noteID}
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, addr := range addrs {
			a := m.notes[ref][addr]
			a.approved = approved
			m.set(ctx, ref, addr, a)
		}
		return types.Event{
			Kind:        types.EventModuleApproval,
			Caller:      caller,
			CharacterID: characterID,
			NoteID:      noteID,
			Module:      AddressOf(ApprovalMintName),
		}, nil
	})
}

// Approved reports whether to may still mint the note.
func (m *ApprovalMintModule) Approved(characterID, noteID uint64, to common.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.notes[types.NoteRef{CharacterID: characterID, NoteID: noteID}][to]
	return a.approved && !a.minted
}

// set must be called with m.mu held.
func (m *ApprovalMintModule) set(ctx context.Context, ref types.NoteRef, addr common.Address, a approval) {
	set, ok := m.notes[ref]
	if !ok {
		set = make(map[common.Address]approval)
		m.notes[ref] = set
	}
	old, had := set[addr]
	set[addr] = a
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
