package modules

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/loom/pkg/types"
)

// State is the serializable state of the built-in modules.
type State struct {
	LinkApprovals []LinkApproval `json:"link_approvals"`
	MintApprovals []MintApproval `json:"mint_approvals"`
	MintLimits    []MintLimits   `json:"mint_limits"`
}

// LinkApproval is one ApprovalLinkModule entry.
type LinkApproval struct {
	Kind     string         `json:"kind"`
	Key      common.Hash    `json:"key"`
	Address  common.Address `json:"address"`
	Approved bool           `json:"approved"`
}

// MintApproval is one ApprovalMintModule entry.
type MintApproval struct {
	CharacterID uint64         `json:"character_id"`
	NoteID      uint64         `json:"note_id"`
	Address     common.Address `json:"address"`
	Approved    bool           `json:"approved"`
	Minted      bool           `json:"minted"`
}

// MintLimits is the LimitedMintModule state of one note.
type MintLimits struct {
	CharacterID   uint64                    `json:"character_id"`
	NoteID        uint64                    `json:"note_id"`
	MaxSupply     uint64                    `json:"max_supply"`
	MaxPerAddress uint64                    `json:"max_per_address"`
	Supply        uint64                    `json:"supply"`
	Minted        map[common.Address]uint64 `json:"minted"`
}

// Snapshot encodes the state of every built-in module. Entries are sorted
// so equal states encode to equal bytes.
func (b *Builtins) Snapshot() ([]byte, error) {
	var s State

	b.ApprovalLink.mu.Lock()
	for k, set := range b.ApprovalLink.approved {
		for addr, ok := range set {
			s.LinkApprovals = append(s.LinkApprovals, LinkApproval{Kind: k.kind.String(), Key: k.key, Address: addr, Approved: ok})
		}
	}
	b.ApprovalLink.mu.Unlock()

	b.ApprovalMint.mu.Lock()
	for ref, set := range b.ApprovalMint.notes {
		for addr, a := range set {
			s.MintApprovals = append(s.MintApprovals, MintApproval{
				CharacterID: ref.CharacterID, NoteID: ref.NoteID, Address: addr, Approved: a.approved, Minted: a.minted,
			})
		}
	}
	b.ApprovalMint.mu.Unlock()

	b.LimitedMint.mu.Lock()
	for ref, l := range b.LimitedMint.notes {
		minted := make(map[common.Address]uint64, len(l.minted))
		for addr, n := range l.minted {
			if n > 0 {
				minted[addr] = n
			}
		}
		s.MintLimits = append(s.MintLimits, MintLimits{
			CharacterID: ref.CharacterID, NoteID: ref.NoteID,
			MaxSupply: l.maxSupply, MaxPerAddress: l.maxPerAddress, Supply: l.supply, Minted: minted,
		})
	}
	b.LimitedMint.mu.Unlock()

	sort.Slice(s.LinkApprovals, func(i, j int) bool {
		a, c := s.LinkApprovals[i], s.LinkApprovals[j]
		if a.Kind != c.Kind {
			return a.Kind < c.Kind
		}
		if a.Key != c.Key {
			return bytes.Compare(a.Key[:], c.Key[:]) < 0
		}
		return bytes.Compare(a.Address[:], c.Address[:]) < 0
	})
	sort.Slice(s.MintApprovals, func(i, j int) bool {
		a, c := s.MintApprovals[i], s.MintApprovals[j]
		if a.CharacterID != c.CharacterID {
			return a.CharacterID < c.CharacterID
		}
		if a.NoteID != c.NoteID {
			return a.NoteID < c.NoteID
		}
		return bytes.Compare(a.Address[:], c.Address[:]) < 0
	})
	sort.Slice(s.MintLimits, func(i, j int) bool {
		a, c := s.MintLimits[i], s.MintLimits[j]
		if a.CharacterID != c.CharacterID {
			return a.CharacterID < c.CharacterID
		}
		return a.NoteID < c.NoteID
	})
	return json.Marshal(s)
}

// Restore replaces the state of every built-in module with a Snapshot.
// Empty data leaves the modules empty.
func (b *Builtins) Restore(data []byte) error {
	var s State
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding module state: %w", err)
		}
	}

	approved := make(map[targetKey]map[common.Address]bool)
	for _, e := range s.LinkApprovals {
		k := targetKey{kind: types.Kind(types.NewLinkType(e.Kind)), key: e.Key}
		if approved[k] == nil {
			approved[k] = make(map[common.Address]bool)
		}
		approved[k][e.Address] = e.Approved
	}
	notes := make(map[types.NoteRef]map[common.Address]approval)
	for _, e := range s.MintApprovals {
		ref := types.NoteRef{CharacterID: e.CharacterID, NoteID: e.NoteID}
		if notes[ref] == nil {
			notes[ref] = make(map[common.Address]approval)
		}
		notes[ref][e.Address] = approval{approved: e.Approved, minted: e.Minted}
	}
	limited := make(map[types.NoteRef]*limits)
	for _, e := range s.MintLimits {
		minted := make(map[common.Address]uint64, len(e.Minted))
		for addr, n := range e.Minted {
			minted[addr] = n
		}
		limited[types.NoteRef{CharacterID: e.CharacterID, NoteID: e.NoteID}] = &limits{
			maxSupply: e.MaxSupply, maxPerAddress: e.MaxPerAddress, supply: e.Supply, minted: minted,
		}
	}

	b.ApprovalLink.mu.Lock()
	b.ApprovalLink.approved = approved
	b.ApprovalLink.mu.Unlock()
	b.ApprovalMint.mu.Lock()
	b.ApprovalMint.notes = notes
	b.ApprovalMint.mu.Unlock()
	b.LimitedMint.mu.Lock()
	b.LimitedMint.notes = limited
	b.LimitedMint.mu.Unlock()
	return nil
}

// StateStore saves and loads module state.
type StateStore interface {
	ModuleState(ctx context.Context) ([]byte, error)
	PutModuleState(ctx context.Context, data []byte) error
}

// StateSink is a graph.EventSink that saves the built-in module state to a
// store after commits that changed it.
type StateSink struct {
	store StateStore
	log   *zap.Logger

	mu       sync.Mutex
	builtins *Builtins
	last     []byte
}

// NewStateSink returns a sink saving to store. It does nothing until Track
// is called.
func NewStateSink(store StateStore, log *zap.Logger) *StateSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &StateSink{store: store, log: log}
}

// Track loads the saved state into b and starts saving b after commits.
func (s *StateSink) Track(ctx context.Context, b *Builtins) error {
	data, err := s.store.ModuleState(ctx)
	if err != nil {
		return err
	}
	if err := b.Restore(data); err != nil {
		return err
	}
	last, err := b.Snapshot()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builtins = b
	s.last = last
	return nil
}

// Emit implements graph.EventSink.
func (s *StateSink) Emit(ctx context.Context, ev types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.builtins == nil {
		return
	}
	data, err := s.builtins.Snapshot()
	if err != nil {
		s.log.Error("snapshot module state", zap.String("event_id", ev.EventID), zap.Error(err))
		return
	}
	if bytes.Equal(data, s.last) {
		return
	}
	if err := s.store.PutModuleState(ctx, data); err != nil {
		s.log.Error("save module state", zap.String("event_id", ev.EventID), zap.Error(err))
		return
	}
	s.last = data
}
