package modules

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mesh-intelligence/loom/internal/graph"
	"github.com/mesh-intelligence/loom/pkg/types"
)

// Limited mint errors.
var (
	ErrExceedMaxSupply     = errors.New("exceeds max supply")
	ErrExceedMaxPerAddress = errors.New("exceeds max per address")
)

// LimitedMintModule caps the total supply of a note and the number of
// tokens any one address may mint. Init data is the ABI-encoded
// (uint256 maxSupply, uint256 maxPerAddress).
type LimitedMintModule struct {
	mu    sync.Mutex
	notes map[types.NoteRef]*limits
}

type limits struct {
	maxSupply     uint64
	maxPerAddress uint64
	supply        uint64
	minted        map[common.Address]uint64
}

// NewLimitedMintModule returns an empty module.
func NewLimitedMintModule() *LimitedMintModule {
	return &LimitedMintModule{notes: make(map[types.NoteRef]*limits)}
}

// InitializeMintModule implements types.MintModule.
func (m *LimitedMintModule) InitializeMintModule(ctx context.Context, characterID, noteID uint64, data []byte) error {
	maxSupply, maxPerAddress, err := DecodeLimits(data)
	if err != nil {
		return err
	}
	ref := types.NoteRef{CharacterID: characterID, NoteID: noteID}
	m.mu.Lock()
	defer m.mu.Unlock()
	old, had := m.notes[ref]
	m.notes[ref] = &limits{
		maxSupply:     maxSupply,
		maxPerAddress: maxPerAddress,
		minted:        make(map[common.Address]uint64),
	}
	graph.OnRollback(ctx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if had {
			m.notes[ref] = old
		} else {
			delete(m.notes, ref)
		}
	})
	return nil
}

// ProcessMint implements types.MintModule.
func (m *LimitedMintModule) ProcessMint(ctx context.Context, _ common.Address, characterID, noteID uint64, to common.Address, _ []byte) error {
	ref := types.NoteRef{CharacterID: characterID, NoteID: noteID}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.notes[ref]
	if !ok {
		return fmt.Errorf("%w: note %d of character %d has no limits", types.ErrInvalidModuleData, noteID, characterID)
	}
	if l.supply >= l.maxSupply {
		return fmt.Errorf("%w: %d", ErrExceedMaxSupply, l.maxSupply)
	}
	if l.minted[to] >= l.maxPerAddress {
		return fmt.Errorf("%w: %s holds %d", ErrExceedMaxPerAddress, to.Hex(), l.minted[to])
	}
	l.supply++
	l.minted[to]++
	graph.OnRollback(ctx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		l.supply--
		l.minted[to]--
	})
	return nil
}

// Remaining returns how many more tokens of the note may be minted.
func (m *LimitedMintModule) Remaining(characterID, noteID uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.notes[types.NoteRef{CharacterID: characterID, NoteID: noteID}]
	if !ok {
		return 0
	}
	return l.maxSupply - l.supply
}
