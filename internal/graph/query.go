package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mesh-intelligence/loom/pkg/types"
)

// Character returns a copy of a live character.
func (e *Engine) Character(ctx context.Context, id uint64) (*types.Character, error) {
	var out *types.Character
	err := e.view(ctx, func() error {
		c, err := e.character(id)
		if err != nil {
			return err
		}
		out = c.Clone()
		return nil
	})
	return out, err
}

// CharacterByHandle returns a copy of the character holding handle. The
// lookup ignores case, surrounding space and a leading "@".
func (e *Engine) CharacterByHandle(ctx context.Context, handle string) (*types.Character, error) {
	handle = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
	var out *types.Character
	err := e.view(ctx, func() error {
		id, ok := e.state.handles[handle]
		if !ok {
			return fmt.Errorf("%w: handle %q", types.ErrCharacterNotExists, handle)
		}
		c, err := e.character(id)
		if err != nil {
			return err
		}
		out = c.Clone()
		return nil
	})
	return out, err
}

// PrimaryCharacterID returns the primary character of addr, or 0.
func (e *Engine) PrimaryCharacterID(ctx context.Context, addr common.Address) uint64 {
	var id uint64
	_ = e.view(ctx, func() error {
		id = e.state.primaries[addr]
		return nil
	})
	return id
}

// LinklistID returns the list bound to (characterID, linkType), or 0.
func (e *Engine) LinklistID(ctx context.Context, characterID uint64, linkType types.LinkType) uint64 {
	var id uint64
	_ = e.view(ctx, func() error {
		id = e.state.bindings[types.LinklistKey{CharacterID: characterID, LinkType: linkType}]
		return nil
	})
	return id
}

// Linklist returns a copy of a link-list. Lists outlive detachment and the
// burn of their character.
func (e *Engine) Linklist(ctx context.Context, id uint64) (*types.Linklist, error) {
	var out *types.Linklist
	err := e.view(ctx, func() error {
		l, ok := e.state.linklists[id]
		if !ok {
			return fmt.Errorf("%w: %d", types.ErrLinklistNotExists, id)
		}
		out = l.Clone()
		return nil
	})
	return out, err
}

// Note returns a copy of a note. Notes of burned characters stay readable.
func (e *Engine) Note(ctx context.Context, characterID, noteID uint64) (*types.Note, error) {
	var out *types.Note
	err := e.view(ctx, func() error {
		n, ok := e.state.notes[types.NoteRef{CharacterID: characterID, NoteID: noteID}]
		if !ok {
			return fmt.Errorf("%w: character %d note %d", types.ErrNoteNotExists, characterID, noteID)
		}
		out = n.Clone()
		return nil
	})
	return out, err
}

// MintNFT returns a copy of a note's token contract.
func (e *Engine) MintNFT(ctx context.Context, addr common.Address) (*types.MintNFT, error) {
	var out *types.MintNFT
	err := e.view(ctx, func() error {
		m, ok := e.state.mintNFTs[addr]
		if !ok {
			return fmt.Errorf("%w: no token contract at %s", types.ErrMintTokenNotExists, addr.Hex())
		}
		out = m.Clone()
		return nil
	})
	return out, err
}

// LinkModule4Address returns the link module attached to addr.
func (e *Engine) LinkModule4Address(ctx context.Context, addr common.Address) common.Address {
	var mod common.Address
	_ = e.view(ctx, func() error {
		mod = e.state.addressModules[addr]
		return nil
	})
	return mod
}

// Counters returns the current allocators.
func (e *Engine) Counters(ctx context.Context) types.Counters {
	var c types.Counters
	_ = e.view(ctx, func() error {
		c = e.state.counters
		return nil
	})
	return c
}

// linking returns the members of kind in the list bound to (from, linkType).
func (e *Engine) linking(ctx context.Context, from uint64, linkType types.LinkType, kind types.Kind) []types.LinkItem {
	var items []types.LinkItem
	_ = e.view(ctx, func() error {
		id, ok := e.state.bindings[types.LinklistKey{CharacterID: from, LinkType: linkType}]
		if !ok {
			return nil
		}
		if l, ok := e.state.linklists[id]; ok {
			items = l.MembersOf(kind)
		}
		return nil
	})
	return items
}

// LinkingCharacterIDs returns the live characters from links to under
// linkType, in link order. Burned characters are omitted.
func (e *Engine) LinkingCharacterIDs(ctx context.Context, from uint64, linkType types.LinkType) []uint64 {
	ids := []uint64{}
	items := e.linking(ctx, from, linkType, types.KindCharacter)
	_ = e.view(ctx, func() error {
		for _, it := range items {
			id := it.Target.(types.CharacterTarget).CharacterID
			if _, ok := e.state.characters[id]; ok {
				ids = append(ids, id)
			}
		}
		return nil
	})
	return ids
}

// LinkingAddresses returns the addresses from links to under linkType.
func (e *Engine) LinkingAddresses(ctx context.Context, from uint64, linkType types.LinkType) []common.Address {
	return collect(e.linking(ctx, from, linkType, types.KindAddress), func(t types.AddressTarget) common.Address {
		return t.Address
	})
}

// LinkingNotes returns the notes from links to under linkType.
func (e *Engine) LinkingNotes(ctx context.Context, from uint64, linkType types.LinkType) []types.NoteTarget {
	return collect(e.linking(ctx, from, linkType, types.KindNote), func(t types.NoteTarget) types.NoteTarget {
		return t
	})
}

// LinkingERC721s returns the external tokens from links to under linkType.
func (e *Engine) LinkingERC721s(ctx context.Context, from uint64, linkType types.LinkType) []types.ERC721Target {
	return collect(e.linking(ctx, from, linkType, types.KindERC721), func(t types.ERC721Target) types.ERC721Target {
		return t
	})
}

// LinkingLinklists returns the link-lists from links to under linkType.
func (e *Engine) LinkingLinklists(ctx context.Context, from uint64, linkType types.LinkType) []uint64 {
	return collect(e.linking(ctx, from, linkType, types.KindLinklist), func(t types.LinklistTarget) uint64 {
		return t.LinklistID
	})
}

// LinkingAnyURIs returns the URIs from links to under linkType.
func (e *Engine) LinkingAnyURIs(ctx context.Context, from uint64, linkType types.LinkType) []string {
	return collect(e.linking(ctx, from, linkType, types.KindAnyURI), func(t types.AnyURITarget) string {
		return t.URI
	})
}

func collect[T types.Target, V any](items []types.LinkItem, fn func(T) V) []V {
	out := make([]V, 0, len(items))
	for _, it := range items {
		if t, ok := it.Target.(T); ok {
			out = append(out, fn(t))
		}
	}
	return out
}

// LinkingTarget resolves a canonical key of the given kind back to the
// target it encodes. Any target ever linked to or noted on is resolvable.
// Returns ErrInvalidTarget for unknown keys.
func (e *Engine) LinkingTarget(ctx context.Context, kind types.Kind, key common.Hash) (types.Target, error) {
	var out types.Target
	err := e.view(ctx, func() error {
		t, ok := e.state.targets[targetKey{kind, key}]
		if !ok {
			return fmt.Errorf("%w: no %s target with key %s", types.ErrInvalidTarget, kind, key.Hex())
		}
		out = t
		return nil
	})
	return out, err
}

// LinkingNote resolves a note key.
func (e *Engine) LinkingNote(ctx context.Context, key common.Hash) (types.NoteTarget, error) {
	t, err := e.LinkingTarget(ctx, types.KindNote, key)
	if err != nil {
		return types.NoteTarget{}, err
	}
	return t.(types.NoteTarget), nil
}

// LinkingERC721 resolves an external token key.
func (e *Engine) LinkingERC721(ctx context.Context, key common.Hash) (types.ERC721Target, error) {
	t, err := e.LinkingTarget(ctx, types.KindERC721, key)
	if err != nil {
		return types.ERC721Target{}, err
	}
	return t.(types.ERC721Target), nil
}

// LinkingAnyURI resolves a URI key.
func (e *Engine) LinkingAnyURI(ctx context.Context, key common.Hash) (string, error) {
	t, err := e.LinkingTarget(ctx, types.KindAnyURI, key)
	if err != nil {
		return "", err
	}
	return t.(types.AnyURITarget).URI, nil
}
