package graph

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mesh-intelligence/loom/pkg/types"
)

// resolveTarget checks that target is well-formed and, for characters and
// notes, that it exists. It returns the link module configured on the
// target, or the zero address.
func (e *Engine) resolveTarget(target types.Target) (common.Address, error) {
	switch t := target.(type) {
	case types.CharacterTarget:
		c, err := e.character(t.CharacterID)
		if err != nil {
			return common.Address{}, err
		}
		return c.LinkModule, nil
	case types.NoteTarget:
		n, ok := e.state.notes[types.NoteRef{CharacterID: t.CharacterID, NoteID: t.NoteID}]
		if !ok {
			return common.Address{}, fmt.Errorf("%w: character %d note %d", types.ErrNoteNotExists, t.CharacterID, t.NoteID)
		}
		if n.Deleted {
			return common.Address{}, fmt.Errorf("%w: character %d note %d", types.ErrNoteDeleted, t.CharacterID, t.NoteID)
		}
		return n.LinkModule, nil
	case types.AddressTarget:
		if t.Address == (common.Address{}) {
			return common.Address{}, fmt.Errorf("%w: zero address", types.ErrInvalidTarget)
		}
		return e.state.addressModules[t.Address], nil
	case types.ERC721Target:
		if t.Contract == (common.Address{}) || t.TokenID == nil {
			return common.Address{}, fmt.Errorf("%w: erc721 target needs contract and token id", types.ErrInvalidTarget)
		}
		return common.Address{}, nil
	case types.LinklistTarget:
		if t.LinklistID == 0 {
			return common.Address{}, fmt.Errorf("%w: link-list id 0", types.ErrInvalidTarget)
		}
		if l, ok := e.state.linklists[t.LinklistID]; ok {
			return l.LinkModule, nil
		}
		return common.Address{}, nil
	case types.AnyURITarget:
		if t.URI == "" {
			return common.Address{}, fmt.Errorf("%w: empty uri", types.ErrInvalidTarget)
		}
		return common.Address{}, nil
	default:
		return common.Address{}, fmt.Errorf("%w: %T", types.ErrInvalidTarget, target)
	}
}

// Link adds in.Target to the link-list of (in.FromCharacterID, in.LinkType)
// and returns the list id. The target's link module runs before anything is
// written. Linking an existing member succeeds without change.
func (e *Engine) Link(ctx context.Context, caller common.Address, in types.LinkInput) (uint64, error) {
	var id uint64
	err := e.update(ctx, "link", func(ctx context.Context, t *tx) error {
		var err error
		id, err = e.link(ctx, t, caller, in)
		return err
	})
	return id, err
}

func (e *Engine) link(ctx context.Context, t *tx, caller common.Address, in types.LinkInput) (uint64, error) {
	if _, err := e.authorized(caller, in.FromCharacterID); err != nil {
		return 0, err
	}
	module, err := e.resolveTarget(in.Target)
	if err != nil {
		return 0, err
	}
	if err := e.processLink(ctx, module, caller, in.FromCharacterID, in.Target, in.Data); err != nil {
		return 0, err
	}

	// The module may have called back into the engine; re-read everything.
	c, err := e.authorized(caller, in.FromCharacterID)
	if err != nil {
		return 0, err
	}
	if _, err := e.resolveTarget(in.Target); err != nil {
		return 0, err
	}
	l, err := e.linklistFor(t, caller, c, in.LinkType)
	if err != nil {
		return 0, err
	}

	item := types.NewLinkItem(in.Target)
	if next := l.Clone(); next.Add(item) {
		t.putLinklist(next)
	}
	t.remember(item)
	t.emit(types.Event{
		Kind:        types.EventLinkCreated,
		Caller:      caller,
		CharacterID: in.FromCharacterID,
		Target:      item,
		LinkType:    in.LinkType,
		LinklistID:  l.LinklistID,
	})
	return l.LinklistID, nil
}

// Unlink removes target from the link-list of (fromCharacterID, linkType).
// Removing an absent member succeeds. Returns ErrUnattachedLinklist when the
// pair has never been linked.
func (e *Engine) Unlink(ctx context.Context, caller common.Address, fromCharacterID uint64, target types.Target, linkType types.LinkType) error {
	return e.update(ctx, "unlink", func(ctx context.Context, t *tx) error {
		c, err := e.authorized(caller, fromCharacterID)
		if err != nil {
			return err
		}
		if target == nil {
			return fmt.Errorf("%w: nil target", types.ErrInvalidTarget)
		}
		l, err := e.boundLinklist(c, linkType)
		if err != nil {
			return err
		}
		if l == nil {
			return fmt.Errorf("%w: character %d type %q", types.ErrUnattachedLinklist, fromCharacterID, linkType)
		}

		item := types.NewLinkItem(target)
		if next := l.Clone(); next.Remove(item) {
			t.putLinklist(next)
		}
		t.emit(types.Event{
			Kind:        types.EventLinkRemoved,
			Caller:      caller,
			CharacterID: fromCharacterID,
			Target:      item,
			LinkType:    linkType,
			LinklistID:  l.LinklistID,
		})
		return nil
	})
}

// CreateThenLinkCharacter provisions a character for to, handled by its
// lowercased address, and links fromCharacterID to it. Fails with
// ErrTargetAlreadyHasPrimaryCharacter when to already has a primary, so a
// second call for the same address fails.
func (e *Engine) CreateThenLinkCharacter(ctx context.Context, caller common.Address, fromCharacterID uint64, to common.Address, linkType types.LinkType) (uint64, error) {
	var id uint64
	err := e.update(ctx, "create_then_link_character", func(ctx context.Context, t *tx) error {
		if _, err := e.authorized(caller, fromCharacterID); err != nil {
			return err
		}
		if _, ok := e.state.primaries[to]; ok {
			return fmt.Errorf("%w: %s", types.ErrTargetAlreadyHasPrimaryCharacter, to.Hex())
		}
		var err error
		id, err = e.createCharacter(ctx, t, caller, types.CreateCharacterInput{To: to, Handle: addressHandle(to)})
		if err != nil {
			return err
		}
		_, err = e.link(ctx, t, caller, types.LinkInput{
			FromCharacterID: fromCharacterID,
			Target:          types.CharacterTarget{CharacterID: id},
			LinkType:        linkType,
		})
		return err
	})
	return id, err
}
