package graph

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mesh-intelligence/loom/pkg/types"
)

// boundLinklist returns the list bound to (c, linkType), or nil when none is
// bound. A bound list that has since been transferred away from the
// character's owner cannot be written through.
func (e *Engine) boundLinklist(c *types.Character, linkType types.LinkType) (*types.Linklist, error) {
	id, ok := e.state.bindings[types.LinklistKey{CharacterID: c.CharacterID, LinkType: linkType}]
	if !ok {
		return nil, nil
	}
	l, ok := e.state.linklists[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", types.ErrLinklistNotExists, id)
	}
	if l.Owner != c.Owner {
		return nil, fmt.Errorf("%w: list %d is held by %s", types.ErrNotLinklistOwner, id, l.Owner.Hex())
	}
	return l, nil
}

// linklistFor returns the list bound to (c, linkType), minting a new one
// owned by the character's owner when none is bound.
func (e *Engine) linklistFor(t *tx, caller common.Address, c *types.Character, linkType types.LinkType) (*types.Linklist, error) {
	l, err := e.boundLinklist(c, linkType)
	if err != nil || l != nil {
		return l, err
	}

	id := t.next(&e.state.counters.LastLinklistID)
	l = &types.Linklist{
		LinklistID:  id,
		Owner:       c.Owner,
		CharacterID: c.CharacterID,
		LinkType:    linkType,
	}
	t.putLinklist(l)
	t.putBinding(types.LinklistKey{CharacterID: c.CharacterID, LinkType: linkType}, id)
	t.emit(types.Event{
		Kind:        types.EventLinklistCreated,
		Caller:      caller,
		CharacterID: c.CharacterID,
		Owner:       c.Owner,
		LinkType:    linkType,
		LinklistID:  id,
	})
	return l, nil
}

// DetachLinklist clears the binding of (characterID, linkType). The list keeps
// its owner and members; the next link of that type mints a fresh list.
// Returns ErrUnattachedLinklist when nothing is bound.
func (e *Engine) DetachLinklist(ctx context.Context, caller common.Address, characterID uint64, linkType types.LinkType) error {
	return e.update(ctx, "detach_linklist", func(ctx context.Context, t *tx) error {
		if _, err := e.authorized(caller, characterID); err != nil {
			return err
		}
		k := types.LinklistKey{CharacterID: characterID, LinkType: linkType}
		id, ok := e.state.bindings[k]
		if !ok {
			return fmt.Errorf("%w: character %d type %q", types.ErrUnattachedLinklist, characterID, linkType)
		}
		del(t, e.state.bindings, t.dirty.bindings, k)
		t.emit(types.Event{
			Kind:        types.EventLinklistDetached,
			Caller:      caller,
			CharacterID: characterID,
			LinkType:    linkType,
			LinklistID:  id,
		})
		return nil
	})
}

// TransferLinklist moves a link-list token. The (character, link type)
// binding that points at it is left unchanged.
func (e *Engine) TransferLinklist(ctx context.Context, caller, from, to common.Address, linklistID uint64) error {
	return e.update(ctx, "transfer_linklist", func(ctx context.Context, t *tx) error {
		l, err := e.linklistOwnedBy(from, linklistID)
		if err != nil {
			return err
		}
		if caller != from {
			return fmt.Errorf("%w: %s cannot transfer link-list %d", types.ErrNotOwner, caller.Hex(), linklistID)
		}
		if to == (common.Address{}) {
			return types.ErrInvalidRecipient
		}
		l = l.Clone()
		l.Owner = to
		t.putLinklist(l)
		t.emit(types.Event{
			Kind:        types.EventLinklistTransfer,
			Caller:      caller,
			CharacterID: l.CharacterID,
			Owner:       from,
			To:          to,
			LinklistID:  linklistID,
		})
		return nil
	})
}

// SetLinklistURI replaces the link-list's metadata URI.
func (e *Engine) SetLinklistURI(ctx context.Context, caller common.Address, linklistID uint64, uri string) error {
	return e.update(ctx, "set_linklist_uri", func(ctx context.Context, t *tx) error {
		l, err := e.linklistOwnedBy(caller, linklistID)
		if err != nil {
			return err
		}
		l = l.Clone()
		l.URI = uri
		t.putLinklist(l)
		t.emit(types.Event{Kind: types.EventLinklistURISet, Caller: caller, LinklistID: linklistID, URI: uri})
		return nil
	})
}

// SetLinkModule4Linklist attaches a link module consulted whenever a
// character links to the list.
func (e *Engine) SetLinkModule4Linklist(ctx context.Context, caller common.Address, linklistID uint64, module common.Address, data []byte) error {
	return e.update(ctx, "set_link_module_linklist", func(ctx context.Context, t *tx) error {
		l, err := e.linklistOwnedBy(caller, linklistID)
		if err != nil {
			return err
		}
		l = l.Clone()
		l.LinkModule = module
		t.putLinklist(l)
		target := types.LinklistTarget{LinklistID: linklistID}
		t.emit(types.Event{
			Kind:       types.EventLinkModuleSet,
			Caller:     caller,
			Target:     types.NewLinkItem(target),
			LinklistID: linklistID,
			Module:     module,
		})
		return e.initLinkModule(ctx, module, target, data)
	})
}

// SetLinkModule4Address attaches a link module consulted whenever a
// character links to the caller's address.
func (e *Engine) SetLinkModule4Address(ctx context.Context, caller common.Address, module common.Address, data []byte) error {
	return e.update(ctx, "set_link_module_address", func(ctx context.Context, t *tx) error {
		if caller == (common.Address{}) {
			return types.ErrInvalidTarget
		}
		if module == (common.Address{}) {
			del(t, e.state.addressModules, t.dirty.addressModules, caller)
		} else {
			put(t, e.state.addressModules, t.dirty.addressModules, caller, module)
		}
		target := types.AddressTarget{Address: caller}
		t.emit(types.Event{
			Kind:   types.EventLinkModuleSet,
			Caller: caller,
			Target: types.NewLinkItem(target),
			Module: module,
		})
		return e.initLinkModule(ctx, module, target, data)
	})
}

func (e *Engine) linklistOwnedBy(owner common.Address, id uint64) (*types.Linklist, error) {
	l, ok := e.state.linklists[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", types.ErrLinklistNotExists, id)
	}
	if owner == (common.Address{}) || l.Owner != owner {
		return nil, fmt.Errorf("%w: %s on link-list %d", types.ErrNotOwner, owner.Hex(), id)
	}
	return l, nil
}
