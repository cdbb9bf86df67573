package graph

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mesh-intelligence/loom/pkg/types"
)

// CreateCharacter mints a character owned by in.To and returns its id. The
// first character an address receives becomes its primary character.
func (e *Engine) CreateCharacter(ctx context.Context, caller common.Address, in types.CreateCharacterInput) (uint64, error) {
	var id uint64
	err := e.update(ctx, "create_character", func(ctx context.Context, t *tx) error {
		if err := e.validateHandle(in.Handle); err != nil {
			return err
		}
		var err error
		id, err = e.createCharacter(ctx, t, caller, in)
		return err
	})
	return id, err
}

// createCharacter assumes in.Handle has been validated or generated.
func (e *Engine) createCharacter(ctx context.Context, t *tx, caller common.Address, in types.CreateCharacterInput) (uint64, error) {
	if in.To == (common.Address{}) {
		return 0, types.ErrInvalidRecipient
	}
	if err := e.claimableHandle(in.Handle, in.To); err != nil {
		return 0, err
	}

	id := t.next(&e.state.counters.LastCharacterID)
	t.putCharacter(&types.Character{
		CharacterID: id,
		Owner:       in.To,
		Handle:      in.Handle,
		URI:         in.URI,
		LinkModule:  in.LinkModule,
	})
	put(t, e.state.handles, nil, in.Handle, id)
	t.emit(types.Event{
		Kind:        types.EventCharacterCreated,
		Caller:      caller,
		CharacterID: id,
		Owner:       in.To,
		Handle:      in.Handle,
		URI:         in.URI,
	})
	e.grantPrimary(t, in.To, id)

	if err := e.initLinkModule(ctx, in.LinkModule, types.CharacterTarget{CharacterID: id}, in.LinkModuleInitData); err != nil {
		return 0, err
	}
	return id, nil
}

// SetHandle renames a character, releasing its old handle.
func (e *Engine) SetHandle(ctx context.Context, caller common.Address, characterID uint64, handle string) error {
	return e.update(ctx, "set_handle", func(ctx context.Context, t *tx) error {
		c, err := e.authorized(caller, characterID)
		if err != nil {
			return err
		}
		if err := e.validateHandle(handle); err != nil {
			return err
		}
		if err := e.claimableHandle(handle, c.Owner); err != nil {
			return err
		}

		del(t, e.state.handles, nil, c.Handle)
		put(t, e.state.handles, nil, handle, characterID)
		c = c.Clone()
		c.Handle = handle
		t.putCharacter(c)
		t.emit(types.Event{Kind: types.EventHandleSet, Caller: caller, CharacterID: characterID, Handle: handle})
		return nil
	})
}

// SetCharacterURI replaces the character's metadata URI.
func (e *Engine) SetCharacterURI(ctx context.Context, caller common.Address, characterID uint64, uri string) error {
	return e.update(ctx, "set_character_uri", func(ctx context.Context, t *tx) error {
		c, err := e.authorized(caller, characterID)
		if err != nil {
			return err
		}
		c = c.Clone()
		c.URI = uri
		t.putCharacter(c)
		t.emit(types.Event{Kind: types.EventCharacterURISet, Caller: caller, CharacterID: characterID, URI: uri})
		return nil
	})
}

// SetPrimaryCharacter points the caller's primary at one of its characters.
func (e *Engine) SetPrimaryCharacter(ctx context.Context, caller common.Address, characterID uint64) error {
	return e.update(ctx, "set_primary_character", func(ctx context.Context, t *tx) error {
		if _, err := e.owned(caller, characterID); err != nil {
			return err
		}
		t.putPrimary(caller, characterID)
		t.emit(types.Event{Kind: types.EventPrimarySet, Caller: caller, CharacterID: characterID, Owner: caller})
		return nil
	})
}

// SetOperator replaces the single delegated operator of a character. The
// zero address removes it.
func (e *Engine) SetOperator(ctx context.Context, caller common.Address, characterID uint64, operator common.Address) error {
	return e.update(ctx, "set_operator", func(ctx context.Context, t *tx) error {
		c, err := e.owned(caller, characterID)
		if err != nil {
			return err
		}
		c = c.Clone()
		c.Operator = operator
		t.putCharacter(c)
		t.emit(types.Event{Kind: types.EventOperatorSet, Caller: caller, CharacterID: characterID, To: operator})
		return nil
	})
}

// SetLinkModule4Character attaches a link module consulted whenever another
// character links to this one.
func (e *Engine) SetLinkModule4Character(ctx context.Context, caller common.Address, characterID uint64, module common.Address, data []byte) error {
	return e.update(ctx, "set_link_module_character", func(ctx context.Context, t *tx) error {
		c, err := e.authorized(caller, characterID)
		if err != nil {
			return err
		}
		c = c.Clone()
		c.LinkModule = module
		t.putCharacter(c)
		target := types.CharacterTarget{CharacterID: characterID}
		t.emit(types.Event{
			Kind:        types.EventLinkModuleSet,
			Caller:      caller,
			CharacterID: characterID,
			Target:      types.NewLinkItem(target),
			Module:      module,
		})
		return e.initLinkModule(ctx, module, target, data)
	})
}

// Burn destroys a character. Its handle becomes available, its primary
// pointer and link-list bindings are cleared, and its id is never reused.
// Notes and link-lists it created survive.
func (e *Engine) Burn(ctx context.Context, caller common.Address, characterID uint64) error {
	return e.update(ctx, "burn", func(ctx context.Context, t *tx) error {
		c, err := e.owned(caller, characterID)
		if err != nil {
			return err
		}
		del(t, e.state.handles, nil, c.Handle)
		e.releasePrimary(t, c.Owner, characterID)
		e.resetBindings(t, caller, characterID)
		del(t, e.state.characters, t.dirty.characters, characterID)
		t.emit(types.Event{Kind: types.EventCharacterBurned, Caller: caller, CharacterID: characterID, Owner: c.Owner})
		return nil
	})
}

// TransferCharacter moves a character from its owner to to. The operator
// and link-list bindings are cleared; the character becomes the recipient's
// primary only if the recipient has none.
func (e *Engine) TransferCharacter(ctx context.Context, caller, from, to common.Address, characterID uint64) error {
	return e.update(ctx, "transfer_character", func(ctx context.Context, t *tx) error {
		return e.transferCharacter(t, caller, from, to, characterID)
	})
}

func (e *Engine) transferCharacter(t *tx, caller, from, to common.Address, characterID uint64) error {
	c, err := e.character(characterID)
	if err != nil {
		return err
	}
	if c.Owner != from || caller != from {
		return fmt.Errorf("%w: %s cannot transfer character %d", types.ErrNotCharacterOwner, caller.Hex(), characterID)
	}
	if to == (common.Address{}) {
		return types.ErrInvalidRecipient
	}

	e.releasePrimary(t, from, characterID)
	e.resetBindings(t, caller, characterID)
	c = c.Clone()
	c.Owner = to
	c.Operator = common.Address{}
	t.putCharacter(c)
	t.emit(types.Event{
		Kind:        types.EventCharacterTransfer,
		Caller:      caller,
		CharacterID: characterID,
		Owner:       from,
		To:          to,
	})
	e.grantPrimary(t, to, characterID)
	return nil
}

// grantPrimary makes id the primary of owner unless owner already has one.
func (e *Engine) grantPrimary(t *tx, owner common.Address, id uint64) {
	if _, ok := e.state.primaries[owner]; ok {
		return
	}
	t.putPrimary(owner, id)
	t.emit(types.Event{Kind: types.EventPrimarySet, CharacterID: id, Owner: owner})
}

func (e *Engine) releasePrimary(t *tx, owner common.Address, id uint64) {
	if e.state.primaries[owner] == id {
		del(t, e.state.primaries, t.dirty.primaries, owner)
	}
}

// resetBindings clears every link-list binding of a character. The lists
// themselves keep their owner and members.
func (e *Engine) resetBindings(t *tx, caller common.Address, characterID uint64) {
	var keys []types.LinklistKey
	for k := range e.state.bindings {
		if k.CharacterID == characterID {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		id := e.state.bindings[k]
		del(t, e.state.bindings, t.dirty.bindings, k)
		t.emit(types.Event{
			Kind:        types.EventLinklistDetached,
			Caller:      caller,
			CharacterID: characterID,
			LinkType:    k.LinkType,
			LinklistID:  id,
		})
	}
}

func (e *Engine) character(id uint64) (*types.Character, error) {
	c, ok := e.state.characters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", types.ErrCharacterNotExists, id)
	}
	return c, nil
}

// authorized returns the character when caller is its owner or operator.
func (e *Engine) authorized(caller common.Address, id uint64) (*types.Character, error) {
	c, err := e.character(id)
	if err != nil {
		return nil, err
	}
	if !c.IsAuthorized(caller) {
		return nil, fmt.Errorf("%w: %s on character %d", types.ErrNotCharacterOwner, caller.Hex(), id)
	}
	return c, nil
}

// owned returns the character when caller is its owner.
func (e *Engine) owned(caller common.Address, id uint64) (*types.Character, error) {
	c, err := e.character(id)
	if err != nil {
		return nil, err
	}
	if caller == (common.Address{}) || caller != c.Owner {
		return nil, fmt.Errorf("%w: %s on character %d", types.ErrNotCharacterOwner, caller.Hex(), id)
	}
	return c, nil
}
