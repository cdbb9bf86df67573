package graph

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mesh-intelligence/loom/pkg/types"
)

// PostNote appends a note to in.CharacterID and returns its id. Note ids run
// from 1 in creation order. A non-nil target is validated the same way Link
// validates it, without running the target's link module.
func (e *Engine) PostNote(ctx context.Context, caller common.Address, in types.PostNoteInput) (uint64, error) {
	var id uint64
	err := e.update(ctx, "post_note", func(ctx context.Context, t *tx) error {
		var err error
		id, err = e.postNote(ctx, t, caller, in)
		return err
	})
	return id, err
}

func (e *Engine) postNote(ctx context.Context, t *tx, caller common.Address, in types.PostNoteInput) (uint64, error) {
	c, err := e.authorized(caller, in.CharacterID)
	if err != nil {
		return 0, err
	}
	var item types.LinkItem
	if in.Target != nil {
		if _, err := e.resolveTarget(in.Target); err != nil {
			return 0, err
		}
		item = types.NewLinkItem(in.Target)
		t.remember(item)
	}

	c = c.Clone()
	c.NoteCount++
	t.putCharacter(c)
	n := &types.Note{
		CharacterID: c.CharacterID,
		NoteID:      c.NoteCount,
		Target:      item,
		ContentURI:  in.ContentURI,
		LinkModule:  in.LinkModule,
		MintModule:  in.MintModule,
		Locked:      in.Locked,
	}
	t.putNote(n)
	t.emit(types.Event{
		Kind:        types.EventNoteCreated,
		Caller:      caller,
		CharacterID: n.CharacterID,
		NoteID:      n.NoteID,
		Target:      item,
		URI:         n.ContentURI,
	})

	if err := e.initLinkModule(ctx, in.LinkModule, types.NoteTarget{CharacterID: n.CharacterID, NoteID: n.NoteID}, in.LinkModuleInitData); err != nil {
		return 0, err
	}
	if err := e.initMintModule(ctx, in.MintModule, n.CharacterID, n.NoteID, in.MintModuleInitData); err != nil {
		return 0, err
	}
	return n.NoteID, nil
}

// SetNoteURI replaces the content URI of an unlocked, undeleted note.
func (e *Engine) SetNoteURI(ctx context.Context, caller common.Address, characterID, noteID uint64, uri string) error {
	return e.editNote(ctx, "set_note_uri", caller, characterID, noteID, func(n *types.Note) (types.Event, error) {
		if err := n.SetContentURI(uri); err != nil {
			return types.Event{}, err
		}
		return types.Event{Kind: types.EventNoteURISet, URI: uri}, nil
	}, nil)
}

// SetLinkModule4Note attaches a link module consulted whenever a character
// links to the note.
func (e *Engine) SetLinkModule4Note(ctx context.Context, caller common.Address, characterID, noteID uint64, module common.Address, data []byte) error {
	target := types.NoteTarget{CharacterID: characterID, NoteID: noteID}
	return e.editNote(ctx, "set_link_module_note", caller, characterID, noteID, func(n *types.Note) (types.Event, error) {
		if err := n.SetLinkModule(module); err != nil {
			return types.Event{}, err
		}
		return types.Event{Kind: types.EventNoteModuleSet, Target: types.NewLinkItem(target), Module: module}, nil
	}, func(ctx context.Context) error {
		return e.initLinkModule(ctx, module, target, data)
	})
}

// SetMintModule4Note attaches the mint module consulted on every mint of the
// note.
func (e *Engine) SetMintModule4Note(ctx context.Context, caller common.Address, characterID, noteID uint64, module common.Address, data []byte) error {
	return e.editNote(ctx, "set_mint_module_note", caller, characterID, noteID, func(n *types.Note) (types.Event, error) {
		if err := n.SetMintModule(module); err != nil {
			return types.Event{}, err
		}
		return types.Event{Kind: types.EventNoteModuleSet, Module: module}, nil
	}, func(ctx context.Context) error {
		return e.initMintModule(ctx, module, characterID, noteID, data)
	})
}

// LockNote freezes a note's content and modules. Idempotent.
func (e *Engine) LockNote(ctx context.Context, caller common.Address, characterID, noteID uint64) error {
	return e.editNote(ctx, "lock_note", caller, characterID, noteID, func(n *types.Note) (types.Event, error) {
		n.Lock()
		return types.Event{Kind: types.EventNoteLocked}, nil
	}, nil)
}

// DeleteNote marks a note deleted, whether or not it is locked. Idempotent.
func (e *Engine) DeleteNote(ctx context.Context, caller common.Address, characterID, noteID uint64) error {
	return e.editNote(ctx, "delete_note", caller, characterID, noteID, func(n *types.Note) (types.Event, error) {
		n.Delete()
		return types.Event{Kind: types.EventNoteDeleted}, nil
	}, nil)
}

// editNote applies fn to a clone of an authorized caller's note, stores the
// clone, and emits the returned event. A non-nil after runs once the note is
// stored.
func (e *Engine) editNote(ctx context.Context, op string, caller common.Address, characterID, noteID uint64, fn func(*types.Note) (types.Event, error), after func(context.Context) error) error {
	return e.update(ctx, op, func(ctx context.Context, t *tx) error {
		c, err := e.authorized(caller, characterID)
		if err != nil {
			return err
		}
		n, err := e.liveNote(c, noteID)
		if err != nil {
			return err
		}
		n = n.Clone()
		ev, err := fn(n)
		if err != nil {
			return err
		}
		t.putNote(n)
		ev.Caller = caller
		ev.CharacterID = characterID
		ev.NoteID = noteID
		t.emit(ev)
		if after != nil {
			return after(ctx)
		}
		return nil
	})
}

// liveNote returns note noteID of a live character.
// Returns ErrNoteNotExists when noteID is outside [1, NoteCount].
func (e *Engine) liveNote(c *types.Character, noteID uint64) (*types.Note, error) {
	if noteID == 0 || noteID > c.NoteCount {
		return nil, fmt.Errorf("%w: character %d note %d", types.ErrNoteNotExists, c.CharacterID, noteID)
	}
	n, ok := e.state.notes[types.NoteRef{CharacterID: c.CharacterID, NoteID: noteID}]
	if !ok {
		return nil, fmt.Errorf("%w: character %d note %d", types.ErrNoteNotExists, c.CharacterID, noteID)
	}
	return n, nil
}
