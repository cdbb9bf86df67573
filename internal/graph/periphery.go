package graph

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mesh-intelligence/loom/pkg/types"
)

// CreateCharacterThenPostNote creates a character for the caller and posts
// its first note in one operation. note.CharacterID is ignored. Either both
// succeed or neither is applied.
func (e *Engine) CreateCharacterThenPostNote(ctx context.Context, caller common.Address, character types.CreateCharacterInput, note types.PostNoteInput) (characterID, noteID uint64, err error) {
	err = e.update(ctx, "create_character_then_post_note", func(ctx context.Context, t *tx) error {
		if err := e.validateHandle(character.Handle); err != nil {
			return err
		}
		character.To = caller
		var err error
		characterID, err = e.createCharacter(ctx, t, caller, character)
		if err != nil {
			return err
		}
		note.CharacterID = characterID
		noteID, err = e.postNote(ctx, t, caller, note)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	return characterID, noteID, nil
}
