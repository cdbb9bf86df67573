package graph

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/loom/pkg/types"
)

// MintNote mints the next collectible token of a note to in.To and returns
// the token id and the note's token contract address. The contract is
// deployed on the first successful mint and reused afterwards.
func (e *Engine) MintNote(ctx context.Context, caller common.Address, in types.MintNoteInput) (uint64, common.Address, error) {
	var (
		tokenID uint64
		nft     common.Address
	)
	err := e.update(ctx, "mint_note", func(ctx context.Context, t *tx) error {
		if in.To == (common.Address{}) {
			return types.ErrInvalidRecipient
		}
		n, err := e.mintableNote(in.CharacterID, in.NoteID)
		if err != nil {
			return err
		}
		if err := e.processMint(ctx, n.MintModule, caller, in.CharacterID, in.NoteID, in.To, in.MintModuleData); err != nil {
			return err
		}

		// Re-read: the module may have deleted the note through a nested call.
		n, err = e.mintableNote(in.CharacterID, in.NoteID)
		if err != nil {
			return err
		}
		m := e.mintNFTOf(t, caller, n)
		m = m.Clone()
		tokenID = m.Mint(in.To)
		nft = m.Address
		t.putMintNFT(m)
		t.emit(types.Event{
			Kind:        types.EventNoteMinted,
			Caller:      caller,
			CharacterID: in.CharacterID,
			NoteID:      in.NoteID,
			To:          in.To,
			MintNFT:     nft,
			TokenID:     tokenID,
		})
		return nil
	})
	return tokenID, nft, err
}

func (e *Engine) mintableNote(characterID, noteID uint64) (*types.Note, error) {
	c, err := e.character(characterID)
	if err != nil {
		return nil, err
	}
	n, err := e.liveNote(c, noteID)
	if err != nil {
		return nil, err
	}
	if n.Deleted {
		return nil, fmt.Errorf("%w: character %d note %d", types.ErrNoteDeleted, characterID, noteID)
	}
	return n, nil
}

// mintNFTOf returns the token contract of n, deploying it when absent. The
// address derives from the entry address and a deploy nonce the way a
// contract creation address does.
func (e *Engine) mintNFTOf(t *tx, caller common.Address, n *types.Note) *types.MintNFT {
	if m, ok := e.state.mintNFTs[n.MintNFT]; ok {
		return m
	}
	nonce := t.next(&e.state.counters.DeployNonce)
	m := &types.MintNFT{
		Address:     crypto.CreateAddress(e.entry, nonce),
		CharacterID: n.CharacterID,
		NoteID:      n.NoteID,
		Owners:      map[uint64]common.Address{},
	}
	t.putMintNFT(m)

	n = n.Clone()
	n.MintNFT = m.Address
	t.putNote(n)
	e.log.Debug("mint token deployed",
		zap.String("mint_nft", m.Address.Hex()),
		zap.Uint64("character_id", n.CharacterID),
		zap.Uint64("note_id", n.NoteID),
		zap.String("caller", caller.Hex()),
	)
	return m
}

// TransferMintToken moves a minted note token from its holder to to.
func (e *Engine) TransferMintToken(ctx context.Context, caller common.Address, nft common.Address, tokenID uint64, to common.Address) error {
	return e.update(ctx, "transfer_mint_token", func(ctx context.Context, t *tx) error {
		m, ok := e.state.mintNFTs[nft]
		if !ok {
			return fmt.Errorf("%w: no token contract at %s", types.ErrMintTokenNotExists, nft.Hex())
		}
		owner, err := m.OwnerOf(tokenID)
		if err != nil {
			return err
		}
		if caller == (common.Address{}) || caller != owner {
			return fmt.Errorf("%w: %s does not hold token %d", types.ErrNotOwner, caller.Hex(), tokenID)
		}
		if to == (common.Address{}) {
			return types.ErrInvalidRecipient
		}
		m = m.Clone()
		m.Owners[tokenID] = to
		t.putMintNFT(m)
		t.emit(types.Event{
			Kind:        types.EventMintTokenTransfer,
			Caller:      caller,
			CharacterID: m.CharacterID,
			NoteID:      m.NoteID,
			Owner:       owner,
			To:          to,
			MintNFT:     nft,
			TokenID:     tokenID,
		})
		return nil
	})
}
