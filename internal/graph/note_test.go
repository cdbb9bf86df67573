package graph

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/loom/pkg/types"
)

func TestEngine_NoteSequencing(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "alice")

	for want := uint64(1); want <= 3; want++ {
		assert.Equal(t, want, f.post(t, alice, a, "ipfs://n"))
	}
	c, err := f.e.Character(f.ctx, a)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), c.NoteCount)

	_, err = f.e.Note(f.ctx, a, 4)
	assert.ErrorIs(t, err, types.ErrNoteNotExists)

	_, err = f.e.PostNote(f.ctx, bob, types.PostNoteInput{CharacterID: a, ContentURI: "ipfs://x"})
	assert.ErrorIs(t, err, types.ErrNotCharacterOwner)
}

func TestEngine_PostNoteTarget(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "alice")
	b := f.create(t, bob, "bob")
	parent := f.post(t, bob, b, "ipfs://parent")

	target := types.NoteTarget{CharacterID: b, NoteID: parent}
	id, err := f.e.PostNote(f.ctx, alice, types.PostNoteInput{CharacterID: a, Target: target, ContentURI: "ipfs://reply"})
	require.NoError(t, err)

	n, err := f.e.Note(f.ctx, a, id)
	require.NoError(t, err)
	assert.Equal(t, types.KindNote, n.Target.Kind)
	assert.Equal(t, target.Key(), n.Target.Key)
	assert.Equal(t, "ipfs://reply", n.ContentURI)

	_, err = f.e.PostNote(f.ctx, alice, types.PostNoteInput{CharacterID: a, Target: types.CharacterTarget{CharacterID: 99}})
	assert.ErrorIs(t, err, types.ErrCharacterNotExists)

	c, err := f.e.Character(f.ctx, a)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), c.NoteCount, "failed post does not consume an id")
}

func TestEngine_LockAndDeleteAreIndependent(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "alice")
	id := f.post(t, alice, a, "ipfs://v1")

	require.NoError(t, f.e.SetNoteURI(f.ctx, alice, a, id, "ipfs://v2"))
	require.NoError(t, f.e.LockNote(f.ctx, alice, a, id))
	require.NoError(t, f.e.LockNote(f.ctx, alice, a, id), "locking twice is harmless")

	assert.ErrorIs(t, f.e.SetNoteURI(f.ctx, alice, a, id, "ipfs://v3"), types.ErrNoteLocked)
	assert.ErrorIs(t, f.e.SetLinkModule4Note(f.ctx, alice, a, id, moduleAddr, nil), types.ErrNoteLocked)
	assert.ErrorIs(t, f.e.SetMintModule4Note(f.ctx, alice, a, id, moduleAddr, nil), types.ErrNoteLocked)

	require.NoError(t, f.e.DeleteNote(f.ctx, alice, a, id), "deleting a locked note succeeds")
	require.NoError(t, f.e.DeleteNote(f.ctx, alice, a, id))

	n, err := f.e.Note(f.ctx, a, id)
	require.NoError(t, err)
	assert.True(t, n.Locked)
	assert.True(t, n.Deleted)
	assert.Equal(t, "ipfs://v2", n.ContentURI)

	_, _, err = f.e.MintNote(f.ctx, carol, types.MintNoteInput{CharacterID: a, NoteID: id, To: carol})
	assert.ErrorIs(t, err, types.ErrNoteDeleted)
}

func TestEngine_NoteEditsRequireAuthorization(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "alice")
	id := f.post(t, alice, a, "ipfs://v1")

	assert.ErrorIs(t, f.e.SetNoteURI(f.ctx, bob, a, id, "x"), types.ErrNotCharacterOwner)
	assert.ErrorIs(t, f.e.LockNote(f.ctx, bob, a, id), types.ErrNotCharacterOwner)
	assert.ErrorIs(t, f.e.DeleteNote(f.ctx, bob, a, id), types.ErrNotCharacterOwner)
	assert.ErrorIs(t, f.e.DeleteNote(f.ctx, alice, a, 2), types.ErrNoteNotExists)

	require.NoError(t, f.e.SetOperator(f.ctx, alice, a, bob))
	require.NoError(t, f.e.SetNoteURI(f.ctx, bob, a, id, "ipfs://by-operator"))
}

func TestEngine_MintTwoRecipients(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "alice")
	id := f.post(t, alice, a, "X")

	t1, nft1, err := f.e.MintNote(f.ctx, carol, types.MintNoteInput{CharacterID: a, NoteID: id, To: carol})
	require.NoError(t, err)
	t2, nft2, err := f.e.MintNote(f.ctx, dave, types.MintNoteInput{CharacterID: a, NoteID: id, To: dave})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), t1)
	assert.Equal(t, uint64(2), t2)
	assert.Equal(t, nft1, nft2, "one token contract per note")
	assert.Equal(t, crypto.CreateAddress(types.DefaultEntryAddress, 1), nft1)

	m, err := f.e.MintNFT(f.ctx, nft1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), m.TotalSupply)
	owner, err := m.OwnerOf(1)
	require.NoError(t, err)
	assert.Equal(t, carol, owner)
	owner, err = m.OwnerOf(2)
	require.NoError(t, err)
	assert.Equal(t, dave, owner)

	n, err := f.e.Note(f.ctx, a, id)
	require.NoError(t, err)
	assert.Equal(t, nft1, n.MintNFT)

	// A second note deploys its own contract.
	other := f.post(t, alice, a, "Y")
	_, nft3, err := f.e.MintNote(f.ctx, carol, types.MintNoteInput{CharacterID: a, NoteID: other, To: carol})
	require.NoError(t, err)
	assert.NotEqual(t, nft1, nft3)
}

func TestEngine_MintErrors(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "alice")
	id := f.post(t, alice, a, "X")

	_, _, err := f.e.MintNote(f.ctx, carol, types.MintNoteInput{CharacterID: a, NoteID: 0, To: carol})
	assert.ErrorIs(t, err, types.ErrNoteNotExists)
	_, _, err = f.e.MintNote(f.ctx, carol, types.MintNoteInput{CharacterID: a, NoteID: id + 1, To: carol})
	assert.ErrorIs(t, err, types.ErrNoteNotExists)
	_, _, err = f.e.MintNote(f.ctx, carol, types.MintNoteInput{CharacterID: 42, NoteID: 1, To: carol})
	assert.ErrorIs(t, err, types.ErrCharacterNotExists)
	_, _, err = f.e.MintNote(f.ctx, carol, types.MintNoteInput{CharacterID: a, NoteID: id})
	assert.ErrorIs(t, err, types.ErrInvalidRecipient)

	assert.Zero(t, f.e.Counters(f.ctx).DeployNonce)
}

func TestEngine_MintModule(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "alice")

	var initialized []uint64
	f.e.Modules().RegisterMintModule(moduleAddr, mintModuleFunc{
		init: func(_ context.Context, characterID, noteID uint64, _ []byte) error {
			initialized = append(initialized, characterID, noteID)
			return nil
		},
		process: func(_ context.Context, _ common.Address, _, _ uint64, to common.Address, _ []byte) error {
			if to != carol {
				return types.ErrNotApproved
			}
			return nil
		},
	})
	id, err := f.e.PostNote(f.ctx, alice, types.PostNoteInput{CharacterID: a, ContentURI: "X", MintModule: moduleAddr})
	require.NoError(t, err)
	assert.Equal(t, []uint64{a, id}, initialized)

	_, _, err = f.e.MintNote(f.ctx, dave, types.MintNoteInput{CharacterID: a, NoteID: id, To: dave})
	require.ErrorIs(t, err, types.ErrNotApproved)
	assert.Zero(t, f.e.Counters(f.ctx).DeployNonce, "rejected mint deploys nothing")

	tokenID, _, err := f.e.MintNote(f.ctx, carol, types.MintNoteInput{CharacterID: a, NoteID: id, To: carol})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tokenID)

	// Replacing the module on an unlocked note takes effect for later mints.
	f.e.Modules().RegisterMintModule(common.HexToAddress("0xbeef"), mintModuleFunc{})
	require.NoError(t, f.e.SetMintModule4Note(f.ctx, alice, a, id, common.HexToAddress("0xbeef"), nil))
	tokenID, _, err = f.e.MintNote(f.ctx, dave, types.MintNoteInput{CharacterID: a, NoteID: id, To: dave})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), tokenID)
}

func TestEngine_TransferMintToken(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "alice")
	id := f.post(t, alice, a, "X")
	tokenID, nft, err := f.e.MintNote(f.ctx, carol, types.MintNoteInput{CharacterID: a, NoteID: id, To: carol})
	require.NoError(t, err)

	assert.ErrorIs(t, f.e.TransferMintToken(f.ctx, dave, nft, tokenID, dave), types.ErrNotOwner)
	assert.ErrorIs(t, f.e.TransferMintToken(f.ctx, carol, nft, 7, dave), types.ErrMintTokenNotExists)
	assert.ErrorIs(t, f.e.TransferMintToken(f.ctx, carol, common.HexToAddress("0x1"), tokenID, dave), types.ErrMintTokenNotExists)
	require.NoError(t, f.e.TransferMintToken(f.ctx, carol, nft, tokenID, dave))

	m, err := f.e.MintNFT(f.ctx, nft)
	require.NoError(t, err)
	owner, err := m.OwnerOf(tokenID)
	require.NoError(t, err)
	assert.Equal(t, dave, owner)
}

func TestEngine_CreateCharacterThenPostNote(t *testing.T) {
	f := newFixture(t)

	cid, nid, err := f.e.CreateCharacterThenPostNote(f.ctx, alice,
		types.CreateCharacterInput{Handle: "alice"},
		types.PostNoteInput{ContentURI: "ipfs://hello"},
	)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cid)
	assert.Equal(t, uint64(1), nid)
	c, err := f.e.Character(f.ctx, cid)
	require.NoError(t, err)
	assert.Equal(t, alice, c.Owner)

	_, _, err = f.e.CreateCharacterThenPostNote(f.ctx, bob,
		types.CreateCharacterInput{Handle: "bob"},
		types.PostNoteInput{ContentURI: "x", Target: types.CharacterTarget{CharacterID: 99}},
	)
	require.ErrorIs(t, err, types.ErrCharacterNotExists)
	_, err = f.e.CharacterByHandle(f.ctx, "bob")
	assert.ErrorIs(t, err, types.ErrCharacterNotExists, "character creation rolled back")
	assert.Equal(t, uint64(1), f.e.Counters(f.ctx).LastCharacterID)
	assert.Zero(t, f.e.PrimaryCharacterID(f.ctx, bob))
}
