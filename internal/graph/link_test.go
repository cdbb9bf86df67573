package graph

import (
	"context"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/go-cmp/cmp"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/loom/pkg/types"
)

func TestEngine_FollowThenUnfollow(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "alice")
	b := f.create(t, bob, "bob")

	id := f.link(t, alice, a, types.CharacterTarget{CharacterID: b}, types.LinkTypeFollow)
	assert.Equal(t, uint64(1), id)
	if diff := cmp.Diff([]uint64{b}, f.e.LinkingCharacterIDs(f.ctx, a, types.LinkTypeFollow)); diff != "" {
		t.Errorf("linking ids mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, f.e.Unlink(f.ctx, alice, a, types.CharacterTarget{CharacterID: b}, types.LinkTypeFollow))
	assert.Empty(t, f.e.LinkingCharacterIDs(f.ctx, a, types.LinkTypeFollow))

	l, err := f.e.Linklist(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, alice, l.Owner)
	assert.Equal(t, a, l.CharacterID)
	assert.Empty(t, l.Members)
	assert.Equal(t, uint64(1), f.e.LinklistID(f.ctx, a, types.LinkTypeFollow))

	want := []types.EventKind{
		types.EventCharacterCreated, types.EventPrimarySet,
		types.EventCharacterCreated, types.EventPrimarySet,
		types.EventLinklistCreated, types.EventLinkCreated,
		types.EventLinkRemoved,
	}
	if diff := cmp.Diff(want, f.rec.Kinds()); diff != "" {
		t.Errorf("event kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_LinkIdempotent(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "alice")
	b := f.create(t, bob, "bob")
	target := types.CharacterTarget{CharacterID: b}

	first := f.link(t, alice, a, target, types.LinkTypeFollow)
	second := f.link(t, alice, a, target, types.LinkTypeFollow)
	assert.Equal(t, first, second)

	l, err := f.e.Linklist(f.ctx, first)
	require.NoError(t, err)
	assert.Len(t, l.Members, 1)
	assert.Equal(t, uint64(1), f.e.Counters(f.ctx).LastLinklistID)
}

func TestEngine_UnlinkIdempotent(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "alice")
	b := f.create(t, bob, "bob")
	target := types.CharacterTarget{CharacterID: b}

	err := f.e.Unlink(f.ctx, alice, a, target, types.LinkTypeFollow)
	require.ErrorIs(t, err, types.ErrUnattachedLinklist, "never-attached type")

	f.link(t, alice, a, target, types.LinkTypeFollow)
	require.NoError(t, f.e.Unlink(f.ctx, alice, a, target, types.LinkTypeFollow))
	require.NoError(t, f.e.Unlink(f.ctx, alice, a, target, types.LinkTypeFollow))
	require.NoError(t, f.e.Unlink(f.ctx, alice, a, types.AnyURITarget{URI: "never-linked"}, types.LinkTypeFollow))

	err = f.e.Unlink(f.ctx, alice, a, target, types.LinkTypeLike)
	assert.ErrorIs(t, err, types.ErrUnattachedLinklist)
	assert.ErrorIs(t, f.e.Unlink(f.ctx, bob, a, target, types.LinkTypeFollow), types.ErrNotCharacterOwner)
}

func TestEngine_LinkAllTargetKinds(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "alice")
	b := f.create(t, bob, "bob")
	note := f.post(t, bob, b, "ipfs://note")
	nft := common.HexToAddress("0x00000000000000000000000000000000000e7c72")

	targets := []types.Target{
		types.CharacterTarget{CharacterID: b},
		types.AddressTarget{Address: carol},
		types.NoteTarget{CharacterID: b, NoteID: note},
		types.ERC721Target{Contract: nft, TokenID: uint256.NewInt(42)},
		types.LinklistTarget{LinklistID: 7},
		types.AnyURITarget{URI: "https://example.com"},
	}
	for _, target := range targets {
		f.link(t, alice, a, target, types.LinkTypeLike)
	}

	l, err := f.e.Linklist(f.ctx, f.e.LinklistID(f.ctx, a, types.LinkTypeLike))
	require.NoError(t, err)
	require.Len(t, l.Members, len(targets))
	for i, target := range targets {
		assert.Equal(t, target.Kind(), l.Members[i].Kind)
		assert.Equal(t, target.Key(), l.Members[i].Key)
	}

	assert.Equal(t, []uint64{b}, f.e.LinkingCharacterIDs(f.ctx, a, types.LinkTypeLike))
	assert.Equal(t, []common.Address{carol}, f.e.LinkingAddresses(f.ctx, a, types.LinkTypeLike))
	assert.Equal(t, []types.NoteTarget{{CharacterID: b, NoteID: note}}, f.e.LinkingNotes(f.ctx, a, types.LinkTypeLike))
	assert.Equal(t, []uint64{7}, f.e.LinkingLinklists(f.ctx, a, types.LinkTypeLike))
	assert.Equal(t, []string{"https://example.com"}, f.e.LinkingAnyURIs(f.ctx, a, types.LinkTypeLike))
	erc721s := f.e.LinkingERC721s(f.ctx, a, types.LinkTypeLike)
	require.Len(t, erc721s, 1)
	assert.Equal(t, nft, erc721s[0].Contract)
	assert.Equal(t, uint64(42), erc721s[0].TokenID.Uint64())

	// Other link types are separate lists.
	assert.Empty(t, f.e.LinkingAddresses(f.ctx, a, types.LinkTypeFollow))
}

func TestEngine_LinkTargetResolution(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "alice")
	b := f.create(t, bob, "bob")
	deleted := f.post(t, bob, b, "ipfs://gone")
	require.NoError(t, f.e.DeleteNote(f.ctx, bob, b, deleted))

	tests := []struct {
		name    string
		target  types.Target
		wantErr error
	}{
		{"missing character", types.CharacterTarget{CharacterID: 99}, types.ErrCharacterNotExists},
		{"missing note", types.NoteTarget{CharacterID: b, NoteID: 5}, types.ErrNoteNotExists},
		{"deleted note", types.NoteTarget{CharacterID: b, NoteID: deleted}, types.ErrNoteDeleted},
		{"zero address", types.AddressTarget{}, types.ErrInvalidTarget},
		{"erc721 without token id", types.ERC721Target{Contract: carol}, types.ErrInvalidTarget},
		{"linklist zero", types.LinklistTarget{}, types.ErrInvalidTarget},
		{"empty uri", types.AnyURITarget{}, types.ErrInvalidTarget},
		{"nil target", nil, types.ErrInvalidTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.e.Link(f.ctx, alice, types.LinkInput{FromCharacterID: a, Target: tt.target, LinkType: types.LinkTypeFollow})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Zero(t, f.e.LinklistID(f.ctx, a, types.LinkTypeFollow), "failed links mint no list")
}

func TestEngine_LinkAuthorization(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "alice")
	b := f.create(t, bob, "bob")
	target := types.CharacterTarget{CharacterID: b}

	_, err := f.e.Link(f.ctx, bob, types.LinkInput{FromCharacterID: a, Target: target, LinkType: types.LinkTypeFollow})
	require.ErrorIs(t, err, types.ErrNotCharacterOwner)
	_, err = f.e.Link(f.ctx, alice, types.LinkInput{FromCharacterID: 99, Target: target, LinkType: types.LinkTypeFollow})
	require.ErrorIs(t, err, types.ErrCharacterNotExists)

	require.NoError(t, f.e.SetOperator(f.ctx, alice, a, dave))
	id := f.link(t, dave, a, target, types.LinkTypeFollow)

	l, err := f.e.Linklist(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, alice, l.Owner, "lists are minted to the character owner")
}

func TestEngine_TransferredLinklist(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "alice")
	b := f.create(t, bob, "bob")
	c := f.create(t, carol, "carol")
	id := f.link(t, alice, a, types.CharacterTarget{CharacterID: b}, types.LinkTypeFollow)

	require.ErrorIs(t, f.e.TransferLinklist(f.ctx, bob, alice, bob, id), types.ErrNotOwner)
	require.ErrorIs(t, f.e.TransferLinklist(f.ctx, alice, alice, common.Address{}, id), types.ErrInvalidRecipient)
	require.ErrorIs(t, f.e.TransferLinklist(f.ctx, alice, alice, carol, 42), types.ErrLinklistNotExists)
	require.NoError(t, f.e.TransferLinklist(f.ctx, alice, alice, carol, id))

	assert.Equal(t, id, f.e.LinklistID(f.ctx, a, types.LinkTypeFollow), "binding survives transfer")
	l, err := f.e.Linklist(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, carol, l.Owner)

	_, err = f.e.Link(f.ctx, alice, types.LinkInput{FromCharacterID: a, Target: types.CharacterTarget{CharacterID: c}, LinkType: types.LinkTypeFollow})
	assert.ErrorIs(t, err, types.ErrNotLinklistOwner)
	err = f.e.Unlink(f.ctx, alice, a, types.CharacterTarget{CharacterID: b}, types.LinkTypeFollow)
	assert.ErrorIs(t, err, types.ErrNotLinklistOwner)

	assert.Equal(t, []uint64{b}, f.e.LinkingCharacterIDs(f.ctx, a, types.LinkTypeFollow))

	// Handing the list back restores write access.
	require.NoError(t, f.e.TransferLinklist(f.ctx, carol, carol, alice, id))
	f.link(t, alice, a, types.CharacterTarget{CharacterID: c}, types.LinkTypeFollow)
	assert.Equal(t, []uint64{b, c}, f.e.LinkingCharacterIDs(f.ctx, a, types.LinkTypeFollow))
}

func TestEngine_LinklistURIAndModule(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "alice")
	id := f.link(t, alice, a, types.AnyURITarget{URI: "ipfs://x"}, types.LinkTypeLike)

	require.ErrorIs(t, f.e.SetLinklistURI(f.ctx, bob, id, "ipfs://meta"), types.ErrNotOwner)
	require.NoError(t, f.e.SetLinklistURI(f.ctx, alice, id, "ipfs://meta"))

	f.e.Modules().RegisterLinkModule(moduleAddr, linkModuleFunc{})
	require.NoError(t, f.e.SetLinkModule4Linklist(f.ctx, alice, id, moduleAddr, nil))

	l, err := f.e.Linklist(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://meta", l.URI)
	assert.Equal(t, moduleAddr, l.LinkModule)
}

func TestEngine_CharacterTransferResetsBindings(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "alice")
	b := f.create(t, bob, "bob")
	first := f.link(t, alice, a, types.CharacterTarget{CharacterID: b}, types.LinkTypeFollow)

	require.NoError(t, f.e.TransferCharacter(f.ctx, alice, alice, carol, a))
	assert.Zero(t, f.e.LinklistID(f.ctx, a, types.LinkTypeFollow))
	assert.Empty(t, f.e.LinkingCharacterIDs(f.ctx, a, types.LinkTypeFollow))

	old, err := f.e.Linklist(f.ctx, first)
	require.NoError(t, err)
	assert.Equal(t, alice, old.Owner, "old list stays with the previous owner")
	assert.Len(t, old.Members, 1)

	second := f.link(t, carol, a, types.CharacterTarget{CharacterID: b}, types.LinkTypeFollow)
	assert.NotEqual(t, first, second)
	fresh, err := f.e.Linklist(f.ctx, second)
	require.NoError(t, err)
	assert.Equal(t, carol, fresh.Owner)
}

func TestEngine_DetachLinklist(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "alice")
	id := f.link(t, alice, a, types.AnyURITarget{URI: "ipfs://x"}, types.LinkTypeLike)

	require.ErrorIs(t, f.e.DetachLinklist(f.ctx, bob, a, types.LinkTypeLike), types.ErrNotCharacterOwner)
	require.ErrorIs(t, f.e.DetachLinklist(f.ctx, alice, a, types.LinkTypeFollow), types.ErrUnattachedLinklist)
	require.NoError(t, f.e.DetachLinklist(f.ctx, alice, a, types.LinkTypeLike))

	assert.Zero(t, f.e.LinklistID(f.ctx, a, types.LinkTypeLike))
	l, err := f.e.Linklist(f.ctx, id)
	require.NoError(t, err)
	assert.Len(t, l.Members, 1)

	next := f.link(t, alice, a, types.AnyURITarget{URI: "ipfs://y"}, types.LinkTypeLike)
	assert.Equal(t, id+1, next)
}

func TestEngine_CreateThenLinkCharacter(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "alice")

	id, err := f.e.CreateThenLinkCharacter(f.ctx, alice, a, carol, types.LinkTypeFollow)
	require.NoError(t, err)

	c, err := f.e.Character(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, carol, c.Owner)
	assert.Equal(t, strings.ToLower(carol.Hex()), c.Handle)
	assert.Equal(t, id, f.e.PrimaryCharacterID(f.ctx, carol))
	assert.Equal(t, []uint64{id}, f.e.LinkingCharacterIDs(f.ctx, a, types.LinkTypeFollow))

	_, err = f.e.CreateThenLinkCharacter(f.ctx, alice, a, carol, types.LinkTypeFollow)
	assert.ErrorIs(t, err, types.ErrTargetAlreadyHasPrimaryCharacter)

	_, err = f.e.CreateThenLinkCharacter(f.ctx, bob, a, dave, types.LinkTypeFollow)
	assert.ErrorIs(t, err, types.ErrNotCharacterOwner)
	assert.Zero(t, f.e.PrimaryCharacterID(f.ctx, dave))
}

func TestEngine_LinkingCharacterIDsOmitsBurned(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "alice")
	b := f.create(t, bob, "bob")
	c := f.create(t, carol, "carol")
	f.link(t, alice, a, types.CharacterTarget{CharacterID: b}, types.LinkTypeFollow)
	f.link(t, alice, a, types.CharacterTarget{CharacterID: c}, types.LinkTypeFollow)

	require.NoError(t, f.e.Burn(f.ctx, bob, b))

	assert.Equal(t, []uint64{c}, f.e.LinkingCharacterIDs(f.ctx, a, types.LinkTypeFollow))
	l, err := f.e.Linklist(f.ctx, 1)
	require.NoError(t, err)
	assert.Len(t, l.Members, 2, "membership is not purged")
}

func TestEngine_LinkingKeyLookups(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "alice")
	b := f.create(t, bob, "bob")
	note := f.post(t, bob, b, "ipfs://note")
	nft := common.HexToAddress("0x00000000000000000000000000000000000e7c72")

	noteTarget := types.NoteTarget{CharacterID: b, NoteID: note}
	erc := types.ERC721Target{Contract: nft, TokenID: uint256.NewInt(9)}
	uri := types.AnyURITarget{URI: "ipfs://anything"}
	f.link(t, alice, a, noteTarget, types.LinkTypeLike)
	f.link(t, alice, a, erc, types.LinkTypeLike)

	// Targets referenced only by a note are resolvable too.
	_, err := f.e.PostNote(f.ctx, alice, types.PostNoteInput{CharacterID: a, Target: uri, ContentURI: "ipfs://comment"})
	require.NoError(t, err)

	gotNote, err := f.e.LinkingNote(f.ctx, noteTarget.Key())
	require.NoError(t, err)
	assert.Equal(t, noteTarget, gotNote)

	gotERC, err := f.e.LinkingERC721(f.ctx, erc.Key())
	require.NoError(t, err)
	assert.Equal(t, nft, gotERC.Contract)
	assert.Equal(t, uint64(9), gotERC.TokenID.Uint64())

	gotURI, err := f.e.LinkingAnyURI(f.ctx, uri.Key())
	require.NoError(t, err)
	assert.Equal(t, uri.URI, gotURI)

	_, err = f.e.LinkingAnyURI(f.ctx, types.AnyURITarget{URI: "unknown"}.Key())
	assert.ErrorIs(t, err, types.ErrInvalidTarget)
	_, err = f.e.LinkingNote(f.ctx, uri.Key())
	assert.ErrorIs(t, err, types.ErrInvalidTarget, "keys are scoped by kind")
}

func TestEngine_AddressLinkModule(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "alice")

	var seen []common.Address
	f.e.Modules().RegisterLinkModule(moduleAddr, linkModuleFunc{
		process: func(_ context.Context, caller common.Address, _ uint64, _ types.Target, _ []byte) error {
			seen = append(seen, caller)
			return nil
		},
	})
	require.NoError(t, f.e.SetLinkModule4Address(f.ctx, carol, moduleAddr, nil))
	assert.Equal(t, moduleAddr, f.e.LinkModule4Address(f.ctx, carol))

	f.link(t, alice, a, types.AddressTarget{Address: carol}, types.LinkTypeFollow)
	f.link(t, alice, a, types.AddressTarget{Address: dave}, types.LinkTypeFollow)
	assert.Equal(t, []common.Address{alice}, seen, "only carol's module runs")

	require.NoError(t, f.e.SetLinkModule4Address(f.ctx, carol, common.Address{}, nil))
	assert.Equal(t, common.Address{}, f.e.LinkModule4Address(f.ctx, carol))
}
