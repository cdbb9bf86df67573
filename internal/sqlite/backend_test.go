// Tests for the SQLite store: lifecycle, round trips through the engine, and
// the event log.
package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/go-cmp/cmp"
	"github.com/holiman/uint256"

	"github.com/mesh-intelligence/loom/internal/graph"
	"github.com/mesh-intelligence/loom/pkg/types"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol = common.HexToAddress("0x00000000000000000000000000000000000ca401")
)

func attach(t *testing.T, dir string) *Backend {
	t.Helper()
	b := NewBackend(nil)
	if err := b.Attach(types.DefaultConfig(dir)); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	return b
}

func TestBackend_Attach(t *testing.T) {
	tmpDir := t.TempDir()
	b := attach(t, tmpDir)
	defer b.Detach()

	if _, err := os.Stat(filepath.Join(tmpDir, DatabaseFile)); err != nil {
		t.Fatalf("expected database file: %v", err)
	}
	if err := b.Attach(types.DefaultConfig(tmpDir)); !errors.Is(err, types.ErrAlreadyAttached) {
		t.Errorf("second Attach: got %v, want ErrAlreadyAttached", err)
	}
}

func TestBackend_AttachInvalidConfig(t *testing.T) {
	b := NewBackend(nil)
	err := b.Attach(types.Config{DataDir: t.TempDir()})
	if !errors.Is(err, types.ErrBackendEmpty) {
		t.Errorf("got %v, want ErrBackendEmpty", err)
	}
}

func TestBackend_Detach(t *testing.T) {
	b := attach(t, t.TempDir())
	if err := b.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}
	if err := b.Detach(); err != nil {
		t.Errorf("second Detach should be a no-op, got %v", err)
	}

	ctx := context.Background()
	if _, err := b.Load(ctx); !errors.Is(err, types.ErrStoreDetached) {
		t.Errorf("Load after Detach: got %v, want ErrStoreDetached", err)
	}
	if err := b.Persist(ctx, &types.ChangeSet{}); !errors.Is(err, types.ErrStoreDetached) {
		t.Errorf("Persist after Detach: got %v, want ErrStoreDetached", err)
	}
}

func TestBackend_LoadEmpty(t *testing.T) {
	b := attach(t, t.TempDir())
	defer b.Detach()

	cs, err := b.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cs.Counters != (types.Counters{}) || len(cs.Characters) != 0 {
		t.Errorf("expected empty graph, got %+v", cs)
	}
}

func TestBackend_PersistRemovals(t *testing.T) {
	ctx := context.Background()
	b := attach(t, t.TempDir())
	defer b.Detach()

	follow := types.LinkTypeFollow
	module := common.HexToAddress("0xbeef")
	err := b.Persist(ctx, &types.ChangeSet{
		Counters:       types.Counters{LastCharacterID: 1},
		Characters:     []*types.Character{{CharacterID: 1, Owner: alice, Handle: "alice"}},
		Primaries:      map[common.Address]uint64{alice: 1},
		Bindings:       []types.LinklistBinding{{CharacterID: 1, LinkType: follow, LinklistID: 4}},
		AddressModules: map[common.Address]common.Address{alice: module},
	})
	if err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	err = b.Persist(ctx, &types.ChangeSet{
		Counters:          types.Counters{LastCharacterID: 1},
		DeletedCharacters: []uint64{1},
		Primaries:         map[common.Address]uint64{alice: 0},
		Bindings:          []types.LinklistBinding{{CharacterID: 1, LinkType: follow}},
		AddressModules:    map[common.Address]common.Address{alice: {}},
	})
	if err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	cs, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cs.Characters) != 0 || len(cs.Primaries) != 0 || len(cs.Bindings) != 0 || len(cs.AddressModules) != 0 {
		t.Errorf("expected removals to be applied, got %+v", cs)
	}
	if cs.Counters.LastCharacterID != 1 {
		t.Errorf("counters: got %+v", cs.Counters)
	}
}

func TestBackend_PersistIsAtomic(t *testing.T) {
	ctx := context.Background()
	b := attach(t, t.TempDir())
	defer b.Detach()

	ev := types.Event{EventID: "dup", Kind: types.EventCharacterCreated, Timestamp: time.Now()}
	if err := b.Persist(ctx, &types.ChangeSet{Events: []types.Event{ev}}); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	// The duplicate event id fails the insert after the character row was
	// written; neither may survive.
	err := b.Persist(ctx, &types.ChangeSet{
		Characters: []*types.Character{{CharacterID: 1, Owner: alice, Handle: "alice"}},
		Events:     []types.Event{ev},
	})
	if err == nil {
		t.Fatal("expected duplicate event id to fail")
	}
	cs, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cs.Characters) != 0 {
		t.Errorf("character row survived a failed Persist")
	}
}

// snapshot collects the observable graph for comparison across reopen.
type snapshot struct {
	Counters   types.Counters
	Alice      *types.Character
	Bob        *types.Character
	Primary    uint64
	Following  []uint64
	Linklist   *types.Linklist
	Note       *types.Note
	NFT        *types.MintNFT
	URIs       []string
	AddrModule common.Address
}

func take(t *testing.T, ctx context.Context, e *graph.Engine) snapshot {
	t.Helper()
	var s snapshot
	var err error
	s.Counters = e.Counters(ctx)
	if s.Alice, err = e.CharacterByHandle(ctx, "alice"); err != nil {
		t.Fatalf("alice: %v", err)
	}
	if s.Bob, err = e.CharacterByHandle(ctx, "bob"); err != nil {
		t.Fatalf("bob: %v", err)
	}
	s.Primary = e.PrimaryCharacterID(ctx, bob)
	s.Following = e.LinkingCharacterIDs(ctx, s.Alice.CharacterID, types.LinkTypeFollow)
	if s.Linklist, err = e.Linklist(ctx, e.LinklistID(ctx, s.Alice.CharacterID, types.LinkTypeFollow)); err != nil {
		t.Fatalf("linklist: %v", err)
	}
	if s.Note, err = e.Note(ctx, s.Alice.CharacterID, 1); err != nil {
		t.Fatalf("note: %v", err)
	}
	if s.NFT, err = e.MintNFT(ctx, s.Note.MintNFT); err != nil {
		t.Fatalf("mint nft: %v", err)
	}
	s.URIs = e.LinkingAnyURIs(ctx, s.Alice.CharacterID, types.LinkTypeLike)
	s.AddrModule = e.LinkModule4Address(ctx, carol)
	return s
}

func TestBackend_EngineRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := attach(t, dir)

	e, err := graph.Open(ctx, b)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	a, err := e.CreateCharacter(ctx, alice, types.CreateCharacterInput{To: alice, Handle: "alice"})
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bb, err := e.CreateCharacter(ctx, bob, types.CreateCharacterInput{To: bob, Handle: "bob"})
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}
	steps := []func() error{
		func() error {
			_, err := e.Link(ctx, alice, types.LinkInput{FromCharacterID: a, Target: types.CharacterTarget{CharacterID: bb}, LinkType: types.LinkTypeFollow})
			return err
		},
		func() error {
			_, err := e.Link(ctx, alice, types.LinkInput{FromCharacterID: a, Target: types.AnyURITarget{URI: "https://example.com"}, LinkType: types.LinkTypeLike})
			return err
		},
		func() error {
			_, err := e.PostNote(ctx, alice, types.PostNoteInput{CharacterID: a, ContentURI: "ipfs://hello", Target: types.CharacterTarget{CharacterID: bb}})
			return err
		},
		func() error {
			_, _, err := e.MintNote(ctx, bob, types.MintNoteInput{CharacterID: a, NoteID: 1, To: bob})
			return err
		},
		func() error { return e.LockNote(ctx, alice, a, 1) },
		func() error { return e.SetCharacterURI(ctx, alice, a, "ipfs://profile") },
		func() error { return e.SetLinklistURI(ctx, alice, 1, "ipfs://follows") },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	before := take(t, ctx, e)

	if err := b.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}
	b = attach(t, dir)
	defer b.Detach()

	reopened, err := graph.Open(ctx, b)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	after := take(t, ctx, reopened)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("graph changed across reopen (-before +after):\n%s", diff)
	}

	// Allocators continue where they stopped.
	c, err := reopened.CreateCharacter(ctx, carol, types.CreateCharacterInput{To: carol, Handle: "carol"})
	if err != nil {
		t.Fatalf("create carol: %v", err)
	}
	if c != 3 {
		t.Errorf("next character id: got %d, want 3", c)
	}
	if _, err := reopened.CreateCharacter(ctx, carol, types.CreateCharacterInput{To: carol, Handle: "alice"}); !errors.Is(err, types.ErrHandleExists) {
		t.Errorf("handle index not rebuilt: got %v", err)
	}
	key := types.AnyURITarget{URI: "https://example.com"}.Key()
	if uri, err := reopened.LinkingAnyURI(ctx, key); err != nil || uri != "https://example.com" {
		t.Errorf("LinkingAnyURI after reopen: got %q, %v", uri, err)
	}
}

func TestBackend_UnlinkedTargetsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := attach(t, dir)

	e, err := graph.Open(ctx, b)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	a, err := e.CreateCharacter(ctx, alice, types.CreateCharacterInput{To: alice, Handle: "alice"})
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	if _, err := e.PostNote(ctx, alice, types.PostNoteInput{CharacterID: a, ContentURI: "ipfs://n"}); err != nil {
		t.Fatalf("post: %v", err)
	}

	uri := types.AnyURITarget{URI: "ipfs://x"}
	note := types.NoteTarget{CharacterID: a, NoteID: 1}
	token := types.ERC721Target{Contract: carol, TokenID: uint256.NewInt(7)}
	for _, target := range []types.Target{uri, note, token} {
		if _, err := e.Link(ctx, alice, types.LinkInput{FromCharacterID: a, Target: target, LinkType: types.LinkTypeLike}); err != nil {
			t.Fatalf("link %s: %v", target.Kind(), err)
		}
		if err := e.Unlink(ctx, alice, a, target, types.LinkTypeLike); err != nil {
			t.Fatalf("unlink %s: %v", target.Kind(), err)
		}
	}

	if err := b.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}
	b = attach(t, dir)
	defer b.Detach()
	reopened, err := graph.Open(ctx, b)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}

	if got, err := reopened.LinkingAnyURI(ctx, uri.Key()); err != nil || got != uri.URI {
		t.Errorf("LinkingAnyURI: got %q, %v", got, err)
	}
	if got, err := reopened.LinkingNote(ctx, note.Key()); err != nil || got != note {
		t.Errorf("LinkingNote: got %+v, %v", got, err)
	}
	got, err := reopened.LinkingERC721(ctx, token.Key())
	if err != nil {
		t.Fatalf("LinkingERC721: %v", err)
	}
	if got.Contract != carol || got.TokenID.Uint64() != 7 {
		t.Errorf("LinkingERC721: got %s #%s", got.Contract.Hex(), got.TokenID)
	}
}

func TestBackend_Events(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := attach(t, dir)
	defer b.Detach()

	e, err := graph.Open(ctx, b)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	a, err := e.CreateCharacter(ctx, alice, types.CreateCharacterInput{To: alice, Handle: "alice"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, uri := range []string{"ipfs://1", "ipfs://2"} {
		if _, err := e.PostNote(ctx, alice, types.PostNoteInput{CharacterID: a, ContentURI: uri}); err != nil {
			t.Fatalf("post: %v", err)
		}
	}

	all, err := b.Events(ctx, EventFilter{CharacterID: a})
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	var kinds []types.EventKind
	for _, ev := range all {
		kinds = append(kinds, ev.Kind)
	}
	want := []types.EventKind{
		types.EventCharacterCreated, types.EventPrimarySet,
		types.EventNoteCreated, types.EventNoteCreated,
	}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("event kinds (-want +got):\n%s", diff)
	}

	notes, err := b.Events(ctx, EventFilter{Kind: types.EventNoteCreated, Limit: 1})
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(notes) != 1 || notes[0].NoteID != 1 {
		t.Errorf("filtered events: got %+v", notes)
	}

	path := filepath.Join(dir, "export", "events.jsonl")
	n, err := b.ExportEvents(ctx, path, EventFilter{})
	if err != nil {
		t.Fatalf("ExportEvents failed: %v", err)
	}
	read, err := ReadEventLog(path)
	if err != nil {
		t.Fatalf("ReadEventLog failed: %v", err)
	}
	if len(read) != n || n != len(all) {
		t.Errorf("exported %d, read back %d, stored %d", n, len(read), len(all))
	}
	if read[0].EventID != all[0].EventID {
		t.Errorf("export order: got %s, want %s", read[0].EventID, all[0].EventID)
	}
}

func TestReadEventLog_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	data := `{"event_id":"a","kind":"NoteCreated","caller":"0x0000000000000000000000000000000000000001","timestamp":"2024-01-01T00:00:00Z"}
not json

{"event_id":"b","kind":"NoteLocked","caller":"0x0000000000000000000000000000000000000001","timestamp":"2024-01-01T00:00:00Z"}
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	events, err := ReadEventLog(path)
	if err != nil {
		t.Fatalf("ReadEventLog failed: %v", err)
	}
	if len(events) != 2 || events[1].Kind != types.EventNoteLocked {
		t.Errorf("got %+v", events)
	}
}

func TestBackend_ModuleState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := attach(t, dir)

	got, err := b.ModuleState(ctx)
	if err != nil {
		t.Fatalf("ModuleState failed: %v", err)
	}
	if got != nil {
		t.Fatalf("ModuleState = %q, want nil", got)
	}

	if err := b.PutModuleState(ctx, []byte(`{"v":1}`)); err != nil {
		t.Fatalf("PutModuleState failed: %v", err)
	}
	if err := b.PutModuleState(ctx, []byte(`{"v":2}`)); err != nil {
		t.Fatalf("PutModuleState failed: %v", err)
	}
	b.Detach()

	b = attach(t, dir)
	defer b.Detach()
	got, err = b.ModuleState(ctx)
	if err != nil {
		t.Fatalf("ModuleState failed: %v", err)
	}
	if string(got) != `{"v":2}` {
		t.Errorf("ModuleState = %q, want the last saved state", got)
	}

	cs, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cs.Counters != (types.Counters{}) {
		t.Errorf("module state leaked into counters: %+v", cs.Counters)
	}
}
