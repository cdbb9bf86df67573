package graph

import (
	"cmp"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mesh-intelligence/loom/pkg/types"
)

// State is the in-memory graph. Records are held by pointer and are never
// mutated in place once published: writers put a modified clone, so an undo
// only has to restore the previous pointer.
type State struct {
	counters       types.Counters
	characters     map[uint64]*types.Character
	handles        map[string]uint64
	primaries      map[common.Address]uint64
	bindings       map[types.LinklistKey]uint64
	linklists      map[uint64]*types.Linklist
	notes          map[types.NoteRef]*types.Note
	mintNFTs       map[common.Address]*types.MintNFT
	addressModules map[common.Address]common.Address
	targets        map[targetKey]types.Target
}

// targetKey indexes targets by their canonical encoding for key lookups.
type targetKey struct {
	kind types.Kind
	key  common.Hash
}

func newState() *State {
	return &State{
		characters:     make(map[uint64]*types.Character),
		handles:        make(map[string]uint64),
		primaries:      make(map[common.Address]uint64),
		bindings:       make(map[types.LinklistKey]uint64),
		linklists:      make(map[uint64]*types.Linklist),
		notes:          make(map[types.NoteRef]*types.Note),
		mintNFTs:       make(map[common.Address]*types.MintNFT),
		addressModules: make(map[common.Address]common.Address),
		targets:        make(map[targetKey]types.Target),
	}
}

// load replaces the state with a full snapshot from a store.
func (s *State) load(cs *types.ChangeSet) {
	*s = *newState()
	s.counters = cs.Counters
	for _, item := range cs.Targets {
		s.targets[targetKey{item.Kind, item.Key}] = item.Target
	}
	for _, c := range cs.Characters {
		s.characters[c.CharacterID] = c
		if c.Handle != "" {
			s.handles[c.Handle] = c.CharacterID
		}
	}
	for addr, id := range cs.Primaries {
		if id != 0 {
			s.primaries[addr] = id
		}
	}
	for _, b := range cs.Bindings {
		if b.LinklistID != 0 {
			s.bindings[types.LinklistKey{CharacterID: b.CharacterID, LinkType: b.LinkType}] = b.LinklistID
		}
	}
	for _, l := range cs.Linklists {
		s.linklists[l.LinklistID] = l
		for _, m := range l.Members {
			s.targets[targetKey{m.Kind, m.Key}] = m.Target
		}
	}
	for _, n := range cs.Notes {
		s.notes[n.Ref()] = n
		if !n.Target.IsZero() {
			s.targets[targetKey{n.Target.Kind, n.Target.Key}] = n.Target.Target
		}
	}
	for _, m := range cs.MintNFTs {
		s.mintNFTs[m.Address] = m
	}
	for addr, mod := range cs.AddressModules {
		if mod != (common.Address{}) {
			s.addressModules[addr] = mod
		}
	}
}

// tx journals the writes of one operation so they can be undone, and tracks
// which records a commit must persist.
type tx struct {
	id     string
	s      *State
	now    func() time.Time
	undo   []func()
	events []types.Event
	dirty  dirtySet
}

type dirtySet struct {
	characters     map[uint64]struct{}
	primaries      map[common.Address]struct{}
	bindings       map[types.LinklistKey]struct{}
	linklists      map[uint64]struct{}
	notes          map[types.NoteRef]struct{}
	mintNFTs       map[common.Address]struct{}
	addressModules map[common.Address]struct{}
	targets        map[targetKey]struct{}
}

// savepoint is a position in the journal.
type savepoint struct {
	undo   int
	events int
}

func newTx(s *State, now func() time.Time) *tx {
	return &tx{
		id:  newTxID(),
		s:   s,
		now: now,
		dirty: dirtySet{
			characters:     make(map[uint64]struct{}),
			primaries:      make(map[common.Address]struct{}),
			bindings:       make(map[types.LinklistKey]struct{}),
			linklists:      make(map[uint64]struct{}),
			notes:          make(map[types.NoteRef]struct{}),
			mintNFTs:       make(map[common.Address]struct{}),
			addressModules: make(map[common.Address]struct{}),
			targets:        make(map[targetKey]struct{}),
		},
	}
}

func (t *tx) savepoint() savepoint {
	return savepoint{undo: len(t.undo), events: len(t.events)}
}

// rollbackTo undoes every write made after sp, newest first, and drops the
// events raised after it. Dirty marks stay; a commit re-reads current values.
func (t *tx) rollbackTo(sp savepoint) {
	for i := len(t.undo) - 1; i >= sp.undo; i-- {
		t.undo[i]()
	}
	t.undo = t.undo[:sp.undo]
	t.events = t.events[:sp.events]
}

// emit buffers ev until commit.
func (t *tx) emit(ev types.Event) {
	ev.EventID = newTxID()
	ev.Timestamp = t.now().UTC()
	t.events = append(t.events, ev)
}

// next increments a counter and returns the new value.
func (t *tx) next(c *uint64) uint64 {
	old := *c
	t.undo = append(t.undo, func() { *c = old })
	*c = old + 1
	return *c
}

// put sets m[k] = v and journals the previous entry.
func put[K comparable, V any](t *tx, m map[K]V, dirty map[K]struct{}, k K, v V) {
	old, had := m[k]
	t.undo = append(t.undo, func() {
		if had {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
	m[k] = v
	if dirty != nil {
		dirty[k] = struct{}{}
	}
}

// del removes m[k] and journals the previous entry.
func del[K comparable, V any](t *tx, m map[K]V, dirty map[K]struct{}, k K) {
	old, had := m[k]
	if !had {
		return
	}
	t.undo = append(t.undo, func() { m[k] = old })
	delete(m, k)
	if dirty != nil {
		dirty[k] = struct{}{}
	}
}

func (t *tx) putCharacter(c *types.Character) {
	put(t, t.s.characters, t.dirty.characters, c.CharacterID, c)
}

func (t *tx) putLinklist(l *types.Linklist) {
	put(t, t.s.linklists, t.dirty.linklists, l.LinklistID, l)
}

func (t *tx) putNote(n *types.Note) {
	put(t, t.s.notes, t.dirty.notes, n.Ref(), n)
}

func (t *tx) putMintNFT(m *types.MintNFT) {
	put(t, t.s.mintNFTs, t.dirty.mintNFTs, m.Address, m)
}

func (t *tx) putBinding(k types.LinklistKey, id uint64) {
	put(t, t.s.bindings, t.dirty.bindings, k, id)
}

func (t *tx) putPrimary(addr common.Address, id uint64) {
	put(t, t.s.primaries, t.dirty.primaries, addr, id)
}

// remember records a target for later key lookups.
func (t *tx) remember(item types.LinkItem) {
	k := targetKey{item.Kind, item.Key}
	if _, ok := t.s.targets[k]; ok {
		return
	}
	put(t, t.s.targets, t.dirty.targets, k, item.Target)
}

// changeSet collects the current value of every record the transaction
// touched.
func (t *tx) changeSet() *types.ChangeSet {
	s := t.s
	cs := &types.ChangeSet{
		Counters:       s.counters,
		Primaries:      make(map[common.Address]uint64, len(t.dirty.primaries)),
		AddressModules: make(map[common.Address]common.Address, len(t.dirty.addressModules)),
		Events:         t.events,
	}
	for _, id := range sortedKeys(t.dirty.characters) {
		if c, ok := s.characters[id]; ok {
			cs.Characters = append(cs.Characters, c)
		} else {
			cs.DeletedCharacters = append(cs.DeletedCharacters, id)
		}
	}
	for addr := range t.dirty.primaries {
		cs.Primaries[addr] = s.primaries[addr]
	}
	for k := range t.dirty.bindings {
		cs.Bindings = append(cs.Bindings, types.LinklistBinding{
			CharacterID: k.CharacterID,
			LinkType:    k.LinkType,
			LinklistID:  s.bindings[k],
		})
	}
	slices.SortFunc(cs.Bindings, func(a, b types.LinklistBinding) int {
		if c := cmp.Compare(a.CharacterID, b.CharacterID); c != 0 {
			return c
		}
		return slices.Compare(a.LinkType[:], b.LinkType[:])
	})
	for _, id := range sortedKeys(t.dirty.linklists) {
		if l, ok := s.linklists[id]; ok {
			cs.Linklists = append(cs.Linklists, l)
		}
	}
	for ref := range t.dirty.notes {
		if n, ok := s.notes[ref]; ok {
			cs.Notes = append(cs.Notes, n)
		}
	}
	slices.SortFunc(cs.Notes, func(a, b *types.Note) int {
		if c := cmp.Compare(a.CharacterID, b.CharacterID); c != 0 {
			return c
		}
		return cmp.Compare(a.NoteID, b.NoteID)
	})
	for addr := range t.dirty.mintNFTs {
		if m, ok := s.mintNFTs[addr]; ok {
			cs.MintNFTs = append(cs.MintNFTs, m)
		}
	}
	for addr := range t.dirty.addressModules {
		cs.AddressModules[addr] = s.addressModules[addr]
	}
	for k := range t.dirty.targets {
		if target, ok := s.targets[k]; ok {
			cs.Targets = append(cs.Targets, types.LinkItem{Kind: k.kind, Key: k.key, Target: target})
		}
	}
	slices.SortFunc(cs.Targets, func(a, b types.LinkItem) int {
		if c := slices.Compare(a.Kind[:], b.Kind[:]); c != 0 {
			return c
		}
		return slices.Compare(a.Key[:], b.Key[:])
	})
	return cs
}

func sortedKeys[K cmp.Ordered](m map[K]struct{}) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
