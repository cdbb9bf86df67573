package types

import (
	"github.com/ethereum/go-ethereum/common"
)

// Linklist is the transferable collection of link targets for one
// (character, link type) pair. Members keep insertion order and set
// semantics keyed by (Kind, Key).
type Linklist struct {
	LinklistID  uint64         `json:"linklist_id"`
	Owner       common.Address `json:"owner"`
	CharacterID uint64         `json:"character_id"`
	LinkType    LinkType       `json:"link_type"`
	URI         string         `json:"uri"`
	LinkModule  common.Address `json:"link_module"`
	Members     []LinkItem     `json:"members"`
}

// Clone returns a deep copy of l.
func (l *Linklist) Clone() *Linklist {
	cp := *l
	cp.Members = append([]LinkItem(nil), l.Members...)
	return &cp
}

// Contains reports whether the target with the given kind and key is a member.
func (l *Linklist) Contains(kind Kind, key common.Hash) bool {
	return l.indexOf(kind, key) >= 0
}

// Add appends item unless an equal member exists. It reports whether the
// list changed.
func (l *Linklist) Add(item LinkItem) bool {
	if l.Contains(item.Kind, item.Key) {
		return false
	}
	l.Members = append(l.Members, item)
	return true
}

// Remove deletes the member equal to item. It reports whether the list
// changed; removing an absent member is not an error.
func (l *Linklist) Remove(item LinkItem) bool {
	i := l.indexOf(item.Kind, item.Key)
	if i < 0 {
		return false
	}
	l.Members = append(l.Members[:i:i], l.Members[i+1:]...)
	return true
}

// MembersOf returns the members of the given kind in insertion order.
func (l *Linklist) MembersOf(kind Kind) []LinkItem {
	out := []LinkItem{}
	for _, m := range l.Members {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func (l *Linklist) indexOf(kind Kind, key common.Hash) int {
	for i, m := range l.Members {
		if m.Kind == kind && m.Key == key {
			return i
		}
	}
	return -1
}

// LinklistKey addresses the link-list binding of a (character, link type)
// pair.
type LinklistKey struct {
	CharacterID uint64
	LinkType    LinkType
}

// LinklistBinding is a persisted LinklistKey entry. A zero LinklistID means
// the binding was cleared.
type LinklistBinding struct {
	CharacterID uint64   `json:"character_id"`
	LinkType    LinkType `json:"link_type"`
	LinklistID  uint64   `json:"linklist_id"`
}

// LinkInput carries the arguments of Link.
type LinkInput struct {
	FromCharacterID uint64
	Target          Target
	LinkType        LinkType
	Data            []byte
}
