package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind names an event of the indexer-facing event surface.
type EventKind string

// Event kinds.
const (
	EventCharacterCreated  EventKind = "CharacterCreated"
	EventHandleSet         EventKind = "HandleSet"
	EventCharacterURISet   EventKind = "CharacterUriSet"
	EventPrimarySet        EventKind = "PrimaryCharacterSet"
	EventOperatorSet       EventKind = "OperatorSet"
	EventLinkModuleSet     EventKind = "LinkModuleSet"
	EventCharacterTransfer EventKind = "CharacterTransferred"
	EventCharacterBurned   EventKind = "CharacterBurned"
	EventLinklistCreated   EventKind = "LinklistCreated"
	EventLinklistTransfer  EventKind = "LinklistTransferred"
	EventLinklistDetached  EventKind = "LinklistDetached"
	EventLinklistURISet    EventKind = "LinklistUriSet"
	EventLinkCreated       EventKind = "LinkCreated"
	EventLinkRemoved       EventKind = "LinkRemoved"
	EventNoteCreated       EventKind = "NoteCreated"
	EventNoteURISet        EventKind = "NoteUriSet"
	EventNoteModuleSet     EventKind = "NoteModuleSet"
	EventNoteDeleted       EventKind = "NoteDeleted"
	EventNoteLocked        EventKind = "NoteLocked"
	EventNoteMinted        EventKind = "NoteMinted"
	EventMintTokenTransfer EventKind = "MintTokenTransferred"
	EventModuleApproval    EventKind = "ModuleApprovalSet"
)

// Event is one entry of the event surface. Fields that do not apply to a
// kind are left zero.
type Event struct {
	EventID     string         `json:"event_id"`
	Kind        EventKind      `json:"kind"`
	Caller      common.Address `json:"caller"`
	CharacterID uint64         `json:"character_id,omitempty"`
	Owner       common.Address `json:"owner,omitempty"`
	To          common.Address `json:"to,omitempty"`
	Handle      string         `json:"handle,omitempty"`
	URI         string         `json:"uri,omitempty"`
	Target      LinkItem       `json:"target,omitempty"`
	LinkType    LinkType       `json:"link_type,omitempty"`
	LinklistID  uint64         `json:"linklist_id,omitempty"`
	NoteID      uint64         `json:"note_id,omitempty"`
	Module      common.Address `json:"module,omitempty"`
	MintNFT     common.Address `json:"mint_nft,omitempty"`
	TokenID     uint64         `json:"token_id,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}
