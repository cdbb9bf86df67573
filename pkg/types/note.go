package types

import "github.com/ethereum/go-ethereum/common"

// Note is an append-only content record of a character. Notes are addressed
// by (CharacterID, NoteID) with NoteID starting at 1.
//
// Deleted and Locked are independent one-way flags. A locked note keeps its
// content and modules fixed but may still be deleted; a deleted note cannot
// be linked or minted.
type Note struct {
	CharacterID uint64         `json:"character_id"`
	NoteID      uint64         `json:"note_id"`
	Target      LinkItem       `json:"target"`
	ContentURI  string         `json:"content_uri"`
	LinkModule  common.Address `json:"link_module"`
	MintModule  common.Address `json:"mint_module"`
	MintNFT     common.Address `json:"mint_nft"`
	Deleted     bool           `json:"deleted"`
	Locked      bool           `json:"locked"`
}

// NoteRef addresses a note.
type NoteRef struct {
	CharacterID uint64
	NoteID      uint64
}

// Ref returns the address of n.
func (n *Note) Ref() NoteRef {
	return NoteRef{CharacterID: n.CharacterID, NoteID: n.NoteID}
}

// Clone returns a copy of n.
func (n *Note) Clone() *Note {
	cp := *n
	return &cp
}

// checkMutable returns ErrNoteDeleted or ErrNoteLocked when the note's
// content and modules are frozen.
func (n *Note) checkMutable() error {
	if n.Deleted {
		return ErrNoteDeleted
	}
	if n.Locked {
		return ErrNoteLocked
	}
	return nil
}

// SetContentURI replaces the content pointer.
// Returns ErrNoteDeleted or ErrNoteLocked when the note is frozen.
func (n *Note) SetContentURI(uri string) error {
	if err := n.checkMutable(); err != nil {
		return err
	}
	n.ContentURI = uri
	return nil
}

// SetLinkModule replaces the link module.
// Returns ErrNoteDeleted or ErrNoteLocked when the note is frozen.
func (n *Note) SetLinkModule(module common.Address) error {
	if err := n.checkMutable(); err != nil {
		return err
	}
	n.LinkModule = module
	return nil
}

// SetMintModule replaces the mint module.
// Returns ErrNoteDeleted or ErrNoteLocked when the note is frozen.
func (n *Note) SetMintModule(module common.Address) error {
	if err := n.checkMutable(); err != nil {
		return err
	}
	n.MintModule = module
	return nil
}

// Lock freezes content and modules. Idempotent, and independent of Deleted.
func (n *Note) Lock() {
	n.Locked = true
}

// Delete marks the note deleted regardless of its lock state. Idempotent.
func (n *Note) Delete() {
	n.Deleted = true
}

// PostNoteInput carries the arguments of PostNote. Target may be nil for a
// note that points at nothing.
type PostNoteInput struct {
	CharacterID        uint64
	Target             Target
	ContentURI         string
	LinkModule         common.Address
	LinkModuleInitData []byte
	MintModule         common.Address
	MintModuleInitData []byte
	Locked             bool
}

// MintNoteInput carries the arguments of MintNote.
type MintNoteInput struct {
	CharacterID    uint64
	NoteID         uint64
	To             common.Address
	MintModuleData []byte
}
