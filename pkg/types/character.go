package types

import "github.com/ethereum/go-ethereum/common"

// MaxHandleLength is the longest handle a character may carry.
const MaxHandleLength = 31

// Character is the identity token of the social graph. It is owned by
// exactly one address; burned characters are removed from the graph but
// their id is never reused.
type Character struct {
	CharacterID uint64         `json:"character_id"`
	Owner       common.Address `json:"owner"`
	Handle      string         `json:"handle"`
	URI         string         `json:"uri"`
	NoteCount   uint64         `json:"note_count"`
	LinkModule  common.Address `json:"link_module"`
	SocialToken common.Address `json:"social_token"`
	Operator    common.Address `json:"operator"`
}

// Clone returns a copy of c. The engine copies records before mutating them
// so a rolled-back operation leaves earlier snapshots intact.
func (c *Character) Clone() *Character {
	cp := *c
	return &cp
}

// IsAuthorized reports whether caller is the owner or the delegated operator.
func (c *Character) IsAuthorized(caller common.Address) bool {
	if caller == (common.Address{}) {
		return false
	}
	return caller == c.Owner || caller == c.Operator
}

// CreateCharacterInput carries the arguments of CreateCharacter.
type CreateCharacterInput struct {
	To                 common.Address
	Handle             string
	URI                string
	LinkModule         common.Address
	LinkModuleInitData []byte
}
