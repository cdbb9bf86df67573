package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// LinkType is an opaque 32-byte relationship tag such as "follow" or "like".
// Any value is valid; the graph never enumerates link types.
type LinkType [32]byte

// NewLinkType right-pads s into a LinkType. Strings longer than 32 bytes are
// truncated.
func NewLinkType(s string) LinkType {
	var lt LinkType
	copy(lt[:], s)
	return lt
}

// String returns the tag with trailing zero bytes removed.
func (lt LinkType) String() string {
	return string(bytes.TrimRight(lt[:], "\x00"))
}

// Hash returns the tag as a common.Hash for storage and logging.
func (lt LinkType) Hash() common.Hash {
	return common.Hash(lt)
}

// MarshalText encodes the tag as its readable string.
func (lt LinkType) MarshalText() ([]byte, error) {
	return []byte(lt.String()), nil
}

// UnmarshalText decodes a readable tag.
func (lt *LinkType) UnmarshalText(b []byte) error {
	if len(b) > len(lt) {
		return fmt.Errorf("link type %q longer than 32 bytes", b)
	}
	*lt = NewLinkType(string(b))
	return nil
}

// Common link types.
var (
	LinkTypeFollow = NewLinkType("follow")
	LinkTypeLike   = NewLinkType("like")
)

// Kind tags a Target variant. The tag bytes match the on-chain link item type.
type Kind [32]byte

// Target kinds.
var (
	KindCharacter = Kind(NewLinkType("CharacterLink"))
	KindAddress   = Kind(NewLinkType("AddressLink"))
	KindNote      = Kind(NewLinkType("NoteLink"))
	KindERC721    = Kind(NewLinkType("ERC721Link"))
	KindLinklist  = Kind(NewLinkType("LinklistLink"))
	KindAnyURI    = Kind(NewLinkType("AnyLink"))
)

// String returns the tag with trailing zero bytes removed.
func (k Kind) String() string {
	return string(bytes.TrimRight(k[:], "\x00"))
}

// kindNames maps short names used on the command line and in URLs.
var kindNames = map[string]Kind{
	"character": KindCharacter,
	"address":   KindAddress,
	"note":      KindNote,
	"erc721":    KindERC721,
	"linklist":  KindLinklist,
	"anyuri":    KindAnyURI,
}

// ParseKind accepts a short name such as "note" or a canonical tag such as
// "NoteLink".
func ParseKind(name string) (Kind, error) {
	if k, ok := kindNames[strings.ToLower(name)]; ok {
		return k, nil
	}
	for _, k := range kindNames {
		if k.String() == name {
			return k, nil
		}
	}
	return Kind{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidTarget, name)
}

// Target is a polymorphic reference to anything a character can link to or
// post a note on. It is a closed set: CharacterTarget, AddressTarget,
// NoteTarget, ERC721Target, LinklistTarget and AnyURITarget.
type Target interface {
	// Kind returns the variant tag.
	Kind() Kind
	// Key returns the canonical 32-byte key. Two targets refer to the same
	// logical object exactly when Kind and Key are equal.
	Key() common.Hash
	isTarget()
}

// CharacterTarget points at a character.
type CharacterTarget struct {
	CharacterID uint64 `json:"character_id"`
}

// AddressTarget points at an account address.
type AddressTarget struct {
	Address common.Address `json:"address"`
}

// NoteTarget points at a note of a character.
type NoteTarget struct {
	CharacterID uint64 `json:"character_id"`
	NoteID      uint64 `json:"note_id"`
}

// ERC721Target points at a token of an external ERC-721 contract.
type ERC721Target struct {
	Contract common.Address `json:"contract"`
	TokenID  *uint256.Int   `json:"-"`
}

// LinklistTarget points at a link-list.
type LinklistTarget struct {
	LinklistID uint64 `json:"linklist_id"`
}

// AnyURITarget points at an arbitrary URI.
type AnyURITarget struct {
	URI string `json:"uri"`
}

func (CharacterTarget) Kind() Kind { return KindCharacter }
func (AddressTarget) Kind() Kind   { return KindAddress }
func (NoteTarget) Kind() Kind      { return KindNote }
func (ERC721Target) Kind() Kind    { return KindERC721 }
func (LinklistTarget) Kind() Kind  { return KindLinklist }
func (AnyURITarget) Kind() Kind    { return KindAnyURI }

func (t CharacterTarget) Key() common.Hash { return idKey(t.CharacterID) }
func (t AddressTarget) Key() common.Hash   { return common.BytesToHash(t.Address.Bytes()) }
func (t LinklistTarget) Key() common.Hash  { return idKey(t.LinklistID) }

func (t NoteTarget) Key() common.Hash {
	c, n := idKey(t.CharacterID), idKey(t.NoteID)
	return crypto.Keccak256Hash([]byte("Note"), c[:], n[:])
}

func (t ERC721Target) Key() common.Hash {
	var id [32]byte
	if t.TokenID != nil {
		id = t.TokenID.Bytes32()
	}
	return crypto.Keccak256Hash([]byte("ERC721"), t.Contract.Bytes(), id[:])
}

func (t AnyURITarget) Key() common.Hash {
	return crypto.Keccak256Hash([]byte("AnyUri"), []byte(t.URI))
}

func (CharacterTarget) isTarget() {}
func (AddressTarget) isTarget()   {}
func (NoteTarget) isTarget()      {}
func (ERC721Target) isTarget()    {}
func (LinklistTarget) isTarget()  {}
func (AnyURITarget) isTarget()    {}

func idKey(id uint64) common.Hash {
	return common.Hash(uint256.NewInt(id).Bytes32())
}

// LinkItem is a Target together with its canonical encoding. Link-list
// members and note targets are stored as LinkItems.
type LinkItem struct {
	Kind   Kind
	Key    common.Hash
	Target Target
}

// NewLinkItem encodes t.
func NewLinkItem(t Target) LinkItem {
	return LinkItem{Kind: t.Kind(), Key: t.Key(), Target: t}
}

// IsZero reports whether the item carries no target.
func (li LinkItem) IsZero() bool {
	return li.Target == nil
}

// linkItemJSON is the storage envelope for a LinkItem.
type linkItemJSON struct {
	Kind    string          `json:"kind"`
	Key     common.Hash     `json:"key"`
	TokenID string          `json:"token_id,omitempty"`
	Target  json.RawMessage `json:"target"`
}

// MarshalJSON encodes the item with a kind discriminator.
func (li LinkItem) MarshalJSON() ([]byte, error) {
	if li.Target == nil {
		return []byte("null"), nil
	}
	raw, err := json.Marshal(li.Target)
	if err != nil {
		return nil, err
	}
	env := linkItemJSON{Kind: li.Kind.String(), Key: li.Key, Target: raw}
	if t, ok := li.Target.(ERC721Target); ok && t.TokenID != nil {
		env.TokenID = t.TokenID.Dec()
	}
	return json.Marshal(env)
}

// UnmarshalJSON decodes an item written by MarshalJSON.
func (li *LinkItem) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*li = LinkItem{}
		return nil
	}
	var env linkItemJSON
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	var (
		t   Target
		err error
	)
	switch Kind(NewLinkType(env.Kind)) {
	case KindCharacter:
		var v CharacterTarget
		err = json.Unmarshal(env.Target, &v)
		t = v
	case KindAddress:
		var v AddressTarget
		err = json.Unmarshal(env.Target, &v)
		t = v
	case KindNote:
		var v NoteTarget
		err = json.Unmarshal(env.Target, &v)
		t = v
	case KindERC721:
		var v ERC721Target
		if err = json.Unmarshal(env.Target, &v); err == nil && env.TokenID != "" {
			v.TokenID, err = uint256.FromDecimal(env.TokenID)
		}
		t = v
	case KindLinklist:
		var v LinklistTarget
		err = json.Unmarshal(env.Target, &v)
		t = v
	case KindAnyURI:
		var v AnyURITarget
		err = json.Unmarshal(env.Target, &v)
		t = v
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTarget, env.Kind)
	}
	if err != nil {
		return fmt.Errorf("decoding %s target: %w", env.Kind, err)
	}
	*li = NewLinkItem(t)
	return nil
}
