package types

import "github.com/ethereum/go-ethereum/common"

// MintNFT is the collectible token contract of one note, deployed on the
// note's first mint. Token ids start at 1 and increase by one per mint.
type MintNFT struct {
	Address     common.Address            `json:"address"`
	CharacterID uint64                    `json:"character_id"`
	NoteID      uint64                    `json:"note_id"`
	TotalSupply uint64                    `json:"total_supply"`
	Owners      map[uint64]common.Address `json:"owners"`
}

// Clone returns a deep copy of m.
func (m *MintNFT) Clone() *MintNFT {
	cp := *m
	cp.Owners = make(map[uint64]common.Address, len(m.Owners))
	for id, owner := range m.Owners {
		cp.Owners[id] = owner
	}
	return &cp
}

// Mint assigns the next token id to to and returns it.
func (m *MintNFT) Mint(to common.Address) uint64 {
	m.TotalSupply++
	if m.Owners == nil {
		m.Owners = make(map[uint64]common.Address)
	}
	m.Owners[m.TotalSupply] = to
	return m.TotalSupply
}

// OwnerOf returns the holder of tokenID.
// Returns ErrMintTokenNotExists when the token was never minted.
func (m *MintNFT) OwnerOf(tokenID uint64) (common.Address, error) {
	owner, ok := m.Owners[tokenID]
	if !ok {
		return common.Address{}, ErrMintTokenNotExists
	}
	return owner, nil
}
