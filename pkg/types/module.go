package types

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// LinkModule is an untrusted extension invoked when something links to the
// object the module is attached to. Any returned error aborts the whole
// triggering operation.
//
// Methods run while the engine holds its write lock. A module may call back
// into the engine only with the context it was given, or a context derived
// from it; such calls join the running operation. A call made with any other
// context blocks on the lock and never returns.
type LinkModule interface {
	// InitializeLinkModule is called when the module is attached to target.
	InitializeLinkModule(ctx context.Context, target Target, data []byte) error

	// ProcessLink is called before fromCharacterID links to target.
	ProcessLink(ctx context.Context, caller common.Address, fromCharacterID uint64, target Target, data []byte) error
}

// MintModule is an untrusted extension invoked when a note is minted. Any
// returned error aborts the whole triggering operation. Calls back into the
// engine follow the same context rule as LinkModule.
type MintModule interface {
	// InitializeMintModule is called when the module is attached to a note.
	InitializeMintModule(ctx context.Context, characterID, noteID uint64, data []byte) error

	// ProcessMint is called before a token of the note is minted to to.
	ProcessMint(ctx context.Context, caller common.Address, characterID, noteID uint64, to common.Address, data []byte) error
}

// HandleOracle reports which addresses a handle is reserved for. A nil
// result means the handle is not reserved.
type HandleOracle interface {
	ReservedFor(handle string) []common.Address
}
