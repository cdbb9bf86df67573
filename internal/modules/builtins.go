package modules

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/mesh-intelligence/loom/internal/graph"
)

// Built-in module names.
const (
	ApprovalLinkName = "ApprovalLinkModule"
	ApprovalMintName = "ApprovalMintModule"
	LimitedMintName  = "LimitedMintModule"
)

// Builtins holds the built-in module instances bound in a registry.
type Builtins struct {
	ApprovalLink *ApprovalLinkModule
	ApprovalMint *ApprovalMintModule
	LimitedMint  *LimitedMintModule
}

// Register creates the built-in modules and binds each in r at
// AddressOf(name).
func Register(r *graph.Registry, g Graph) *Builtins {
	b := &Builtins{
		ApprovalLink: NewApprovalLinkModule(g),
		ApprovalMint: NewApprovalMintModule(g),
		LimitedMint:  NewLimitedMintModule(),
	}
	r.RegisterLinkModule(AddressOf(ApprovalLinkName), b.ApprovalLink)
	r.RegisterMintModule(AddressOf(ApprovalMintName), b.ApprovalMint)
	r.RegisterMintModule(AddressOf(LimitedMintName), b.LimitedMint)
	return b
}

// Addresses maps every built-in module name to its address.
func Addresses() map[string]common.Address {
	return map[string]common.Address{
		ApprovalLinkName: AddressOf(ApprovalLinkName),
		ApprovalMintName: AddressOf(ApprovalMintName),
		LimitedMintName:  AddressOf(LimitedMintName),
	}
}
