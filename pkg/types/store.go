package types

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// Counters holds the monotonic allocators of the graph.
type Counters struct {
	LastCharacterID uint64 `json:"last_character_id"`
	LastLinklistID  uint64 `json:"last_linklist_id"`
	DeployNonce     uint64 `json:"deploy_nonce"`
}

// ChangeSet describes the rows touched by one committed operation, or, when
// returned by Store.Load, the whole graph. Slices hold the current value of
// every touched record; the Deleted* fields and zero values in Primaries and
// Bindings mark removals. Targets only grow: a target once linked to or
// noted on stays resolvable by its key.
type ChangeSet struct {
	Counters          Counters
	Characters        []*Character
	DeletedCharacters []uint64
	Primaries         map[common.Address]uint64
	Bindings          []LinklistBinding
	Linklists         []*Linklist
	Notes             []*Note
	MintNFTs          []*MintNFT
	AddressModules    map[common.Address]common.Address
	Targets           []LinkItem
	Events            []Event
}

// Empty reports whether the change set carries no record changes.
func (cs *ChangeSet) Empty() bool {
	return len(cs.Characters) == 0 && len(cs.DeletedCharacters) == 0 &&
		len(cs.Primaries) == 0 && len(cs.Bindings) == 0 && len(cs.Linklists) == 0 &&
		len(cs.Notes) == 0 && len(cs.MintNFTs) == 0 && len(cs.AddressModules) == 0 &&
		len(cs.Targets) == 0 && len(cs.Events) == 0
}

// Store persists committed change sets and reloads the graph. Persist runs
// inside the engine's commit; an error aborts the operation.
type Store interface {
	// Load returns the full persisted graph.
	Load(ctx context.Context) (*ChangeSet, error)

	// Persist applies cs atomically.
	Persist(ctx context.Context, cs *ChangeSet) error
}

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
)
