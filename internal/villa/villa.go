// Package villa implements a custodial character holder. Characters are
// created for the villa address on behalf of users without a wallet; the
// admin later signs a withdraw proof that lets anyone move a held character
// to its real owner.
package villa

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/loom/pkg/types"
)

// Graph is the part of the engine the villa needs.
type Graph interface {
	Character(ctx context.Context, id uint64) (*types.Character, error)
	TransferCharacter(ctx context.Context, caller, from, to common.Address, characterID uint64) error
}

// Proof authorizes moving a held character to To.
type Proof struct {
	To          common.Address
	CharacterID uint64
	Nonce       *uint256.Int
	Expires     time.Time
	Signature   []byte
}

// Villa holds characters at Address until they are withdrawn.
type Villa struct {
	graph   Graph
	address common.Address
	admin   common.Address
	now     func() time.Time
	log     *zap.Logger
}

// Option configures a Villa.
type Option func(*Villa)

// WithClock sets the time source proofs are checked against.
func WithClock(now func() time.Time) Option {
	return func(v *Villa) { v.now = now }
}

// WithLogger sets the villa logger.
func WithLogger(log *zap.Logger) Option {
	return func(v *Villa) { v.log = log }
}

// New returns a villa holding characters at address and trusting proofs
// signed by admin.
func New(g Graph, address, admin common.Address, opts ...Option) *Villa {
	v := &Villa{graph: g, address: address, admin: admin, now: time.Now, log: zap.NewNop()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Address returns the account characters are held under.
func (v *Villa) Address() common.Address {
	return v.address
}

// Holds reports whether the villa currently owns characterID.
func (v *Villa) Holds(ctx context.Context, characterID uint64) (bool, error) {
	c, err := v.graph.Character(ctx, characterID)
	if err != nil {
		return false, err
	}
	return c.Owner == v.address, nil
}

// Withdraw verifies p and transfers the character to p.To. The proof cannot
// be replayed since the villa no longer holds the character afterwards.
func (v *Villa) Withdraw(ctx context.Context, p Proof) error {
	if !v.now().Before(p.Expires) {
		return fmt.Errorf("%w: expired at %s", types.ErrProofExpired, p.Expires.UTC().Format(time.RFC3339))
	}
	signer, err := recoverSigner(Digest(v.address, p.CharacterID, p.Nonce, p.Expires), p.Signature)
	if err != nil {
		return err
	}
	if signer != v.admin {
		return fmt.Errorf("%w: signed by %s", types.ErrInvalidProof, signer.Hex())
	}

	held, err := v.Holds(ctx, p.CharacterID)
	if err != nil {
		return err
	}
	if !held {
		return fmt.Errorf("%w: character %d", types.ErrNotHeld, p.CharacterID)
	}
	if err := v.graph.TransferCharacter(ctx, v.address, v.address, p.To, p.CharacterID); err != nil {
		return fmt.Errorf("withdrawing character %d: %w", p.CharacterID, err)
	}

	v.log.Info("character withdrawn",
		zap.Uint64("character_id", p.CharacterID),
		zap.Stringer("to", p.To),
		zap.String("nonce", p.Nonce.Hex()),
	)
	return nil
}

// Digest is keccak256 over the tightly packed (villa, characterId, nonce,
// expires) tuple, each integer a 32-byte big-endian word. Expires is in
// unix seconds.
func Digest(villa common.Address, characterID uint64, nonce *uint256.Int, expires time.Time) []byte {
	if nonce == nil {
		nonce = new(uint256.Int)
	}
	id := uint256.NewInt(characterID).Bytes32()
	n := nonce.Bytes32()
	exp := uint256.NewInt(uint64(expires.Unix())).Bytes32()
	return crypto.Keccak256(villa.Bytes(), id[:], n[:], exp[:])
}

// Sign produces the admin signature over digest in the EIP-191 personal
// message form.
func Sign(key *ecdsa.PrivateKey, digest []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(digest), key)
	if err != nil {
		return nil, fmt.Errorf("signing withdraw proof: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

func recoverSigner(digest, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: signature length %d", types.ErrInvalidProof, len(sig))
	}
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(digest), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", types.ErrInvalidProof, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
