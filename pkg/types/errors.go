package types

import "errors"

// Identity and handle errors.
var (
	ErrNotCharacterOwner                = errors.New("caller is not the character owner or operator")
	ErrCharacterNotExists               = errors.New("character does not exist")
	ErrHandleExists                     = errors.New("handle already exists")
	ErrHandleLengthInvalid              = errors.New("handle length invalid")
	ErrHandleContainsInvalidCharacters  = errors.New("handle contains invalid characters")
	ErrHandleNotEligible                = errors.New("handle is reserved for another address")
	ErrTargetAlreadyHasPrimaryCharacter = errors.New("target address already has a primary character")
	ErrInvalidRecipient                 = errors.New("invalid recipient address")
	ErrNotOwner                         = errors.New("caller is not the token owner")
)

// Link graph errors.
var (
	ErrUnattachedLinklist = errors.New("no linklist attached for link type")
	ErrLinklistNotExists  = errors.New("linklist does not exist")
	ErrNotLinklistOwner   = errors.New("linklist is not owned by the character owner")
	ErrInvalidTarget      = errors.New("invalid link target")
)

// Note and mint errors.
var (
	ErrNoteNotExists      = errors.New("note does not exist")
	ErrNoteDeleted        = errors.New("note is deleted")
	ErrNoteLocked         = errors.New("note is locked")
	ErrMintTokenNotExists = errors.New("mint token does not exist")
)

// Module errors. ErrNotApproved is the rejection returned by the built-in
// approval and limit modules.
var (
	ErrNotApproved         = errors.New("not approved")
	ErrModuleNotRegistered = errors.New("module not registered")
	ErrInvalidModuleData   = errors.New("invalid module data")
)

// Reservation and custody errors.
var (
	ErrNotAdmin      = errors.New("caller is not the admin")
	ErrProofExpired  = errors.New("withdraw proof expired")
	ErrInvalidProof  = errors.New("withdraw proof invalid")
	ErrNotHeld       = errors.New("character is not held by the villa")
	ErrRecordMissing = errors.New("reservation record missing")
)
