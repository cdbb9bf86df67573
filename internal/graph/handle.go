package graph

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/mesh-intelligence/loom/pkg/types"
)

var handleCharset = regexp.MustCompile(`^[a-z0-9._-]+$`)

// validateHandle checks length first, then the charset.
func (e *Engine) validateHandle(handle string) error {
	err := validation.Validate(handle,
		validation.Required,
		validation.Length(e.minHandle, types.MaxHandleLength),
	)
	if err != nil {
		return fmt.Errorf("%w: %q has %d bytes, want %d to %d",
			types.ErrHandleLengthInvalid, handle, len(handle), e.minHandle, types.MaxHandleLength)
	}
	if err := validation.Validate(handle, validation.Match(handleCharset)); err != nil {
		return fmt.Errorf("%w: %q", types.ErrHandleContainsInvalidCharacters, handle)
	}
	return nil
}

// claimableHandle reports why owner may not take handle, if anything.
func (e *Engine) claimableHandle(handle string, owner common.Address) error {
	if _, taken := e.state.handles[handle]; taken {
		return fmt.Errorf("%w: %q", types.ErrHandleExists, handle)
	}
	if e.oracle == nil {
		return nil
	}
	reserved := e.oracle.ReservedFor(handle)
	if len(reserved) == 0 {
		return nil
	}
	for _, addr := range reserved {
		if addr == owner {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", types.ErrHandleNotEligible, handle)
}

// addressHandle is the generated handle of a character provisioned for addr.
func addressHandle(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
