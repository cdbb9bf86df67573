package cli

import (
	"fmt"
	"strconv"

	"github.com/holiman/uint256"

	"github.com/mesh-intelligence/loom/pkg/types"
)

// targetUsage documents the argument shapes accepted by parseTarget.
const targetUsage = `Targets:
  character <id>
  address <0x...>
  note <character-id> <note-id>
  erc721 <contract> <token-id>
  linklist <id>
  anyuri <uri>`

// parseTarget builds a target from a kind name and its arguments.
func parseTarget(kindName string, args []string) (types.Target, error) {
	kind, err := types.ParseKind(kindName)
	if err != nil {
		return nil, err
	}
	want := map[types.Kind]int{
		types.KindCharacter: 1,
		types.KindAddress:   1,
		types.KindNote:      2,
		types.KindERC721:    2,
		types.KindLinklist:  1,
		types.KindAnyURI:    1,
	}[kind]
	if len(args) != want {
		return nil, fmt.Errorf("%s target takes %d argument(s), got %d", kind, want, len(args))
	}

	switch kind {
	case types.KindCharacter:
		id, err := parseID("character id", args[0])
		return types.CharacterTarget{CharacterID: id}, err
	case types.KindAddress:
		addr, err := parseAddress("address", args[0])
		return types.AddressTarget{Address: addr}, err
	case types.KindNote:
		c, err := parseID("character id", args[0])
		if err != nil {
			return nil, err
		}
		n, err := parseID("note id", args[1])
		return types.NoteTarget{CharacterID: c, NoteID: n}, err
	case types.KindERC721:
		contract, err := parseAddress("contract", args[0])
		if err != nil {
			return nil, err
		}
		tokenID, err := uint256.FromDecimal(args[1])
		if err != nil {
			return nil, fmt.Errorf("token id: %w", err)
		}
		return types.ERC721Target{Contract: contract, TokenID: tokenID}, nil
	case types.KindLinklist:
		id, err := parseID("linklist id", args[0])
		return types.LinklistTarget{LinklistID: id}, err
	default:
		return types.AnyURITarget{URI: args[0]}, nil
	}
}

func parseID(name, s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an unsigned integer", name, s)
	}
	return id, nil
}
