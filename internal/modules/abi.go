// Package modules provides the built-in link and mint modules: an approval
// link module, an approval mint module and a supply-limited mint module.
// Module init data is ABI encoded so the same bytes a contract call would
// carry configure a module here.
package modules

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mesh-intelligence/loom/pkg/types"
)

var (
	addressesArgs = abi.Arguments{{Type: mustType("address[]")}}
	limitsArgs    = abi.Arguments{{Type: mustType("uint256")}, {Type: mustType("uint256")}}
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// AddressOf returns the well-known address a built-in module is registered
// at. It is derived from the module name.
func AddressOf(name string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("loom.module." + name))[12:])
}

// EncodeAddresses ABI-encodes addrs as address[].
func EncodeAddresses(addrs []common.Address) ([]byte, error) {
	if addrs == nil {
		addrs = []common.Address{}
	}
	return addressesArgs.Pack(addrs)
}

// DecodeAddresses decodes address[] init data. Empty data decodes to no
// addresses.
func DecodeAddresses(data []byte) ([]common.Address, error) {
	if len(data) == 0 {
		return nil, nil
	}
	vals, err := addressesArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidModuleData, err)
	}
	addrs, ok := vals[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("%w: want address[], got %T", types.ErrInvalidModuleData, vals[0])
	}
	return addrs, nil
}

// EncodeLimits ABI-encodes (uint256 maxSupply, uint256 maxPerAddress).
func EncodeLimits(maxSupply, maxPerAddress uint64) ([]byte, error) {
	return limitsArgs.Pack(new(big.Int).SetUint64(maxSupply), new(big.Int).SetUint64(maxPerAddress))
}

// DecodeLimits decodes (uint256 maxSupply, uint256 maxPerAddress).
func DecodeLimits(data []byte) (maxSupply, maxPerAddress uint64, err error) {
	vals, err := limitsArgs.Unpack(data)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", types.ErrInvalidModuleData, err)
	}
	out := make([]uint64, len(vals))
	for i, v := range vals {
		n, ok := v.(*big.Int)
		if !ok || !n.IsUint64() {
			return 0, 0, fmt.Errorf("%w: limit %d out of range", types.ErrInvalidModuleData, i)
		}
		out[i] = n.Uint64()
	}
	return out[0], out[1], nil
}
