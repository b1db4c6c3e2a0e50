package vm

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/gasgauge/gasgauge/core/types"
)

// GetHashFunc returns the hash of the block with the given number, for use by
// the BLOCKHASH opcode.
type GetHashFunc func(uint64) types.Hash

// BlockContext provides the interpreter with block-level information. All
// fields are read-only for the duration of an execution.
type BlockContext struct {
	GetHash     GetHashFunc
	Coinbase    types.Address
	GasLimit    uint64
	BlockNumber *big.Int
	Time        uint64
	Difficulty  *big.Int
	BaseFee     *big.Int
	BlobBaseFee *big.Int
	PrevRandao  types.Hash
}

// TxContext provides the interpreter with transaction-level information. It
// is rebuilt for every message.
type TxContext struct {
	Origin     types.Address
	GasPrice   *uint256.Int
	BlobHashes []types.Hash
}

// Config holds tunables for a single execution.
type Config struct {
	// NoBaseFee disables the base fee enforcement in message validation so
	// that calls can run with a zero gas price. Gas estimation always sets
	// this: probes must not fail on fee grounds.
	NoBaseFee bool
}

// Environment bundles the context an Interpreter needs for one execution.
type Environment struct {
	Block  BlockContext
	Tx     TxContext
	Config Config
	State  StateDB
}
