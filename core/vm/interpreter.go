package vm

import (
	"github.com/holiman/uint256"

	"github.com/gasgauge/gasgauge/core/types"
)

// Interpreter executes EVM bytecode against an Environment. Implementations
// are expected to honor the usual EVM error contract: ErrExecutionReverted
// for REVERT with the revert data in ret, any other error for an abort with
// all remaining gas consumed.
//
// The estimation engine is interpreter-agnostic. Anything satisfying this
// interface can back it, including scripted fakes in tests.
type Interpreter interface {
	// Call executes the code at addr with the given input, returning the
	// output, the leftover gas and the execution error, if any.
	Call(env *Environment, caller, addr types.Address, input []byte, gas uint64, value *uint256.Int) (ret []byte, leftOverGas uint64, err error)

	// Create deploys a contract with the given init code, returning the
	// deployed code, the new contract address and the leftover gas.
	Create(env *Environment, caller types.Address, code []byte, gas uint64, value *uint256.Int) (ret []byte, contractAddr types.Address, leftOverGas uint64, err error)
}
