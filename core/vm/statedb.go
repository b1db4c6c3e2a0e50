package vm

import (
	"github.com/holiman/uint256"

	"github.com/gasgauge/gasgauge/core/types"
)

// StateDB gives the interpreter access to the Ethereum world state. Getters
// are infallible; implementations record the first backend failure internally
// and report it through Error so callers can distinguish a genuine execution
// result from one computed on broken state.
type StateDB interface {
	CreateAccount(addr types.Address)

	GetBalance(addr types.Address) *uint256.Int
	AddBalance(addr types.Address, amount *uint256.Int)
	SubBalance(addr types.Address, amount *uint256.Int)

	GetNonce(addr types.Address) uint64
	SetNonce(addr types.Address, nonce uint64)

	GetCode(addr types.Address) []byte
	SetCode(addr types.Address, code []byte)
	GetCodeHash(addr types.Address) types.Hash
	GetCodeSize(addr types.Address) int

	GetState(addr types.Address, key types.Hash) types.Hash
	SetState(addr types.Address, key types.Hash, value types.Hash)
	GetCommittedState(addr types.Address, key types.Hash) types.Hash

	// Transient storage (EIP-1153)
	GetTransientState(addr types.Address, key types.Hash) types.Hash
	SetTransientState(addr types.Address, key types.Hash, value types.Hash)

	SelfDestruct(addr types.Address)
	HasSelfDestructed(addr types.Address) bool

	Exist(addr types.Address) bool
	Empty(addr types.Address) bool

	Snapshot() int
	RevertToSnapshot(id int)

	AddLog(log *types.Log)

	// Refund counter (EIP-3529)
	AddRefund(gas uint64)
	SubRefund(gas uint64)
	GetRefund() uint64

	// Access list (EIP-2929 warm/cold tracking)
	AddAddressToAccessList(addr types.Address)
	AddSlotToAccessList(addr types.Address, slot types.Hash)
	AddressInAccessList(addr types.Address) bool
	SlotInAccessList(addr types.Address, slot types.Hash) (addressOk bool, slotOk bool)

	// Error returns the first failure the backing reader reported, or nil.
	Error() error
}
