// Package state provides the world-state access layer for transaction
// execution: a read-only Reader view resolved at a block boundary, a
// copy-on-write Overlay that buffers execution writes on top of it, and the
// override and caching wrappers the RPC layer composes around a Reader.
package state

import "github.com/gasgauge/gasgauge/core/types"

// Reader is a read-only view of the world state at a fixed block. Readers
// must be safe for concurrent use.
//
// Absence is not an error: Account returns (nil, nil) for a missing account
// and Storage returns the zero hash for a missing slot. Errors are reserved
// for backend failures.
type Reader interface {
	// Account retrieves the account identified by addr, or nil if it does
	// not exist.
	Account(addr types.Address) (*types.Account, error)

	// Code retrieves the contract code for the given address and code hash.
	Code(addr types.Address, codeHash types.Hash) ([]byte, error)

	// Storage retrieves the value of the given storage slot.
	Storage(addr types.Address, slot types.Hash) (types.Hash, error)
}
