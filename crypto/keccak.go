// Package crypto provides the hashing primitives used across the codebase.
package crypto

import (
	"hash"
	"sync"

	"golang.org/x/crypto/sha3"

	"github.com/gasgauge/gasgauge/core/types"
)

// hasherPool holds Keccak-256 states for reuse between calls.
var hasherPool = sync.Pool{
	New: func() any { return sha3.NewLegacyKeccak256() },
}

// Keccak256 calculates the Keccak-256 hash of the given data.
func Keccak256(data ...[]byte) []byte {
	d := hasherPool.Get().(hash.Hash)
	defer hasherPool.Put(d)
	d.Reset()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Keccak256Hash calculates Keccak-256 and returns it as a types.Hash.
func Keccak256Hash(data ...[]byte) types.Hash {
	return types.BytesToHash(Keccak256(data...))
}
