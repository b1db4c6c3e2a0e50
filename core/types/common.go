// Package types defines the core Ethereum data structures the estimation
// engine and its storage collaborators operate on.
package types

import (
	"encoding/hex"
	"fmt"

	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
)

const (
	HashLength    = 32
	AddressLength = 20
	BloomLength   = 256
	NonceLength   = 8
)

// Hash represents the 32-byte Keccak256 hash of data.
type Hash [HashLength]byte

// Address represents the 20-byte address of an Ethereum account.
type Address [AddressLength]byte

// Bloom represents a 2048-bit bloom filter.
type Bloom [BloomLength]byte

// BlockNonce is the 8-byte block nonce (legacy PoW, always zero post-merge).
type BlockNonce [NonceLength]byte

// BytesToHash converts bytes to Hash, left-padding if shorter than 32 bytes.
func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

// HexToHash converts a hex string to Hash.
func HexToHash(s string) Hash {
	return BytesToHash(fromHex(s))
}

// Bytes returns the byte representation of the hash.
func (h Hash) Bytes() []byte { return h[:] }

// Hex returns the hex string representation of the hash.
func (h Hash) Hex() string { return fmt.Sprintf("0x%x", h[:]) }

// SetBytes sets the hash from a byte slice, left-padding if necessary.
func (h *Hash) SetBytes(b []byte) {
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

// IsZero returns whether the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String implements fmt.Stringer.
func (h Hash) String() string { return h.Hex() }

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. The input must be a
// 0x-prefixed hex string of exactly 32 bytes.
func (h *Hash) UnmarshalText(input []byte) error {
	return unmarshalFixedText("Hash", input, h[:])
}

// BytesToAddress converts bytes to Address, left-padding if shorter than 20 bytes.
func BytesToAddress(b []byte) Address {
	var a Address
	a.SetBytes(b)
	return a
}

// HexToAddress converts a hex string to Address.
func HexToAddress(s string) Address {
	return BytesToAddress(fromHex(s))
}

// Bytes returns the byte representation of the address.
func (a Address) Bytes() []byte { return a[:] }

// Hex returns the hex string representation of the address.
func (a Address) Hex() string { return fmt.Sprintf("0x%x", a[:]) }

// SetBytes sets the address from a byte slice.
func (a *Address) SetBytes(b []byte) {
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
}

// IsZero returns whether the address is all zeros.
func (a Address) IsZero() bool {
	return a == Address{}
}

// String implements fmt.Stringer.
func (a Address) String() string { return a.Hex() }

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. The input must be a
// 0x-prefixed hex string of exactly 20 bytes.
func (a *Address) UnmarshalText(input []byte) error {
	return unmarshalFixedText("Address", input, a[:])
}

// Account represents an Ethereum account as seen by the state reader.
type Account struct {
	Nonce    uint64
	Balance  *uint256.Int
	Root     Hash   // storage trie root (emptyRoot for no storage)
	CodeHash []byte // keccak256 of code (emptyCodeHash for EOAs)
}

// NewAccount creates a new account with zero balance and empty storage.
func NewAccount() Account {
	return Account{
		Balance:  new(uint256.Int),
		CodeHash: EmptyCodeHash.Bytes(),
		Root:     EmptyRootHash,
	}
}

// Copy returns a deep copy of the account.
func (acc *Account) Copy() *Account {
	cp := &Account{
		Nonce: acc.Nonce,
		Root:  acc.Root,
	}
	if acc.Balance != nil {
		cp.Balance = new(uint256.Int).Set(acc.Balance)
	} else {
		cp.Balance = new(uint256.Int)
	}
	cp.CodeHash = make([]byte, len(acc.CodeHash))
	copy(cp.CodeHash, acc.CodeHash)
	return cp
}

// HasCode returns whether the account's code hash differs from the hash of
// empty code.
func (acc *Account) HasCode() bool {
	return len(acc.CodeHash) > 0 && BytesToHash(acc.CodeHash) != EmptyCodeHash
}

// Log represents a contract log event.
type Log struct {
	Address     Address
	Topics      []Hash
	Data        []byte
	BlockNumber uint64
	TxHash      Hash
	TxIndex     uint
	BlockHash   Hash
	Index       uint
	Removed     bool
}

var (
	// EmptyRootHash is the hash of an empty state trie.
	EmptyRootHash = HexToHash("56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421")

	// EmptyCodeHash is the hash of empty EVM bytecode (keccak256 of empty string).
	EmptyCodeHash = HexToHash("c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")

	// EmptyUncleHash is the hash of an empty uncle list (keccak256 of RLP of empty list).
	EmptyUncleHash = HexToHash("1dcc4de8dec75d7aab85b567b6ccd41ad312451b948a7413f0a142fd40d49347")

	// EmptyWithdrawalsHash is the trie root of an empty withdrawal list.
	EmptyWithdrawalsHash = EmptyRootHash
)

// keccak256Hash computes keccak256 and returns a Hash (avoids import cycle
// with the crypto pkg).
func keccak256Hash(data []byte) Hash {
	d := sha3.NewLegacyKeccak256()
	d.Write(data)
	var h Hash
	copy(h[:], d.Sum(nil))
	return h
}

// fromHex decodes a hex string, stripping optional "0x" prefix.
func fromHex(s string) []byte {
	if has0xPrefix(s) {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, _ := hex.DecodeString(s)
	return b
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// unmarshalFixedText decodes a 0x-prefixed hex string into out, requiring the
// decoded length to match exactly.
func unmarshalFixedText(typname string, input, out []byte) error {
	s := string(input)
	if !has0xPrefix(s) {
		return fmt.Errorf("hex string without 0x prefix for %s", typname)
	}
	raw := s[2:]
	if len(raw) != len(out)*2 {
		return fmt.Errorf("hex string of length %d for %s, want %d", len(raw), typname, len(out)*2)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return fmt.Errorf("invalid hex string for %s: %v", typname, err)
	}
	copy(out, b)
	return nil
}
