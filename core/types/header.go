package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
)

// Header represents a block header in the Ethereum blockchain. The trailing
// fields are optional in RLP so that pre-fork headers keep their canonical
// encoding and hash.
type Header struct {
	ParentHash  Hash       `json:"parentHash"`
	UncleHash   Hash       `json:"sha3Uncles"`
	Coinbase    Address    `json:"miner"`
	Root        Hash       `json:"stateRoot"`
	TxHash      Hash       `json:"transactionsRoot"`
	ReceiptHash Hash       `json:"receiptsRoot"`
	Bloom       Bloom      `json:"logsBloom"`
	Difficulty  *big.Int   `json:"difficulty"`
	Number      *big.Int   `json:"number"`
	GasLimit    uint64     `json:"gasLimit"`
	GasUsed     uint64     `json:"gasUsed"`
	Time        uint64     `json:"timestamp"`
	Extra       []byte     `json:"extraData"`
	MixDigest   Hash       `json:"mixHash"`
	Nonce       BlockNonce `json:"nonce"`

	// BaseFee was added by EIP-1559 and is ignored in legacy headers.
	BaseFee *big.Int `json:"baseFeePerGas" rlp:"optional"`

	// WithdrawalsHash was added by EIP-4895 and is ignored in legacy headers.
	WithdrawalsHash *Hash `json:"withdrawalsRoot" rlp:"optional"`

	// BlobGasUsed was added by EIP-4844 and is ignored in legacy headers.
	BlobGasUsed *uint64 `json:"blobGasUsed" rlp:"optional"`

	// ExcessBlobGas was added by EIP-4844 and is ignored in legacy headers.
	ExcessBlobGas *uint64 `json:"excessBlobGas" rlp:"optional"`

	// ParentBeaconRoot was added by EIP-4788 and is ignored in legacy headers.
	ParentBeaconRoot *Hash `json:"parentBeaconBlockRoot" rlp:"optional"`

	// RequestsHash was added by EIP-7685 and is ignored in legacy headers.
	RequestsHash *Hash `json:"requestsHash" rlp:"optional"`
}

// Hash returns the keccak256 hash of the header's RLP encoding.
func (h *Header) Hash() Hash {
	enc, err := rlp.EncodeToBytes(h)
	if err != nil {
		panic("header rlp encoding failed: " + err.Error())
	}
	return keccak256Hash(enc)
}

// EmptyWithdrawals returns whether the header carries a withdrawals root for
// an empty withdrawal list.
func (h *Header) EmptyWithdrawals() bool {
	return h.WithdrawalsHash != nil && *h.WithdrawalsHash == EmptyWithdrawalsHash
}

// CopyHeader creates a deep copy of a block header.
func CopyHeader(h *Header) *Header {
	cpy := *h
	if h.Difficulty != nil {
		cpy.Difficulty = new(big.Int).Set(h.Difficulty)
	}
	if h.Number != nil {
		cpy.Number = new(big.Int).Set(h.Number)
	}
	if h.BaseFee != nil {
		cpy.BaseFee = new(big.Int).Set(h.BaseFee)
	}
	if len(h.Extra) > 0 {
		cpy.Extra = make([]byte, len(h.Extra))
		copy(cpy.Extra, h.Extra)
	}
	if h.WithdrawalsHash != nil {
		cpy.WithdrawalsHash = new(Hash)
		*cpy.WithdrawalsHash = *h.WithdrawalsHash
	}
	if h.BlobGasUsed != nil {
		cpy.BlobGasUsed = new(uint64)
		*cpy.BlobGasUsed = *h.BlobGasUsed
	}
	if h.ExcessBlobGas != nil {
		cpy.ExcessBlobGas = new(uint64)
		*cpy.ExcessBlobGas = *h.ExcessBlobGas
	}
	if h.ParentBeaconRoot != nil {
		cpy.ParentBeaconRoot = new(Hash)
		*cpy.ParentBeaconRoot = *h.ParentBeaconRoot
	}
	if h.RequestsHash != nil {
		cpy.RequestsHash = new(Hash)
		*cpy.RequestsHash = *h.RequestsHash
	}
	return &cpy
}
