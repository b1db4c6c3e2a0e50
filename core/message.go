package core

import (
	"github.com/holiman/uint256"

	"github.com/gasgauge/gasgauge/core/types"
)

// Message is a transaction-shaped request prepared for execution. Unlike a
// transaction it carries no signature: the sender is explicit and callers
// are free to build messages that could never be signed, which is exactly
// what simulation and estimation do.
type Message struct {
	From       types.Address
	To         *types.Address // nil for contract creation
	Nonce      uint64
	Value      *uint256.Int
	GasLimit   uint64
	GasPrice   *uint256.Int // effective price charged per unit of gas
	GasFeeCap  *uint256.Int
	GasTipCap  *uint256.Int
	Data       []byte
	AccessList types.AccessList

	// Validation toggles for simulated messages. RPC calls run against a
	// caller-chosen state, so nonce and EOA checks would reject requests
	// that are perfectly answerable.
	SkipNonceChecks  bool
	SkipFromEOACheck bool
}

// IsContractCreation reports whether the message deploys a contract.
func (m *Message) IsContractCreation() bool {
	return m.To == nil
}

// Copy returns a deep copy of the message. The estimation search re-executes
// the same message under varying gas limits and must not mutate the
// caller's request.
func (m *Message) Copy() *Message {
	cp := *m
	if m.To != nil {
		to := *m.To
		cp.To = &to
	}
	if m.Value != nil {
		cp.Value = new(uint256.Int).Set(m.Value)
	}
	if m.GasPrice != nil {
		cp.GasPrice = new(uint256.Int).Set(m.GasPrice)
	}
	if m.GasFeeCap != nil {
		cp.GasFeeCap = new(uint256.Int).Set(m.GasFeeCap)
	}
	if m.GasTipCap != nil {
		cp.GasTipCap = new(uint256.Int).Set(m.GasTipCap)
	}
	if m.Data != nil {
		cp.Data = make([]byte, len(m.Data))
		copy(cp.Data, m.Data)
	}
	if m.AccessList != nil {
		cp.AccessList = make(types.AccessList, len(m.AccessList))
		for i, tuple := range m.AccessList {
			cp.AccessList[i] = types.AccessTuple{
				Address:     tuple.Address,
				StorageKeys: make([]types.Hash, len(tuple.StorageKeys)),
			}
			copy(cp.AccessList[i].StorageKeys, tuple.StorageKeys)
		}
	}
	return &cp
}

// TransactionToMessage converts a signed transaction into a Message. The
// sender must be supplied by the caller since transactions here do not carry
// recovered senders.
func TransactionToMessage(tx *types.Transaction, from types.Address, baseFee *uint256.Int) *Message {
	msg := &Message{
		From:       from,
		To:         tx.To(),
		Nonce:      tx.Nonce(),
		GasLimit:   tx.Gas(),
		Data:       tx.Data(),
		AccessList: tx.AccessList(),
	}
	msg.Value, _ = uint256.FromBig(tx.Value())
	msg.GasFeeCap, _ = uint256.FromBig(tx.GasFeeCap())
	msg.GasTipCap, _ = uint256.FromBig(tx.GasTipCap())
	msg.GasPrice = effectiveGasPrice(msg.GasFeeCap, msg.GasTipCap, baseFee)
	return msg
}

// effectiveGasPrice computes min(tip + baseFee, feeCap). With no base fee
// the fee cap is charged as-is, matching legacy gas price semantics.
func effectiveGasPrice(feeCap, tipCap, baseFee *uint256.Int) *uint256.Int {
	if baseFee == nil {
		return new(uint256.Int).Set(feeCap)
	}
	price := new(uint256.Int).Add(tipCap, baseFee)
	if price.Gt(feeCap) {
		price.Set(feeCap)
	}
	return price
}
