package rpc

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/gasgauge/gasgauge/core"
	"github.com/gasgauge/gasgauge/core/types"
)

// TransactionArgs represents the arguments of a message call or gas
// estimation request. All fields are optional on the wire; missing ones get
// neutral defaults rather than values read from node state, since the call
// may target any historical block.
type TransactionArgs struct {
	From                 *types.Address  `json:"from"`
	To                   *types.Address  `json:"to"`
	Gas                  *hexutil.Uint64 `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas"`
	Value                *hexutil.Big    `json:"value"`
	Nonce                *hexutil.Uint64 `json:"nonce"`

	// We accept "data" and "input" for backwards-compatibility reasons.
	// "input" is the newer name and should be preferred by clients.
	Data  *hexutil.Bytes `json:"data"`
	Input *hexutil.Bytes `json:"input"`

	AccessList *types.AccessList `json:"accessList,omitempty"`
	ChainID    *hexutil.Big      `json:"chainId,omitempty"`
}

// from retrieves the transaction sender address, defaulting to the zero
// address if unspecified.
func (args *TransactionArgs) from() types.Address {
	if args.From == nil {
		return types.Address{}
	}
	return *args.From
}

// data retrieves the transaction calldata. "input" is preferred over "data".
func (args *TransactionArgs) data() []byte {
	if args.Input != nil {
		return *args.Input
	}
	if args.Data != nil {
		return *args.Data
	}
	return nil
}

// CallDefaults validates the argument combination for a message call.
// chainID is the node's chain id; a mismatching explicit chainId argument is
// rejected.
func (args *TransactionArgs) CallDefaults(chainID *big.Int) error {
	if args.GasPrice != nil && (args.MaxFeePerGas != nil || args.MaxPriorityFeePerGas != nil) {
		return errors.New("both gasPrice and (maxFeePerGas or maxPriorityFeePerGas) specified")
	}
	if args.Data != nil && args.Input != nil && !bytes.Equal(*args.Data, *args.Input) {
		return errors.New(`both "data" and "input" are set and not equal. Please use "input" to pass transaction call data`)
	}
	if args.ChainID != nil && chainID != nil && args.ChainID.ToInt().Cmp(chainID) != 0 {
		return fmt.Errorf("chainId does not match node's (have=%v, want=%v)", args.ChainID.ToInt(), chainID)
	}
	return nil
}

// ToMessage converts the call arguments to the message type used by the
// execution core. A zero gas limit means the caller left the ceiling choice
// to the estimator. Nonce and sender-EOA checks are always skipped: the
// message runs against a caller-chosen state view.
//
// CallDefaults must have validated the arguments first.
func (args *TransactionArgs) ToMessage(baseFee *big.Int) *core.Message {
	msg := &core.Message{
		From:             args.from(),
		To:               args.To,
		Data:             args.data(),
		Value:            new(uint256.Int),
		SkipNonceChecks:  true,
		SkipFromEOACheck: true,
	}
	if args.Gas != nil {
		msg.GasLimit = uint64(*args.Gas)
	}
	if args.Nonce != nil {
		msg.Nonce = uint64(*args.Nonce)
	}
	if args.Value != nil {
		msg.Value.SetFromBig(args.Value.ToInt())
	}
	if args.AccessList != nil {
		msg.AccessList = *args.AccessList
	}

	if baseFee == nil || args.GasPrice != nil {
		// Legacy pricing: one explicit price, or no base fee to price
		// against. The same value serves as price, fee cap and tip cap.
		gasPrice := new(uint256.Int)
		if args.GasPrice != nil {
			gasPrice.SetFromBig(args.GasPrice.ToInt())
		}
		msg.GasPrice = gasPrice
		msg.GasFeeCap = new(uint256.Int).Set(gasPrice)
		msg.GasTipCap = new(uint256.Int).Set(gasPrice)
		return msg
	}

	// EIP-1559 pricing: the effective price is min(tip + baseFee, feeCap),
	// and zero fee fields mean an unpriced call.
	feeCap := new(uint256.Int)
	if args.MaxFeePerGas != nil {
		feeCap.SetFromBig(args.MaxFeePerGas.ToInt())
	}
	tipCap := new(uint256.Int)
	if args.MaxPriorityFeePerGas != nil {
		tipCap.SetFromBig(args.MaxPriorityFeePerGas.ToInt())
	}
	gasPrice := new(uint256.Int)
	if !feeCap.IsZero() || !tipCap.IsZero() {
		base, _ := uint256.FromBig(baseFee)
		gasPrice.Add(tipCap, base)
		if gasPrice.Gt(feeCap) {
			gasPrice.Set(feeCap)
		}
	}
	msg.GasPrice = gasPrice
	msg.GasFeeCap = feeCap
	msg.GasTipCap = tipCap
	return msg
}
