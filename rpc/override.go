package rpc

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/gasgauge/gasgauge/core/state"
	"github.com/gasgauge/gasgauge/core/types"
)

// OverrideAccount indicates the overriding fields of an account during the
// execution of a message call.
// Note, state and stateDiff can't be specified at the same time. If state is
// set, message execution will only use the data in the given state. Otherwise
// if stateDiff is set, all diff will be applied first and then execute the
// call message.
type OverrideAccount struct {
	Nonce     *hexutil.Uint64           `json:"nonce"`
	Code      *hexutil.Bytes            `json:"code"`
	Balance   *hexutil.Big              `json:"balance"`
	State     map[types.Hash]types.Hash `json:"state"`
	StateDiff map[types.Hash]types.Hash `json:"stateDiff"`
}

// StateOverride is the collection of overridden accounts.
type StateOverride map[types.Address]OverrideAccount

// ToStateOverrides converts the wire representation into the state layer's.
// A nil receiver converts to nil, meaning no overrides at all.
func (so StateOverride) ToStateOverrides() (state.Overrides, error) {
	if so == nil {
		return nil, nil
	}
	overrides := make(state.Overrides, len(so))
	for addr, account := range so {
		var ov state.OverrideAccount
		if account.Nonce != nil {
			nonce := uint64(*account.Nonce)
			ov.Nonce = &nonce
		}
		if account.Code != nil {
			code := []byte(*account.Code)
			ov.Code = &code
		}
		if account.Balance != nil {
			balance, overflow := uint256.FromBig(account.Balance.ToInt())
			if overflow {
				return nil, fmt.Errorf("balance override for %s exceeds 256 bits", addr.Hex())
			}
			ov.Balance = balance
		}
		ov.State = account.State
		ov.StateDiff = account.StateDiff
		overrides[addr] = ov
	}
	return overrides, nil
}
