package state

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/gasgauge/gasgauge/core/types"
	"github.com/gasgauge/gasgauge/crypto"
)

// OverrideAccount specifies replacement fields for a single account during
// a call. Nil fields keep the underlying value. State replaces the whole
// storage of the account; StateDiff writes individual slots on top of the
// existing storage. The two are mutually exclusive.
type OverrideAccount struct {
	Nonce     *uint64
	Code      *[]byte
	Balance   *uint256.Int
	State     map[types.Hash]types.Hash
	StateDiff map[types.Hash]types.Hash
}

// Overrides maps addresses to account overrides.
type Overrides map[types.Address]OverrideAccount

// Apply wraps base in a read-only layer serving the overridden values. The
// base reader is never written; readers for other calls against the same
// block remain unaffected. With no overrides the base is returned as is.
func (ov Overrides) Apply(base Reader) (Reader, error) {
	if len(ov) == 0 {
		return base, nil
	}
	r := &overrideReader{
		base:       base,
		overrides:  ov,
		codeHashes: make(map[types.Address]types.Hash),
	}
	for addr, acc := range ov {
		if acc.State != nil && acc.StateDiff != nil {
			return nil, fmt.Errorf("account %s has both 'state' and 'stateDiff'", addr)
		}
		if acc.Code != nil {
			r.codeHashes[addr] = crypto.Keccak256Hash(*acc.Code)
		}
	}
	return r, nil
}

// overrideReader is a Reader that answers from the override set first and
// falls through to the base for everything else.
type overrideReader struct {
	base       Reader
	overrides  Overrides
	codeHashes map[types.Address]types.Hash
}

func (r *overrideReader) Account(addr types.Address) (*types.Account, error) {
	acct, err := r.base.Account(addr)
	ov, ok := r.overrides[addr]
	if !ok {
		return acct, err
	}
	if err != nil {
		return nil, err
	}
	// An override materializes the account even if the base has none.
	if acct == nil {
		fresh := types.NewAccount()
		acct = &fresh
	} else {
		acct = acct.Copy()
	}
	if ov.Nonce != nil {
		acct.Nonce = *ov.Nonce
	}
	if ov.Balance != nil {
		acct.Balance = new(uint256.Int).Set(ov.Balance)
	}
	if ov.Code != nil {
		acct.CodeHash = r.codeHashes[addr].Bytes()
	}
	return acct, nil
}

func (r *overrideReader) Code(addr types.Address, codeHash types.Hash) ([]byte, error) {
	if ov, ok := r.overrides[addr]; ok && ov.Code != nil {
		return *ov.Code, nil
	}
	return r.base.Code(addr, codeHash)
}

func (r *overrideReader) Storage(addr types.Address, slot types.Hash) (types.Hash, error) {
	ov, ok := r.overrides[addr]
	if !ok {
		return r.base.Storage(addr, slot)
	}
	switch {
	case ov.State != nil:
		// Full replacement: slots outside the override read as empty.
		return ov.State[slot], nil
	case ov.StateDiff != nil:
		if val, ok := ov.StateDiff[slot]; ok {
			return val, nil
		}
	}
	return r.base.Storage(addr, slot)
}
