package core

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/gasgauge/gasgauge/core/vm"
	"github.com/gasgauge/gasgauge/params"
)

// ErrNoInterpreter is returned when a message needs bytecode execution but
// the executor was built without an interpreter.
var ErrNoInterpreter = errors.New("no interpreter configured")

// Executor runs a single message against a state and reports the outcome.
// Three failure classes must stay distinguishable: a *TxValidationError
// means the message was rejected before any bytecode ran, an outcome with a
// non-nil Err means the bytecode failed, and any other error means the state
// backend failed and the result would be meaningless.
type Executor interface {
	Transact(env *EvmEnv, msg *Message, st vm.StateDB) (*ExecutionOutcome, error)
}

// TransitionExecutor is the canonical Executor. It performs message
// validation and gas accounting itself and delegates bytecode execution to
// an injected interpreter. With a nil interpreter it still settles plain
// value transfers, so transfer-only workloads need no EVM at all.
type TransitionExecutor struct {
	interp vm.Interpreter
}

// NewTransitionExecutor creates an executor backed by the given interpreter.
// interp may be nil.
func NewTransitionExecutor(interp vm.Interpreter) *TransitionExecutor {
	return &TransitionExecutor{interp: interp}
}

// Transact validates msg, buys gas, executes and settles refunds against st.
// The caller owns snapshotting: state mutations are not rolled back here,
// not even for failed messages.
func (ex *TransitionExecutor) Transact(env *EvmEnv, msg *Message, st vm.StateDB) (*ExecutionOutcome, error) {
	if err := ex.preCheck(env, msg, st); err != nil {
		return nil, err
	}
	var (
		isCreate   = msg.IsContractCreation()
		isShanghai = env.ChainConfig.IsShanghai(env.BlockCtx.Time)
		value      = nonNilU256(msg.Value)
		gasPrice   = nonNilU256(msg.GasPrice)
	)

	// Intrinsic gas is charged before a single opcode runs.
	igas, err := IntrinsicGas(msg.Data, msg.AccessList, isCreate, isShanghai)
	if err != nil {
		return nil, err
	}
	if msg.GasLimit < igas {
		return nil, validationError(KindIntrinsicGas, fmt.Errorf("%w: have %d, want %d", ErrIntrinsicGas, msg.GasLimit, igas))
	}
	gasRemaining := msg.GasLimit - igas

	if value.Sign() > 0 && st.GetBalance(msg.From).Lt(value) {
		return nil, validationError(KindInsufficientFunds, fmt.Errorf("%w: address %s", ErrInsufficientFundsForTransfer, msg.From.Hex()))
	}
	if isCreate && isShanghai && len(msg.Data) > params.MaxInitCodeSize {
		return nil, fmt.Errorf("%w: code size %d, limit %d", vm.ErrMaxInitCodeSizeExceeded, len(msg.Data), params.MaxInitCodeSize)
	}
	if ex.interp == nil && (isCreate || st.GetCodeSize(*msg.To) > 0) {
		return nil, fmt.Errorf("%w: message targets bytecode", ErrNoInterpreter)
	}

	// Warm up the access list before execution (EIP-2929).
	if env.ChainConfig.IsBerlin(env.BlockCtx.BlockNumber) {
		prepareAccessList(env, msg, st)
	}

	var (
		ret   []byte
		vmerr error
	)
	if isCreate {
		// The interpreter owns the creator nonce bump and the collision
		// check for creations.
		ret, _, gasRemaining, vmerr = ex.interp.Create(ex.environment(env, msg, st), msg.From, msg.Data, gasRemaining, value)
	} else {
		st.SetNonce(msg.From, st.GetNonce(msg.From)+1)
		ret, gasRemaining, vmerr = ex.call(env, msg, st, gasRemaining, value)
	}

	// Settle the refund counter, capped at a fifth of the gas used
	// (EIP-3529), and return the unused gas to the sender.
	gasUsed := msg.GasLimit - gasRemaining
	refund := gasUsed / params.RefundQuotient
	if refund > st.GetRefund() {
		refund = st.GetRefund()
	}
	gasRemaining += refund
	gasUsed = msg.GasLimit - gasRemaining

	if remaining := new(uint256.Int).SetUint64(gasRemaining); !gasPrice.IsZero() {
		remaining.Mul(remaining, gasPrice)
		st.AddBalance(msg.From, remaining)
	}

	// Pay the tip clearing the base fee to the coinbase. The effective
	// price is already capped at the fee cap.
	effectiveTip := new(uint256.Int).Set(gasPrice)
	if env.BlockCtx.BaseFee != nil {
		baseFee, _ := uint256.FromBig(env.BlockCtx.BaseFee)
		if effectiveTip.Lt(baseFee) {
			effectiveTip.Clear()
		} else {
			effectiveTip.Sub(effectiveTip, baseFee)
		}
	}
	if !effectiveTip.IsZero() {
		fee := new(uint256.Int).SetUint64(gasUsed)
		fee.Mul(fee, effectiveTip)
		st.AddBalance(env.BlockCtx.Coinbase, fee)
	}

	if err := st.Error(); err != nil {
		return nil, fmt.Errorf("state access failed: %w", err)
	}
	return &ExecutionOutcome{
		UsedGas:     gasUsed,
		RefundedGas: refund,
		Err:         vmerr,
		ReturnData:  ret,
	}, nil
}

// preCheck rejects messages that could never be included in the block and
// charges the sender for the full gas limit. It reads through st, so a
// backend failure surfaces here rather than as a bogus validation verdict.
func (ex *TransitionExecutor) preCheck(env *EvmEnv, msg *Message, st vm.StateDB) error {
	if !msg.SkipNonceChecks {
		stNonce := st.GetNonce(msg.From)
		if err := st.Error(); err != nil {
			return fmt.Errorf("state access failed: %w", err)
		}
		if msgNonce := msg.Nonce; stNonce < msgNonce {
			return validationError(KindNonceTooHigh, fmt.Errorf("%w: address %s, tx: %d state: %d", ErrNonceTooHigh, msg.From.Hex(), msgNonce, stNonce))
		} else if stNonce > msgNonce {
			return validationError(KindNonceTooLow, fmt.Errorf("%w: address %s, tx: %d state: %d", ErrNonceTooLow, msg.From.Hex(), msgNonce, stNonce))
		} else if stNonce+1 < stNonce {
			return validationError(KindNonceMax, fmt.Errorf("%w: address %s, nonce: %d", ErrNonceMax, msg.From.Hex(), stNonce))
		}
	}
	if !msg.SkipFromEOACheck {
		codeSize := st.GetCodeSize(msg.From)
		if err := st.Error(); err != nil {
			return fmt.Errorf("state access failed: %w", err)
		}
		if codeSize > 0 {
			return validationError(KindSenderNotEOA, fmt.Errorf("%w: address %s, len(code): %d", ErrSenderNoEOA, msg.From.Hex(), codeSize))
		}
	}
	if msg.GasLimit > env.BlockCtx.GasLimit {
		return validationError(KindGasLimitTooHigh, fmt.Errorf("%w: tx gas limit %d, block gas limit %d", ErrGasLimitTooHigh, msg.GasLimit, env.BlockCtx.GasLimit))
	}
	feeCap, tipCap := nonNilU256(msg.GasFeeCap), nonNilU256(msg.GasTipCap)
	if feeCap.Lt(tipCap) {
		return validationError(KindTipAboveFeeCap, fmt.Errorf("%w: address %s, maxPriorityFeePerGas: %s, maxFeePerGas: %s", ErrTipAboveFeeCap, msg.From.Hex(), tipCap, feeCap))
	}
	if !env.VMConfig.NoBaseFee && env.BlockCtx.BaseFee != nil {
		baseFee, _ := uint256.FromBig(env.BlockCtx.BaseFee)
		if feeCap.Lt(baseFee) {
			return validationError(KindFeeCapBelowBaseFee, fmt.Errorf("%w: address %s, maxFeePerGas: %s, baseFee: %s", ErrFeeCapTooLow, msg.From.Hex(), feeCap, baseFee))
		}
	}
	return ex.buyGas(msg, st)
}

// buyGas deducts the upfront gas purchase from the sender. The balance must
// cover the worst case at the fee cap plus the transferred value, not just
// the effective price.
func (ex *TransitionExecutor) buyGas(msg *Message, st vm.StateDB) error {
	mgval := new(uint256.Int).SetUint64(msg.GasLimit)
	if _, overflow := mgval.MulOverflow(mgval, nonNilU256(msg.GasPrice)); overflow {
		return validationError(KindInsufficientFunds, fmt.Errorf("%w: address %s, required balance exceeds 256 bits", ErrInsufficientFunds, msg.From.Hex()))
	}
	balanceCheck := new(uint256.Int).Set(mgval)
	if msg.GasFeeCap != nil {
		balanceCheck.SetUint64(msg.GasLimit)
		if _, overflow := balanceCheck.MulOverflow(balanceCheck, msg.GasFeeCap); overflow {
			return validationError(KindInsufficientFunds, fmt.Errorf("%w: address %s, required balance exceeds 256 bits", ErrInsufficientFunds, msg.From.Hex()))
		}
	}
	if _, overflow := balanceCheck.AddOverflow(balanceCheck, nonNilU256(msg.Value)); overflow {
		return validationError(KindInsufficientFunds, fmt.Errorf("%w: address %s, required balance exceeds 256 bits", ErrInsufficientFunds, msg.From.Hex()))
	}
	have := st.GetBalance(msg.From)
	if err := st.Error(); err != nil {
		return fmt.Errorf("state access failed: %w", err)
	}
	if have.Lt(balanceCheck) {
		return validationError(KindInsufficientFunds, fmt.Errorf("%w: address %s, have %s want %s", ErrInsufficientFunds, msg.From.Hex(), have, balanceCheck))
	}
	st.SubBalance(msg.From, mgval)
	return nil
}

// call executes a message with a recipient. Codeless recipients settle as
// plain transfers without consulting the interpreter, so a nil interpreter
// suffices for transfer-only workloads. Precompile semantics, if any, live
// in the interpreter.
func (ex *TransitionExecutor) call(env *EvmEnv, msg *Message, st vm.StateDB, gas uint64, value *uint256.Int) ([]byte, uint64, error) {
	if ex.interp != nil {
		return ex.interp.Call(ex.environment(env, msg, st), msg.From, *msg.To, msg.Data, gas, value)
	}
	if st.GetBalance(msg.From).Lt(value) {
		return nil, gas, vm.ErrInsufficientBalance
	}
	st.SubBalance(msg.From, value)
	st.AddBalance(*msg.To, value)
	return nil, gas, nil
}

func (ex *TransitionExecutor) environment(env *EvmEnv, msg *Message, st vm.StateDB) *vm.Environment {
	return &vm.Environment{
		Block: env.BlockCtx,
		Tx: vm.TxContext{
			Origin:   msg.From,
			GasPrice: nonNilU256(msg.GasPrice),
		},
		Config: env.VMConfig,
		State:  st,
	}
}

// prepareAccessList marks the addresses a message always touches as warm:
// the sender, the recipient, the coinbase after Shanghai (EIP-3651) and the
// declared access list.
func prepareAccessList(env *EvmEnv, msg *Message, st vm.StateDB) {
	st.AddAddressToAccessList(msg.From)
	if msg.To != nil {
		st.AddAddressToAccessList(*msg.To)
	}
	if env.ChainConfig.IsShanghai(env.BlockCtx.Time) {
		st.AddAddressToAccessList(env.BlockCtx.Coinbase)
	}
	for _, tuple := range msg.AccessList {
		st.AddAddressToAccessList(tuple.Address)
		for _, key := range tuple.StorageKeys {
			st.AddSlotToAccessList(tuple.Address, key)
		}
	}
}

func nonNilU256(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return x
}
