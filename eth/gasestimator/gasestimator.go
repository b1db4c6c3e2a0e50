// Package gasestimator finds the lowest gas limit a call can succeed with.
// It binary searches over re-executions of the call against an isolated
// state overlay, steering on the outcome class of each probe.
package gasestimator

import (
	"context"
	"math"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/gasgauge/gasgauge/core"
	"github.com/gasgauge/gasgauge/core/state"
	"github.com/gasgauge/gasgauge/core/types"
	"github.com/gasgauge/gasgauge/core/vm"
	"github.com/gasgauge/gasgauge/log"
	"github.com/gasgauge/gasgauge/params"
)

// Options are the contextual parameters of an estimation. The state is owned
// by the estimation call and must not be shared with concurrent requests;
// every probe runs on a fresh copy of it.
type Options struct {
	Config   *core.ChainConfig
	Header   *types.Header
	State    *state.Overlay
	Executor core.Executor

	// ErrorRatio is the relative overestimation the search may stop at.
	// Zero means search to the exact boundary.
	ErrorRatio float64
}

// Estimate returns the lowest gas limit the call succeeds with, within the
// configured error ratio. A non-zero gasCap bounds the search from above.
// When the call reverts no matter the gas limit, the revert output is
// returned alongside the error.
func Estimate(ctx context.Context, call *core.Message, opts *Options, gasCap uint64) (uint64, []byte, error) {
	var (
		lo uint64 // lowest-known gas limit where the call fails
		hi uint64 // lowest-known gas limit where the call succeeds
	)
	// Whether the caller pinned the gas values decides how failures of the
	// ceiling probe are reported later.
	gasSpecified := call.GasLimit >= params.TxGas
	priceSpecified := call.GasPrice != nil && !call.GasPrice.IsZero()

	// A call with no payload to an account without code is a plain value
	// transfer. Answering the protocol minimum without executing would be
	// dangerous since some field combinations still bump the cost, so try
	// the minimum for real and only short circuit if it suffices.
	if len(call.Data) == 0 && call.To != nil {
		code := opts.State.GetCode(*call.To)
		if err := opts.State.Error(); err != nil {
			return 0, nil, err
		}
		if len(code) == 0 {
			result, err := execute(ctx, call, opts, params.TxGas)
			if err == nil && result.Succeeded() {
				return params.TxGas, nil, nil
			}
		}
	}
	// Determine the ceiling of the search. A caller-specified limit is
	// honored but never extends past the block gas limit.
	hi = opts.Header.GasLimit
	if gasSpecified && call.GasLimit < hi {
		hi = call.GasLimit
	}
	// Recap the ceiling with the gas the sender can actually pay for.
	if priceSpecified {
		allowance, err := callerGasAllowance(opts.State, call)
		if err != nil {
			return 0, nil, err
		}
		if allowance < hi {
			log.Debug("Gas estimation capped by limited funds", "original", hi, "gasprice", call.GasPrice, "fundable", allowance)
			hi = allowance
		}
	}
	// Recap the ceiling with the configured RPC gas cap.
	if gasCap != 0 && hi > gasCap {
		log.Warn("Caller gas above allowance, capping", "requested", hi, "cap", gasCap)
		hi = gasCap
	}
	// Execute once at the ceiling. If this fails, no point in searching:
	// either the funds cannot pay for the call at all, or the call fails
	// regardless of the gas limit and the failure is the answer.
	result, err := execute(ctx, call, opts, hi)
	switch {
	case err != nil && core.IsGasTooHigh(err) && (gasSpecified || priceSpecified):
		return disambiguateFailure(ctx, call, opts, hi)
	case err != nil && core.IsGasTooLow(err):
		return 0, nil, &ExceedsAllowanceError{GasLimit: hi}
	case err != nil:
		return 0, nil, err
	case result.Halted():
		// Already at the maximum gas, so no higher limit can help.
		return 0, nil, &HaltError{Reason: result.HaltReason(), GasLimit: hi}
	case result.Reverted():
		if gasSpecified || priceSpecified {
			return disambiguateFailure(ctx, call, opts, hi)
		}
		return 0, result.Revert(), result.Err
	}
	// For almost any call, the gas consumed by the unconstrained execution
	// above lower-bounds the gas limit required for it to succeed. The
	// exception are calls that explicitly check their remaining gas, which
	// the search below handles the same as any other failure.
	gasUsed := result.UsedGas
	lo = result.UsedGas - 1

	// There is a fairly high chance for the call to succeed with the gas
	// limit set to its gas used plus the refund, corrected for the 63/64
	// forwarding rule. Explicitly probe that amount first since it usually
	// spares walking the whole range.
	optimistic := (result.UsedGas + result.RefundedGas + params.CallStipend) * 64 / 63
	if optimistic < hi {
		result, err = execute(ctx, call, opts, optimistic)
		if err != nil {
			// The call already ran once, so a failure here is an internal
			// fault rather than a property of the call.
			log.Error("Execution error in estimate gas", "err", err)
			return 0, nil, err
		}
		gasUsed = result.UsedGas
		if result.Succeeded() {
			hi = optimistic
		} else {
			lo = optimistic
		}
	}
	// Binary search for the smallest gas limit that allows the call to
	// succeed. Most calls need little more than their unconstrained
	// consumption, so the first bisection point is skewed toward it.
	mid := lo + (hi-lo)/2
	if skew := gasUsed * 3; skew/3 == gasUsed && lo < skew && skew < mid {
		mid = skew
	}
	for lo+1 < hi {
		if opts.ErrorRatio > 0 {
			// It is a bit pointless to return a perfect estimation, as
			// changing network conditions require the caller to bump it up
			// anyway. Since wallets tend to use 20-25% bump, allowing a
			// small approximation error is fine (as an alternative carry a
			// constant factor in hi).
			if float64(hi-lo)/float64(hi) < opts.ErrorRatio {
				break
			}
		}
		result, err = execute(ctx, call, opts, mid)
		switch {
		case err != nil && core.IsGasTooHigh(err):
			hi = mid
		case err != nil && core.IsGasTooLow(err):
			lo = mid
		case err != nil:
			log.Error("Execution error in estimate gas", "err", err)
			return 0, nil, err
		case result.Succeeded():
			hi = mid
		default:
			// Reverts and halts both read as "not enough gas" here: some
			// contracts fault on purpose when starved, and telling such a
			// fault apart from a genuine one is not possible from the
			// outcome alone.
			lo = mid
		}
		mid = lo + (hi-lo)/2
	}
	return hi, nil, nil
}

// execute runs the call at the given gas limit against a fresh copy of the
// estimation state, so probes never observe each other's writes. Sender
// account checks and the base fee floor are always disabled: estimation
// must work for senders without a coherent nonce or code history and for
// prices below the block's base fee.
func execute(ctx context.Context, call *core.Message, opts *Options, gasLimit uint64) (*core.ExecutionOutcome, error) {
	// Mostly for the timeout wrapping the whole estimation: each probe can
	// be long, so give cancellation a checkpoint between probes.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msg := call.Copy()
	msg.GasLimit = gasLimit
	msg.SkipNonceChecks = true
	msg.SkipFromEOACheck = true

	env := &core.EvmEnv{
		ChainConfig: opts.Config,
		BlockCtx:    core.NewEVMBlockContext(opts.Header, nil),
		VMConfig:    vm.Config{NoBaseFee: true},
	}
	// Lower the base fee to zero for gratis probes so the invariant
	// basefee <= effective gas price keeps holding inside the interpreter.
	if msg.GasPrice == nil || msg.GasPrice.IsZero() {
		env.BlockCtx.BaseFee = new(big.Int)
	}
	return opts.Executor.Transact(env, msg, opts.State.Copy())
}

// callerGasAllowance returns the highest gas limit the sender can pay for at
// the effective gas price, after setting aside the transferred value.
func callerGasAllowance(st *state.Overlay, call *core.Message) (uint64, error) {
	balance := st.GetBalance(call.From)
	if err := st.Error(); err != nil {
		return 0, err
	}
	available := new(uint256.Int).Set(balance)
	if call.Value != nil {
		if call.Value.Cmp(available) >= 0 {
			return 0, core.ErrInsufficientFundsForTransfer
		}
		available.Sub(available, call.Value)
	}
	allowance := new(uint256.Int).Div(available, call.GasPrice)
	if !allowance.IsUint64() {
		return math.MaxUint64, nil
	}
	return allowance.Uint64(), nil
}

// disambiguateFailure re-executes a call that failed under caller-pinned gas
// values at the full block gas limit, to tell a lack of funds apart from a
// genuine execution failure and report whichever is authoritative.
func disambiguateFailure(ctx context.Context, call *core.Message, opts *Options, reqLimit uint64) (uint64, []byte, error) {
	result, err := execute(ctx, call, opts, opts.Header.GasLimit)
	if err != nil {
		return 0, nil, err
	}
	switch {
	case result.Succeeded():
		// The bytecode is fine, the pinned gas values starved it.
		return 0, nil, &BasicOutOfGasError{GasLimit: reqLimit}
	case result.Reverted():
		return 0, result.Revert(), result.Err
	default:
		return 0, nil, &HaltError{Reason: result.HaltReason(), GasLimit: opts.Header.GasLimit}
	}
}
