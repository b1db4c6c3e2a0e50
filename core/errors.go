package core

import (
	"errors"
	"fmt"
)

// Message validation failures. These reject a message before any bytecode
// runs, as opposed to execution failures which are reported inside an
// ExecutionOutcome.
var (
	// ErrNonceTooLow is returned when the nonce of a message is lower than
	// the one present in the local state.
	ErrNonceTooLow = errors.New("nonce too low")

	// ErrNonceTooHigh is returned when the nonce of a message is higher than
	// the one present in the local state.
	ErrNonceTooHigh = errors.New("nonce too high")

	// ErrNonceMax is returned when the nonce of a message sender is at its
	// maximum value and incrementing it would overflow.
	ErrNonceMax = errors.New("nonce has max value")

	// ErrGasLimitTooHigh is returned when the gas limit of a message is
	// above the gas limit of the block it would run in.
	ErrGasLimitTooHigh = errors.New("exceeds block gas limit")

	// ErrInsufficientFundsForTransfer is returned when the value of a
	// message alone exceeds the sender balance.
	ErrInsufficientFundsForTransfer = errors.New("insufficient funds for transfer")

	// ErrInsufficientFunds is returned when the total cost of a message is
	// higher than the sender balance.
	ErrInsufficientFunds = errors.New("insufficient funds for gas * price + value")

	// ErrIntrinsicGas is returned when the gas limit of a message does not
	// cover even its intrinsic cost.
	ErrIntrinsicGas = errors.New("intrinsic gas too low")

	// ErrFeeCapTooLow is returned when the fee cap of a message is below
	// the base fee of the block.
	ErrFeeCapTooLow = errors.New("max fee per gas less than block base fee")

	// ErrTipAboveFeeCap is returned when the priority fee of a message is
	// above its fee cap.
	ErrTipAboveFeeCap = errors.New("max priority fee per gas higher than max fee per gas")

	// ErrSenderNoEOA is returned when the sender of a message is a contract.
	ErrSenderNoEOA = errors.New("sender not an EOA")
)

// TxErrorKind classifies message validation failures. The estimation loop
// steers its search off the kind alone, so every failure must map to exactly
// one of these.
type TxErrorKind uint8

const (
	KindNonceTooLow TxErrorKind = iota
	KindNonceTooHigh
	KindNonceMax
	KindSenderNotEOA
	KindFeeCapBelowBaseFee
	KindTipAboveFeeCap
	KindInsufficientFunds
	KindIntrinsicGas
	KindGasLimitTooHigh
)

func (k TxErrorKind) String() string {
	switch k {
	case KindNonceTooLow:
		return "nonce too low"
	case KindNonceTooHigh:
		return "nonce too high"
	case KindNonceMax:
		return "nonce max"
	case KindSenderNotEOA:
		return "sender not EOA"
	case KindFeeCapBelowBaseFee:
		return "fee cap below base fee"
	case KindTipAboveFeeCap:
		return "tip above fee cap"
	case KindInsufficientFunds:
		return "insufficient funds"
	case KindIntrinsicGas:
		return "intrinsic gas too low"
	case KindGasLimitTooHigh:
		return "gas limit too high"
	default:
		return fmt.Sprintf("unknown kind %d", uint8(k))
	}
}

// TxValidationError is a message validation failure tagged with its kind.
// It wraps the underlying sentinel so errors.Is keeps working against the
// package-level errors above.
type TxValidationError struct {
	Kind TxErrorKind
	Err  error
}

func (e *TxValidationError) Error() string {
	return e.Err.Error()
}

func (e *TxValidationError) Unwrap() error {
	return e.Err
}

// GasTooHigh reports whether the failure means the gas limit exceeded what
// the block allows. The estimation search answers it by lowering the probe
// limit.
func (e *TxValidationError) GasTooHigh() bool {
	return e.Kind == KindGasLimitTooHigh
}

// GasTooLow reports whether the failure means the gas limit did not cover
// the intrinsic cost. The estimation search answers it by raising the probe
// limit.
func (e *TxValidationError) GasTooLow() bool {
	return e.Kind == KindIntrinsicGas
}

func validationError(kind TxErrorKind, err error) *TxValidationError {
	return &TxValidationError{Kind: kind, Err: err}
}

// IsGasTooHigh reports whether err is a validation failure for a gas limit
// above the block allowance.
func IsGasTooHigh(err error) bool {
	var vErr *TxValidationError
	return errors.As(err, &vErr) && vErr.GasTooHigh()
}

// IsGasTooLow reports whether err is a validation failure for a gas limit
// below the intrinsic cost.
func IsGasTooLow(err error) bool {
	var vErr *TxValidationError
	return errors.As(err, &vErr) && vErr.GasTooLow()
}
