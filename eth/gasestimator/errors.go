package gasestimator

import "fmt"

// ExceedsAllowanceError is returned when the capped search ceiling cannot
// even cover the intrinsic cost of the call, meaning the sender's funds do
// not pay for the gas the call requires.
type ExceedsAllowanceError struct {
	GasLimit uint64 // ceiling the estimation was capped to
}

func (e *ExceedsAllowanceError) Error() string {
	return fmt.Sprintf("gas required exceeds allowance (%d)", e.GasLimit)
}

// BasicOutOfGasError is returned when a call fails at the caller-pinned gas
// limit or price but succeeds at the full block gas limit: the pinned values
// are what starved it, not the bytecode.
type BasicOutOfGasError struct {
	GasLimit uint64 // gas limit the caller pinned
}

func (e *BasicOutOfGasError) Error() string {
	return fmt.Sprintf("out of gas: gas required exceeds allowance (%d)", e.GasLimit)
}

// HaltError is returned when the call aborts even at a gas limit no search
// step could raise further.
type HaltError struct {
	Reason   error
	GasLimit uint64 // gas limit the halting execution ran with
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("%v (supplied gas %d)", e.Reason, e.GasLimit)
}

func (e *HaltError) Unwrap() error {
	return e.Reason
}
