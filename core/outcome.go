package core

import (
	"errors"

	"github.com/gasgauge/gasgauge/core/vm"
)

// ExecutionOutcome is the result of running a validated message. A non-nil
// Err never means the message was malformed, only that the bytecode failed:
// vm.ErrExecutionReverted for an orderly REVERT carrying return data, any
// other error for a halt that consumed all remaining gas.
type ExecutionOutcome struct {
	UsedGas     uint64 // gas charged to the sender, refunds already deducted
	RefundedGas uint64 // gas returned by the refund counter
	Err         error  // nil on success
	ReturnData  []byte // output on success, revert data on revert
}

// Succeeded reports whether execution completed without an error.
func (o *ExecutionOutcome) Succeeded() bool {
	return o.Err == nil
}

// Failed reports whether execution ended with an error of any class.
func (o *ExecutionOutcome) Failed() bool {
	return o.Err != nil
}

// Reverted reports whether execution ended in an orderly REVERT.
func (o *ExecutionOutcome) Reverted() bool {
	return errors.Is(o.Err, vm.ErrExecutionReverted)
}

// Halted reports whether execution aborted for any reason other than REVERT,
// such as running out of gas or hitting an invalid opcode.
func (o *ExecutionOutcome) Halted() bool {
	return o.Err != nil && !o.Reverted()
}

// HaltReason returns the halt error, or nil if execution did not halt.
func (o *ExecutionOutcome) HaltReason() error {
	if !o.Halted() {
		return nil
	}
	return o.Err
}

// Return returns the output of a successful execution, nil otherwise.
func (o *ExecutionOutcome) Return() []byte {
	if o.Err != nil {
		return nil
	}
	return o.ReturnData
}

// Revert returns the revert data if execution reverted, nil otherwise.
func (o *ExecutionOutcome) Revert() []byte {
	if !o.Reverted() {
		return nil
	}
	return o.ReturnData
}
