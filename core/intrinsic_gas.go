package core

import (
	"math"

	"github.com/gasgauge/gasgauge/core/types"
	"github.com/gasgauge/gasgauge/core/vm"
	"github.com/gasgauge/gasgauge/params"
)

// IntrinsicGas computes the gas a message consumes before any bytecode runs:
// the base transaction cost, the calldata cost, the initcode word cost for
// creations under EIP-3860 and the declared access list cost.
func IntrinsicGas(data []byte, accessList types.AccessList, isContractCreation, isEIP3860 bool) (uint64, error) {
	var gas uint64
	if isContractCreation {
		gas = params.TxGasContractCreation
	} else {
		gas = params.TxGas
	}
	dataLen := uint64(len(data))
	if dataLen > 0 {
		var nonZeros uint64
		for _, byt := range data {
			if byt != 0 {
				nonZeros++
			}
		}
		if (math.MaxUint64-gas)/params.TxDataNonZeroGas < nonZeros {
			return 0, vm.ErrGasUintOverflow
		}
		gas += nonZeros * params.TxDataNonZeroGas

		zeros := dataLen - nonZeros
		if (math.MaxUint64-gas)/params.TxDataZeroGas < zeros {
			return 0, vm.ErrGasUintOverflow
		}
		gas += zeros * params.TxDataZeroGas

		if isContractCreation && isEIP3860 {
			words := toWordSize(dataLen)
			if (math.MaxUint64-gas)/params.InitCodeWordGas < words {
				return 0, vm.ErrGasUintOverflow
			}
			gas += words * params.InitCodeWordGas
		}
	}
	if accessList != nil {
		gas += uint64(len(accessList)) * params.TxAccessListAddressGas
		gas += uint64(accessList.StorageKeys()) * params.TxAccessListStorageKeyGas
	}
	return gas, nil
}

// toWordSize returns the ceiled word size required for initcode payment.
func toWordSize(size uint64) uint64 {
	if size > math.MaxUint64-31 {
		return math.MaxUint64/32 + 1
	}
	return (size + 31) / 32
}
