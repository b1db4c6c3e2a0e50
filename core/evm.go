package core

import (
	"math/big"

	"github.com/gasgauge/gasgauge/core/types"
	"github.com/gasgauge/gasgauge/core/vm"
	"github.com/gasgauge/gasgauge/params"
)

// EvmEnv carries everything an Executor needs besides the message and the
// state: the chain rules in force, the block the message runs in and the
// per-execution knobs.
type EvmEnv struct {
	ChainConfig *ChainConfig
	BlockCtx    vm.BlockContext
	VMConfig    vm.Config
}

// NewEVMBlockContext builds an execution block context from a header.
// getHash serves the BLOCKHASH opcode and may be nil when the backing
// interpreter never consults ancestor hashes.
func NewEVMBlockContext(header *types.Header, getHash vm.GetHashFunc) vm.BlockContext {
	ctx := vm.BlockContext{
		GetHash:     getHash,
		Coinbase:    header.Coinbase,
		GasLimit:    header.GasLimit,
		BlockNumber: new(big.Int),
		Time:        header.Time,
		Difficulty:  new(big.Int),
	}
	if header.Number != nil {
		ctx.BlockNumber.Set(header.Number)
	}
	if header.Difficulty != nil {
		ctx.Difficulty.Set(header.Difficulty)
	}
	if header.BaseFee != nil {
		ctx.BaseFee = new(big.Int).Set(header.BaseFee)
	}
	if header.ExcessBlobGas != nil {
		ctx.BlobBaseFee = CalcBlobBaseFee(*header.ExcessBlobGas)
	}
	// Post-merge headers repurpose the mix digest field for the randao mix.
	if header.Difficulty == nil || header.Difficulty.Sign() == 0 {
		ctx.PrevRandao = header.MixDigest
	}
	return ctx
}

// CalcBlobBaseFee computes the blob base fee from the excess blob gas
// accumulated by the parent, per EIP-4844.
func CalcBlobBaseFee(excessBlobGas uint64) *big.Int {
	return fakeExponential(
		big.NewInt(params.BlobTxMinBlobGasprice),
		new(big.Int).SetUint64(excessBlobGas),
		big.NewInt(params.BlobTxBlobGaspriceUpdateFraction),
	)
}

// fakeExponential approximates factor * e^(numerator/denominator) with a
// Taylor expansion, matching the EIP-4844 reference exactly.
func fakeExponential(factor, numerator, denominator *big.Int) *big.Int {
	var (
		output = new(big.Int)
		accum  = new(big.Int).Mul(factor, denominator)
	)
	for i := 1; accum.Sign() > 0; i++ {
		output.Add(output, accum)

		accum.Mul(accum, numerator)
		accum.Div(accum, denominator)
		accum.Div(accum, big.NewInt(int64(i)))
	}
	return output.Div(output, denominator)
}
