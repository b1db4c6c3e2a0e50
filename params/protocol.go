// Package params holds the protocol constants the estimation engine must
// reproduce exactly to stay compatible with reference node behaviour.
package params

const (
	// TxGas is the base gas charged for every transaction that is not a
	// contract creation.
	TxGas uint64 = 21000

	// TxGasContractCreation is the base gas for a contract creation
	// transaction (21000 + 32000 creation surcharge).
	TxGasContractCreation uint64 = 53000

	// TxDataZeroGas is the gas charged per zero byte of transaction data.
	TxDataZeroGas uint64 = 4

	// TxDataNonZeroGas is the gas charged per non-zero byte of transaction data.
	TxDataNonZeroGas uint64 = 16

	// TxAccessListAddressGas is the gas cost per access list address entry.
	TxAccessListAddressGas uint64 = 2400

	// TxAccessListStorageKeyGas is the gas cost per access list storage key.
	TxAccessListStorageKeyGas uint64 = 1900

	// CallStipend is the free gas given at the beginning of a call so the
	// callee can at least emit a log.
	CallStipend uint64 = 2300

	// RefundQuotient caps the gas refund at a fifth of the gas used (EIP-3529).
	RefundQuotient uint64 = 5

	// InitCodeWordGas is the gas charged per 32-byte word of initcode on a
	// contract creation (EIP-3860).
	InitCodeWordGas uint64 = 2

	// MaxCodeSize is the maximum bytecode a contract may have (EIP-170).
	MaxCodeSize = 24576

	// MaxInitCodeSize is the maximum initcode a creation may carry (EIP-3860).
	MaxInitCodeSize = 2 * MaxCodeSize

	// BlobTxMinBlobGasprice is the floor of the blob gas price (EIP-4844).
	BlobTxMinBlobGasprice = 1

	// BlobTxBlobGaspriceUpdateFraction controls how fast the blob gas price
	// reacts to excess blob gas (EIP-4844, Cancun value).
	BlobTxBlobGaspriceUpdateFraction = 3338477

	// GenesisGasLimit is the default block gas limit when none is configured.
	GenesisGasLimit uint64 = 30_000_000
)

// EstimateGasErrorRatio is the amount of overestimation eth_estimateGas is
// allowed to produce in order to speed up calculations. Wallets bump the
// returned value by 20-25% anyway, so a small upward error is harmless.
const EstimateGasErrorRatio = 0.015
