package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/holiman/uint256"

	"github.com/gasgauge/gasgauge/core/state"
	"github.com/gasgauge/gasgauge/core/types"
	"github.com/gasgauge/gasgauge/rpc"
)

// genesisAccount is one account of a genesis alloc. Balances accept both
// decimal and 0x-prefixed hex, matching the common genesis file dialects.
type genesisAccount struct {
	Code    hexutil.Bytes             `json:"code,omitempty"`
	Storage map[types.Hash]types.Hash `json:"storage,omitempty"`
	Balance *math.HexOrDecimal256     `json:"balance"`
	Nonce   math.HexOrDecimal64       `json:"nonce,omitempty"`
}

// genesis is the subset of a genesis file the estimator cares about. Block
// parameters come from flags instead, so everything but the alloc is
// ignored.
type genesis struct {
	Alloc map[types.Address]genesisAccount `json:"alloc"`
}

// loadGenesisAlloc reads a genesis file and seeds db with its alloc.
func loadGenesisAlloc(path string, db *state.MemDB) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read genesis: %w", err)
	}
	var gen genesis
	if err := json.Unmarshal(data, &gen); err != nil {
		return fmt.Errorf("parse genesis: %w", err)
	}
	for addr, account := range gen.Alloc {
		if account.Balance != nil {
			balance, overflow := uint256.FromBig((*big.Int)(account.Balance))
			if overflow {
				return fmt.Errorf("balance of %s out of range", addr.Hex())
			}
			db.SetBalance(addr, balance)
		}
		if account.Nonce != 0 {
			db.SetNonce(addr, uint64(account.Nonce))
		}
		if len(account.Code) > 0 {
			db.SetCode(addr, account.Code)
		}
		for slot, value := range account.Storage {
			db.SetStorage(addr, slot, value)
		}
	}
	return nil
}

// loadTransaction reads the transaction arguments from path, or from stdin
// when path is "-".
func loadTransaction(path string, stdin io.Reader) (rpc.TransactionArgs, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return rpc.TransactionArgs{}, fmt.Errorf("read transaction: %w", err)
	}
	var args rpc.TransactionArgs
	if err := json.Unmarshal(data, &args); err != nil {
		return rpc.TransactionArgs{}, fmt.Errorf("parse transaction: %w", err)
	}
	return args, nil
}
