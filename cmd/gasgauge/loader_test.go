package main

import (
	"strings"
	"testing"

	"github.com/gasgauge/gasgauge/core/state"
	"github.com/gasgauge/gasgauge/core/types"
)

func TestLoadGenesisAlloc(t *testing.T) {
	path := writeFile(t, "genesis.json", `{
		"config": {"chainId": 1337},
		"gasLimit": "0x1c9c380",
		"alloc": {
			"0x1000000000000000000000000000000000000001": {
				"balance": "1000000000000000000"
			},
			"0x1000000000000000000000000000000000000002": {
				"balance": "0xde0b6b3a7640000",
				"nonce": "0x5"
			},
			"0x1000000000000000000000000000000000000003": {
				"balance": "0",
				"code": "0x6001600101",
				"storage": {
					"0x0000000000000000000000000000000000000000000000000000000000000001":
					"0x000000000000000000000000000000000000000000000000000000000000002a"
				}
			}
		}
	}`)

	db := state.NewMemDB()
	if err := loadGenesisAlloc(path, db); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	// Decimal balance.
	acc, err := db.Account(types.HexToAddress("0x1000000000000000000000000000000000000001"))
	if err != nil || acc == nil {
		t.Fatalf("account 1 missing: %v", err)
	}
	if acc.Balance.String() != "1000000000000000000" {
		t.Errorf("balance 1 = %s, want 1000000000000000000", acc.Balance)
	}

	// Hex balance and nonce.
	acc, err = db.Account(types.HexToAddress("0x1000000000000000000000000000000000000002"))
	if err != nil || acc == nil {
		t.Fatalf("account 2 missing: %v", err)
	}
	if acc.Balance.String() != "1000000000000000000" {
		t.Errorf("balance 2 = %s, want 1000000000000000000", acc.Balance)
	}
	if acc.Nonce != 5 {
		t.Errorf("nonce 2 = %d, want 5", acc.Nonce)
	}

	// Code and storage.
	addr3 := types.HexToAddress("0x1000000000000000000000000000000000000003")
	acc, err = db.Account(addr3)
	if err != nil || acc == nil {
		t.Fatalf("account 3 missing: %v", err)
	}
	code, err := db.Code(addr3, types.BytesToHash(acc.CodeHash))
	if err != nil {
		t.Fatalf("code read failed: %v", err)
	}
	if len(code) != 5 || code[0] != 0x60 {
		t.Errorf("code 3 = %x, want 6001600101", code)
	}
	slot := types.HexToHash("0x01")
	value, err := db.Storage(addr3, slot)
	if err != nil {
		t.Fatalf("storage read failed: %v", err)
	}
	if value != types.HexToHash("0x2a") {
		t.Errorf("storage 3 = %v, want 0x2a", value)
	}
}

func TestLoadGenesisAllocBadJSON(t *testing.T) {
	path := writeFile(t, "genesis.json", `{"alloc": [1, 2, 3]}`)
	if err := loadGenesisAlloc(path, state.NewMemDB()); err == nil {
		t.Fatal("malformed alloc accepted")
	}
}

func TestLoadGenesisAllocMissingFile(t *testing.T) {
	err := loadGenesisAlloc("/nonexistent/genesis.json", state.NewMemDB())
	if err == nil || !strings.Contains(err.Error(), "read genesis") {
		t.Fatalf("error mismatch: %v", err)
	}
}

func TestLoadTransactionFromFile(t *testing.T) {
	path := writeFile(t, "tx.json", `{
		"from": "0x1000000000000000000000000000000000000001",
		"to": "0x1000000000000000000000000000000000000002",
		"gas": "0x5208",
		"input": "0xdeadbeef"
	}`)
	args, err := loadTransaction(path, nil)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if args.To == nil || *args.To != types.HexToAddress("0x1000000000000000000000000000000000000002") {
		t.Errorf("to mismatch: %v", args.To)
	}
	if args.Gas == nil || uint64(*args.Gas) != 21000 {
		t.Errorf("gas mismatch: %v", args.Gas)
	}
	if args.Input == nil || len(*args.Input) != 4 {
		t.Errorf("input mismatch: %v", args.Input)
	}
}

func TestLoadTransactionFromStdin(t *testing.T) {
	stdin := strings.NewReader(`{"to": "0x1000000000000000000000000000000000000002"}`)
	args, err := loadTransaction("-", stdin)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if args.To == nil {
		t.Fatal("to missing")
	}
}

func TestLoadTransactionBadJSON(t *testing.T) {
	path := writeFile(t, "tx.json", `{"to": 42}`)
	_, err := loadTransaction(path, nil)
	if err == nil || !strings.Contains(err.Error(), "parse transaction") {
		t.Fatalf("error mismatch: %v", err)
	}
}
