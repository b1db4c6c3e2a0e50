package state

import (
	"sync"

	"github.com/holiman/uint256"

	"github.com/gasgauge/gasgauge/core/types"
	"github.com/gasgauge/gasgauge/crypto"
)

// MemDB is an in-memory Reader with setters, used by tests and the CLI to
// assemble a world state by hand. It is safe for concurrent use.
type MemDB struct {
	mu       sync.RWMutex
	accounts map[types.Address]*types.Account
	codes    map[types.Address][]byte
	storage  map[types.Address]map[types.Hash]types.Hash
}

// NewMemDB creates an empty in-memory state.
func NewMemDB() *MemDB {
	return &MemDB{
		accounts: make(map[types.Address]*types.Account),
		codes:    make(map[types.Address][]byte),
		storage:  make(map[types.Address]map[types.Hash]types.Hash),
	}
}

func (db *MemDB) Account(addr types.Address) (*types.Account, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	acct, ok := db.accounts[addr]
	if !ok {
		return nil, nil
	}
	return acct.Copy(), nil
}

func (db *MemDB) Code(addr types.Address, codeHash types.Hash) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.codes[addr], nil
}

func (db *MemDB) Storage(addr types.Address, slot types.Hash) (types.Hash, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if slots, ok := db.storage[addr]; ok {
		return slots[slot], nil
	}
	return types.Hash{}, nil
}

func (db *MemDB) getOrNewAccount(addr types.Address) *types.Account {
	acct, ok := db.accounts[addr]
	if !ok {
		fresh := types.NewAccount()
		acct = &fresh
		db.accounts[addr] = acct
	}
	return acct
}

// SetBalance sets the balance of an account, creating it if needed.
func (db *MemDB) SetBalance(addr types.Address, balance *uint256.Int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.getOrNewAccount(addr).Balance = new(uint256.Int).Set(balance)
}

// SetNonce sets the nonce of an account, creating it if needed.
func (db *MemDB) SetNonce(addr types.Address, nonce uint64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.getOrNewAccount(addr).Nonce = nonce
}

// SetCode sets the code of an account, creating it if needed. The code hash
// is derived from the code.
func (db *MemDB) SetCode(addr types.Address, code []byte) {
	db.mu.Lock()
	defer db.mu.Unlock()
	acct := db.getOrNewAccount(addr)
	acct.CodeHash = crypto.Keccak256(code)
	db.codes[addr] = code
}

// SetStorage sets a single storage slot of an account, creating it if needed.
func (db *MemDB) SetStorage(addr types.Address, slot, value types.Hash) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.getOrNewAccount(addr)
	if _, ok := db.storage[addr]; !ok {
		db.storage[addr] = make(map[types.Hash]types.Hash)
	}
	db.storage[addr][slot] = value
}
