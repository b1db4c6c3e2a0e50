package state

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/gasgauge/gasgauge/core/types"
	"github.com/gasgauge/gasgauge/core/vm"
	"github.com/gasgauge/gasgauge/crypto"
)

// stateObject is an account loaded into the overlay together with its
// execution-local storage buffers.
type stateObject struct {
	account       types.Account
	code          []byte
	codeLoaded    bool
	originStorage map[types.Hash]types.Hash // slot values as of the underlying reader
	dirtyStorage  map[types.Hash]types.Hash // slot values written during execution

	selfDestructed bool
}

func newStateObject() *stateObject {
	return &stateObject{
		account:       types.NewAccount(),
		originStorage: make(map[types.Hash]types.Hash),
		dirtyStorage:  make(map[types.Hash]types.Hash),
	}
}

func (obj *stateObject) copy() *stateObject {
	cp := &stateObject{
		account:        *obj.account.Copy(),
		code:           obj.code, // code is immutable once loaded
		codeLoaded:     obj.codeLoaded,
		originStorage:  make(map[types.Hash]types.Hash, len(obj.originStorage)),
		dirtyStorage:   make(map[types.Hash]types.Hash, len(obj.dirtyStorage)),
		selfDestructed: obj.selfDestructed,
	}
	for k, v := range obj.originStorage {
		cp.originStorage[k] = v
	}
	for k, v := range obj.dirtyStorage {
		cp.dirtyStorage[k] = v
	}
	return cp
}

// Overlay buffers execution writes on top of a read-only Reader. Accounts and
// storage slots are pulled from the reader on first touch and every mutation
// is journaled, so executions can snapshot and revert cheaply while the
// reader stays untouched.
//
// An Overlay is not safe for concurrent use. Concurrent executions over the
// same base state each take their own Copy.
type Overlay struct {
	reader Reader

	// stateObjects caches loaded accounts. A nil entry marks an address
	// known to be absent from the reader.
	stateObjects map[types.Address]*stateObject

	journal    *journal
	logs       []*types.Log
	refund     uint64
	accessList *accessList
	transient  map[types.Address]map[types.Hash]types.Hash

	// dbErr records the first reader failure. State getters are infallible
	// by contract, so failures are deferred here and surfaced via Error.
	dbErr error
}

var _ vm.StateDB = (*Overlay)(nil)

// NewOverlay creates an empty overlay on top of the given reader.
func NewOverlay(reader Reader) *Overlay {
	return &Overlay{
		reader:       reader,
		stateObjects: make(map[types.Address]*stateObject),
		journal:      newJournal(),
		accessList:   newAccessList(),
		transient:    make(map[types.Address]map[types.Hash]types.Hash),
	}
}

func (s *Overlay) setError(err error) {
	if s.dbErr == nil {
		s.dbErr = err
	}
}

// Error returns the first reader failure encountered, or nil. A non-nil
// error means every result produced since is suspect.
func (s *Overlay) Error() error {
	return s.dbErr
}

func (s *Overlay) getStateObject(addr types.Address) *stateObject {
	if obj, ok := s.stateObjects[addr]; ok {
		return obj
	}
	acct, err := s.reader.Account(addr)
	if err != nil {
		s.setError(fmt.Errorf("failed to load account %s: %w", addr, err))
		return nil
	}
	if acct == nil {
		s.stateObjects[addr] = nil
		return nil
	}
	obj := newStateObject()
	obj.account = *acct.Copy()
	s.stateObjects[addr] = obj
	return obj
}

func (s *Overlay) getOrNewStateObject(addr types.Address) *stateObject {
	if obj := s.getStateObject(addr); obj != nil {
		return obj
	}
	obj := newStateObject()
	s.journal.append(createAccountChange{addr: addr})
	s.stateObjects[addr] = obj
	return obj
}

// CreateAccount explicitly creates a new account. If the address already
// holds an account its balance is carried forward.
func (s *Overlay) CreateAccount(addr types.Address) {
	prev := s.getStateObject(addr)
	s.journal.append(createAccountChange{addr: addr, prev: prev})
	obj := newStateObject()
	if prev != nil {
		obj.account.Balance = new(uint256.Int).Set(prev.account.Balance)
	}
	s.stateObjects[addr] = obj
}

// --- Balance and nonce ---

func (s *Overlay) GetBalance(addr types.Address) *uint256.Int {
	if obj := s.getStateObject(addr); obj != nil {
		return new(uint256.Int).Set(obj.account.Balance)
	}
	return new(uint256.Int)
}

func (s *Overlay) AddBalance(addr types.Address, amount *uint256.Int) {
	obj := s.getOrNewStateObject(addr)
	s.journal.append(balanceChange{addr: addr, prev: obj.account.Balance})
	obj.account.Balance = new(uint256.Int).Add(obj.account.Balance, amount)
}

func (s *Overlay) SubBalance(addr types.Address, amount *uint256.Int) {
	obj := s.getOrNewStateObject(addr)
	s.journal.append(balanceChange{addr: addr, prev: obj.account.Balance})
	obj.account.Balance = new(uint256.Int).Sub(obj.account.Balance, amount)
}

func (s *Overlay) GetNonce(addr types.Address) uint64 {
	if obj := s.getStateObject(addr); obj != nil {
		return obj.account.Nonce
	}
	return 0
}

func (s *Overlay) SetNonce(addr types.Address, nonce uint64) {
	obj := s.getOrNewStateObject(addr)
	s.journal.append(nonceChange{addr: addr, prev: obj.account.Nonce})
	obj.account.Nonce = nonce
}

// --- Code ---

func (s *Overlay) GetCode(addr types.Address) []byte {
	obj := s.getStateObject(addr)
	if obj == nil {
		return nil
	}
	if !obj.codeLoaded {
		if obj.account.HasCode() {
			code, err := s.reader.Code(addr, types.BytesToHash(obj.account.CodeHash))
			if err != nil {
				s.setError(fmt.Errorf("failed to load code of %s: %w", addr, err))
				return nil
			}
			obj.code = code
		}
		obj.codeLoaded = true
	}
	return obj.code
}

func (s *Overlay) SetCode(addr types.Address, code []byte) {
	obj := s.getOrNewStateObject(addr)
	prevCode := s.GetCode(addr)
	prevHash := make([]byte, len(obj.account.CodeHash))
	copy(prevHash, obj.account.CodeHash)
	s.journal.append(codeChange{addr: addr, prevCode: prevCode, prevHash: prevHash})
	obj.code = code
	obj.codeLoaded = true
	obj.account.CodeHash = crypto.Keccak256(code)
}

func (s *Overlay) GetCodeHash(addr types.Address) types.Hash {
	if obj := s.getStateObject(addr); obj != nil {
		return types.BytesToHash(obj.account.CodeHash)
	}
	return types.Hash{}
}

func (s *Overlay) GetCodeSize(addr types.Address) int {
	return len(s.GetCode(addr))
}

// --- Storage ---

// originSlot returns the slot value as of the underlying reader, loading and
// caching it on first access.
func (s *Overlay) originSlot(obj *stateObject, addr types.Address, key types.Hash) types.Hash {
	if val, ok := obj.originStorage[key]; ok {
		return val
	}
	val, err := s.reader.Storage(addr, key)
	if err != nil {
		s.setError(fmt.Errorf("failed to load storage slot %s of %s: %w", key, addr, err))
		return types.Hash{}
	}
	obj.originStorage[key] = val
	return val
}

func (s *Overlay) GetState(addr types.Address, key types.Hash) types.Hash {
	obj := s.getStateObject(addr)
	if obj == nil {
		return types.Hash{}
	}
	if val, ok := obj.dirtyStorage[key]; ok {
		return val
	}
	return s.originSlot(obj, addr, key)
}

func (s *Overlay) SetState(addr types.Address, key types.Hash, value types.Hash) {
	obj := s.getOrNewStateObject(addr)
	prev, prevExists := obj.dirtyStorage[key]
	s.journal.append(storageChange{addr: addr, key: key, prev: prev, prevExists: prevExists})
	obj.dirtyStorage[key] = value
}

// GetCommittedState returns the slot value as it was before the current
// execution, ignoring any dirty writes.
func (s *Overlay) GetCommittedState(addr types.Address, key types.Hash) types.Hash {
	obj := s.getStateObject(addr)
	if obj == nil {
		return types.Hash{}
	}
	return s.originSlot(obj, addr, key)
}

// --- Transient storage (EIP-1153) ---

func (s *Overlay) GetTransientState(addr types.Address, key types.Hash) types.Hash {
	if slots, ok := s.transient[addr]; ok {
		return slots[key]
	}
	return types.Hash{}
}

func (s *Overlay) SetTransientState(addr types.Address, key types.Hash, value types.Hash) {
	prev := s.GetTransientState(addr, key)
	if prev == value {
		return
	}
	s.journal.append(transientStorageChange{addr: addr, key: key, prev: prev})
	if _, ok := s.transient[addr]; !ok {
		s.transient[addr] = make(map[types.Hash]types.Hash)
	}
	s.transient[addr][key] = value
}

// --- Self-destruct ---

func (s *Overlay) SelfDestruct(addr types.Address) {
	obj := s.getStateObject(addr)
	if obj == nil {
		return
	}
	s.journal.append(selfDestructChange{
		addr:           addr,
		prevDestructed: obj.selfDestructed,
		prevBalance:    obj.account.Balance,
	})
	obj.selfDestructed = true
	obj.account.Balance = new(uint256.Int)
}

func (s *Overlay) HasSelfDestructed(addr types.Address) bool {
	if obj := s.getStateObject(addr); obj != nil {
		return obj.selfDestructed
	}
	return false
}

// --- Existence ---

func (s *Overlay) Exist(addr types.Address) bool {
	return s.getStateObject(addr) != nil
}

func (s *Overlay) Empty(addr types.Address) bool {
	obj := s.getStateObject(addr)
	if obj == nil {
		return true
	}
	return obj.account.Nonce == 0 &&
		obj.account.Balance.IsZero() &&
		!obj.account.HasCode()
}

// --- Snapshot and revert ---

func (s *Overlay) Snapshot() int {
	return s.journal.snapshot()
}

func (s *Overlay) RevertToSnapshot(id int) {
	s.journal.revertToSnapshot(id, s)
}

// --- Logs ---

func (s *Overlay) AddLog(log *types.Log) {
	s.journal.append(logChange{prevLen: len(s.logs)})
	s.logs = append(s.logs, log)
}

// Logs returns the logs emitted during the current execution.
func (s *Overlay) Logs() []*types.Log {
	return s.logs
}

// --- Refund counter ---

func (s *Overlay) AddRefund(gas uint64) {
	s.journal.append(refundChange{prev: s.refund})
	s.refund += gas
}

func (s *Overlay) SubRefund(gas uint64) {
	s.journal.append(refundChange{prev: s.refund})
	if gas > s.refund {
		panic(fmt.Sprintf("refund counter below zero (gas: %d > refund: %d)", gas, s.refund))
	}
	s.refund -= gas
}

func (s *Overlay) GetRefund() uint64 {
	return s.refund
}

// --- Access list (EIP-2929) ---

func (s *Overlay) AddAddressToAccessList(addr types.Address) {
	if !s.accessList.AddAddress(addr) {
		s.journal.append(accessListAddAccountChange{addr: addr})
	}
}

func (s *Overlay) AddSlotToAccessList(addr types.Address, slot types.Hash) {
	addrPresent, slotPresent := s.accessList.AddSlot(addr, slot)
	if !addrPresent {
		s.journal.append(accessListAddAccountChange{addr: addr})
	}
	if !slotPresent {
		s.journal.append(accessListAddSlotChange{addr: addr, slot: slot})
	}
}

func (s *Overlay) AddressInAccessList(addr types.Address) bool {
	return s.accessList.ContainsAddress(addr)
}

func (s *Overlay) SlotInAccessList(addr types.Address, slot types.Hash) (addressOk bool, slotOk bool) {
	return s.accessList.ContainsSlot(addr, slot)
}

// --- Copy ---

// Copy returns an independent overlay over the same reader with all loaded
// and written state duplicated. The journal starts fresh: snapshots taken on
// the original do not exist on the copy.
func (s *Overlay) Copy() *Overlay {
	cp := &Overlay{
		reader:       s.reader,
		stateObjects: make(map[types.Address]*stateObject, len(s.stateObjects)),
		journal:      newJournal(),
		refund:       s.refund,
		accessList:   s.accessList.Copy(),
		transient:    make(map[types.Address]map[types.Hash]types.Hash, len(s.transient)),
		dbErr:        s.dbErr,
	}
	for addr, obj := range s.stateObjects {
		if obj == nil {
			cp.stateObjects[addr] = nil
			continue
		}
		cp.stateObjects[addr] = obj.copy()
	}
	for addr, slots := range s.transient {
		set := make(map[types.Hash]types.Hash, len(slots))
		for k, v := range slots {
			set[k] = v
		}
		cp.transient[addr] = set
	}
	if len(s.logs) > 0 {
		cp.logs = make([]*types.Log, len(s.logs))
		copy(cp.logs, s.logs)
	}
	return cp
}
