package state

import (
	"github.com/holiman/uint256"

	"github.com/gasgauge/gasgauge/core/types"
)

// journalEntry is a revertible state change.
type journalEntry interface {
	revert(s *Overlay)
}

// journal tracks overlay modifications for snapshot/revert.
type journal struct {
	entries   []journalEntry
	snapshots map[int]int // snapshot ID -> entry index
	nextID    int
}

func newJournal() *journal {
	return &journal{
		snapshots: make(map[int]int),
	}
}

func (j *journal) append(entry journalEntry) {
	j.entries = append(j.entries, entry)
}

func (j *journal) snapshot() int {
	id := j.nextID
	j.nextID++
	j.snapshots[id] = len(j.entries)
	return id
}

func (j *journal) revertToSnapshot(id int, s *Overlay) {
	idx, ok := j.snapshots[id]
	if !ok {
		return
	}
	// Revert in reverse order.
	for i := len(j.entries) - 1; i >= idx; i-- {
		j.entries[i].revert(s)
	}
	j.entries = j.entries[:idx]

	// Taking snapshot 3 and reverting to 1 invalidates 2 and 3.
	for sid := range j.snapshots {
		if sid >= id {
			delete(j.snapshots, sid)
		}
	}
}

// --- Concrete journal entries ---

type createAccountChange struct {
	addr types.Address
	prev *stateObject // nil if the account didn't exist before
}

func (ch createAccountChange) revert(s *Overlay) {
	// A nil previous object re-establishes the known-absent marker.
	s.stateObjects[ch.addr] = ch.prev
}

type balanceChange struct {
	addr types.Address
	prev *uint256.Int
}

func (ch balanceChange) revert(s *Overlay) {
	if obj := s.getStateObject(ch.addr); obj != nil {
		obj.account.Balance = ch.prev
	}
}

type nonceChange struct {
	addr types.Address
	prev uint64
}

func (ch nonceChange) revert(s *Overlay) {
	if obj := s.getStateObject(ch.addr); obj != nil {
		obj.account.Nonce = ch.prev
	}
}

type codeChange struct {
	addr     types.Address
	prevCode []byte
	prevHash []byte
}

func (ch codeChange) revert(s *Overlay) {
	if obj := s.getStateObject(ch.addr); obj != nil {
		obj.code = ch.prevCode
		obj.codeLoaded = true
		obj.account.CodeHash = ch.prevHash
	}
}

type storageChange struct {
	addr       types.Address
	key        types.Hash
	prev       types.Hash
	prevExists bool // true if the key was present in dirtyStorage before
}

func (ch storageChange) revert(s *Overlay) {
	if obj := s.getStateObject(ch.addr); obj != nil {
		if ch.prevExists {
			obj.dirtyStorage[ch.key] = ch.prev
		} else {
			// The slot was not dirty before this write; remove it so the
			// origin value is visible again.
			delete(obj.dirtyStorage, ch.key)
		}
	}
}

type selfDestructChange struct {
	addr           types.Address
	prevDestructed bool
	prevBalance    *uint256.Int
}

func (ch selfDestructChange) revert(s *Overlay) {
	if obj := s.getStateObject(ch.addr); obj != nil {
		obj.selfDestructed = ch.prevDestructed
		obj.account.Balance = ch.prevBalance
	}
}

type accessListAddAccountChange struct {
	addr types.Address
}

func (ch accessListAddAccountChange) revert(s *Overlay) {
	s.accessList.DeleteAddress(ch.addr)
}

type accessListAddSlotChange struct {
	addr types.Address
	slot types.Hash
}

func (ch accessListAddSlotChange) revert(s *Overlay) {
	s.accessList.DeleteSlot(ch.addr, ch.slot)
}

type transientStorageChange struct {
	addr types.Address
	key  types.Hash
	prev types.Hash
}

func (ch transientStorageChange) revert(s *Overlay) {
	if ch.prev == (types.Hash{}) {
		delete(s.transient[ch.addr], ch.key)
		if len(s.transient[ch.addr]) == 0 {
			delete(s.transient, ch.addr)
		}
	} else {
		s.transient[ch.addr][ch.key] = ch.prev
	}
}

type logChange struct {
	prevLen int
}

func (ch logChange) revert(s *Overlay) {
	s.logs = s.logs[:ch.prevLen]
}

type refundChange struct {
	prev uint64
}

func (ch refundChange) revert(s *Overlay) {
	s.refund = ch.prev
}
