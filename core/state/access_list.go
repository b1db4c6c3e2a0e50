package state

import "github.com/gasgauge/gasgauge/core/types"

// accessList tracks warm addresses and storage slots per EIP-2929. A nil
// slot set means the address is warm but none of its slots are.
type accessList struct {
	entries map[types.Address]map[types.Hash]struct{}
}

func newAccessList() *accessList {
	return &accessList{entries: make(map[types.Address]map[types.Hash]struct{})}
}

// AddAddress marks an address warm. Returns whether it already was.
func (al *accessList) AddAddress(addr types.Address) bool {
	if _, ok := al.entries[addr]; ok {
		return true
	}
	al.entries[addr] = nil
	return false
}

// AddSlot marks a slot warm, warming the address along the way. Returns
// whether the address and the slot were already present.
func (al *accessList) AddSlot(addr types.Address, slot types.Hash) (addrPresent, slotPresent bool) {
	slots, addrPresent := al.entries[addr]
	if slots == nil {
		slots = make(map[types.Hash]struct{})
		al.entries[addr] = slots
	}
	if _, slotPresent = slots[slot]; slotPresent {
		return true, true
	}
	slots[slot] = struct{}{}
	return addrPresent, false
}

// ContainsAddress returns whether the address is warm.
func (al *accessList) ContainsAddress(addr types.Address) bool {
	_, ok := al.entries[addr]
	return ok
}

// ContainsSlot returns whether the address and the slot are warm.
func (al *accessList) ContainsSlot(addr types.Address, slot types.Hash) (addressOk, slotOk bool) {
	slots, ok := al.entries[addr]
	if !ok {
		return false, false
	}
	if slots == nil {
		return true, false
	}
	_, slotOk = slots[slot]
	return true, slotOk
}

// DeleteAddress removes an address entirely. Only valid for reverting an
// AddAddress that reported the address as new.
func (al *accessList) DeleteAddress(addr types.Address) {
	delete(al.entries, addr)
}

// DeleteSlot removes a slot from a warm address. Only valid for reverting an
// AddSlot that reported the slot as new.
func (al *accessList) DeleteSlot(addr types.Address, slot types.Hash) {
	if slots, ok := al.entries[addr]; ok && slots != nil {
		delete(slots, slot)
	}
}

// Copy returns an independent copy of the access list.
func (al *accessList) Copy() *accessList {
	cp := newAccessList()
	for addr, slots := range al.entries {
		if slots == nil {
			cp.entries[addr] = nil
			continue
		}
		set := make(map[types.Hash]struct{}, len(slots))
		for slot := range slots {
			set[slot] = struct{}{}
		}
		cp.entries[addr] = set
	}
	return cp
}
