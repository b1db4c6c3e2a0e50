package state

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"github.com/gasgauge/gasgauge/core/types"
)

var (
	addrA = types.HexToAddress("0xaa")
	addrB = types.HexToAddress("0xbb")

	slot1 = types.HexToHash("0x01")
	slot2 = types.HexToHash("0x02")

	val1 = types.HexToHash("0x1111")
	val2 = types.HexToHash("0x2222")
)

func testReader(t *testing.T) *MemDB {
	t.Helper()
	db := NewMemDB()
	db.SetBalance(addrA, uint256.NewInt(1_000_000))
	db.SetNonce(addrA, 5)
	db.SetCode(addrB, []byte{0x60, 0x00})
	db.SetStorage(addrB, slot1, val1)
	return db
}

func TestOverlayLazyLoad(t *testing.T) {
	ov := NewOverlay(testReader(t))

	if got := ov.GetBalance(addrA); got.Uint64() != 1_000_000 {
		t.Fatalf("balance: got %s, want 1000000", got)
	}
	if got := ov.GetNonce(addrA); got != 5 {
		t.Fatalf("nonce: got %d, want 5", got)
	}
	if !ov.Exist(addrA) {
		t.Fatal("existing account reported absent")
	}
	if ov.Exist(types.HexToAddress("0xcc")) {
		t.Fatal("absent account reported existing")
	}
	if got := ov.GetCode(addrB); len(got) != 2 {
		t.Fatalf("code: got %d bytes, want 2", len(got))
	}
	if got := ov.GetCodeSize(addrB); got != 2 {
		t.Fatalf("code size: got %d, want 2", got)
	}
	if got := ov.GetState(addrB, slot1); got != val1 {
		t.Fatalf("storage: got %s, want %s", got, val1)
	}
	if err := ov.Error(); err != nil {
		t.Fatalf("unexpected overlay error: %v", err)
	}
}

func TestOverlayBalanceRevert(t *testing.T) {
	ov := NewOverlay(testReader(t))

	snap := ov.Snapshot()
	ov.SubBalance(addrA, uint256.NewInt(400_000))
	ov.AddBalance(addrB, uint256.NewInt(400_000))
	if got := ov.GetBalance(addrA).Uint64(); got != 600_000 {
		t.Fatalf("balance after sub: got %d, want 600000", got)
	}

	ov.RevertToSnapshot(snap)
	if got := ov.GetBalance(addrA).Uint64(); got != 1_000_000 {
		t.Fatalf("balance after revert: got %d, want 1000000", got)
	}
	if got := ov.GetBalance(addrB).Uint64(); got != 0 {
		t.Fatalf("recipient balance after revert: got %d, want 0", got)
	}
}

func TestOverlayNestedSnapshots(t *testing.T) {
	ov := NewOverlay(testReader(t))

	s1 := ov.Snapshot()
	ov.SetNonce(addrA, 6)
	s2 := ov.Snapshot()
	ov.SetNonce(addrA, 7)

	ov.RevertToSnapshot(s2)
	if got := ov.GetNonce(addrA); got != 6 {
		t.Fatalf("nonce after inner revert: got %d, want 6", got)
	}
	ov.RevertToSnapshot(s1)
	if got := ov.GetNonce(addrA); got != 5 {
		t.Fatalf("nonce after outer revert: got %d, want 5", got)
	}
}

func TestOverlayRevertInvalidatesLaterSnapshots(t *testing.T) {
	ov := NewOverlay(testReader(t))

	s1 := ov.Snapshot()
	ov.SetNonce(addrA, 6)
	s2 := ov.Snapshot()
	ov.SetNonce(addrA, 7)

	ov.RevertToSnapshot(s1)
	// s2 is gone; reverting to it must be a no-op.
	ov.SetNonce(addrA, 9)
	ov.RevertToSnapshot(s2)
	if got := ov.GetNonce(addrA); got != 9 {
		t.Fatalf("revert to invalidated snapshot changed state: nonce %d", got)
	}
}

func TestOverlayStorageRevert(t *testing.T) {
	ov := NewOverlay(testReader(t))

	snap := ov.Snapshot()
	ov.SetState(addrB, slot1, val2)
	ov.SetState(addrB, slot2, val1)
	if got := ov.GetState(addrB, slot1); got != val2 {
		t.Fatalf("dirty read: got %s, want %s", got, val2)
	}
	// Committed state ignores dirty writes.
	if got := ov.GetCommittedState(addrB, slot1); got != val1 {
		t.Fatalf("committed read: got %s, want %s", got, val1)
	}

	ov.RevertToSnapshot(snap)
	if got := ov.GetState(addrB, slot1); got != val1 {
		t.Fatalf("slot1 after revert: got %s, want %s", got, val1)
	}
	if got := ov.GetState(addrB, slot2); got != (types.Hash{}) {
		t.Fatalf("slot2 after revert: got %s, want zero", got)
	}
}

func TestOverlayStorageDoubleWriteRevert(t *testing.T) {
	// Reverting the second write of a slot must restore the first write,
	// not the origin value.
	ov := NewOverlay(testReader(t))

	ov.SetState(addrB, slot1, val2)
	snap := ov.Snapshot()
	ov.SetState(addrB, slot1, types.HexToHash("0x3333"))
	ov.RevertToSnapshot(snap)

	if got := ov.GetState(addrB, slot1); got != val2 {
		t.Fatalf("slot after revert: got %s, want first dirty value %s", got, val2)
	}
}

func TestOverlayAccountCreationRevert(t *testing.T) {
	ov := NewOverlay(testReader(t))
	fresh := types.HexToAddress("0xdd")

	snap := ov.Snapshot()
	ov.AddBalance(fresh, uint256.NewInt(1))
	if !ov.Exist(fresh) {
		t.Fatal("account should exist after balance write")
	}
	ov.RevertToSnapshot(snap)
	if ov.Exist(fresh) {
		t.Fatal("implicitly created account survived revert")
	}
}

func TestOverlayCodeRevert(t *testing.T) {
	ov := NewOverlay(testReader(t))

	snap := ov.Snapshot()
	ov.SetCode(addrB, []byte{0x60, 0x01, 0x55})
	if got := ov.GetCodeSize(addrB); got != 3 {
		t.Fatalf("code size after set: got %d, want 3", got)
	}
	hashAfter := ov.GetCodeHash(addrB)

	ov.RevertToSnapshot(snap)
	if got := ov.GetCodeSize(addrB); got != 2 {
		t.Fatalf("code size after revert: got %d, want 2", got)
	}
	if ov.GetCodeHash(addrB) == hashAfter {
		t.Fatal("code hash not reverted")
	}
}

func TestOverlaySelfDestructRevert(t *testing.T) {
	ov := NewOverlay(testReader(t))

	snap := ov.Snapshot()
	ov.SelfDestruct(addrA)
	if !ov.HasSelfDestructed(addrA) {
		t.Fatal("self destruct not recorded")
	}
	if got := ov.GetBalance(addrA).Uint64(); got != 0 {
		t.Fatalf("balance after self destruct: got %d, want 0", got)
	}

	ov.RevertToSnapshot(snap)
	if ov.HasSelfDestructed(addrA) {
		t.Fatal("self destruct survived revert")
	}
	if got := ov.GetBalance(addrA).Uint64(); got != 1_000_000 {
		t.Fatalf("balance after revert: got %d, want 1000000", got)
	}
}

func TestOverlayAccessListRevert(t *testing.T) {
	ov := NewOverlay(testReader(t))

	ov.AddAddressToAccessList(addrA)
	snap := ov.Snapshot()
	ov.AddSlotToAccessList(addrB, slot1)
	if ok := ov.AddressInAccessList(addrB); !ok {
		t.Fatal("slot add did not warm the address")
	}

	ov.RevertToSnapshot(snap)
	if ov.AddressInAccessList(addrB) {
		t.Fatal("addrB still warm after revert")
	}
	if !ov.AddressInAccessList(addrA) {
		t.Fatal("addrA warmth lost by revert")
	}
	if addrOk, slotOk := ov.SlotInAccessList(addrB, slot1); addrOk || slotOk {
		t.Fatal("slot still warm after revert")
	}
}

func TestOverlayTransientStorageRevert(t *testing.T) {
	ov := NewOverlay(testReader(t))

	snap := ov.Snapshot()
	ov.SetTransientState(addrA, slot1, val1)
	if got := ov.GetTransientState(addrA, slot1); got != val1 {
		t.Fatalf("transient read: got %s, want %s", got, val1)
	}
	ov.RevertToSnapshot(snap)
	if got := ov.GetTransientState(addrA, slot1); got != (types.Hash{}) {
		t.Fatalf("transient after revert: got %s, want zero", got)
	}
}

func TestOverlayRefundRevert(t *testing.T) {
	ov := NewOverlay(testReader(t))

	ov.AddRefund(100)
	snap := ov.Snapshot()
	ov.AddRefund(50)
	ov.SubRefund(30)
	if got := ov.GetRefund(); got != 120 {
		t.Fatalf("refund: got %d, want 120", got)
	}
	ov.RevertToSnapshot(snap)
	if got := ov.GetRefund(); got != 100 {
		t.Fatalf("refund after revert: got %d, want 100", got)
	}
}

func TestOverlayLogsRevert(t *testing.T) {
	ov := NewOverlay(testReader(t))

	ov.AddLog(&types.Log{Address: addrA})
	snap := ov.Snapshot()
	ov.AddLog(&types.Log{Address: addrB})
	if got := len(ov.Logs()); got != 2 {
		t.Fatalf("logs: got %d, want 2", got)
	}
	ov.RevertToSnapshot(snap)
	if got := len(ov.Logs()); got != 1 {
		t.Fatalf("logs after revert: got %d, want 1", got)
	}
}

func TestOverlayEmpty(t *testing.T) {
	ov := NewOverlay(testReader(t))

	if ov.Empty(addrA) {
		t.Fatal("funded account reported empty")
	}
	if ov.Empty(addrB) {
		t.Fatal("contract account reported empty")
	}
	if !ov.Empty(types.HexToAddress("0xcc")) {
		t.Fatal("absent account not reported empty")
	}
	// Touched but value-less accounts stay empty.
	ov.AddBalance(types.HexToAddress("0xcc"), uint256.NewInt(0))
	if !ov.Empty(types.HexToAddress("0xcc")) {
		t.Fatal("zero-value account not reported empty")
	}
}

func TestOverlayCopyIsolation(t *testing.T) {
	ov := NewOverlay(testReader(t))
	ov.SetState(addrB, slot1, val2)
	ov.AddRefund(10)
	ov.AddAddressToAccessList(addrA)

	cp := ov.Copy()

	// The copy sees everything written so far.
	if got := cp.GetState(addrB, slot1); got != val2 {
		t.Fatalf("copy dirty state: got %s, want %s", got, val2)
	}
	if got := cp.GetRefund(); got != 10 {
		t.Fatalf("copy refund: got %d, want 10", got)
	}
	if !cp.AddressInAccessList(addrA) {
		t.Fatal("copy lost access list entry")
	}

	// Writes on the copy must not show through to the original, and the
	// other way round.
	cp.SetState(addrB, slot1, types.HexToHash("0x3333"))
	cp.SubBalance(addrA, uint256.NewInt(1))
	if got := ov.GetState(addrB, slot1); got != val2 {
		t.Fatalf("original state changed by copy write: %s", got)
	}
	ov.SetNonce(addrA, 42)
	if got := cp.GetNonce(addrA); got != 5 {
		t.Fatalf("copy nonce changed by original write: %d", got)
	}
}

// failingReader returns an error for every account read.
type failingReader struct {
	err error
}

func (r failingReader) Account(types.Address) (*types.Account, error) { return nil, r.err }
func (r failingReader) Code(types.Address, types.Hash) ([]byte, error) {
	return nil, r.err
}
func (r failingReader) Storage(types.Address, types.Hash) (types.Hash, error) {
	return types.Hash{}, r.err
}

func TestOverlayDefersReaderErrors(t *testing.T) {
	readErr := errors.New("disk on fire")
	ov := NewOverlay(failingReader{err: readErr})

	// Getters stay infallible and return zero values.
	if got := ov.GetBalance(addrA); !got.IsZero() {
		t.Fatalf("balance on broken reader: got %s, want 0", got)
	}
	// The failure is reported through Error.
	if err := ov.Error(); !errors.Is(err, readErr) {
		t.Fatalf("overlay error: got %v, want %v", err, readErr)
	}
	// The first error sticks even after further failing reads.
	ov.GetState(addrB, slot1)
	if err := ov.Error(); !errors.Is(err, readErr) {
		t.Fatalf("overlay error after more reads: got %v", err)
	}
	// The copy inherits the error.
	if err := ov.Copy().Error(); !errors.Is(err, readErr) {
		t.Fatalf("copy error: got %v", err)
	}
}
