package gasestimator

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"

	"github.com/gasgauge/gasgauge/core"
	"github.com/gasgauge/gasgauge/core/state"
	"github.com/gasgauge/gasgauge/core/types"
	"github.com/gasgauge/gasgauge/core/vm"
	"github.com/gasgauge/gasgauge/params"
)

var (
	estSender = types.HexToAddress("0x00000000000000000000000000000000000000aa")
	estDest   = types.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func testHeader() *types.Header {
	return &types.Header{
		Number:     big.NewInt(20_000_000),
		GasLimit:   30_000_000,
		Time:       1_700_000_000,
		Difficulty: big.NewInt(0),
		BaseFee:    big.NewInt(1_000_000_000),
	}
}

func testState(t *testing.T, balance uint64) *state.Overlay {
	t.Helper()
	db := state.NewMemDB()
	db.SetBalance(estSender, uint256.NewInt(balance))
	return state.NewOverlay(state.NewCachingReader(db))
}

func testOptions(t *testing.T, ex core.Executor, ratio float64) *Options {
	t.Helper()
	return &Options{
		Config:     core.TestConfig,
		Header:     testHeader(),
		State:      testState(t, 1_000_000_000_000_000_000),
		Executor:   ex,
		ErrorRatio: ratio,
	}
}

// thresholdExecutor succeeds exactly when the probed gas limit reaches a
// fixed threshold, mimicking a call with a precise gas need. Below the
// threshold it fails with failErr, or out of gas when failErr is unset.
type thresholdExecutor struct {
	threshold uint64
	used      uint64 // gas used on success; defaults to threshold
	refund    uint64
	failErr   error
	output    []byte

	calls []uint64 // gas limit of every probe, in order
}

func (e *thresholdExecutor) Transact(env *core.EvmEnv, msg *core.Message, st vm.StateDB) (*core.ExecutionOutcome, error) {
	e.calls = append(e.calls, msg.GasLimit)
	if msg.GasLimit >= e.threshold {
		used := e.used
		if used == 0 {
			used = e.threshold
		}
		return &core.ExecutionOutcome{UsedGas: used, RefundedGas: e.refund}, nil
	}
	failErr := e.failErr
	if failErr == nil {
		failErr = vm.ErrOutOfGas
	}
	return &core.ExecutionOutcome{UsedGas: msg.GasLimit, Err: failErr, ReturnData: e.output}, nil
}

// callData makes probes skip the plain transfer short circuit.
var callData = []byte{0x01}

func estimate(t *testing.T, call *core.Message, opts *Options) (uint64, []byte, error) {
	t.Helper()
	return Estimate(context.Background(), call, opts, 0)
}

func TestEstimateConvergesToThreshold(t *testing.T) {
	thresholds := []uint64{21_000, 21_001, 23_456, 50_000, 100_000, 333_333, 1_000_000, 29_999_999}
	for _, threshold := range thresholds {
		ex := &thresholdExecutor{threshold: threshold}
		opts := testOptions(t, ex, 0)
		call := &core.Message{From: estSender, To: &estDest, Data: callData}

		got, _, err := estimate(t, call, opts)
		if err != nil {
			t.Fatalf("threshold %d: unexpected error: %v", threshold, err)
		}
		if got != threshold {
			t.Fatalf("threshold %d: estimate = %d, want exact threshold", threshold, got)
		}
	}
}

func TestEstimateWithinErrorRatio(t *testing.T) {
	thresholds := []uint64{21_000, 25_000, 60_000, 123_457, 2_000_000}
	for _, threshold := range thresholds {
		ex := &thresholdExecutor{threshold: threshold}
		opts := testOptions(t, ex, params.EstimateGasErrorRatio)
		call := &core.Message{From: estSender, To: &estDest, Data: callData}

		got, _, err := estimate(t, call, opts)
		if err != nil {
			t.Fatalf("threshold %d: unexpected error: %v", threshold, err)
		}
		if got < threshold {
			t.Fatalf("threshold %d: estimate %d below minimum", threshold, got)
		}
		if ratio := float64(got-threshold) / float64(got); ratio >= params.EstimateGasErrorRatio {
			t.Fatalf("threshold %d: estimate %d overshoots by %f", threshold, got, ratio)
		}
	}
}

// A call that checks its remaining gas can use far less than it demands as a
// limit. The first probe's consumption must not pin the search below the
// real requirement.
func TestEstimateGasCheckingCall(t *testing.T) {
	ex := &thresholdExecutor{threshold: 60_000, used: 30_000}
	opts := testOptions(t, ex, 0)
	call := &core.Message{From: estSender, To: &estDest, Data: callData}

	got, _, err := estimate(t, call, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 60_000 {
		t.Fatalf("estimate = %d, want 60000", got)
	}
}

func TestEstimateOptimisticProbe(t *testing.T) {
	ex := &thresholdExecutor{threshold: 50_000, used: 40_000, refund: 8_000}
	opts := testOptions(t, ex, params.EstimateGasErrorRatio)
	call := &core.Message{From: estSender, To: &estDest, Data: callData}

	got, _, err := estimate(t, call, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got < 50_000 {
		t.Fatalf("estimate %d below minimum", got)
	}
	if ratio := float64(got-50_000) / float64(got); ratio >= params.EstimateGasErrorRatio {
		t.Fatalf("estimate %d overshoots by %f", got, ratio)
	}
	// The second probe must be the refund-aware guess, not a bisection.
	optimistic := (ex.used + ex.refund + params.CallStipend) * 64 / 63
	if len(ex.calls) < 2 || ex.calls[1] != optimistic {
		t.Fatalf("probe sequence %v does not try optimistic limit %d second", ex.calls, optimistic)
	}
}

func TestEstimateDeterminism(t *testing.T) {
	run := func() (uint64, []uint64) {
		ex := &thresholdExecutor{threshold: 77_777, used: 70_000, refund: 1_000}
		opts := testOptions(t, ex, params.EstimateGasErrorRatio)
		call := &core.Message{From: estSender, To: &estDest, Data: callData}
		got, _, err := estimate(t, call, opts)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return got, ex.calls
	}
	got1, calls1 := run()
	got2, calls2 := run()
	if got1 != got2 {
		t.Fatalf("estimates differ across runs: %d vs %d", got1, got2)
	}
	if len(calls1) != len(calls2) {
		t.Fatalf("probe counts differ: %v vs %v", calls1, calls2)
	}
	for i := range calls1 {
		if calls1[i] != calls2[i] {
			t.Fatalf("probe %d differs: %d vs %d", i, calls1[i], calls2[i])
		}
	}
}

func TestEstimateConcurrentRequestsAgree(t *testing.T) {
	const requests = 16
	var (
		g       errgroup.Group
		results [requests]uint64
	)
	for i := 0; i < requests; i++ {
		i := i
		g.Go(func() error {
			db := state.NewMemDB()
			db.SetBalance(estSender, uint256.NewInt(1_000_000_000_000_000_000))
			opts := &Options{
				Config:     core.TestConfig,
				Header:     testHeader(),
				State:      state.NewOverlay(state.NewCachingReader(db)),
				Executor:   &thresholdExecutor{threshold: 77_777, used: 70_000, refund: 1_000},
				ErrorRatio: params.EstimateGasErrorRatio,
			}
			call := &core.Message{From: estSender, To: &estDest, Data: callData}
			got, _, err := Estimate(context.Background(), call, opts, 0)
			if err != nil {
				return err
			}
			results[i] = got
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent estimation failed: %v", err)
	}
	for i := 1; i < requests; i++ {
		if results[i] != results[0] {
			t.Fatalf("estimate %d diverged: %d vs %d", i, results[i], results[0])
		}
	}
}

func TestEstimateCallerLimitCapsSearch(t *testing.T) {
	ex := &thresholdExecutor{threshold: 22_000}
	opts := testOptions(t, ex, 0)
	call := &core.Message{From: estSender, To: &estDest, Data: callData, GasLimit: 23_000}

	got, _, err := estimate(t, call, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 22_000 {
		t.Fatalf("estimate = %d, want 22000", got)
	}
	for _, limit := range ex.calls {
		if limit > 23_000 {
			t.Fatalf("probe at %d exceeds caller limit", limit)
		}
	}
}

func TestEstimateGasCapCapsSearch(t *testing.T) {
	ex := &thresholdExecutor{threshold: 30_000}
	opts := testOptions(t, ex, 0)
	call := &core.Message{From: estSender, To: &estDest, Data: callData}

	got, _, err := Estimate(context.Background(), call, opts, 40_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 30_000 {
		t.Fatalf("estimate = %d, want 30000", got)
	}
	for _, limit := range ex.calls {
		if limit > 40_000 {
			t.Fatalf("probe at %d exceeds gas cap", limit)
		}
	}
}

func TestEstimateHaltAtCeiling(t *testing.T) {
	ex := &thresholdExecutor{threshold: 40_000}
	opts := testOptions(t, ex, 0)
	call := &core.Message{From: estSender, To: &estDest, Data: callData}

	// The cap starves the call below its threshold, so even the ceiling
	// probe halts and the halt is the answer.
	_, _, err := Estimate(context.Background(), call, opts, 25_000)
	var haltErr *HaltError
	if !errors.As(err, &haltErr) {
		t.Fatalf("error = %v, want HaltError", err)
	}
	if haltErr.GasLimit != 25_000 {
		t.Fatalf("halt gas limit = %d, want 25000", haltErr.GasLimit)
	}
	if !errors.Is(err, vm.ErrOutOfGas) {
		t.Fatalf("halt reason = %v, want out of gas", haltErr.Reason)
	}
}

func TestEstimateRevertUnpinned(t *testing.T) {
	output := []byte{0xde, 0xad, 0xbe, 0xef}
	ex := &revertingExecutor{output: output}
	opts := testOptions(t, ex, 0)
	call := &core.Message{From: estSender, To: &estDest, Data: callData}

	_, revert, err := estimate(t, call, opts)
	if !errors.Is(err, vm.ErrExecutionReverted) {
		t.Fatalf("error = %v, want execution reverted", err)
	}
	if string(revert) != string(output) {
		t.Fatalf("revert data = %x, want %x", revert, output)
	}
	if len(ex.calls) != 1 {
		t.Fatalf("probe count = %d, want 1 (no search after definitive revert)", len(ex.calls))
	}
}

func TestEstimateRevertPinnedGas(t *testing.T) {
	output := []byte{0x08, 0xc3, 0x79, 0xa0}
	ex := &revertingExecutor{output: output}
	opts := testOptions(t, ex, 0)
	call := &core.Message{From: estSender, To: &estDest, Data: callData, GasLimit: 25_000_000}

	_, revert, err := estimate(t, call, opts)
	if !errors.Is(err, vm.ErrExecutionReverted) {
		t.Fatalf("error = %v, want execution reverted", err)
	}
	if string(revert) != string(output) {
		t.Fatalf("revert data = %x, want %x", revert, output)
	}
	// A pinned gas limit triggers a confirming re-execution at the full
	// block gas limit before the revert is reported.
	if len(ex.calls) != 2 || ex.calls[1] != opts.Header.GasLimit {
		t.Fatalf("probe sequence %v, want retry at block gas limit %d", ex.calls, opts.Header.GasLimit)
	}
}

// revertingExecutor reverts on every probe with a fixed output.
type revertingExecutor struct {
	output []byte
	calls  []uint64
}

func (e *revertingExecutor) Transact(env *core.EvmEnv, msg *core.Message, st vm.StateDB) (*core.ExecutionOutcome, error) {
	e.calls = append(e.calls, msg.GasLimit)
	return &core.ExecutionOutcome{UsedGas: msg.GasLimit, Err: vm.ErrExecutionReverted, ReturnData: e.output}, nil
}

// gasPinnedExecutor reverts below a threshold and succeeds above it, the
// shape of a contract that requires a minimum gas reserve.
type gasPinnedExecutor struct {
	threshold uint64
	calls     []uint64
}

func (e *gasPinnedExecutor) Transact(env *core.EvmEnv, msg *core.Message, st vm.StateDB) (*core.ExecutionOutcome, error) {
	e.calls = append(e.calls, msg.GasLimit)
	if msg.GasLimit >= e.threshold {
		return &core.ExecutionOutcome{UsedGas: 21_000}, nil
	}
	return &core.ExecutionOutcome{UsedGas: msg.GasLimit, Err: vm.ErrExecutionReverted}, nil
}

func TestEstimateBasicOutOfGas(t *testing.T) {
	ex := &gasPinnedExecutor{threshold: 26_000_000}
	opts := testOptions(t, ex, 0)
	call := &core.Message{From: estSender, To: &estDest, Data: callData, GasLimit: 25_000_000}

	_, _, err := estimate(t, call, opts)
	var oogErr *BasicOutOfGasError
	if !errors.As(err, &oogErr) {
		t.Fatalf("error = %v, want BasicOutOfGasError", err)
	}
	if oogErr.GasLimit != 25_000_000 {
		t.Fatalf("reported gas limit = %d, want the pinned 25000000", oogErr.GasLimit)
	}
}

func TestEstimateContextCancelled(t *testing.T) {
	ex := &thresholdExecutor{threshold: 21_000}
	opts := testOptions(t, ex, 0)
	call := &core.Message{From: estSender, To: &estDest, Data: callData}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Estimate(ctx, call, opts, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(ex.calls) != 0 {
		t.Fatalf("executor ran %d probes after cancellation", len(ex.calls))
	}
}

// The tests below run against the real transition executor with no
// interpreter, which handles plain value transfers end to end.

func transferOptions(t *testing.T, balance uint64, ratio float64) *Options {
	t.Helper()
	return &Options{
		Config:     core.TestConfig,
		Header:     testHeader(),
		State:      testState(t, balance),
		Executor:   core.NewTransitionExecutor(nil),
		ErrorRatio: ratio,
	}
}

func TestEstimatePlainTransfer(t *testing.T) {
	opts := transferOptions(t, 1_000_000_000_000_000_000, params.EstimateGasErrorRatio)
	call := &core.Message{From: estSender, To: &estDest, Value: uint256.NewInt(1000)}

	got, _, err := estimate(t, call, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != params.TxGas {
		t.Fatalf("estimate = %d, want protocol minimum %d", got, params.TxGas)
	}
	// Probes run on copies; the estimation state itself must be untouched.
	if bal := opts.State.GetBalance(estSender); bal.Uint64() != 1_000_000_000_000_000_000 {
		t.Fatalf("sender balance mutated by estimation: %s", bal)
	}
}

func TestEstimateTransferToFreshAccount(t *testing.T) {
	opts := transferOptions(t, 1_000_000_000_000_000_000, params.EstimateGasErrorRatio)
	dest := types.HexToAddress("0x00000000000000000000000000000000000000cc")
	call := &core.Message{From: estSender, To: &dest, Value: uint256.NewInt(1)}

	got, _, err := estimate(t, call, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != params.TxGas {
		t.Fatalf("estimate = %d, want %d", got, params.TxGas)
	}
}

// An access list raises the intrinsic cost above the protocol minimum, so
// the short-circuit probe must fail and the search must take over.
func TestEstimateTransferWithAccessList(t *testing.T) {
	opts := transferOptions(t, 1_000_000_000_000_000_000, 0)
	call := &core.Message{
		From:  estSender,
		To:    &estDest,
		Value: uint256.NewInt(1000),
		AccessList: types.AccessList{{
			Address:     estDest,
			StorageKeys: []types.Hash{types.HexToHash("0x01")},
		}},
	}

	got, _, err := estimate(t, call, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := params.TxGas + params.TxAccessListAddressGas + params.TxAccessListStorageKeyGas
	if got != want {
		t.Fatalf("estimate = %d, want %d", got, want)
	}
}

func TestEstimateAllowanceExceeded(t *testing.T) {
	opts := transferOptions(t, 1_000_000, 0)
	call := &core.Message{
		From:     estSender,
		To:       &estDest,
		GasPrice: uint256.NewInt(100),
	}

	_, _, err := estimate(t, call, opts)
	var allowErr *ExceedsAllowanceError
	if !errors.As(err, &allowErr) {
		t.Fatalf("error = %v, want ExceedsAllowanceError", err)
	}
	// 1_000_000 wei at 100 wei per gas affords exactly 10_000 gas.
	if allowErr.GasLimit != 10_000 {
		t.Fatalf("capped allowance = %d, want 10000", allowErr.GasLimit)
	}
}

func TestEstimateValueExceedsBalance(t *testing.T) {
	opts := transferOptions(t, 1_000_000, 0)
	call := &core.Message{
		From:     estSender,
		To:       &estDest,
		Value:    uint256.NewInt(1_000_000),
		GasPrice: uint256.NewInt(1),
	}

	_, _, err := estimate(t, call, opts)
	if !errors.Is(err, core.ErrInsufficientFundsForTransfer) {
		t.Fatalf("error = %v, want insufficient funds for transfer", err)
	}
}

// The short circuit is an optimization only: for a plain transfer the full
// search must land on the same answer.
func TestEstimateShortCircuitAgreesWithSearch(t *testing.T) {
	direct := func() uint64 {
		opts := transferOptions(t, 1_000_000_000_000_000_000, 0)
		call := &core.Message{From: estSender, To: &estDest, Value: uint256.NewInt(1000)}
		got, _, err := estimate(t, call, opts)
		if err != nil {
			t.Fatalf("short circuit path: %v", err)
		}
		return got
	}()
	searched := func() uint64 {
		// A threshold executor at the protocol minimum stands in for the
		// transfer, with payload data keeping the short circuit out.
		ex := &thresholdExecutor{threshold: params.TxGas}
		opts := testOptions(t, ex, 0)
		call := &core.Message{From: estSender, To: &estDest, Data: callData}
		got, _, err := estimate(t, call, opts)
		if err != nil {
			t.Fatalf("search path: %v", err)
		}
		return got
	}()
	if direct != searched {
		t.Fatalf("short circuit answer %d differs from search answer %d", direct, searched)
	}
}

func TestEstimateStateErrorAborts(t *testing.T) {
	failing := &failingReader{err: errors.New("disk gone")}
	opts := &Options{
		Config:   core.TestConfig,
		Header:   testHeader(),
		State:    state.NewOverlay(failing),
		Executor: core.NewTransitionExecutor(nil),
	}
	call := &core.Message{From: estSender, To: &estDest, Value: uint256.NewInt(1)}

	_, _, err := estimate(t, call, opts)
	if err == nil || !errors.Is(err, failing.err) {
		t.Fatalf("error = %v, want wrapped reader failure", err)
	}
}

// failingReader fails every read, simulating a dead backend.
type failingReader struct {
	err error
}

func (r *failingReader) Account(addr types.Address) (*types.Account, error) {
	return nil, r.err
}

func (r *failingReader) Code(addr types.Address, codeHash types.Hash) ([]byte, error) {
	return nil, r.err
}

func (r *failingReader) Storage(addr types.Address, slot types.Hash) (types.Hash, error) {
	return types.Hash{}, r.err
}
