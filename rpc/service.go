package rpc

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/singleflight"

	"github.com/gasgauge/gasgauge/core"
	"github.com/gasgauge/gasgauge/core/state"
	"github.com/gasgauge/gasgauge/core/types"
	"github.com/gasgauge/gasgauge/core/vm"
	"github.com/gasgauge/gasgauge/eth/gasestimator"
	"github.com/gasgauge/gasgauge/log"
	"github.com/gasgauge/gasgauge/metrics"
	"github.com/gasgauge/gasgauge/params"
)

// Defaults applied by NewService for zero ServiceConfig fields.
const (
	DefaultWorkers         = 4
	DefaultEVMTimeout      = 5 * time.Second
	DefaultHeaderCacheSize = 512
)

var (
	errHeaderNotFound = errors.New("header not found")
	errHashNotFound   = errors.New("header for hash not found")
	errNotCanonical   = errors.New("hash is not currently canonical")
	errNoBlockTag     = errors.New("invalid arguments; neither block nor hash specified")
)

// ServiceConfig tunes the estimation service.
type ServiceConfig struct {
	// Workers bounds how many state views may be opened concurrently.
	Workers int

	// EVMTimeout is the execution budget per request. Zero or negative
	// means no timeout.
	EVMTimeout time.Duration

	// RPCGasCap is the operator's ceiling on the gas a call may be granted.
	// Zero leaves the block gas limit as the only ceiling.
	RPCGasCap uint64

	// HeaderCacheSize is the number of hash-resolved headers kept in
	// memory.
	HeaderCacheSize int
}

// Backend supplies chain data to the estimation service.
type Backend interface {
	// HeaderByNumber resolves a height, including the symbolic heights, to
	// a header. A nil header without error means the symbolic height has
	// no block, such as pending on a node that builds none.
	HeaderByNumber(ctx context.Context, number BlockNumber) (*types.Header, error)

	// HeaderByHash returns the header with the given hash, or nil if it is
	// unknown.
	HeaderByHash(ctx context.Context, hash types.Hash) (*types.Header, error)

	// CanonicalHash returns the canonical block hash at the given height,
	// or the zero hash if the height has none.
	CanonicalHash(number uint64) types.Hash

	// StateAt opens a read-only state view at the given header.
	StateAt(header *types.Header) (state.Reader, error)

	// ChainConfig returns the fork schedule of the backing chain.
	ChainConfig() *core.ChainConfig
}

// Service answers gas estimation requests against a chain backend. Requests
// for the same block share a single state resolution, and the number of
// concurrently open state views is bounded by the worker pool.
type Service struct {
	backend  Backend
	executor core.Executor
	config   ServiceConfig

	pool    *ants.Pool
	headers *lru.Cache[types.Hash, *types.Header]
	sf      singleflight.Group

	logger    *log.Logger
	collector *metrics.MetricsCollector
}

// NewService wires an estimation service on top of backend. The executor
// runs every probe the gas search issues.
func NewService(backend Backend, executor core.Executor, config ServiceConfig) (*Service, error) {
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	if config.HeaderCacheSize <= 0 {
		config.HeaderCacheSize = DefaultHeaderCacheSize
	}
	pool, err := ants.NewPool(config.Workers)
	if err != nil {
		return nil, err
	}
	headers, err := lru.New[types.Hash, *types.Header](config.HeaderCacheSize)
	if err != nil {
		pool.Release()
		return nil, err
	}
	return &Service{
		backend:   backend,
		executor:  executor,
		config:    config,
		pool:      pool,
		headers:   headers,
		logger:    log.Default().Module("rpc"),
		collector: metrics.NewMetricsCollector(metrics.CollectorConfig{EnableHistograms: true}),
	}, nil
}

// Close releases the worker pool. The service must not be used afterwards.
func (s *Service) Close() {
	s.pool.Release()
}

// Metrics exposes the service's collector for reporting.
func (s *Service) Metrics() *metrics.MetricsCollector {
	return s.collector
}

// EstimateGas returns an estimate of the amount of gas needed to execute the
// given transaction against the state of the given block. If no block is
// given the pending block is used, falling back to the latest when the node
// builds no pending block. State overrides are applied before execution.
func (s *Service) EstimateGas(ctx context.Context, args TransactionArgs, blockNrOrHash *BlockNumberOrHash, overrides StateOverride) (hexutil.Uint64, error) {
	start := time.Now()
	if err := args.CallDefaults(s.backend.ChainConfig().ChainID); err != nil {
		return 0, err
	}
	bNrOrHash := BlockNumberOrHashWithNumber(PendingBlockNumber)
	if blockNrOrHash != nil {
		bNrOrHash = *blockNrOrHash
	}
	header, err := s.resolveHeader(ctx, bNrOrHash)
	if err != nil {
		return 0, err
	}
	stateOverrides, err := overrides.ToStateOverrides()
	if err != nil {
		return 0, err
	}
	reader, err := s.stateAt(ctx, header)
	if err != nil {
		return 0, err
	}
	reader, err = stateOverrides.Apply(reader)
	if err != nil {
		return 0, err
	}
	if timeout := s.config.EVMTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	probes := &probeCounter{inner: s.executor}
	opts := &gasestimator.Options{
		Config:     s.backend.ChainConfig(),
		Header:     header,
		State:      state.NewOverlay(state.NewCachingReader(reader)),
		Executor:   probes,
		ErrorRatio: params.EstimateGasErrorRatio,
	}
	estimate, revert, err := gasestimator.Estimate(ctx, args.ToMessage(header.BaseFee), opts, s.config.RPCGasCap)

	s.collector.RecordHistogram("rpc.estimate_gas.duration_ms", float64(time.Since(start).Milliseconds()))
	s.collector.RecordHistogram("rpc.estimate_gas.probes", float64(probes.calls))
	if err != nil {
		s.collector.Record("rpc.estimate_gas.requests", 1, map[string]string{"outcome": outcomeTag(revert, err)})
		if len(revert) > 0 {
			return 0, newRevertError(revert)
		}
		return 0, err
	}
	s.collector.Record("rpc.estimate_gas.requests", 1, map[string]string{"outcome": "ok"})
	s.logger.Debug("Served gas estimate", "block", header.Number, "gas", estimate,
		"probes", probes.calls, "elapsed", time.Since(start))
	return hexutil.Uint64(estimate), nil
}

func outcomeTag(revert []byte, err error) string {
	switch {
	case len(revert) > 0:
		return "revert"
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "error"
	}
}

// resolveHeader turns a block number or hash into a header. Hash-resolved
// headers are cached; canonicality is rechecked on every request since the
// canonical chain may have moved.
func (s *Service) resolveHeader(ctx context.Context, bNrOrHash BlockNumberOrHash) (*types.Header, error) {
	if hash, ok := bNrOrHash.Hash(); ok {
		header, cached := s.headers.Get(hash)
		if !cached {
			var err error
			header, err = s.backend.HeaderByHash(ctx, hash)
			if err != nil {
				return nil, err
			}
			if header == nil {
				return nil, errHashNotFound
			}
			s.headers.Add(hash, header)
		}
		if bNrOrHash.RequireCanonical && s.backend.CanonicalHash(header.Number.Uint64()) != hash {
			return nil, errNotCanonical
		}
		return header, nil
	}
	if number, ok := bNrOrHash.Number(); ok {
		header, err := s.backend.HeaderByNumber(ctx, number)
		if err != nil {
			return nil, err
		}
		if header == nil && number == PendingBlockNumber {
			header, err = s.backend.HeaderByNumber(ctx, LatestBlockNumber)
			if err != nil {
				return nil, err
			}
		}
		if header == nil {
			return nil, errHeaderNotFound
		}
		s.headers.Add(header.Hash(), header)
		return header, nil
	}
	return nil, errNoBlockTag
}

// stateAt opens the state view for header. Concurrent requests for the same
// header share one resolution, and resolutions run on the bounded worker
// pool so a burst of estimates cannot open unbounded state views at once.
func (s *Service) stateAt(ctx context.Context, header *types.Header) (state.Reader, error) {
	ch := s.sf.DoChan(header.Hash().Hex(), func() (interface{}, error) {
		var (
			reader state.Reader
			err    error
			done   = make(chan struct{})
		)
		if perr := s.pool.Submit(func() {
			defer close(done)
			reader, err = s.backend.StateAt(header)
		}); perr != nil {
			return nil, perr
		}
		<-done
		return reader, err
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(state.Reader), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// probeCounter counts executor invocations during a single estimation so the
// service can report search effort.
type probeCounter struct {
	inner core.Executor
	calls int
}

func (pc *probeCounter) Transact(env *core.EvmEnv, msg *core.Message, st vm.StateDB) (*core.ExecutionOutcome, error) {
	pc.calls++
	return pc.inner.Transact(env, msg, st)
}
