// Command gasgauge answers gas estimation queries against a self-contained
// block, with the chain state seeded from a genesis alloc file.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	stdtime "time"

	"github.com/gasgauge/gasgauge/core"
	"github.com/gasgauge/gasgauge/core/state"
	"github.com/gasgauge/gasgauge/core/types"
	"github.com/gasgauge/gasgauge/log"
	"github.com/gasgauge/gasgauge/rpc"
)

// config collects every tunable of a single estimation run.
type config struct {
	Genesis string // path to the genesis JSON seeding the state
	TxFile  string // path to the transaction JSON, "-" for stdin
	Network string // fork schedule name

	BlockNumber uint64
	BlockTime   uint64 // 0 means the wall clock
	GasLimit    uint64
	BaseFee     uint64 // 0 means no base fee

	GasCap  uint64
	Timeout stdtime.Duration

	LogLevel  string
	LogFormat string
}

func defaultConfig() config {
	return config{
		Network:   "dev",
		GasLimit:  30_000_000,
		GasCap:    50_000_000,
		Timeout:   rpc.DefaultEVMTimeout,
		LogLevel:  "info",
		LogFormat: "text",
	}
}

func parseFlags(args []string) (config, error) {
	cfg := defaultConfig()

	fs := flag.NewFlagSet("gasgauge", flag.ContinueOnError)
	fs.StringVar(&cfg.Genesis, "genesis", cfg.Genesis, "genesis JSON file whose alloc seeds the state")
	fs.StringVar(&cfg.TxFile, "tx", cfg.TxFile, "transaction JSON file, - for stdin")
	fs.StringVar(&cfg.Network, "network", cfg.Network, "fork schedule (mainnet, sepolia, holesky, dev)")
	fs.Uint64Var(&cfg.BlockNumber, "block-number", cfg.BlockNumber, "height of the block the call runs in")
	fs.Uint64Var(&cfg.BlockTime, "block-time", cfg.BlockTime, "timestamp of the block the call runs in (0 = now)")
	fs.Uint64Var(&cfg.GasLimit, "block-gas-limit", cfg.GasLimit, "gas limit of the block the call runs in")
	fs.Uint64Var(&cfg.BaseFee, "base-fee", cfg.BaseFee, "base fee of the block in wei (0 = none)")
	fs.Uint64Var(&cfg.GasCap, "gas-cap", cfg.GasCap, "gas ceiling for the call (0 = block gas limit)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "execution budget of the estimation")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log verbosity (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log output format (text, json, color)")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	return cfg, nil
}

// chainConfig resolves a network name to its fork schedule.
func chainConfig(network string) (*core.ChainConfig, error) {
	switch strings.ToLower(network) {
	case "mainnet":
		return core.MainnetConfig, nil
	case "sepolia":
		return core.SepoliaConfig, nil
	case "holesky":
		return core.HoleskyConfig, nil
	case "dev":
		return core.TestConfig, nil
	}
	return nil, fmt.Errorf("unknown network %q", network)
}

func setupLogging(cfg config) error {
	var formatter log.LogFormatter
	switch strings.ToLower(cfg.LogFormat) {
	case "text":
		formatter = &log.TextFormatter{}
	case "json":
		formatter = &log.JSONFormatter{}
	case "color":
		formatter = &log.ColorFormatter{}
	default:
		return fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}
	level := log.LevelFromString(cfg.LogLevel).SlogLevel()
	log.SetDefault(log.NewWithFormatter(os.Stderr, level, formatter))
	return nil
}

// buildHeader shapes the block the call executes in. The difficulty is left
// zero, so the block is always treated as post-merge.
func buildHeader(cfg config) *types.Header {
	ts := cfg.BlockTime
	if ts == 0 {
		ts = uint64(stdtime.Now().Unix())
	}
	header := &types.Header{
		Number:     new(big.Int).SetUint64(cfg.BlockNumber),
		GasLimit:   cfg.GasLimit,
		Time:       ts,
		Difficulty: new(big.Int),
	}
	if cfg.BaseFee > 0 {
		header.BaseFee = new(big.Int).SetUint64(cfg.BaseFee)
	}
	return header
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	cfg, err := parseFlags(args)
	if err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}
	chain, err := chainConfig(cfg.Network)
	if err != nil {
		return err
	}
	if cfg.TxFile == "" {
		return fmt.Errorf("no transaction given (use -tx)")
	}

	db := state.NewMemDB()
	if cfg.Genesis != "" {
		if err := loadGenesisAlloc(cfg.Genesis, db); err != nil {
			return err
		}
	}
	txArgs, err := loadTransaction(cfg.TxFile, stdin)
	if err != nil {
		return err
	}

	backend := &staticBackend{config: chain, header: buildHeader(cfg), db: db}
	svc, err := rpc.NewService(backend, core.NewTransitionExecutor(nil), rpc.ServiceConfig{
		EVMTimeout: cfg.Timeout,
		RPCGasCap:  cfg.GasCap,
	})
	if err != nil {
		return err
	}
	defer svc.Close()

	estimate, err := svc.EstimateGas(context.Background(), txArgs, nil, nil)
	if err != nil {
		if de, ok := err.(interface{ ErrorData() interface{} }); ok {
			return fmt.Errorf("%w (data: %v)", err, de.ErrorData())
		}
		return err
	}
	fmt.Fprintf(stdout, "estimated gas: %d (%s)\n", uint64(estimate), estimate.String())
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "gasgauge: %v\n", err)
		os.Exit(1)
	}
}
