package main

import (
	"context"
	"fmt"

	"github.com/gasgauge/gasgauge/core"
	"github.com/gasgauge/gasgauge/core/state"
	"github.com/gasgauge/gasgauge/core/types"
	"github.com/gasgauge/gasgauge/rpc"
)

// staticBackend serves a chain of exactly one block. Every symbolic height
// resolves to that block, and its state is the loaded genesis alloc.
type staticBackend struct {
	config *core.ChainConfig
	header *types.Header
	db     *state.MemDB
}

var _ rpc.Backend = (*staticBackend)(nil)

func (b *staticBackend) HeaderByNumber(ctx context.Context, number rpc.BlockNumber) (*types.Header, error) {
	switch number {
	case rpc.PendingBlockNumber, rpc.LatestBlockNumber, rpc.FinalizedBlockNumber, rpc.SafeBlockNumber:
		return b.header, nil
	}
	if number >= 0 && b.header.Number.Uint64() == uint64(number) {
		return b.header, nil
	}
	return nil, nil
}

func (b *staticBackend) HeaderByHash(ctx context.Context, hash types.Hash) (*types.Header, error) {
	if hash == b.header.Hash() {
		return b.header, nil
	}
	return nil, nil
}

func (b *staticBackend) CanonicalHash(number uint64) types.Hash {
	if number == b.header.Number.Uint64() {
		return b.header.Hash()
	}
	return types.Hash{}
}

func (b *staticBackend) StateAt(header *types.Header) (state.Reader, error) {
	if header.Hash() != b.header.Hash() {
		return nil, fmt.Errorf("no state for block %d", header.Number)
	}
	return b.db, nil
}

func (b *staticBackend) ChainConfig() *core.ChainConfig {
	return b.config
}
