package storage

import (
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/gasgauge/gasgauge/core"
	"github.com/gasgauge/gasgauge/core/types"
)

// BodyReader reconstructs full block bodies from stored leftovers.
type BodyReader interface {
	ReadBodies(config *core.ChainConfig, inputs []BodyInput) ([]*types.Body, error)
}

// BodyInput carries the externally sourced parts of a body: the header it
// belongs to and its transactions.
type BodyInput struct {
	Header       *types.Header
	Transactions []*types.Transaction
}

// ReadBodies rebuilds one body per input. The fork schedule decides what a
// body carries: post-merge blocks have no ommers, so the store is not even
// consulted for them, and blocks at or after Shanghai always carry a
// withdrawals list, an empty one if nothing was stored.
func (db *DB) ReadBodies(config *core.ChainConfig, inputs []BodyInput) ([]*types.Body, error) {
	bodies := make([]*types.Body, len(inputs))
	for i, input := range inputs {
		var (
			header = input.Header
			number = header.Number.Uint64()
			body   = &types.Body{Transactions: input.Transactions}
		)
		if !config.IsPostMerge(header.Difficulty) {
			ommers, err := db.readOmmers(number)
			if err != nil {
				return nil, err
			}
			body.Ommers = ommers
		}
		if config.IsShanghai(header.Time) {
			withdrawals, err := db.readWithdrawals(number)
			if err != nil {
				return nil, err
			}
			if withdrawals == nil {
				withdrawals = []*types.Withdrawal{}
			}
			body.Withdrawals = withdrawals
		}
		bodies[i] = body
	}
	return bodies, nil
}

func (db *DB) readOmmers(number uint64) ([]*types.Header, error) {
	enc, closer, err := db.pdb.Get(ommersKey(number))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	var ommers []*types.Header
	if err := rlp.DecodeBytes(enc, &ommers); err != nil {
		return nil, fmt.Errorf("failed to decode ommers of block %d: %w", number, err)
	}
	return ommers, nil
}

func (db *DB) readWithdrawals(number uint64) ([]*types.Withdrawal, error) {
	enc, closer, err := db.pdb.Get(withdrawalsKey(number))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	var withdrawals []*types.Withdrawal
	if err := rlp.DecodeBytes(enc, &withdrawals); err != nil {
		return nil, fmt.Errorf("failed to decode withdrawals of block %d: %w", number, err)
	}
	return withdrawals, nil
}
