package storage

import (
	"fmt"
	"math"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/gasgauge/gasgauge/core/types"
)

// BodyWriter persists block-body leftovers and unwinds them on reorgs.
type BodyWriter interface {
	WriteBodies(bodies []NumberedBody) error
	RemoveBodiesAbove(number uint64) error
}

// NumberedBody pairs a block number with the body to persist at that height.
type NumberedBody struct {
	Number uint64
	Body   *types.Body
}

// WriteBodies persists the ommers and withdrawals of the given bodies in one
// atomic batch. Empty lists are not written: their absence is reconstructed
// from the fork schedule on read. Transactions are never written here.
func (db *DB) WriteBodies(bodies []NumberedBody) error {
	batch := db.pdb.NewBatch()
	defer batch.Close()
	for _, nb := range bodies {
		if nb.Body == nil {
			continue
		}
		if len(nb.Body.Ommers) > 0 {
			enc, err := rlp.EncodeToBytes(nb.Body.Ommers)
			if err != nil {
				return fmt.Errorf("failed to encode ommers of block %d: %w", nb.Number, err)
			}
			if err := batch.Set(ommersKey(nb.Number), enc, nil); err != nil {
				return err
			}
		}
		if len(nb.Body.Withdrawals) > 0 {
			enc, err := rlp.EncodeToBytes(nb.Body.Withdrawals)
			if err != nil {
				return fmt.Errorf("failed to encode withdrawals of block %d: %w", nb.Number, err)
			}
			if err := batch.Set(withdrawalsKey(nb.Number), enc, nil); err != nil {
				return err
			}
		}
	}
	return batch.Commit(pebble.Sync)
}

// RemoveBodiesAbove deletes all body data strictly above the given block
// number. The block at the given number is kept: it is the new tip after an
// unwind.
func (db *DB) RemoveBodiesAbove(number uint64) error {
	if number == math.MaxUint64 {
		return nil
	}
	batch := db.pdb.NewBatch()
	defer batch.Close()
	if err := batch.DeleteRange(ommersKey(number+1), prefixEnd(ommersPrefix), nil); err != nil {
		return err
	}
	if err := batch.DeleteRange(withdrawalsKey(number+1), prefixEnd(withdrawalsPrefix), nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}
