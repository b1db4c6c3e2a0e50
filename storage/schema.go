package storage

import "encoding/binary"

// Key prefixes for the body store schema. Single-byte prefixes keep the two
// tables in disjoint key ranges.
var (
	ommersPrefix      = []byte("b") // b + num (8 bytes BE) -> ommer headers RLP
	withdrawalsPrefix = []byte("w") // w + num (8 bytes BE) -> withdrawals RLP
)

// encodeBlockNumber encodes a block number as an 8-byte big-endian value.
// Big-endian keys keep each prefix ordered by height, so unwinding a chain
// segment is a single range delete per prefix.
func encodeBlockNumber(number uint64) []byte {
	enc := make([]byte, 8)
	binary.BigEndian.PutUint64(enc, number)
	return enc
}

// ommersKey = ommersPrefix + num
func ommersKey(number uint64) []byte {
	return append(ommersPrefix, encodeBlockNumber(number)...)
}

// withdrawalsKey = withdrawalsPrefix + num
func withdrawalsKey(number uint64) []byte {
	return append(withdrawalsPrefix, encodeBlockNumber(number)...)
}

// prefixEnd returns the smallest key ordered after every key carrying the
// given prefix, for use as an exclusive range-delete bound.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	end[len(end)-1]++
	return end
}
