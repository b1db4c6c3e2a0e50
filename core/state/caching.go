package state

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gasgauge/gasgauge/core/types"
)

const (
	accountCacheSize = 4096
	codeCacheSize    = 256
	slotCacheSize    = 16384
)

// storageKey identifies a single storage slot across accounts.
type storageKey struct {
	addr types.Address
	slot types.Hash
}

// CachingReader wraps a Reader with LRU caches for accounts, code and
// storage slots. Estimation replays the same transaction against the same
// block many times, so the repeated reads hit memory instead of the backend.
//
// The wrapped reader serves a fixed block, which is what makes the cached
// values safe to share: nothing behind a resolved reader ever changes.
// CachingReader is safe for concurrent use if the base reader is. Cached
// accounts are shared between callers and must not be mutated.
type CachingReader struct {
	base     Reader
	accounts *lru.Cache[types.Address, *types.Account]
	codes    *lru.Cache[types.Hash, []byte]
	slots    *lru.Cache[storageKey, types.Hash]
}

// NewCachingReader wraps base with fresh caches.
func NewCachingReader(base Reader) *CachingReader {
	accounts, _ := lru.New[types.Address, *types.Account](accountCacheSize)
	codes, _ := lru.New[types.Hash, []byte](codeCacheSize)
	slots, _ := lru.New[storageKey, types.Hash](slotCacheSize)
	return &CachingReader{
		base:     base,
		accounts: accounts,
		codes:    codes,
		slots:    slots,
	}
}

func (r *CachingReader) Account(addr types.Address) (*types.Account, error) {
	if acct, ok := r.accounts.Get(addr); ok {
		return acct, nil
	}
	acct, err := r.base.Account(addr)
	if err != nil {
		return nil, err
	}
	// Negative results are cached too: a nil entry records the absence.
	r.accounts.Add(addr, acct)
	return acct, nil
}

func (r *CachingReader) Code(addr types.Address, codeHash types.Hash) ([]byte, error) {
	if code, ok := r.codes.Get(codeHash); ok {
		return code, nil
	}
	code, err := r.base.Code(addr, codeHash)
	if err != nil {
		return nil, err
	}
	r.codes.Add(codeHash, code)
	return code, nil
}

func (r *CachingReader) Storage(addr types.Address, slot types.Hash) (types.Hash, error) {
	key := storageKey{addr: addr, slot: slot}
	if val, ok := r.slots.Get(key); ok {
		return val, nil
	}
	val, err := r.base.Storage(addr, slot)
	if err != nil {
		return types.Hash{}, err
	}
	r.slots.Add(key, val)
	return val, nil
}
