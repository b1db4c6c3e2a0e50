package types

// Withdrawal represents a validator withdrawal from the beacon chain.
type Withdrawal struct {
	Index          uint64  `json:"index"`
	ValidatorIndex uint64  `json:"validatorIndex"`
	Address        Address `json:"address"`
	Amount         uint64  `json:"amount"` // in Gwei
}

// Body contains the non-header content of a block: the transactions together
// with the ommer headers and, post-Shanghai, the withdrawals.
//
// A nil Withdrawals slice means the block predates the Shanghai fork. Blocks
// at or after Shanghai carry a non-nil slice even when it is empty.
type Body struct {
	Transactions []*Transaction
	Ommers       []*Header
	Withdrawals  []*Withdrawal
}

// Copy returns a deep copy of the body.
func (b *Body) Copy() *Body {
	cpy := &Body{}
	if b.Transactions != nil {
		cpy.Transactions = make([]*Transaction, len(b.Transactions))
		copy(cpy.Transactions, b.Transactions)
	}
	if b.Ommers != nil {
		cpy.Ommers = make([]*Header, len(b.Ommers))
		for i, ommer := range b.Ommers {
			cpy.Ommers[i] = CopyHeader(ommer)
		}
	}
	if b.Withdrawals != nil {
		cpy.Withdrawals = make([]*Withdrawal, len(b.Withdrawals))
		for i, w := range b.Withdrawals {
			wCopy := *w
			cpy.Withdrawals[i] = &wCopy
		}
	}
	return cpy
}
