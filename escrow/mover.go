package escrow

import (
	"github.com/iov-one/escrowd"
	"github.com/iov-one/escrowd/store"
)

// CoinMover is the asset transfer capability for native value. Native
// deposits are implicit in the call that carries them, so the engine only
// ever credits: it pushes escrowed native value to a release destination.
//
// The per-call KVStore is passed through so implementations that keep
// balances in the same store participate in the call's all-or-nothing
// cache-wrap semantics.
type CoinMover interface {
	Credit(db store.KVStore, recipient escrowd.Address, amount uint64) error
}

// TokenMover is the asset transfer capability for fungible-token balances.
// Debit pulls tokens from the payer into escrow custody (the payer's
// pre-authorization happens outside this engine); Credit pushes escrowed
// tokens to a recipient.
type TokenMover interface {
	Debit(db store.KVStore, token, payer escrowd.Address, amount uint64) error
	Credit(db store.KVStore, token, recipient escrowd.Address, amount uint64) error
}
