package funds

import (
	amino "github.com/tendermint/go-amino"

	"github.com/iov-one/escrowd"
	"github.com/iov-one/escrowd/errors"
	"github.com/iov-one/escrowd/escrow"
	"github.com/iov-one/escrowd/store"
)

var cdc = amino.NewCodec()

const walletPrefix = "wallet:"

// TokenBalance is one fungible-token position inside a wallet.
type TokenBalance struct {
	Token  escrowd.Address
	Amount uint64
}

// Wallet is the balance record of a single party.
type Wallet struct {
	Native uint64
	Tokens []TokenBalance
}

func (w *Wallet) tokenAmount(token escrowd.Address) uint64 {
	for _, t := range w.Tokens {
		if t.Token.Equals(token) {
			return t.Amount
		}
	}
	return 0
}

func (w *Wallet) setTokenAmount(token escrowd.Address, amount uint64) {
	for i, t := range w.Tokens {
		if t.Token.Equals(token) {
			w.Tokens[i].Amount = amount
			return
		}
	}
	w.Tokens = append(w.Tokens, TokenBalance{Token: token.Clone(), Amount: amount})
}

// Ledger stores wallets in a KVStore and exposes the mover capabilities
// the escrow engine consumes. The custody address is where escrowed token
// deposits are parked until release.
type Ledger struct {
	custody escrowd.Address
}

// NewLedger builds a ledger with the given custody identity. Use the
// engine's self identity so escrowed balances are attributed to the
// deployment.
func NewLedger(custody escrowd.Address) (Ledger, error) {
	if err := custody.Validate(); err != nil {
		return Ledger{}, errors.Wrap(err, "custody")
	}
	return Ledger{custody: custody}, nil
}

// CoinMover adapts the ledger to the native value capability.
func (l Ledger) CoinMover() escrow.CoinMover {
	return coinMover{l}
}

// TokenMover adapts the ledger to the token capability.
func (l Ledger) TokenMover() escrow.TokenMover {
	return tokenMover{l}
}

// IssueNative mints native value into a wallet. Genesis/test helper; a
// real deployment funds wallets through its host.
func (l Ledger) IssueNative(db store.KVStore, to escrowd.Address, amount uint64) error {
	w, err := l.wallet(db, to)
	if err != nil {
		return err
	}
	if w.Native+amount < w.Native {
		return errors.Wrap(errors.ErrOverflow, "native balance")
	}
	w.Native += amount
	return l.save(db, to, w)
}

// IssueToken mints tokens into a wallet. Genesis/test helper.
func (l Ledger) IssueToken(db store.KVStore, token, to escrowd.Address, amount uint64) error {
	w, err := l.wallet(db, to)
	if err != nil {
		return err
	}
	have := w.tokenAmount(token)
	if have+amount < have {
		return errors.Wrap(errors.ErrOverflow, "token balance")
	}
	w.setTokenAmount(token, have+amount)
	return l.save(db, to, w)
}

// NativeBalance returns the native value held by a party.
func (l Ledger) NativeBalance(db store.ReadOnlyKVStore, addr escrowd.Address) (uint64, error) {
	w, err := l.wallet(db, addr)
	if err != nil {
		return 0, err
	}
	return w.Native, nil
}

// TokenBalance returns the amount of one token held by a party.
func (l Ledger) TokenBalance(db store.ReadOnlyKVStore, token, addr escrowd.Address) (uint64, error) {
	w, err := l.wallet(db, addr)
	if err != nil {
		return 0, err
	}
	return w.tokenAmount(token), nil
}

// moveNative transfers native value between wallets, rejecting overdrafts.
func (l Ledger) moveNative(db store.KVStore, src, dest escrowd.Address, amount uint64) error {
	from, err := l.wallet(db, src)
	if err != nil {
		return err
	}
	if from.Native < amount {
		return errors.Wrapf(errors.ErrInsufficientAmount, "%d < %d", from.Native, amount)
	}
	to, err := l.wallet(db, dest)
	if err != nil {
		return err
	}
	if to.Native+amount < to.Native {
		return errors.Wrap(errors.ErrOverflow, "native balance")
	}
	from.Native -= amount
	to.Native += amount
	if err := l.save(db, src, from); err != nil {
		return err
	}
	return l.save(db, dest, to)
}

// moveToken transfers one token between wallets, rejecting overdrafts.
func (l Ledger) moveToken(db store.KVStore, token, src, dest escrowd.Address, amount uint64) error {
	from, err := l.wallet(db, src)
	if err != nil {
		return err
	}
	have := from.tokenAmount(token)
	if have < amount {
		return errors.Wrapf(errors.ErrInsufficientAmount, "%d < %d", have, amount)
	}
	to, err := l.wallet(db, dest)
	if err != nil {
		return err
	}
	dhave := to.tokenAmount(token)
	if dhave+amount < dhave {
		return errors.Wrap(errors.ErrOverflow, "token balance")
	}
	from.setTokenAmount(token, have-amount)
	to.setTokenAmount(token, dhave+amount)
	if err := l.save(db, src, from); err != nil {
		return err
	}
	return l.save(db, dest, to)
}

func (l Ledger) wallet(db store.ReadOnlyKVStore, addr escrowd.Address) (*Wallet, error) {
	raw, err := db.Get(walletKey(addr))
	if err != nil {
		return nil, errors.Wrap(err, "cannot load wallet")
	}
	var w Wallet
	if raw != nil {
		if err := cdc.UnmarshalBinaryBare(raw, &w); err != nil {
			return nil, errors.Wrap(err, "cannot decode wallet")
		}
	}
	return &w, nil
}

func (l Ledger) save(db store.KVStore, addr escrowd.Address, w *Wallet) error {
	raw, err := cdc.MarshalBinaryBare(w)
	if err != nil {
		return errors.Wrap(err, "cannot encode wallet")
	}
	return db.Set(walletKey(addr), raw)
}

func walletKey(addr escrowd.Address) []byte {
	return append([]byte(walletPrefix), addr...)
}

type coinMover struct {
	l Ledger
}

var _ escrow.CoinMover = coinMover{}

// Credit pushes escrowed native value from custody to the recipient.
func (m coinMover) Credit(db store.KVStore, recipient escrowd.Address, amount uint64) error {
	return m.l.moveNative(db, m.l.custody, recipient, amount)
}

type tokenMover struct {
	l Ledger
}

var _ escrow.TokenMover = tokenMover{}

// Debit pulls tokens from the payer into custody.
func (m tokenMover) Debit(db store.KVStore, token, payer escrowd.Address, amount uint64) error {
	return m.l.moveToken(db, token, payer, m.l.custody, amount)
}

// Credit pushes escrowed tokens from custody to the recipient.
func (m tokenMover) Credit(db store.KVStore, token, recipient escrowd.Address, amount uint64) error {
	return m.l.moveToken(db, token, m.l.custody, recipient, amount)
}
