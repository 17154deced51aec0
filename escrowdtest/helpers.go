package escrowdtest

import (
	"testing"
	"time"

	"github.com/iov-one/escrowd"
	"github.com/iov-one/escrowd/crypto"
	"github.com/iov-one/escrowd/escrow"
	"github.com/iov-one/escrowd/store"
)

// NewKey returns a random signing key for tests.
func NewKey() *crypto.PrivateKey {
	return crypto.GenPrivKey()
}

// KeyFromSeed returns a deterministic signing key so table tests can name
// their parties.
func KeyFromSeed(seed string) *crypto.PrivateKey {
	return crypto.PrivKeyFromSeed([]byte(seed))
}

// NewCondition returns the condition of a fresh random key.
func NewCondition() escrowd.Condition {
	return NewKey().Condition()
}

// NewAddress returns the address of a fresh random key.
func NewAddress() escrowd.Address {
	return NewKey().Address()
}

// SignRelease produces one party's signature over the canonical release
// digest for the given distribution.
func SignRelease(t testing.TB, key *crypto.PrivateKey, self escrowd.Address, id []byte, destinations []escrowd.Address, amounts []uint64) crypto.Signature {
	t.Helper()
	sig, err := key.Sign(escrow.ReleaseDigest(self, id, destinations, amounts))
	if err != nil {
		t.Fatalf("cannot sign release: %s", err)
	}
	return sig
}

// Clock is a settable time source.
type Clock struct {
	t escrowd.UnixTime
}

var _ escrowd.Clock = (*Clock)(nil)

// NewClock starts a clock at the given moment.
func NewClock(t escrowd.UnixTime) *Clock {
	return &Clock{t: t}
}

func (c *Clock) Now() escrowd.UnixTime {
	return c.t
}

// Advance moves the clock forward (or, with a negative duration, back).
func (c *Clock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

// FailingCoinMover always fails with the configured error.
type FailingCoinMover struct {
	Err error
}

var _ escrow.CoinMover = FailingCoinMover{}

func (m FailingCoinMover) Credit(store.KVStore, escrowd.Address, uint64) error {
	return m.Err
}

// PanickingCoinMover panics on every call, simulating a broken
// collaborator implementation.
type PanickingCoinMover struct{}

var _ escrow.CoinMover = PanickingCoinMover{}

func (PanickingCoinMover) Credit(store.KVStore, escrowd.Address, uint64) error {
	panic("coin mover is broken")
}

// FailingTokenMover always fails with the configured error.
type FailingTokenMover struct {
	Err error
}

var _ escrow.TokenMover = FailingTokenMover{}

func (m FailingTokenMover) Debit(store.KVStore, escrowd.Address, escrowd.Address, uint64) error {
	return m.Err
}

func (m FailingTokenMover) Credit(store.KVStore, escrowd.Address, escrowd.Address, uint64) error {
	return m.Err
}
