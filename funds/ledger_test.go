package funds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iov-one/escrowd"
	"github.com/iov-one/escrowd/errors"
	"github.com/iov-one/escrowd/store"
)

func walletAddr(i byte) escrowd.Address {
	a := make(escrowd.Address, escrowd.AddressLength)
	a[0] = i
	return a
}

func TestLedgerRequiresValidCustody(t *testing.T) {
	_, err := NewLedger(nil)
	assert.Error(t, err)
	_, err = NewLedger(make(escrowd.Address, escrowd.AddressLength))
	assert.Error(t, err)
	_, err = NewLedger(walletAddr(1))
	assert.NoError(t, err)
}

func TestNativeIssueAndBalance(t *testing.T) {
	db := store.MemStore()
	ledger, err := NewLedger(walletAddr(1))
	require.NoError(t, err)
	alice := walletAddr(2)

	balance, err := ledger.NativeBalance(db, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balance)

	require.NoError(t, ledger.IssueNative(db, alice, 100))
	require.NoError(t, ledger.IssueNative(db, alice, 50))

	balance, err = ledger.NativeBalance(db, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), balance)
}

func TestCoinMoverCreditsFromCustody(t *testing.T) {
	db := store.MemStore()
	custody := walletAddr(1)
	ledger, err := NewLedger(custody)
	require.NoError(t, err)
	alice := walletAddr(2)

	require.NoError(t, ledger.IssueNative(db, custody, 100))
	mover := ledger.CoinMover()

	require.NoError(t, mover.Credit(db, alice, 60))

	balance, err := ledger.NativeBalance(db, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), balance)
	held, err := ledger.NativeBalance(db, custody)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), held)

	// custody cannot be overdrawn
	err = mover.Credit(db, alice, 41)
	require.Error(t, err)
	assert.True(t, errors.ErrInsufficientAmount.Is(err))
}

func TestTokenMoverRoundTrip(t *testing.T) {
	db := store.MemStore()
	custody := walletAddr(1)
	ledger, err := NewLedger(custody)
	require.NoError(t, err)
	alice := walletAddr(2)
	bob := walletAddr(3)
	token := walletAddr(9)
	other := walletAddr(10)

	require.NoError(t, ledger.IssueToken(db, token, alice, 100))
	mover := ledger.TokenMover()

	require.NoError(t, mover.Debit(db, token, alice, 100))
	require.NoError(t, mover.Credit(db, token, bob, 100))

	balance, err := ledger.TokenBalance(db, token, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), balance)
	balance, err = ledger.TokenBalance(db, token, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balance)
	held, err := ledger.TokenBalance(db, token, custody)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), held)

	// balances are tracked per token
	balance, err = ledger.TokenBalance(db, other, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balance)

	err = mover.Debit(db, token, alice, 1)
	require.Error(t, err)
	assert.True(t, errors.ErrInsufficientAmount.Is(err))
}

func TestWalletHoldsManyTokens(t *testing.T) {
	db := store.MemStore()
	ledger, err := NewLedger(walletAddr(1))
	require.NoError(t, err)
	alice := walletAddr(2)

	require.NoError(t, ledger.IssueNative(db, alice, 7))
	require.NoError(t, ledger.IssueToken(db, walletAddr(8), alice, 10))
	require.NoError(t, ledger.IssueToken(db, walletAddr(9), alice, 20))

	native, err := ledger.NativeBalance(db, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), native)
	first, err := ledger.TokenBalance(db, walletAddr(8), alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), first)
	second, err := ledger.TokenBalance(db, walletAddr(9), alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), second)
}
