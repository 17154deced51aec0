package escrow_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iov-one/escrowd"
	"github.com/iov-one/escrowd/crypto"
	"github.com/iov-one/escrowd/errors"
	"github.com/iov-one/escrowd/escrow"
	"github.com/iov-one/escrowd/escrowdtest"
	"github.com/iov-one/escrowd/funds"
	"github.com/iov-one/escrowd/store"
)

// genesis is an arbitrary moment all tests start at.
const genesis = escrowd.UnixTime(1234567890)

type testEnv struct {
	db     store.CacheableKVStore
	ledger funds.Ledger
	ctrl   *escrow.Controller
	clock  *escrowdtest.Clock
	self   escrowd.Address
	token  escrowd.Address

	buyer     *crypto.PrivateKey
	seller    *crypto.PrivateKey
	moderator *crypto.PrivateKey
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	self := escrowdtest.KeyFromSeed("deployment").Address()
	ledger, err := funds.NewLedger(self)
	require.NoError(t, err)

	db := store.MemStore()
	clock := escrowdtest.NewClock(genesis)
	ctrl, err := escrow.NewController(escrow.Options{
		DB:     db,
		Coins:  ledger.CoinMover(),
		Tokens: ledger.TokenMover(),
		Self:   self,
		Clock:  clock,
	})
	require.NoError(t, err)

	return &testEnv{
		db:        db,
		ledger:    ledger,
		ctrl:      ctrl,
		clock:     clock,
		self:      self,
		token:     escrowdtest.KeyFromSeed("token").Address(),
		buyer:     escrowdtest.KeyFromSeed("buyer"),
		seller:    escrowdtest.KeyFromSeed("seller"),
		moderator: escrowdtest.KeyFromSeed("moderator"),
	}
}

var uniqueSeq int

func nextUniqueID() []byte {
	uniqueSeq++
	return []byte(fmt.Sprintf("deal-%d", uniqueSeq))
}

// nativeMsg builds a valid create message for a native transaction.
func (e *testEnv) nativeMsg(threshold uint8, timeoutHours uint32, deposit uint64) *escrow.CreateMsg {
	msg := &escrow.CreateMsg{
		UniqueID:     nextUniqueID(),
		Buyer:        e.buyer.Address(),
		Seller:       e.seller.Address(),
		Threshold:    threshold,
		TimeoutHours: timeoutHours,
		Deposit:      deposit,
	}
	if threshold > 1 {
		msg.Moderator = e.moderator.Address()
	}
	msg.ID = e.ctrl.NativeCommitment(msg.UniqueID, msg.Threshold, msg.TimeoutHours, msg.Buyer, msg.Seller, msg.Moderator)
	return msg
}

// tokenMsg builds a valid create message for a token transaction.
func (e *testEnv) tokenMsg(threshold uint8, timeoutHours uint32, deposit uint64) *escrow.CreateMsg {
	msg := e.nativeMsg(threshold, timeoutHours, deposit)
	msg.Token = e.token
	msg.ID = e.ctrl.TokenCommitment(msg.UniqueID, msg.Threshold, msg.TimeoutHours, msg.Buyer, msg.Seller, msg.Moderator, msg.Token)
	return msg
}

// createNative funds a native transaction. The deposited value enters
// custody with the call, modelled by minting it to the custody wallet.
func (e *testEnv) createNative(t *testing.T, threshold uint8, timeoutHours uint32, deposit uint64) []byte {
	t.Helper()
	msg := e.nativeMsg(threshold, timeoutHours, deposit)
	require.NoError(t, e.ledger.IssueNative(e.db, e.self, deposit))
	require.NoError(t, e.ctrl.CreateNative(msg))
	return msg.ID
}

// createToken gives the buyer a token balance and funds a token
// transaction from it.
func (e *testEnv) createToken(t *testing.T, threshold uint8, timeoutHours uint32, deposit uint64) []byte {
	t.Helper()
	msg := e.tokenMsg(threshold, timeoutHours, deposit)
	require.NoError(t, e.ledger.IssueToken(e.db, e.token, msg.Buyer, deposit))
	require.NoError(t, e.ctrl.CreateToken(msg))
	return msg.ID
}

func TestCreateNative(t *testing.T) {
	env := newTestEnv(t)

	id := env.createNative(t, 2, 24, 100)

	tx, err := env.ctrl.Transaction(id)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusFunded, tx.Status)
	assert.Equal(t, escrow.AssetNative, tx.Asset)
	assert.Equal(t, uint64(100), tx.Value)
	assert.Equal(t, genesis, tx.LastModified)
	assert.Equal(t, 3, len(tx.Signers))
	assert.True(t, tx.Signers.Contains(env.buyer.Address()))
	assert.True(t, tx.Signers.Contains(env.seller.Address()))
	assert.True(t, tx.Signers.Contains(env.moderator.Address()))
	assert.Empty(t, tx.Voted)
	assert.Empty(t, tx.Beneficiaries)

	count, err := env.ctrl.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// both buyer and seller discover the transaction, the moderator
	// does not participate in the index
	for _, party := range []escrowd.Address{env.buyer.Address(), env.seller.Address()} {
		ids, err := env.ctrl.TransactionsFor(party)
		require.NoError(t, err)
		require.Len(t, ids, 1)
		assert.Equal(t, id, ids[0])
	}
	ids, err := env.ctrl.TransactionsFor(env.moderator.Address())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCreateThresholdOneExcludesModerator(t *testing.T) {
	env := newTestEnv(t)

	id := env.createNative(t, 1, 0, 50)

	tx, err := env.ctrl.Transaction(id)
	require.NoError(t, err)
	assert.Equal(t, 2, len(tx.Signers))
	assert.True(t, tx.Signers.Contains(env.buyer.Address()))
	assert.True(t, tx.Signers.Contains(env.seller.Address()))
}

func TestCreateDuplicateIdentifier(t *testing.T) {
	env := newTestEnv(t)

	msg := env.nativeMsg(2, 0, 100)
	require.NoError(t, env.ctrl.CreateNative(msg))

	// same terms, same identifier: always rejected
	err := env.ctrl.CreateNative(msg)
	assert.True(t, errors.ErrDuplicate.Is(err))

	count, err := env.ctrl.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCreateInvalidTerms(t *testing.T) {
	env := newTestEnv(t)

	cases := map[string]struct {
		mutate  func(msg *escrow.CreateMsg)
		wantErr *errors.Error
	}{
		"buyer is seller": {
			mutate:  func(m *escrow.CreateMsg) { m.Seller = m.Buyer },
			wantErr: errors.ErrInvalidInput,
		},
		"zero deposit": {
			mutate:  func(m *escrow.CreateMsg) { m.Deposit = 0 },
			wantErr: errors.ErrInvalidAmount,
		},
		"threshold too low": {
			mutate:  func(m *escrow.CreateMsg) { m.Threshold = 0 },
			wantErr: errors.ErrInvalidInput,
		},
		"threshold too high": {
			mutate:  func(m *escrow.CreateMsg) { m.Threshold = 4 },
			wantErr: errors.ErrInvalidInput,
		},
		"missing moderator": {
			mutate:  func(m *escrow.CreateMsg) { m.Moderator = nil },
			wantErr: errors.ErrInvalidInput,
		},
		"moderator is buyer": {
			mutate:  func(m *escrow.CreateMsg) { m.Moderator = m.Buyer },
			wantErr: errors.ErrInvalidInput,
		},
		"moderator is seller": {
			mutate:  func(m *escrow.CreateMsg) { m.Moderator = m.Seller },
			wantErr: errors.ErrInvalidInput,
		},
		"commitment mismatch": {
			mutate:  func(m *escrow.CreateMsg) { m.UniqueID = []byte("tampered") },
			wantErr: escrow.ErrCommitment,
		},
		"token reference on native": {
			mutate:  func(m *escrow.CreateMsg) { m.Token = env.token },
			wantErr: errors.ErrInvalidInput,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			msg := env.nativeMsg(2, 0, 100)
			tc.mutate(msg)
			err := env.ctrl.CreateNative(msg)
			require.Error(t, err)
			assert.True(t, tc.wantErr.Is(err), "unexpected error: %+v", err)

			// a failed creation leaves no trace
			_, err = env.ctrl.Transaction(msg.ID)
			if len(msg.ID) == escrow.CommitmentSize {
				assert.True(t, errors.ErrNotFound.Is(err))
			}
		})
	}
}

func TestCreateModeratorCollisionAtThresholdOne(t *testing.T) {
	env := newTestEnv(t)

	// even though a threshold of one never puts the moderator in the
	// signer set, naming the buyer or seller as moderator is bad terms
	for _, collide := range []escrowd.Address{env.buyer.Address(), env.seller.Address()} {
		msg := env.nativeMsg(1, 0, 100)
		msg.Moderator = collide
		msg.ID = env.ctrl.NativeCommitment(msg.UniqueID, msg.Threshold, msg.TimeoutHours, msg.Buyer, msg.Seller, msg.Moderator)
		err := env.ctrl.CreateNative(msg)
		require.Error(t, err)
		assert.True(t, errors.ErrInvalidInput.Is(err), "unexpected error: %+v", err)
	}
}

func TestCreateTokenMovesDeposit(t *testing.T) {
	env := newTestEnv(t)

	id := env.createToken(t, 1, 0, 50)

	tx, err := env.ctrl.Transaction(id)
	require.NoError(t, err)
	assert.Equal(t, escrow.AssetToken, tx.Asset)
	assert.True(t, env.token.Equals(tx.Token))

	buyerBalance, err := env.ledger.TokenBalance(env.db, env.token, env.buyer.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), buyerBalance)
	custody, err := env.ledger.TokenBalance(env.db, env.token, env.self)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), custody)
}

func TestCreateTokenDebitFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)

	// the buyer never got any tokens, so the debit must fail
	msg := env.tokenMsg(1, 0, 50)
	err := env.ctrl.CreateToken(msg)
	require.Error(t, err)
	assert.True(t, escrow.ErrTransfer.Is(err))

	// no record, no index entry, no count
	_, err = env.ctrl.Transaction(msg.ID)
	assert.True(t, errors.ErrNotFound.Is(err))
	ids, err := env.ctrl.TransactionsFor(env.buyer.Address())
	require.NoError(t, err)
	assert.Empty(t, ids)
	count, err := env.ctrl.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestTopUpAccumulates(t *testing.T) {
	env := newTestEnv(t)

	id := env.createNative(t, 2, 24, 100)
	require.NoError(t, env.ledger.IssueNative(env.db, env.self, 70))
	require.NoError(t, env.ctrl.TopUpNative(id, env.buyer.Address(), 30))
	require.NoError(t, env.ctrl.TopUpNative(id, env.buyer.Address(), 40))

	tx, err := env.ctrl.Transaction(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(170), tx.Value)

	// the timelock anchor must not move with funding activity
	assert.Equal(t, genesis, tx.LastModified)
}

func TestTopUpToken(t *testing.T) {
	env := newTestEnv(t)

	id := env.createToken(t, 1, 0, 50)
	require.NoError(t, env.ledger.IssueToken(env.db, env.token, env.buyer.Address(), 25))
	require.NoError(t, env.ctrl.TopUpToken(id, env.buyer.Address(), 25))

	tx, err := env.ctrl.Transaction(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(75), tx.Value)
	custody, err := env.ledger.TokenBalance(env.db, env.token, env.self)
	require.NoError(t, err)
	assert.Equal(t, uint64(75), custody)
}

func TestTopUpRejections(t *testing.T) {
	env := newTestEnv(t)
	nativeID := env.createNative(t, 2, 24, 100)
	tokenID := env.createToken(t, 1, 0, 50)

	cases := map[string]struct {
		call    func() error
		wantErr *errors.Error
	}{
		"unknown transaction": {
			call: func() error {
				return env.ctrl.TopUpNative(make([]byte, escrow.CommitmentSize), env.buyer.Address(), 10)
			},
			wantErr: errors.ErrNotFound,
		},
		"malformed identifier": {
			call: func() error {
				return env.ctrl.TopUpNative([]byte("short"), env.buyer.Address(), 10)
			},
			wantErr: errors.ErrInvalidInput,
		},
		"non-buyer caller": {
			call: func() error {
				return env.ctrl.TopUpNative(nativeID, env.seller.Address(), 10)
			},
			wantErr: errors.ErrUnauthorized,
		},
		"zero value": {
			call: func() error {
				return env.ctrl.TopUpNative(nativeID, env.buyer.Address(), 0)
			},
			wantErr: errors.ErrInvalidAmount,
		},
		"asset kind mismatch": {
			call: func() error {
				return env.ctrl.TopUpNative(tokenID, env.buyer.Address(), 10)
			},
			wantErr: errors.ErrInvalidType,
		},
		"token debit failure": {
			call: func() error {
				// buyer has no tokens left after the creation
				return env.ctrl.TopUpToken(tokenID, env.buyer.Address(), 10)
			},
			wantErr: escrow.ErrTransfer,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := tc.call()
			require.Error(t, err)
			assert.True(t, tc.wantErr.Is(err), "unexpected error: %+v", err)
		})
	}

	// nothing above changed the recorded values
	tx, err := env.ctrl.Transaction(nativeID)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), tx.Value)
	tx, err = env.ctrl.Transaction(tokenID)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), tx.Value)
}

func TestQueriesRunConcurrentlyWithWrites(t *testing.T) {
	env := newTestEnv(t)
	id := env.createNative(t, 2, 24, 100)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := env.ctrl.Transaction(id); err != nil {
					t.Error(err)
				}
				if _, err := env.ctrl.Count(); err != nil {
					t.Error(err)
				}
				if _, err := env.ctrl.TransactionsFor(env.buyer.Address()); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	for j := 0; j < 50; j++ {
		require.NoError(t, env.ctrl.TopUpNative(id, env.buyer.Address(), 1))
	}
	wg.Wait()

	tx, err := env.ctrl.Transaction(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), tx.Value)
}

func TestControllerWiring(t *testing.T) {
	self := escrowdtest.KeyFromSeed("deployment").Address()
	ledger, err := funds.NewLedger(self)
	require.NoError(t, err)
	db := store.MemStore()

	cases := map[string]escrow.Options{
		"missing db":     {Coins: ledger.CoinMover(), Tokens: ledger.TokenMover(), Self: self},
		"missing coins":  {DB: db, Tokens: ledger.TokenMover(), Self: self},
		"missing tokens": {DB: db, Coins: ledger.CoinMover(), Self: self},
		"missing self":   {DB: db, Coins: ledger.CoinMover(), Tokens: ledger.TokenMover()},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := escrow.NewController(opts)
			assert.Error(t, err)
		})
	}

	// clock and logger have working defaults
	ctrl, err := escrow.NewController(escrow.Options{
		DB: db, Coins: ledger.CoinMover(), Tokens: ledger.TokenMover(), Self: self,
	})
	require.NoError(t, err)
	assert.NotNil(t, ctrl)
}
