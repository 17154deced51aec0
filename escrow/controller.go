package escrow

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/tendermint/tendermint/libs/log"

	"github.com/iov-one/escrowd"
	"github.com/iov-one/escrowd/errors"
	"github.com/iov-one/escrowd/store"
)

// Controller is the caller-facing surface of the engine. It serializes all
// mutating operations, runs each of them on a store cache-wrap and writes
// the wrap only when the whole call succeeded. Read queries run against
// committed state under a shared lock, so they may run concurrently with
// each other but never interleave with a write; a caller must not assume
// a read reflects a write it has not confirmed.
type Controller struct {
	mu      sync.RWMutex
	db      store.CacheableKVStore
	bucket  TransactionBucket
	parties PartyIndex
	coins   CoinMover
	tokens  TokenMover
	clock   escrowd.Clock
	self    escrowd.Address
	logger  log.Logger
}

// Options wires a Controller. DB, Coins, Tokens and Self are required;
// Clock defaults to the wall clock and Logger to a no-op logger.
type Options struct {
	DB     store.CacheableKVStore
	Coins  CoinMover
	Tokens TokenMover
	// Self is this deployment's own identity. It is bound into every
	// commitment and every release digest, so signatures and identifiers
	// are worthless for any other deployment.
	Self   escrowd.Address
	Clock  escrowd.Clock
	Logger log.Logger
}

// NewController validates the wiring and builds the engine.
func NewController(opts Options) (*Controller, error) {
	if opts.DB == nil {
		return nil, errors.Wrap(errors.ErrEmpty, "db")
	}
	if opts.Coins == nil {
		return nil, errors.Wrap(errors.ErrEmpty, "coin mover")
	}
	if opts.Tokens == nil {
		return nil, errors.Wrap(errors.ErrEmpty, "token mover")
	}
	if err := opts.Self.Validate(); err != nil {
		return nil, errors.Wrap(err, "self identity")
	}
	clock := opts.Clock
	if clock == nil {
		clock = escrowd.CurrentClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Controller{
		db:      opts.DB,
		bucket:  NewTransactionBucket(),
		parties: NewPartyIndex(),
		coins:   opts.Coins,
		tokens:  opts.Tokens,
		clock:   clock,
		self:    opts.Self,
		logger:  logger.With("module", "escrow"),
	}, nil
}

// NativeCommitment recomputes the identifier for native terms under this
// deployment's identity. Pure; callers use it to pre-verify an identifier
// before funding.
func (c *Controller) NativeCommitment(uniqueID []byte, threshold uint8, timeoutHours uint32, buyer, seller, moderator escrowd.Address) []byte {
	return NativeCommitment(uniqueID, threshold, timeoutHours, buyer, seller, moderator, c.self)
}

// TokenCommitment recomputes the identifier for token terms under this
// deployment's identity.
func (c *Controller) TokenCommitment(uniqueID []byte, threshold uint8, timeoutHours uint32, buyer, seller, moderator, token escrowd.Address) []byte {
	return TokenCommitment(uniqueID, threshold, timeoutHours, buyer, seller, moderator, c.self, token)
}

// CreateNative records a new native value transaction from an initial
// deposit. The native value itself is carried by the call, there is no
// debit against the buyer here.
func (c *Controller) CreateNative(msg *CreateMsg) error {
	if len(msg.Token) != 0 {
		return errors.Wrap(errors.ErrInvalidInput, "token reference on a native transaction")
	}
	expect := NativeCommitment(msg.UniqueID, msg.Threshold, msg.TimeoutHours, msg.Buyer, msg.Seller, msg.Moderator, c.self)
	return c.create(msg, AssetNative, expect)
}

// CreateToken records a new token transaction and pulls the deposit from
// the buyer into escrow custody. A failed debit rolls the whole creation
// back.
func (c *Controller) CreateToken(msg *CreateMsg) error {
	if msg.Token.IsZero() {
		return errors.Wrap(errors.ErrEmpty, "token reference")
	}
	expect := TokenCommitment(msg.UniqueID, msg.Threshold, msg.TimeoutHours, msg.Buyer, msg.Seller, msg.Moderator, c.self, msg.Token)
	return c.create(msg, AssetToken, expect)
}

func (c *Controller) create(msg *CreateMsg, kind AssetKind, expect []byte) (err error) {
	if err := msg.Validate(); err != nil {
		return err
	}
	if !bytes.Equal(expect, msg.ID) {
		return errors.Wrapf(ErrCommitment, "expected %X", expect)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cache := c.db.CacheWrap()
	defer func() {
		if err != nil {
			cache.Discard()
		}
	}()
	// A panicking collaborator surfaces as ErrPanic like any failed call.
	defer errors.Recover(&err)

	if err := c.createIn(cache, msg, kind); err != nil {
		return err
	}
	if err := cache.Write(); err != nil {
		return errors.Wrap(err, "cannot commit creation")
	}
	c.logger.Info("transaction funded",
		"id", fmt.Sprintf("%X", msg.ID),
		"asset", kind.String(),
		"value", msg.Deposit,
		"threshold", msg.Threshold,
	)
	return nil
}

func (c *Controller) createIn(db store.KVStore, msg *CreateMsg, kind AssetKind) error {
	if kind == AssetToken {
		if err := c.tokens.Debit(db, msg.Token, msg.Buyer, msg.Deposit); err != nil {
			return errors.Wrapf(ErrTransfer, "deposit debit: %s", err)
		}
	}

	tx := &Transaction{
		Value:        msg.Deposit,
		LastModified: c.clock.Now(),
		Status:       StatusFunded,
		Asset:        kind,
		Threshold:    msg.Threshold,
		TimeoutHours: msg.TimeoutHours,
		Buyer:        msg.Buyer.Clone(),
		Seller:       msg.Seller.Clone(),
		Moderator:    msg.Moderator.Clone(),
		Token:        msg.Token.Clone(),
		Signers:      authorizedSigners(msg.Buyer, msg.Seller, msg.Moderator, msg.Threshold),
	}
	if err := c.bucket.Create(db, msg.ID, tx); err != nil {
		return err
	}

	if err := c.parties.Append(db, msg.Buyer, msg.ID); err != nil {
		return err
	}
	return c.parties.Append(db, msg.Seller, msg.ID)
}

// TopUpNative adds native value to a funded native transaction. Only the
// recorded buyer may top up.
func (c *Controller) TopUpNative(id []byte, from escrowd.Address, amount uint64) error {
	return c.topUp(id, from, amount, AssetNative)
}

// TopUpToken adds tokens to a funded token transaction, debiting the
// buyer. Only the recorded buyer may top up.
func (c *Controller) TopUpToken(id []byte, from escrowd.Address, amount uint64) error {
	return c.topUp(id, from, amount, AssetToken)
}

func (c *Controller) topUp(id []byte, from escrowd.Address, amount uint64, kind AssetKind) (err error) {
	if err := validateTransactionID(id); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cache := c.db.CacheWrap()
	defer func() {
		if err != nil {
			cache.Discard()
		}
	}()
	defer errors.Recover(&err)

	if err := c.topUpIn(cache, id, from, amount, kind); err != nil {
		return err
	}
	if err := cache.Write(); err != nil {
		return errors.Wrap(err, "cannot commit top-up")
	}
	c.logger.Info("transaction topped up",
		"id", fmt.Sprintf("%X", id),
		"asset", kind.String(),
		"amount", amount,
	)
	return nil
}

func (c *Controller) topUpIn(db store.KVStore, id []byte, from escrowd.Address, amount uint64, kind AssetKind) error {
	tx, err := c.bucket.One(db, id)
	if err != nil {
		return err
	}
	if tx.Status != StatusFunded {
		return errors.Wrapf(ErrNotFunded, "status %s", tx.Status)
	}
	if tx.Asset != kind {
		return errors.Wrapf(errors.ErrInvalidType, "transaction holds %s", tx.Asset)
	}
	if !from.Equals(tx.Buyer) {
		return errors.Wrap(errors.ErrUnauthorized, "only the buyer may top up")
	}
	if amount == 0 {
		return errors.Wrap(errors.ErrInvalidAmount, "zero value")
	}
	if tx.Value+amount < tx.Value {
		return errors.Wrap(errors.ErrOverflow, "value")
	}

	if kind == AssetToken {
		if err := c.tokens.Debit(db, tx.Token, tx.Buyer, amount); err != nil {
			return errors.Wrapf(ErrTransfer, "top-up debit: %s", err)
		}
	}

	// The timelock anchor stays put: a top-up never resets the countdown
	// the seller relies on.
	tx.Value += amount
	return c.bucket.Update(db, id, tx)
}

// Transaction returns a snapshot of the record stored under the given
// identifier.
func (c *Controller) Transaction(id []byte) (*Transaction, error) {
	if err := validateTransactionID(id); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bucket.One(c.db, id)
}

// IsBeneficiary reports whether the party has received funds from the
// given transaction.
func (c *Controller) IsBeneficiary(id []byte, party escrowd.Address) (bool, error) {
	tx, err := c.Transaction(id)
	if err != nil {
		return false, err
	}
	return tx.Beneficiaries.Contains(party), nil
}

// HasVoted reports whether the party cast a valid signature on the
// settled release of the given transaction.
func (c *Controller) HasVoted(id []byte, party escrowd.Address) (bool, error) {
	tx, err := c.Transaction(id)
	if err != nil {
		return false, err
	}
	return tx.Voted.Contains(party), nil
}

// TransactionsFor returns the identifiers the party participates in, in
// append order. Discovery only; it grants no authority.
func (c *Controller) TransactionsFor(party escrowd.Address) ([][]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.parties.List(c.db, party)
}

// Count returns how many transactions were ever created.
func (c *Controller) Count() (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bucket.Count(c.db)
}
