package escrow

import (
	"encoding/binary"

	amino "github.com/tendermint/go-amino"

	"github.com/iov-one/escrowd"
	"github.com/iov-one/escrowd/errors"
	"github.com/iov-one/escrowd/store"
)

// cdc encodes the persisted records. The commitment identifier is never
// amino encoded, it is used as the raw key.
var cdc = amino.NewCodec()

const (
	txPrefix    = "tx:"
	partyPrefix = "party:"
	// counterKey follows the sequence key pattern "_s.<bucket>:<name>".
	counterKey = "_s.tx:count"
)

// TransactionBucket is the transaction registry. It owns every Transaction
// record exclusively: callers always receive decoded copies, mutate them
// and write back, so no mutable reference survives across calls.
type TransactionBucket struct{}

// NewTransactionBucket creates the registry accessor.
func NewTransactionBucket() TransactionBucket {
	return TransactionBucket{}
}

func (b TransactionBucket) dbKey(id []byte) []byte {
	return append([]byte(txPrefix), id...)
}

// Has checks for an existing record under the given identifier.
func (b TransactionBucket) Has(db store.ReadOnlyKVStore, id []byte) (bool, error) {
	return db.Has(b.dbKey(id))
}

// One loads the record stored under the given identifier. It returns
// ErrNotFound when the identifier denotes no transaction.
func (b TransactionBucket) One(db store.ReadOnlyKVStore, id []byte) (*Transaction, error) {
	raw, err := db.Get(b.dbKey(id))
	if err != nil {
		return nil, errors.Wrap(err, "cannot load transaction")
	}
	if raw == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "transaction %X", id)
	}
	var tx Transaction
	if err := cdc.UnmarshalBinaryBare(raw, &tx); err != nil {
		return nil, errors.Wrap(err, "cannot decode transaction")
	}
	return &tx, nil
}

// Create stores a new record and bumps the creation counter. A commitment
// identifier denotes at most one transaction for the lifetime of the
// system, so an occupied identifier always fails with ErrDuplicate.
func (b TransactionBucket) Create(db store.KVStore, id []byte, tx *Transaction) error {
	switch has, err := b.Has(db, id); {
	case err != nil:
		return errors.Wrap(err, "existence check")
	case has:
		return errors.Wrapf(errors.ErrDuplicate, "transaction %X", id)
	}
	if err := b.save(db, id, tx); err != nil {
		return err
	}

	count, err := b.Count(db)
	if err != nil {
		return err
	}
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], uint64(count)+1)
	return db.Set([]byte(counterKey), raw[:])
}

// Update overwrites an existing record. It returns ErrNotFound when the
// identifier denotes no transaction.
func (b TransactionBucket) Update(db store.KVStore, id []byte, tx *Transaction) error {
	switch has, err := b.Has(db, id); {
	case err != nil:
		return errors.Wrap(err, "existence check")
	case !has:
		return errors.Wrapf(errors.ErrNotFound, "transaction %X", id)
	}
	return b.save(db, id, tx)
}

func (b TransactionBucket) save(db store.KVStore, id []byte, tx *Transaction) error {
	if err := tx.Validate(); err != nil {
		return errors.Wrap(err, "invalid transaction")
	}
	raw, err := cdc.MarshalBinaryBare(tx)
	if err != nil {
		return errors.Wrap(err, "cannot encode transaction")
	}
	return db.Set(b.dbKey(id), raw)
}

// Count returns how many transactions were ever created. The counter only
// grows; released transactions remain counted.
func (b TransactionBucket) Count(db store.ReadOnlyKVStore) (int64, error) {
	raw, err := db.Get([]byte(counterKey))
	if err != nil {
		return 0, errors.Wrap(err, "cannot load counter")
	}
	if raw == nil {
		return 0, nil
	}
	return int64(binary.BigEndian.Uint64(raw)), nil
}

// partyTransactions is the persisted form of one party's index entry.
type partyTransactions struct {
	IDs [][]byte
}

// PartyIndex maps a party identity to the ordered list of transaction
// identifiers they participate in. Append-only and used purely for
// discovery, never for authorization.
type PartyIndex struct{}

// NewPartyIndex creates the index accessor.
func NewPartyIndex() PartyIndex {
	return PartyIndex{}
}

func (i PartyIndex) dbKey(party escrowd.Address) []byte {
	return append([]byte(partyPrefix), party...)
}

// Append records that a party participates in the given transaction.
func (i PartyIndex) Append(db store.KVStore, party escrowd.Address, id []byte) error {
	ids, err := i.List(db, party)
	if err != nil {
		return err
	}
	entry := partyTransactions{IDs: append(ids, append([]byte{}, id...))}
	raw, err := cdc.MarshalBinaryBare(entry)
	if err != nil {
		return errors.Wrap(err, "cannot encode party index")
	}
	return db.Set(i.dbKey(party), raw)
}

// List returns the identifiers in append order. The result is an
// independent copy safe for the caller to retain.
func (i PartyIndex) List(db store.ReadOnlyKVStore, party escrowd.Address) ([][]byte, error) {
	raw, err := db.Get(i.dbKey(party))
	if err != nil {
		return nil, errors.Wrap(err, "cannot load party index")
	}
	if raw == nil {
		return nil, nil
	}
	var entry partyTransactions
	if err := cdc.UnmarshalBinaryBare(raw, &entry); err != nil {
		return nil, errors.Wrap(err, "cannot decode party index")
	}
	return entry.IDs, nil
}
