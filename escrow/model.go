package escrow

import (
	"github.com/iov-one/escrowd"
	"github.com/iov-one/escrowd/errors"
)

// Status is the lifecycle state of a transaction. The only transition is
// StatusFunded to StatusReleased and it happens at most once.
type Status uint8

const (
	StatusInvalid  Status = 0
	StatusFunded   Status = 1
	StatusReleased Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusFunded:
		return "FUNDED"
	case StatusReleased:
		return "RELEASED"
	default:
		return "INVALID"
	}
}

// AssetKind tells which asset transfer capability moves the escrowed
// value. It is immutable once a transaction is created.
type AssetKind uint8

const (
	AssetInvalid AssetKind = 0
	AssetNative  AssetKind = 1
	AssetToken   AssetKind = 2
)

func (k AssetKind) String() string {
	switch k {
	case AssetNative:
		return "NATIVE"
	case AssetToken:
		return "TOKEN"
	default:
		return "INVALID"
	}
}

// Threshold bounds fixed by the three-party design.
const (
	minThreshold = 1
	maxThreshold = 3
)

// PartySet is a set of party identities with membership test. It stays
// tiny (at most the three participants), so it is stored as an ordered
// slice and kept duplicate free through Add.
type PartySet []escrowd.Address

// Contains reports set membership.
func (ps PartySet) Contains(addr escrowd.Address) bool {
	for _, a := range ps {
		if a.Equals(addr) {
			return true
		}
	}
	return false
}

// Add extends the set, ignoring identities already present.
func (ps PartySet) Add(addr escrowd.Address) PartySet {
	if ps.Contains(addr) {
		return ps
	}
	return append(ps, addr.Clone())
}

// Copy provides an independent copy of the set.
func (ps PartySet) Copy() PartySet {
	if ps == nil {
		return nil
	}
	cpy := make(PartySet, 0, len(ps))
	for _, a := range ps {
		cpy = append(cpy, a.Clone())
	}
	return cpy
}

// Transaction is the central entity, identified by its 32 byte commitment.
// The record is never deleted; after release it remains as permanent
// settlement history.
type Transaction struct {
	// Value is the currently escrowed amount. It only grows through
	// top-ups and is retained, equal to the released total, after
	// settlement.
	Value uint64
	// LastModified anchors the timelock. Top-ups deliberately never
	// refresh it.
	LastModified escrowd.UnixTime
	Status       Status
	Asset        AssetKind
	// Threshold is the number of distinct authorized signatures required
	// for a release without the timelock fallback.
	Threshold    uint8
	TimeoutHours uint32
	Buyer        escrowd.Address
	Seller       escrowd.Address
	// Moderator is an authorized signer only when Threshold > 1 and may
	// be the zero identity otherwise.
	Moderator escrowd.Address
	// Token identifies the fungible-token balance, meaningful only for
	// AssetToken.
	Token escrowd.Address
	// Signers is the derived set of identities allowed to vote.
	Signers PartySet
	// Voted collects identities that cast a valid signature for the
	// current release attempt.
	Voted PartySet
	// Beneficiaries is the audit trail of identities that received funds.
	// It is never used for authorization.
	Beneficiaries PartySet
}

// Validate ensures the transaction record upholds the data model
// invariants.
func (tx *Transaction) Validate() error {
	if tx.Status != StatusFunded && tx.Status != StatusReleased {
		return errors.Wrap(errors.ErrInvalidState, "status")
	}
	if tx.Asset != AssetNative && tx.Asset != AssetToken {
		return errors.Wrap(errors.ErrInvalidState, "asset kind")
	}
	if tx.Value == 0 {
		return errors.Wrap(errors.ErrInvalidAmount, "value")
	}
	if err := tx.LastModified.Validate(); err != nil {
		return errors.Wrap(err, "last modified")
	}
	if tx.Threshold < minThreshold || tx.Threshold > maxThreshold {
		return errors.Wrapf(errors.ErrInvalidInput, "threshold %d", tx.Threshold)
	}
	if err := tx.Buyer.Validate(); err != nil {
		return errors.Wrap(err, "buyer")
	}
	if err := tx.Seller.Validate(); err != nil {
		return errors.Wrap(err, "seller")
	}
	if tx.Buyer.Equals(tx.Seller) {
		return errors.Wrap(errors.ErrInvalidInput, "buyer and seller are the same party")
	}
	if tx.Threshold > 1 {
		if err := tx.Moderator.Validate(); err != nil {
			return errors.Wrap(err, "moderator")
		}
		if tx.Moderator.Equals(tx.Buyer) || tx.Moderator.Equals(tx.Seller) {
			return errors.Wrap(errors.ErrInvalidInput, "moderator must be a distinct party")
		}
	}
	if tx.Asset == AssetToken && tx.Token.IsZero() {
		return errors.Wrap(errors.ErrEmpty, "token reference")
	}
	switch want := authorizedSigners(tx.Buyer, tx.Seller, tx.Moderator, tx.Threshold); {
	case len(tx.Signers) != len(want):
		return errors.Wrap(errors.ErrInvalidState, "authorized signer set")
	default:
		for _, s := range want {
			if !tx.Signers.Contains(s) {
				return errors.Wrap(errors.ErrInvalidState, "authorized signer set")
			}
		}
	}
	return nil
}

// Copy makes an independent copy of the record.
func (tx *Transaction) Copy() *Transaction {
	return &Transaction{
		Value:         tx.Value,
		LastModified:  tx.LastModified,
		Status:        tx.Status,
		Asset:         tx.Asset,
		Threshold:     tx.Threshold,
		TimeoutHours:  tx.TimeoutHours,
		Buyer:         tx.Buyer.Clone(),
		Seller:        tx.Seller.Clone(),
		Moderator:     tx.Moderator.Clone(),
		Token:         tx.Token.Clone(),
		Signers:       tx.Signers.Copy(),
		Voted:         tx.Voted.Copy(),
		Beneficiaries: tx.Beneficiaries.Copy(),
	}
}

// authorizedSigners derives the voting set. Buyer and seller always vote;
// the moderator is included only when more than one signature is required.
// This is a policy branch, not a structural difference, so the result is a
// plain set and every authorization check stays uniform.
func authorizedSigners(buyer, seller, moderator escrowd.Address, threshold uint8) PartySet {
	var signers PartySet
	signers = signers.Add(buyer)
	signers = signers.Add(seller)
	if threshold > 1 {
		signers = signers.Add(moderator)
	}
	return signers
}
