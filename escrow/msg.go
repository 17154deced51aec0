package escrow

import (
	"github.com/iov-one/escrowd"
	"github.com/iov-one/escrowd/crypto"
	"github.com/iov-one/escrowd/errors"
)

// CreateMsg carries the full term tuple plus the initial deposit for both
// creation entry points. ID is the caller supplied commitment identifier;
// it is recomputed and compared during creation.
type CreateMsg struct {
	ID           []byte
	UniqueID     []byte
	Buyer        escrowd.Address
	Seller       escrowd.Address
	Moderator    escrowd.Address
	Threshold    uint8
	TimeoutHours uint32
	Deposit      uint64
	// Token must be set for token transactions and left empty otherwise.
	Token escrowd.Address
}

// Validate makes sure the terms are sensible. Every violation here is an
// invalid-terms rejection.
func (m *CreateMsg) Validate() error {
	if err := validateTransactionID(m.ID); err != nil {
		return err
	}
	if len(m.UniqueID) == 0 {
		return errors.Wrap(errors.ErrEmpty, "unique id")
	}
	if err := m.Buyer.Validate(); err != nil {
		return errors.Wrap(err, "buyer")
	}
	if err := m.Seller.Validate(); err != nil {
		return errors.Wrap(err, "seller")
	}
	if m.Buyer.Equals(m.Seller) {
		return errors.Wrap(errors.ErrInvalidInput, "buyer and seller are the same party")
	}
	if m.Deposit == 0 {
		return errors.Wrap(errors.ErrInvalidAmount, "deposit")
	}
	if m.Threshold < minThreshold || m.Threshold > maxThreshold {
		return errors.Wrapf(errors.ErrInvalidInput, "threshold %d", m.Threshold)
	}
	if m.Threshold > 1 && m.Moderator.IsZero() {
		return errors.Wrap(errors.ErrInvalidInput, "moderator required for threshold above one")
	}
	// A moderator, when named, must be a distinct party even at threshold
	// one where the signer set will not include it.
	if !m.Moderator.IsZero() {
		if err := m.Moderator.Validate(); err != nil {
			return errors.Wrap(err, "moderator")
		}
		if m.Moderator.Equals(m.Buyer) || m.Moderator.Equals(m.Seller) {
			return errors.Wrap(errors.ErrInvalidInput, "moderator must be a distinct party")
		}
	}
	return nil
}

// ReleaseMsg carries one release attempt: the distribution and the
// signatures authorizing it.
type ReleaseMsg struct {
	ID           []byte
	Signatures   []crypto.Signature
	Destinations []escrowd.Address
	Amounts      []uint64
}

// Validate makes sure the distribution lists line up. Signature content is
// checked by the verifier, not here.
func (m *ReleaseMsg) Validate() error {
	if err := validateTransactionID(m.ID); err != nil {
		return err
	}
	if len(m.Destinations) == 0 {
		return errors.Wrap(errors.ErrEmpty, "destinations")
	}
	if len(m.Destinations) != len(m.Amounts) {
		return errors.Wrapf(errors.ErrInvalidInput,
			"%d destinations but %d amounts", len(m.Destinations), len(m.Amounts))
	}
	return nil
}

func errInvalidID(id []byte) error {
	return errors.Wrapf(errors.ErrInvalidInput, "transaction id: %X", id)
}
