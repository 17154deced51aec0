package escrow

import (
	"fmt"

	"github.com/iov-one/escrowd"
	"github.com/iov-one/escrowd/errors"
	"github.com/iov-one/escrowd/store"
)

// Execute settles a transaction: it verifies the supplied signatures
// against the canonical release digest, applies the authorization policy,
// flips the transaction to RELEASED and distributes the escrowed value to
// the named destinations.
//
// Funds may only flow to buyer, seller or moderator, and the distributed
// total must exactly equal the escrowed value. Any failure anywhere in the
// pipeline leaves all state unchanged; on success the transition is final.
func (c *Controller) Execute(msg *ReleaseMsg) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cache := c.db.CacheWrap()
	defer func() {
		if err != nil {
			cache.Discard()
		}
	}()
	defer errors.Recover(&err)

	if err := c.executeIn(cache, msg); err != nil {
		return err
	}
	if err := cache.Write(); err != nil {
		return errors.Wrap(err, "cannot commit release")
	}
	c.logger.Info("transaction released",
		"id", fmt.Sprintf("%X", msg.ID),
		"destinations", fmt.Sprintf("%v", msg.Destinations),
		"amounts", fmt.Sprintf("%v", msg.Amounts),
	)
	return nil
}

func (c *Controller) executeIn(db store.KVStore, msg *ReleaseMsg) error {
	if err := validateTransactionID(msg.ID); err != nil {
		return err
	}
	tx, err := c.bucket.One(db, msg.ID)
	if err != nil {
		return err
	}
	if tx.Status != StatusFunded {
		return errors.Wrapf(ErrNotFunded, "status %s", tx.Status)
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	digest := ReleaseDigest(c.self, msg.ID, msg.Destinations, msg.Amounts)
	if err := verifySignatures(tx, digest, msg.Signatures); err != nil {
		return err
	}

	now := c.clock.Now()
	if !releaseAuthorized(tx, len(msg.Signatures), now) {
		return errors.Wrapf(ErrQuorum, "%d of %d signatures", len(msg.Signatures), tx.Threshold)
	}

	// The transition is committed to before the distribution so that the
	// record written on success is the terminal one. There is no retry
	// once released.
	tx.Status = StatusReleased
	tx.LastModified = now

	var total uint64
	for i, dest := range msg.Destinations {
		if dest.IsZero() || !tx.Signers.Contains(dest) {
			return errors.Wrapf(ErrDestination, "destination %s", dest)
		}
		amount := msg.Amounts[i]
		if amount == 0 {
			return errors.Wrap(errors.ErrInvalidAmount, "zero amount")
		}
		if total+amount < total {
			return errors.Wrap(errors.ErrOverflow, "distribution total")
		}
		total += amount
		// Catch over-distribution before any value moves, so conservation
		// violations never surface as a custody overdraft.
		if total > tx.Value {
			return errors.Wrapf(ErrValueMismatch, "distributed %d of %d", total, tx.Value)
		}

		tx.Beneficiaries = tx.Beneficiaries.Add(dest)
		if err := c.credit(db, tx, dest, amount); err != nil {
			return err
		}
	}
	if total != tx.Value {
		return errors.Wrapf(ErrValueMismatch, "distributed %d of %d", total, tx.Value)
	}

	// Retain the released total as the historical record.
	tx.Value = total
	return c.bucket.Update(db, msg.ID, tx)
}

func (c *Controller) credit(db store.KVStore, tx *Transaction, dest escrowd.Address, amount uint64) error {
	var err error
	switch tx.Asset {
	case AssetNative:
		err = c.coins.Credit(db, dest, amount)
	case AssetToken:
		err = c.tokens.Credit(db, tx.Token, dest, amount)
	default:
		return errors.Wrapf(errors.ErrInvalidState, "asset kind %d", tx.Asset)
	}
	if err != nil {
		return errors.Wrapf(ErrTransfer, "credit %s: %s", dest, err)
	}
	return nil
}
