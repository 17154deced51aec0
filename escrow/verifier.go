package escrow

import (
	"encoding/binary"

	"github.com/iov-one/escrowd"
	"github.com/iov-one/escrowd/crypto"
	"github.com/iov-one/escrowd/errors"
)

// releaseDomainTag prefixes every release digest so a signed release can
// never collide with any other signed payload of this engine.
var releaseDomainTag = []byte{0x19, 0x00}

// secondsPerHour converts the timeout configuration into the clock unit.
const secondsPerHour = 3600

// ReleaseDigest builds the canonical digest all release signatures must
// cover: the domain tag, the engine's own identity, the ordered
// destination and amount lists and the transaction identifier, hashed and
// then wrapped in the personal-message envelope. Binding the engine
// identity and the identifier makes a signature worthless for any other
// deployment, transaction or distribution.
func ReleaseDigest(self escrowd.Address, id []byte, destinations []escrowd.Address, amounts []uint64) []byte {
	chunks := make([][]byte, 0, 3+len(destinations)+len(amounts))
	chunks = append(chunks, releaseDomainTag, self)
	for _, dest := range destinations {
		chunks = append(chunks, dest)
	}
	for _, amount := range amounts {
		var raw [8]byte
		binary.BigEndian.PutUint64(raw[:], amount)
		chunks = append(chunks, raw[:])
	}
	chunks = append(chunks, id)
	return crypto.PersonalDigest(crypto.Keccak256(chunks...))
}

// verifySignatures checks all the signatures of one release attempt
// against the canonical digest. For each signature it recovers the signer,
// enforces membership in the authorized signer set and rejects identities
// that already voted, then marks the vote on the transaction. It fails
// fast on the first bad signature; the caller discards all state on error,
// so no partial voting state survives a failed attempt.
func verifySignatures(tx *Transaction, digest []byte, sigs []crypto.Signature) error {
	for _, sig := range sigs {
		cond, err := crypto.RecoverSigner(digest, sig)
		if err != nil {
			return err
		}
		signer := cond.Address()
		if !tx.Signers.Contains(signer) {
			return errors.Wrapf(ErrInvalidSignature, "signer %s is not authorized", signer)
		}
		if tx.Voted.Contains(signer) {
			return errors.Wrapf(ErrDuplicateSignature, "signer %s already voted", signer)
		}
		tx.Voted = tx.Voted.Add(signer)
	}
	return nil
}

// fallbackOpen is the timelock predicate: a pure comparison, no scheduling.
// Zero timeout hours means the fallback never opens. Top-ups do not move
// LastModified, so the window is anchored to creation or the last status
// change only.
func fallbackOpen(tx *Transaction, now escrowd.UnixTime) bool {
	if tx.TimeoutHours == 0 {
		return false
	}
	deadline := tx.LastModified + escrowd.UnixTime(tx.TimeoutHours)*secondsPerHour
	return now > deadline
}

// releaseAuthorized combines the two ways a release may proceed: enough
// distinct signatures, or the open fallback window with the seller among
// the voters. The seller claiming via fallback must have actually signed;
// silence never releases funds.
func releaseAuthorized(tx *Transaction, signatures int, now escrowd.UnixTime) bool {
	if signatures >= int(tx.Threshold) {
		return true
	}
	return fallbackOpen(tx, now) && tx.Voted.Contains(tx.Seller)
}
