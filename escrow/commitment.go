package escrow

import (
	"encoding/binary"

	"github.com/iov-one/escrowd"
	"github.com/iov-one/escrowd/crypto"
)

// CommitmentSize is the byte size of a transaction identifier.
const CommitmentSize = 32

// NativeCommitment computes the deterministic identifier binding a native
// value transaction to its terms and to the engine identified by self.
// Any party can recompute it off-band before funds move; the identifier is
// the authorization boundary, so the byte layout below is fixed.
func NativeCommitment(uniqueID []byte, threshold uint8, timeoutHours uint32, buyer, seller, moderator, self escrowd.Address) []byte {
	return commitment(uniqueID, threshold, timeoutHours, buyer, seller, moderator, self, nil)
}

// TokenCommitment is NativeCommitment extended with the token reference.
// Including the token makes identifiers for otherwise identical terms
// differ between asset kinds.
func TokenCommitment(uniqueID []byte, threshold uint8, timeoutHours uint32, buyer, seller, moderator, self, token escrowd.Address) []byte {
	return commitment(uniqueID, threshold, timeoutHours, buyer, seller, moderator, self, token)
}

// commitment hashes the canonical big-endian concatenation of the terms.
// The layout is the contract: no codec framing may ever be added here.
func commitment(uniqueID []byte, threshold uint8, timeoutHours uint32, buyer, seller, moderator, self, token escrowd.Address) []byte {
	var hours [4]byte
	binary.BigEndian.PutUint32(hours[:], timeoutHours)

	chunks := [][]byte{
		uniqueID,
		{threshold},
		hours[:],
		buyer,
		seller,
		moderator,
		self,
	}
	if token != nil {
		chunks = append(chunks, token)
	}
	return crypto.Keccak256(chunks...)
}

// validateTransactionID rejects identifiers of the wrong size before any
// lookup happens.
func validateTransactionID(id []byte) error {
	if len(id) != CommitmentSize {
		return errInvalidID(id)
	}
	return nil
}
