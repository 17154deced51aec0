package escrow

import "github.com/iov-one/escrowd/errors"

// Escrow error kinds take codes 1000-1010.
var (
	// ErrCommitment is returned when the supplied transaction identifier
	// does not match the commitment recomputed from the terms.
	ErrCommitment = errors.Register(1000, "commitment mismatch")

	// ErrNotFunded is returned for any state mutation on a transaction
	// that already reached its terminal state.
	ErrNotFunded = errors.Register(1001, "transaction not funded")

	// ErrTransfer is returned when the asset transfer collaborator
	// reports a failed debit or credit.
	ErrTransfer = errors.Register(1002, "transfer failed")

	// ErrInvalidSignature is returned when a signature recovers to an
	// identity outside the authorized signer set.
	ErrInvalidSignature = errors.Register(1003, "invalid signature")

	// ErrDuplicateSignature is returned when a signer attempts to count
	// twice toward the threshold within one release attempt.
	ErrDuplicateSignature = errors.Register(1004, "duplicate signature")

	// ErrQuorum is returned when neither the signature threshold nor the
	// timelock fallback authorizes the release.
	ErrQuorum = errors.Register(1005, "quorum not met")

	// ErrDestination is returned when a distribution names the zero
	// identity or a party outside the authorized signer set.
	ErrDestination = errors.Register(1006, "invalid destination")

	// ErrValueMismatch is returned when the distributed total does not
	// exactly equal the escrowed value.
	ErrValueMismatch = errors.Register(1007, "value mismatch")
)
