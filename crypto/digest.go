package crypto

import "golang.org/x/crypto/sha3"

// signedMessagePrefix is the personal-message envelope. Wrapping the raw
// digest before signing prevents a signature made for a release approval
// from being replayed as any other kind of signed payload.
var signedMessagePrefix = []byte("\x19Ethereum Signed Message:\n32")

// Keccak256 hashes the concatenation of all chunks with legacy keccak256.
func Keccak256(chunks ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, c := range chunks {
		h.Write(c)
	}
	return h.Sum(nil)
}

// PersonalDigest wraps a 32 byte digest in the personal-message prefix and
// hashes again. The result is the digest signers actually sign.
func PersonalDigest(digest []byte) []byte {
	return Keccak256(signedMessagePrefix, digest)
}
