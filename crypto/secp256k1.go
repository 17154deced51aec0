package crypto

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec"
	"github.com/iov-one/escrowd"
	"github.com/iov-one/escrowd/errors"
)

// ExtensionName is the condition extension all recovered signers belong to.
const ExtensionName = "sigs"

// ErrMalformedSignature is returned when signature components cannot be
// combined into a valid recoverable signature at all. It is distinct from
// a well formed signature that recovers to an unauthorized identity.
var ErrMalformedSignature = errors.Register(1100, "malformed signature")

const (
	// componentSize is the byte size of each of the R and S components.
	componentSize = 64 / 2

	// compactSigSize is the full size of a recoverable signature:
	// one header byte followed by R and S.
	compactSigSize = 1 + 2*componentSize

	// headerOffset is added to the recovery id in the header byte.
	headerOffset = 27
)

// Signature is a recoverable secp256k1 signature, split into the three
// components callers exchange off-band. V is the recovery header, either
// a raw recovery id (0-3) or the offset form starting at 27.
type Signature struct {
	V uint8
	R []byte
	S []byte
}

// Validate returns an error if the components cannot form a recoverable
// signature.
func (s Signature) Validate() error {
	if len(s.R) != componentSize {
		return errors.Wrapf(ErrMalformedSignature, "r must be %d bytes", componentSize)
	}
	if len(s.S) != componentSize {
		return errors.Wrapf(ErrMalformedSignature, "s must be %d bytes", componentSize)
	}
	v := s.V
	if v < headerOffset {
		v += headerOffset
	}
	if v < headerOffset || v > headerOffset+7 {
		return errors.Wrapf(ErrMalformedSignature, "invalid recovery header %d", s.V)
	}
	return nil
}

// Compact returns the 65 byte header-first wire form consumed by the
// recovery primitive.
func (s Signature) Compact() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	v := s.V
	if v < headerOffset {
		v += headerOffset
	}
	out := make([]byte, 0, compactSigSize)
	out = append(out, v)
	out = append(out, s.R...)
	out = append(out, s.S...)
	return out, nil
}

// ParseSignature splits a 65 byte header-first compact signature into its
// components.
func ParseSignature(bz []byte) (Signature, error) {
	if len(bz) != compactSigSize {
		return Signature{}, errors.Wrapf(ErrMalformedSignature, "compact signature must be %d bytes", compactSigSize)
	}
	sig := Signature{
		V: bz[0],
		R: append([]byte{}, bz[1:1+componentSize]...),
		S: append([]byte{}, bz[1+componentSize:]...),
	}
	return sig, sig.Validate()
}

// RecoverSigner returns the condition of the identity that produced the
// given signature over the 32 byte digest. It fails with
// ErrMalformedSignature when no identity can be recovered. It performs no
// authorization of the recovered identity.
func RecoverSigner(digest []byte, sig Signature) (escrowd.Condition, error) {
	if len(digest) != sha256.Size {
		return nil, errors.Wrapf(ErrMalformedSignature, "digest must be %d bytes", sha256.Size)
	}
	compact, err := sig.Compact()
	if err != nil {
		return nil, err
	}
	pub, _, err := btcec.RecoverCompact(btcec.S256(), compact, digest)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedSignature, "recover: %s", err)
	}
	return PubKeyCondition(pub.SerializeCompressed()), nil
}

// PubKeyCondition encodes a compressed secp256k1 public key into a
// condition. Its address is the party identity used everywhere else.
func PubKeyCondition(compressedPub []byte) escrowd.Condition {
	return escrowd.NewCondition(ExtensionName, "secp256k1", compressedPub)
}

// PrivateKey is the signing half used by callers that produce release
// approvals. The engine itself never holds private keys; this type exists
// for clients and tests.
type PrivateKey struct {
	priv *btcec.PrivateKey
}

// GenPrivKey returns a random new private key.
func GenPrivKey() *PrivateKey {
	priv, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		panic(err)
	}
	return &PrivateKey{priv: priv}
}

// PrivKeyFromSeed will deterministically generate a private key from a
// given seed. Use for deterministic keys in test cases.
func PrivKeyFromSeed(seed []byte) *PrivateKey {
	h := sha256.Sum256(seed)
	priv, _ := btcec.PrivKeyFromBytes(btcec.S256(), h[:])
	return &PrivateKey{priv: priv}
}

// Sign produces a recoverable signature over the 32 byte digest.
func (p *PrivateKey) Sign(digest []byte) (Signature, error) {
	if len(digest) != sha256.Size {
		return Signature{}, errors.Wrapf(ErrMalformedSignature, "digest must be %d bytes", sha256.Size)
	}
	compact, err := btcec.SignCompact(btcec.S256(), p.priv, digest, true)
	if err != nil {
		return Signature{}, errors.Wrap(err, "sign compact")
	}
	return ParseSignature(compact)
}

// Condition returns the condition of the matching public key.
func (p *PrivateKey) Condition() escrowd.Condition {
	return PubKeyCondition(p.priv.PubKey().SerializeCompressed())
}

// Address returns the party identity of the matching public key.
func (p *PrivateKey) Address() escrowd.Address {
	return p.Condition().Address()
}
