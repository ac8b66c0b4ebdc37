// Package curve provides the elliptic curve capability used by the PQXDH
// key registry: key generation, Diffie-Hellman, and XEdDSA signatures with
// the owner's identity key.
package curve

import "errors"

var (
	ErrWrongKeyType = errors.New("key type does not match algorithm")
	ErrDH           = errors.New("diffie-hellman failed")
)

// Algorithm is the capability object injected into the client and shared
// crypto paths. Implementations are stateless and safe for concurrent use.
type Algorithm interface {
	// GenerateKeyPair generates a key pair for this curve.
	GenerateKeyPair() (KeyPair, error)

	// GenerateIdentifiedKeyPair generates a key pair with a fresh UUID.
	GenerateIdentifiedKeyPair() (IdentifiedKeyPair, error)

	// DH computes the shared secret between a private and a public key.
	DH(privateKey PrivateKey, publicKey PublicKey) ([]byte, error)

	// Sign produces a 64-byte XEdDSA signature on message.
	Sign(privateKey PrivateKey, message []byte) ([64]byte, error)

	// Verify reports whether signature is valid on message under publicKey.
	Verify(publicKey PublicKey, message []byte, signature [64]byte) (bool, error)

	// KDFPrepad returns the IKM prefix for the PQXDH KDF
	// (https://signal.org/docs/specifications/pqxdh/#cryptographic-notation).
	KDFPrepad() []byte

	// Type returns the wire tag of this curve.
	Type() KeyType
}
