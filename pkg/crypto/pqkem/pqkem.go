// Package pqkem provides the post-quantum KEM capability used by the PQXDH
// key registry. CRYSTALS-Kyber implementations come from cloudflare/circl.
package pqkem

import "errors"

var (
	ErrWrongKeyType  = errors.New("key type does not match algorithm")
	ErrEncapsulation = errors.New("encapsulation failed")
	ErrDecapsulation = errors.New("decapsulation failed")
)

// Algorithm is the KEM capability object. Implementations are stateless and
// safe for concurrent use.
type Algorithm interface {
	// GenerateKeyPair generates a KEM key pair.
	GenerateKeyPair() (KeyPair, error)

	// GenerateIdentifiedKeyPair generates a key pair with a fresh UUID.
	GenerateIdentifiedKeyPair() (IdentifiedKeyPair, error)

	// Encapsulate returns (ciphertext, sharedSecret) for the public key.
	Encapsulate(publicKey PublicKey) ([]byte, []byte, error)

	// Decapsulate recovers the shared secret from a ciphertext.
	Decapsulate(privateKey PrivateKey, ciphertext []byte) ([]byte, error)

	// Type returns the wire tag of this KEM.
	Type() KeyType
}
