package pqkem

import (
	"crypto/rand"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrInvalidKeyType   = errors.New("invalid PQKEM key type")
	ErrInvalidKeyLength = errors.New("invalid PQKEM key length")
)

// KeyType identifies a post-quantum KEM algorithm on the wire.
type KeyType uint8

const (
	Kyber512Type  KeyType = 0
	Kyber768Type  KeyType = 1
	Kyber1024Type KeyType = 2
)

// KeyTypeFromID validates a wire tag.
func KeyTypeFromID(id uint8) (KeyType, error) {
	switch KeyType(id) {
	case Kyber512Type, Kyber768Type, Kyber1024Type:
		return KeyType(id), nil
	}
	return 0, ErrInvalidKeyType
}

// PublicKeyLength returns the public key size for the KEM type.
func (t KeyType) PublicKeyLength() int {
	switch t {
	case Kyber512Type:
		return 800
	case Kyber768Type:
		return 1184
	case Kyber1024Type:
		return 1568
	}
	return 0
}

// PrivateKeyLength returns the private key size for the KEM type.
func (t KeyType) PrivateKeyLength() int {
	switch t {
	case Kyber512Type:
		return 1632
	case Kyber768Type:
		return 2400
	case Kyber1024Type:
		return 3168
	}
	return 0
}

func (t KeyType) String() string {
	switch t {
	case Kyber512Type:
		return "CRYSTALS-KYBER-512"
	case Kyber768Type:
		return "CRYSTALS-KYBER-768"
	case Kyber1024Type:
		return "CRYSTALS-KYBER-1024"
	}
	return "CRYSTALS-KYBER-UNKNOWN"
}

// PublicKey is a typed PQKEM public key.
type PublicKey struct {
	Type  KeyType
	Bytes []byte
}

// PrivateKey is a typed PQKEM private key.
type PrivateKey struct {
	Type  KeyType
	Bytes []byte
}

// KeyPair holds both halves of a PQKEM key.
type KeyPair struct {
	Type       KeyType
	PublicKey  PublicKey
	PrivateKey PrivateKey
}

// IdentifiedKeyPair is a key pair referenced over the wire by UUID.
type IdentifiedKeyPair struct {
	ID      uuid.UUID
	KeyPair KeyPair
}

// IdentifiedPublicKey is the public half of an identified key pair.
type IdentifiedPublicKey struct {
	ID        uuid.UUID
	PublicKey PublicKey
}

// NewPublicKey validates the tag/length pair and builds a typed public key.
func NewPublicKey(keyType uint8, bytes []byte) (PublicKey, error) {
	t, err := KeyTypeFromID(keyType)
	if err != nil {
		return PublicKey{}, err
	}
	if len(bytes) != t.PublicKeyLength() {
		return PublicKey{}, ErrInvalidKeyLength
	}
	return PublicKey{Type: t, Bytes: bytes}, nil
}

// NewKeyPair validates both halves against the tag.
func NewKeyPair(keyType uint8, publicBytes, privateBytes []byte) (KeyPair, error) {
	t, err := KeyTypeFromID(keyType)
	if err != nil {
		return KeyPair{}, err
	}
	if len(publicBytes) != t.PublicKeyLength() || len(privateBytes) != t.PrivateKeyLength() {
		return KeyPair{}, ErrInvalidKeyLength
	}
	return KeyPair{
		Type:       t,
		PublicKey:  PublicKey{Type: t, Bytes: publicBytes},
		PrivateKey: PrivateKey{Type: t, Bytes: privateBytes},
	}, nil
}

// Encode returns the typed encoding tag || bytes. Signatures are computed
// over this encoding.
func (k PublicKey) Encode() []byte {
	out := make([]byte, 0, 1+len(k.Bytes))
	out = append(out, uint8(k.Type))
	return append(out, k.Bytes...)
}

// DecodePublicKey parses a typed encoding produced by Encode.
func DecodePublicKey(encoded []byte) (PublicKey, error) {
	if len(encoded) < 2 {
		return PublicKey{}, ErrInvalidKeyLength
	}
	return NewPublicKey(encoded[0], encoded[1:])
}

// Zero wipes the private key material.
func (k *PrivateKey) Zero() {
	for i := range k.Bytes {
		k.Bytes[i] = 0
	}
}

// Zero wipes the private half of the key pair.
func (kp *KeyPair) Zero() {
	kp.PrivateKey.Zero()
}

// Public returns the identified public half.
func (ik *IdentifiedKeyPair) Public() IdentifiedPublicKey {
	return IdentifiedPublicKey{ID: ik.ID, PublicKey: ik.KeyPair.PublicKey}
}

// NewIdentifiedKeyPair attaches a fresh random UUID to a key pair.
func NewIdentifiedKeyPair(kp KeyPair) (IdentifiedKeyPair, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return IdentifiedKeyPair{}, err
	}
	id, err := uuid.FromBytes(raw[:])
	if err != nil {
		return IdentifiedKeyPair{}, err
	}
	return IdentifiedKeyPair{ID: id, KeyPair: kp}, nil
}
