package pqkem

import (
	"crypto/rand"

	"github.com/cloudflare/circl/kem/kyber/kyber512"
)

// Kyber512 implements Algorithm over CRYSTALS-Kyber-512.
type Kyber512 struct{}

var _ Algorithm = Kyber512{}

func (Kyber512) GenerateKeyPair() (KeyPair, error) {
	public, private, err := kyber512.GenerateKeyPair(rand.Reader)
	if err != nil {
		return KeyPair{}, err
	}

	publicBytes := make([]byte, kyber512.PublicKeySize)
	privateBytes := make([]byte, kyber512.PrivateKeySize)
	public.Pack(publicBytes)
	private.Pack(privateBytes)

	return KeyPair{
		Type:       Kyber512Type,
		PublicKey:  PublicKey{Type: Kyber512Type, Bytes: publicBytes},
		PrivateKey: PrivateKey{Type: Kyber512Type, Bytes: privateBytes},
	}, nil
}

func (k Kyber512) GenerateIdentifiedKeyPair() (IdentifiedKeyPair, error) {
	kp, err := k.GenerateKeyPair()
	if err != nil {
		return IdentifiedKeyPair{}, err
	}
	return NewIdentifiedKeyPair(kp)
}

func (Kyber512) Encapsulate(publicKey PublicKey) ([]byte, []byte, error) {
	if publicKey.Type != Kyber512Type || len(publicKey.Bytes) != kyber512.PublicKeySize {
		return nil, nil, ErrWrongKeyType
	}

	var pk kyber512.PublicKey
	pk.Unpack(publicKey.Bytes)

	ciphertext := make([]byte, kyber512.CiphertextSize)
	sharedSecret := make([]byte, kyber512.SharedKeySize)
	pk.EncapsulateTo(ciphertext, sharedSecret, nil)

	return ciphertext, sharedSecret, nil
}

func (Kyber512) Decapsulate(privateKey PrivateKey, ciphertext []byte) ([]byte, error) {
	if privateKey.Type != Kyber512Type || len(privateKey.Bytes) != kyber512.PrivateKeySize {
		return nil, ErrWrongKeyType
	}
	if len(ciphertext) != kyber512.CiphertextSize {
		return nil, ErrDecapsulation
	}

	var sk kyber512.PrivateKey
	sk.Unpack(privateKey.Bytes)

	sharedSecret := make([]byte, kyber512.SharedKeySize)
	sk.DecapsulateTo(sharedSecret, ciphertext)

	return sharedSecret, nil
}

func (Kyber512) Type() KeyType {
	return Kyber512Type
}
