package curve

import (
	"crypto/rand"

	"golang.org/x/crypto/curve25519"

	"github.com/prekeynet/prekey-node/pkg/crypto/xeddsa"
)

var curve25519KDFPrepad = func() []byte {
	p := make([]byte, 32)
	for i := range p {
		p[i] = 0xFF
	}
	return p
}()

// Curve25519 implements Algorithm over X25519 with XEd25519 signatures.
type Curve25519 struct{}

var _ Algorithm = Curve25519{}

func (Curve25519) GenerateKeyPair() (KeyPair, error) {
	private := make([]byte, curve25519.ScalarSize)
	if _, err := rand.Read(private); err != nil {
		return KeyPair{}, err
	}

	public, err := curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, err
	}

	return KeyPair{
		Type:       Curve25519Type,
		PrivateKey: PrivateKey{Type: Curve25519Type, Bytes: private},
		PublicKey:  PublicKey{Type: Curve25519Type, Bytes: public},
	}, nil
}

func (c Curve25519) GenerateIdentifiedKeyPair() (IdentifiedKeyPair, error) {
	kp, err := c.GenerateKeyPair()
	if err != nil {
		return IdentifiedKeyPair{}, err
	}
	return NewIdentifiedKeyPair(kp)
}

func (Curve25519) DH(privateKey PrivateKey, publicKey PublicKey) ([]byte, error) {
	if privateKey.Type != Curve25519Type || publicKey.Type != Curve25519Type {
		return nil, ErrWrongKeyType
	}

	shared, err := curve25519.X25519(privateKey.Bytes, publicKey.Bytes)
	if err != nil {
		return nil, ErrDH
	}
	return shared, nil
}

func (Curve25519) Sign(privateKey PrivateKey, message []byte) ([64]byte, error) {
	if privateKey.Type != Curve25519Type {
		return [64]byte{}, ErrWrongKeyType
	}
	return xeddsa.Sign(privateKey.Bytes, message, rand.Reader)
}

func (Curve25519) Verify(publicKey PublicKey, message []byte, signature [64]byte) (bool, error) {
	if publicKey.Type != Curve25519Type {
		return false, ErrWrongKeyType
	}
	return xeddsa.Verify(publicKey.Bytes, message, signature[:]), nil
}

func (Curve25519) KDFPrepad() []byte {
	return curve25519KDFPrepad
}

func (Curve25519) Type() KeyType {
	return Curve25519Type
}
