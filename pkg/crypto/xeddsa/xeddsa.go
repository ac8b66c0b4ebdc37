// Package xeddsa implements XEd25519 signatures: Ed25519-style signatures
// produced and verified with Montgomery-form (X25519) keys, following the
// Signal XEdDSA specification.
package xeddsa

import (
	"crypto/sha512"
	"errors"
	"io"

	"filippo.io/edwards25519"
	"filippo.io/edwards25519/field"
)

const (
	// PublicKeySize is the size of an X25519 public key in bytes.
	PublicKeySize = 32

	// PrivateKeySize is the size of an X25519 private key in bytes.
	PrivateKeySize = 32

	// SignatureSize is the size of an XEd25519 signature in bytes.
	SignatureSize = 64
)

var (
	ErrInvalidKey       = errors.New("xeddsa: invalid key")
	ErrInvalidSignature = errors.New("xeddsa: invalid signature")
)

// hash1 prefix: 2^256 - 1 - 1 encoded little-endian (0xFE followed by 31
// bytes of 0xFF). Domain-separates the nonce derivation from the challenge
// hash, which starts with a valid curve point encoding.
var hash1Prefix = func() []byte {
	p := make([]byte, 32)
	p[0] = 0xFE
	for i := 1; i < 32; i++ {
		p[i] = 0xFF
	}
	return p
}()

// calculateKeyPair derives the Edwards key pair from a Montgomery private
// key. The twisted scalar is negated when needed so that the Edwards public
// key always has a zero sign bit.
func calculateKeyPair(privateKey []byte) (*edwards25519.Scalar, *edwards25519.Point, error) {
	if len(privateKey) != PrivateKeySize {
		return nil, nil, ErrInvalidKey
	}

	a, err := edwards25519.NewScalar().SetBytesWithClamping(privateKey)
	if err != nil {
		return nil, nil, ErrInvalidKey
	}

	A := new(edwards25519.Point).ScalarBaseMult(a)
	if A.Bytes()[31]&0x80 != 0 {
		a.Negate(a)
		A.Negate(A)
	}

	return a, A, nil
}

// montgomeryToEdwards converts an X25519 public key u to the Edwards point
// with y = (u - 1) / (u + 1) and a zero sign bit.
func montgomeryToEdwards(publicKey []byte) (*edwards25519.Point, error) {
	if len(publicKey) != PublicKeySize {
		return nil, ErrInvalidKey
	}

	u, err := new(field.Element).SetBytes(publicKey)
	if err != nil {
		return nil, ErrInvalidKey
	}

	one := new(field.Element).One()
	uPlusOne := new(field.Element).Add(u, one)
	if uPlusOne.Equal(new(field.Element).Zero()) == 1 {
		return nil, ErrInvalidKey
	}

	y := new(field.Element).Multiply(
		new(field.Element).Subtract(u, one),
		new(field.Element).Invert(uPlusOne),
	)

	A, err := new(edwards25519.Point).SetBytes(y.Bytes())
	if err != nil {
		return nil, ErrInvalidKey
	}

	return A, nil
}

// Sign signs message with an X25519 private key. The signature is
// randomized: 64 bytes are drawn from random for nonce derivation.
func Sign(privateKey []byte, message []byte, random io.Reader) ([SignatureSize]byte, error) {
	var sig [SignatureSize]byte

	a, A, err := calculateKeyPair(privateKey)
	if err != nil {
		return sig, err
	}

	var z [64]byte
	if _, err := io.ReadFull(random, z[:]); err != nil {
		return sig, err
	}

	// r = hash1(a || M || Z) mod q
	h := sha512.New()
	h.Write(hash1Prefix)
	h.Write(a.Bytes())
	h.Write(message)
	h.Write(z[:])
	r, err := edwards25519.NewScalar().SetUniformBytes(h.Sum(nil))
	if err != nil {
		return sig, err
	}

	R := new(edwards25519.Point).ScalarBaseMult(r)

	// h = hash(R || A || M) mod q
	h.Reset()
	h.Write(R.Bytes())
	h.Write(A.Bytes())
	h.Write(message)
	hs, err := edwards25519.NewScalar().SetUniformBytes(h.Sum(nil))
	if err != nil {
		return sig, err
	}

	// s = r + h*a mod q
	s := edwards25519.NewScalar().MultiplyAdd(hs, a, r)

	copy(sig[:32], R.Bytes())
	copy(sig[32:], s.Bytes())
	return sig, nil
}

// Verify reports whether signature is a valid XEd25519 signature on message
// under the given X25519 public key.
func Verify(publicKey []byte, message []byte, signature []byte) bool {
	if len(signature) != SignatureSize {
		return false
	}

	A, err := montgomeryToEdwards(publicKey)
	if err != nil {
		return false
	}

	R, err := new(edwards25519.Point).SetBytes(signature[:32])
	if err != nil {
		return false
	}

	s, err := edwards25519.NewScalar().SetCanonicalBytes(signature[32:])
	if err != nil {
		return false
	}

	h := sha512.New()
	h.Write(signature[:32])
	h.Write(A.Bytes())
	h.Write(message)
	hs, err := edwards25519.NewScalar().SetUniformBytes(h.Sum(nil))
	if err != nil {
		return false
	}

	// Rcheck = s*B - h*A
	minusA := new(edwards25519.Point).Negate(A)
	Rcheck := new(edwards25519.Point).VarTimeDoubleScalarBaseMult(hs, minusA, s)

	return Rcheck.Equal(R) == 1
}
