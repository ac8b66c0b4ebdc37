package xeddsa

import (
	"crypto/rand"
	"testing"

	"golang.org/x/crypto/curve25519"
)

func generateKey(t *testing.T) ([]byte, []byte) {
	t.Helper()

	private := make([]byte, PrivateKeySize)
	if _, err := rand.Read(private); err != nil {
		t.Fatalf("Failed to generate private key: %v", err)
	}
	public, err := curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		t.Fatalf("Failed to derive public key: %v", err)
	}
	return private, public
}

func TestSignVerify(t *testing.T) {
	private, public := generateKey(t)
	message := []byte("prekey registration test message")

	sig, err := Sign(private, message, rand.Reader)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if !Verify(public, message, sig[:]) {
		t.Error("Valid signature did not verify")
	}
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	private, public := generateKey(t)
	message := []byte("original message")

	sig, err := Sign(private, message, rand.Reader)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if Verify(public, []byte("tampered message"), sig[:]) {
		t.Error("Signature verified against a different message")
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	private, public := generateKey(t)
	message := []byte("message")

	sig, err := Sign(private, message, rand.Reader)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	tampered := sig
	tampered[5] ^= 0x01
	if Verify(public, message, tampered[:]) {
		t.Error("Tampered signature verified")
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	private, _ := generateKey(t)
	_, otherPublic := generateKey(t)
	message := []byte("message")

	sig, err := Sign(private, message, rand.Reader)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if Verify(otherPublic, message, sig[:]) {
		t.Error("Signature verified under the wrong public key")
	}
}

func TestSignaturesAreRandomized(t *testing.T) {
	private, public := generateKey(t)
	message := []byte("message")

	sig1, err := Sign(private, message, rand.Reader)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	sig2, err := Sign(private, message, rand.Reader)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if sig1 == sig2 {
		t.Error("Two signatures over the same message were identical")
	}
	if !Verify(public, message, sig1[:]) || !Verify(public, message, sig2[:]) {
		t.Error("Randomized signatures did not both verify")
	}
}

func TestVerifyRejectsShortSignature(t *testing.T) {
	_, public := generateKey(t)
	if Verify(public, []byte("message"), make([]byte, 32)) {
		t.Error("Short signature verified")
	}
}
