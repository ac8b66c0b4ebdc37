package curve

import (
	"bytes"
	"testing"
)

func TestGenerateKeyPairLengths(t *testing.T) {
	alg := Curve25519{}

	kp, err := alg.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	if kp.Type != Curve25519Type {
		t.Errorf("Wrong key type: got %v", kp.Type)
	}
	if len(kp.PublicKey.Bytes) != Curve25519Type.PublicKeyLength() {
		t.Errorf("Wrong public key length: got %d", len(kp.PublicKey.Bytes))
	}
	if len(kp.PrivateKey.Bytes) != Curve25519Type.PrivateKeyLength() {
		t.Errorf("Wrong private key length: got %d", len(kp.PrivateKey.Bytes))
	}
}

func TestIdentifiedKeyPairsGetDistinctIDs(t *testing.T) {
	alg := Curve25519{}

	a, err := alg.GenerateIdentifiedKeyPair()
	if err != nil {
		t.Fatalf("GenerateIdentifiedKeyPair failed: %v", err)
	}
	b, err := alg.GenerateIdentifiedKeyPair()
	if err != nil {
		t.Fatalf("GenerateIdentifiedKeyPair failed: %v", err)
	}

	if a.ID == b.ID {
		t.Error("Two generated key pairs share a UUID")
	}
}

func TestDHAgreement(t *testing.T) {
	alg := Curve25519{}

	alice, err := alg.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	bob, err := alg.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	ab, err := alg.DH(alice.PrivateKey, bob.PublicKey)
	if err != nil {
		t.Fatalf("DH failed: %v", err)
	}
	ba, err := alg.DH(bob.PrivateKey, alice.PublicKey)
	if err != nil {
		t.Fatalf("DH failed: %v", err)
	}

	if !bytes.Equal(ab, ba) {
		t.Error("DH outputs disagree")
	}
	if len(ab) != 32 {
		t.Errorf("Wrong shared secret length: got %d", len(ab))
	}
}

func TestSignVerifyTypedEncoding(t *testing.T) {
	alg := Curve25519{}

	identity, err := alg.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	prekey, err := alg.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	message := prekey.PublicKey.Encode()
	sig, err := alg.Sign(identity.PrivateKey, message)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	ok, err := alg.Verify(identity.PublicKey, message, sig)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Error("Signature over typed encoding did not verify")
	}
}

func TestDHRejectsWrongKeyType(t *testing.T) {
	alg := Curve25519{}

	kp, err := alg.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	badPublic := PublicKey{Type: Curve448Type, Bytes: make([]byte, 56)}
	if _, err := alg.DH(kp.PrivateKey, badPublic); err != ErrWrongKeyType {
		t.Errorf("Expected ErrWrongKeyType, got %v", err)
	}
}

func TestTypedEncodingRoundTrip(t *testing.T) {
	alg := Curve25519{}

	kp, err := alg.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	decoded, err := DecodePublicKey(kp.PublicKey.Encode())
	if err != nil {
		t.Fatalf("DecodePublicKey failed: %v", err)
	}
	if decoded.Type != kp.PublicKey.Type || !bytes.Equal(decoded.Bytes, kp.PublicKey.Bytes) {
		t.Error("Typed encoding round trip mismatch")
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	if _, err := NewPublicKey(7, make([]byte, 32)); err != ErrInvalidKeyType {
		t.Errorf("Expected ErrInvalidKeyType, got %v", err)
	}
	if _, err := NewPublicKey(uint8(Curve25519Type), make([]byte, 31)); err != ErrInvalidKeyLength {
		t.Errorf("Expected ErrInvalidKeyLength, got %v", err)
	}
	if _, err := NewPublicKey(uint8(Curve448Type), make([]byte, 32)); err != ErrInvalidKeyLength {
		t.Errorf("Expected ErrInvalidKeyLength for curve448 with 32 bytes, got %v", err)
	}
}

func TestZeroWipesPrivateKey(t *testing.T) {
	alg := Curve25519{}

	kp, err := alg.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	kp.Zero()
	for _, b := range kp.PrivateKey.Bytes {
		if b != 0 {
			t.Fatal("Private key bytes not zeroed")
		}
	}
}
