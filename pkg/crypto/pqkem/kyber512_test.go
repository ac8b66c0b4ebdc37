package pqkem

import (
	"bytes"
	"testing"
)

func TestGenerateKeyPairLengths(t *testing.T) {
	alg := Kyber512{}

	kp, err := alg.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	if kp.Type != Kyber512Type {
		t.Errorf("Wrong key type: got %v", kp.Type)
	}
	if len(kp.PublicKey.Bytes) != 800 {
		t.Errorf("Wrong public key length: got %d, want 800", len(kp.PublicKey.Bytes))
	}
	if len(kp.PrivateKey.Bytes) != 1632 {
		t.Errorf("Wrong private key length: got %d, want 1632", len(kp.PrivateKey.Bytes))
	}
}

func TestEncapsulateDecapsulate(t *testing.T) {
	alg := Kyber512{}

	kp, err := alg.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	ciphertext, sharedSecret, err := alg.Encapsulate(kp.PublicKey)
	if err != nil {
		t.Fatalf("Encapsulate failed: %v", err)
	}
	if len(sharedSecret) != 32 {
		t.Errorf("Wrong shared secret length: got %d", len(sharedSecret))
	}

	recovered, err := alg.Decapsulate(kp.PrivateKey, ciphertext)
	if err != nil {
		t.Fatalf("Decapsulate failed: %v", err)
	}
	if !bytes.Equal(sharedSecret, recovered) {
		t.Error("Decapsulated secret differs from encapsulated secret")
	}
}

func TestDecapsulateWrongKeyDisagrees(t *testing.T) {
	alg := Kyber512{}

	kp, err := alg.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	other, err := alg.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	ciphertext, sharedSecret, err := alg.Encapsulate(kp.PublicKey)
	if err != nil {
		t.Fatalf("Encapsulate failed: %v", err)
	}

	// Kyber decapsulation with the wrong key yields an implicit-rejection
	// secret, not an error.
	recovered, err := alg.Decapsulate(other.PrivateKey, ciphertext)
	if err != nil {
		t.Fatalf("Decapsulate failed: %v", err)
	}
	if bytes.Equal(sharedSecret, recovered) {
		t.Error("Wrong private key recovered the shared secret")
	}
}

func TestEncapsulateRejectsWrongKeyType(t *testing.T) {
	alg := Kyber512{}

	bad := PublicKey{Type: Kyber768Type, Bytes: make([]byte, Kyber768Type.PublicKeyLength())}
	if _, _, err := alg.Encapsulate(bad); err != ErrWrongKeyType {
		t.Errorf("Expected ErrWrongKeyType, got %v", err)
	}
}

func TestKeyTypeLengths(t *testing.T) {
	cases := []struct {
		keyType    KeyType
		publicLen  int
		privateLen int
	}{
		{Kyber512Type, 800, 1632},
		{Kyber768Type, 1184, 2400},
		{Kyber1024Type, 1568, 3168},
	}

	for _, tc := range cases {
		if got := tc.keyType.PublicKeyLength(); got != tc.publicLen {
			t.Errorf("%v public length: got %d, want %d", tc.keyType, got, tc.publicLen)
		}
		if got := tc.keyType.PrivateKeyLength(); got != tc.privateLen {
			t.Errorf("%v private length: got %d, want %d", tc.keyType, got, tc.privateLen)
		}
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	if _, err := NewPublicKey(9, make([]byte, 800)); err != ErrInvalidKeyType {
		t.Errorf("Expected ErrInvalidKeyType, got %v", err)
	}
	if _, err := NewPublicKey(uint8(Kyber512Type), make([]byte, 799)); err != ErrInvalidKeyLength {
		t.Errorf("Expected ErrInvalidKeyLength, got %v", err)
	}
}

func TestTypedEncodingRoundTrip(t *testing.T) {
	alg := Kyber512{}

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
