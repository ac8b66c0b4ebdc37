package aead

import (
	"crypto/aes"
	"crypto/cipher"
)

// AES256GCM implements Cipher with AES-256 in Galois/Counter Mode.
type AES256GCM struct{}

var _ Cipher = AES256GCM{}

func (AES256GCM) newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (a AES256GCM) Seal(key, nonce, plaintext, associatedData []byte) ([]byte, error) {
	if len(key) != a.KeySize() || len(nonce) != a.NonceSize() {
		return nil, ErrEncryptionFailed
	}
	gcm, err := a.newGCM(key)
	if err != nil {
		return nil, ErrEncryptionFailed
	}
	return gcm.Seal(nil, nonce, plaintext, associatedData), nil
}

func (a AES256GCM) Open(key, nonce, ciphertext, associatedData []byte) ([]byte, error) {
	if len(key) != a.KeySize() || len(nonce) != a.NonceSize() {
		return nil, ErrDecryptionFailed
	}
	gcm, err := a.newGCM(key)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, associatedData)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func (AES256GCM) KeySize() int {
	return 32
}

func (AES256GCM) NonceSize() int {
	return 12
}

func (AES256GCM) Type() CipherType {
	return AES256GCMType
}
