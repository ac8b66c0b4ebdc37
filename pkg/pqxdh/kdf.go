package pqxdh

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/prekeynet/prekey-node/pkg/crypto/curve"
	"github.com/prekeynet/prekey-node/pkg/crypto/pqkem"
)

// HashType selects the hash behind the HKDF.
type HashType uint8

const (
	SHA256 HashType = 0
	SHA512 HashType = 1
)

// OutputSize returns the hash output length in bytes.
func (t HashType) OutputSize() int {
	switch t {
	case SHA512:
		return 64
	default:
		return 32
	}
}

func (t HashType) String() string {
	switch t {
	case SHA512:
		return "SHA-512"
	default:
		return "SHA-256"
	}
}

func (t HashType) newHash() func() hash.Hash {
	switch t {
	case SHA512:
		return sha512.New
	default:
		return sha256.New
	}
}

// KDF derives the 32-byte PQXDH shared key from concatenated DH/KEM
// secrets. Salt is a zero string of the hash output length, the IKM is the
// curve prepad followed by the input secrets, and the info string binds the
// application name and the algorithm suite.
func KDF(input []byte, curveAlg curve.Algorithm, kemAlg pqkem.Algorithm, hashType HashType, info string) ([32]byte, error) {
	var okm [32]byte

	salt := make([]byte, hashType.OutputSize())

	ikm := make([]byte, 0, len(curveAlg.KDFPrepad())+len(input))
	ikm = append(ikm, curveAlg.KDFPrepad()...)
	ikm = append(ikm, input...)

	infoString := fmt.Sprintf("%s_%s_%s_%s", info, curveAlg.Type(), hashType, kemAlg.Type())

	reader := hkdf.New(hashType.newHash(), ikm, salt, []byte(infoString))
	if _, err := io.ReadFull(reader, okm[:]); err != nil {
		return okm, err
	}

	return okm, nil
}
