package pqxdh

import (
	"github.com/google/uuid"

	"github.com/prekeynet/prekey-node/pkg/crypto/aead"
	"github.com/prekeynet/prekey-node/pkg/crypto/curve"
)

// FirstMessage is the initial AEAD-encrypted message of a PQXDH session,
// carrying the initiator's keys and the prekey IDs consumed from the peer
// bundle. Producing and consuming it is not wired into the registration
// protocol yet; the dispatch path ends at Ok once a bundle is healthy.
type FirstMessage struct {
	PeerIdentityKey   curve.PublicKey
	PeerEphemeralKey  curve.PublicKey
	PQKEMCiphertext   []byte
	UsedCurvePrekeyID *uuid.UUID
	UsedPQKEMPrekeyID uuid.UUID
	Ciphertext        []byte
	EncryptionNonce   []byte
	EncryptionType    aead.CipherType
}
