package protocol

import (
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/prekeynet/prekey-node/pkg/crypto/curve"
	"github.com/prekeynet/prekey-node/pkg/crypto/pqkem"
	"github.com/prekeynet/prekey-node/pkg/pqxdh"
)

func testRegistrationBundle(t *testing.T) *pqxdh.RegistrationBundle {
	t.Helper()

	private, err := pqxdh.NewPrivateBundle(curve.Curve25519{}, pqkem.Kyber512{}, 2, 2)
	if err != nil {
		t.Fatalf("Failed to generate private bundle: %v", err)
	}
	bundle, err := pqxdh.NewRegistrationBundle(private, curve.Curve25519{})
	if err != nil {
		t.Fatalf("Failed to build registration bundle: %v", err)
	}
	return bundle
}

func clientRoundTrip(t *testing.T, m *ClientMessage) *ClientMessage {
	t.Helper()

	encoded, err := EncodeClientMessage(m)
	if err != nil {
		t.Fatalf("EncodeClientMessage failed: %v", err)
	}
	decoded, err := DecodeClientMessage(encoded)
	if err != nil {
		t.Fatalf("DecodeClientMessage failed: %v", err)
	}

	// Encode -> decode -> encode must be the identity on the wire.
	reencoded, err := EncodeClientMessage(decoded)
	if err != nil {
		t.Fatalf("Re-encode failed: %v", err)
	}
	if !reflect.DeepEqual(encoded, reencoded) {
		t.Error("Re-encoded message differs from original encoding")
	}

	return decoded
}

func serverRoundTrip(t *testing.T, m *ServerMessage) *ServerMessage {
	t.Helper()

	encoded, err := EncodeServerMessage(m)
	if err != nil {
		t.Fatalf("EncodeServerMessage failed: %v", err)
	}
	decoded, err := DecodeServerMessage(encoded)
	if err != nil {
		t.Fatalf("DecodeServerMessage failed: %v", err)
	}

	reencoded, err := EncodeServerMessage(decoded)
	if err != nil {
		t.Fatalf("Re-encode failed: %v", err)
	}
	if !reflect.DeepEqual(encoded, reencoded) {
		t.Error("Re-encoded message differs from original encoding")
	}

	return decoded
}

func TestClientHelloRoundTrip(t *testing.T) {
	m := NewClientHello(uuid.New())
	decoded := clientRoundTrip(t, m)

	if decoded.Type != MsgClientHello || decoded.ClientID != m.ClientID {
		t.Error("ClientHello round trip mismatch")
	}
}

func TestRegistrationBundleRoundTrip(t *testing.T) {
	m := &ClientMessage{
		Type:               MsgRegistrationBundle,
		ClientID:           uuid.New(),
		RegistrationBundle: testRegistrationBundle(t),
	}
	decoded := clientRoundTrip(t, m)

	if !reflect.DeepEqual(m.RegistrationBundle, decoded.RegistrationBundle) {
		t.Error("Registration bundle round trip mismatch")
	}
}

func TestNewKeysRoundTripAllVariants(t *testing.T) {
	bundle := testRegistrationBundle(t)

	variants := []*NewKeys{
		{Type: NewKeysSignedCurvePrekey, SignedCurvePrekey: &bundle.SignedCurvePrekey},
		{Type: NewKeysSignedLastResortPQKEMPrekey, SignedLastResortPQKEMPrekey: &bundle.SignedLastResortPQKEMPrekey},
		{Type: NewKeysOneTimeCurvePrekeySet, OneTimeCurvePrekeySet: &bundle.OneTimeCurvePrekeys},
		{Type: NewKeysSignedOneTimePQKEMPrekeySet, SignedOneTimePQKEMPrekeySet: &bundle.OneTimePQKEMPrekeys},
	}

	for _, nk := range variants {
		m := &ClientMessage{Type: MsgNewKeys, ClientID: uuid.New(), NewKeys: nk}
		decoded := clientRoundTrip(t, m)
		if !reflect.DeepEqual(m.NewKeys, decoded.NewKeys) {
			t.Errorf("NewKeys variant 0x%02x round trip mismatch", uint8(nk.Type))
		}
	}
}

func TestNewKeysMissingPayloadRejected(t *testing.T) {
	m := &ClientMessage{
		Type:     MsgNewKeys,
		ClientID: uuid.New(),
		NewKeys:  &NewKeys{Type: NewKeysSignedCurvePrekey},
	}
	if _, err := EncodeClientMessage(m); err != ErrMissingPayload {
		t.Errorf("Expected ErrMissingPayload, got %v", err)
	}
}

func TestRequestPeerBundleRoundTrip(t *testing.T) {
	m := &ClientMessage{
		Type:              MsgRequestPeerBundle,
		ClientID:          uuid.New(),
		RequestPeerBundle: &RequestPeerBundle{PeerID: uuid.New()},
	}
	decoded := clientRoundTrip(t, m)

	if decoded.RequestPeerBundle.PeerID != m.RequestPeerBundle.PeerID {
		t.Error("RequestPeerBundle round trip mismatch")
	}
}

func TestServerMessageRoundTrips(t *testing.T) {
	bundle := testRegistrationBundle(t)
	oneTimeCurve := bundle.OneTimeCurvePrekeys.Prekeys[0]

	withCurve := &pqxdh.PrekeyBundle{
		IdentityKey:        bundle.IdentityKey,
		SignedCurvePrekey:  bundle.SignedCurvePrekey,
		OneTimePQKEMPrekey: bundle.OneTimePQKEMPrekeys.Prekeys[0],
		OneTimeCurvePrekey: &oneTimeCurve,
	}
	withoutCurve := &pqxdh.PrekeyBundle{
		IdentityKey:        bundle.IdentityKey,
		SignedCurvePrekey:  bundle.SignedCurvePrekey,
		OneTimePQKEMPrekey: bundle.SignedLastResortPQKEMPrekey,
	}

	messages := []*ServerMessage{
		NewServerOk(),
		NewServerError(ErrCodeClientAlreadyRegistered),
		NewServerError(ErrCodeBadResponse),
		NewServerCommand(CmdAskForRegistrationBundle),
		NewServerCommand(CmdAskForNewPQOPK),
		NewServerPeerBundle(withCurve),
		NewServerPeerBundle(withoutCurve),
	}

	for i, m := range messages {
		decoded := serverRoundTrip(t, m)
		if !reflect.DeepEqual(m, decoded) {
			t.Errorf("Server message %d round trip mismatch", i)
		}
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	encoded, err := EncodeClientMessage(NewClientHello(uuid.New()))
	if err != nil {
		t.Fatalf("EncodeClientMessage failed: %v", err)
	}
	encoded[0] ^= 0xFF

	if _, err := DecodeClientMessage(encoded); err != ErrInvalidMagic {
		t.Errorf("Expected ErrInvalidMagic, got %v", err)
	}
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	encoded, err := EncodeClientMessage(NewClientHello(uuid.New()))
	if err != nil {
		t.Fatalf("EncodeClientMessage failed: %v", err)
	}
	encoded[5] ^= 0xFF

	if _, err := DecodeClientMessage(encoded); err != ErrInvalidVersion {
		t.Errorf("Expected ErrInvalidVersion, got %v", err)
	}
}

func TestDecodeRejectsTruncated(t *testing.T) {
	m := &ClientMessage{
		Type:               MsgRegistrationBundle,
		ClientID:           uuid.New(),
		RegistrationBundle: testRegistrationBundle(t),
	}
	encoded, err := EncodeClientMessage(m)
	if err != nil {
		t.Fatalf("EncodeClientMessage failed: %v", err)
	}

	if _, err := DecodeClientMessage(encoded[:len(encoded)-10]); err == nil {
		t.Error("Truncated message decoded without error")
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	encoded, err := EncodeClientMessage(NewClientHello(uuid.New()))
	if err != nil {
		t.Fatalf("EncodeClientMessage failed: %v", err)
	}
	encoded = append(encoded, 0xAA)

	if _, err := DecodeClientMessage(encoded); err != ErrTrailingBytes {
		t.Errorf("Expected ErrTrailingBytes, got %v", err)
	}
}

func TestDecodeRejectsBadKeyTag(t *testing.T) {
	m := &ClientMessage{
		Type:               MsgRegistrationBundle,
		ClientID:           uuid.New(),
		RegistrationBundle: testRegistrationBundle(t),
	}
	encoded, err := EncodeClientMessage(m)
	if err != nil {
		t.Fatalf("EncodeClientMessage failed: %v", err)
	}

	// The identity key tag is the first body byte after the envelope
	// header, kind and client UUID.
	encoded[4+2+1+16] = 0x7F

	if _, err := DecodeClientMessage(encoded); err != curve.ErrInvalidKeyType {
		t.Errorf("Expected curve.ErrInvalidKeyType, got %v", err)
	}
}
