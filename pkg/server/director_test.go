package server

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/prekeynet/prekey-node/pkg/config"
	"github.com/prekeynet/prekey-node/pkg/crypto/curve"
	"github.com/prekeynet/prekey-node/pkg/crypto/pqkem"
	"github.com/prekeynet/prekey-node/pkg/pqxdh"
	"github.com/prekeynet/prekey-node/pkg/protocol"
	"github.com/prekeynet/prekey-node/pkg/storage"
)

var testPolicy = config.Policy{
	SignedCurvePrekeyLifetime: config.Duration(time.Hour),
	LastResortPrekeyLifetime:  config.Duration(1000 * time.Hour),
	MinOneTimeCurvePrekeys:    5,
	MinOneTimePQKEMPrekeys:    5,
}

func newTestDirector(t *testing.T) (*Director, *storage.ServerStore) {
	t.Helper()

	store, err := storage.NewServerStore("test-server", t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.InitServer())

	return NewDirector(store, testPolicy), store
}

type testClient struct {
	id      uuid.UUID
	private *pqxdh.PrivateBundle
	bundle  *pqxdh.RegistrationBundle
}

func newTestClient(t *testing.T, numCurve, numPQKEM int) *testClient {
	t.Helper()

	private, err := pqxdh.NewPrivateBundle(curve.Curve25519{}, pqkem.Kyber512{}, numCurve, numPQKEM)
	require.NoError(t, err)
	bundle, err := pqxdh.NewRegistrationBundle(private, curve.Curve25519{})
	require.NoError(t, err)

	return &testClient{id: uuid.New(), private: private, bundle: bundle}
}

func (tc *testClient) hello() *protocol.ClientMessage {
	return protocol.NewClientHello(tc.id)
}

func (tc *testClient) registration() *protocol.ClientMessage {
	return &protocol.ClientMessage{
		Type:               protocol.MsgRegistrationBundle,
		ClientID:           tc.id,
		RegistrationBundle: tc.bundle,
	}
}

func TestFreshRegistration(t *testing.T) {
	director, store := newTestDirector(t)
	tc := newTestClient(t, 10, 10)

	// ClientHello -> AskForRegistrationBundle
	reply := director.HandleMessage(tc.hello())
	require.Equal(t, protocol.MsgServerCommand, reply.Type)
	require.Equal(t, protocol.CmdAskForRegistrationBundle, reply.Command)

	// RegistrationBundle -> Ok
	reply = director.HandleMessage(tc.registration())
	require.Equal(t, protocol.MsgServerOk, reply.Type)

	record, err := store.GetClient(tc.id)
	require.NoError(t, err)
	require.Len(t, record.OneTimeCurvePrekeys.Prekeys, 10)
	require.Len(t, record.SignedOneTimePQKEMPrekeys.Prekeys, 10)
}

func TestExpiredSignedCurvePrekey(t *testing.T) {
	director, store := newTestDirector(t)
	tc := newTestClient(t, 10, 10)

	director.HandleMessage(tc.hello())
	require.Equal(t, protocol.MsgServerOk, director.HandleMessage(tc.registration()).Type)

	// Shift the clock past the SPK lifetime only.
	director.now = func() time.Time {
		return time.Now().Add(testPolicy.SignedCurvePrekeyLifetime.Duration() + time.Minute)
	}

	reply := director.HandleMessage(tc.hello())
	require.Equal(t, protocol.MsgServerCommand, reply.Type)
	require.Equal(t, protocol.CmdAskForNewSPK, reply.Command)

	// Rotate: a new signed prekey answers the command.
	newPrekey, err := curve.Curve25519{}.GenerateIdentifiedKeyPair()
	require.NoError(t, err)
	signed, err := pqxdh.SignCurvePrekey(curve.Curve25519{}, tc.private.IdentityKey.PrivateKey, &newPrekey)
	require.NoError(t, err)

	reply = director.HandleMessage(&protocol.ClientMessage{
		Type:     protocol.MsgNewKeys,
		ClientID: tc.id,
		NewKeys: &protocol.NewKeys{
			Type:              protocol.NewKeysSignedCurvePrekey,
			SignedCurvePrekey: &signed,
		},
	})
	require.Equal(t, protocol.MsgServerOk, reply.Type)

	record, err := store.GetClient(tc.id)
	require.NoError(t, err)
	require.Equal(t, newPrekey.ID, record.SignedCurvePrekey.IdentifiedPublicKey.ID)

	ok, err := curve.Curve25519{}.Verify(record.IdentityKey,
		record.SignedCurvePrekey.IdentifiedPublicKey.PublicKey.Encode(),
		record.SignedCurvePrekey.Signature)
	require.NoError(t, err)
	require.True(t, ok)

	// The freshness rule that triggered must no longer fire.
	require.Equal(t, protocol.MsgServerOk, director.HandleMessage(tc.hello()).Type)
}

func TestDepletedPQKEMOneTimePool(t *testing.T) {
	director, store := newTestDirector(t)

	// One below the low-water mark, everything else fresh. The health
	// check runs right after the bundle is stored, so registration
	// already answers with the refill command.
	tc := newTestClient(t, 10, testPolicy.MinOneTimePQKEMPrekeys-1)
	reply := director.HandleMessage(tc.registration())
	require.Equal(t, protocol.MsgServerCommand, reply.Type)
	require.Equal(t, protocol.CmdAskForNewPQOPK, reply.Command)

	// The hello keeps asking until the pool is refilled.
	reply = director.HandleMessage(tc.hello())
	require.Equal(t, protocol.MsgServerCommand, reply.Type)
	require.Equal(t, protocol.CmdAskForNewPQOPK, reply.Command)

	// Refill with a batch of 10 signed prekeys.
	refill := &pqxdh.SignedOneTimePQKEMPrekeySet{}
	for i := 0; i < 10; i++ {
		kp, err := pqkem.Kyber512{}.GenerateIdentifiedKeyPair()
		require.NoError(t, err)
		signed, err := pqxdh.SignPQKEMPrekey(curve.Curve25519{}, tc.private.IdentityKey.PrivateKey, &kp)
		require.NoError(t, err)
		refill.Prekeys = append(refill.Prekeys, signed)
	}

	reply = director.HandleMessage(&protocol.ClientMessage{
		Type:     protocol.MsgNewKeys,
		ClientID: tc.id,
		NewKeys: &protocol.NewKeys{
			Type:                        protocol.NewKeysSignedOneTimePQKEMPrekeySet,
			SignedOneTimePQKEMPrekeySet: refill,
		},
	})
	require.Equal(t, protocol.MsgServerOk, reply.Type)

	record, err := store.GetClient(tc.id)
	require.NoError(t, err)
	require.Len(t, record.SignedOneTimePQKEMPrekeys.Prekeys, testPolicy.MinOneTimePQKEMPrekeys-1+10)

	alg := curve.Curve25519{}
	for _, prekey := range record.SignedOneTimePQKEMPrekeys.Prekeys {
		ok, err := alg.Verify(record.IdentityKey,
			prekey.IdentifiedPublicKey.PublicKey.Encode(), prekey.Signature)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestDepletedPoolRegistrationAsksImmediately(t *testing.T) {
	director, _ := newTestDirector(t)

	// Registration with a short curve pool: the health check runs right
	// after the bundle is stored, so the reply is already the refill
	// command.
	tc := newTestClient(t, testPolicy.MinOneTimeCurvePrekeys-1, 10)
	reply := director.HandleMessage(tc.registration())
	require.Equal(t, protocol.MsgServerCommand, reply.Type)
	require.Equal(t, protocol.CmdAskForNewCOPK, reply.Command)
}

func TestPeerBundleConsumptionIsOneShot(t *testing.T) {
	director, _ := newTestDirector(t)
	tc := newTestClient(t, 1, 1)
	require.NotEqual(t, protocol.MsgServerError, director.HandleMessage(tc.registration()).Type)

	request := &protocol.ClientMessage{
		Type:              protocol.MsgRequestPeerBundle,
		ClientID:          uuid.New(),
		RequestPeerBundle: &protocol.RequestPeerBundle{PeerID: tc.id},
	}

	// First request consumes both one-time slots.
	reply := director.HandleMessage(request)
	require.Equal(t, protocol.MsgServerData, reply.Type)
	bundle := reply.Data.PeerBundle
	require.Equal(t, tc.bundle.OneTimePQKEMPrekeys.Prekeys[0].IdentifiedPublicKey.ID,
		bundle.OneTimePQKEMPrekey.IdentifiedPublicKey.ID)
	require.NotNil(t, bundle.OneTimeCurvePrekey)
	require.Equal(t, tc.bundle.OneTimeCurvePrekeys.Prekeys[0].ID, bundle.OneTimeCurvePrekey.ID)

	// Second request falls back to the last resort prekey, and the curve
	// slot is absent.
	reply = director.HandleMessage(request)
	require.Equal(t, protocol.MsgServerData, reply.Type)
	bundle = reply.Data.PeerBundle
	require.Equal(t, tc.bundle.SignedLastResortPQKEMPrekey.IdentifiedPublicKey.ID,
		bundle.OneTimePQKEMPrekey.IdentifiedPublicKey.ID)
	require.Nil(t, bundle.OneTimeCurvePrekey)

	// The identity key is preserved verbatim end to end.
	require.Equal(t, tc.bundle.IdentityKey.Bytes, bundle.IdentityKey.Bytes)
}

func TestPeerBundleUnknownPeer(t *testing.T) {
	director, _ := newTestDirector(t)

	reply := director.HandleMessage(&protocol.ClientMessage{
		Type:              protocol.MsgRequestPeerBundle,
		ClientID:          uuid.New(),
		RequestPeerBundle: &protocol.RequestPeerBundle{PeerID: uuid.New()},
	})
	require.Equal(t, protocol.MsgServerError, reply.Type)
	require.Equal(t, protocol.ErrCodeClientNotRegistered, reply.Error)
}

func TestReRegistrationRejected(t *testing.T) {
	director, store := newTestDirector(t)
	tc := newTestClient(t, 10, 10)
	require.Equal(t, protocol.MsgServerOk, director.HandleMessage(tc.registration()).Type)

	// A second registration bundle must be rejected without touching the
	// stored record.
	other := newTestClient(t, 10, 10)
	other.id = tc.id

	reply := director.HandleMessage(other.registration())
	require.Equal(t, protocol.MsgServerError, reply.Type)
	require.Equal(t, protocol.ErrCodeClientAlreadyRegistered, reply.Error)

	record, err := store.GetClient(tc.id)
	require.NoError(t, err)
	require.Equal(t, tc.bundle.IdentityKey.Bytes, record.IdentityKey.Bytes)
}

func TestNewKeysFromUnknownClient(t *testing.T) {
	director, _ := newTestDirector(t)
	tc := newTestClient(t, 1, 1)

	newPrekey, err := curve.Curve25519{}.GenerateIdentifiedKeyPair()
	require.NoError(t, err)
	signed, err := pqxdh.SignCurvePrekey(curve.Curve25519{}, tc.private.IdentityKey.PrivateKey, &newPrekey)
	require.NoError(t, err)

	reply := director.HandleMessage(&protocol.ClientMessage{
		Type:     protocol.MsgNewKeys,
		ClientID: tc.id,
		NewKeys: &protocol.NewKeys{
			Type:              protocol.NewKeysSignedCurvePrekey,
			SignedCurvePrekey: &signed,
		},
	})
	require.Equal(t, protocol.MsgServerError, reply.Type)
	require.Equal(t, protocol.ErrCodeClientNotRegistered, reply.Error)
}

func TestBadResponseMissingPayload(t *testing.T) {
	director, store := newTestDirector(t)
	tc := newTestClient(t, 10, 10)
	require.Equal(t, protocol.MsgServerOk, director.HandleMessage(tc.registration()).Type)

	before, err := store.GetClient(tc.id)
	require.NoError(t, err)

	// A NewKeys tag with no payload is a protocol violation.
	reply := director.HandleMessage(&protocol.ClientMessage{
		Type:     protocol.MsgNewKeys,
		ClientID: tc.id,
		NewKeys:  &protocol.NewKeys{Type: protocol.NewKeysSignedCurvePrekey},
	})
	require.Equal(t, protocol.MsgServerError, reply.Type)
	require.Equal(t, protocol.ErrCodeBadResponse, reply.Error)

	after, err := store.GetClient(tc.id)
	require.NoError(t, err)
	require.Equal(t, before.SignedCurvePrekey.IdentifiedPublicKey.ID, after.SignedCurvePrekey.IdentifiedPublicKey.ID)
}

func TestHealthCheckPriorityOrder(t *testing.T) {
	director, _ := newTestDirector(t)

	// Both the SPK is expired and the pools are low: the SPK rule wins.
	tc := newTestClient(t, 0, 0)
	require.Equal(t, protocol.MsgServerCommand, director.HandleMessage(tc.registration()).Type)

	director.now = func() time.Time {
		return time.Now().Add(testPolicy.SignedCurvePrekeyLifetime.Duration() + time.Minute)
	}

	reply := director.HandleMessage(tc.hello())
	require.Equal(t, protocol.CmdAskForNewSPK, reply.Command)
}
