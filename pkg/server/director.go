// Package server implements the Server Director: the authoritative
// registry of client public bundles. It inspects bundle freshness on every
// client round trip, issues at most one remediation command per reply, and
// mints peer bundles with one-time slots consumed.
package server

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/prekeynet/prekey-node/pkg/config"
	"github.com/prekeynet/prekey-node/pkg/pqxdh"
	"github.com/prekeynet/prekey-node/pkg/protocol"
	"github.com/prekeynet/prekey-node/pkg/storage"
)

// keysCheckResult is the outcome of the freshness evaluator.
type keysCheckResult int

const (
	keysOk keysCheckResult = iota
	keysNewSPK
	keysNewLastResortPrekey
	keysNewCurveOneTimePrekeys
	keysNewPQKEMOneTimePrekeys
)

// Director applies the freshness policy and drives the per-message
// dispatch. It is safe for use from a single session loop; the store
// serializes its own access.
type Director struct {
	store  *storage.ServerStore
	policy config.Policy

	// now is swapped in tests to pin the clock.
	now func() time.Time
}

// NewDirector builds a director over an initialized server store.
func NewDirector(store *storage.ServerStore, policy config.Policy) *Director {
	return &Director{store: store, policy: policy, now: time.Now}
}

// HandleMessage produces exactly one server reply for one client message.
func (d *Director) HandleMessage(m *protocol.ClientMessage) *protocol.ServerMessage {
	switch m.Type {
	case protocol.MsgClientHello:
		return d.handleClientHello(m.ClientID)
	case protocol.MsgRegistrationBundle:
		return d.handleRegistrationBundle(m.ClientID, m.RegistrationBundle)
	case protocol.MsgNewKeys:
		return d.handleNewKeys(m.ClientID, m.NewKeys)
	case protocol.MsgRequestPeerBundle:
		return d.handleRequestPeerBundle(m.RequestPeerBundle)
	}
	return protocol.NewServerError(protocol.ErrCodeCannotDecodeClientMessage)
}

func (d *Director) handleClientHello(clientID uuid.UUID) *protocol.ServerMessage {
	record, err := d.store.GetClient(clientID)
	if err != nil {
		// Unknown client: ask for the registration bundle.
		return protocol.NewServerCommand(protocol.CmdAskForRegistrationBundle)
	}
	return d.stateCheckKeys(clientID, record)
}

func (d *Director) handleRegistrationBundle(clientID uuid.UUID, bundle *pqxdh.RegistrationBundle) *protocol.ServerMessage {
	if bundle == nil {
		return protocol.NewServerError(protocol.ErrCodeBadResponse)
	}

	if _, err := d.store.GetClient(clientID); err == nil {
		return protocol.NewServerError(protocol.ErrCodeClientAlreadyRegistered)
	}

	record := storage.NewClientRecord(bundle, d.now())
	if err := d.store.AddClient(clientID, record); err != nil {
		log.Printf("Error adding client %s: %v", clientID, err)
		return protocol.NewServerError(protocol.ErrCodeUnknownError)
	}

	return d.stateCheckKeys(clientID, record)
}

func (d *Director) handleNewKeys(clientID uuid.UUID, newKeys *protocol.NewKeys) *protocol.ServerMessage {
	if newKeys == nil {
		return protocol.NewServerError(protocol.ErrCodeBadResponse)
	}

	if _, err := d.store.GetClient(clientID); err != nil {
		return protocol.NewServerError(protocol.ErrCodeClientNotRegistered)
	}

	now := d.now()
	var err error
	switch newKeys.Type {
	case protocol.NewKeysSignedCurvePrekey:
		if newKeys.SignedCurvePrekey == nil {
			return protocol.NewServerError(protocol.ErrCodeBadResponse)
		}
		err = d.store.UpdateSignedCurvePrekey(clientID, newKeys.SignedCurvePrekey, now)
	case protocol.NewKeysSignedLastResortPQKEMPrekey:
		if newKeys.SignedLastResortPQKEMPrekey == nil {
			return protocol.NewServerError(protocol.ErrCodeBadResponse)
		}
		err = d.store.UpdateSignedLastResortPQKEMPrekey(clientID, newKeys.SignedLastResortPQKEMPrekey, now)
	case protocol.NewKeysOneTimeCurvePrekeySet:
		if newKeys.OneTimeCurvePrekeySet == nil {
			return protocol.NewServerError(protocol.ErrCodeBadResponse)
		}
		err = d.store.AddOneTimeCurvePrekeys(clientID, newKeys.OneTimeCurvePrekeySet)
	case protocol.NewKeysSignedOneTimePQKEMPrekeySet:
		if newKeys.SignedOneTimePQKEMPrekeySet == nil {
			return protocol.NewServerError(protocol.ErrCodeBadResponse)
		}
		err = d.store.AddSignedOneTimePQKEMPrekeys(clientID, newKeys.SignedOneTimePQKEMPrekeySet)
	default:
		return protocol.NewServerError(protocol.ErrCodeBadResponse)
	}

	if err != nil {
		log.Printf("Error applying new keys from %s: %v", clientID, err)
		return protocol.NewServerError(protocol.ErrCodeUnknownError)
	}

	record, err := d.store.GetClient(clientID)
	if err != nil {
		log.Printf("Error reloading client %s: %v", clientID, err)
		return protocol.NewServerError(protocol.ErrCodeUnknownError)
	}
	return d.stateCheckKeys(clientID, record)
}

func (d *Director) handleRequestPeerBundle(req *protocol.RequestPeerBundle) *protocol.ServerMessage {
	if req == nil {
		return protocol.NewServerError(protocol.ErrCodeBadResponse)
	}

	record, err := d.store.GetClient(req.PeerID)
	if err != nil {
		return protocol.NewServerError(protocol.ErrCodeClientNotRegistered)
	}

	// One-time PQKEM prekey, falling back to the last resort prekey when
	// the pool is empty.
	pqkemPrekey, err := d.store.PopSignedOneTimePQKEMPrekey(req.PeerID)
	if err != nil {
		log.Printf("Error popping one-time PQKEM prekey for %s: %v", req.PeerID, err)
		return protocol.NewServerError(protocol.ErrCodeUnknownError)
	}
	usedPQKEMPrekey := record.SignedLastResortPQKEMPrekey
	if pqkemPrekey != nil {
		usedPQKEMPrekey = *pqkemPrekey
	}

	// One-time curve prekey; the slot may be absent.
	curvePrekey, err := d.store.PopOneTimeCurvePrekey(req.PeerID)
	if err != nil {
		log.Printf("Error popping one-time curve prekey for %s: %v", req.PeerID, err)
		return protocol.NewServerError(protocol.ErrCodeUnknownError)
	}

	return protocol.NewServerPeerBundle(&pqxdh.PrekeyBundle{
		IdentityKey:        record.IdentityKey,
		SignedCurvePrekey:  record.SignedCurvePrekey,
		OneTimePQKEMPrekey: usedPQKEMPrekey,
		OneTimeCurvePrekey: curvePrekey,
	})
}

// stateCheckKeys maps the freshness evaluation to the next reply.
func (d *Director) stateCheckKeys(clientID uuid.UUID, record *storage.ClientRecord) *protocol.ServerMessage {
	switch d.checkKeys(record) {
	case keysNewSPK:
		return protocol.NewServerCommand(protocol.CmdAskForNewSPK)
	case keysNewLastResortPrekey:
		return protocol.NewServerCommand(protocol.CmdAskForNewLastResortPQKEMPrekey)
	case keysNewCurveOneTimePrekeys:
		return protocol.NewServerCommand(protocol.CmdAskForNewCOPK)
	case keysNewPQKEMOneTimePrekeys:
		return protocol.NewServerCommand(protocol.CmdAskForNewPQOPK)
	}
	return d.sendFirstMessages(clientID)
}

// checkKeys evaluates the freshness rules in fixed priority order,
// short-circuiting at the first match.
func (d *Director) checkKeys(record *storage.ClientRecord) keysCheckResult {
	now := d.now()

	if now.Sub(record.SignedCurvePrekeyUpdatedAt) > d.policy.SignedCurvePrekeyLifetime.Duration() {
		return keysNewSPK
	}
	if now.Sub(record.SignedLastResortPQKEMPrekeyUpdatedAt) > d.policy.LastResortPrekeyLifetime.Duration() {
		return keysNewLastResortPrekey
	}
	if len(record.OneTimeCurvePrekeys.Prekeys) < d.policy.MinOneTimeCurvePrekeys {
		return keysNewCurveOneTimePrekeys
	}
	if len(record.SignedOneTimePQKEMPrekeys.Prekeys) < d.policy.MinOneTimePQKEMPrekeys {
		return keysNewPQKEMOneTimePrekeys
	}
	return keysOk
}

// sendFirstMessages will deliver queued initial PQXDH messages once that
// path exists. TODO: deliver pending first messages before replying Ok.
func (d *Director) sendFirstMessages(_ uuid.UUID) *protocol.ServerMessage {
	return protocol.NewServerOk()
}
