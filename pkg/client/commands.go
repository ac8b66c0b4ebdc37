package client

import (
	"fmt"
	"log"

	"github.com/prekeynet/prekey-node/pkg/crypto/curve"
	"github.com/prekeynet/prekey-node/pkg/crypto/pqkem"
	"github.com/prekeynet/prekey-node/pkg/pqxdh"
	"github.com/prekeynet/prekey-node/pkg/protocol"
)

// handleServerCommand services one remediation command. Every handler
// persists the new material before building the reply: replying first and
// crashing would desynchronize the client and server stores.
func (c *Client) handleServerCommand(cmd protocol.ServerCommand) (*protocol.ClientMessage, error) {
	switch cmd {
	case protocol.CmdAskForRegistrationBundle:
		return c.commandRegistrationBundle()
	case protocol.CmdAskForNewSPK:
		return c.commandNewSignedPrekey()
	case protocol.CmdAskForNewLastResortPQKEMPrekey:
		return c.commandNewLastResortPrekey()
	case protocol.CmdAskForNewCOPK:
		return c.commandNewCurveOneTimePrekeys()
	case protocol.CmdAskForNewPQOPK:
		return c.commandNewPQKEMOneTimePrekeys()
	}
	return nil, fmt.Errorf("unknown server command 0x%02x", uint8(cmd))
}

func (c *Client) commandRegistrationBundle() (*protocol.ClientMessage, error) {
	private, err := c.store.GetPrivateKeyBundle()
	if err != nil {
		return nil, fmt.Errorf("failed to load private bundle: %w", err)
	}
	defer private.Zero()

	bundle, err := pqxdh.NewRegistrationBundle(private, c.curveAlg)
	if err != nil {
		return nil, fmt.Errorf("failed to build registration bundle: %w", err)
	}
	log.Printf("Publishing registration bundle (%d curve / %d pqkem one-time prekeys)",
		len(bundle.OneTimeCurvePrekeys.Prekeys), len(bundle.OneTimePQKEMPrekeys.Prekeys))

	return &protocol.ClientMessage{
		Type:               protocol.MsgRegistrationBundle,
		ClientID:           c.clientID,
		RegistrationBundle: bundle,
	}, nil
}

func (c *Client) commandNewSignedPrekey() (*protocol.ClientMessage, error) {
	newPrekey, err := c.curveAlg.GenerateIdentifiedKeyPair()
	if err != nil {
		return nil, err
	}

	signed, err := c.signCurvePrekey(&newPrekey)
	if err != nil {
		return nil, err
	}

	if err := c.store.UpdateCurveSignedPrekey(&newPrekey); err != nil {
		return nil, fmt.Errorf("failed to update curve signed prekey: %w", err)
	}
	log.Printf("Rotated signed curve prekey %s", newPrekey.ID)

	return &protocol.ClientMessage{
		Type:     protocol.MsgNewKeys,
		ClientID: c.clientID,
		NewKeys: &protocol.NewKeys{
			Type:              protocol.NewKeysSignedCurvePrekey,
			SignedCurvePrekey: &signed,
		},
	}, nil
}

func (c *Client) commandNewLastResortPrekey() (*protocol.ClientMessage, error) {
	newPrekey, err := c.kemAlg.GenerateIdentifiedKeyPair()
	if err != nil {
		return nil, err
	}

	signed, err := c.signPQKEMPrekey(&newPrekey)
	if err != nil {
		return nil, err
	}

	if err := c.store.UpdateLastResortPQKEMPrekey(&newPrekey); err != nil {
		return nil, fmt.Errorf("failed to update last resort prekey: %w", err)
	}
	log.Printf("Rotated last resort PQKEM prekey %s", newPrekey.ID)

	return &protocol.ClientMessage{
		Type:     protocol.MsgNewKeys,
		ClientID: c.clientID,
		NewKeys: &protocol.NewKeys{
			Type:                        protocol.NewKeysSignedLastResortPQKEMPrekey,
			SignedLastResortPQKEMPrekey: &signed,
		},
	}, nil
}

func (c *Client) commandNewCurveOneTimePrekeys() (*protocol.ClientMessage, error) {
	newKeys := make([]curve.IdentifiedKeyPair, 0, c.cfg.OneTimeCurvePrekeys)
	for i := 0; i < c.cfg.OneTimeCurvePrekeys; i++ {
		kp, err := c.curveAlg.GenerateIdentifiedKeyPair()
		if err != nil {
			return nil, err
		}
		newKeys = append(newKeys, kp)
	}

	if err := c.store.AddCurveOneTimePrekeys(newKeys); err != nil {
		return nil, fmt.Errorf("failed to add curve one-time prekeys: %w", err)
	}
	log.Printf("Added %d one-time curve prekeys", len(newKeys))

	set := &pqxdh.OneTimeCurvePrekeySet{
		Prekeys: make([]curve.IdentifiedPublicKey, 0, len(newKeys)),
	}
	for i := range newKeys {
		set.Prekeys = append(set.Prekeys, newKeys[i].Public())
	}

	return &protocol.ClientMessage{
		Type:     protocol.MsgNewKeys,
		ClientID: c.clientID,
		NewKeys: &protocol.NewKeys{
			Type:                  protocol.NewKeysOneTimeCurvePrekeySet,
			OneTimeCurvePrekeySet: set,
		},
	}, nil
}

func (c *Client) commandNewPQKEMOneTimePrekeys() (*protocol.ClientMessage, error) {
	newKeys := make([]pqkem.IdentifiedKeyPair, 0, c.cfg.OneTimePQKEMPrekeys)
	for i := 0; i < c.cfg.OneTimePQKEMPrekeys; i++ {
		kp, err := c.kemAlg.GenerateIdentifiedKeyPair()
		if err != nil {
			return nil, err
		}
		newKeys = append(newKeys, kp)
	}

	set := &pqxdh.SignedOneTimePQKEMPrekeySet{
		Prekeys: make([]pqxdh.SignedPQKEMPrekey, 0, len(newKeys)),
	}
	for i := range newKeys {
		signed, err := c.signPQKEMPrekey(&newKeys[i])
		if err != nil {
			return nil, err
		}
		set.Prekeys = append(set.Prekeys, signed)
	}

	if err := c.store.AddSignedPQKEMPrekeys(newKeys); err != nil {
		return nil, fmt.Errorf("failed to add signed PQKEM one-time prekeys: %w", err)
	}
	log.Printf("Added %d signed one-time PQKEM prekeys", len(newKeys))

	return &protocol.ClientMessage{
		Type:     protocol.MsgNewKeys,
		ClientID: c.clientID,
		NewKeys: &protocol.NewKeys{
			Type:                        protocol.NewKeysSignedOneTimePQKEMPrekeySet,
			SignedOneTimePQKEMPrekeySet: set,
		},
	}, nil
}

// signCurvePrekey signs a prekey under the stored identity key.
func (c *Client) signCurvePrekey(prekey *curve.IdentifiedKeyPair) (pqxdh.SignedCurvePrekey, error) {
	private, err := c.store.GetPrivateKeyBundle()
	if err != nil {
		return pqxdh.SignedCurvePrekey{}, fmt.Errorf("failed to load private bundle: %w", err)
	}
	defer private.Zero()

	return pqxdh.SignCurvePrekey(c.curveAlg, private.IdentityKey.PrivateKey, prekey)
}

// signPQKEMPrekey signs a prekey under the stored identity key.
func (c *Client) signPQKEMPrekey(prekey *pqkem.IdentifiedKeyPair) (pqxdh.SignedPQKEMPrekey, error) {
	private, err := c.store.GetPrivateKeyBundle()
	if err != nil {
		return pqxdh.SignedPQKEMPrekey{}, fmt.Errorf("failed to load private bundle: %w", err)
	}
	defer private.Zero()

	return pqxdh.SignPQKEMPrekey(c.curveAlg, private.IdentityKey.PrivateKey, prekey)
}
