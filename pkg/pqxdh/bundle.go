// Package pqxdh holds the PQXDH key bundle structures: the client's private
// bundle, the public registration bundle published at first registration,
// and the peer prekey bundle minted by the server on demand.
package pqxdh

import (
	"github.com/prekeynet/prekey-node/pkg/crypto/curve"
	"github.com/prekeynet/prekey-node/pkg/crypto/pqkem"
)

// SignedCurvePrekey is an identified curve public key signed under the
// owner's identity key over the typed encoding.
type SignedCurvePrekey struct {
	IdentifiedPublicKey curve.IdentifiedPublicKey
	Signature           [64]byte
}

// SignedPQKEMPrekey is an identified PQKEM public key signed under the
// owner's identity key over the typed encoding.
type SignedPQKEMPrekey struct {
	IdentifiedPublicKey pqkem.IdentifiedPublicKey
	Signature           [64]byte
}

// OneTimeCurvePrekeySet is a batch of one-time curve prekey publics.
// Per the PQXDH spec these are published unsigned.
type OneTimeCurvePrekeySet struct {
	Prekeys []curve.IdentifiedPublicKey
}

// SignedOneTimePQKEMPrekeySet is a batch of signed one-time PQKEM prekeys.
type SignedOneTimePQKEMPrekeySet struct {
	Prekeys []SignedPQKEMPrekey
}

// PrivateBundle is the client's complete secret key material. It never
// leaves the device; the storage layer owns the durable copy.
type PrivateBundle struct {
	IdentityKey         curve.KeyPair
	CurvePrekey         curve.IdentifiedKeyPair
	LastResortPrekey    pqkem.IdentifiedKeyPair
	OneTimeCurvePrekeys []curve.IdentifiedKeyPair
	OneTimePQKEMPrekeys []pqkem.IdentifiedKeyPair
}

// NewPrivateBundle generates a fresh private bundle with the injected
// algorithms and the requested one-time prekey counts.
func NewPrivateBundle(curveAlg curve.Algorithm, kemAlg pqkem.Algorithm, numCurveOneTime, numPQKEMOneTime int) (*PrivateBundle, error) {
	identity, err := curveAlg.GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	curvePrekey, err := curveAlg.GenerateIdentifiedKeyPair()
	if err != nil {
		return nil, err
	}

	lastResort, err := kemAlg.GenerateIdentifiedKeyPair()
	if err != nil {
		return nil, err
	}

	bundle := &PrivateBundle{
		IdentityKey:         identity,
		CurvePrekey:         curvePrekey,
		LastResortPrekey:    lastResort,
		OneTimeCurvePrekeys: make([]curve.IdentifiedKeyPair, 0, numCurveOneTime),
		OneTimePQKEMPrekeys: make([]pqkem.IdentifiedKeyPair, 0, numPQKEMOneTime),
	}

	for i := 0; i < numCurveOneTime; i++ {
		kp, err := curveAlg.GenerateIdentifiedKeyPair()
		if err != nil {
			return nil, err
		}
		bundle.OneTimeCurvePrekeys = append(bundle.OneTimeCurvePrekeys, kp)
	}

	for i := 0; i < numPQKEMOneTime; i++ {
		kp, err := kemAlg.GenerateIdentifiedKeyPair()
		if err != nil {
			return nil, err
		}
		bundle.OneTimePQKEMPrekeys = append(bundle.OneTimePQKEMPrekeys, kp)
	}

	return bundle, nil
}

// Zero wipes all private key material in the bundle.
func (b *PrivateBundle) Zero() {
	b.IdentityKey.Zero()
	b.CurvePrekey.KeyPair.Zero()
	b.LastResortPrekey.KeyPair.Zero()
	for i := range b.OneTimeCurvePrekeys {
		b.OneTimeCurvePrekeys[i].KeyPair.Zero()
	}
	for i := range b.OneTimePQKEMPrekeys {
		b.OneTimePQKEMPrekeys[i].KeyPair.Zero()
	}
}

// RegistrationBundle is the public material a client publishes at first
// registration.
type RegistrationBundle struct {
	IdentityKey                 curve.PublicKey
	SignedCurvePrekey           SignedCurvePrekey
	SignedLastResortPQKEMPrekey SignedPQKEMPrekey
	OneTimeCurvePrekeys         OneTimeCurvePrekeySet
	OneTimePQKEMPrekeys         SignedOneTimePQKEMPrekeySet
}

// SignCurvePrekey signs an identified curve key pair under the identity key.
func SignCurvePrekey(curveAlg curve.Algorithm, identity curve.PrivateKey, prekey *curve.IdentifiedKeyPair) (SignedCurvePrekey, error) {
	sig, err := curveAlg.Sign(identity, prekey.KeyPair.PublicKey.Encode())
	if err != nil {
		return SignedCurvePrekey{}, err
	}
	return SignedCurvePrekey{IdentifiedPublicKey: prekey.Public(), Signature: sig}, nil
}

// SignPQKEMPrekey signs an identified PQKEM key pair under the identity key.
func SignPQKEMPrekey(curveAlg curve.Algorithm, identity curve.PrivateKey, prekey *pqkem.IdentifiedKeyPair) (SignedPQKEMPrekey, error) {
	sig, err := curveAlg.Sign(identity, prekey.KeyPair.PublicKey.Encode())
	if err != nil {
		return SignedPQKEMPrekey{}, err
	}
	return SignedPQKEMPrekey{IdentifiedPublicKey: prekey.Public(), Signature: sig}, nil
}

// NewRegistrationBundle derives the public registration bundle from a
// private bundle, signing the curve prekey, the last resort PQKEM prekey
// and every one-time PQKEM prekey with the identity key.
func NewRegistrationBundle(private *PrivateBundle, curveAlg curve.Algorithm) (*RegistrationBundle, error) {
	signedCurve, err := SignCurvePrekey(curveAlg, private.IdentityKey.PrivateKey, &private.CurvePrekey)
	if err != nil {
		return nil, err
	}

	signedLastResort, err := SignPQKEMPrekey(curveAlg, private.IdentityKey.PrivateKey, &private.LastResortPrekey)
	if err != nil {
		return nil, err
	}

	oneTimeCurve := OneTimeCurvePrekeySet{
		Prekeys: make([]curve.IdentifiedPublicKey, 0, len(private.OneTimeCurvePrekeys)),
	}
	for i := range private.OneTimeCurvePrekeys {
		oneTimeCurve.Prekeys = append(oneTimeCurve.Prekeys, private.OneTimeCurvePrekeys[i].Public())
	}

	oneTimePQKEM := SignedOneTimePQKEMPrekeySet{
		Prekeys: make([]SignedPQKEMPrekey, 0, len(private.OneTimePQKEMPrekeys)),
	}
	for i := range private.OneTimePQKEMPrekeys {
		signed, err := SignPQKEMPrekey(curveAlg, private.IdentityKey.PrivateKey, &private.OneTimePQKEMPrekeys[i])
		if err != nil {
			return nil, err
		}
		oneTimePQKEM.Prekeys = append(oneTimePQKEM.Prekeys, signed)
	}

	return &RegistrationBundle{
		IdentityKey:                 private.IdentityKey.PublicKey,
		SignedCurvePrekey:           signedCurve,
		SignedLastResortPQKEMPrekey: signedLastResort,
		OneTimeCurvePrekeys:         oneTimeCurve,
		OneTimePQKEMPrekeys:         oneTimePQKEM,
	}, nil
}

// PrekeyBundle is the per-request view of a peer's published material. The
// one-time PQKEM slot falls back to the last resort prekey when the pool is
// empty; the one-time curve slot may be absent.
type PrekeyBundle struct {
	IdentityKey        curve.PublicKey
	SignedCurvePrekey  SignedCurvePrekey
	OneTimePQKEMPrekey SignedPQKEMPrekey
	OneTimeCurvePrekey *curve.IdentifiedPublicKey
}
