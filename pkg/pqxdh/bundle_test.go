package pqxdh

import (
	"testing"

	"github.com/prekeynet/prekey-node/pkg/crypto/curve"
	"github.com/prekeynet/prekey-node/pkg/crypto/pqkem"
)

func TestNewPrivateBundleCounts(t *testing.T) {
	bundle, err := NewPrivateBundle(curve.Curve25519{}, pqkem.Kyber512{}, 10, 10)
	if err != nil {
		t.Fatalf("NewPrivateBundle failed: %v", err)
	}

	if len(bundle.OneTimeCurvePrekeys) != 10 {
		t.Errorf("Wrong one-time curve prekey count: got %d", len(bundle.OneTimeCurvePrekeys))
	}
	if len(bundle.OneTimePQKEMPrekeys) != 10 {
		t.Errorf("Wrong one-time pqkem prekey count: got %d", len(bundle.OneTimePQKEMPrekeys))
	}

	// UUIDs must be distinct across the whole bundle.
	seen := map[string]bool{
		bundle.CurvePrekey.ID.String():      true,
		bundle.LastResortPrekey.ID.String(): true,
	}
	for _, k := range bundle.OneTimeCurvePrekeys {
		if seen[k.ID.String()] {
			t.Fatalf("Duplicate prekey UUID %s", k.ID)
		}
		seen[k.ID.String()] = true
	}
	for _, k := range bundle.OneTimePQKEMPrekeys {
		if seen[k.ID.String()] {
			t.Fatalf("Duplicate prekey UUID %s", k.ID)
		}
		seen[k.ID.String()] = true
	}
}

func TestRegistrationBundleSignatures(t *testing.T) {
	curveAlg := curve.Curve25519{}

	private, err := NewPrivateBundle(curveAlg, pqkem.Kyber512{}, 3, 3)
	if err != nil {
		t.Fatalf("NewPrivateBundle failed: %v", err)
	}

	bundle, err := NewRegistrationBundle(private, curveAlg)
	if err != nil {
		t.Fatalf("NewRegistrationBundle failed: %v", err)
	}

	if bundle.IdentityKey.Type != private.IdentityKey.PublicKey.Type {
		t.Error("Identity key type not preserved")
	}

	ok, err := curveAlg.Verify(bundle.IdentityKey,
		bundle.SignedCurvePrekey.IdentifiedPublicKey.PublicKey.Encode(),
		bundle.SignedCurvePrekey.Signature)
	if err != nil || !ok {
		t.Errorf("Signed curve prekey signature invalid (ok=%v, err=%v)", ok, err)
	}

	ok, err = curveAlg.Verify(bundle.IdentityKey,
		bundle.SignedLastResortPQKEMPrekey.IdentifiedPublicKey.PublicKey.Encode(),
		bundle.SignedLastResortPQKEMPrekey.Signature)
	if err != nil || !ok {
		t.Errorf("Last resort prekey signature invalid (ok=%v, err=%v)", ok, err)
	}

	if len(bundle.OneTimeCurvePrekeys.Prekeys) != 3 {
		t.Errorf("Wrong one-time curve prekey count: got %d", len(bundle.OneTimeCurvePrekeys.Prekeys))
	}
	if len(bundle.OneTimePQKEMPrekeys.Prekeys) != 3 {
		t.Errorf("Wrong one-time pqkem prekey count: got %d", len(bundle.OneTimePQKEMPrekeys.Prekeys))
	}

	for i, prekey := range bundle.OneTimePQKEMPrekeys.Prekeys {
		ok, err := curveAlg.Verify(bundle.IdentityKey,
			prekey.IdentifiedPublicKey.PublicKey.Encode(), prekey.Signature)
		if err != nil || !ok {
			t.Errorf("One-time pqkem prekey %d signature invalid (ok=%v, err=%v)", i, ok, err)
		}
	}
}

func TestRegistrationBundlePreservesIdentityKey(t *testing.T) {
	curveAlg := curve.Curve25519{}

	private, err := NewPrivateBundle(curveAlg, pqkem.Kyber512{}, 1, 1)
	if err != nil {
		t.Fatalf("NewPrivateBundle failed: %v", err)
	}

	bundle, err := NewRegistrationBundle(private, curveAlg)
	if err != nil {
		t.Fatalf("NewRegistrationBundle failed: %v", err)
	}

	if string(bundle.IdentityKey.Bytes) != string(private.IdentityKey.PublicKey.Bytes) {
		t.Error("Identity public key not carried verbatim")
	}
}
