package storage

import (
	"time"

	"github.com/prekeynet/prekey-node/pkg/crypto/curve"
	"github.com/prekeynet/prekey-node/pkg/pqxdh"
)

// ClientRecord is the server's view of one registered client: the public
// bundle with the lifecycle timestamps the freshness policy evaluates.
type ClientRecord struct {
	IdentityKey          curve.PublicKey
	IdentityKeyCreatedAt time.Time

	SignedCurvePrekey          pqxdh.SignedCurvePrekey
	SignedCurvePrekeyUpdatedAt time.Time

	SignedLastResortPQKEMPrekey          pqxdh.SignedPQKEMPrekey
	SignedLastResortPQKEMPrekeyUpdatedAt time.Time

	OneTimeCurvePrekeys       pqxdh.OneTimeCurvePrekeySet
	SignedOneTimePQKEMPrekeys pqxdh.SignedOneTimePQKEMPrekeySet
}

// NewClientRecord builds the record persisted at first registration, with
// all three single-valued slots stamped now.
func NewClientRecord(bundle *pqxdh.RegistrationBundle, now time.Time) *ClientRecord {
	return &ClientRecord{
		IdentityKey:                          bundle.IdentityKey,
		IdentityKeyCreatedAt:                 now,
		SignedCurvePrekey:                    bundle.SignedCurvePrekey,
		SignedCurvePrekeyUpdatedAt:           now,
		SignedLastResortPQKEMPrekey:          bundle.SignedLastResortPQKEMPrekey,
		SignedLastResortPQKEMPrekeyUpdatedAt: now,
		OneTimeCurvePrekeys:                  bundle.OneTimeCurvePrekeys,
		SignedOneTimePQKEMPrekeys:            bundle.OneTimePQKEMPrekeys,
	}
}

func timeToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func millisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
