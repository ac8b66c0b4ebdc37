package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prekeynet/prekey-node/pkg/crypto/curve"
	"github.com/prekeynet/prekey-node/pkg/crypto/pqkem"
	"github.com/prekeynet/prekey-node/pkg/pqxdh"
)

// ServerStore persists the registry of client public bundles. Pops are
// single transactions: selecting a one-time prekey, removing its pool row
// and reclaiming its key rows commit together, so two concurrent peer
// bundle requests can never hand out the same prekey.
type ServerStore struct {
	db *sql.DB
}

// NewServerStore opens the server database under rootPath.
func NewServerStore(applicationName, rootPath string) (*ServerStore, error) {
	db, err := openDatabase(rootPath, applicationName)
	if err != nil {
		return nil, err
	}
	return &ServerStore{db: db}, nil
}

// InitServer creates or validates the server schema.
func (s *ServerStore) InitServer() error {
	return initSchema(s.db, serverSchema, serverSchemaVersion)
}

// Close releases the database handle.
func (s *ServerStore) Close() error {
	return s.db.Close()
}

// ClientCount returns the number of registered clients.
func (s *ServerStore) ClientCount() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM clients").Scan(&n)
	return n, err
}

// ===== ROW HELPERS =====

func insertCurvePublicKey(tx *sql.Tx, k curve.PublicKey) (int64, error) {
	res, err := tx.Exec(
		"INSERT INTO elliptic_curve_public_key (key_type, public_key) VALUES (?, ?)",
		uint8(k.Type), k.Bytes,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertIdentifiedCurvePublicKey(tx *sql.Tx, k curve.IdentifiedPublicKey) (int64, error) {
	keyID, err := insertCurvePublicKey(tx, k.PublicKey)
	if err != nil {
		return 0, err
	}
	res, err := tx.Exec(
		"INSERT INTO identified_elliptic_curve_public_key (uuid, elliptic_curve_public_key_id) VALUES (?, ?)",
		k.ID[:], keyID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertSignedCurvePrekey(tx *sql.Tx, k *pqxdh.SignedCurvePrekey) (int64, error) {
	identifiedID, err := insertIdentifiedCurvePublicKey(tx, k.IdentifiedPublicKey)
	if err != nil {
		return 0, err
	}
	res, err := tx.Exec(
		"INSERT INTO signed_curve_prekey (identified_public_key_id, signature) VALUES (?, ?)",
		identifiedID, k.Signature[:],
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertPQKEMPublicKey(tx *sql.Tx, k pqkem.PublicKey) (int64, error) {
	res, err := tx.Exec(
		"INSERT INTO pqkem_public_key (key_type, public_key) VALUES (?, ?)",
		uint8(k.Type), k.Bytes,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertIdentifiedPQKEMPublicKey(tx *sql.Tx, k pqkem.IdentifiedPublicKey) (int64, error) {
	keyID, err := insertPQKEMPublicKey(tx, k.PublicKey)
	if err != nil {
		return 0, err
	}
	res, err := tx.Exec(
		"INSERT INTO identified_pqkem_public_key (uuid, pqkem_public_key_id) VALUES (?, ?)",
		k.ID[:], keyID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertSignedPQKEMPrekey(tx *sql.Tx, k *pqxdh.SignedPQKEMPrekey) (int64, error) {
	identifiedID, err := insertIdentifiedPQKEMPublicKey(tx, k.IdentifiedPublicKey)
	if err != nil {
		return 0, err
	}
	res, err := tx.Exec(
		"INSERT INTO signed_pqkem_prekey (identified_public_key_id, signature) VALUES (?, ?)",
		identifiedID, k.Signature[:],
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// keyBundleID resolves a client UUID to its key bundle row.
func keyBundleID(q interface {
	QueryRow(query string, args ...any) *sql.Row
}, clientID uuid.UUID) (int64, error) {
	var id int64
	err := q.QueryRow("SELECT key_bundle_id FROM clients WHERE client_uuid = ?", clientID[:]).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrClientNotFound
	}
	return id, err
}

// ===== CLIENT RECORDS =====

// AddClient registers a client with its full public bundle.
func (s *ServerStore) AddClient(clientID uuid.UUID, record *ClientRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := keyBundleID(tx, clientID); err == nil {
		return ErrClientExists
	} else if !errors.Is(err, ErrClientNotFound) {
		return err
	}

	identityID, err := insertCurvePublicKey(tx, record.IdentityKey)
	if err != nil {
		return err
	}
	signedCurveID, err := insertSignedCurvePrekey(tx, &record.SignedCurvePrekey)
	if err != nil {
		return err
	}
	signedLastResortID, err := insertSignedPQKEMPrekey(tx, &record.SignedLastResortPQKEMPrekey)
	if err != nil {
		return err
	}

	res, err := tx.Exec(
		`INSERT INTO key_bundle (
			identity_key_id, identity_key_timestamp,
			signed_curve_prekey_id, signed_curve_prekey_timestamp,
			signed_last_resort_pqkem_prekey_id, signed_last_resort_pqkem_prekey_timestamp
		) VALUES (?, ?, ?, ?, ?, ?)`,
		identityID, timeToMillis(record.IdentityKeyCreatedAt),
		signedCurveID, timeToMillis(record.SignedCurvePrekeyUpdatedAt),
		signedLastResortID, timeToMillis(record.SignedLastResortPQKEMPrekeyUpdatedAt),
	)
	if err != nil {
		return err
	}
	bundleID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(
		"INSERT INTO clients (client_uuid, key_bundle_id) VALUES (?, ?)",
		clientID[:], bundleID,
	); err != nil {
		return err
	}

	for i := range record.OneTimeCurvePrekeys.Prekeys {
		prekeyID, err := insertIdentifiedCurvePublicKey(tx, record.OneTimeCurvePrekeys.Prekeys[i])
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			"INSERT INTO one_time_curve_prekey (prekey_id, key_bundle_id) VALUES (?, ?)",
			prekeyID, bundleID,
		); err != nil {
			return err
		}
	}

	for i := range record.SignedOneTimePQKEMPrekeys.Prekeys {
		prekeyID, err := insertSignedPQKEMPrekey(tx, &record.SignedOneTimePQKEMPrekeys.Prekeys[i])
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			"INSERT INTO signed_one_time_pqkem_prekey (prekey_id, key_bundle_id) VALUES (?, ?)",
			prekeyID, bundleID,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetClient loads the full record for a registered client.
func (s *ServerStore) GetClient(clientID uuid.UUID) (*ClientRecord, error) {
	bundleID, err := keyBundleID(s.db, clientID)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRow(`SELECT
		ik.key_type, ik.public_key, kb.identity_key_timestamp,
		ciek.uuid, cpk.key_type, cpk.public_key, scp.signature, kb.signed_curve_prekey_timestamp,
		pik.uuid, ppk.key_type, ppk.public_key, spp.signature, kb.signed_last_resort_pqkem_prekey_timestamp
	FROM key_bundle kb
	JOIN elliptic_curve_public_key ik ON kb.identity_key_id = ik.id
	JOIN signed_curve_prekey scp ON kb.signed_curve_prekey_id = scp.id
	JOIN identified_elliptic_curve_public_key ciek ON scp.identified_public_key_id = ciek.id
	JOIN elliptic_curve_public_key cpk ON ciek.elliptic_curve_public_key_id = cpk.id
	JOIN signed_pqkem_prekey spp ON kb.signed_last_resort_pqkem_prekey_id = spp.id
	JOIN identified_pqkem_public_key pik ON spp.identified_public_key_id = pik.id
	JOIN pqkem_public_key ppk ON pik.pqkem_public_key_id = ppk.id
	WHERE kb.id = ?`, bundleID)

	var (
		identityType, curveType, kemType    uint8
		identityBytes, curveBytes, kemBytes []byte
		curveUUID, kemUUID                  []byte
		curveSig, kemSig                    []byte
		identityTS, curveTS, kemTS          int64
	)
	if err := row.Scan(
		&identityType, &identityBytes, &identityTS,
		&curveUUID, &curveType, &curveBytes, &curveSig, &curveTS,
		&kemUUID, &kemType, &kemBytes, &kemSig, &kemTS,
	); err != nil {
		return nil, err
	}

	identity, err := curve.NewPublicKey(identityType, identityBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: identity key: %w", ErrBadKeyRow, err)
	}

	signedCurve, err := scanSignedCurvePrekey(curveUUID, curveType, curveBytes, curveSig)
	if err != nil {
		return nil, err
	}
	signedLastResort, err := scanSignedPQKEMPrekey(kemUUID, kemType, kemBytes, kemSig)
	if err != nil {
		return nil, err
	}

	record := &ClientRecord{
		IdentityKey:                          identity,
		IdentityKeyCreatedAt:                 millisToTime(identityTS),
		SignedCurvePrekey:                    signedCurve,
		SignedCurvePrekeyUpdatedAt:           millisToTime(curveTS),
		SignedLastResortPQKEMPrekey:          signedLastResort,
		SignedLastResortPQKEMPrekeyUpdatedAt: millisToTime(kemTS),
	}

	if record.OneTimeCurvePrekeys, err = s.oneTimeCurvePrekeySet(bundleID); err != nil {
		return nil, err
	}
	if record.SignedOneTimePQKEMPrekeys, err = s.signedOneTimePQKEMPrekeySet(bundleID); err != nil {
		return nil, err
	}

	return record, nil
}

func scanSignedCurvePrekey(rawUUID []byte, keyType uint8, keyBytes, sig []byte) (pqxdh.SignedCurvePrekey, error) {
	id, err := uuid.FromBytes(rawUUID)
	if err != nil {
		return pqxdh.SignedCurvePrekey{}, fmt.Errorf("%w: signed curve prekey uuid: %w", ErrBadKeyRow, err)
	}
	pk, err := curve.NewPublicKey(keyType, keyBytes)
	if err != nil {
		return pqxdh.SignedCurvePrekey{}, fmt.Errorf("%w: signed curve prekey: %w", ErrBadKeyRow, err)
	}
	if len(sig) != 64 {
		return pqxdh.SignedCurvePrekey{}, fmt.Errorf("%w: signed curve prekey signature", ErrBadKeyRow)
	}
	prekey := pqxdh.SignedCurvePrekey{
		IdentifiedPublicKey: curve.IdentifiedPublicKey{ID: id, PublicKey: pk},
	}
	copy(prekey.Signature[:], sig)
	return prekey, nil
}

func scanSignedPQKEMPrekey(rawUUID []byte, keyType uint8, keyBytes, sig []byte) (pqxdh.SignedPQKEMPrekey, error) {
	id, err := uuid.FromBytes(rawUUID)
	if err != nil {
		return pqxdh.SignedPQKEMPrekey{}, fmt.Errorf("%w: signed pqkem prekey uuid: %w", ErrBadKeyRow, err)
	}
	pk, err := pqkem.NewPublicKey(keyType, keyBytes)
	if err != nil {
		return pqxdh.SignedPQKEMPrekey{}, fmt.Errorf("%w: signed pqkem prekey: %w", ErrBadKeyRow, err)
	}
	if len(sig) != 64 {
		return pqxdh.SignedPQKEMPrekey{}, fmt.Errorf("%w: signed pqkem prekey signature", ErrBadKeyRow)
	}
	prekey := pqxdh.SignedPQKEMPrekey{
		IdentifiedPublicKey: pqkem.IdentifiedPublicKey{ID: id, PublicKey: pk},
	}
	copy(prekey.Signature[:], sig)
	return prekey, nil
}

func (s *ServerStore) oneTimeCurvePrekeySet(bundleID int64) (pqxdh.OneTimeCurvePrekeySet, error) {
	rows, err := s.db.Query(`SELECT iec.uuid, ec.key_type, ec.public_key
	FROM one_time_curve_prekey otcp
	JOIN identified_elliptic_curve_public_key iec ON otcp.prekey_id = iec.id
	JOIN elliptic_curve_public_key ec ON iec.elliptic_curve_public_key_id = ec.id
	WHERE otcp.key_bundle_id = ?`, bundleID)
	if err != nil {
		return pqxdh.OneTimeCurvePrekeySet{}, err
	}
	defer rows.Close()

	var set pqxdh.OneTimeCurvePrekeySet
	for rows.Next() {
		var (
			rawUUID, keyBytes []byte
			keyType           uint8
		)
		if err := rows.Scan(&rawUUID, &keyType, &keyBytes); err != nil {
			return pqxdh.OneTimeCurvePrekeySet{}, err
		}
		id, err := uuid.FromBytes(rawUUID)
		if err != nil {
			return pqxdh.OneTimeCurvePrekeySet{}, fmt.Errorf("%w: one-time curve prekey uuid: %w", ErrBadKeyRow, err)
		}
		pk, err := curve.NewPublicKey(keyType, keyBytes)
		if err != nil {
			return pqxdh.OneTimeCurvePrekeySet{}, fmt.Errorf("%w: one-time curve prekey: %w", ErrBadKeyRow, err)
		}
		set.Prekeys = append(set.Prekeys, curve.IdentifiedPublicKey{ID: id, PublicKey: pk})
	}
	return set, rows.Err()
}

func (s *ServerStore) signedOneTimePQKEMPrekeySet(bundleID int64) (pqxdh.SignedOneTimePQKEMPrekeySet, error) {
	rows, err := s.db.Query(`SELECT ip.uuid, pk.key_type, pk.public_key, spp.signature
	FROM signed_one_time_pqkem_prekey sotpp
	JOIN signed_pqkem_prekey spp ON sotpp.prekey_id = spp.id
	JOIN identified_pqkem_public_key ip ON spp.identified_public_key_id = ip.id
	JOIN pqkem_public_key pk ON ip.pqkem_public_key_id = pk.id
	WHERE sotpp.key_bundle_id = ?`, bundleID)
	if err != nil {
		return pqxdh.SignedOneTimePQKEMPrekeySet{}, err
	}
	defer rows.Close()

	var set pqxdh.SignedOneTimePQKEMPrekeySet
	for rows.Next() {
		var (
			rawUUID, keyBytes, sig []byte
			keyType                uint8
		)
		if err := rows.Scan(&rawUUID, &keyType, &keyBytes, &sig); err != nil {
			return pqxdh.SignedOneTimePQKEMPrekeySet{}, err
		}
		prekey, err := scanSignedPQKEMPrekey(rawUUID, keyType, keyBytes, sig)
		if err != nil {
			return pqxdh.SignedOneTimePQKEMPrekeySet{}, err
		}
		set.Prekeys = append(set.Prekeys, prekey)
	}
	return set, rows.Err()
}

// ===== SINGLE-SLOT UPDATES =====

// UpdateSignedCurvePrekey rotates the signed curve prekey and refreshes its
// timestamp. Old key rows are reclaimed in the same transaction.
func (s *ServerStore) UpdateSignedCurvePrekey(clientID uuid.UUID, newKey *pqxdh.SignedCurvePrekey, timestamp time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	bundleID, err := keyBundleID(tx, clientID)
	if err != nil {
		return err
	}

	var oldPrekeyID, oldIdentifiedID, oldKeyID int64
	if err := tx.QueryRow(`SELECT scp.id, iec.id, iec.elliptic_curve_public_key_id
	FROM key_bundle kb
	JOIN signed_curve_prekey scp ON kb.signed_curve_prekey_id = scp.id
	JOIN identified_elliptic_curve_public_key iec ON scp.identified_public_key_id = iec.id
	WHERE kb.id = ?`, bundleID).Scan(&oldPrekeyID, &oldIdentifiedID, &oldKeyID); err != nil {
		return err
	}

	newID, err := insertSignedCurvePrekey(tx, newKey)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(
		"UPDATE key_bundle SET signed_curve_prekey_id = ?, signed_curve_prekey_timestamp = ? WHERE id = ?",
		newID, timeToMillis(timestamp), bundleID,
	); err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM signed_curve_prekey WHERE id = ?", oldPrekeyID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM identified_elliptic_curve_public_key WHERE id = ?", oldIdentifiedID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM elliptic_curve_public_key WHERE id = ?", oldKeyID); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateSignedLastResortPQKEMPrekey rotates the last resort prekey slot.
func (s *ServerStore) UpdateSignedLastResortPQKEMPrekey(clientID uuid.UUID, newKey *pqxdh.SignedPQKEMPrekey, timestamp time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	bundleID, err := keyBundleID(tx, clientID)
	if err != nil {
		return err
	}

	var oldPrekeyID, oldIdentifiedID, oldKeyID int64
	if err := tx.QueryRow(`SELECT spp.id, ip.id, ip.pqkem_public_key_id
	FROM key_bundle kb
	JOIN signed_pqkem_prekey spp ON kb.signed_last_resort_pqkem_prekey_id = spp.id
	JOIN identified_pqkem_public_key ip ON spp.identified_public_key_id = ip.id
	WHERE kb.id = ?`, bundleID).Scan(&oldPrekeyID, &oldIdentifiedID, &oldKeyID); err != nil {
		return err
	}

	newID, err := insertSignedPQKEMPrekey(tx, newKey)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(
		"UPDATE key_bundle SET signed_last_resort_pqkem_prekey_id = ?, signed_last_resort_pqkem_prekey_timestamp = ? WHERE id = ?",
		newID, timeToMillis(timestamp), bundleID,
	); err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM signed_pqkem_prekey WHERE id = ?", oldPrekeyID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM identified_pqkem_public_key WHERE id = ?", oldIdentifiedID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM pqkem_public_key WHERE id = ?", oldKeyID); err != nil {
		return err
	}

	return tx.Commit()
}

// ===== POOL APPENDS =====

// AddOneTimeCurvePrekeys appends a batch to the one-time curve pool.
func (s *ServerStore) AddOneTimeCurvePrekeys(clientID uuid.UUID, newKeys *pqxdh.OneTimeCurvePrekeySet) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	bundleID, err := keyBundleID(tx, clientID)
	if err != nil {
		return err
	}

	for i := range newKeys.Prekeys {
		prekeyID, err := insertIdentifiedCurvePublicKey(tx, newKeys.Prekeys[i])
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			"INSERT INTO one_time_curve_prekey (prekey_id, key_bundle_id) VALUES (?, ?)",
			prekeyID, bundleID,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// AddSignedOneTimePQKEMPrekeys appends a batch to the one-time PQKEM pool.
func (s *ServerStore) AddSignedOneTimePQKEMPrekeys(clientID uuid.UUID, newKeys *pqxdh.SignedOneTimePQKEMPrekeySet) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	bundleID, err := keyBundleID(tx, clientID)
	if err != nil {
		return err
	}

	for i := range newKeys.Prekeys {
		prekeyID, err := insertSignedPQKEMPrekey(tx, &newKeys.Prekeys[i])
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			"INSERT INTO signed_one_time_pqkem_prekey (prekey_id, key_bundle_id) VALUES (?, ?)",
			prekeyID, bundleID,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ===== ATOMIC POPS =====

// PopOneTimeCurvePrekey removes and returns one one-time curve prekey, or
// nil when the pool is empty.
func (s *ServerStore) PopOneTimeCurvePrekey(clientID uuid.UUID) (*curve.IdentifiedPublicKey, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	bundleID, err := keyBundleID(tx, clientID)
	if err != nil {
		return nil, err
	}

	var (
		poolRowID, identifiedID, keyID int64
		rawUUID, keyBytes              []byte
		keyType                        uint8
	)
	err = tx.QueryRow(`SELECT otcp.id, iec.id, ec.id, iec.uuid, ec.key_type, ec.public_key
	FROM one_time_curve_prekey otcp
	JOIN identified_elliptic_curve_public_key iec ON otcp.prekey_id = iec.id
	JOIN elliptic_curve_public_key ec ON iec.elliptic_curve_public_key_id = ec.id
	WHERE otcp.key_bundle_id = ?
	ORDER BY otcp.id LIMIT 1`, bundleID).Scan(&poolRowID, &identifiedID, &keyID, &rawUUID, &keyType, &keyBytes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	id, err := uuid.FromBytes(rawUUID)
	if err != nil {
		return nil, fmt.Errorf("%w: one-time curve prekey uuid: %w", ErrBadKeyRow, err)
	}
	pk, err := curve.NewPublicKey(keyType, keyBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: one-time curve prekey: %w", ErrBadKeyRow, err)
	}

	if _, err := tx.Exec("DELETE FROM one_time_curve_prekey WHERE id = ?", poolRowID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec("DELETE FROM identified_elliptic_curve_public_key WHERE id = ?", identifiedID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec("DELETE FROM elliptic_curve_public_key WHERE id = ?", keyID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &curve.IdentifiedPublicKey{ID: id, PublicKey: pk}, nil
}

// PopSignedOneTimePQKEMPrekey removes and returns one signed one-time
// PQKEM prekey, or nil when the pool is empty.
func (s *ServerStore) PopSignedOneTimePQKEMPrekey(clientID uuid.UUID) (*pqxdh.SignedPQKEMPrekey, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	bundleID, err := keyBundleID(tx, clientID)
	if err != nil {
		return nil, err
	}

	var (
		poolRowID, prekeyID, identifiedID, keyID int64
		rawUUID, keyBytes, sig                   []byte
		keyType                                  uint8
	)
	err = tx.QueryRow(`SELECT sotpp.id, spp.id, ip.id, pk.id, ip.uuid, pk.key_type, pk.public_key, spp.signature
	FROM signed_one_time_pqkem_prekey sotpp
	JOIN signed_pqkem_prekey spp ON sotpp.prekey_id = spp.id
	JOIN identified_pqkem_public_key ip ON spp.identified_public_key_id = ip.id
	JOIN pqkem_public_key pk ON ip.pqkem_public_key_id = pk.id
	WHERE sotpp.key_bundle_id = ?
	ORDER BY sotpp.id LIMIT 1`, bundleID).Scan(&poolRowID, &prekeyID, &identifiedID, &keyID, &rawUUID, &keyType, &keyBytes, &sig)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	prekey, err := scanSignedPQKEMPrekey(rawUUID, keyType, keyBytes, sig)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec("DELETE FROM signed_one_time_pqkem_prekey WHERE id = ?", poolRowID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec("DELETE FROM signed_pqkem_prekey WHERE id = ?", prekeyID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec("DELETE FROM identified_pqkem_public_key WHERE id = ?", identifiedID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec("DELETE FROM pqkem_public_key WHERE id = ?", keyID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &prekey, nil
}
