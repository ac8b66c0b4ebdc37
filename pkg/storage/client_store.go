package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/prekeynet/prekey-node/pkg/crypto/curve"
	"github.com/prekeynet/prekey-node/pkg/crypto/pqkem"
	"github.com/prekeynet/prekey-node/pkg/pqxdh"
)

// ClientStore persists the client's private bundle. All mutations run in
// transactions so a crash never leaves a half-written bundle behind.
type ClientStore struct {
	db *sql.DB
}

// NewClientStore opens the client database under rootPath.
func NewClientStore(applicationName, rootPath string) (*ClientStore, error) {
	db, err := openDatabase(rootPath, applicationName)
	if err != nil {
		return nil, err
	}
	return &ClientStore{db: db}, nil
}

// InitClient creates or validates the client schema.
func (s *ClientStore) InitClient() error {
	return initSchema(s.db, clientSchema, clientSchemaVersion)
}

// Close releases the database handle.
func (s *ClientStore) Close() error {
	return s.db.Close()
}

// ContainsClient reports whether a client row exists.
func (s *ClientStore) ContainsClient() (bool, error) {
	var id int64
	err := s.db.QueryRow("SELECT id FROM client LIMIT 1").Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetClientUUID returns the stored client UUID.
func (s *ClientStore) GetClientUUID() (uuid.UUID, error) {
	var raw []byte
	err := s.db.QueryRow("SELECT uuid FROM client LIMIT 1").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.UUID{}, ErrNoClient
	}
	if err != nil {
		return uuid.UUID{}, err
	}
	return uuid.FromBytes(raw)
}

// ===== ROW HELPERS =====

func insertCurveKeyPair(tx *sql.Tx, kp *curve.KeyPair) (int64, error) {
	res, err := tx.Exec(
		"INSERT INTO elliptic_curve_keypair (key_type, public_key, private_key) VALUES (?, ?, ?)",
		uint8(kp.Type), kp.PublicKey.Bytes, kp.PrivateKey.Bytes,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertIdentifiedCurveKeyPair(tx *sql.Tx, ikp *curve.IdentifiedKeyPair) (int64, error) {
	keyID, err := insertCurveKeyPair(tx, &ikp.KeyPair)
	if err != nil {
		return 0, err
	}
	res, err := tx.Exec(
		"INSERT INTO identified_elliptic_curve_keypair (uuid, elliptic_curve_keypair_id) VALUES (?, ?)",
		ikp.ID[:], keyID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertPQKEMKeyPair(tx *sql.Tx, kp *pqkem.KeyPair) (int64, error) {
	res, err := tx.Exec(
		"INSERT INTO pqkem_keypair (key_type, public_key, private_key) VALUES (?, ?, ?)",
		uint8(kp.Type), kp.PublicKey.Bytes, kp.PrivateKey.Bytes,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertIdentifiedPQKEMKeyPair(tx *sql.Tx, ikp *pqkem.IdentifiedKeyPair) (int64, error) {
	keyID, err := insertPQKEMKeyPair(tx, &ikp.KeyPair)
	if err != nil {
		return 0, err
	}
	res, err := tx.Exec(
		"INSERT INTO identified_pqkem_keypair (uuid, pqkem_keypair_id) VALUES (?, ?)",
		ikp.ID[:], keyID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// clientRowID returns the primary key of the singleton client row.
func (s *ClientStore) clientRowID(tx *sql.Tx) (int64, error) {
	var id int64
	err := tx.QueryRow("SELECT id FROM client LIMIT 1").Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoClient
	}
	return id, err
}

// CreateClient persists a fresh client UUID and private bundle atomically.
func (s *ClientStore) CreateClient(clientID uuid.UUID, bundle *pqxdh.PrivateBundle) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	identityID, err := insertCurveKeyPair(tx, &bundle.IdentityKey)
	if err != nil {
		return err
	}
	curvePrekeyID, err := insertIdentifiedCurveKeyPair(tx, &bundle.CurvePrekey)
	if err != nil {
		return err
	}
	lastResortID, err := insertIdentifiedPQKEMKeyPair(tx, &bundle.LastResortPrekey)
	if err != nil {
		return err
	}

	res, err := tx.Exec(
		"INSERT INTO client (uuid, identity_key_id, curve_prekey_id, last_resort_prekey_id) VALUES (?, ?, ?, ?)",
		clientID[:], identityID, curvePrekeyID, lastResortID,
	)
	if err != nil {
		return err
	}
	clientRowID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for i := range bundle.OneTimeCurvePrekeys {
		prekeyID, err := insertIdentifiedCurveKeyPair(tx, &bundle.OneTimeCurvePrekeys[i])
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			"INSERT INTO one_time_curve_prekey (client_id, identified_elliptic_curve_keypair_id) VALUES (?, ?)",
			clientRowID, prekeyID,
		); err != nil {
			return err
		}
	}

	for i := range bundle.OneTimePQKEMPrekeys {
		prekeyID, err := insertIdentifiedPQKEMKeyPair(tx, &bundle.OneTimePQKEMPrekeys[i])
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			"INSERT INTO one_time_pqkem_prekey (client_id, identified_pqkem_keypair_id) VALUES (?, ?)",
			clientRowID, prekeyID,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetPrivateKeyBundle loads the full private bundle. The caller owns the
// returned copy and should zero it when done.
func (s *ClientStore) GetPrivateKeyBundle() (*pqxdh.PrivateBundle, error) {
	row := s.db.QueryRow(`SELECT
		ec.key_type, ec.public_key, ec.private_key,
		iek.uuid, ec2.key_type, ec2.public_key, ec2.private_key,
		ipk.uuid, pk.key_type, pk.public_key, pk.private_key
	FROM client c
	JOIN elliptic_curve_keypair ec ON c.identity_key_id = ec.id
	JOIN identified_elliptic_curve_keypair iek ON c.curve_prekey_id = iek.id
	JOIN elliptic_curve_keypair ec2 ON iek.elliptic_curve_keypair_id = ec2.id
	JOIN identified_pqkem_keypair ipk ON c.last_resort_prekey_id = ipk.id
	JOIN pqkem_keypair pk ON ipk.pqkem_keypair_id = pk.id`)

	var (
		identityType, curveType, kemType uint8
		identityPub, identityPriv        []byte
		curveUUID, curvePub, curvePriv   []byte
		kemUUID, kemPub, kemPriv         []byte
	)
	err := row.Scan(
		&identityType, &identityPub, &identityPriv,
		&curveUUID, &curveType, &curvePub, &curvePriv,
		&kemUUID, &kemType, &kemPub, &kemPriv,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoClient
	}
	if err != nil {
		return nil, err
	}

	identity, err := curve.NewKeyPair(identityType, identityPub, identityPriv)
	if err != nil {
		return nil, fmt.Errorf("%w: identity key: %w", ErrBadKeyRow, err)
	}

	curvePrekey, err := curve.NewKeyPair(curveType, curvePub, curvePriv)
	if err != nil {
		return nil, fmt.Errorf("%w: curve prekey: %w", ErrBadKeyRow, err)
	}
	curvePrekeyID, err := uuid.FromBytes(curveUUID)
	if err != nil {
		return nil, fmt.Errorf("%w: curve prekey uuid: %w", ErrBadKeyRow, err)
	}

	lastResort, err := pqkem.NewKeyPair(kemType, kemPub, kemPriv)
	if err != nil {
		return nil, fmt.Errorf("%w: last resort prekey: %w", ErrBadKeyRow, err)
	}
	lastResortID, err := uuid.FromBytes(kemUUID)
	if err != nil {
		return nil, fmt.Errorf("%w: last resort prekey uuid: %w", ErrBadKeyRow, err)
	}

	bundle := &pqxdh.PrivateBundle{
		IdentityKey:      identity,
		CurvePrekey:      curve.IdentifiedKeyPair{ID: curvePrekeyID, KeyPair: curvePrekey},
		LastResortPrekey: pqkem.IdentifiedKeyPair{ID: lastResortID, KeyPair: lastResort},
	}

	if bundle.OneTimeCurvePrekeys, err = s.oneTimeCurvePrekeys(); err != nil {
		return nil, err
	}
	if bundle.OneTimePQKEMPrekeys, err = s.oneTimePQKEMPrekeys(); err != nil {
		return nil, err
	}

	return bundle, nil
}

func (s *ClientStore) oneTimeCurvePrekeys() ([]curve.IdentifiedKeyPair, error) {
	rows, err := s.db.Query(`SELECT iec.uuid, ec.key_type, ec.public_key, ec.private_key
	FROM one_time_curve_prekey otcp
	JOIN identified_elliptic_curve_keypair iec ON otcp.identified_elliptic_curve_keypair_id = iec.id
	JOIN elliptic_curve_keypair ec ON iec.elliptic_curve_keypair_id = ec.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []curve.IdentifiedKeyPair
	for rows.Next() {
		var (
			rawUUID, pub, priv []byte
			keyType            uint8
		)
		if err := rows.Scan(&rawUUID, &keyType, &pub, &priv); err != nil {
			return nil, err
		}
		id, err := uuid.FromBytes(rawUUID)
		if err != nil {
			return nil, fmt.Errorf("%w: one-time curve prekey uuid: %w", ErrBadKeyRow, err)
		}
		kp, err := curve.NewKeyPair(keyType, pub, priv)
		if err != nil {
			return nil, fmt.Errorf("%w: one-time curve prekey: %w", ErrBadKeyRow, err)
		}
		out = append(out, curve.IdentifiedKeyPair{ID: id, KeyPair: kp})
	}
	return out, rows.Err()
}

func (s *ClientStore) oneTimePQKEMPrekeys() ([]pqkem.IdentifiedKeyPair, error) {
	rows, err := s.db.Query(`SELECT ip.uuid, pk.key_type, pk.public_key, pk.private_key
	FROM one_time_pqkem_prekey otpp
	JOIN identified_pqkem_keypair ip ON otpp.identified_pqkem_keypair_id = ip.id
	JOIN pqkem_keypair pk ON ip.pqkem_keypair_id = pk.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pqkem.IdentifiedKeyPair
	for rows.Next() {
		var (
			rawUUID, pub, priv []byte
			keyType            uint8
		)
		if err := rows.Scan(&rawUUID, &keyType, &pub, &priv); err != nil {
			return nil, err
		}
		id, err := uuid.FromBytes(rawUUID)
		if err != nil {
			return nil, fmt.Errorf("%w: one-time pqkem prekey uuid: %w", ErrBadKeyRow, err)
		}
		kp, err := pqkem.NewKeyPair(keyType, pub, priv)
		if err != nil {
			return nil, fmt.Errorf("%w: one-time pqkem prekey: %w", ErrBadKeyRow, err)
		}
		out = append(out, pqkem.IdentifiedKeyPair{ID: id, KeyPair: kp})
	}
	return out, rows.Err()
}

// UpdateCurveSignedPrekey replaces the single curve prekey slot. The old
// key rows are reclaimed in the same transaction.
func (s *ClientStore) UpdateCurveSignedPrekey(newPrekey *curve.IdentifiedKeyPair) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	clientRowID, err := s.clientRowID(tx)
	if err != nil {
		return err
	}

	var oldIdentifiedID, oldKeyID int64
	if err := tx.QueryRow(`SELECT iek.id, iek.elliptic_curve_keypair_id
	FROM client c JOIN identified_elliptic_curve_keypair iek ON c.curve_prekey_id = iek.id
	WHERE c.id = ?`, clientRowID).Scan(&oldIdentifiedID, &oldKeyID); err != nil {
		return err
	}

	newID, err := insertIdentifiedCurveKeyPair(tx, newPrekey)
	if err != nil {
		return err
	}
	if _, err := tx.Exec("UPDATE client SET curve_prekey_id = ? WHERE id = ?", newID, clientRowID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM identified_elliptic_curve_keypair WHERE id = ?", oldIdentifiedID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM elliptic_curve_keypair WHERE id = ?", oldKeyID); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateLastResortPQKEMPrekey replaces the single last resort slot.
func (s *ClientStore) UpdateLastResortPQKEMPrekey(newPrekey *pqkem.IdentifiedKeyPair) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	clientRowID, err := s.clientRowID(tx)
	if err != nil {
		return err
	}

	var oldIdentifiedID, oldKeyID int64
	if err := tx.QueryRow(`SELECT ipk.id, ipk.pqkem_keypair_id
	FROM client c JOIN identified_pqkem_keypair ipk ON c.last_resort_prekey_id = ipk.id
	WHERE c.id = ?`, clientRowID).Scan(&oldIdentifiedID, &oldKeyID); err != nil {
		return err
	}

	newID, err := insertIdentifiedPQKEMKeyPair(tx, newPrekey)
	if err != nil {
		return err
	}
	if _, err := tx.Exec("UPDATE client SET last_resort_prekey_id = ? WHERE id = ?", newID, clientRowID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM identified_pqkem_keypair WHERE id = ?", oldIdentifiedID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM pqkem_keypair WHERE id = ?", oldKeyID); err != nil {
		return err
	}

	return tx.Commit()
}

// AddCurveOneTimePrekeys appends to the one-time curve pool. The UNIQUE
// uuid constraint rejects duplicate IDs.
func (s *ClientStore) AddCurveOneTimePrekeys(newPrekeys []curve.IdentifiedKeyPair) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	clientRowID, err := s.clientRowID(tx)
	if err != nil {
		return err
	}

	for i := range newPrekeys {
		prekeyID, err := insertIdentifiedCurveKeyPair(tx, &newPrekeys[i])
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			"INSERT INTO one_time_curve_prekey (client_id, identified_elliptic_curve_keypair_id) VALUES (?, ?)",
			clientRowID, prekeyID,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// AddSignedPQKEMPrekeys appends to the one-time PQKEM pool.
func (s *ClientStore) AddSignedPQKEMPrekeys(newPrekeys []pqkem.IdentifiedKeyPair) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	clientRowID, err := s.clientRowID(tx)
	if err != nil {
		return err
	}

	for i := range newPrekeys {
		prekeyID, err := insertIdentifiedPQKEMKeyPair(tx, &newPrekeys[i])
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			"INSERT INTO one_time_pqkem_prekey (client_id, identified_pqkem_keypair_id) VALUES (?, ?)",
			clientRowID, prekeyID,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}
