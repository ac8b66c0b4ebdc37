package storage

// Client-side schema: the private bundle. Key pairs keep private material,
// identified tables attach wire UUIDs, the client row pins the three
// single-valued slots and the one-time tables hold the pools.
const clientSchema = `
	CREATE TABLE IF NOT EXISTS elliptic_curve_keypair (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key_type INTEGER NOT NULL,
		public_key BLOB NOT NULL,
		private_key BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS identified_elliptic_curve_keypair (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid BLOB UNIQUE NOT NULL,
		elliptic_curve_keypair_id INTEGER NOT NULL REFERENCES elliptic_curve_keypair(id)
	);

	CREATE TABLE IF NOT EXISTS pqkem_keypair (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key_type INTEGER NOT NULL,
		public_key BLOB NOT NULL,
		private_key BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS identified_pqkem_keypair (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid BLOB UNIQUE NOT NULL,
		pqkem_keypair_id INTEGER NOT NULL REFERENCES pqkem_keypair(id)
	);

	CREATE TABLE IF NOT EXISTS client (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid BLOB UNIQUE NOT NULL,
		identity_key_id INTEGER NOT NULL REFERENCES elliptic_curve_keypair(id),
		curve_prekey_id INTEGER NOT NULL REFERENCES identified_elliptic_curve_keypair(id),
		last_resort_prekey_id INTEGER NOT NULL REFERENCES identified_pqkem_keypair(id)
	);

	CREATE TABLE IF NOT EXISTS one_time_curve_prekey (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id INTEGER NOT NULL REFERENCES client(id),
		identified_elliptic_curve_keypair_id INTEGER NOT NULL REFERENCES identified_elliptic_curve_keypair(id)
	);

	CREATE TABLE IF NOT EXISTS one_time_pqkem_prekey (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id INTEGER NOT NULL REFERENCES client(id),
		identified_pqkem_keypair_id INTEGER NOT NULL REFERENCES identified_pqkem_keypair(id)
	);
`

// Server-side schema: public bundles only. Timestamps are unix
// milliseconds and live on the key bundle row for the three single-valued
// slots.
const serverSchema = `
	CREATE TABLE IF NOT EXISTS elliptic_curve_public_key (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key_type INTEGER NOT NULL,
		public_key BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS identified_elliptic_curve_public_key (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid BLOB UNIQUE NOT NULL,
		elliptic_curve_public_key_id INTEGER NOT NULL REFERENCES elliptic_curve_public_key(id)
	);

	CREATE TABLE IF NOT EXISTS signed_curve_prekey (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		identified_public_key_id INTEGER NOT NULL REFERENCES identified_elliptic_curve_public_key(id),
		signature BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pqkem_public_key (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key_type INTEGER NOT NULL,
		public_key BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS identified_pqkem_public_key (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid BLOB UNIQUE NOT NULL,
		pqkem_public_key_id INTEGER NOT NULL REFERENCES pqkem_public_key(id)
	);

	CREATE TABLE IF NOT EXISTS signed_pqkem_prekey (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		identified_public_key_id INTEGER NOT NULL REFERENCES identified_pqkem_public_key(id),
		signature BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS key_bundle (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		identity_key_id INTEGER NOT NULL REFERENCES elliptic_curve_public_key(id),
		identity_key_timestamp INTEGER NOT NULL,
		signed_curve_prekey_id INTEGER NOT NULL REFERENCES signed_curve_prekey(id),
		signed_curve_prekey_timestamp INTEGER NOT NULL,
		signed_last_resort_pqkem_prekey_id INTEGER NOT NULL REFERENCES signed_pqkem_prekey(id),
		signed_last_resort_pqkem_prekey_timestamp INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS clients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_uuid BLOB UNIQUE NOT NULL,
		key_bundle_id INTEGER NOT NULL REFERENCES key_bundle(id)
	);

	CREATE TABLE IF NOT EXISTS one_time_curve_prekey (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		prekey_id INTEGER NOT NULL REFERENCES identified_elliptic_curve_public_key(id),
		key_bundle_id INTEGER NOT NULL REFERENCES key_bundle(id)
	);

	CREATE TABLE IF NOT EXISTS signed_one_time_pqkem_prekey (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		prekey_id INTEGER NOT NULL REFERENCES signed_pqkem_prekey(id),
		key_bundle_id INTEGER NOT NULL REFERENCES key_bundle(id)
	);
`
