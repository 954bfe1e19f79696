package store

const Schema = `
CREATE TABLE IF NOT EXISTS cache (
	key TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	expires_at TIMESTAMP
);
`
