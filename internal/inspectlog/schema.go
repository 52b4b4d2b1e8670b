// Package inspectlog implements the inspect audit log subsystem.
// Entries are written asynchronously to rolling SQLite databases.
package inspectlog

// CreateDDL defines the schema for inspect log databases.
// Each rolling DB gets its own inspect_logs table.
const CreateDDL = `
CREATE TABLE IF NOT EXISTS inspect_logs (
	id           TEXT PRIMARY KEY,
	ts_ns        INTEGER NOT NULL,
	username     TEXT NOT NULL DEFAULT '',
	bot_index    INTEGER NOT NULL DEFAULT 0,
	link_hash    TEXT NOT NULL DEFAULT '',
	owner_id     TEXT NOT NULL DEFAULT '',
	market_id    TEXT NOT NULL DEFAULT '',
	asset_id     TEXT NOT NULL DEFAULT '',
	item_id      INTEGER NOT NULL DEFAULT 0,
	float_value  REAL NOT NULL DEFAULT 0,
	paint_seed   INTEGER NOT NULL DEFAULT 0,
	def_index    INTEGER NOT NULL DEFAULT 0,
	paint_index  INTEGER NOT NULL DEFAULT 0,
	duration_ns  INTEGER NOT NULL DEFAULT 0,
	ok           INTEGER NOT NULL DEFAULT 0,
	error_text   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_inspect_logs_ts_ns     ON inspect_logs(ts_ns);
CREATE INDEX IF NOT EXISTS idx_inspect_logs_username  ON inspect_logs(username);
CREATE INDEX IF NOT EXISTS idx_inspect_logs_link_hash ON inspect_logs(link_hash);
CREATE INDEX IF NOT EXISTS idx_inspect_logs_ok        ON inspect_logs(ok);
`
