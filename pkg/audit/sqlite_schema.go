package audit

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the decision log tables. Times are stored as Unix
// nanoseconds so both drivers compare them the same way.
const Schema = `
CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    request_id TEXT NOT NULL DEFAULT '',
    time_unix_nano INTEGER NOT NULL,
    duration_ns INTEGER NOT NULL DEFAULT 0,

    generation TEXT NOT NULL DEFAULT '',
    decision TEXT NOT NULL,
    rule TEXT NOT NULL DEFAULT '',
    reason TEXT NOT NULL DEFAULT '',
    backend TEXT NOT NULL DEFAULT '',
    errors TEXT NOT NULL DEFAULT '',

    method TEXT NOT NULL DEFAULT '',
    host TEXT NOT NULL DEFAULT '',
    path TEXT NOT NULL DEFAULT '',
    source_address TEXT NOT NULL DEFAULT '',

    provider TEXT NOT NULL DEFAULT '',
    model TEXT NOT NULL DEFAULT '',
    input_tokens INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_time ON decisions(time_unix_nano);
CREATE INDEX IF NOT EXISTS idx_decisions_decision ON decisions(decision);
CREATE INDEX IF NOT EXISTS idx_decisions_rule ON decisions(rule);
CREATE INDEX IF NOT EXISTS idx_decisions_request_id ON decisions(request_id);
`

// InsertSchemaVersion records the schema version.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the newest schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const recordColumns = `id, request_id, time_unix_nano, duration_ns,
	generation, decision, rule, reason, backend, errors,
	method, host, path, source_address,
	provider, model, input_tokens`
