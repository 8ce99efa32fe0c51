package repository

// Schema shared by both backends. Money columns are stored as exact decimal
// strings; elapsed times as integer milliseconds.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS cache_entries (
		id VARCHAR PRIMARY KEY,
		provider VARCHAR NOT NULL,
		function VARCHAR NOT NULL,
		param_hash VARCHAR NOT NULL,
		params VARCHAR NOT NULL,
		payload VARCHAR NOT NULL,
		success BOOLEAN NOT NULL,
		error VARCHAR NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cache_entries_key
		ON cache_entries (provider, function, param_hash, created_at)`,
	`CREATE TABLE IF NOT EXISTS briefings (
		id VARCHAR PRIMARY KEY,
		session_id VARCHAR NOT NULL,
		query VARCHAR NOT NULL,
		content VARCHAR NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS lineage_links (
		briefing_id VARCHAR NOT NULL,
		cache_entry_id VARCHAR NOT NULL,
		freshness_seconds DOUBLE NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_lineage_links_created
		ON lineage_links (created_at)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id VARCHAR PRIMARY KEY,
		query VARCHAR NOT NULL,
		history VARCHAR NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tool_calls (
		id VARCHAR PRIMARY KEY,
		session_id VARCHAR NOT NULL,
		tool VARCHAR NOT NULL,
		args VARCHAR NOT NULL,
		response_size BIGINT NOT NULL,
		elapsed_ms BIGINT NOT NULL,
		success BOOLEAN NOT NULL,
		error VARCHAR NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		agent_id VARCHAR PRIMARY KEY,
		cash_balance VARCHAR NOT NULL,
		initial_cash VARCHAR NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS holdings (
		agent_id VARCHAR NOT NULL,
		symbol VARCHAR NOT NULL,
		quantity VARCHAR NOT NULL,
		avg_cost VARCHAR NOT NULL,
		PRIMARY KEY (agent_id, symbol)
	)`,
	`CREATE TABLE IF NOT EXISTS trades (
		id VARCHAR PRIMARY KEY,
		seq BIGINT NOT NULL,
		agent_id VARCHAR NOT NULL,
		symbol VARCHAR NOT NULL,
		side VARCHAR NOT NULL,
		quantity VARCHAR NOT NULL,
		price VARCHAR NOT NULL,
		total VARCHAR NOT NULL,
		realized_pnl VARCHAR NOT NULL,
		rationale VARCHAR NOT NULL,
		status VARCHAR NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_agent_seq
		ON trades (agent_id, seq)`,
}
