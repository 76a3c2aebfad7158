package database

// schema ⭐ SSOT: 테이블 정의는 여기서만
// weekly_universes.payload 는 contracts.WeeklyUniverse JSON
var schema = []string{
	`CREATE TABLE IF NOT EXISTS weekly_universes (
		week_key    TEXT PRIMARY KEY,
		frozen      BOOLEAN NOT NULL DEFAULT FALSE,
		frozen_at   TIMESTAMPTZ,
		config_hash TEXT NOT NULL DEFAULT '',
		run_id      TEXT NOT NULL DEFAULT '',
		payload     JSONB NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS positions (
		id                  TEXT PRIMARY KEY,
		symbol              TEXT NOT NULL,
		strategy            TEXT NOT NULL,
		status              TEXT NOT NULL,
		entry_price         DOUBLE PRECISION NOT NULL,
		entry_time          TIMESTAMPTZ NOT NULL,
		quantity            DOUBLE PRECISION NOT NULL,
		high_water_mark     DOUBLE PRECISION NOT NULL,
		invalidation_reason TEXT NOT NULL DEFAULT '',
		closed_at           TIMESTAMPTZ,
		payload             JSONB NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`ALTER TABLE positions ADD COLUMN IF NOT EXISTS closed_at TIMESTAMPTZ`,
	`CREATE INDEX IF NOT EXISTS idx_positions_status ON positions (status)`,
	`CREATE INDEX IF NOT EXISTS idx_positions_closed_at ON positions (closed_at) WHERE status = 'CLOSED'`,
}
