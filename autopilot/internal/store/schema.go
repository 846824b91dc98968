package store

import "database/sql"

// Schema is the complete autopilot schema.
const Schema = `
-- Tenant-owned content properties
CREATE TABLE IF NOT EXISTS sites (
    id                  TEXT PRIMARY KEY,
    org_id              TEXT NOT NULL DEFAULT '',
    name                TEXT NOT NULL DEFAULT '',
    domain              TEXT NOT NULL DEFAULT '',
    autopilot_enabled   INTEGER NOT NULL DEFAULT 0,
    cadence             TEXT NOT NULL DEFAULT 'weekly',
    effort_level        INTEGER NOT NULL DEFAULT 2,
    articles_per_run    INTEGER NOT NULL DEFAULT 1,
    pipeline_step       TEXT,
    pipeline_keyword_id TEXT,
    pipeline_article_id TEXT,
    next_run_at         INTEGER,
    last_run_at         INTEGER,
    last_error          TEXT NOT NULL DEFAULT '',
    created_at          INTEGER NOT NULL,
    updated_at          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sites_due ON sites(autopilot_enabled, next_run_at);

-- Keyword ledger: one row per (site, normalized term)
CREATE TABLE IF NOT EXISTS keywords (
    id                TEXT PRIMARY KEY,
    site_id           TEXT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
    term              TEXT NOT NULL,
    term_norm         TEXT NOT NULL,
    clicks            INTEGER,
    impressions       INTEGER,
    ctr               REAL,
    position          REAL,
    search_volume     INTEGER,
    competition       TEXT,
    competition_index REAL,
    opportunity       TEXT NOT NULL DEFAULT '',
    score             REAL NOT NULL DEFAULT 0,
    reasoning         TEXT NOT NULL DEFAULT '',
    action            TEXT NOT NULL DEFAULT '',
    cluster           TEXT NOT NULL DEFAULT '',
    status            TEXT NOT NULL DEFAULT 'active',
    created_at        INTEGER NOT NULL,
    updated_at        INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_keywords_site_term ON keywords(site_id, term_norm);
CREATE INDEX IF NOT EXISTS idx_keywords_best ON keywords(site_id, status, score DESC);

-- Articles produced from consumed keywords (written by the generation callback)
CREATE TABLE IF NOT EXISTS articles (
    id              TEXT PRIMARY KEY,
    site_id         TEXT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
    primary_keyword TEXT NOT NULL DEFAULT '',
    title           TEXT NOT NULL DEFAULT '',
    slug            TEXT NOT NULL DEFAULT '',
    category        TEXT NOT NULL DEFAULT '',
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_articles_site ON articles(site_id);

-- Content calendar: one row per (site, target date)
CREATE TABLE IF NOT EXISTS scheduled_runs (
    id           TEXT PRIMARY KEY,
    site_id      TEXT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
    run_date     TEXT NOT NULL,
    status       TEXT NOT NULL DEFAULT 'pending',
    keyword_id   TEXT,
    keyword_text TEXT NOT NULL DEFAULT '',
    error        TEXT NOT NULL DEFAULT '',
    created_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_scheduled_runs_site_date ON scheduled_runs(site_id, run_date);
CREATE INDEX IF NOT EXISTS idx_scheduled_runs_due ON scheduled_runs(status, run_date);
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
