package store

import "database/sql"

// Schema is the complete announcement schema.
const Schema = `
CREATE TABLE IF NOT EXISTS announcements (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id      TEXT NOT NULL UNIQUE,
    dept_id         TEXT NOT NULL,
    title           TEXT NOT NULL DEFAULT '',
    link            TEXT NOT NULL DEFAULT '',
    description     TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL DEFAULT 'pending',
    budget_amount   REAL,
    quantity        INTEGER,
    duration_years  INTEGER,
    duration_months INTEGER,
    submission_date TEXT,
    contact_phone   TEXT,
    contact_email   TEXT,
    document_path   TEXT,
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_announcements_project ON announcements(project_id);
CREATE INDEX IF NOT EXISTS idx_announcements_dept ON announcements(dept_id);
CREATE INDEX IF NOT EXISTS idx_announcements_status ON announcements(status);
CREATE INDEX IF NOT EXISTS idx_announcements_created ON announcements(created_at DESC);
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
