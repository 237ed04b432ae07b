package history

import "database/sql"

// InitSchema ensures the DB has the tables needed for the run ledger.
func InitSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
            id TEXT PRIMARY KEY,
            kind TEXT NOT NULL,
            channel TEXT,
            target INTEGER DEFAULT 0,
            filter INTEGER DEFAULT 0,
            quality TEXT,
            format TEXT,
            discovered INTEGER DEFAULT 0,
            successful INTEGER DEFAULT 0,
            failed INTEGER DEFAULT 0,
            total INTEGER DEFAULT 0,
            error TEXT,
            started_at TEXT NOT NULL,
            finished_at TEXT
        )`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE TABLE IF NOT EXISTS submissions (
            run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
            seq INTEGER NOT NULL,
            url TEXT NOT NULL,
            quality TEXT,
            succeeded INTEGER NOT NULL,
            error TEXT,
            submitted_at TEXT NOT NULL,
            PRIMARY KEY (run_id, seq)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_url ON submissions(url)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
