// Package database provides SQLite connectivity for ScopeLink Core.
//
// It owns:
//   - Opening the database file with WAL mode and a busy timeout
//   - Embedded, version-ordered schema migrations
//   - Health checks for the startup sequence
//
// The store package layers the namespaced key/value persistence on top of
// the *sql.DB exposed here.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive-only. Each file is named
// YYYYMMDD_HHMMSS_description.up.sql and applied in its own transaction.
package database
