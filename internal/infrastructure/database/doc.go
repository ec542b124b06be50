// Package database provides the SQLite connection behind the transition
// journal.
//
// Connections run in WAL mode with a busy timeout and a single writer.
// Schema changes are versioned SQL files read from an fs.FS (normally the
// embedded migrations package):
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. Each migration runs in its own transaction.
package database
