// Package database holds the daemon's SQLite job store.
//
// Jobs survive daemon restarts, so the store opens in WAL mode (reads
// do not block behind the single writer), enforces foreign keys and
// keeps the file at 0600. Schema changes ship as embedded up/down SQL
// pairs applied by Migrate; keep them additive, with new columns
// nullable or defaulted, so a rollback never strands data.
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
