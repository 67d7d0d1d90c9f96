package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openAt(t *testing.T, path string) *DB {
	t.Helper()
	db, err := Open(Config{Path: path, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return db
}

func openTemp(t *testing.T) *DB {
	t.Helper()
	return openAt(t, filepath.Join(t.TempDir(), "jobs.db"))
}

func TestOpen_CreatesFileAndDirectory(t *testing.T) {
	// Parent directories two levels deep should be created on demand.
	path := filepath.Join(t.TempDir(), "state", "db", "jobs.db")
	db := openAt(t, path)
	defer db.Close() //nolint:errcheck

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if got := db.Path(); got != path {
		t.Errorf("Path() = %v, want %v", got, path)
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTemp(t)
	defer db.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestClose_NilSafe(t *testing.T) {
	db := openTemp(t)
	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	db.DB = nil
	if err := db.Close(); err != nil {
		t.Errorf("Close() on nil handle error = %v", err)
	}
}

func TestExecAndQuery(t *testing.T) {
	db := openTemp(t)
	defer db.Close() //nolint:errcheck
	ctx := context.Background()

	if _, err := db.ExecContext(ctx,
		"CREATE TABLE renders (id INTEGER PRIMARY KEY, scene TEXT NOT NULL)"); err != nil {
		t.Fatalf("ExecContext() CREATE error = %v", err)
	}

	res, err := db.ExecContext(ctx, "INSERT INTO renders (scene) VALUES (?)", "plaza")
	if err != nil {
		t.Fatalf("ExecContext() INSERT error = %v", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		t.Errorf("RowsAffected() = %d, %v, want 1 row", n, err)
	}

	var scene string
	if err := db.QueryRowContext(ctx,
		"SELECT scene FROM renders WHERE id = 1").Scan(&scene); err != nil {
		t.Fatalf("QueryRowContext() error = %v", err)
	}
	if scene != "plaza" {
		t.Errorf("scene = %q, want %q", scene, "plaza")
	}
}

func TestBeginTx(t *testing.T) {
	db := openTemp(t)
	defer db.Close() //nolint:errcheck
	ctx := context.Background()

	if _, err := db.ExecContext(ctx,
		"CREATE TABLE tx_test (id INTEGER PRIMARY KEY, value TEXT)"); err != nil {
		t.Fatalf("creating table: %v", err)
	}

	countOf := func(value string) int {
		t.Helper()
		var n int
		if err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM tx_test WHERE value = ?", value).Scan(&n); err != nil {
			t.Fatalf("counting rows: %v", err)
		}
		return n
	}

	t.Run("commit persists", func(t *testing.T) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("BeginTx() error = %v", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO tx_test (value) VALUES (?)", "kept"); err != nil {
			t.Fatalf("insert in tx: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if n := countOf("kept"); n != 1 {
			t.Errorf("count = %d, want 1", n)
		}
	})

	t.Run("rollback discards", func(t *testing.T) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("BeginTx() error = %v", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO tx_test (value) VALUES (?)", "discarded"); err != nil {
			t.Fatalf("insert in tx: %v", err)
		}
		if err := tx.Rollback(); err != nil {
			t.Fatalf("Rollback() error = %v", err)
		}
		if n := countOf("discarded"); n != 0 {
			t.Errorf("count = %d, want 0", n)
		}
	})
}
