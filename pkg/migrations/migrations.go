package migrations

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

func wrapOpenDB(err error) error {
	return fmt.Errorf("open db: %w", err)
}

var remotePrefixes = []string{
	"libsql://",
	"http://",
	"https://",
	"ws://",
	"wss://",
}

// IsRemote reports whether path points to a remote libsql database.
func IsRemote(path string) bool {
	for _, prefix := range remotePrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// OpenDB opens a local sqlite database at path (creating parent directories),
// or a remote libsql database when path is a libsql/http(s)/ws(s) url. authToken
// is only used for remote databases.
func OpenDB(path, authToken string) (*sql.DB, error) {
	if IsRemote(path) {
		return openRemote(path, authToken)
	}

	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0777)
		if err != nil {
			return nil, wrapOpenDB(err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrapOpenDB(err)
	}

	// sqlite only allows a single writer, see
	// https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return nil, wrapOpenDB(err)
	}
	_, err = db.Exec("PRAGMA foreign_keys=ON")
	if err != nil {
		return nil, wrapOpenDB(err)
	}

	return db, nil
}

func openRemote(path, authToken string) (*sql.DB, error) {
	dsn := path
	if authToken != "" {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn = fmt.Sprintf("%s%sauthToken=%s", dsn, sep, authToken)
	}

	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, wrapOpenDB(err)
	}
	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, wrapOpenDB(err)
	}
	return db, nil
}

// OpenAndMigrateDB opens the database and applies schema to it, every statement
// in schema must be idempotent (CREATE ... IF NOT EXISTS).
func OpenAndMigrateDB(schema, path, authToken string) (*sql.DB, error) {
	db, err := OpenDB(path, authToken)
	if err != nil {
		return nil, err
	}

	if IsRemote(path) {
		// the remote protocol executes one statement per request
		for _, stmt := range strings.Split(schema, ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			_, err = db.Exec(stmt)
			if err != nil {
				db.Close()
				return nil, fmt.Errorf("open and migrate db: %w", err)
			}
		}
		return db, nil
	}

	_, err = db.Exec(schema)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open and migrate db: %w", err)
	}
	return db, nil
}
