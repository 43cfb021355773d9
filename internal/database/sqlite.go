package database

import (
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

func init() {
	Register("sqlite3", newSQLite)
}

// A local file has no connection to lose, statements are never retried.
func newSQLite(p Params) (Backend, error) {
	if p.SQLitePath == "" {
		return nil, fmt.Errorf("sqlite3: database file required")
	}
	return &sqlBackend{
		name:   "sqlite3",
		driver: "sqlite3",
		dsn:    p.SQLitePath,
	}, nil
}
