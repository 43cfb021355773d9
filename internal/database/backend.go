// Package database runs the logging statements produced by the SQL handler
// against one of the supported backends.
package database

import (
	"context"
	"strings"
)

// Conn is a live handle to a database.
type Conn interface {
	Exec(ctx context.Context, query string) error
	Close() error
}

// Backend knows how to (re)open a connection with its stored parameters and
// how to tell a lost connection from a bad statement.
type Backend interface {
	Name() string
	Open(ctx context.Context) (Conn, error)
	ConnectionLost(err error) bool
}

// Params are the connection settings shared by all backends.
type Params struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string

	// SQLitePath is only used by the sqlite3 backend.
	SQLitePath string
}

type Factory func(p Params) (Backend, error)

// registry: backend type -> factory
var registry = map[string]Factory{}

// Register is called from the init() of each backend.
func Register(kind string, f Factory) {
	registry[normalize(kind)] = f
}

// NewBackend builds the backend for kind ("mysql", "postgresql", "sqlite3").
func NewBackend(kind string, p Params) (Backend, error) {
	if f, ok := registry[normalize(kind)]; ok {
		return f(p)
	}
	return nil, ErrBackendNotFound
}

// Registered reports whether a backend exists for kind.
func Registered(kind string) bool {
	_, ok := registry[normalize(kind)]
	return ok
}

func normalize(kind string) string {
	k := strings.ToLower(strings.TrimSpace(kind))
	switch k {
	case "postgres", "pgsql":
		return "postgresql"
	case "sqlite":
		return "sqlite3"
	}
	return k
}
