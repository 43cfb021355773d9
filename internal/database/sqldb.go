package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
)

// sqlBackend opens a database/sql handle and pins one connection of it.
// Statements go through the pinned *sql.Conn, which reports a bad
// connection instead of silently retrying on a fresh one; reconnecting is
// left to Connection.
type sqlBackend struct {
	name   string
	driver string
	dsn    string
	lostFn func(error) bool
}

func (b *sqlBackend) Name() string { return b.name }

func (b *sqlBackend) Open(ctx context.Context) (Conn, error) {
	db, err := sql.Open(b.driver, b.dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("pin connection: %w", err)
	}
	return &sqlConn{db: db, conn: conn}, nil
}

func (b *sqlBackend) ConnectionLost(err error) bool {
	if b.lostFn == nil {
		return false
	}
	return b.lostFn(err)
}

type sqlConn struct {
	db   *sql.DB
	conn *sql.Conn
}

func (c *sqlConn) Exec(ctx context.Context, query string) error {
	_, err := c.conn.ExecContext(ctx, query)
	return err
}

func (c *sqlConn) Close() error {
	return errors.Join(c.conn.Close(), c.db.Close())
}

// networkLost covers the conditions every network backend shares.
func networkLost(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
