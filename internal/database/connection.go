package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "database")

// Connection is the single connection owned by a camera context. It is
// replaced wholesale when the backend reports a lost connection.
type Connection struct {
	backend Backend
	conn    Conn
}

// Open connects backend. On failure the returned Connection is still usable:
// the next Exec treats the missing handle as a lost connection.
func Open(ctx context.Context, backend Backend) (*Connection, error) {
	c := &Connection{backend: backend}
	conn, err := backend.Open(ctx)
	if err != nil {
		return c, fmt.Errorf("connect to %s: %w", backend.Name(), err)
	}
	c.conn = conn
	return c, nil
}

// Backend returns the backend name.
func (c *Connection) Backend() string { return c.backend.Name() }

// Connected reports whether a live handle is held.
func (c *Connection) Connected() bool { return c.conn != nil }

// Exec runs query. When the failure is a lost connection the handle is
// closed, reopened with the same parameters and, only if that worked, the
// query is retried exactly once. Nothing is queued for later.
func (c *Connection) Exec(ctx context.Context, query string) error {
	err := c.exec(ctx, query)
	if err == nil {
		return nil
	}
	if !c.lost(err) {
		return fmt.Errorf("%s query failed: %w", c.backend.Name(), err)
	}

	log.WithField("backend", c.backend.Name()).Errorf("connection lost: %v", err)
	if rerr := c.reconnect(ctx); rerr != nil {
		return fmt.Errorf("cannot reconnect to %s: %w", c.backend.Name(), rerr)
	}
	log.WithField("backend", c.backend.Name()).Info("re-connection succeeded")

	if err := c.exec(ctx, query); err != nil {
		return fmt.Errorf("after re-connection %s query failed: %w", c.backend.Name(), err)
	}
	return nil
}

// Close releases the handle.
func (c *Connection) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Connection) exec(ctx context.Context, query string) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.Exec(ctx, query)
}

func (c *Connection) lost(err error) bool {
	return errors.Is(err, ErrNotConnected) || c.backend.ConnectionLost(err)
}

func (c *Connection) reconnect(ctx context.Context) error {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			log.WithField("backend", c.backend.Name()).Warnf("closing stale connection: %v", err)
		}
		c.conn = nil
	}
	conn, err := c.backend.Open(ctx)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}
