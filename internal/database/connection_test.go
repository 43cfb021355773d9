package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

var (
	errLost = errors.New("server has gone away")
	errBad  = errors.New("syntax error")
)

type fakeConn struct {
	b      *fakeBackend
	closed bool
}

func (c *fakeConn) Exec(_ context.Context, query string) error {
	c.b.execs = append(c.b.execs, query)
	if len(c.b.results) == 0 {
		return nil
	}
	err := c.b.results[0]
	c.b.results = c.b.results[1:]
	return err
}

func (c *fakeConn) Close() error {
	c.closed = true
	c.b.closes++
	return nil
}

type fakeBackend struct {
	opens    int
	closes   int
	execs    []string
	results  []error // consumed by each Exec
	openErrs []error // consumed by each Open
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Open(context.Context) (Conn, error) {
	b.opens++
	if len(b.openErrs) > 0 {
		err := b.openErrs[0]
		b.openErrs = b.openErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &fakeConn{b: b}, nil
}

func (b *fakeBackend) ConnectionLost(err error) bool { return errors.Is(err, errLost) }

func TestExecSucceeds(t *testing.T) {
	b := &fakeBackend{}
	c, err := Open(context.Background(), b)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.Exec(context.Background(), "insert 1"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if b.opens != 1 || len(b.execs) != 1 {
		t.Fatalf("opens=%d execs=%d", b.opens, len(b.execs))
	}
}

func TestExecRetriesOnceAfterReconnect(t *testing.T) {
	b := &fakeBackend{results: []error{errLost, nil}}
	c, _ := Open(context.Background(), b)

	if err := c.Exec(context.Background(), "insert 1"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if b.opens != 2 {
		t.Fatalf("opens = %d, want 2 (initial + one reconnect)", b.opens)
	}
	if b.closes != 1 {
		t.Fatalf("closes = %d, want 1", b.closes)
	}
	if len(b.execs) != 2 || b.execs[0] != "insert 1" || b.execs[1] != "insert 1" {
		t.Fatalf("execs = %v", b.execs)
	}
}

func TestExecGivesUpAfterFailedRetry(t *testing.T) {
	b := &fakeBackend{results: []error{errLost, errLost}}
	c, _ := Open(context.Background(), b)

	if err := c.Exec(context.Background(), "insert 1"); err == nil {
		t.Fatalf("expected error after failed retry")
	}
	if b.opens != 2 {
		t.Fatalf("opens = %d, want exactly one reconnect", b.opens)
	}
	if len(b.execs) != 2 {
		t.Fatalf("execs = %d, want 2 (first attempt + one retry)", len(b.execs))
	}
}

func TestExecNoRetryWhenReconnectFails(t *testing.T) {
	b := &fakeBackend{
		results:  []error{errLost},
		openErrs: []error{nil, errors.New("refused")},
	}
	c, _ := Open(context.Background(), b)

	if err := c.Exec(context.Background(), "insert 1"); err == nil {
		t.Fatalf("expected error")
	}
	if len(b.execs) != 1 {
		t.Fatalf("execs = %d, statement must not be retried without a connection", len(b.execs))
	}
	if c.Connected() {
		t.Fatalf("connection should be marked as down")
	}

	// the next statement starts by reconnecting
	if err := c.Exec(context.Background(), "insert 2"); err != nil {
		t.Fatalf("Exec after outage: %v", err)
	}
	if b.opens != 3 {
		t.Fatalf("opens = %d, want 3", b.opens)
	}
	if got := b.execs[len(b.execs)-1]; got != "insert 2" {
		t.Fatalf("last exec = %q", got)
	}
}

func TestExecDropsBadStatement(t *testing.T) {
	b := &fakeBackend{results: []error{errBad}}
	c, _ := Open(context.Background(), b)

	err := c.Exec(context.Background(), "insert garbage")
	if !errors.Is(err, errBad) {
		t.Fatalf("err = %v, want wrapped errBad", err)
	}
	if b.opens != 1 || len(b.execs) != 1 {
		t.Fatalf("bad statement caused retry: opens=%d execs=%d", b.opens, len(b.execs))
	}
}

func TestOpenFailureKeepsConnection(t *testing.T) {
	b := &fakeBackend{openErrs: []error{errors.New("refused")}}
	c, err := Open(context.Background(), b)
	if err == nil {
		t.Fatalf("expected open error")
	}
	if c == nil || c.Connected() {
		t.Fatalf("expected a disconnected Connection")
	}
	if err := c.Exec(context.Background(), "insert 1"); err != nil {
		t.Fatalf("Exec should reconnect: %v", err)
	}
}

func TestNewBackend(t *testing.T) {
	tests := []struct {
		kind    string
		params  Params
		name    string
		wantErr bool
	}{
		{"mysql", Params{Host: "db", User: "motion", Password: "pw", DBName: "motion"}, "mysql", false},
		{"MySQL", Params{}, "", true},
		{"postgresql", Params{Host: "db", DBName: "motion"}, "postgresql", false},
		{"postgres", Params{Host: "db"}, "postgresql", false},
		{"sqlite3", Params{SQLitePath: "/tmp/motion.db"}, "sqlite3", false},
		{"sqlite", Params{}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			b, err := NewBackend(tt.kind, tt.params)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend: %v", err)
			}
			if b.Name() != tt.name {
				t.Fatalf("Name() = %q, want %q", b.Name(), tt.name)
			}
		})
	}

	if _, err := NewBackend("oracle", Params{}); !errors.Is(err, ErrBackendNotFound) {
		t.Fatalf("unknown backend err = %v", err)
	}
}

func TestConnectionLostClassification(t *testing.T) {
	my, _ := NewBackend("mysql", Params{Host: "db"})
	pg, _ := NewBackend("postgresql", Params{Host: "db"})
	lite, _ := NewBackend("sqlite3", Params{SQLitePath: "x.db"})

	tests := []struct {
		name    string
		backend Backend
		err     error
		want    bool
	}{
		{"mysql invalid conn", my, mysql.ErrInvalidConn, true},
		{"mysql gone away", my, &mysql.MySQLError{Number: 2006}, true},
		{"mysql syntax", my, &mysql.MySQLError{Number: 1064}, false},
		{"mysql bad conn", my, fmt.Errorf("exec: %w", driver.ErrBadConn), true},
		{"pg connection failure", pg, &pq.Error{Code: "08006"}, true},
		{"pg admin shutdown", pg, &pq.Error{Code: "57P01"}, true},
		{"pg syntax", pg, &pq.Error{Code: "42601"}, false},
		{"sqlite never", lite, driver.ErrBadConn, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.backend.ConnectionLost(tt.err); got != tt.want {
				t.Fatalf("ConnectionLost(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
