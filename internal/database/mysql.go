package database

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

func init() {
	Register("mysql", newMySQL)
}

func newMySQL(p Params) (Backend, error) {
	if p.Host == "" {
		return nil, fmt.Errorf("mysql: host required")
	}
	port := p.Port
	if port == 0 {
		port = 3306
	}

	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", p.Host, port)
	cfg.DBName = p.DBName

	return &sqlBackend{
		name:   "mysql",
		driver: "mysql",
		dsn:    cfg.FormatDSN(),
		lostFn: mysqlConnectionLost,
	}, nil
}

// mysqlConnectionLost follows the client library convention: error numbers
// from 2000 up are client side (server gone away, lost connection, ...).
func mysqlConnectionLost(err error) bool {
	if errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number >= 2000
	}
	return networkLost(err)
}
