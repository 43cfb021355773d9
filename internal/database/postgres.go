package database

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/lib/pq"
)

func init() {
	Register("postgresql", newPostgres)
}

func newPostgres(p Params) (Backend, error) {
	if p.Host == "" {
		return nil, fmt.Errorf("postgresql: host required")
	}
	port := p.Port
	if port == 0 {
		port = 5432
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     p.Host + ":" + strconv.Itoa(port),
		Path:     "/" + p.DBName,
		RawQuery: "sslmode=disable",
	}
	if p.User != "" {
		u.User = url.UserPassword(p.User, p.Password)
	}

	return &sqlBackend{
		name:   "postgresql",
		driver: "postgres",
		dsn:    u.String(),
		lostFn: postgresConnectionLost,
	}, nil
}

// Class 08 is "connection exception"; 57P01..57P03 are server shutdowns.
func postgresConnectionLost(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "57P01", "57P02", "57P03":
			return true
		}
		return pqErr.Code.Class() == "08"
	}
	return networkLost(err)
}
