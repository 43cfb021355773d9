package database

import "errors"

var (
	ErrBackendNotFound = errors.New("no database backend registered for this type")
	ErrNotConnected    = errors.New("database connection not established")
)
