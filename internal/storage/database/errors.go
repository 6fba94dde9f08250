package database

import "errors"

var (
	// ErrKeyNotFound is returned by Read when the key does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrDBClosed is returned by operations after Close.
	ErrDBClosed = errors.New("database is closed")
)
