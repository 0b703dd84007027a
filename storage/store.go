// Package storage persists the bot's state document. Every backend stores the whole
// document under a single key; callers always write the full state.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Load when nothing has been saved yet.
var ErrNotFound = errors.New("state not found")

// Store loads and saves the serialized state document.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Close() error
}

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendSqlite   = "sqlite"
	BackendBadger   = "badger"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	DataFile    string // file backend
	DatabaseURL string // postgres DSN or sqlite path
	BadgerDir   string
}

// Open builds the backend named by opts.Backend.
func Open(opts Options) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendFile:
		return NewFileStore(opts.DataFile), nil
	case BackendPostgres:
		s, err := OpenPostgres(opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendSqlite:
		s, err := OpenSqlite(opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendBadger:
		s, err := OpenBadger(opts.BadgerDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
