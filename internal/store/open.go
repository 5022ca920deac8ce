package store

import (
	"fmt"
	"log/slog"
)

// Options selects and configures a Repository backend.
type Options struct {
	Driver     string
	SQLitePath string
	BadgerPath string
	Logger     *slog.Logger
}

// Open builds the configured Repository.
func Open(opts Options) (Repository, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		return NewSQLite(opts.SQLitePath)
	case DriverBadger:
		return NewBadger(BadgerConfig{Path: opts.BadgerPath, SyncWrites: true, Logger: opts.Logger})
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
