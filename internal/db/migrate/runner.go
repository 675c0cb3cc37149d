// Package migrate applies the embedded SQL migrations with golang-migrate.
package migrate

import (
	"errors"
	"fmt"

	"fieldbook/backend/internal/db"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ErrNoChange is returned when there is nothing to apply.
var ErrNoChange = migrate.ErrNoChange

// Options selects what Run does. Steps > 0 limits the number of migrations applied
// in Direction; zero means all of them.
type Options struct {
	Direction string
	Steps     int
}

func (o Options) validate() error {
	if o.Direction != "up" && o.Direction != "down" {
		return fmt.Errorf("direction must be up or down, got %q", o.Direction)
	}
	if o.Steps < 0 {
		return fmt.Errorf("steps must not be negative, got %d", o.Steps)
	}
	return nil
}

// Run migrates the database at dsn. ErrNoChange is swallowed.
func Run(dsn string, opts Options) error {
	if dsn == "" {
		return errors.New("DATABASE_URL is not set")
	}
	if err := opts.validate(); err != nil {
		return err
	}

	src, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch {
	case opts.Steps > 0 && opts.Direction == "up":
		err = m.Steps(opts.Steps)
	case opts.Steps > 0:
		err = m.Steps(-opts.Steps)
	case opts.Direction == "up":
		err = m.Up()
	default:
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
