package postgres

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"
)

// RunMigrations applies all pending migrations from migrationsPath.
func RunMigrations(databaseURL, migrationsPath string) error {
	_, err := Migrate(databaseURL, migrationsPath, 0)

	return err
}

// Migrate applies every pending migration when steps is zero and otherwise
// moves the schema by steps versions, negative values rolling back. It returns
// the schema version afterwards; zero means nothing is applied.
func Migrate(databaseURL, migrationsPath string, steps int) (uint, error) {
	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return 0, fmt.Errorf("open migrations %s: %w", migrationsPath, err)
	}
	defer m.Close()

	if steps == 0 {
		err = m.Up()
	} else {
		err = m.Steps(steps)
	}

	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Debug().Msg("database schema: no change")
	case err != nil:
		return 0, fmt.Errorf("migrate schema: %w", err)
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		log.Info().Int("steps", steps).Msg("database schema: all migrations rolled back")
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}

	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}

	log.Info().Uint("version", version).Int("steps", steps).Msg("database schema migrated")

	return version, nil
}
