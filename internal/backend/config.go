package backend

import (
	"errors"
	"fmt"

	"finify/internal/config"
)

var (
	ErrUnknownBackend     = errors.New("unknown data backend")
	ErrMissingSQLitePath  = errors.New("sqlite backend requires SQLITE_DB_PATH")
	ErrMissingPostgresDSN = errors.New("postgres backend requires POSTGRES_DSN")
)

// FromAppConfig selects the snapshot and preference stores named by
// DATA_BACKEND and validates the settings that backend needs.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}
	c := Config{
		Type:         BackendType(appConfig.DataBackend),
		SQLiteDBPath: appConfig.SQLiteDBPath,
		PostgresDSN:  appConfig.PostgresDSN,
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports the first missing setting for the selected backend.
func (c Config) Validate() error {
	switch c.Type {
	case MemoryBackend:
		return nil
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return ErrMissingSQLitePath
		}
	case PostgresBackend:
		if c.PostgresDSN == "" {
			return ErrMissingPostgresDSN
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Type)
	}
	return nil
}
