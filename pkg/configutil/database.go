package configutil

import (
	"database/sql"
	"fmt"
	"pricescout-backend/pkg/migrations"
)

// Database is the config section describing where price history lives,
// Url takes precedence over File.
type Database struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func (config Database) target() (string, error) {
	if config.Url != "" {
		if !migrations.IsRemote(config.Url) {
			return "", fmt.Errorf("database url %q is not a libsql, http(s) or ws(s) url", config.Url)
		}
		return config.Url, nil
	}
	if config.File == "" {
		return "", fmt.Errorf("a database file or url was not specified")
	}
	return config.File, nil
}

// OpenDB opens the configured database and applies schema to it.
func (config Database) OpenDB(schema string) (*sql.DB, error) {
	target, err := config.target()
	if err != nil {
		return nil, err
	}
	return migrations.OpenAndMigrateDB(schema, target, config.AuthToken)
}
