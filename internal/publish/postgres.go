package publish

import (
	"fmt"

	_ "github.com/lib/pq"

	"restaurants/internal/config"
)

// buildPostgresDSN constructs a Postgres connection string from the publish settings.
func buildPostgresDSN(cfg config.Publish) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, port, cfg.Username, cfg.Password, cfg.Database, sslMode,
	)
}
