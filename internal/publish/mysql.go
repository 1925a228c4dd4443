package publish

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"restaurants/internal/config"
)

// buildMySQLDSN constructs a MySQL DSN from the publish settings.
func buildMySQLDSN(cfg config.Publish) string {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	// Format: user:password@tcp(host:port)/dbname?parseTime=true
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		cfg.Username, cfg.Password, cfg.Host, port, cfg.Database,
	)
	if cfg.SSLMode == "require" {
		dsn += "&tls=true"
	}
	return dsn
}
