package publish

import (
	_ "modernc.org/sqlite"

	"restaurants/internal/config"
)

// buildSQLiteDSN opens the target file in WAL mode with a busy timeout.
func buildSQLiteDSN(cfg config.Publish) string {
	return cfg.Database + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}
