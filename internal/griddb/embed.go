package griddb

import (
	"embed"
	"io/fs"
)

// Migration files ship inside the binary so deployments never depend on a
// migrations directory being present on disk.
//
//go:embed migrations/*.sql
var migrationsEmbed embed.FS

// MigrationsFS returns the embedded migrations rooted at the migration files.
func MigrationsFS() (fs.FS, error) {
	return fs.Sub(migrationsEmbed, "migrations")
}
