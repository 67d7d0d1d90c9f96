// Package migrations compiles the schema SQL into the binary, so the
// daemon can migrate a fresh database without any files on disk.
package migrations

import (
	"embed"

	"github.com/levlstudio/levl-core/internal/infrastructure/database"
)

//go:embed *.sql
var schemaFS embed.FS

func init() {
	database.MigrationsFS = schemaFS
	database.MigrationsDir = "."
}
