package migrate

import "embed"

// Embedded ships the SQL migrations inside the binary.
//
//go:embed migrations/*.sql
var Embedded embed.FS

const embeddedDir = "migrations"
