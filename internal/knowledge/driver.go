//go:build !sqlite_vec || !cgo

package knowledge

import (
	_ "modernc.org/sqlite"
)

// Default build: pure-Go SQLite driver, brute-force cosine scan.
const driverName = "sqlite"
