//go:build sqlite_vec && cgo

package knowledge

import (
	_ "github.com/mattn/go-sqlite3"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// sqlite_vec build: cgo driver with the sqlite-vec extension registered as an
// auto-loadable extension, enabling ANN search over stored embeddings.
const driverName = "sqlite3"

func init() {
	vec.Auto()
}
