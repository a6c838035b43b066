// Package library is the SQLite-backed media library imgvault operates on.
//
// It records every image asset under the uploads directory (path, MIME type,
// size, pixel dimensions) together with free-form per-asset metadata, and
// implements the narrow media store interface the optimizer consumes. Schema
// changes ship as golang-migrate migrations embedded in the binary.
package library
