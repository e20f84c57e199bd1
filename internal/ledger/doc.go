// Package ledger records transcription runs and their per-chunk outcomes in
// a SQLite database under the state directory.
//
// The history command reads it back; the pipeline writes one run row when a
// transcription starts, one chunk row as each chunk finishes, and closes the
// run with its final status. The schema is versioned: a database created by
// a different version is rejected with ErrSchemaMismatch rather than
// migrated.
package ledger
