// Package tracking persists per-file compliance results in SQLite so
// unchanged compliant files are skipped on later runs. Identity is
// the absolute path; change detection is size plus modification time
// (a sha256 column is reserved for future strengthening).
package tracking
