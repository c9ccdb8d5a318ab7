// Package history records the outcome of every fetch made by the torhybrid
// CLI in a local SQLite database and renders recent entries as text or
// Markdown.
//
// The store is opened with a single connection and WAL journaling, so one
// process writes while readers (a second `torhybrid history`) do not block
// it.
package history
