// Package logtail reads the tail of the homesim log file for the logs view.
//
// Read keeps a ring buffer of the last maxLines lines, so memory stays
// O(maxLines) regardless of file size. A missing file reads as empty.
//
// Parse turns one line written by log/slog, in either the text or the JSON
// handler format, into an Entry. Lines in neither format come back with only
// Msg set so the view can still show them.
package logtail
