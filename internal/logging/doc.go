// Package logging configures the process-wide slog logger for syncignore.
//
// Interactive runs log human-readable text to stderr. With a log file
// configured, records are written as JSON to a size-rotated file under
// ~/.syncignore/logs/ and can be read back with the Viewer.
package logging
