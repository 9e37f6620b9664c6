// Package logging builds the arbor loggers used across pdfview.
package logging

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

// New returns a console logger at level ("debug", "info", "warn", "error").
func New(level string) arbor.ILogger {
	return arbor.NewLogger().WithConsoleWriter(models.WriterConfiguration{
		Type:             models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		TextOutput:       true,
		DisableTimestamp: false,
	}).WithLevelFromString(level)
}

// Discard returns a logger with no writers attached.
func Discard() arbor.ILogger {
	return arbor.NewLogger()
}

// OrDiscard returns l, or a writer-less logger when l is nil.
func OrDiscard(l arbor.ILogger) arbor.ILogger {
	if l == nil {
		return Discard()
	}
	return l
}
