// Package errcode defines the error codes reported by pdfview.
//
// Errors produced by the library are platform errors from
// github.com/jmgilman/go/errors, so callers inspect them with
// errors.GetCode and errors.IsRetryable:
//
//	h, err := v.Load(ctx, src, loader.Hooks{})
//	if errors.GetCode(err) == errcode.PasswordRequired {
//	    // prompt and retry
//	}
package errcode

import "github.com/jmgilman/go/errors"

const (
	// LoadFailed indicates the engine rejected a document (corrupt,
	// unsupported, unreachable).
	LoadFailed errors.ErrorCode = "LOAD_FAILED"

	// PasswordRequired indicates an encrypted document was opened without a
	// way to supply its password. It is recoverable by retrying with one.
	PasswordRequired errors.ErrorCode = "PASSWORD_REQUIRED"

	// RenderFailed indicates a page could not be painted onto a surface.
	RenderFailed errors.ErrorCode = "RENDER_FAILED"

	// PrintFailed indicates the print pipeline could not stage or print.
	PrintFailed errors.ErrorCode = "PRINT_FAILED"

	// DownloadFailed indicates document bytes could not be extracted or saved.
	DownloadFailed errors.ErrorCode = "DOWNLOAD_FAILED"
)

// PasswordRequiredError builds the error returned when an encrypted document
// cannot be opened. It is classified retryable.
func PasswordRequiredError(message string) errors.PlatformError {
	return errors.WithClassification(
		errors.New(PasswordRequired, message),
		errors.ClassificationRetryable,
	)
}
