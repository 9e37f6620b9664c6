package ocr

import "github.com/jmgilman/go/errors"

// ErrOCRNotEnabled is returned when OCR functions are called but OCR support
// was not compiled in. Rebuild with -tags ocr to enable OCR support.
var ErrOCRNotEnabled = errors.New(errors.CodeNotImplemented, "OCR support not enabled; rebuild with -tags ocr")
