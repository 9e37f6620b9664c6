// Package download saves a loaded document's bytes under a derived file
// name.
package download

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jmgilman/go/errors"
	"github.com/ternarybob/arbor"

	"github.com/tsawler/pdfview/engine"
	"github.com/tsawler/pdfview/errcode"
	"github.com/tsawler/pdfview/format"
	"github.com/tsawler/pdfview/internal/logging"
)

// Extract returns the document bytes and metadata.
func Extract(ctx context.Context, doc engine.Document) ([]byte, engine.Metadata, error) {
	if doc == nil {
		return nil, engine.Metadata{}, errors.New(errors.CodeInvalidInput, "no document to download")
	}

	data, err := doc.Data(ctx)
	if err != nil {
		return nil, engine.Metadata{}, errors.Wrap(err, errcode.DownloadFailed, "failed to read document data")
	}
	meta, err := doc.Metadata(ctx)
	if err != nil {
		return nil, engine.Metadata{}, errors.Wrap(err, errcode.DownloadFailed, "failed to read document metadata")
	}
	return data, meta, nil
}

// Saver stores downloaded bytes. It returns where the bytes went.
type Saver interface {
	Save(ctx context.Context, filename string, data []byte) (string, error)
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, filename string, data []byte) (string, error)

// Save implements Saver.
func (f SaverFunc) Save(ctx context.Context, filename string, data []byte) (string, error) {
	return f(ctx, filename, data)
}

// Download extracts doc and hands it to saver under Filename(override, ...).
func Download(ctx context.Context, doc engine.Document, saver Saver, override string) (string, error) {
	return DownloadWithLogger(ctx, doc, saver, override, nil)
}

// DownloadWithLogger is Download with logging.
func DownloadWithLogger(ctx context.Context, doc engine.Document, saver Saver, override string, logger arbor.ILogger) (string, error) {
	logger = logging.OrDiscard(logger)
	if saver == nil {
		return "", errors.New(errors.CodeInvalidConfig, "no saver configured")
	}

	data, meta, err := Extract(ctx, doc)
	if err != nil {
		return "", err
	}

	name := Filename(override, meta)
	location, err := saver.Save(ctx, name, data)
	if err != nil {
		if errors.GetCode(err) == errors.CodeUnknown {
			err = errors.Wrap(err, errcode.DownloadFailed, "failed to save document")
		}
		return "", errors.WithContext(err, "filename", name)
	}

	logger.Info().
		Str("filename", name).
		Str("location", location).
		Int("bytes", len(data)).
		Msg("Document downloaded")
	return location, nil
}

// DirSaver writes files into Dir. It never overwrites: a taken name gets a
// " (1)", " (2)" ... suffix before the extension.
type DirSaver struct {
	Dir string

	// Perm is the file mode (default 0644).
	Perm os.FileMode
}

// maxSuffix bounds the search for a free name.
const maxSuffix = 10000

// Save implements Saver.
func (s DirSaver) Save(ctx context.Context, filename string, data []byte) (string, error) {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	perm := s.Perm
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, errcode.DownloadFailed, "failed to create download directory")
	}

	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	for i := 0; i < maxSuffix; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		name := filename
		if i > 0 {
			name = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		target := filepath.Join(dir, name)

		f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", errors.Wrap(err, errcode.DownloadFailed, "failed to create download file")
		}

		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(target)
			return "", errors.Wrap(err, errcode.DownloadFailed, "failed to write download file")
		}
		if err := f.Close(); err != nil {
			os.Remove(target)
			return "", errors.Wrap(err, errcode.DownloadFailed, "failed to write download file")
		}
		return target, nil
	}
	return "", errors.Newf(errors.CodeConflict, "no free file name for %q", filename)
}

// ResponseSaver writes the document as an attachment response.
type ResponseSaver struct {
	W http.ResponseWriter
}

// Save implements Saver. The returned location is the filename.
func (s ResponseSaver) Save(ctx context.Context, filename string, data []byte) (string, error) {
	h := s.W.Header()
	h.Set("Content-Type", format.PDF.MediaType())
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set("X-Content-Type-Options", "nosniff")
	s.W.WriteHeader(http.StatusOK)

	if _, err := s.W.Write(data); err != nil {
		return "", errors.Wrap(err, errcode.DownloadFailed, "failed to write response")
	}
	return filename, nil
}

// DocumentFunc resolves the document a request asks for.
type DocumentFunc func(r *http.Request) (engine.Document, error)

// Handler serves documents as attachments. The optional "filename" query
// parameter overrides the derived name.
type Handler struct {
	Resolve DocumentFunc
	Logger  arbor.ILogger
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, errors.New(errors.CodeInvalidInput, "method not allowed"), http.StatusMethodNotAllowed)
		return
	}

	doc, err := h.Resolve(r)
	if err != nil {
		writeError(w, err, 0)
		return
	}

	tw := &trackingWriter{ResponseWriter: w}
	if _, err := DownloadWithLogger(r.Context(), doc, ResponseSaver{W: tw}, r.URL.Query().Get("filename"), h.Logger); err != nil {
		if tw.sent {
			// The status line is out; an error body would corrupt the PDF.
			logging.OrDiscard(h.Logger).Error().Err(err).Str("path", r.URL.Path).Msg("Download response failed")
			return
		}
		writeError(w, err, 0)
	}
}

// trackingWriter records whether the response header has been sent.
type trackingWriter struct {
	http.ResponseWriter
	sent bool
}

func (w *trackingWriter) WriteHeader(status int) {
	w.sent = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *trackingWriter) Write(p []byte) (int, error) {
	w.sent = true
	return w.ResponseWriter.Write(p)
}

// writeError writes err as JSON. A zero status is derived from the code.
func writeError(w http.ResponseWriter, err error, status int) {
	if status == 0 {
		status = httpStatus(errors.GetCode(err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errors.ToJSON(err))
}

func httpStatus(code errors.ErrorCode) int {
	switch code {
	case errors.CodeInvalidInput:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errcode.PasswordRequired:
		return http.StatusUnauthorized
	case errors.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
