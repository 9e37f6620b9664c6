// Package pdfcpuengine is the default engine, built on pdfcpu.
//
// pdfcpu parses, decrypts and validates documents; it does not rasterise.
// Pages are painted by a Rasterizer. Built with -tags fitz the default is
// FitzRasterizer, which draws page content with MuPDF; otherwise it is
// SheetRasterizer, which only lays down the paper.
package pdfcpuengine

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/jmgilman/go/errors"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"

	"github.com/tsawler/pdfview/engine"
	"github.com/tsawler/pdfview/errcode"
	"github.com/tsawler/pdfview/format"
	"github.com/tsawler/pdfview/internal/logging"
)

// DefaultChunkSize is the read size between progress events.
const DefaultChunkSize = 64 * 1024

// Engine loads documents with pdfcpu.
type Engine struct {
	client     *http.Client
	rasterizer Rasterizer
	logger     arbor.ILogger
	chunkSize  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithHTTPClient sets the client used for URL sources.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		e.client = c
	}
}

// WithRasterizer replaces the page painter.
func WithRasterizer(r Rasterizer) Option {
	return func(e *Engine) {
		e.rasterizer = r
	}
}

// WithLogger sets the logger.
func WithLogger(l arbor.ILogger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithChunkSize sets how many bytes are read between progress events.
func WithChunkSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// New creates an engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		client:     http.DefaultClient,
		rasterizer: defaultRasterizer(),
		chunkSize:  DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrDiscard(e.logger)
	return e
}

// Load implements engine.Engine.
func (e *Engine) Load(ctx context.Context, params engine.Params) *engine.LoadingTask {
	return engine.NewLoadingTask(ctx, func(ctx context.Context, task *engine.LoadingTask) (engine.Document, error) {
		data, disposition, err := e.fetch(ctx, task, params)
		if err != nil {
			return nil, err
		}

		pdfCtx, err := e.open(ctx, task, data, params.Password)
		if err != nil {
			return nil, err
		}

		doc, err := newDocument(pdfCtx, data, e.rasterizer)
		if err != nil {
			return nil, err
		}
		doc.meta.ContentDisposition = disposition

		e.logger.Debug().
			Int("pages", doc.NumPages()).
			Int64("bytes", int64(len(data))).
			Bool("encrypted", pdfCtx.Encrypt != nil).
			Msg("Parsed PDF")
		return doc, nil
	})
}

// open parses data, asking the password hook until a password is accepted.
func (e *Engine) open(ctx context.Context, task *engine.LoadingTask, data []byte, password string) (*model.Context, error) {
	attempted := password != ""
	for {
		pdfCtx, err := read(data, password)
		if err == nil {
			return pdfCtx, nil
		}
		if !isPasswordError(err) {
			return nil, errors.Wrap(err, errcode.LoadFailed, "failed to parse PDF")
		}

		reason := engine.NeedPassword
		if attempted {
			reason = engine.IncorrectPassword
		}
		e.logger.Debug().Str("reason", reason.String()).Msg("Requesting password")

		next, err := task.RequestPassword(ctx, reason)
		if err != nil {
			return nil, err
		}
		password, attempted = next, true
	}
}

func read(data []byte, password string) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	conf.UserPW = password
	conf.OwnerPW = password

	pdfCtx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, err
	}
	if err := api.ValidateContext(pdfCtx); err != nil {
		return nil, err
	}
	return pdfCtx, nil
}

// isPasswordError reports whether pdfcpu rejected the document for a
// missing or wrong password. pdfcpu reports a missing owner password with
// an unexported error, so that case is matched on its message.
func isPasswordError(err error) bool {
	if errors.Is(err, pdfcpu.ErrWrongPassword) {
		return true
	}
	return strings.Contains(err.Error(), "owner password")
}

// fetch reads the document bytes named by params, reporting progress.
// The second result is the Content-Disposition header of a URL response.
func (e *Engine) fetch(ctx context.Context, task *engine.LoadingTask, params engine.Params) ([]byte, string, error) {
	switch {
	case params.Data != nil:
		data, err := e.copy(ctx, task, bytes.NewReader(params.Data), int64(len(params.Data)))
		return data, "", err

	case params.Path != "":
		f, err := os.Open(params.Path)
		if err != nil {
			return nil, "", errors.Wrap(err, errcode.LoadFailed, "failed to open document")
		}
		defer f.Close()

		total := int64(-1)
		if info, err := f.Stat(); err == nil {
			total = info.Size()
		}
		data, err := e.copy(ctx, task, f, total)
		return data, "", err

	case params.URL != "":
		return e.download(ctx, task, params)

	default:
		return nil, "", errors.New(errors.CodeInvalidInput, "no document data, path or URL given")
	}
}

func (e *Engine) download(ctx context.Context, task *engine.LoadingTask, params engine.Params) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, params.URL, nil)
	if err != nil {
		return nil, "", errors.Wrap(err, errors.CodeInvalidInput, "invalid document URL")
	}
	for name, values := range params.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, "", errors.WithContext(
			errors.Wrap(err, errors.CodeNetwork, "failed to fetch document"),
			"url", params.URL,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", errors.WithContext(
			errors.Newf(errcode.LoadFailed, "unexpected HTTP status %d", resp.StatusCode),
			"url", params.URL,
		)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && format.DetectFromContentType(ct) != format.PDF {
		// Servers often send PDFs as octet-stream, but a text response is
		// an error or login page.
		if strings.HasPrefix(strings.ToLower(ct), "text/") {
			return nil, "", errors.WithContextMap(
				errors.Newf(errcode.LoadFailed, "server returned %s instead of a PDF", ct),
				map[string]interface{}{"url": params.URL, "content_type": ct},
			)
		}
		e.logger.Debug().Str("content_type", ct).Str("url", params.URL).Msg("Unexpected content type for PDF")
	}

	data, err := e.copy(ctx, task, resp.Body, resp.ContentLength)
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Disposition"), nil
}

// copy reads r to the end in chunks, reporting (loaded, total) after each.
func (e *Engine) copy(ctx context.Context, task *engine.LoadingTask, r io.Reader, total int64) ([]byte, error) {
	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(total))
	}

	task.ReportProgress(0, total)
	chunk := make([]byte, e.chunkSize)
	var loaded int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			loaded += int64(n)
			task.ReportProgress(loaded, total)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errcode.LoadFailed, "failed to read document")
		}
	}
	return buf.Bytes(), nil
}
