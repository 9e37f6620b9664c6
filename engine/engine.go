package engine

import (
	"context"
	"image/draw"
	"net/http"
)

// Params are the engine-native load parameters of a raw source. Exactly one
// of Data, Path or URL is used, checked in that order.
type Params struct {
	Data     []byte
	Path     string
	URL      string
	Password string
	Header   http.Header
}

// Empty reports whether the params name no document at all.
func (p Params) Empty() bool {
	return p.Data == nil && p.Path == "" && p.URL == ""
}

// PasswordResponse is the reason the engine asks for a password.
type PasswordResponse int

const (
	// NeedPassword is sent when a password is needed and none was tried yet.
	NeedPassword PasswordResponse = 1
	// IncorrectPassword is sent after a supplied password was rejected.
	IncorrectPassword PasswordResponse = 2
)

// String returns the response name.
func (r PasswordResponse) String() string {
	switch r {
	case NeedPassword:
		return "NEED_PASSWORD"
	case IncorrectPassword:
		return "INCORRECT_PASSWORD"
	default:
		return "UNKNOWN"
	}
}

// PasswordFunc is the password hook. retry resumes loading with a new
// password; it may be called from any goroutine, at most once per request.
type PasswordFunc func(retry func(password string), reason PasswordResponse)

// ProgressFunc is the progress hook. total is -1 when the size is unknown.
type ProgressFunc func(loaded, total int64)

// Engine resolves load parameters into documents.
type Engine interface {
	Load(ctx context.Context, params Params) *LoadingTask
}

// Metadata describes a loaded document.
type Metadata struct {
	Title    string
	Author   string
	Subject  string
	Keywords string
	Creator  string
	Producer string

	// ContentDisposition is the raw Content-Disposition header of the
	// response the document was fetched from, if any.
	ContentDisposition string

	// ContentLength is the size of the document in bytes.
	ContentLength int64
}

// Document is a loaded PDF document.
//
// Destroy releases engine resources and must be safe to call more than once.
type Document interface {
	NumPages() int
	Page(ctx context.Context, number int) (Page, error)
	Metadata(ctx context.Context) (Metadata, error)
	Data(ctx context.Context) ([]byte, error)
	Destroy() error
}

// Page is a single page of a document. Page numbers start at 1.
type Page interface {
	Number() int
	Viewport(scale float64, rotation int) Viewport
	Render(ctx context.Context, dst draw.Image, vp Viewport) error
}
