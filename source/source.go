// Package source describes what a caller asks pdfview to open.
//
// A Source is either [Raw] (engine load parameters: bytes, a file path or a
// URL) or [Loaded] (a document that is already resolved). The variant is
// chosen by the caller, never inferred from the value's shape.
//
// Every source has a comparable [Key]. Two sources with equal keys are the
// same document as far as the instance cache is concerned:
//
//   - bytes are keyed by content, so the same buffer (or an identical copy)
//     hits the cache;
//   - paths are keyed by their cleaned absolute form;
//   - URLs are keyed by their normalised form (lower-case scheme and host,
//     no fragment);
//   - loaded documents are keyed by identity.
package source

import (
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/jmgilman/go/errors"

	"github.com/tsawler/pdfview/engine"
	"github.com/tsawler/pdfview/format"
)

// Kind identifies the variant behind a Key.
type Kind int

const (
	// KindNone is the zero Kind; it names no document.
	KindNone Kind = iota
	// KindData is a byte buffer.
	KindData
	// KindPath is a local file.
	KindPath
	// KindURL is a remote document.
	KindURL
	// KindDocument is an already-loaded document.
	KindDocument
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindPath:
		return "path"
	case KindURL:
		return "url"
	case KindDocument:
		return "document"
	default:
		return "none"
	}
}

// Key is the cache identity of a source. Keys are comparable; documents used
// as keys must have comparable dynamic types (pointers in practice).
type Key struct {
	kind Kind
	id   string
	doc  engine.Document
}

// Kind returns the variant the key was derived from.
func (k Key) Kind() Kind {
	return k.kind
}

// String returns a printable form of the key, suitable for logs.
func (k Key) String() string {
	if k.kind == KindDocument {
		return fmt.Sprintf("document:%p", k.doc)
	}
	return k.kind.String() + ":" + k.id
}

// Source is a document the loader can resolve.
type Source interface {
	Key() Key
	isSource()
}

// Raw carries engine load parameters.
type Raw struct {
	engine.Params
}

func (*Raw) isSource() {}

// Bytes creates a source from an in-memory document.
func Bytes(data []byte) *Raw {
	return &Raw{Params: engine.Params{Data: data}}
}

// File creates a source from a local file path.
func File(path string) *Raw {
	return &Raw{Params: engine.Params{Path: path}}
}

// URL creates a source fetched over HTTP(S).
func URL(rawURL string) *Raw {
	return &Raw{Params: engine.Params{URL: rawURL}}
}

// WithPassword returns a copy of the source that tries password first.
// The password is not part of the key.
func (r *Raw) WithPassword(password string) *Raw {
	c := *r
	c.Password = password
	return &c
}

// WithHeader returns a copy of the source that sends an extra request header
// when fetching a URL.
func (r *Raw) WithHeader(name, value string) *Raw {
	c := *r
	c.Header = c.Header.Clone()
	if c.Header == nil {
		c.Header = http.Header{}
	}
	c.Header.Add(name, value)
	return &c
}

// Key derives the cache key. Data takes precedence over Path, Path over URL,
// matching the order the engine reads them in.
func (r *Raw) Key() Key {
	switch {
	case r.Data != nil:
		return Key{kind: KindData, id: fmt.Sprintf("%016x-%d", xxhash.Sum64(r.Data), len(r.Data))}
	case r.Path != "":
		p, err := filepath.Abs(r.Path)
		if err != nil {
			p = filepath.Clean(r.Path)
		}
		return Key{kind: KindPath, id: p}
	case r.URL != "":
		return Key{kind: KindURL, id: normalizeURL(r.URL)}
	default:
		return Key{}
	}
}

// Validate rejects parameters the engine cannot act on: no document named,
// or bytes that are not a PDF.
func (r *Raw) Validate() error {
	if r.Empty() {
		return errors.New(errors.CodeInvalidInput, "source names no document")
	}
	if r.Data != nil && format.DetectFromMagic(r.Data) != format.PDF {
		return errors.WithContext(
			errors.New(errors.CodeInvalidInput, "data is not a PDF document"),
			"length", len(r.Data),
		)
	}
	if r.Data == nil && r.Path == "" {
		u, err := url.Parse(r.URL)
		if err != nil {
			return errors.Wrap(err, errors.CodeInvalidInput, "invalid document URL")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.Newf(errors.CodeInvalidInput, "unsupported URL scheme %q", u.Scheme)
		}
	}
	return nil
}

func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// Loaded wraps a document that is already resolved.
type Loaded struct {
	Document engine.Document
}

func (Loaded) isSource() {}

// FromDocument creates a source from an already-loaded document.
func FromDocument(doc engine.Document) Loaded {
	return Loaded{Document: doc}
}

// Key keys the source by document identity.
func (l Loaded) Key() Key {
	return Key{kind: KindDocument, doc: l.Document}
}

// IsAbsent reports whether src names nothing: a nil interface, a nil *Raw or
// a Loaded without a document.
func IsAbsent(src Source) bool {
	switch s := src.(type) {
	case nil:
		return true
	case *Raw:
		return s == nil
	case Loaded:
		return s.Document == nil
	case *Loaded:
		return s == nil || s.Document == nil
	default:
		return false
	}
}
