package loader

import (
	"context"
	"sync"

	"github.com/jmgilman/go/errors"
	"github.com/ternarybob/arbor"
	"golang.org/x/sync/singleflight"

	"github.com/tsawler/pdfview/cache"
	"github.com/tsawler/pdfview/engine"
	"github.com/tsawler/pdfview/errcode"
	"github.com/tsawler/pdfview/internal/logging"
	"github.com/tsawler/pdfview/source"
)

// Cache is the instance cache type the loader reads through.
type Cache = cache.FIFO[source.Key, *Handle]

// NewCache creates an instance cache with the given capacity.
func NewCache(capacity int) *Cache {
	return cache.New[source.Key, *Handle](capacity)
}

// Hooks are the optional caller callbacks wired into a load.
type Hooks struct {
	// Password is called when the document is encrypted. Call retry to try a
	// password; wasWrongPassword is true when a previous one was rejected.
	Password func(retry func(password string), wasWrongPassword bool)

	// Progress receives load progress verbatim from the engine.
	Progress func(loaded, total int64)

	// Error receives load failures. When set, Transform reports failures
	// here and returns nil, nil.
	Error func(err error)
}

// Handle pairs a loaded document with the task that produced it. Task is nil
// when the source was already a loaded document.
type Handle struct {
	Document engine.Document
	Task     *engine.LoadingTask
	Key      source.Key

	clearOnce sync.Once
}

// Loader resolves sources through an engine and an instance cache.
type Loader struct {
	engine engine.Engine
	cache  *Cache
	logger arbor.ILogger
	group  *singleflight.Group
}

// Option configures a Loader.
type Option func(*Loader)

// WithCache makes the loader read through c instead of a private cache.
func WithCache(c *Cache) Option {
	return func(l *Loader) {
		l.cache = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger arbor.ILogger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithSingleFlight coalesces concurrent loads of the same source into one
// engine load. Only the first caller's hooks are wired to that load, and
// the load is not cancelled when that caller's context is.
func WithSingleFlight() Option {
	return func(l *Loader) {
		l.group = &singleflight.Group{}
	}
}

// New creates a loader for eng. Without WithCache it owns a cache of
// cache.DefaultCapacity entries.
func New(eng engine.Engine, opts ...Option) *Loader {
	l := &Loader{engine: eng}
	for _, opt := range opts {
		opt(l)
	}
	if l.cache == nil {
		l.cache = NewCache(cache.DefaultCapacity)
	}
	l.logger = logging.OrDiscard(l.logger)
	return l
}

// Cache returns the instance cache the loader reads through.
func (l *Loader) Cache() *Cache {
	return l.cache
}

// Transform resolves src into a handle. See the package documentation for
// the resolution rules.
func (l *Loader) Transform(ctx context.Context, src source.Source, hooks Hooks) (*Handle, error) {
	if source.IsAbsent(src) {
		return nil, nil
	}

	key := src.Key()
	if h, ok := l.cache.Get(key); ok {
		l.logger.Debug().Str("source", key.String()).Msg("Instance cache hit")
		return h, nil
	}

	switch s := src.(type) {
	case source.Loaded:
		return l.adopt(key, s.Document), nil
	case *source.Loaded:
		return l.adopt(key, s.Document), nil
	case *source.Raw:
		h, err := l.resolve(ctx, key, s, hooks)
		if err != nil {
			return l.fail(key, err, hooks)
		}
		return h, nil
	default:
		return l.fail(key, errors.New(errors.CodeInvalidInput, "unsupported source type"), hooks)
	}
}

// adopt caches an already-loaded document. The handle gets no task: the
// loader did not create one and must not manage it.
func (l *Loader) adopt(key source.Key, doc engine.Document) *Handle {
	h := &Handle{Document: doc, Key: key}
	l.cache.Put(key, h)
	l.logger.Debug().
		Str("source", key.String()).
		Int("pages", doc.NumPages()).
		Msg("Adopted loaded document")
	return h
}

func (l *Loader) resolve(ctx context.Context, key source.Key, raw *source.Raw, hooks Hooks) (*Handle, error) {
	if l.group == nil {
		return l.load(ctx, key, raw, hooks)
	}

	// The shared load outlives any one caller; each waits on its own ctx.
	ch := l.group.DoChan(key.String(), func() (interface{}, error) {
		return l.load(context.WithoutCancel(ctx), key, raw, hooks)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			l.logger.Debug().Str("source", key.String()).Msg("Joined in-flight load")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Handle), nil
	}
}

func (l *Loader) load(ctx context.Context, key source.Key, raw *source.Raw, hooks Hooks) (*Handle, error) {
	if err := raw.Validate(); err != nil {
		return nil, err
	}

	l.logger.Debug().Str("source", key.String()).Msg("Loading document")

	task := l.engine.Load(ctx, raw.Params)
	if onPassword := hooks.Password; onPassword != nil {
		task.SetPasswordHook(func(retry func(password string), reason engine.PasswordResponse) {
			onPassword(retry, reason == engine.IncorrectPassword)
		})
	}
	if onProgress := hooks.Progress; onProgress != nil {
		task.SetProgressHook(onProgress)
	}

	doc, err := task.Wait(ctx)
	if err != nil {
		return nil, err
	}

	h := &Handle{Document: doc, Task: task, Key: key}
	l.cache.Put(key, h)

	l.logger.Info().
		Str("source", key.String()).
		Int("pages", doc.NumPages()).
		Int("cached", l.cache.Len()).
		Msg("Document loaded")
	return h, nil
}

// fail routes a load failure to hooks.Error, or returns it.
func (l *Loader) fail(key source.Key, err error, hooks Hooks) (*Handle, error) {
	if errors.GetCode(err) == errors.CodeUnknown {
		err = errors.Wrap(err, errcode.LoadFailed, "failed to load document")
	}
	err = errors.WithContext(err, "source", key.String())

	l.logger.Warn().Err(err).Str("source", key.String()).Msg("Document load failed")

	if hooks.Error != nil {
		hooks.Error(err)
		return nil, nil
	}
	return nil, err
}

// Clear detaches the handle's hooks and destroys its document. It is safe to
// call on a nil or already-cleared handle. The cache entry is left in place.
func Clear(h *Handle) {
	if h == nil {
		return
	}
	h.clearOnce.Do(func() {
		if h.Task != nil {
			if h.Task.PasswordHook() != nil {
				h.Task.SetPasswordHook(nil)
			}
			if h.Task.ProgressHook() != nil {
				h.Task.SetProgressHook(nil)
			}
		}
		if h.Document != nil {
			_ = h.Document.Destroy()
		}
	})
}
