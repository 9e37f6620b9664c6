package engine

import (
	"context"
	"sync"

	"github.com/jmgilman/go/errors"

	"github.com/tsawler/pdfview/errcode"
)

// LoadFunc does the engine work behind a LoadingTask.
type LoadFunc func(ctx context.Context, task *LoadingTask) (Document, error)

// LoadingTask tracks a document load until it resolves.
//
// The hook slots may be set and cleared at any time; the engine reads the
// current value whenever it has an event to deliver.
type LoadingTask struct {
	mu         sync.Mutex
	onPassword PasswordFunc
	onProgress ProgressFunc

	ctx    context.Context
	cancel context.CancelFunc
	load   LoadFunc
	start  sync.Once
	done   chan struct{}

	doc Document
	err error
}

// NewLoadingTask creates a task that runs load when started. The task's
// context is derived from ctx.
func NewLoadingTask(ctx context.Context, load LoadFunc) *LoadingTask {
	ctx, cancel := context.WithCancel(ctx)
	return &LoadingTask{
		ctx:    ctx,
		cancel: cancel,
		load:   load,
		done:   make(chan struct{}),
	}
}

// SetPasswordHook sets or clears (nil) the password hook.
func (t *LoadingTask) SetPasswordHook(fn PasswordFunc) {
	t.mu.Lock()
	t.onPassword = fn
	t.mu.Unlock()
}

// PasswordHook returns the current password hook, or nil.
func (t *LoadingTask) PasswordHook() PasswordFunc {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.onPassword
}

// SetProgressHook sets or clears (nil) the progress hook.
func (t *LoadingTask) SetProgressHook(fn ProgressFunc) {
	t.mu.Lock()
	t.onProgress = fn
	t.mu.Unlock()
}

// ProgressHook returns the current progress hook, or nil.
func (t *LoadingTask) ProgressHook() ProgressFunc {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.onProgress
}

// Start begins loading in the background. Calling it again has no effect.
func (t *LoadingTask) Start() {
	t.start.Do(func() {
		go t.run()
	})
}

func (t *LoadingTask) run() {
	defer close(t.done)
	defer t.cancel()

	doc, err := t.load(t.ctx, t)
	if err == nil && doc == nil {
		err = errors.New(errcode.LoadFailed, "engine returned no document")
	}
	t.doc, t.err = doc, err
}

// Done is closed once the task has resolved. It never closes for a task
// that was not started.
func (t *LoadingTask) Done() <-chan struct{} {
	return t.done
}

// Wait starts the task if needed and blocks until it resolves or ctx ends.
// Giving up on ctx does not cancel the load; use Cancel for that.
func (t *LoadingTask) Wait(ctx context.Context) (Document, error) {
	t.Start()
	select {
	case <-t.done:
		return t.doc, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel aborts an in-flight load. A resolved task is unaffected.
func (t *LoadingTask) Cancel() {
	t.cancel()
}

// ReportProgress delivers a progress event to the current hook, if any.
func (t *LoadingTask) ReportProgress(loaded, total int64) {
	if fn := t.ProgressHook(); fn != nil {
		fn(loaded, total)
	}
}

// RequestPassword asks the password hook for a password and blocks until the
// retry callback delivers one or ctx ends. With no hook attached it fails
// with errcode.PasswordRequired.
func (t *LoadingTask) RequestPassword(ctx context.Context, reason PasswordResponse) (string, error) {
	fn := t.PasswordHook()
	if fn == nil {
		return "", errcode.PasswordRequiredError("document is encrypted and no password hook is attached")
	}

	reply := make(chan string, 1)
	var once sync.Once
	retry := func(password string) {
		once.Do(func() { reply <- password })
	}
	fn(retry, reason)

	select {
	case pw := <-reply:
		return pw, nil
	case <-ctx.Done():
		return "", errors.Wrap(ctx.Err(), errcode.PasswordRequired, "password request abandoned")
	}
}
