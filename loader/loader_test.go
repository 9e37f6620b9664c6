package loader

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/pdfview/engine"
	"github.com/tsawler/pdfview/errcode"
	"github.com/tsawler/pdfview/internal/enginetest"
	"github.com/tsawler/pdfview/source"
)

func pdfBytes(tag string) []byte {
	return []byte("%PDF-1.7\n% " + tag + "\n%%EOF\n")
}

func TestTransformNilSource(t *testing.T) {
	eng := &enginetest.Engine{}
	l := New(eng)

	h, err := l.Transform(context.Background(), nil, Hooks{})
	require.NoError(t, err)
	assert.Nil(t, h)

	var raw *source.Raw
	h, err = l.Transform(context.Background(), raw, Hooks{})
	require.NoError(t, err)
	assert.Nil(t, h)

	assert.Equal(t, 0, l.Cache().Len())
	assert.Equal(t, 0, eng.Loads())
}

func TestTransformCachesHandle(t *testing.T) {
	eng := &enginetest.Engine{Pages: 3}
	l := New(eng)
	ctx := context.Background()

	first, err := l.Transform(ctx, source.Bytes(pdfBytes("a")), Hooks{})
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.NotNil(t, first.Task)
	assert.Equal(t, 3, first.Document.NumPages())

	progressCalls := 0
	second, err := l.Transform(ctx, source.Bytes(pdfBytes("a")), Hooks{
		Progress: func(loaded, total int64) { progressCalls++ },
	})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, eng.Loads())
	assert.Equal(t, 1, l.Cache().Len())
	assert.Zero(t, progressCalls, "hooks are not rewired on a cache hit")
}

func TestTransformLoadedDocument(t *testing.T) {
	eng := &enginetest.Engine{}
	l := New(eng)
	doc := enginetest.NewDocument(2)

	h, err := l.Transform(context.Background(), source.FromDocument(doc), Hooks{})
	require.NoError(t, err)
	require.NotNil(t, h)

	assert.Nil(t, h.Task)
	assert.Same(t, doc, h.Document)
	assert.Equal(t, 0, eng.Loads())
	assert.Equal(t, 1, l.Cache().Len())

	again, err := l.Transform(context.Background(), &source.Loaded{Document: doc}, Hooks{})
	require.NoError(t, err)
	assert.Same(t, h, again)
}

func TestTransformEvictsOldest(t *testing.T) {
	eng := &enginetest.Engine{}
	l := New(eng)
	ctx := context.Background()

	var srcs []*source.Raw
	for i := 0; i < 6; i++ {
		src := source.Bytes(pdfBytes(fmt.Sprintf("doc-%d", i)))
		srcs = append(srcs, src)
		_, err := l.Transform(ctx, src, Hooks{})
		require.NoError(t, err)
	}

	assert.Equal(t, 5, l.Cache().Len())
	_, ok := l.Cache().Get(srcs[0].Key())
	assert.False(t, ok, "first source should have been evicted")
	for _, src := range srcs[1:] {
		assert.True(t, l.Cache().Contains(src.Key()))
	}

	// Eviction leaves the document alive.
	assert.False(t, eng.Documents()[0].Destroyed())

	// The evicted source loads again.
	_, err := l.Transform(ctx, srcs[0], Hooks{})
	require.NoError(t, err)
	assert.Equal(t, 7, eng.Loads())
}

func TestTransformCustomCapacity(t *testing.T) {
	eng := &enginetest.Engine{}
	l := New(eng, WithCache(NewCache(2)))

	for i := 0; i < 4; i++ {
		_, err := l.Transform(context.Background(), source.Bytes(pdfBytes(fmt.Sprint(i))), Hooks{})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, l.Cache().Len())
	assert.Equal(t, 2, l.Cache().Cap())
}

func TestTransformPasswordHook(t *testing.T) {
	eng := &enginetest.Engine{Password: "secret"}
	l := New(eng)

	var flags []bool
	attempts := []string{"wrong", "secret"}
	h, err := l.Transform(context.Background(), source.Bytes(pdfBytes("locked")), Hooks{
		Password: func(retry func(string), wasWrongPassword bool) {
			flags = append(flags, wasWrongPassword)
			next := attempts[0]
			attempts = attempts[1:]
			retry(next)
		},
	})
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, []bool{false, true}, flags)
}

func TestTransformPasswordFromSource(t *testing.T) {
	eng := &enginetest.Engine{Password: "secret"}
	l := New(eng)

	var flags []bool
	h, err := l.Transform(context.Background(), source.Bytes(pdfBytes("locked")).WithPassword("nope"), Hooks{
		Password: func(retry func(string), wasWrongPassword bool) {
			flags = append(flags, wasWrongPassword)
			retry("secret")
		},
	})
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, []bool{true}, flags)
}

func TestTransformPasswordWithoutHook(t *testing.T) {
	eng := &enginetest.Engine{Password: "secret"}
	l := New(eng)

	h, err := l.Transform(context.Background(), source.Bytes(pdfBytes("locked")), Hooks{})
	require.Error(t, err)
	assert.Nil(t, h)
	assert.Equal(t, errcode.PasswordRequired, errors.GetCode(err))
	assert.True(t, errors.IsRetryable(err))
	assert.Equal(t, 0, l.Cache().Len())
}

func TestTransformProgressHook(t *testing.T) {
	eng := &enginetest.Engine{}
	l := New(eng)
	data := pdfBytes("progress")
	total := int64(len(data))

	var mu sync.Mutex
	var events [][2]int64
	_, err := l.Transform(context.Background(), source.Bytes(data), Hooks{
		Progress: func(loaded, total int64) {
			mu.Lock()
			events = append(events, [2]int64{loaded, total})
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	assert.Equal(t, [][2]int64{{0, total}, {total, total}}, events)
}

func TestTransformFailure(t *testing.T) {
	boom := fmt.Errorf("corrupt xref")

	t.Run("returned without error hook", func(t *testing.T) {
		l := New(&enginetest.Engine{Err: boom})
		h, err := l.Transform(context.Background(), source.Bytes(pdfBytes("bad")), Hooks{})
		require.Error(t, err)
		assert.Nil(t, h)
		assert.Equal(t, errcode.LoadFailed, errors.GetCode(err))
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, l.Cache().Len())
	})

	t.Run("routed to error hook", func(t *testing.T) {
		l := New(&enginetest.Engine{Err: boom})
		var got error
		h, err := l.Transform(context.Background(), source.Bytes(pdfBytes("bad")), Hooks{
			Error: func(err error) { got = err },
		})
		require.NoError(t, err)
		assert.Nil(t, h)
		require.Error(t, got)
		assert.Equal(t, errcode.LoadFailed, errors.GetCode(got))
		assert.Equal(t, 0, l.Cache().Len())
	})

	t.Run("invalid source never reaches the engine", func(t *testing.T) {
		eng := &enginetest.Engine{}
		l := New(eng)
		_, err := l.Transform(context.Background(), source.Bytes([]byte("GIF89a")), Hooks{})
		require.Error(t, err)
		assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
		assert.Equal(t, 0, eng.Loads())
	})

	t.Run("cancelled context", func(t *testing.T) {
		eng := &enginetest.Engine{Gate: make(chan struct{})}
		l := New(eng)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := l.Transform(ctx, source.Bytes(pdfBytes("slow")), Hooks{})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 0, l.Cache().Len())
	})
}

func TestTransformConcurrentLoadsAreNotCoalesced(t *testing.T) {
	gate := make(chan struct{})
	eng := &enginetest.Engine{Gate: gate}
	l := New(eng)
	src := source.Bytes(pdfBytes("shared"))

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Transform(context.Background(), src, Hooks{})
			assert.NoError(t, err)
		}()
	}

	require.Eventually(t, func() bool { return eng.Loads() == 2 }, time.Second, time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, 1, l.Cache().Len())
}

func TestTransformSingleFlight(t *testing.T) {
	gate := make(chan struct{})
	eng := &enginetest.Engine{Gate: gate}
	l := New(eng, WithSingleFlight())
	src := source.Bytes(pdfBytes("shared"))

	const callers = 4
	handles := make([]*Handle, callers)
	var started sync.WaitGroup
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		started.Add(1)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			h, err := l.Transform(context.Background(), src, Hooks{})
			assert.NoError(t, err)
			handles[i] = h
		}(i)
	}

	started.Wait()
	require.Eventually(t, func() bool { return eng.Loads() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, 1, eng.Loads())
	for _, h := range handles {
		require.NotNil(t, h)
	}
	assert.Equal(t, 1, l.Cache().Len())
}

func TestTransformSingleFlightLeaderCancels(t *testing.T) {
	gate := make(chan struct{})
	eng := &enginetest.Engine{Gate: gate}
	l := New(eng, WithSingleFlight())
	src := source.Bytes(pdfBytes("leader"))

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := l.Transform(leaderCtx, src, Hooks{})
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return eng.Loads() == 1 }, time.Second, time.Millisecond)

	type result struct {
		h   *Handle
		err error
	}
	follower := make(chan result, 1)
	go func() {
		h, err := l.Transform(context.Background(), src, Hooks{})
		follower <- result{h, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-leaderErr:
		require.Error(t, err)
		assert.Equal(t, errcode.LoadFailed, errors.GetCode(err))
	case <-time.After(time.Second):
		t.Fatal("leader did not return after cancel")
	}

	close(gate)
	select {
	case res := <-follower:
		require.NoError(t, res.err)
		require.NotNil(t, res.h)
		assert.False(t, eng.Documents()[0].Destroyed())
	case <-time.After(time.Second):
		t.Fatal("follower did not receive the shared load")
	}

	assert.Equal(t, 1, eng.Loads())
	assert.Equal(t, 1, l.Cache().Len())
}

func TestTransformSingleFlightFollowerCancels(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	eng := &enginetest.Engine{Gate: gate}
	l := New(eng, WithSingleFlight())
	src := source.Bytes(pdfBytes("follower"))

	go func() { _, _ = l.Transform(context.Background(), src, Hooks{}) }()
	require.Eventually(t, func() bool { return eng.Loads() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := l.Transform(ctx, src, Hooks{})
	require.Error(t, err)
	assert.Equal(t, errcode.LoadFailed, errors.GetCode(err))
}

func TestClear(t *testing.T) {
	eng := &enginetest.Engine{}
	l := New(eng)

	h, err := l.Transform(context.Background(), source.Bytes(pdfBytes("clear")), Hooks{
		Password: func(retry func(string), wasWrongPassword bool) {},
		Progress: func(loaded, total int64) {},
	})
	require.NoError(t, err)
	require.NotNil(t, h.Task.PasswordHook())
	require.NotNil(t, h.Task.ProgressHook())

	Clear(h)

	doc := eng.Documents()[0]
	assert.Nil(t, h.Task.PasswordHook())
	assert.Nil(t, h.Task.ProgressHook())
	assert.True(t, doc.Destroyed())
	assert.True(t, l.Cache().Contains(h.Key), "clear leaves the cache entry")

	Clear(h)
	assert.Equal(t, 1, doc.DestroyCount())
}

func TestClearNoop(t *testing.T) {
	assert.NotPanics(t, func() { Clear(nil) })

	doc := enginetest.NewDocument(1)
	h := &Handle{Document: doc}
	assert.NotPanics(t, func() { Clear(h) })
	assert.True(t, doc.Destroyed())

	assert.NotPanics(t, func() { Clear(&Handle{}) })
}

func TestClearWithoutHooks(t *testing.T) {
	l := New(&enginetest.Engine{})
	h, err := l.Transform(context.Background(), source.Bytes(pdfBytes("plain")), Hooks{})
	require.NoError(t, err)

	Clear(h)
	assert.Nil(t, h.Task.PasswordHook())
	assert.Nil(t, h.Task.ProgressHook())
}

func TestPasswordReasonMapping(t *testing.T) {
	tests := []struct {
		reason engine.PasswordResponse
		want   bool
	}{
		{engine.NeedPassword, false},
		{engine.IncorrectPassword, true},
		{engine.PasswordResponse(0), false},
		{engine.PasswordResponse(3), false},
	}

	for _, tt := range tests {
		t.Run(tt.reason.String(), func(t *testing.T) {
			task := engine.NewLoadingTask(context.Background(), func(ctx context.Context, task *engine.LoadingTask) (engine.Document, error) {
				if _, err := task.RequestPassword(ctx, tt.reason); err != nil {
					return nil, err
				}
				return enginetest.NewDocument(1), nil
			})
			eng := engineFunc(func(ctx context.Context, params engine.Params) *engine.LoadingTask { return task })

			var got []bool
			_, err := New(eng).Transform(context.Background(), source.Bytes(pdfBytes("reason")), Hooks{
				Password: func(retry func(string), wasWrongPassword bool) {
					got = append(got, wasWrongPassword)
					retry("x")
				},
			})
			require.NoError(t, err)
			assert.Equal(t, []bool{tt.want}, got)
		})
	}
}

type engineFunc func(ctx context.Context, params engine.Params) *engine.LoadingTask

func (f engineFunc) Load(ctx context.Context, params engine.Params) *engine.LoadingTask {
	return f(ctx, params)
}
