package render

import (
	"context"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/pdfview/errcode"
	"github.com/tsawler/pdfview/internal/enginetest"
)

func TestRenderDocumentPages(t *testing.T) {
	doc := enginetest.NewDocument(3)
	r := New()

	frag, err := r.RenderDocument(context.Background(), doc, Config{})
	require.NoError(t, err)
	require.NoError(t, frag.Wait(context.Background()))

	surfaces := frag.Surfaces()
	require.Len(t, surfaces, 3)
	for i, s := range surfaces {
		want := fmt.Sprint(i + 1)
		assert.Equal(t, want, s.Attr(AttrPage))
		assert.Empty(t, s.Attr(AttrThumbnail))
		assert.Equal(t, ClassPage, s.Class)
		assert.False(t, s.Thumbnail())
		assert.True(t, s.Painted())
		assert.Equal(t, image.Rect(0, 0, 612, 792), s.Image.Bounds())
		assert.Equal(t, enginetest.PageColor(i+1), s.Image.RGBAAt(5, 5))
	}
	assert.Equal(t, 3, doc.Renders())
}

func TestRenderScaleAndRotation(t *testing.T) {
	doc := enginetest.NewDocument(1)
	r := New()

	tests := []struct {
		name string
		cfg  Config
		want image.Rectangle
	}{
		{"default scale", Config{}, image.Rect(0, 0, 612, 792)},
		{"double", Config{Scale: 2}, image.Rect(0, 0, 1224, 1584)},
		{"half", Config{Scale: 0.5}, image.Rect(0, 0, 306, 396)},
		{"quarter turn", Config{Rotation: 90}, image.Rect(0, 0, 792, 612)},
		{"half turn", Config{Rotation: 180}, image.Rect(0, 0, 612, 792)},
		{"negative turn", Config{Rotation: -90}, image.Rect(0, 0, 792, 612)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := doc.Page(context.Background(), 1)
			require.NoError(t, err)

			s, err := r.CreateSurface(context.Background(), page, tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Image.Bounds())
		})
	}
}

func TestCreateSurfaceIsUnpainted(t *testing.T) {
	doc := enginetest.NewDocument(1)
	page, err := doc.Page(context.Background(), 1)
	require.NoError(t, err)

	r := New()
	s, err := r.CreateSurface(context.Background(), page, Config{})
	require.NoError(t, err)

	assert.False(t, s.Painted())
	assert.Zero(t, s.Image.RGBAAt(0, 0).A)
	assert.Equal(t, 0, doc.Renders())

	p := r.Paint(context.Background(), s)
	require.NoError(t, p.Wait(context.Background()))
	assert.True(t, s.Painted())
	assert.Equal(t, enginetest.PageColor(1), s.Image.RGBAAt(0, 0))
	assert.NoError(t, p.Err())
}

func TestCreateSurfaceNilPage(t *testing.T) {
	_, err := New().CreateSurface(context.Background(), nil, Config{})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestRenderThumbnails(t *testing.T) {
	doc := enginetest.NewDocument(3)

	var mu sync.Mutex
	var scrolled []int
	r := New(WithNavigator(NavigatorFunc(func(page int) {
		mu.Lock()
		scrolled = append(scrolled, page)
		mu.Unlock()
	})))

	frag, err := r.RenderDocument(context.Background(), doc, Config{Thumbnail: true, Scale: 3})
	require.NoError(t, err)
	require.NoError(t, frag.Wait(context.Background()))

	require.Equal(t, 3, frag.Len())
	for i, s := range frag.Surfaces() {
		n := fmt.Sprint(i + 1)
		assert.Equal(t, n, s.Attr(AttrPage))
		assert.Equal(t, n, s.Attr(AttrThumbnail))
		assert.Equal(t, ClassThumbnail, s.Class)
		assert.Equal(t, DefaultThumbnailWidth, s.Image.Bounds().Dx(), "thumbnails ignore scale")
		assert.Equal(t, 130, s.Image.Bounds().Dy())
	}

	assert.True(t, frag.Surface(2).Select())
	assert.True(t, frag.Surface(3).Select())
	assert.Equal(t, []int{2, 3}, scrolled)
}

func TestThumbnailWidthOption(t *testing.T) {
	doc := enginetest.NewDocument(1)
	frag, err := New(WithThumbnailWidth(200)).RenderDocument(context.Background(), doc, Config{Thumbnail: true})
	require.NoError(t, err)
	assert.Equal(t, 200, frag.Surface(1).Image.Bounds().Dx())
}

func TestSelectWithoutThumbnailOrNavigator(t *testing.T) {
	doc := enginetest.NewDocument(1)

	called := false
	full, err := New(WithNavigator(NavigatorFunc(func(int) { called = true }))).
		RenderDocument(context.Background(), doc, Config{})
	require.NoError(t, err)
	assert.False(t, full.Surface(1).Select())
	assert.False(t, called)

	thumb, err := New().RenderDocument(context.Background(), doc, Config{Thumbnail: true})
	require.NoError(t, err)
	assert.False(t, thumb.Surface(1).Select())
}

func TestRenderConcurrent(t *testing.T) {
	doc := enginetest.NewDocument(8)
	frag, err := New(WithConcurrency(4)).RenderDocument(context.Background(), doc, Config{Concurrent: true})
	require.NoError(t, err)
	require.NoError(t, frag.Wait(context.Background()))

	for i, s := range frag.Surfaces() {
		assert.Equal(t, i+1, s.Number(), "surfaces stay in page order")
		assert.True(t, s.Painted())
	}
	assert.Equal(t, 8, doc.Renders())
}

func TestRenderPagesSubset(t *testing.T) {
	doc := enginetest.NewDocument(5)
	frag, err := New().RenderPages(context.Background(), doc, []int{4, 2}, Config{})
	require.NoError(t, err)
	require.NoError(t, frag.Wait(context.Background()))

	surfaces := frag.Surfaces()
	require.Len(t, surfaces, 2)
	assert.Equal(t, "4", surfaces[0].Attr(AttrPage))
	assert.Equal(t, "2", surfaces[1].Attr(AttrPage))
	assert.Nil(t, frag.Surface(1))
}

func TestRenderPagesOutOfRange(t *testing.T) {
	doc := enginetest.NewDocument(2)
	for _, pages := range [][]int{{0}, {3}, {1, 9}} {
		_, err := New().RenderPages(context.Background(), doc, pages, Config{})
		require.Error(t, err)
		assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
	}
	assert.Equal(t, 0, doc.Renders())
}

func TestRenderNilDocument(t *testing.T) {
	_, err := New().RenderDocument(context.Background(), nil, Config{})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestRenderPaintError(t *testing.T) {
	doc := enginetest.NewDocument(3)
	doc.RenderErr = map[int]error{2: fmt.Errorf("bad content stream")}

	frag, err := New().RenderDocument(context.Background(), doc, Config{})
	require.NoError(t, err, "surfaces are created before painting fails")

	err = frag.Wait(context.Background())
	require.Error(t, err)
	assert.Equal(t, errcode.RenderFailed, errors.GetCode(err))

	var pe errors.PlatformError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.Context()["page"])

	assert.True(t, frag.Surface(1).Painted())
	assert.False(t, frag.Surface(2).Painted())
}

func TestPaintingWaitContext(t *testing.T) {
	p := newPainting()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, p.Wait(ctx), context.DeadlineExceeded)
	assert.NoError(t, p.Err())

	p.finish(nil)
	<-p.Done()
	assert.NoError(t, p.Wait(context.Background()))
}

type fakeRecognizer struct {
	mu    sync.Mutex
	sizes []image.Rectangle
}

func (f *fakeRecognizer) Recognize(img image.Image) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sizes = append(f.sizes, img.Bounds())
	return fmt.Sprintf("text %d", len(f.sizes)), nil
}

func TestRenderTextLayer(t *testing.T) {
	doc := enginetest.NewDocument(2)
	rec := &fakeRecognizer{}

	frag, err := New(WithRecognizer(rec)).RenderDocument(context.Background(), doc, Config{TextLayer: true})
	require.NoError(t, err)
	require.NoError(t, frag.Wait(context.Background()))

	for i, s := range frag.Surfaces() {
		text, err := s.Text()
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("text %d", i+1), text)
	}
	assert.Len(t, rec.sizes, 2)
}

func TestRenderWithoutTextLayer(t *testing.T) {
	rec := &fakeRecognizer{}
	frag, err := New(WithRecognizer(rec)).RenderDocument(context.Background(), enginetest.NewDocument(1), Config{})
	require.NoError(t, err)
	require.NoError(t, frag.Wait(context.Background()))

	text, err := frag.Surface(1).Text()
	assert.NoError(t, err)
	assert.Empty(t, text)
	assert.Empty(t, rec.sizes)
}
