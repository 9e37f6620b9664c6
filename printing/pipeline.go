package printing

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jmgilman/go/errors"
	"github.com/ternarybob/arbor"

	"github.com/tsawler/pdfview/engine"
	"github.com/tsawler/pdfview/errcode"
	"github.com/tsawler/pdfview/internal/logging"
)

// DefaultDPI is the print resolution when none is given.
const DefaultDPI = 300

// pointsPerInch is the PDF unit density; pages render at DPI/72.
const pointsPerInch = 72

// Stage is a step of the print pipeline.
type Stage int

const (
	StageSetup Stage = iota
	StageRenderPage
	StageInjectStyle
	StageInvoke
	StageTeardown
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageSetup:
		return "setup"
	case StageRenderPage:
		return "render_page"
	case StageInjectStyle:
		return "inject_style"
	case StageInvoke:
		return "invoke"
	case StageTeardown:
		return "teardown"
	default:
		return "unknown"
	}
}

// Options are per-print settings.
type Options struct {
	// DPI is the render resolution (default 300).
	DPI float64

	// Pages to print, 1-indexed. Nil prints every page.
	Pages []int

	// Filename replaces the title while printing, so print-to-file
	// dialogs suggest it.
	Filename string

	// Title of the staged document. Defaults to the document title.
	Title string
}

// Job is a staged print handed to a Printer.
type Job struct {
	ID    uuid.UUID
	Title string

	// Dir is the staging directory; Index is the staged HTML document in it.
	Dir   string
	Index string

	Pages []int

	// PageSize is the first page's size in points.
	PageSize engine.Box
	DPI      float64
}

// Printer prints a staged job.
type Printer interface {
	Print(ctx context.Context, job *Job) error
}

// PrinterFunc adapts a function to Printer.
type PrinterFunc func(ctx context.Context, job *Job) error

// Print implements Printer.
func (f PrinterFunc) Print(ctx context.Context, job *Job) error {
	return f(ctx, job)
}

// TitleSwapper is the title the print dialog shows.
type TitleSwapper interface {
	Title() string
	SetTitle(title string)
}

// Pipeline runs print jobs.
type Pipeline struct {
	printer Printer
	titles  TitleSwapper
	tempDir string
	logger  arbor.ILogger
	onStage func(stage Stage, page int)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTitleSwapper sets the title swapped to Options.Filename.
func WithTitleSwapper(t TitleSwapper) Option {
	return func(p *Pipeline) {
		p.titles = t
	}
}

// WithTempDir sets the parent of staging directories.
func WithTempDir(dir string) Option {
	return func(p *Pipeline) {
		p.tempDir = dir
	}
}

// WithLogger sets the logger.
func WithLogger(l arbor.ILogger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithStageHook calls fn as each stage starts. page is 0 outside
// StageRenderPage and StageInjectStyle.
func WithStageHook(fn func(stage Stage, page int)) Option {
	return func(p *Pipeline) {
		p.onStage = fn
	}
}

// New creates a pipeline that prints through printer.
func New(printer Printer, opts ...Option) *Pipeline {
	p := &Pipeline{printer: printer}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.OrDiscard(p.logger)
	return p
}

// Print stages the requested pages of doc and prints them.
func (p *Pipeline) Print(ctx context.Context, doc engine.Document, opts Options) (err error) {
	if doc == nil {
		return errors.New(errors.CodeInvalidInput, "no document to print")
	}
	if p.printer == nil {
		return errors.New(errors.CodeInvalidConfig, "no printer configured")
	}
	if opts.DPI <= 0 {
		opts.DPI = DefaultDPI
	}

	pages, err := resolvePages(opts.Pages, doc.NumPages())
	if err != nil {
		return err
	}

	job := &Job{ID: uuid.New(), Title: opts.Title, Pages: pages, DPI: opts.DPI}
	if job.Title == "" {
		if meta, err := doc.Metadata(ctx); err == nil {
			job.Title = meta.Title
		}
	}
	log := p.logger.WithCorrelationId(job.ID.String())

	p.stage(StageSetup, 0)
	job.Dir, err = os.MkdirTemp(p.tempDir, "pdfview-print-")
	if err != nil {
		return errors.Wrap(err, errcode.PrintFailed, "failed to create staging directory")
	}
	job.Index = filepath.Join(job.Dir, "index.html")

	var restoreTitle func()
	defer func() {
		p.stage(StageTeardown, 0)
		if restoreTitle != nil {
			restoreTitle()
		}
		if rmErr := os.RemoveAll(job.Dir); rmErr != nil && err == nil {
			err = errors.Wrap(rmErr, errcode.PrintFailed, "failed to remove staging directory")
		}
		log.Debug().Str("dir", job.Dir).Msg("Print staging removed")
	}()

	staging, err := newStagingDocument(job.Title)
	if err != nil {
		return errors.Wrap(err, errcode.PrintFailed, "failed to create staging document")
	}

	scale := opts.DPI / pointsPerInch
	for i, n := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}

		p.stage(StageRenderPage, n)
		vp, err := p.stagePage(ctx, doc, n, scale, job.Dir, staging)
		if err != nil {
			return errors.WithContextMap(err, map[string]interface{}{
				"page":  n,
				"stage": StageRenderPage.String(),
			})
		}

		if i == 0 {
			p.stage(StageInjectStyle, n)
			job.PageSize = vp.PageBox()
			staging.injectStyle(job.PageSize)
		}
	}

	if err := writeIndex(job.Index, staging); err != nil {
		return err
	}

	if opts.Filename != "" && p.titles != nil {
		previous := p.titles.Title()
		p.titles.SetTitle(opts.Filename)
		restoreTitle = func() { p.titles.SetTitle(previous) }
	}

	p.stage(StageInvoke, 0)
	log.Info().
		Int("pages", len(pages)).
		Str("dpi", fmt.Sprintf("%g", opts.DPI)).
		Msg("Printing document")

	if err := p.printer.Print(ctx, job); err != nil {
		if errors.GetCode(err) == errors.CodeUnknown {
			err = errors.Wrap(err, errcode.PrintFailed, "printer failed")
		}
		return errors.WithContext(err, "stage", StageInvoke.String())
	}
	return nil
}

// stagePage paints page n at scale and clones it into the staging document.
func (p *Pipeline) stagePage(ctx context.Context, doc engine.Document, n int, scale float64, dir string, staging *stagingDocument) (engine.Viewport, error) {
	page, err := doc.Page(ctx, n)
	if err != nil {
		return engine.Viewport{}, errors.Wrap(err, errcode.PrintFailed, "failed to get page")
	}

	vp := page.Viewport(scale, 0)
	img := image.NewRGBA(vp.Bounds())
	if err := page.Render(ctx, img, vp); err != nil {
		return engine.Viewport{}, errors.Wrap(err, errcode.PrintFailed, "failed to render page")
	}

	name := fmt.Sprintf("page-%d.png", n)
	if err := writePNG(filepath.Join(dir, name), img); err != nil {
		return engine.Viewport{}, err
	}

	w, h := vp.Size()
	staging.appendPage(n, name, w, h)
	return vp, nil
}

func (p *Pipeline) stage(s Stage, page int) {
	if p.onStage != nil {
		p.onStage(s, page)
	}
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errcode.PrintFailed, "failed to create page image")
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := png.Encode(w, img); err != nil {
		return errors.Wrap(err, errcode.PrintFailed, "failed to encode page image")
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, errcode.PrintFailed, "failed to write page image")
	}
	return nil
}

func writeIndex(path string, staging *stagingDocument) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errcode.PrintFailed, "failed to create staging document")
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := staging.render(w); err != nil {
		return errors.Wrap(err, errcode.PrintFailed, "failed to write staging document")
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, errcode.PrintFailed, "failed to write staging document")
	}
	return nil
}
