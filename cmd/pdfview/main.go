package main

import (
	"context"
	"fmt"
	"image/png"
	"io"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/jmgilman/go/errors"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/pflag"
	"golang.org/x/term"
	"pkt.systems/version"

	"github.com/tsawler/pdfview"
	"github.com/tsawler/pdfview/config"
	"github.com/tsawler/pdfview/errcode"
	"github.com/tsawler/pdfview/format"
	"github.com/tsawler/pdfview/render"
	"github.com/tsawler/pdfview/source"
)

const (
	defaultWidth      = 80
	maxPasswordPrompt = 3

	// defaultLogLevel applies unless a config file or PDFVIEW_LOG_LEVEL sets one.
	defaultLogLevel = "warn"
)

func init() {
	version.SetDefaultModule("github.com/tsawler/pdfview")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(newApp().run(ctx, os.Args[1:]))
}

// app carries the process environment so commands can run under test.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// interactive reports whether a password can be prompted for.
	interactive  func() bool
	readPassword func() ([]byte, error)

	// options are appended after configuration when creating the viewer.
	options []pdfview.Option
}

func newApp() *app {
	fd := int(os.Stdin.Fd())
	return &app{
		stdin:        os.Stdin,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		interactive:  func() bool { return term.IsTerminal(fd) },
		readPassword: func() ([]byte, error) { return term.ReadPassword(fd) },
	}
}

type command struct {
	name    string
	summary string
	run     func(a *app, ctx context.Context, args []string) error
}

var commands = []command{
	{"info", "Show page count, page size and metadata", (*app).runInfo},
	{"render", "Render pages to page-N.png", (*app).runRender},
	{"thumbs", "Render page thumbnails to page-N.png", (*app).runThumbs},
	{"print", "Print pages to a print-ready PDF with headless Chrome", (*app).runPrint},
	{"download", "Save the document under its download name", (*app).runDownload},
}

// usageError marks errors that should exit with status 2.
type usageError struct {
	msg string
}

func (e usageError) Error() string {
	return e.msg
}

func (a *app) usage() {
	fmt.Fprintln(a.stderr, version.Module(), version.Current())
	fmt.Fprintln(a.stderr, "Usage: pdfview <command> [flags] <file|url|->")
	fmt.Fprintln(a.stderr, "\nCommands:")
	for _, c := range commands {
		fmt.Fprintf(a.stderr, "  %-10s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(a.stderr, "\nRun 'pdfview <command> --help' for command flags.")
}

func (a *app) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		a.usage()
		return 2
	}

	switch args[0] {
	case "-h", "--help", "help":
		a.usage()
		return 0
	case "-v", "--version", "version":
		fmt.Fprintln(a.stdout, version.Module(), version.Current())
		return 0
	}

	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		err := c.run(a, ctx, args[1:])
		if err == nil || err == pflag.ErrHelp {
			return 0
		}
		var uerr usageError
		if errors.As(err, &uerr) {
			fmt.Fprintf(a.stderr, "pdfview %s: %v\n", c.name, err)
			return 2
		}
		fmt.Fprintf(a.stderr, "pdfview %s: %v\n", c.name, describe(err))
		return 1
	}

	fmt.Fprintf(a.stderr, "unknown command %q (want one of %s)\n\n", args[0], strings.Join(commandNames(), ", "))
	a.usage()
	return 2
}

// describe adds a hint for the errors a user can act on.
func describe(err error) string {
	switch errors.GetCode(err) {
	case errcode.PasswordRequired:
		return err.Error() + " (use --password or run from a terminal)"
	case errors.CodeNotImplemented:
		return err.Error() + " (rebuild with -tags ocr)"
	}
	return err.Error()
}

// ============================================================================
// Shared flags
// ============================================================================

// common are the flags every command accepts.
type common struct {
	configPaths []string
	password    string
	headers     []string
	quiet       bool
	logLevel    string
}

func (c *common) register(fs *pflag.FlagSet) {
	fs.StringSliceVarP(&c.configPaths, "config", "c", nil, "TOML config file (repeatable, later files win)")
	fs.StringVarP(&c.password, "password", "p", "", "Password for encrypted documents")
	fs.StringArrayVarP(&c.headers, "header", "H", nil, `Request header for URL sources ("Name: value")`)
	fs.BoolVarP(&c.quiet, "quiet", "q", false, "Do not report load progress")
	fs.StringVar(&c.logLevel, "log-level", defaultLogLevel, "Log level (debug, info, warn, error); overrides [logging] level")
}

func (a *app) newFlagSet(name, args string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.SetInterspersed(true)
	fs.Usage = func() {
		fmt.Fprintln(a.stderr, version.Module(), version.Current())
		fmt.Fprintf(a.stderr, "Usage: pdfview %s [flags] %s\n", name, args)
		fmt.Fprintln(a.stderr, "\nFlags:")
		fs.PrintDefaults()
	}
	return fs
}

func parseFlags(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return err
		}
		return usageError{msg: err.Error()}
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return usageError{msg: "expected exactly one document"}
	}
	return nil
}

// open creates a viewer from configuration and a session on the document
// argument. cancel aborts the load when password prompting gives up.
func (a *app) open(fs *pflag.FlagSet, c *common, cancel context.CancelFunc, opts ...pdfview.Option) (*pdfview.Viewer, *pdfview.Session, error) {
	cfg, err := loadConfig(fs, c)
	if err != nil {
		return nil, nil, err
	}

	src, err := a.parseSource(fs.Arg(0), c.headers)
	if err != nil {
		return nil, nil, err
	}

	v, err := pdfview.FromConfig(cfg, append(append([]pdfview.Option(nil), a.options...), opts...)...)
	if err != nil {
		return nil, nil, err
	}

	sess := v.Open(src)
	if c.password != "" {
		sess = sess.Password(c.password)
	}
	if !c.quiet {
		sess = sess.OnProgress(a.progress())
	}
	if a.interactive != nil && a.interactive() {
		sess = sess.OnPassword(a.promptPassword(cancel))
	}
	return v, sess, nil
}

// loadConfig reads the --config files and environment, then applies the
// flags the user set.
func loadConfig(fs *pflag.FlagSet, c *common) (*config.Config, error) {
	base := config.NewDefaultConfig()
	base.Logging.Level = defaultLogLevel
	cfg, err := config.Load(base, c.configPaths...)
	if err != nil {
		return nil, err
	}
	if fs.Changed("log-level") {
		cfg.Logging.Level = c.logLevel
	}
	return cfg, nil
}

// parseSource maps a command-line argument to a document source: "-" reads
// standard input, http(s) URLs are fetched, anything else is a path.
func (a *app) parseSource(arg string, headers []string) (source.Source, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, usageError{msg: "empty document argument"}
	}
	if arg == "-" {
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return nil, errors.Wrap(err, errcode.LoadFailed, "failed to read standard input")
		}
		return source.Bytes(data), nil
	}

	u, err := url.Parse(arg)
	if err == nil && u.Scheme != "" {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			raw := source.URL(arg)
			for _, h := range headers {
				name, value, ok := strings.Cut(h, ":")
				if !ok || strings.TrimSpace(name) == "" {
					return nil, usageError{msg: fmt.Sprintf("invalid header %q, want \"Name: value\"", h)}
				}
				raw = raw.WithHeader(strings.TrimSpace(name), strings.TrimSpace(value))
			}
			return raw, nil
		case "file":
			path := u.Path
			if path == "" {
				path = u.Host
			}
			return fileSource(normalizePath(path))
		}
	}
	return fileSource(normalizePath(arg))
}

// fileSource rejects a readable file that is neither named nor shaped like
// a PDF. Files that cannot be opened are left for the loader to report.
func fileSource(path string) (source.Source, error) {
	if format.Detect(path) != format.PDF {
		if f, err := os.Open(path); err == nil {
			kind, err := format.DetectFromReader(f)
			f.Close()
			if err == nil && kind != format.PDF {
				return nil, usageError{msg: fmt.Sprintf("%s is not a PDF document", path)}
			}
		}
	}
	return source.File(path), nil
}

// progress reports load progress on stderr, rewriting one line.
func (a *app) progress() func(loaded, total int64) {
	var done atomic.Bool
	return func(loaded, total int64) {
		if done.Load() {
			return
		}
		if total < 0 {
			fmt.Fprintf(a.stderr, "\rLoading %s", formatBytes(loaded))
			return
		}
		fmt.Fprintf(a.stderr, "\rLoading %s / %s", formatBytes(loaded), formatBytes(total))
		if loaded >= total {
			done.Store(true)
			fmt.Fprintln(a.stderr)
		}
	}
}

func (a *app) promptPassword(cancel context.CancelFunc) func(retry func(string), wasWrong bool) {
	attempts := 0
	return func(retry func(string), wasWrong bool) {
		if wasWrong {
			fmt.Fprintln(a.stderr, "Incorrect password.")
		}
		attempts++
		if attempts > maxPasswordPrompt {
			cancel()
			return
		}
		fmt.Fprint(a.stderr, "Password: ")
		pw, err := a.readPassword()
		fmt.Fprintln(a.stderr)
		if err != nil {
			cancel()
			return
		}
		retry(string(pw))
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// parsePages parses "1,3-5" into page numbers, in the order given.
func parsePages(list string) ([]int, error) {
	var pages []int
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil || start < 1 {
			return nil, usageError{msg: fmt.Sprintf("invalid page %q", part)}
		}
		end := start
		if isRange {
			end, err = strconv.Atoi(strings.TrimSpace(hi))
			if err != nil || end < start {
				return nil, usageError{msg: fmt.Sprintf("invalid page range %q", part)}
			}
		}
		for p := start; p <= end; p++ {
			pages = append(pages, p)
		}
	}
	return pages, nil
}

// ============================================================================
// Commands
// ============================================================================

func (a *app) runInfo(ctx context.Context, args []string) error {
	var c common
	var width int
	fs := a.newFlagSet("info", "<file|url|->")
	c.register(fs)
	fs.IntVarP(&width, "width", "w", 0, "Wrap width (0 uses terminal width if available)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	v, sess, err := a.open(fs, &c, cancel)
	if err != nil {
		return err
	}
	defer v.Close()

	h, err := sess.Handle(ctx)
	if err != nil {
		return err
	}
	if h == nil {
		return pdfview.ErrNoDocument
	}
	meta, err := h.Document.Metadata(ctx)
	if err != nil {
		return err
	}

	rows := [][2]string{
		{"Source", h.Key.String()},
		{"Pages", strconv.Itoa(h.Document.NumPages())},
	}
	if h.Document.NumPages() > 0 {
		page, err := h.Document.Page(ctx, 1)
		if err != nil {
			return err
		}
		box := page.Viewport(1, 0).PageBox()
		rows = append(rows, [2]string{"Page size", fmt.Sprintf("%g x %g pt", box.Width, box.Height)})
	}
	rows = append(rows,
		[2]string{"Title", meta.Title},
		[2]string{"Author", meta.Author},
		[2]string{"Subject", meta.Subject},
		[2]string{"Keywords", meta.Keywords},
		[2]string{"Creator", meta.Creator},
		[2]string{"Producer", meta.Producer},
		[2]string{"Size", formatBytes(meta.ContentLength)},
	)

	writeRows(a.stdout, rows, resolveWidth(a.stdout, width))
	return nil
}

// writeRows prints label/value rows, wrapping values to width.
func writeRows(w io.Writer, rows [][2]string, width int) {
	labelWidth := 0
	for _, r := range rows {
		if len(r[0]) > labelWidth {
			labelWidth = len(r[0])
		}
	}
	labelWidth += 2

	valueWidth := width - labelWidth
	if valueWidth < 20 {
		valueWidth = 20
	}
	pad := strings.Repeat(" ", labelWidth)

	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		lines := strings.Split(wordwrap.String(r[1], valueWidth), "\n")
		fmt.Fprintf(w, "%-*s%s\n", labelWidth, r[0]+":", lines[0])
		for _, line := range lines[1:] {
			fmt.Fprintf(w, "%s%s\n", pad, line)
		}
	}
}

type renderFlags struct {
	pages      string
	outDir     string
	concurrent bool
}

func (r *renderFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&r.pages, "pages", "", `Pages to render, e.g. "1,3-5" (default all)`)
	fs.StringVarP(&r.outDir, "output", "o", ".", "Output directory")
	fs.BoolVar(&r.concurrent, "concurrent", false, "Paint pages in parallel")
}

func (r *renderFlags) apply(sess *pdfview.Session) (*pdfview.Session, error) {
	if r.pages != "" {
		pages, err := parsePages(r.pages)
		if err != nil {
			return nil, err
		}
		sess = sess.Pages(pages...)
	}
	if r.concurrent {
		sess = sess.Concurrent()
	}
	return sess, nil
}

func (a *app) runRender(ctx context.Context, args []string) error {
	var c common
	var rf renderFlags
	var scale float64
	var rotation int
	var text bool
	fs := a.newFlagSet("render", "<file|url|->")
	c.register(fs)
	rf.register(fs)
	fs.Float64VarP(&scale, "scale", "s", 1, "Viewport scale (1 is 72 pixels per inch)")
	fs.IntVarP(&rotation, "rotation", "r", 0, "Rotation in degrees, a multiple of 90")
	fs.BoolVar(&text, "text", false, "Recognise page text with OCR and print it")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	v, sess, err := a.open(fs, &c, cancel)
	if err != nil {
		return err
	}
	defer v.Close()

	if sess, err = rf.apply(sess); err != nil {
		return err
	}
	if fs.Changed("scale") {
		sess = sess.Scale(scale)
	}
	if fs.Changed("rotation") {
		sess = sess.Rotation(rotation)
	}
	if text {
		sess = sess.TextLayer()
	}

	frag, err := sess.Render(ctx)
	if err != nil {
		return err
	}
	if err := frag.Wait(ctx); err != nil {
		return err
	}
	if err := a.writeSurfaces(frag, rf.outDir); err != nil {
		return err
	}

	if text {
		for _, s := range frag.Surfaces() {
			t, err := s.Text()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "--- page %d ---\n%s\n", s.Number(), t)
		}
	}
	return nil
}

func (a *app) runThumbs(ctx context.Context, args []string) error {
	var c common
	var rf renderFlags
	var width int
	fs := a.newFlagSet("thumbs", "<file|url|->")
	c.register(fs)
	rf.register(fs)
	fs.IntVarP(&width, "width", "w", render.DefaultThumbnailWidth, "Thumbnail width in pixels")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	var opts []pdfview.Option
	if fs.Changed("width") {
		if width < 1 {
			return usageError{msg: "width must be at least 1"}
		}
		opts = append(opts, pdfview.WithThumbnailWidth(width))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	v, sess, err := a.open(fs, &c, cancel, opts...)
	if err != nil {
		return err
	}
	defer v.Close()

	if sess, err = rf.apply(sess); err != nil {
		return err
	}
	frag, err := sess.Thumbnails().Render(ctx)
	if err != nil {
		return err
	}
	if err := frag.Wait(ctx); err != nil {
		return err
	}
	return a.writeSurfaces(frag, rf.outDir)
}

// writeSurfaces writes each painted surface to dir/page-N.png and prints
// the paths.
func (a *app) writeSurfaces(frag *render.Fragment, dir string) error {
	dir = normalizePath(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errcode.RenderFailed, "failed to create output directory")
	}

	for _, s := range frag.Surfaces() {
		path := filepath.Join(dir, fmt.Sprintf("page-%d.png", s.Number()))
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrap(err, errcode.RenderFailed, "failed to create image file")
		}
		if err := png.Encode(f, s.Image); err != nil {
			f.Close()
			return errors.WithContext(errors.Wrap(err, errcode.RenderFailed, "failed to encode page"), "page", s.Number())
		}
		if err := f.Close(); err != nil {
			return errors.Wrap(err, errcode.RenderFailed, "failed to write image file")
		}
		fmt.Fprintln(a.stdout, path)
	}
	return nil
}

func (a *app) runPrint(ctx context.Context, args []string) error {
	var c common
	var pages, outPath, title, filename string
	var dpi float64
	fs := a.newFlagSet("print", "<file|url|->")
	c.register(fs)
	fs.StringVar(&pages, "pages", "", `Pages to print, e.g. "1,3-5" (default all)`)
	fs.StringVarP(&outPath, "output", "o", "", "Output PDF file instead of stdout")
	fs.Float64Var(&dpi, "dpi", 0, "Print resolution (default from config, 300)")
	fs.StringVar(&title, "title", "", "Title of the printed document")
	fs.StringVar(&filename, "filename", "", "Filename shown while printing")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	out, closeOut, err := a.resolveOutput(outPath)
	if err != nil {
		return err
	}
	if closeOut != nil {
		defer func() { _ = closeOut.Close() }()
	}
	if isTerminal(out) {
		return usageError{msg: "refusing to write PDF to terminal; use -o/--output"}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	v, sess, err := a.open(fs, &c, cancel)
	if err != nil {
		return err
	}
	defer v.Close()

	if pages != "" {
		list, err := parsePages(pages)
		if err != nil {
			return err
		}
		sess = sess.Pages(list...)
	}
	if fs.Changed("dpi") {
		sess = sess.DPI(dpi)
	}
	if title != "" {
		sess = sess.Title(title)
	}
	if filename != "" {
		sess = sess.Filename(filename)
	}
	return sess.PrintTo(ctx, out)
}

func (a *app) runDownload(ctx context.Context, args []string) error {
	var c common
	var name, dir string
	fs := a.newFlagSet("download", "<file|url|->")
	c.register(fs)
	fs.StringVarP(&name, "name", "n", "", "File name (default from Content-Disposition, then download.pdf)")
	fs.StringVarP(&dir, "dir", "d", "", "Download directory (default from config)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	var opts []pdfview.Option
	if dir != "" {
		opts = append(opts, pdfview.WithDownloadDir(normalizePath(dir)))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	v, sess, err := a.open(fs, &c, cancel, opts...)
	if err != nil {
		return err
	}
	defer v.Close()

	if name != "" {
		sess = sess.Filename(name)
	}
	path, err := sess.Save(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, path)
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

func (a *app) resolveOutput(path string) (io.Writer, io.Closer, error) {
	if strings.TrimSpace(path) == "" {
		return a.stdout, nil, nil
	}
	clean := normalizePath(path)
	dir := filepath.Dir(clean)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, errors.Wrap(err, errcode.PrintFailed, "failed to create output directory")
		}
	}
	f, err := os.Create(clean)
	if err != nil {
		return nil, nil, errors.Wrap(err, errcode.PrintFailed, "failed to create output file")
	}
	return f, f, nil
}

func normalizePath(path string) string {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			if path == "~" {
				path = home
			} else {
				path = filepath.Join(home, path[2:])
			}
		}
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		return abs
	}
	return path
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func resolveWidth(w io.Writer, width int) int {
	if width > 0 {
		return width
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 0 {
			return cols
		}
	}
	if value := os.Getenv("COLUMNS"); value != "" {
		if cols, err := strconv.Atoi(value); err == nil && cols > 0 {
			return cols
		}
	}
	return defaultWidth
}

// commandNames lists the commands, sorted.
func commandNames() []string {
	names := make([]string, 0, len(commands))
	for _, c := range commands {
		names = append(names, c.name)
	}
	sort.Strings(names)
	return names
}
