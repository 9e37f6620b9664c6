package printing

import (
	"context"
	"io"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/jmgilman/go/errors"

	"github.com/tsawler/pdfview/errcode"
)

// ChromePrinter prints staged jobs to PDF with headless Chrome.
type ChromePrinter struct {
	// Output receives the printed PDF.
	Output io.Writer

	// ExecPath is the Chrome binary. Empty lets chromedp find one.
	ExecPath string

	// Headful shows the browser window.
	Headful bool

	// NoSandbox disables the Chrome sandbox, for containers.
	NoSandbox bool

	// Flags are extra Chrome command-line switches, without leading dashes.
	Flags []string

	// Timeout bounds one print. Zero means no limit beyond ctx.
	Timeout time.Duration
}

// Print implements Printer.
func (c *ChromePrinter) Print(ctx context.Context, job *Job) error {
	if c.Output == nil {
		return errors.New(errors.CodeInvalidConfig, "chrome printer has no output")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !c.Headful),
		chromedp.Flag("allow-file-access-from-files", true),
	)
	if c.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.ExecPath))
	}
	if c.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	for _, f := range c.Flags {
		opts = append(opts, chromedp.Flag(f, true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	if c.Timeout > 0 {
		browserCtx, cancel = context.WithTimeout(browserCtx, c.Timeout)
		defer cancel()
	}

	index := (&url.URL{Scheme: "file", Path: job.Index}).String()
	widthIn := job.PageSize.Width / pointsPerInch
	heightIn := job.PageSize.Height / pointsPerInch

	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(index),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				WithPaperWidth(widthIn).
				WithPaperHeight(heightIn).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				Do(ctx)
			pdf = data
			return err
		}),
	)
	if err != nil {
		return errors.WithContext(
			errors.Wrap(err, errcode.PrintFailed, "chrome failed to print"),
			"job", job.ID.String(),
		)
	}

	if _, err := c.Output.Write(pdf); err != nil {
		return errors.Wrap(err, errcode.PrintFailed, "failed to write printed PDF")
	}
	return nil
}
