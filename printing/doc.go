// Package printing stages document pages at print resolution and hands them
// to a Printer.
//
// A print runs through fixed stages:
//
//	Setup -> RenderPage (per page) -> InjectStyle (first page only) -> Invoke -> Teardown
//
// Setup creates a private staging directory. Each requested page is painted
// at DPI/72, written as page-N.png and appended to the staging HTML
// document. The print stylesheet, sized to the first page, is injected when
// that page is staged. Invoke swaps the title to the filename override, if
// any, and calls the Printer. Teardown runs on every exit path: it restores
// the title and removes the staging directory.
package printing
