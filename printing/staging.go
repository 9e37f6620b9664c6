package printing

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/tsawler/pdfview/engine"
)

const stagingSkeleton = `<!DOCTYPE html><html><head><meta charset="utf-8"><title></title></head><body></body></html>`

// printStyle is the stylesheet for a staged job. Sizes are in points.
const printStyle = `
@page {
  margin: 0;
  size: %spt %spt;
}
body {
  margin: 0;
  width: 100%%;
}
.page {
  page-break-after: always;
  page-break-before: avoid;
  page-break-inside: avoid;
}
.page img {
  display: block;
  width: 100%%;
}
`

// stagingDocument is the HTML document pages are cloned into.
type stagingDocument struct {
	root  *html.Node
	head  *html.Node
	title *html.Node
	body  *html.Node
	style *html.Node
}

func newStagingDocument(title string) (*stagingDocument, error) {
	root, err := html.Parse(strings.NewReader(stagingSkeleton))
	if err != nil {
		return nil, err
	}
	d := &stagingDocument{
		root:  root,
		head:  findElement(root, "head"),
		title: findElement(root, "title"),
		body:  findElement(root, "body"),
	}
	d.setTitle(title)
	return d, nil
}

// setTitle replaces the document title text.
func (d *stagingDocument) setTitle(title string) {
	for c := d.title.FirstChild; c != nil; {
		next := c.NextSibling
		d.title.RemoveChild(c)
		c = next
	}
	d.title.AppendChild(&html.Node{Type: html.TextNode, Data: title})
}

// injectStyle adds the print stylesheet for pages of the given size.
// Only the first call has an effect.
func (d *stagingDocument) injectStyle(page engine.Box) bool {
	if d.style != nil {
		return false
	}
	d.style = &html.Node{Type: html.ElementNode, DataAtom: atom.Style, Data: "style"}
	d.style.AppendChild(&html.Node{
		Type: html.TextNode,
		Data: fmt.Sprintf(printStyle, formatPoints(page.Width), formatPoints(page.Height)),
	})
	d.head.AppendChild(d.style)
	return true
}

// appendPage adds a page container holding the image at src.
func (d *stagingDocument) appendPage(number int, src string, width, height int) {
	container := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Div,
		Data:     "div",
		Attr: []html.Attribute{
			{Key: "class", Val: "page"},
			{Key: "data-page", Val: strconv.Itoa(number)},
		},
	}
	container.AppendChild(&html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Img,
		Data:     "img",
		Attr: []html.Attribute{
			{Key: "src", Val: src},
			{Key: "width", Val: strconv.Itoa(width)},
			{Key: "height", Val: strconv.Itoa(height)},
			{Key: "alt", Val: fmt.Sprintf("Page %d", number)},
		},
	})
	d.body.AppendChild(container)
}

// render writes the document as HTML.
func (d *stagingDocument) render(w io.Writer) error {
	return html.Render(w, d.root)
}

// findElement finds the first element with the given tag name.
func findElement(n *html.Node, tagName string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tagName {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if result := findElement(c, tagName); result != nil {
			return result
		}
	}
	return nil
}

func formatPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
