package ocr

import (
	"bytes"
	"image"
	"image/png"

	"github.com/jmgilman/go/errors"

	"github.com/tsawler/pdfview/errcode"
)

// encodePNG encodes img for Tesseract. Surfaces are painted at print or
// screen resolution, so fast compression keeps recognition latency down.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(err, errcode.RenderFailed, "failed to encode image for OCR")
	}
	return buf.Bytes(), nil
}
