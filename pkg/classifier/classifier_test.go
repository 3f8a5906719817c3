package classifier

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

// pngHeader is the magic prefix of a PNG file, padded so sniffing has enough
// bytes to work with.
var pngHeader = append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 24)...)

func TestClassify(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		name     string
		mime     string
		filename string
		head     []byte
		want     Category
	}{
		{name: "raster by declared mime", mime: "image/jpeg", filename: "photo.jpg", want: CategoryRasterImage},
		{name: "alt decoder webp", mime: "image/webp", filename: "photo.webp", want: CategoryAltDecoderImage},
		{name: "alt decoder tiff by extension", mime: "", filename: "scan.tiff", want: CategoryAltDecoderImage},
		{name: "gif is alt decoder", mime: "image/gif", filename: "anim.gif", want: CategoryAltDecoderImage},
		{name: "pdf document", mime: "application/pdf", filename: "doc.pdf", want: CategoryPDFDocument},
		{name: "vector skip", mime: "image/svg+xml", filename: "logo.svg", want: CategoryVectorSkip},
		{name: "zip is unsupported", mime: "application/zip", filename: "archive.zip", want: CategoryUnsupported},
		{name: "empty input is unsupported", mime: "", filename: "", want: CategoryUnsupported},
		{name: "mime with parameters", mime: "Image/JPEG; charset=binary", filename: "x.bin", want: CategoryRasterImage},
		{name: "sniffing wins over declared mime", mime: "application/octet-stream", filename: "blob", head: pngHeader, want: CategoryRasterImage},
		{name: "extension fallback", mime: "application/octet-stream", filename: "photo.PNG", want: CategoryRasterImage},
	}

	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			c.Check(Classify(tt.mime, tt.filename, tt.head), qt.Equals, tt.want)
		})
	}
}

func TestCategory_NeedsPreview(t *testing.T) {
	c := qt.New(t)

	c.Check(CategoryRasterImage.NeedsPreview(), qt.IsTrue)
	c.Check(CategoryVectorSkip.NeedsPreview(), qt.IsTrue)
	c.Check(CategoryUnsupported.NeedsPreview(), qt.IsFalse)
}
