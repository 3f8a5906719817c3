// Package classifier maps an uploaded file's inspected type to a processing
// category. Classification is a pure, total function: every input maps to
// exactly one category and unknown types default to CategoryUnsupported.
// Misclassification is a configuration problem, not a runtime error, so there
// is no failure mode here.
package classifier

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Category is the processing category a file is routed through.
type Category string

const (
	// CategoryRasterImage is decoded and resampled directly.
	CategoryRasterImage Category = "raster-image"
	// CategoryAltDecoderImage needs an alternate decode path (wide-gamut or
	// multi-frame formats) before raster processing.
	CategoryAltDecoderImage Category = "alt-decoder-image"
	// CategoryPDFDocument is rendered to a single representative raster
	// surface before raster processing.
	CategoryPDFDocument Category = "pdf-document"
	// CategoryVectorSkip gets no raster preview; clients render the source.
	CategoryVectorSkip Category = "vector-skip"
	// CategoryUnsupported short-circuits the chain.
	CategoryUnsupported Category = "unsupported"
)

// NeedsPreview reports whether the category reaches the preview engine at all.
func (c Category) NeedsPreview() bool {
	return c != CategoryUnsupported
}

var byMIME = map[string]Category{
	"image/jpeg":      CategoryRasterImage,
	"image/png":       CategoryRasterImage,
	"image/bmp":       CategoryRasterImage,
	"image/x-ms-bmp":  CategoryRasterImage,
	"image/gif":       CategoryAltDecoderImage,
	"image/webp":      CategoryAltDecoderImage,
	"image/tiff":      CategoryAltDecoderImage,
	"application/pdf": CategoryPDFDocument,
	"image/svg+xml":   CategoryVectorSkip,
}

var byExtension = map[string]Category{
	".jpg":  CategoryRasterImage,
	".jpeg": CategoryRasterImage,
	".png":  CategoryRasterImage,
	".bmp":  CategoryRasterImage,
	".gif":  CategoryAltDecoderImage,
	".webp": CategoryAltDecoderImage,
	".tif":  CategoryAltDecoderImage,
	".tiff": CategoryAltDecoderImage,
	".pdf":  CategoryPDFDocument,
	".svg":  CategoryVectorSkip,
}

// Classify maps the declared MIME type, the filename extension, and the
// file's leading bytes to a processing category. Magic-byte sniffing wins
// over the declared type, which wins over the extension.
func Classify(declaredMIME, filename string, head []byte) Category {
	if len(head) > 0 {
		detected := mimetype.Detect(head)
		if cat, ok := byMIME[normalizeMIME(detected.String())]; ok {
			return cat
		}
	}
	if cat, ok := byMIME[normalizeMIME(declaredMIME)]; ok {
		return cat
	}
	if cat, ok := byExtension[strings.ToLower(filepath.Ext(filename))]; ok {
		return cat
	}
	return CategoryUnsupported
}

func normalizeMIME(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.ToLower(strings.TrimSpace(m))
}
