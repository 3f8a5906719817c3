package preview

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/ilovetoast/jackpot-firehorse-sub012/config"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/classifier"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/pipeline"
)

// degradedSizeCount is how many renditions survive in degraded mode: the
// smallest ones.
const degradedSizeCount = 2

// Rendition is one encoded preview output.
type Rendition struct {
	SizeName string
	Width    int
	Height   int
	MimeType string
	Ext      string
	Data     []byte
}

// Result is the outcome of a preview generation run.
type Result struct {
	SourceWidth  int
	SourceHeight int
	// Degraded is set when the source exceeded the pixel-area ceiling and
	// only the smallest sizes were rendered.
	Degraded bool
	// Encoding is the output format actually used, after any fallback.
	Encoding   string
	Renditions []Rendition
}

// Engine renders the configured preview sizes from decoded sources. It never
// upscales: imaging.Fit keeps small sources at their native size.
type Engine struct {
	sizes           []config.ThumbnailSize
	maxPixelArea    int
	oversizedFactor int
	preferred       string
	fallback        string
}

func NewEngine(cfg config.PipelineConfig) *Engine {
	return &Engine{
		sizes:           cfg.ThumbnailSizes,
		maxPixelArea:    cfg.MaxPixelArea,
		oversizedFactor: cfg.OversizedFactor,
		preferred:       cfg.PreferredEncoding,
		fallback:        cfg.FallbackEncoding,
	}
}

// Generate decodes the source and renders every configured size. Sources over
// the pixel-area ceiling get degraded treatment; sources over the configured
// oversized factor times the ceiling are rejected without decoding.
func (e *Engine) Generate(ctx context.Context, content []byte, category classifier.Category) (*Result, error) {
	if !category.NeedsPreview() {
		return nil, pipeline.NewStageError(pipeline.StageGeneratePreviews,
			pipeline.FailureUnsupportedFormat,
			fmt.Errorf("category %q takes no preview", category))
	}

	decoder, err := DecoderFor(category)
	if err != nil {
		return nil, err
	}

	srcW, srcH, err := decoder.Bounds(ctx, content)
	if err != nil {
		return nil, err
	}
	area := srcW * srcH
	if e.maxPixelArea > 0 && e.oversizedFactor > 0 && area > e.oversizedFactor*e.maxPixelArea {
		return nil, pipeline.NewStageError(pipeline.StageGeneratePreviews,
			pipeline.FailureOversized,
			fmt.Errorf("source is %dx%d (%d px), ceiling is %d px", srcW, srcH, area, e.oversizedFactor*e.maxPixelArea))
	}
	degraded := e.maxPixelArea > 0 && area > e.maxPixelArea

	src, err := decoder.Decode(ctx, content)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	result := &Result{
		SourceWidth:  b.Dx(),
		SourceHeight: b.Dy(),
		Degraded:     degraded,
	}

	sizes := e.sizes
	if degraded {
		sizes = smallestSizes(sizes, degradedSizeCount)
	}

	encoding := e.preferred
	for _, size := range sizes {
		thumb := imaging.Fit(src, size.Width, size.Height, imaging.Lanczos)
		data, mimeType, ext, err := encode(thumb, encoding)
		if err == errUnsupportedEncoding && encoding != e.fallback {
			encoding = e.fallback
			data, mimeType, ext, err = encode(thumb, encoding)
		}
		if err != nil {
			return nil, pipeline.NewStageError(pipeline.StageGeneratePreviews,
				pipeline.FailureInternal, fmt.Errorf("encoding %s rendition: %w", size.Name, err))
		}
		tb := thumb.Bounds()
		result.Renditions = append(result.Renditions, Rendition{
			SizeName: size.Name,
			Width:    tb.Dx(),
			Height:   tb.Dy(),
			MimeType: mimeType,
			Ext:      ext,
			Data:     data,
		})
	}
	result.Encoding = encoding
	return result, nil
}

// smallestSizes returns the n smallest sizes by bounding-box area, keeping
// the configured order among the survivors.
func smallestSizes(sizes []config.ThumbnailSize, n int) []config.ThumbnailSize {
	if len(sizes) <= n {
		return sizes
	}
	sorted := make([]config.ThumbnailSize, len(sizes))
	copy(sorted, sizes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Width*sorted[i].Height < sorted[j].Width*sorted[j].Height
	})
	keep := map[string]bool{}
	for _, s := range sorted[:n] {
		keep[s.Name] = true
	}
	var out []config.ThumbnailSize
	for _, s := range sizes {
		if keep[s.Name] {
			out = append(out, s)
		}
	}
	return out
}

var errUnsupportedEncoding = fmt.Errorf("unsupported encoding")

// encode writes the image in the requested format. webp has no pure-Go
// encoder, so a webp preference always falls through to the fallback.
func encode(img image.Image, encoding string) (data []byte, mimeType, ext string, err error) {
	var buf bytes.Buffer
	switch encoding {
	case "jpeg", "jpg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			return nil, "", "", err
		}
		return buf.Bytes(), "image/jpeg", "jpg", nil
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", "", err
		}
		return buf.Bytes(), "image/png", "png", nil
	case "gif":
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, "", "", err
		}
		return buf.Bytes(), "image/gif", "gif", nil
	default:
		return nil, "", "", errUnsupportedEncoding
	}
}
