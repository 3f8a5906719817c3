package preview

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/classifier"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/pipeline"
)

// Decoder turns raw asset bytes into a decoded image.
type Decoder interface {
	// Decode renders the full image.
	Decode(ctx context.Context, content []byte) (image.Image, error)
	// Bounds reads the source dimensions without a full decode. Decoders
	// that cannot read dimensions cheaply return (0, 0, nil).
	Bounds(ctx context.Context, content []byte) (width, height int, err error)
}

// DecoderFor maps an asset category to its decoder.
func DecoderFor(category classifier.Category) (Decoder, error) {
	switch category {
	case classifier.CategoryRasterImage, classifier.CategoryAltDecoderImage:
		return imageDecoder{}, nil
	case classifier.CategoryPDFDocument:
		return pdfDecoder{dpi: pdfRenderDPI}, nil
	default:
		return nil, pipeline.NewStageError(pipeline.StageGeneratePreviews,
			pipeline.FailureUnsupportedFormat,
			fmt.Errorf("no decoder for category %q", category))
	}
}

// imageDecoder handles every format the registered image decoders cover:
// jpeg/png/gif from the standard library, bmp/tiff/webp from x/image.
type imageDecoder struct{}

func (imageDecoder) Decode(_ context.Context, content []byte) (image.Image, error) {
	src, err := imaging.Decode(bytes.NewReader(content), imaging.AutoOrientation(true))
	if err != nil {
		return nil, pipeline.NewStageError(pipeline.StageGeneratePreviews,
			pipeline.FailureDecode, fmt.Errorf("decoding image: %w", err))
	}
	return src, nil
}

func (imageDecoder) Bounds(_ context.Context, content []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return 0, 0, pipeline.NewStageError(pipeline.StageGeneratePreviews,
			pipeline.FailureDecode, fmt.Errorf("reading image header: %w", err))
	}
	return cfg.Width, cfg.Height, nil
}

const pdfRenderDPI = 150

// pdfDecoder renders the first page of a PDF with Poppler's pdftoppm.
type pdfDecoder struct {
	dpi int
}

func (d pdfDecoder) Decode(ctx context.Context, content []byte) (image.Image, error) {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return nil, pipeline.NewStageError(pipeline.StageGeneratePreviews,
			pipeline.FailureMissingCapability, fmt.Errorf("pdftoppm not found in PATH: %w", err))
	}

	dir, err := os.MkdirTemp("", "preview-pdf-")
	if err != nil {
		return nil, pipeline.NewStageError(pipeline.StageGeneratePreviews,
			pipeline.FailureInternal, fmt.Errorf("creating scratch dir: %w", err))
	}
	defer os.RemoveAll(dir)

	srcPath := filepath.Join(dir, "page.pdf")
	if err := os.WriteFile(srcPath, content, 0o600); err != nil {
		return nil, pipeline.NewStageError(pipeline.StageGeneratePreviews,
			pipeline.FailureInternal, fmt.Errorf("writing scratch pdf: %w", err))
	}

	outBase := filepath.Join(dir, "page")
	args := []string{
		"-png",
		"-singlefile",
		"-f", "1",
		"-l", "1",
		"-r", strconv.Itoa(d.dpi),
		srcPath,
		outBase,
	}
	cmd := exec.CommandContext(ctx, "pdftoppm", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, pipeline.NewStageError(pipeline.StageGeneratePreviews,
			pipeline.FailureDecode, fmt.Errorf("pdftoppm failed: %w: %s", err, out))
	}

	rendered, err := os.ReadFile(outBase + ".png")
	if err != nil {
		return nil, pipeline.NewStageError(pipeline.StageGeneratePreviews,
			pipeline.FailureDecode, fmt.Errorf("reading rendered page: %w", err))
	}
	src, err := imaging.Decode(bytes.NewReader(rendered))
	if err != nil {
		return nil, pipeline.NewStageError(pipeline.StageGeneratePreviews,
			pipeline.FailureDecode, fmt.Errorf("decoding rendered page: %w", err))
	}
	return src, nil
}

// Bounds is a no-op for PDFs: a rendered page never approaches the pixel-area
// ceiling at the fixed render DPI.
func (pdfDecoder) Bounds(context.Context, []byte) (int, int, error) {
	return 0, 0, nil
}
