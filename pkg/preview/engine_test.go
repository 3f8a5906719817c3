package preview

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/ilovetoast/jackpot-firehorse-sub012/config"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/classifier"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/pipeline"
)

func encodePNG(c *qt.C, w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	c.Assert(png.Encode(&buf, img), qt.IsNil)
	return buf.Bytes()
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		MaxPixelArea:      1_000_000,
		OversizedFactor:   8,
		PreferredEncoding: "webp",
		FallbackEncoding:  "jpeg",
		ThumbnailSizes: []config.ThumbnailSize{
			{Name: "large", Width: 1024, Height: 1024},
			{Name: "medium", Width: 512, Height: 512},
			{Name: "small", Width: 256, Height: 256},
			{Name: "thumb", Width: 128, Height: 128},
		},
	}
}

func TestEngine_Generate(t *testing.T) {
	c := qt.New(t)
	engine := NewEngine(testPipelineConfig())

	src := encodePNG(c, 800, 600)
	res, err := engine.Generate(context.Background(), src, classifier.CategoryRasterImage)
	c.Assert(err, qt.IsNil)

	c.Check(res.SourceWidth, qt.Equals, 800)
	c.Check(res.SourceHeight, qt.Equals, 600)
	c.Check(res.Degraded, qt.IsFalse)
	c.Assert(res.Renditions, qt.HasLen, 4)

	// webp preference has no encoder, falls back
	c.Check(res.Encoding, qt.Equals, "jpeg")
	c.Check(res.Renditions[0].MimeType, qt.Equals, "image/jpeg")

	// aspect ratio preserved inside each bounding box
	byName := map[string]Rendition{}
	for _, r := range res.Renditions {
		byName[r.SizeName] = r
	}
	c.Check(byName["medium"].Width, qt.Equals, 512)
	c.Check(byName["medium"].Height, qt.Equals, 384)

	// no upscaling past the source
	c.Check(byName["large"].Width, qt.Equals, 800)
	c.Check(byName["large"].Height, qt.Equals, 600)
}

func TestEngine_Generate_Degraded(t *testing.T) {
	c := qt.New(t)
	cfg := testPipelineConfig()
	cfg.MaxPixelArea = 100 * 100
	engine := NewEngine(cfg)

	src := encodePNG(c, 300, 200)
	res, err := engine.Generate(context.Background(), src, classifier.CategoryRasterImage)
	c.Assert(err, qt.IsNil)

	c.Check(res.Degraded, qt.IsTrue)
	c.Assert(res.Renditions, qt.HasLen, 2)
	c.Check(res.Renditions[0].SizeName, qt.Equals, "small")
	c.Check(res.Renditions[1].SizeName, qt.Equals, "thumb")
}

func TestEngine_Generate_Oversized(t *testing.T) {
	c := qt.New(t)
	cfg := testPipelineConfig()
	cfg.MaxPixelArea = 10 * 10
	engine := NewEngine(cfg)

	src := encodePNG(c, 100, 100)
	_, err := engine.Generate(context.Background(), src, classifier.CategoryRasterImage)
	c.Assert(err, qt.IsNotNil)

	var stageErr *pipeline.StageError
	c.Assert(errors.As(err, &stageErr), qt.IsTrue)
	c.Check(stageErr.Category, qt.Equals, pipeline.FailureOversized)
}

func TestEngine_Generate_Corrupt(t *testing.T) {
	c := qt.New(t)
	engine := NewEngine(testPipelineConfig())

	_, err := engine.Generate(context.Background(), []byte("not an image"), classifier.CategoryRasterImage)
	c.Assert(err, qt.IsNotNil)

	var stageErr *pipeline.StageError
	c.Assert(errors.As(err, &stageErr), qt.IsTrue)
	c.Check(stageErr.Category, qt.Equals, pipeline.FailureDecode)
}

func TestEngine_Generate_VectorSkips(t *testing.T) {
	c := qt.New(t)
	engine := NewEngine(testPipelineConfig())

	_, err := engine.Generate(context.Background(), []byte("<svg/>"), classifier.CategoryVectorSkip)
	c.Assert(err, qt.IsNotNil)

	var stageErr *pipeline.StageError
	c.Assert(errors.As(err, &stageErr), qt.IsTrue)
	c.Check(stageErr.Category, qt.Equals, pipeline.FailureUnsupportedFormat)
}

func TestSmallestSizes(t *testing.T) {
	c := qt.New(t)
	sizes := testPipelineConfig().ThumbnailSizes

	out := smallestSizes(sizes, 2)
	c.Assert(out, qt.HasLen, 2)
	c.Check(out[0].Name, qt.Equals, "small")
	c.Check(out[1].Name, qt.Equals, "thumb")

	c.Check(smallestSizes(sizes[:1], 2), qt.HasLen, 1)
}
