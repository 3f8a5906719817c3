package objectstorage

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestPaths(t *testing.T) {
	c := qt.New(t)

	c.Check(GetStagingPathOfAsset("t1", "a1", "png"), qt.Equals, "t1/staging/a1.png")
	c.Check(GetPermanentPathOfAsset("t1", "a1", "png"), qt.Equals, "t1/asset/a1.png")
	c.Check(GetThumbnailPathOfAsset("t1", "a1", "small", "webp"), qt.Equals, "t1/thumbnail/a1/small.webp")
}
