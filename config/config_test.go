package config

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func validPipelineConfig() PipelineConfig {
	return PipelineConfig{
		StageTimeout:      5 * time.Minute,
		WatchdogThreshold: 15 * time.Minute,
		MaxPixelArea:      64_000_000,
		OversizedFactor:   8,
		VectorPolicy:      VectorPolicyCompletedFlag,
		ThumbnailSizes:    []ThumbnailSize{{Name: "thumb", Width: 150, Height: 150}},
	}
}

func TestValidatePipelineConfig(t *testing.T) {
	c := qt.New(t)
	c.Assert(ValidatePipelineConfig(validPipelineConfig()), qt.IsNil)
}

func TestValidatePipelineConfig_WatchdogBelowPreviewBudget(t *testing.T) {
	c := qt.New(t)
	cfg := validPipelineConfig()
	// the preview stage runs on twice the stage timeout, so 6m would invite
	// false positives while a 10m preview is still live
	cfg.WatchdogThreshold = 6 * time.Minute
	c.Assert(ValidatePipelineConfig(cfg), qt.IsNotNil)
}

func TestValidatePipelineConfig_OversizedFactor(t *testing.T) {
	c := qt.New(t)
	cfg := validPipelineConfig()
	cfg.OversizedFactor = 1
	c.Assert(ValidatePipelineConfig(cfg), qt.IsNotNil)
}

func TestValidatePipelineConfig_NoSizes(t *testing.T) {
	c := qt.New(t)
	cfg := validPipelineConfig()
	cfg.ThumbnailSizes = nil
	c.Assert(ValidatePipelineConfig(cfg), qt.IsNotNil)
}

func TestValidatePipelineConfig_VectorPolicy(t *testing.T) {
	c := qt.New(t)
	cfg := validPipelineConfig()
	cfg.VectorPolicy = "drop"
	c.Assert(ValidatePipelineConfig(cfg), qt.IsNotNil)
}
