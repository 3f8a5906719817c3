package ai

import (
	"context"
)

const (
	// OpenAI model family
	ModelFamilyOpenAI = "openai"
	// Gemini model family
	ModelFamilyGemini = "gemini"
)

// Tag is one label proposed by the vision model for an asset.
type Tag struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// SuggestedField is one metadata field proposed by the vision model. Fields
// at or above the auto-apply confidence threshold land in the version's
// metadata directly; the rest are stored as suggestions for human review.
type SuggestedField struct {
	Name       string  `json:"name"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Client is the interface for vision analysis backends.
type Client interface {
	// Name returns the client name
	Name() string

	// TagImage proposes descriptive tags for a rendered preview.
	TagImage(ctx context.Context, image []byte, mimeType string) ([]Tag, error)

	// SuggestMetadata proposes values for the requested metadata fields based
	// on a rendered preview.
	SuggestMetadata(ctx context.Context, image []byte, mimeType string, fields []string) ([]SuggestedField, error)

	// Close releases client resources
	Close() error
}
