package openai

// Constants for OpenAI AI client
const (
	// Model family identifier
	ModelFamily = "openai"

	// Default vision model used for tagging and metadata suggestion
	DefaultVisionModel = "gpt-4o-mini"

	// Upper bound on tags requested per asset
	MaxTagsPerAsset = 15
)
