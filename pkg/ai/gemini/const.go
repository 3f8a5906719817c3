package gemini

// Constants for Gemini AI client
const (
	// Model family identifier
	ModelFamily = "gemini"

	// Default vision model used for tagging and metadata suggestion
	DefaultVisionModel = "gemini-2.5-flash"

	// Upper bound on tags requested per asset
	MaxTagsPerAsset = 15
)
