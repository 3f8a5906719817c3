package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/ai"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/errorsx"
)

// Client implements the ai.Client interface for Gemini vision models.
type Client struct {
	client      *genai.Client
	visionModel string
}

// NewClient creates a new Gemini AI client
func NewClient(ctx context.Context, apiKey, visionModel string) (*Client, error) {
	if apiKey == "" {
		err := errorsx.ErrInvalidArgument
		return nil, errorsx.AddMessage(err, "AI client configuration is missing. Please contact your administrator.")
	}
	if visionModel == "" {
		visionModel = DefaultVisionModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	return &Client{
		client:      client,
		visionModel: visionModel,
	}, nil
}

// Name returns the client name
func (c *Client) Name() string {
	return ai.ModelFamilyGemini
}

// Close releases client resources
func (c *Client) Close() error {
	// The genai.Client doesn't need explicit closing in the current API
	return nil
}

const tagPrompt = `List up to %d descriptive tags for this image. Respond with a JSON array of objects, each with "name" (lowercase, 1-3 words) and "confidence" (0.0-1.0). Respond with JSON only, no prose.`

// TagImage proposes descriptive tags for a rendered preview.
func (c *Client) TagImage(ctx context.Context, image []byte, mimeType string) ([]ai.Tag, error) {
	raw, err := c.generate(ctx, fmt.Sprintf(tagPrompt, MaxTagsPerAsset), image, mimeType)
	if err != nil {
		return nil, err
	}
	var tags []ai.Tag
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("parsing tag response: %w", err)
	}
	return tags, nil
}

const metadataPrompt = `Propose values for the following metadata fields of this image: %s. Respond with a JSON array of objects, each with "name", "value" and "confidence" (0.0-1.0). Omit fields you cannot infer. Respond with JSON only, no prose.`

// SuggestMetadata proposes values for the requested metadata fields.
func (c *Client) SuggestMetadata(ctx context.Context, image []byte, mimeType string, fields []string) ([]ai.SuggestedField, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	raw, err := c.generate(ctx, fmt.Sprintf(metadataPrompt, strings.Join(fields, ", ")), image, mimeType)
	if err != nil {
		return nil, err
	}
	var suggested []ai.SuggestedField
	if err := json.Unmarshal([]byte(raw), &suggested); err != nil {
		return nil, fmt.Errorf("parsing metadata response: %w", err)
	}
	return suggested, nil
}

func (c *Client) generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	contents := []*genai.Content{
		{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
				{Text: prompt},
			},
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.visionModel, contents, nil)
	if err != nil {
		return "", fmt.Errorf("calling vision model: %w", err)
	}
	return stripCodeFence(extractText(resp)), nil
}

// extractText concatenates the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// stripCodeFence removes a markdown code fence the model sometimes wraps
// around its JSON despite the prompt.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
