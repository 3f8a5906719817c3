package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/ai"
	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/errorsx"
)

// Client implements the ai.Client interface for OpenAI vision models.
type Client struct {
	client      *openai.Client
	visionModel string
}

// NewClient creates a new OpenAI AI client
func NewClient(ctx context.Context, apiKey, visionModel string) (*Client, error) {
	if apiKey == "" {
		err := errorsx.ErrInvalidArgument
		return nil, errorsx.AddMessage(err, "AI client configuration is missing. Please contact your administrator.")
	}
	if visionModel == "" {
		visionModel = DefaultVisionModel
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &Client{
		client:      &client,
		visionModel: visionModel,
	}, nil
}

// Name returns the client name
func (c *Client) Name() string {
	return ai.ModelFamilyOpenAI
}

// Close releases client resources
func (c *Client) Close() error {
	return nil
}

const tagPrompt = `List up to %d descriptive tags for this image. Respond with a JSON array of objects, each with "name" (lowercase, 1-3 words) and "confidence" (0.0-1.0). Respond with JSON only, no prose.`

// TagImage proposes descriptive tags for a rendered preview.
func (c *Client) TagImage(ctx context.Context, image []byte, mimeType string) ([]ai.Tag, error) {
	raw, err := c.complete(ctx, fmt.Sprintf(tagPrompt, MaxTagsPerAsset), image, mimeType)
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
	raw, err := c.complete(ctx, fmt.Sprintf(metadataPrompt, strings.Join(fields, ", ")), image, mimeType)
	if err != nil {
		return nil, err
	}
	var suggested []ai.SuggestedField
	if err := json.Unmarshal([]byte(raw), &suggested); err != nil {
		return nil, fmt.Errorf("parsing metadata response: %w", err)
	}
	return suggested, nil
}

func (c *Client) complete(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.visionModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL,
				}),
			}),
		},
	})
	if err != nil {
		return "", fmt.Errorf("calling vision model: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision model returned no choices")
	}
	return stripCodeFence(resp.Choices[0].Message.Content), nil
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
