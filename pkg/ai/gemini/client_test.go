package gemini

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
	"google.golang.org/genai"
)

func TestNewClient_MissingKey(t *testing.T) {
	c := qt.New(t)

	_, err := NewClient(context.Background(), "", "")
	c.Check(err, qt.IsNotNil)
}

func TestExtractText(t *testing.T) {
	c := qt.New(t)

	c.Check(extractText(nil), qt.Equals, "")
	c.Check(extractText(&genai.GenerateContentResponse{}), qt.Equals, "")

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{
						{Text: `[{"name":`},
						{Text: `"cat"}]`},
					},
				},
			},
		},
	}
	c.Check(extractText(resp), qt.Equals, `[{"name":"cat"}]`)
}

func TestStripCodeFence(t *testing.T) {
	c := qt.New(t)

	c.Check(stripCodeFence(`[{"name":"cat"}]`), qt.Equals, `[{"name":"cat"}]`)
	c.Check(stripCodeFence("```json\n[{\"name\":\"cat\"}]\n```"), qt.Equals, `[{"name":"cat"}]`)
	c.Check(stripCodeFence("```\n[]\n```"), qt.Equals, `[]`)
}
