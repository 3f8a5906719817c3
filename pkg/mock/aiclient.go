package mock

import (
	"context"

	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/ai"
)

// AIClient is a canned-response stand-in for the vision backend.
type AIClient struct {
	Tags   []ai.Tag
	Fields []ai.SuggestedField
	Err    error

	TagCalls     int
	SuggestCalls int
}

var _ ai.Client = (*AIClient)(nil)

func (m *AIClient) Name() string { return "mock" }

func (m *AIClient) TagImage(context.Context, []byte, string) ([]ai.Tag, error) {
	m.TagCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Tags, nil
}

func (m *AIClient) SuggestMetadata(context.Context, []byte, string, []string) ([]ai.SuggestedField, error) {
	m.SuggestCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Fields, nil
}

func (m *AIClient) Close() error { return nil }
