package openai

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestNewClient_MissingKey(t *testing.T) {
	c := qt.New(t)

	_, err := NewClient(context.Background(), "", "")
	c.Check(err, qt.IsNotNil)
}

func TestStripCodeFence(t *testing.T) {
	c := qt.New(t)

	c.Check(stripCodeFence(`[{"name":"cat"}]`), qt.Equals, `[{"name":"cat"}]`)
	c.Check(stripCodeFence("```json\n[{\"name\":\"cat\"}]\n```"), qt.Equals, `[{"name":"cat"}]`)
	c.Check(stripCodeFence("```\n[]\n```"), qt.Equals, `[]`)
}
