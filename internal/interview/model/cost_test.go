package model

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

func TestComputeCost(t *testing.T) {
	p := ResolvePricing("gemini-2.5-flash")
	in, out, total := ComputeCost(&schema.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 100_000}, p)
	assert.InDelta(t, 0.30, in, 1e-9)
	assert.InDelta(t, 0.25, out, 1e-9)
	assert.InDelta(t, 0.55, total, 1e-9)

	_, _, total = ComputeCost(nil, p)
	assert.Zero(t, total)

	assert.Equal(t, Pricing{}, ResolvePricing("unknown-model"))
}

func TestProfileDocumentsEnabled(t *testing.T) {
	off := false
	assert.True(t, Profile{}.DocumentsEnabled())
	assert.False(t, Profile{IncludeDocuments: &off}.DocumentsEnabled())
}
