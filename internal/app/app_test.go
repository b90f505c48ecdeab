package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/outreach-backend/internal/config"
	"github.com/unclebandit/outreach-backend/internal/service"
)

func TestNewGenerator(t *testing.T) {
	gen, err := NewGenerator(config.DraftsConfig{Provider: "template"})
	require.NoError(t, err)
	assert.IsType(t, &service.TemplateGenerator{}, gen)

	gen, err = NewGenerator(config.DraftsConfig{Provider: "openai"})
	require.NoError(t, err)
	assert.IsType(t, &service.TemplateGenerator{}, gen, "no key falls back to templates")

	gen, err = NewGenerator(config.DraftsConfig{Provider: "openai", OpenAIKey: "sk-test", OpenAIModel: "gpt-4o-mini"})
	require.NoError(t, err)
	fb, ok := gen.(*service.FallbackGenerator)
	require.True(t, ok)
	assert.IsType(t, &service.TemplateGenerator{}, fb.Fallback)
}
