package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/outreach-backend/internal/model"
)

func TestTemplateGenerator_Variants(t *testing.T) {
	g, err := NewTemplateGenerator()
	require.NoError(t, err)

	for _, tone := range ToneRotation {
		d, err := g.Generate(context.Background(), model.DraftRequest{Tone: tone, UseCase: model.UseCaseInitial, Reference: "story"})
		require.NoError(t, err, tone)
		assert.NotEmpty(t, d.Subject, tone)
		assert.Contains(t, d.Body, "{{firstName}}", tone)
	}
}

func TestTemplateGenerator_FallsBackToProfessional(t *testing.T) {
	g, err := NewTemplateGenerator()
	require.NoError(t, err)

	want, _ := g.Generate(context.Background(), model.DraftRequest{Tone: "professional", UseCase: model.UseCaseInitial, Reference: "x"})
	got, _ := g.Generate(context.Background(), model.DraftRequest{Tone: "sarcastic", UseCase: model.UseCaseInitial, Reference: "x"})
	assert.Equal(t, want, got)

	followup, _ := g.Generate(context.Background(), model.DraftRequest{Tone: "storytelling", UseCase: model.UseCaseFollowUp})
	assert.Equal(t, "Following up, {{firstName}}", followup.Subject)
}

func TestTemplateGenerator_ContextAndReference(t *testing.T) {
	g, err := NewTemplateGenerator()
	require.NoError(t, err)

	d, err := g.Generate(context.Background(), model.DraftRequest{Tone: "storytelling", UseCase: model.UseCaseInitial, Context: "book demos"})
	require.NoError(t, err)
	assert.True(t, len(d.Body) > 0)
	assert.Contains(t, d.Body, "[Goal: book demos]\n\n")
	assert.NotContains(t, d.Body, "{{reference_company}}")

	d, err = g.Generate(context.Background(), model.DraftRequest{Tone: "storytelling", UseCase: model.UseCaseInitial, Reference: "story"})
	require.NoError(t, err)
	assert.Contains(t, d.Body, "{{reference_company}}")
}

func TestParseTemplates_RequiresDefault(t *testing.T) {
	_, err := parseTemplates([]byte("- tone: friendly\n  use_case: initial\n  subject: s\n  body: b\n"))
	assert.Error(t, err)

	_, err = parseTemplates([]byte("not: [valid"))
	assert.Error(t, err)
}

func TestFallbackGenerator(t *testing.T) {
	fallback, err := NewTemplateGenerator()
	require.NoError(t, err)

	g := &FallbackGenerator{Primary: &stubGenerator{err: errors.New("upstream down")}, Fallback: fallback}
	d, err := g.Generate(context.Background(), model.DraftRequest{Tone: "friendly", UseCase: model.UseCaseInitial})
	require.NoError(t, err)
	assert.Equal(t, "Hello from {{senderName}}", d.Subject)

	g = &FallbackGenerator{Primary: &stubGenerator{}, Fallback: fallback}
	d, err = g.Generate(context.Background(), model.DraftRequest{Tone: "friendly"})
	require.NoError(t, err)
	assert.Equal(t, "Hi {{firstName}}", d.Subject)
}
