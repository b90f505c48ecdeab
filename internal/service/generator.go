package service

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/pkg/logger"
)

// Generator writes a draft subject and body that still carry placeholders.
type Generator interface {
	Generate(ctx context.Context, req model.DraftRequest) (model.DraftContent, error)
}

//go:embed templates.yaml
var templatesYAML []byte

type templateVariant struct {
	Tone    string        `yaml:"tone"`
	UseCase model.UseCase `yaml:"use_case"`
	Subject string        `yaml:"subject"`
	Body    string        `yaml:"body"`
}

// TemplateGenerator serves the built-in variant library. It never calls out
// and is the fallback for every other backend.
type TemplateGenerator struct {
	variants map[string]model.DraftContent
}

func NewTemplateGenerator() (*TemplateGenerator, error) {
	return parseTemplates(templatesYAML)
}

func parseTemplates(data []byte) (*TemplateGenerator, error) {
	var list []templateVariant
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse draft templates: %w", err)
	}
	g := &TemplateGenerator{variants: make(map[string]model.DraftContent, len(list))}
	for _, v := range list {
		g.variants[variantKey(v.Tone, v.UseCase)] = model.DraftContent{
			Subject: v.Subject,
			Body:    strings.TrimRight(v.Body, "\n"),
		}
	}
	if _, ok := g.variants[variantKey("professional", model.UseCaseInitial)]; !ok {
		return nil, fmt.Errorf("draft templates: missing professional/initial variant")
	}
	return g, nil
}

func variantKey(tone string, useCase model.UseCase) string {
	return tone + "-" + string(useCase)
}

func (g *TemplateGenerator) Generate(_ context.Context, req model.DraftRequest) (model.DraftContent, error) {
	useCase := req.UseCase
	if useCase == "" {
		useCase = model.UseCaseInitial
	}
	d, ok := g.variants[variantKey(req.Tone, useCase)]
	if !ok {
		d, ok = g.variants[variantKey("professional", useCase)]
	}
	if !ok {
		d = g.variants[variantKey("professional", model.UseCaseInitial)]
	}

	body := d.Body
	if req.Context != "" {
		body = "[Goal: " + req.Context + "]\n\n" + body
	}
	if strings.TrimSpace(req.Reference) == "" {
		body = dropLinesWith(body, referenceToken)
	}
	return model.DraftContent{Subject: d.Subject, Body: body}, nil
}

// FallbackGenerator tries Primary and serves Fallback when it fails.
type FallbackGenerator struct {
	Primary  Generator
	Fallback Generator
}

func (g *FallbackGenerator) Generate(ctx context.Context, req model.DraftRequest) (model.DraftContent, error) {
	d, err := g.Primary.Generate(ctx, req)
	if err == nil && d.Subject != "" && d.Body != "" {
		return d, nil
	}
	if err == nil {
		err = fmt.Errorf("empty draft")
	}
	logger.Warn("draft generator failed, using fallback", "tone", req.Tone, "use_case", req.UseCase, "error", err)
	return g.Fallback.Generate(ctx, req)
}
