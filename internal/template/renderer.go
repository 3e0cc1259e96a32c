package template

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kursadbilgin/notify-engine/internal/domain"
	"github.com/kursadbilgin/notify-engine/internal/repository"
	"go.uber.org/zap"
)

// Renderer resolves a stored template and renders its subject/body pair.
// Service is the production implementation.
type Renderer interface {
	RenderFor(ctx context.Context, category domain.Category, language string, variables map[string]string) (subject, body string, err error)
}

// Render replaces {{name}} placeholders with the matching variable values.
// Placeholders without a matching variable are left untouched so a missing
// variable is visible in the delivered text instead of silently vanishing.
func Render(body string, variables map[string]string) string {
	if len(variables) == 0 {
		return body
	}

	pairs := make([]string, 0, len(variables)*2)
	for name, value := range variables {
		pairs = append(pairs, "{{"+name+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(body)
}

var _ Renderer = (*Service)(nil)

// Service resolves a stored template for a category and language and renders
// its subject/body pair.
type Service struct {
	templates       repository.TemplateRepository
	defaultLanguage string
	logger          *zap.Logger
}

func NewService(templates repository.TemplateRepository, defaultLanguage string, logger *zap.Logger) (*Service, error) {
	if templates == nil {
		return nil, fmt.Errorf("template repository is required")
	}
	if strings.TrimSpace(defaultLanguage) == "" {
		defaultLanguage = "en"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		templates:       templates,
		defaultLanguage: defaultLanguage,
		logger:          logger,
	}, nil
}

// RenderFor loads the template for the category in the requested language,
// falling back to the default language, and renders it with the variables.
// The returned subject falls back to the category default when the stored
// template has none.
func (s *Service) RenderFor(ctx context.Context, category domain.Category, language string, variables map[string]string) (subject, body string, err error) {
	language = strings.TrimSpace(language)
	if language == "" {
		language = s.defaultLanguage
	}

	tmpl, err := s.templates.GetByCategoryAndLanguage(ctx, category, language)
	if errors.Is(err, domain.ErrNotFound) && language != s.defaultLanguage {
		s.logger.Debug("template missing for language, falling back",
			zap.String("category", category.String()),
			zap.String("language", language),
			zap.String("fallback", s.defaultLanguage),
		)
		tmpl, err = s.templates.GetByCategoryAndLanguage(ctx, category, s.defaultLanguage)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return "", "", fmt.Errorf("%w: no template for category %s", domain.ErrNotFound, category)
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to load template: %w", err)
	}

	subject = Render(tmpl.Subject, variables)
	if strings.TrimSpace(subject) == "" {
		subject = category.DefaultSubject()
	}
	return subject, Render(tmpl.Body, variables), nil
}
