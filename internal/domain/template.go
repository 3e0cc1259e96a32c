package domain

import (
	"fmt"
	"strings"
	"time"
)

// MessageTemplate is a stored subject/body pair for one category and
// language. Bodies use {{name}} placeholders for variable substitution.
type MessageTemplate struct {
	ID        string
	Category  Category
	Language  string
	Subject   string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t *MessageTemplate) Validate() error {
	if !t.Category.IsValid() {
		return fmt.Errorf("%w: invalid category %q", ErrValidation, t.Category)
	}
	if strings.TrimSpace(t.Language) == "" {
		return fmt.Errorf("%w: language is required", ErrValidation)
	}
	if strings.TrimSpace(t.Body) == "" {
		return fmt.Errorf("%w: template body is required", ErrValidation)
	}
	return nil
}
