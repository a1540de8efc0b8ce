package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/fluentlabs/lernplan/internal/models"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	if err := Validate.RegisterValidation("cefr_level", validateCEFRLevel); err != nil {
		panic(fmt.Sprintf("failed to register cefr_level validator: %v", err))
	}
	if err := Validate.RegisterValidation("capability", validateCapability); err != nil {
		panic(fmt.Sprintf("failed to register capability validator: %v", err))
	}
}

// validateCEFRLevel validates that a string is a valid CEFR level
func validateCEFRLevel(fl validator.FieldLevel) bool {
	return models.Level(fl.Field().String()).Valid()
}

// validateCapability validates that a string is a known capability tag
func validateCapability(fl validator.FieldLevel) bool {
	return models.Capability(fl.Field().String()).Valid()
}

// ValidateContentBlock checks a provider's output against the required-fields
// schema. Any violation means the block must be treated as a provider failure,
// never surfaced as valid content.
func ValidateContentBlock(block *models.ContentBlock) error {
	if block == nil {
		return fmt.Errorf("content block is nil")
	}
	if err := Validate.Struct(block); err != nil {
		return fmt.Errorf("content block schema: %w", err)
	}
	return nil
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateLevel validates a CEFR level string value
func ValidateLevel(value string) error {
	if !models.Level(value).Valid() {
		return fmt.Errorf("invalid level: %s (must be one of A1, A2, B1, B2, C1, C2)", value)
	}
	return nil
}
