package content

import (
	"errors"
	"html"
	"regexp"
	"strings"

	"doska/internal/models"

	"github.com/microcosm-cc/bluemonday"
)

// MaxIDLength bounds board, share and client ids.
const MaxIDLength = 128

var (
	policy  = bluemonday.StrictPolicy()
	idRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

// PlainText strips all markup from user input such as presence names and
// sticky note text. The result is plain, unescaped text and is stable
// under repeated application.
func PlainText(input string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(input)))
}

// SanitizeShapes returns shapes with their text payloads reduced to plain text.
func SanitizeShapes(shapes []models.Shape) []models.Shape {
	out := models.CloneShapes(shapes)
	for i := range out {
		if out[i].Text != nil {
			text := PlainText(*out[i].Text)
			out[i].Text = &text
		}
	}
	return out
}

// ValidateID checks that an id contains only alphanumeric, dot, dash and
// underscore characters and is not empty.
func ValidateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}
	if len(id) > MaxIDLength {
		return errors.New("id is too long")
	}
	if !idRegex.MatchString(id) {
		return errors.New("id contains invalid characters (allowed: alphanumeric, dot, dash, underscore)")
	}
	return nil
}
