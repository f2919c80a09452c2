package content

import (
	"strings"
	"testing"

	"doska/internal/models"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Plain text", "Hello World", "Hello World"},
		{"HTML tags", "Hello <b>World</b>", "Hello World"},
		{"Script tag", "<script>alert('xss')</script>Hello", "Hello"},
		{"Link", "<a href='javascript:alert(1)'>Click me</a>", "Click me"},
		{"Ampersand", "Tom & Jerry", "Tom & Jerry"},
		{"Emoji", "I am 🤖", "I am 🤖"},
		{"Whitespace", "  Ada  ", "Ada"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlainText(tt.input)
			if got != tt.expected {
				t.Errorf("PlainText() = %v, want %v", got, tt.expected)
			}
			if again := PlainText(got); again != got {
				t.Errorf("PlainText() not stable: %v then %v", got, again)
			}
		})
	}
}

func TestSanitizeShapes(t *testing.T) {
	text := "<i>ship</i> it"
	shapes := []models.Shape{
		models.NewShape("a", models.ShapeKindRectangle, 0, 0, 5, 5),
		{ID: "b", Kind: models.ShapeKindSticky, Points: []float64{1, 1}, Text: &text},
	}

	out := SanitizeShapes(shapes)
	if out[1].Text == nil || *out[1].Text != "ship it" {
		t.Errorf("unexpected text %v", out[1].Text)
	}
	if *shapes[1].Text != "<i>ship</i> it" {
		t.Errorf("input was modified: %v", *shapes[1].Text)
	}
	if out[0].Text != nil {
		t.Errorf("text added to shape without text")
	}
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Demo board", "demo-board", false},
		{"UUID", "4f1c2a9e-8b7d-4c3e-9a1f-2b3c4d5e6f70", false},
		{"Dotted", "board.v2", false},
		{"Underscore", "board_1", false},
		{"Invalid space", "my board", true},
		{"Invalid slash", "a/b", true},
		{"Invalid script", "<script>", true},
		{"Empty", "", true},
		{"Too long", strings.Repeat("a", MaxIDLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateID(tt.input); (err != nil) != tt.wantErr {
				t.Errorf("ValidateID() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
