package models

import (
	"encoding/json"
	"fmt"
	"slices"
)

type ShapeKind string

const (
	ShapeKindPen       ShapeKind = "pen"
	ShapeKindRectangle ShapeKind = "rectangle"
	ShapeKindEllipse   ShapeKind = "ellipse"
	ShapeKindArrow     ShapeKind = "arrow"
	ShapeKindText      ShapeKind = "text"
	ShapeKindSticky    ShapeKind = "sticky"
)

var ShapeKinds = []ShapeKind{
	ShapeKindPen,
	ShapeKindRectangle,
	ShapeKindEllipse,
	ShapeKindArrow,
	ShapeKindText,
	ShapeKindSticky,
}

func (k ShapeKind) Valid() bool {
	return slices.Contains(ShapeKinds, k)
}

const (
	DefaultTextColor   = "#0f172a"
	DefaultFill        = "#111827"
	DefaultStrokeWidth = 3
)

// Shape is a single drawable unit on a board.
// Points are kind specific: coordinate pairs for strokes,
// a top-left [x, y] anchor for sticky notes and rectangles.
type Shape struct {
	ID          string    `json:"id"`
	Kind        ShapeKind `json:"kind"`
	Points      []float64 `json:"points"`
	Text        *string   `json:"text,omitempty"`
	TextColor   string    `json:"textColor"`
	Fill        string    `json:"fill"`
	StrokeWidth float64   `json:"strokeWidth"`
	Rotation    float64   `json:"rotation"`
	Width       *float64  `json:"width,omitempty"`
	Height      *float64  `json:"height,omitempty"`
	// LockedBy is an advisory owner claim. Nothing enforces it.
	LockedBy *string `json:"lockedBy,omitempty"`
}

// NewShape returns a shape of the given kind with all defaults applied.
func NewShape(id string, kind ShapeKind, points ...float64) Shape {
	if points == nil {
		points = []float64{}
	}
	return Shape{
		ID:          id,
		Kind:        kind,
		Points:      points,
		TextColor:   DefaultTextColor,
		Fill:        DefaultFill,
		StrokeWidth: DefaultStrokeWidth,
	}
}

func (s Shape) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidShape)
	}
	if !s.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidShape, s.Kind)
	}
	return nil
}

// UnmarshalJSON decodes a shape and fills in the defaulted fields
// that the sender omitted.
func (s *Shape) UnmarshalJSON(data []byte) error {
	type alias Shape
	var raw struct {
		alias
		TextColor   *string  `json:"textColor"`
		Fill        *string  `json:"fill"`
		StrokeWidth *float64 `json:"strokeWidth"`
		Rotation    *float64 `json:"rotation"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	shape := Shape(raw.alias)
	shape.TextColor = DefaultTextColor
	if raw.TextColor != nil {
		shape.TextColor = *raw.TextColor
	}
	shape.Fill = DefaultFill
	if raw.Fill != nil {
		shape.Fill = *raw.Fill
	}
	shape.StrokeWidth = DefaultStrokeWidth
	if raw.StrokeWidth != nil {
		shape.StrokeWidth = *raw.StrokeWidth
	}
	if raw.Rotation != nil {
		shape.Rotation = *raw.Rotation
	}
	if shape.Points == nil {
		shape.Points = []float64{}
	}
	if err := shape.Validate(); err != nil {
		return err
	}

	*s = shape
	return nil
}

// Merge returns s updated with the fields carried by patch. Zero-valued
// kind, colors, stroke width and nil points or optional fields keep the
// current value. Rotation is always taken from the patch since zero is a
// meaningful angle and decoded shapes always carry it.
func (s Shape) Merge(patch Shape) Shape {
	merged := s.Clone()
	if patch.Kind != "" {
		merged.Kind = patch.Kind
	}
	if patch.Points != nil {
		merged.Points = slices.Clone(patch.Points)
	}
	if patch.TextColor != "" {
		merged.TextColor = patch.TextColor
	}
	if patch.Fill != "" {
		merged.Fill = patch.Fill
	}
	if patch.StrokeWidth != 0 {
		merged.StrokeWidth = patch.StrokeWidth
	}
	merged.Rotation = patch.Rotation
	if patch.Text != nil {
		merged.Text = clonePtr(patch.Text)
	}
	if patch.Width != nil {
		merged.Width = clonePtr(patch.Width)
	}
	if patch.Height != nil {
		merged.Height = clonePtr(patch.Height)
	}
	if patch.LockedBy != nil {
		merged.LockedBy = clonePtr(patch.LockedBy)
	}
	return merged
}

// Clone returns a deep copy so snapshots never alias live shapes.
func (s Shape) Clone() Shape {
	c := s
	if s.Points != nil {
		c.Points = slices.Clone(s.Points)
	}
	c.Text = clonePtr(s.Text)
	c.Width = clonePtr(s.Width)
	c.Height = clonePtr(s.Height)
	c.LockedBy = clonePtr(s.LockedBy)
	return c
}

func CloneShapes(shapes []Shape) []Shape {
	if shapes == nil {
		return []Shape{}
	}
	out := make([]Shape, len(shapes))
	for i, s := range shapes {
		out[i] = s.Clone()
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr is a helper for filling optional shape fields.
func Ptr[T any](v T) *T {
	return &v
}
