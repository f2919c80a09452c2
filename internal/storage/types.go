package storage

import (
	"encoding"
	"encoding/binary"

	"doska/internal/models"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type DBBoard struct {
	ID        string `msgpack:"id"`
	Name      string `msgpack:"name"`
	Slug      string `msgpack:"slug"`
	OwnerID   string `msgpack:"ownerId"`
	CreatedAt int64  `msgpack:"createdAt"`
	UpdatedAt int64  `msgpack:"updatedAt"`
}

func (b *DBBoard) Key() []byte {
	return []byte(b.ID)
}

func (b *DBBoard) MarshalBinary() (data []byte, err error) {
	type alias DBBoard
	return msgpack.Marshal((*alias)(b))
}

func (b *DBBoard) UnmarshalBinary(data []byte) error {
	type alias DBBoard
	return msgpack.Unmarshal(data, (*alias)(b))
}

type DBShare struct {
	ShareID   string `msgpack:"shareId"`
	BoardID   string `msgpack:"boardId"`
	CreatedBy string `msgpack:"createdBy"`
	CreatedAt int64  `msgpack:"createdAt"`
}

func (s *DBShare) Key() []byte {
	return []byte(s.ShareID)
}

func (s *DBShare) MarshalBinary() (data []byte, err error) {
	type alias DBShare
	return msgpack.Marshal((*alias)(s))
}

func (s *DBShare) UnmarshalBinary(data []byte) error {
	type alias DBShare
	return msgpack.Unmarshal(data, (*alias)(s))
}

type DBSnapshot struct {
	BoardID   string    `msgpack:"boardId"`
	Version   int64     `msgpack:"version"`
	Shapes    []DBShape `msgpack:"shapes"`
	UpdatedAt int64     `msgpack:"updatedAt"`
}

type DBShape struct {
	ID          string    `msgpack:"id"`
	Kind        string    `msgpack:"kind"`
	Points      []float64 `msgpack:"points"`
	Text        *string   `msgpack:"text"`
	TextColor   string    `msgpack:"textColor"`
	Fill        string    `msgpack:"fill"`
	StrokeWidth float64   `msgpack:"strokeWidth"`
	Rotation    float64   `msgpack:"rotation"`
	Width       *float64  `msgpack:"width"`
	Height      *float64  `msgpack:"height"`
	LockedBy    *string   `msgpack:"lockedBy"`
}

// Key orders snapshots of one board by version.
func (s *DBSnapshot) Key() []byte {
	return versionKey(s.Version)
}

func versionKey(version int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(version))
	return key
}

func binaryVersion(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}

func (s *DBSnapshot) MarshalBinary() (data []byte, err error) {
	type alias DBSnapshot
	return msgpack.Marshal((*alias)(s))
}

func (s *DBSnapshot) UnmarshalBinary(data []byte) error {
	type alias DBSnapshot
	return msgpack.Unmarshal(data, (*alias)(s))
}

func toDBShapes(shapes []models.Shape) []DBShape {
	out := make([]DBShape, len(shapes))
	for i, s := range shapes {
		s = s.Clone()
		out[i] = DBShape{
			ID:          s.ID,
			Kind:        string(s.Kind),
			Points:      s.Points,
			Text:        s.Text,
			TextColor:   s.TextColor,
			Fill:        s.Fill,
			StrokeWidth: s.StrokeWidth,
			Rotation:    s.Rotation,
			Width:       s.Width,
			Height:      s.Height,
			LockedBy:    s.LockedBy,
		}
	}
	return out
}

func fromDBShapes(shapes []DBShape) []models.Shape {
	out := make([]models.Shape, len(shapes))
	for i, s := range shapes {
		points := s.Points
		if points == nil {
			points = []float64{}
		}
		out[i] = models.Shape{
			ID:          s.ID,
			Kind:        models.ShapeKind(s.Kind),
			Points:      points,
			Text:        s.Text,
			TextColor:   s.TextColor,
			Fill:        s.Fill,
			StrokeWidth: s.StrokeWidth,
			Rotation:    s.Rotation,
			Width:       s.Width,
			Height:      s.Height,
			LockedBy:    s.LockedBy,
		}
	}
	return out
}
