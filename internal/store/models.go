package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

const (
	CollectionCategories = "categories"
	CollectionPlayers    = "players"
)

// Document holds the fields every stored record carries. The gateway owns
// all of them: callers never choose ids or timestamps.
type Document struct {
	ID        string    `json:"_id,omitempty" bson:"_id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero" bson:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitzero" bson:"updated_at,omitempty"`
}

func (d *Document) document() *Document { return d }

// Event is a scoring rule attached to a category.
type Event struct {
	Name      string `json:"name,omitempty" bson:"name,omitempty"`
	Operation string `json:"operation,omitempty" bson:"operation,omitempty"`
	Value     int    `json:"value,omitempty" bson:"value,omitempty"`
}

type Category struct {
	Document    `bson:",inline"`
	Name        string   `json:"name,omitempty" bson:"name,omitempty" validate:"required"`
	Description string   `json:"description,omitempty" bson:"description,omitempty"`
	Events      []Event  `json:"events,omitempty" bson:"events,omitempty" validate:"dive"`
	Players     []string `json:"players,omitempty" bson:"players,omitempty"`
}

func (c *Category) uniqueKey() string { return c.Name }

type Player struct {
	Document        `bson:",inline"`
	Name            string `json:"name,omitempty" bson:"name,omitempty" validate:"required"`
	Email           string `json:"email,omitempty" bson:"email,omitempty" validate:"omitempty,email"`
	PhoneNumber     string `json:"phone_number,omitempty" bson:"phone_number,omitempty"`
	Category        string `json:"category,omitempty" bson:"category,omitempty"`
	Ranking         string `json:"ranking,omitempty" bson:"ranking,omitempty"`
	RankingPosition int    `json:"ranking_position,omitempty" bson:"ranking_position,omitempty"`
	PhotoURL        string `json:"photo_url,omitempty" bson:"photo_url,omitempty"`
}

func (p *Player) uniqueKey() string { return p.Name }

// Record is satisfied by pointers to the stored entity types.
type Record[T any] interface {
	*T
	document() *Document
	uniqueKey() string
}

// uniqueField is the document field backed by a unique index in every collection.
const uniqueField = "name"

// JSONB is a custom type for JSONB fields
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("incompatible type for JSONB")
	}

	// Handle empty or null JSON
	if len(bytes) == 0 || string(bytes) == "null" {
		*j = make(JSONB)
		return nil
	}

	result := make(JSONB)
	err := json.Unmarshal(bytes, &result)
	if err != nil {
		return err
	}
	*j = result
	return nil
}

// patchFields returns the non-empty fields of v as a flat map, without the
// gateway-owned fields. It is the $set payload for partial updates.
func patchFields(v any) (JSONB, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := JSONB{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	delete(fields, "_id")
	delete(fields, "created_at")
	delete(fields, "updated_at")
	return fields, nil
}

// decodeDocument fills dst from a JSONB body and the row-level columns.
func decodeDocument[T any, P Record[T]](body JSONB, doc Document) (T, error) {
	var out T
	raw, err := json.Marshal(body)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	*P(&out).document() = doc
	return out, nil
}
