package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel contains common fields for all database models.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// BeforeCreate generates a UUID if not already set.
func (b *BaseModel) BeforeCreate(_ *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSON stores an arbitrary JSON document in a text column.
type JSON json.RawMessage

// Value implements driver.Valuer.
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements sql.Scanner.
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = JSON(v)
	default:
		return fmt.Errorf("store: cannot scan %T into JSON", value)
	}
	return nil
}

// MarshalJSON returns j as the raw JSON document.
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON stores data as-is.
func (j *JSON) UnmarshalJSON(data []byte) error {
	*j = append((*j)[0:0], data...)
	return nil
}

// AsJSON marshals v into a JSON column value.
func AsJSON(v interface{}) (JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: marshal json column: %w", err)
	}
	return JSON(data), nil
}

// Transcript is one persisted transcription result.
type Transcript struct {
	BaseModel
	AudioURL           string  `gorm:"type:text;not null"`
	Transcript         string  `gorm:"type:text"`
	DiarizedTranscript JSON    `gorm:"type:text"`
	Utterances         JSON    `gorm:"type:text"`
	SpeakersCount      int     `gorm:"default:0"`
	ConfidenceScore    float64
	ProcessingTime     float64 // seconds from submit to completion
	AudioDuration      float64 // seconds
	LanguageDetected   string  `gorm:"size:10"`
	Status             string  `gorm:"size:20;default:processing"`
	ErrorMessage       string  `gorm:"type:text"`
	CompletedAt        *time.Time
}

// Speaker is the per-speaker aggregate row for one transcript.
type Speaker struct {
	BaseModel
	TranscriptID    uuid.UUID `gorm:"type:uuid;not null;index"`
	SpeakerLabel    string    `gorm:"size:50;not null"`
	TotalWords      int       `gorm:"default:0"`
	TotalDuration   float64   `gorm:"default:0"`
	ConfidenceScore float64
}
