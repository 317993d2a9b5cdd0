package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Submission is one recognized photo upload. Blocks and Dropped keep the
// pipeline's intermediate output so the tutor can reason about the
// program without re-running recognition.
type Submission struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID string         `gorm:"column:session_id;not null;index" json:"session_id"`
	ImageKey  string         `gorm:"column:image_key" json:"image_key,omitempty"`
	ImageMime string         `gorm:"column:image_mime" json:"image_mime,omitempty"`
	Code      string         `gorm:"column:code;not null" json:"code"`
	Blocks    datatypes.JSON `gorm:"column:blocks" json:"blocks"`
	Dropped   datatypes.JSON `gorm:"column:dropped" json:"dropped,omitempty"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Submission) TableName() string { return "submission" }
