package models

import (
	"time"

	"gorm.io/datatypes"
)

// Document is a single JSON document addressed by its slash separated path,
// e.g. "loadouts/<id>" or "users/<uid>/likes/<loadoutId>".
type Document struct {
	Path         string         `gorm:"primaryKey;type:text"`
	Collection   string         `gorm:"type:text;not null;index:idx_documents_collection"`
	CollectionID string         `gorm:"type:text;not null;index:idx_documents_group"`
	DocID        string         `gorm:"type:text;not null"`
	Data         datatypes.JSON `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Document) TableName() string { return "documents" }
