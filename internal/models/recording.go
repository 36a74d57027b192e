package models

import (
	"time"

	"github.com/google/uuid"
)

// Recording is a broadcast recording archived to object storage. StorageKey is
// unique per artifact; PublisherEmail is empty when the stream key could not
// be attributed at ingest time.
type Recording struct {
	ID             uuid.UUID `json:"id"`
	StorageKey     string    `json:"storage_key"`
	PublicURL      string    `json:"public_url"`
	SourcePath     string    `json:"source_path"`
	FileSize       int64     `json:"file_size"`
	ContentType    string    `json:"content_type"`
	PublisherEmail string    `json:"publisher_email,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
