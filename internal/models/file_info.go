package models

import "time"

// File statuses.
const (
	FileStatusStored  = "stored"
	FileStatusDeleted = "deleted"
)

// FileInfo represents metadata about a stored upload.
type FileInfo struct {
	ID          string    `json:"id" msgpack:"id"`
	Name        string    `json:"name" msgpack:"name"` // client supplied, display only
	FieldName   string    `json:"fieldName,omitempty" msgpack:"fieldName,omitempty"`
	ContentType string    `json:"contentType,omitempty" msgpack:"contentType,omitempty"`
	Size        int64     `json:"size" msgpack:"size"`
	UploadedAt  time.Time `json:"uploadedAt" msgpack:"uploadedAt"`
	Status      string    `json:"status" msgpack:"status"`
	Backend     string    `json:"backend" msgpack:"backend"` // "local" or "s3"
	Location    string    `json:"location" msgpack:"location"`
}
