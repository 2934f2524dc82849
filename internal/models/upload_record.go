package models

import "time"

// Outcome kinds as reported by the API and the ledger.
const (
	OutcomeFile    = "file"
	OutcomeFailure = "failure"
)

// UploadRecord is one normalized outcome of a batch.
type UploadRecord struct {
	BatchID        string    `json:"batchId" msgpack:"batchId"`
	Position       int       `json:"position" msgpack:"position"`
	FieldName      string    `json:"fieldName" msgpack:"fieldName"`
	Outcome        string    `json:"outcome" msgpack:"outcome"`
	Kind           string    `json:"kind,omitempty" msgpack:"kind,omitempty"`
	Code           int       `json:"code" msgpack:"code"`
	ClientFilename string    `json:"clientFilename,omitempty" msgpack:"clientFilename,omitempty"`
	ContentType    string    `json:"contentType,omitempty" msgpack:"contentType,omitempty"`
	Size           int64     `json:"size" msgpack:"size"`
	FileID         string    `json:"fileId,omitempty" msgpack:"fileId,omitempty"`
	Message        string    `json:"message,omitempty" msgpack:"message,omitempty"`
	Limit          int64     `json:"limit,omitempty" msgpack:"limit,omitempty"`
	RecordedAt     time.Time `json:"recordedAt" msgpack:"recordedAt"`
}

// UploadBatch is the response to an upload or inspect request.
type UploadBatch struct {
	BatchID  string         `json:"batchId" msgpack:"batchId"`
	Trusted  bool           `json:"trusted" msgpack:"trusted"`
	Count    int            `json:"count" msgpack:"count"`
	Outcomes []UploadRecord `json:"outcomes" msgpack:"outcomes"`
	Files    []*FileInfo    `json:"files,omitempty" msgpack:"files,omitempty"`
}

// LedgerStats aggregates recorded outcomes.
type LedgerStats struct {
	Batches  int64            `json:"batches" msgpack:"batches"`
	Outcomes int64            `json:"outcomes" msgpack:"outcomes"`
	Files    int64            `json:"files" msgpack:"files"`
	Bytes    int64            `json:"bytes" msgpack:"bytes"`
	Faults   int64            `json:"faults" msgpack:"faults"`
	ByKind   map[string]int64 `json:"byKind" msgpack:"byKind"`
}

// UploadLimits describes the limits currently in force.
type UploadLimits struct {
	Enabled           bool     `json:"enabled" msgpack:"enabled"`
	WorkingPath       string   `json:"workingPath" msgpack:"workingPath"`
	SystemMaxBytes    int64    `json:"systemMaxBytes" msgpack:"systemMaxBytes"`
	SystemMaxHuman    string   `json:"systemMaxHuman" msgpack:"systemMaxHuman"`
	MaxFileUploads    int64    `json:"maxFileUploads" msgpack:"maxFileUploads"`
	BlockedExtensions []string `json:"blockedExtensions" msgpack:"blockedExtensions"`
}

// FaultRecord is a batch that was aborted by a server or security fault.
type FaultRecord struct {
	BatchID    string    `json:"batchId" msgpack:"batchId"`
	Fault      string    `json:"fault" msgpack:"fault"` // "server" or "security"
	FieldName  string    `json:"fieldName" msgpack:"fieldName"`
	Code       int       `json:"code" msgpack:"code"`
	Message    string    `json:"message" msgpack:"message"`
	Reason     string    `json:"-" msgpack:"-"` // internal reason, kept out of API responses
	RemoteIP   string    `json:"remoteIp" msgpack:"remoteIp"`
	RequestID  string    `json:"requestId,omitempty" msgpack:"requestId,omitempty"`
	RecordedAt time.Time `json:"recordedAt" msgpack:"recordedAt"`
}
