package domain

import (
	"time"
	"unicode/utf8"
)

// DocumentStatus is the lifecycle state of an uploaded document
type DocumentStatus string

const (
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// IsTerminal reports whether the status can no longer change.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusCompleted || s == DocumentStatusFailed
}

// IsValid reports whether s is a known status.
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentStatusProcessing, DocumentStatusCompleted, DocumentStatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether a document may move from s to next.
// Only processing -> completed and processing -> failed are allowed.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	return s == DocumentStatusProcessing && next.IsTerminal()
}

// Document represents one uploaded source file
type Document struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Filename   string         `json:"filename"`
	MimeType   string         `json:"mime_type"`
	Size       int64          `json:"size"`
	Status     DocumentStatus `json:"status"`
	Error      string         `json:"error,omitempty"`
	ChunkCount int            `json:"chunk_count"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// NewDocument creates a document record in the processing state
func NewDocument(userID, filename, mimeType string, size int64) *Document {
	now := time.Now()
	return &Document{
		ID:        GenerateID(),
		UserID:    userID,
		Filename:  filename,
		MimeType:  mimeType,
		Size:      size,
		Status:    DocumentStatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// OwnerID implements Owned
func (d *Document) OwnerID() string {
	if d == nil {
		return ""
	}
	return d.UserID
}

// Chunk represents one indexed slice of a document's text.
// StartChar and EndChar are character (rune) offsets into the extracted text.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Index      int       `json:"index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding,omitempty"`
	TokenCount int       `json:"token_count"`
	StartChar  int       `json:"start_char"`
	EndChar    int       `json:"end_char"`
	CreatedAt  time.Time `json:"created_at"`
}

// UploadFile is a file handed to the ingestion pipeline by the upload handler
type UploadFile struct {
	Filename string
	MimeType string
	Data     []byte
}

// Size returns the byte size of the file
func (f *UploadFile) Size() int64 {
	return int64(len(f.Data))
}

// EstimateTokens approximates the token count of text as characters / 4, rounded up.
// Used for accounting only.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}
