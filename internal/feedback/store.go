// Package feedback records user reports about bad cleanups. Reports are
// stored as append-only JSON lines in a local file so they can be turned into
// new formatting cases or vocabulary terms later.
package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrInvalid is returned by [Record.Validate] for incomplete reports.
var ErrInvalid = errors.New("feedback: invalid record")

// Record is a single feedback entry written to the file store.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`

	// Raw is the transcript as it was submitted for cleanup.
	Raw string `json:"raw"`

	// Cleaned is what the service returned for Raw.
	Cleaned string `json:"cleaned,omitempty"`

	// Expected is what the user wanted instead.
	Expected string `json:"expected,omitempty"`

	// Method is the cleanup method that produced Cleaned ("rules" or "llm").
	Method  string `json:"method,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// Validate checks that r carries the raw text and at least one of Expected
// or Comment.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Raw) == "" {
		return fmt.Errorf("%w: raw must not be empty", ErrInvalid)
	}
	if strings.TrimSpace(r.Expected) == "" && strings.TrimSpace(r.Comment) == "" {
		return fmt.Errorf("%w: expected or comment is required", ErrInvalid)
	}
	return nil
}

// FileStore persists feedback as JSON lines in a local file.
// Thread-safe for concurrent use.
type FileStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewFileStore creates a FileStore that writes to the given path.
// The file is created on the first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// SaveFeedback validates rec and appends it to the file. A zero Timestamp is
// set to the current UTC time.
func (fs *FileStore) SaveFeedback(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = fs.now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("feedback: marshal: %w", err)
	}
	data = append(data, '\n')

	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := os.OpenFile(fs.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("feedback: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("feedback: write: %w", err)
	}
	return nil
}
