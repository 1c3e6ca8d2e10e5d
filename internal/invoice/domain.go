package invoice

import (
	"fmt"
	"time"

	"github.com/billflow-erp/billflow/internal/billing"
)

// FileStatus enumerates invoice file delivery states.
type FileStatus string

const (
	FileGenerated      FileStatus = "GENERATED"
	FileSendSuccessful FileStatus = "SEND_SUCCESSFUL"
	FileSendFailed     FileStatus = "SEND_FAILED"
)

// File is one produced positional invoice file. A file is created exactly
// once; a failed send is retried by re-sending the same content, never by
// regenerating it.
type File struct {
	ID       int64
	TenantID int64
	Name     string
	Type     billing.RecordType
	Content  []byte
	Status   FileStatus
	Created  time.Time
	Sent     *time.Time
}

// Pair identifies one (type, category) batch routed to a builder.
type Pair struct {
	Type     billing.RecordType
	Category string
}

func (p Pair) String() string {
	return fmt.Sprintf("%s/%s", p.Type, p.Category)
}

// FileConfig maps a pair to the filename pattern used for its files. The
// pattern carries exactly one bracketed date-format placeholder.
type FileConfig struct {
	Pair    Pair
	Pattern string
}

// CreationError describes one failure during file generation or transfer.
// RecordID is nil for failures not attributable to a single record.
type CreationError struct {
	RecordID *int64
	Message  string
}

// Common reports whether the error has no associated record.
func (e CreationError) Common() bool {
	return e.RecordID == nil
}

func (e CreationError) Error() string {
	if e.RecordID != nil {
		return fmt.Sprintf("record %d: %s", *e.RecordID, e.Message)
	}
	return e.Message
}

// CommonError builds a CreationError with no associated record.
func CommonError(format string, args ...any) CreationError {
	return CreationError{Message: fmt.Sprintf(format, args...)}
}

// RecordError builds a CreationError tied to one record.
func RecordError(recordID int64, format string, args ...any) CreationError {
	return CreationError{RecordID: &recordID, Message: fmt.Sprintf(format, args...)}
}
