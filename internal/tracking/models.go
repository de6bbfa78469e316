package tracking

import "time"

// Status is the persisted outcome for a file path.
type Status string

const (
	// StatusOK marks a file as compliant (or successfully encoded).
	StatusOK Status = "ok"
	// StatusError marks the last attempt for a file as failed.
	StatusError Status = "error"
)

// Record is the persisted compliance entry for one file path.
//
// A record with status ok and size/mtime matching the file on disk
// means the file is compliant and must be skipped. Any drift in size
// or mtime invalidates skip-eligibility even when status is ok.
type Record struct {
	Path        string
	Size        int64
	MTime       time.Time
	SHA256      string
	LastChecked time.Time
	Status      Status
	Note        string
}

// DatabaseHealth captures diagnostic information about the tracking database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	IntegrityCheck   bool
	TotalRecords     int
	Error            string
}
