package domain

import "time"

// JobStatus is the lifecycle of an import or export job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusExpired   JobStatus = "EXPIRED"
)

// EntityType names the dataset a job reads or writes.
type EntityType string

const (
	EntityTickets  EntityType = "tickets"
	EntityContacts EntityType = "contacts"
	EntityUsers    EntityType = "users"
)

// FileFormat is the serialization of a job file.
type FileFormat string

const (
	FormatCSV  FileFormat = "csv"
	FormatXLSX FileFormat = "xlsx"
)

// IsValid reports whether the format is supported.
func (f FileFormat) IsValid() bool {
	return f == FormatCSV || f == FormatXLSX
}

// ContentType returns the MIME type for the format.
func (f FileFormat) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// ExportJob produces a downloadable file of tenant records.
type ExportJob struct {
	ID            string
	TenantID      string
	EntityType    EntityType
	Format        FileFormat
	Filters       map[string]string
	Status        JobStatus
	TotalRows     int
	ProcessedRows int
	FileKey       *string
	Error         *string
	RequestedBy   string
	StartedAt     *time.Time
	CompletedAt   *time.Time
	ExpiresAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RowError records why a single import row was rejected.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportJob ingests an uploaded file into tenant records.
type ImportJob struct {
	ID            string
	TenantID      string
	EntityType    EntityType
	Format        FileFormat
	FileKey       string
	FileName      string
	Status        JobStatus
	TotalRows     int
	ProcessedRows int
	SucceededRows int
	FailedRows    int
	Errors        []RowError
	Error         *string
	RequestedBy   string
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MaxRecordedRowErrors caps how many row errors are stored on an import job.
const MaxRecordedRowErrors = 200
