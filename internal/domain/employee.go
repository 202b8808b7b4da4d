package domain

import (
	"context"
	"time"
)

// Employee is created on first document submission, keyed by email
type Employee struct {
	ID                        string     `json:"id"`
	FirstName                 string     `json:"firstName"`
	LastName                  string     `json:"lastName"`
	Email                     string     `json:"email"`
	Phone                     string     `json:"phone,omitempty"`
	CreatedAt                 time.Time  `json:"createdAt"`
	ArchivedAt                *time.Time `json:"archivedAt,omitempty"`
	ArchiveReason             string     `json:"archiveReason,omitempty"`
	ConfirmationEmailSentAt   *time.Time `json:"confirmationEmailSentAt,omitempty"`
	ConfirmationEmailOpenedAt *time.Time `json:"confirmationEmailOpenedAt,omitempty"`
}

// Archived reports whether the employee is soft-deleted
func (e *Employee) Archived() bool {
	return e.ArchivedAt != nil
}

// EmployeeBusiness links an employee to a business they were hired into
type EmployeeBusiness struct {
	EmployeeID string
	BusinessID string
	HireDate   time.Time
	Active     bool
}

// DocumentStatus is the saga cursor of a submission
type DocumentStatus string

const (
	DocumentPending          DocumentStatus = "pending"
	DocumentArtifactUploaded DocumentStatus = "artifact_uploaded"
	DocumentComplete         DocumentStatus = "complete"
	DocumentDiscarded        DocumentStatus = "discarded"
)

// EmployeeDocument is one submission for (employee, business, document type)
type EmployeeDocument struct {
	ID             string         `json:"id"`
	EmployeeID     string         `json:"employeeId"`
	BusinessID     string         `json:"businessId"`
	DocumentTypeID string         `json:"documentTypeId"`
	Version        string         `json:"version"`
	Status         DocumentStatus `json:"status"`
	SignaturePath  string         `json:"signatureUrl,omitempty"`
	FilePath       string         `json:"fileUrl,omitempty"`
	PDFPath        string         `json:"pdfUrl,omitempty"`
	SignedAt       *time.Time     `json:"signedAt,omitempty"`
	IPAddress      string         `json:"ipAddress"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// CompletedDocument is a complete submission joined with its document type
type CompletedDocument struct {
	Document     *EmployeeDocument
	DocumentName string
	StepType     StepType
}

// OnboardingSurvey is an employee's feedback on the onboarding flow
type OnboardingSurvey struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employeeId,omitempty"`
	BusinessID string    `json:"businessId,omitempty"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Rating     int       `json:"rating"`
	WasClear   *bool     `json:"wasClear,omitempty"`
	Feedback   string    `json:"feedback,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// EmployeeRepository defines data access for employees
type EmployeeRepository interface {
	// UpsertByEmail creates the employee if absent and leaves an existing row untouched
	UpsertByEmail(ctx context.Context, e *Employee) (*Employee, error)
	GetByID(ctx context.Context, id string) (*Employee, error)
	List(ctx context.Context, includeArchived bool) ([]*Employee, error)
	LinkBusiness(ctx context.Context, link *EmployeeBusiness) error
	ListBusinessLinks(ctx context.Context, employeeID string) ([]*EmployeeBusiness, error)
	Archive(ctx context.Context, ids []string, reason string, at time.Time) (int, error)
	Restore(ctx context.Context, id string) error
	MarkConfirmationSent(ctx context.Context, id string, at time.Time) error
	// MarkConfirmationOpened sets the first-open timestamp only if it is unset
	MarkConfirmationOpened(ctx context.Context, id string, at time.Time) (bool, error)
}

// DocumentRepository defines data access for employee documents
type DocumentRepository interface {
	Insert(ctx context.Context, doc *EmployeeDocument) error
	MarkArtifactsUploaded(ctx context.Context, id string, paths ArtifactPaths) error
	MarkComplete(ctx context.Context, id string, signedAt time.Time) error
	MarkDiscarded(ctx context.Context, id string) error
	ListByEmployee(ctx context.Context, employeeID string) ([]*EmployeeDocument, error)
	ListCompleted(ctx context.Context, employeeID, businessID string) ([]*CompletedDocument, error)
	// ListStale returns rows in the given status last touched before the cutoff
	ListStale(ctx context.Context, status DocumentStatus, before time.Time) ([]*EmployeeDocument, error)
}

// ArtifactPaths are the storage keys recorded on a document once uploaded
type ArtifactPaths struct {
	SignaturePath string
	FilePath      string
	PDFPath       string
}

// SurveyRepository stores onboarding surveys
type SurveyRepository interface {
	Insert(ctx context.Context, s *OnboardingSurvey) error
}
