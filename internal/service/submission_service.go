package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kestrelhq/portal/internal/domain"
	"github.com/kestrelhq/portal/internal/infrastructure/pdf"
	"github.com/kestrelhq/portal/internal/observability/metrics"
	"github.com/kestrelhq/portal/internal/observability/tracing"
)

const (
	pngDataURLPrefix = "data:image/png;base64,"
	submitURLTTL     = time.Hour
)

var tracer = tracing.Tracer("service")

// PolicyRenderer renders a signed-policy PDF
type PolicyRenderer interface {
	Render(doc pdf.SignedPolicy) ([]byte, error)
}

// SubmissionService runs the signature and upload submission sagas. Each step advances
// the document's status so the reconciler can finish or discard interrupted work.
type SubmissionService struct {
	registry  *RegistryService
	employees domain.EmployeeRepository
	documents domain.DocumentRepository
	storage   domain.ObjectStorage
	renderer  PolicyRenderer
	location  *time.Location
	now       domain.Clock
	logger    *slog.Logger
}

// NewSubmissionService creates a submission service. loc is the business time zone.
func NewSubmissionService(
	registry *RegistryService,
	employees domain.EmployeeRepository,
	documents domain.DocumentRepository,
	storage domain.ObjectStorage,
	renderer PolicyRenderer,
	loc *time.Location,
	logger *slog.Logger,
) *SubmissionService {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}

	return &SubmissionService{
		registry:  registry,
		employees: employees,
		documents: documents,
		storage:   storage,
		renderer:  renderer,
		location:  loc,
		now:       time.Now,
		logger:    logger,
	}
}

// SignatureInput is a signature step submission
type SignatureInput struct {
	Slug             string
	FirstName        string
	LastName         string
	Email            string
	DocumentTypeID   string
	SignatureDataURL string
	IPAddress        string
}

// SignatureResult identifies the recorded document and a short-lived link to its PDF
type SignatureResult struct {
	EmployeeID     string `json:"employeeId"`
	DocumentID     string `json:"documentId"`
	PDFDownloadURL string `json:"pdfDownloadUrl"`
}

func decodeSignature(dataURL string) ([]byte, error) {
	if !strings.HasPrefix(dataURL, pngDataURLPrefix) {
		return nil, domain.NewValidationError("Signature must be a PNG image")
	}
	img, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, pngDataURLPrefix))
	if err != nil || len(img) == 0 {
		return nil, domain.NewValidationError("Signature image could not be decoded")
	}
	if _, err := png.DecodeConfig(bytes.NewReader(img)); err != nil {
		return nil, domain.NewValidationError("Signature must be a PNG image")
	}
	return img, nil
}

func (in SignatureInput) validate() (*SignatureInput, []byte, error) {
	clean := in
	clean.FirstName = strings.TrimSpace(in.FirstName)
	clean.LastName = strings.TrimSpace(in.LastName)
	clean.Email = strings.ToLower(strings.TrimSpace(in.Email))
	clean.DocumentTypeID = strings.TrimSpace(in.DocumentTypeID)

	v := domain.ValidateIdentity(clean.FirstName, clean.LastName, clean.Email)
	if v == nil {
		v = &domain.ValidationError{}
	}
	if clean.DocumentTypeID == "" {
		v.FieldError("documentTypeId", "Document type is required")
	}
	if in.SignatureDataURL == "" {
		v.FieldError("signatureDataUrl", "Signature is required")
	}
	if !v.Empty() {
		return nil, nil, v
	}

	img, err := decodeSignature(in.SignatureDataURL)
	if err != nil {
		return nil, nil, err
	}
	return &clean, img, nil
}

func (s *SubmissionService) today() time.Time {
	y, m, d := s.now().In(s.location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// resolve looks up the active business and document type
func (s *SubmissionService) resolve(ctx context.Context, slug, documentTypeID string) (*domain.Business, *domain.DocumentType, error) {
	business, err := s.registry.Business(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	docType, err := s.registry.DocumentType(ctx, documentTypeID)
	if err != nil {
		return nil, nil, err
	}
	return business, docType, nil
}

// SubmitSignature records a signed policy: employee, association, pending document,
// signature image, rendered PDF, then completion
func (s *SubmissionService) SubmitSignature(ctx context.Context, in SignatureInput) (result *SignatureResult, err error) {
	ctx, span := tracer.Start(ctx, "submission.signature")
	start := s.now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.ObserveSubmission(string(domain.StepSignature), outcome, s.now().Sub(start))
		span.End()
	}()

	clean, signature, err := in.validate()
	if err != nil {
		return nil, err
	}

	business, docType, err := s.resolve(ctx, clean.Slug, clean.DocumentTypeID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("business.slug", business.Slug), attribute.String("document_type.id", docType.ID))

	employee, err := s.employees.UpsertByEmail(ctx, &domain.Employee{
		FirstName: clean.FirstName,
		LastName:  clean.LastName,
		Email:     clean.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record employee: %w", err)
	}

	if err := s.employees.LinkBusiness(ctx, &domain.EmployeeBusiness{
		EmployeeID: employee.ID,
		BusinessID: business.ID,
		HireDate:   s.today(),
		Active:     true,
	}); err != nil {
		return nil, fmt.Errorf("failed to link employee: %w", err)
	}

	doc := &domain.EmployeeDocument{
		EmployeeID:     employee.ID,
		BusinessID:     business.ID,
		DocumentTypeID: docType.ID,
		Version:        docType.CurrentVersion,
		Status:         domain.DocumentPending,
		IPAddress:      clean.IPAddress,
	}
	if err := s.documents.Insert(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	logger := s.logger.With(
		slog.String("employee_id", employee.ID),
		slog.String("document_id", doc.ID),
		slog.String("business", business.Slug),
	)

	signatureKey := domain.SignatureKey(employee.ID, doc.ID)
	if err := s.storage.Put(ctx, signatureKey, "image/png", signature); err != nil {
		logger.Error("signature upload failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to upload signature: %w", err)
	}

	signedAt := s.now()
	rendered, err := s.renderer.Render(pdf.SignedPolicy{
		BusinessName:  business.Name,
		DocumentName:  docType.Name,
		Version:       docType.CurrentVersion,
		EmployeeName:  employee.FirstName + " " + employee.LastName,
		EmployeeEmail: employee.Email,
		SignedAt:      signedAt,
		Location:      s.location,
		IPAddress:     clean.IPAddress,
		Content:       docType.Content,
		Signature:     signature,
	})
	if err != nil {
		logger.Error("pdf render failed", slog.String("error", err.Error()))
		return nil, err
	}

	pdfKey := domain.PolicyPDFKey(employee.ID, doc.ID)
	if err := s.storage.Put(ctx, pdfKey, "application/pdf", rendered); err != nil {
		logger.Error("pdf upload failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to upload pdf: %w", err)
	}

	if err := s.documents.MarkArtifactsUploaded(ctx, doc.ID, domain.ArtifactPaths{
		SignaturePath: signatureKey,
		PDFPath:       pdfKey,
	}); err != nil {
		return nil, fmt.Errorf("failed to record artifacts: %w", err)
	}

	url, err := s.storage.SignedURL(ctx, pdfKey, submitURLTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign pdf url: %w", err)
	}

	if err := s.documents.MarkComplete(ctx, doc.ID, signedAt); err != nil {
		return nil, fmt.Errorf("failed to complete document: %w", err)
	}

	logger.Info("signature recorded", slog.String("document_type", docType.Slug))

	return &SignatureResult{
		EmployeeID:     employee.ID,
		DocumentID:     doc.ID,
		PDFDownloadURL: url,
	}, nil
}

// UploadInput is a file upload step submission
type UploadInput struct {
	Slug           string
	EmployeeID     string
	DocumentTypeID string
	ContentType    string
	Data           []byte
	IPAddress      string
}

// UploadResult identifies the recorded document
type UploadResult struct {
	DocumentID string `json:"documentId"`
}

// ValidateUpload checks the upload fields and file constraints
func ValidateUpload(in UploadInput) error {
	v := &domain.ValidationError{}
	if strings.TrimSpace(in.EmployeeID) == "" {
		v.FieldError("employeeId", "Employee id is required")
	}
	if strings.TrimSpace(in.DocumentTypeID) == "" {
		v.FieldError("documentTypeId", "Document type is required")
	}
	if len(in.Data) == 0 {
		v.FieldError("file", "File is required")
	}
	if !v.Empty() {
		return v
	}
	if !domain.AllowedUpload(in.ContentType) {
		return domain.NewValidationError("File type must be JPEG, PNG, WEBP, HEIC, or PDF")
	}
	if len(in.Data) > domain.MaxUploadBytes {
		return domain.NewValidationError("File must be 10MB or smaller")
	}
	return nil
}

// SubmitUpload records an uploaded permit. No PDF is produced for uploads.
func (s *SubmissionService) SubmitUpload(ctx context.Context, in UploadInput) (result *UploadResult, err error) {
	ctx, span := tracer.Start(ctx, "submission.upload")
	start := s.now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.ObserveSubmission(string(domain.StepFileUpload), outcome, s.now().Sub(start))
		span.End()
	}()

	if err := ValidateUpload(in); err != nil {
		return nil, err
	}

	business, docType, err := s.resolve(ctx, in.Slug, strings.TrimSpace(in.DocumentTypeID))
	if err != nil {
		return nil, err
	}

	employee, err := s.employees.GetByID(ctx, strings.TrimSpace(in.EmployeeID))
	if err != nil {
		return nil, err
	}

	if err := s.employees.LinkBusiness(ctx, &domain.EmployeeBusiness{
		EmployeeID: employee.ID,
		BusinessID: business.ID,
		HireDate:   s.today(),
		Active:     true,
	}); err != nil {
		return nil, fmt.Errorf("failed to link employee: %w", err)
	}

	doc := &domain.EmployeeDocument{
		EmployeeID:     employee.ID,
		BusinessID:     business.ID,
		DocumentTypeID: docType.ID,
		Version:        docType.CurrentVersion,
		Status:         domain.DocumentPending,
		IPAddress:      in.IPAddress,
	}
	if err := s.documents.Insert(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	key := domain.UploadKey(employee.ID, doc.ID, domain.UploadExtensions[in.ContentType])
	if err := s.storage.Put(ctx, key, in.ContentType, in.Data); err != nil {
		s.logger.Error("permit upload failed",
			slog.String("document_id", doc.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	if err := s.documents.MarkArtifactsUploaded(ctx, doc.ID, domain.ArtifactPaths{FilePath: key}); err != nil {
		return nil, fmt.Errorf("failed to record artifacts: %w", err)
	}
	if err := s.documents.MarkComplete(ctx, doc.ID, s.now()); err != nil {
		return nil, fmt.Errorf("failed to complete document: %w", err)
	}

	s.logger.Info("upload recorded",
		slog.String("employee_id", employee.ID),
		slog.String("document_id", doc.ID),
		slog.String("content_type", in.ContentType),
	)

	return &UploadResult{DocumentID: doc.ID}, nil
}
