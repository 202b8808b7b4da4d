package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/kestrelhq/portal/internal/domain"
	"github.com/kestrelhq/portal/internal/security/middleware"
	"github.com/kestrelhq/portal/internal/service"
)

// multipart overhead allowed on top of the file itself
const uploadSlack = 1 << 20

// OnboardingHandler serves the public onboarding wizard API
type OnboardingHandler struct {
	registry    *service.RegistryService
	submissions *service.SubmissionService
	surveys     *service.SurveyService
	logger      *slog.Logger
}

func NewOnboardingHandler(registry *service.RegistryService, submissions *service.SubmissionService, surveys *service.SurveyService, logger *slog.Logger) *OnboardingHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnboardingHandler{
		registry:    registry,
		submissions: submissions,
		surveys:     surveys,
		logger:      logger,
	}
}

// Plan handles GET /api/onboarding/{slug}
func (h *OnboardingHandler) Plan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.registry.Plan(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// SubmitRequest is the signature step body
type SubmitRequest struct {
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Email            string `json:"email"`
	DocumentTypeID   string `json:"documentTypeId"`
	SignatureDataURL string `json:"signatureDataUrl"`
}

type submitResponse struct {
	Success bool `json:"success"`
	*service.SignatureResult
}

// Submit handles POST /api/onboarding/{slug}/submit
func (h *OnboardingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	result, err := h.submissions.SubmitSignature(r.Context(), service.SignatureInput{
		Slug:             r.PathValue("slug"),
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Email:            req.Email,
		DocumentTypeID:   req.DocumentTypeID,
		SignatureDataURL: req.SignatureDataURL,
		IPAddress:        middleware.ClientIP(r),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{Success: true, SignatureResult: result})
}

type uploadResponse struct {
	Success bool `json:"success"`
	*service.UploadResult
}

// Upload handles POST /api/onboarding/{slug}/upload (multipart: employeeId, documentTypeId, file)
func (h *OnboardingHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxUploadBytes+uploadSlack)
	if err := r.ParseMultipartForm(domain.MaxUploadBytes + uploadSlack); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusBadRequest, "File must be 10MB or smaller")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	in := service.UploadInput{
		Slug:           r.PathValue("slug"),
		EmployeeID:     r.FormValue("employeeId"),
		DocumentTypeID: r.FormValue("documentTypeId"),
		IPAddress:      middleware.ClientIP(r),
	}

	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		in.ContentType = header.Header.Get("Content-Type")
		data, err := io.ReadAll(io.LimitReader(file, domain.MaxUploadBytes+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read file")
			return
		}
		in.Data = data
	}

	result, err := h.submissions.SubmitUpload(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Success: true, UploadResult: result})
}

// SurveyRequest is the survey step body
type SurveyRequest struct {
	EmployeeID string `json:"employeeId"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Rating     *int   `json:"rating"`
	WasClear   *bool  `json:"wasClear"`
	Feedback   string `json:"feedback"`
}

// Survey handles POST /api/onboarding/{slug}/survey
func (h *OnboardingHandler) Survey(w http.ResponseWriter, r *http.Request) {
	var req SurveyRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	err := h.surveys.Submit(r.Context(), service.SurveyInput{
		Slug:       r.PathValue("slug"),
		EmployeeID: req.EmployeeID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Rating:     req.Rating,
		WasClear:   req.WasClear,
		Feedback:   req.Feedback,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
