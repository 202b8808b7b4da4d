// Package wizard models the onboarding session as a pure state machine.
// Reduce never performs I/O; callers run the network calls and feed the outcome back as events.
package wizard

import (
	"time"

	"github.com/kestrelhq/portal/internal/domain"
)

// Phase is the top-level wizard state
type Phase string

const (
	PhaseLoading  Phase = "loading"
	PhaseIdentity Phase = "identity"
	PhaseDocument Phase = "document"
	PhaseComplete Phase = "complete"
	PhaseNotFound Phase = "not_found"
)

// ScrollHintThreshold is how close to the bottom of the policy the reader must scroll, in pixels
const ScrollHintThreshold = 80

// Identity is what the first step collects
type Identity struct {
	FirstName string
	LastName  string
	Email     string
}

// Step is the transient state of the active document step. It is reset on every advance.
type Step struct {
	SignatureDataURL string
	FileName         string
	FileType         string
	FileSize         int64
	PreviewURL       string
	Rating           int
	WasClear         *bool
	Feedback         string
	ScrolledToEnd    bool
	Submitting       bool
	Error            string
}

// State is the whole wizard. The zero value is PhaseLoading.
type State struct {
	Phase       Phase
	Business    *domain.Business
	Documents   []*domain.DocumentType
	Index       int
	Identity    Identity
	FieldErrors map[string]string
	EmployeeID  string
	PDFURL      string
	// Recorded counts documents persisted server-side
	Recorded int
	Step     Step
	Message  string
}

// New returns the initial loading state
func New() State {
	return State{Phase: PhaseLoading}
}

// Current returns the active document type, or nil outside PhaseDocument
func (s State) Current() *domain.DocumentType {
	if s.Phase != PhaseDocument || s.Index < 0 || s.Index >= len(s.Documents) {
		return nil
	}
	return s.Documents[s.Index]
}

// Kind returns the step type of the active document
func (s State) Kind() domain.StepType {
	if doc := s.Current(); doc != nil {
		return doc.StepType
	}
	return ""
}

// CanSubmit reports whether the active step's submit control is enabled
func (s State) CanSubmit() bool {
	if s.Phase != PhaseDocument || s.Step.Submitting {
		return false
	}
	switch s.Kind() {
	case domain.StepSignature:
		return s.Step.SignatureDataURL != ""
	case domain.StepFileUpload:
		return s.Step.FileName != "" && s.EmployeeID != ""
	case domain.StepSurvey:
		return s.Step.Rating >= 1 && s.Step.Rating <= 5
	case domain.StepInformational, domain.StepAppDownload:
		return true
	}
	return false
}

// ShowScrollHint reports whether the "scroll to read" affordance is visible. It never blocks signing.
func (s State) ShowScrollHint() bool {
	return s.Kind() == domain.StepSignature && !s.Step.ScrolledToEnd
}

// HasMoreSteps reports whether another document follows the active one
func (s State) HasMoreSteps() bool {
	return s.Index+1 < len(s.Documents)
}

// ContinueLabel is the app-download button text
func (s State) ContinueLabel() string {
	if s.HasMoreSteps() {
		return "Continue"
	}
	return "Finish"
}

// Content returns the active document's content with the effective date filled in
func (s State) Content(now time.Time, loc *time.Location) string {
	doc := s.Current()
	if doc == nil {
		return ""
	}
	if doc.StepType != domain.StepSignature {
		return doc.Content
	}
	return domain.SubstituteEffectiveDate(doc.Content, domain.EffectiveDate(now, loc))
}

// DownloadMethod is how the completion screen fetches the policy PDF
type DownloadMethod string

const (
	DownloadBlob   DownloadMethod = "blob"
	DownloadNewTab DownloadMethod = "new_tab"
)

// DownloadPlan lists the methods to try in order for the completion screen's PDF button.
// Empty when no policy PDF was produced.
func (s State) DownloadPlan() []DownloadMethod {
	if s.Phase != PhaseComplete || s.PDFURL == "" {
		return nil
	}
	return []DownloadMethod{DownloadBlob, DownloadNewTab}
}
