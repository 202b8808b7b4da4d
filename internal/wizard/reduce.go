package wizard

import (
	"strings"

	"github.com/kestrelhq/portal/internal/domain"
)

const (
	msgNotFound       = "This onboarding link was not found."
	msgFileType       = "Please choose a JPG, PNG, WEBP, HEIC, or PDF file."
	msgFileSize       = "File must be 10MB or smaller."
	msgNeedsSignature = "Please complete the signature step before uploading."
	msgSubmitFailed   = "Something went wrong. Please try again."
)

// Reduce returns the state after applying e. It does not modify s.
func Reduce(s State, e Event) State {
	if s.Phase == PhaseNotFound || s.Phase == PhaseComplete {
		return s
	}

	switch ev := e.(type) {
	case Loaded:
		if s.Phase != PhaseLoading {
			return s
		}
		if ev.Plan.Business == nil {
			return notFound()
		}
		s.Phase = PhaseIdentity
		s.Business = ev.Plan.Business
		s.Documents = ev.Plan.DocumentTypes
		return s

	case LoadFailed:
		return notFound()

	case IdentitySubmitted:
		if s.Phase != PhaseIdentity {
			return s
		}
		return submitIdentity(s, ev.Identity)
	}

	if s.Phase != PhaseDocument {
		return s
	}
	return reduceStep(s, e)
}

func notFound() State {
	return State{Phase: PhaseNotFound, Message: msgNotFound}
}

func submitIdentity(s State, id Identity) State {
	id = Identity{
		FirstName: strings.TrimSpace(id.FirstName),
		LastName:  strings.TrimSpace(id.LastName),
		Email:     strings.TrimSpace(id.Email),
	}
	s.Identity = id

	if v := domain.ValidateIdentity(id.FirstName, id.LastName, id.Email); v != nil {
		s.FieldErrors = v.Fields
		return s
	}

	s.FieldErrors = nil
	s.Index = 0
	s.Step = Step{}
	if len(s.Documents) == 0 {
		s.Phase = PhaseComplete
		return s
	}
	s.Phase = PhaseDocument
	return s
}

func reduceStep(s State, e Event) State {
	kind := s.Kind()

	switch ev := e.(type) {
	case Scrolled:
		if ev.ScrollHeight-ev.ScrollTop-ev.ClientHeight <= ScrollHintThreshold {
			s.Step.ScrolledToEnd = true
		}

	case SignatureDrawn:
		if kind == domain.StepSignature {
			s.Step.SignatureDataURL = ev.DataURL
		}

	case SignatureCleared:
		s.Step.SignatureDataURL = ""

	case FileChosen:
		if kind != domain.StepFileUpload {
			return s
		}
		switch {
		case !domain.AllowedUpload(ev.ContentType):
			s.Step.Error = msgFileType
			s.Step.FileName, s.Step.FileType, s.Step.FileSize, s.Step.PreviewURL = "", "", 0, ""
		case ev.Size > domain.MaxUploadBytes:
			s.Step.Error = msgFileSize
			s.Step.FileName, s.Step.FileType, s.Step.FileSize, s.Step.PreviewURL = "", "", 0, ""
		default:
			s.Step.Error = ""
			s.Step.FileName = ev.Name
			s.Step.FileType = ev.ContentType
			s.Step.FileSize = ev.Size
			s.Step.PreviewURL = ""
			if strings.HasPrefix(ev.ContentType, "image/") {
				s.Step.PreviewURL = ev.PreviewURL
			}
		}

	case RatingChosen:
		if kind == domain.StepSurvey && ev.Rating >= 1 && ev.Rating <= 5 {
			s.Step.Rating = ev.Rating
		}

	case ClarityChosen:
		if kind == domain.StepSurvey {
			v := ev.WasClear
			s.Step.WasClear = &v
		}

	case FeedbackChanged:
		if kind == domain.StepSurvey {
			s.Step.Feedback = ev.Text
		}

	case SubmitStarted:
		if kind == domain.StepFileUpload && s.EmployeeID == "" {
			s.Step.Error = msgNeedsSignature
			return s
		}
		if !s.CanSubmit() || kind == domain.StepInformational || kind == domain.StepAppDownload {
			return s
		}
		s.Step.Submitting = true
		s.Step.Error = ""

	case SubmitFailed:
		if !s.Step.Submitting {
			return s
		}
		s.Step.Submitting = false
		s.Step.Error = ev.Message
		if s.Step.Error == "" {
			s.Step.Error = msgSubmitFailed
		}

	case SubmitSucceeded:
		if !s.Step.Submitting {
			return s
		}
		if ev.EmployeeID != "" {
			s.EmployeeID = ev.EmployeeID
		}
		if ev.PDFURL != "" && kind == domain.StepSignature {
			s.PDFURL = ev.PDFURL
		}
		if kind == domain.StepSignature || kind == domain.StepFileUpload {
			s.Recorded++
		}
		return advance(s)

	case Acknowledged:
		if kind == domain.StepInformational || kind == domain.StepAppDownload {
			return advance(s)
		}
	}

	return s
}

func advance(s State) State {
	s.Step = Step{}
	s.Index++
	if s.Index >= len(s.Documents) {
		s.Phase = PhaseComplete
	}
	return s
}
