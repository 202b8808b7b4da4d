package wizard

import "github.com/kestrelhq/portal/internal/domain"

// Event is anything the wizard reacts to
type Event interface {
	event()
}

// Loaded delivers the resolved onboarding plan
type Loaded struct {
	Plan domain.OnboardingPlan
}

// LoadFailed means the slug did not resolve to an active business
type LoadFailed struct{}

// IdentitySubmitted is the identity form's submit
type IdentitySubmitted struct {
	Identity Identity
}

// Scrolled reports the policy container's scroll geometry
type Scrolled struct {
	ScrollTop    float64
	ClientHeight float64
	ScrollHeight float64
}

// SignatureDrawn carries the signature pad contents as a PNG data URL
type SignatureDrawn struct {
	DataURL string
}

// SignatureCleared empties the signature pad
type SignatureCleared struct{}

// FileChosen is a file picked for an upload step
type FileChosen struct {
	Name        string
	ContentType string
	Size        int64
	PreviewURL  string
}

type RatingChosen struct {
	Rating int
}

type ClarityChosen struct {
	WasClear bool
}

type FeedbackChanged struct {
	Text string
}

// SubmitStarted marks a request in flight for the active step
type SubmitStarted struct{}

// SubmitSucceeded advances past the active step. EmployeeID and PDFURL are set by signature responses.
type SubmitSucceeded struct {
	EmployeeID string
	PDFURL     string
}

// SubmitFailed keeps the wizard on the active step with a step-scoped message
type SubmitFailed struct {
	Message string
}

// Acknowledged advances informational and app-download steps without a network call
type Acknowledged struct{}

func (Loaded) event()            {}
func (LoadFailed) event()        {}
func (IdentitySubmitted) event() {}
func (Scrolled) event()          {}
func (SignatureDrawn) event()    {}
func (SignatureCleared) event()  {}
func (FileChosen) event()        {}
func (RatingChosen) event()      {}
func (ClarityChosen) event()     {}
func (FeedbackChanged) event()   {}
func (SubmitStarted) event()     {}
func (SubmitSucceeded) event()   {}
func (SubmitFailed) event()      {}
func (Acknowledged) event()      {}
