package service

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/kestrelhq/portal/internal/domain"
)

// PreShiftChecklist closes every employee confirmation email
var PreShiftChecklist = []string{
	"Bring a government-issued photo ID to your first shift",
	"Wear closed-toe, non-slip shoes",
	"Arrive 10 minutes early so we can get you clocked in",
	"Keep your food handler permit on you or on file",
}

var stepIcons = map[domain.StepType]string{
	domain.StepSignature:     "✍️",
	domain.StepFileUpload:    "📄",
	domain.StepInformational: "📘",
	domain.StepAppDownload:   "📱",
	domain.StepSurvey:        "⭐",
}

// StepIcon returns the glyph shown next to a completed step of kind t
func StepIcon(t domain.StepType) string {
	if icon, ok := stepIcons[t]; ok {
		return icon
	}
	return "✅"
}

// Stars renders a 1-5 rating as filled and outline stars
func Stars(rating int) string {
	if rating < 0 {
		rating = 0
	}
	if rating > 5 {
		rating = 5
	}
	return strings.Repeat("★", rating) + strings.Repeat("☆", 5-rating)
}

func clarityAnswer(wasClear *bool) string {
	switch {
	case wasClear == nil:
		return "Not answered"
	case *wasClear:
		return "Yes"
	default:
		return "No"
	}
}

var staffSurveyTemplate = template.Must(template.New("staff_survey").Parse(`<div style="font-family:Arial,sans-serif;line-height:1.5">
<h2>New onboarding survey</h2>
<p><strong>{{.Name}}</strong> finished onboarding at <strong>{{.Business}}</strong>.</p>
<p style="font-size:22px;color:#f5a623">{{.Stars}}</p>
<p>Was everything clear? <strong>{{.Clear}}</strong></p>
{{if .Feedback}}<p>Feedback:</p><blockquote style="border-left:3px solid #ccc;padding-left:10px">{{.Feedback}}</blockquote>{{else}}<p><em>No written feedback.</em></p>{{end}}
</div>`))

// StaffSurveyEmail renders the internal survey summary
func StaffSurveyEmail(business *domain.Business, survey *domain.OnboardingSurvey) (subject, html string, err error) {
	name := strings.TrimSpace(survey.FirstName + " " + survey.LastName)
	if name == "" {
		name = "An employee"
	}

	var buf bytes.Buffer
	err = staffSurveyTemplate.Execute(&buf, map[string]string{
		"Name":     name,
		"Business": business.Name,
		"Stars":    Stars(survey.Rating),
		"Clear":    clarityAnswer(survey.WasClear),
		"Feedback": survey.Feedback,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to render staff survey email: %w", err)
	}
	return fmt.Sprintf("Onboarding survey: %s rated %s %d/5", name, business.Name, survey.Rating), buf.String(), nil
}

// CompletedStep is one line of the employee confirmation
type CompletedStep struct {
	Icon string
	Name string
}

// ConfirmationData is what the employee confirmation shows
type ConfirmationData struct {
	FirstName string
	Business  string
	Steps     []CompletedStep
	PolicyURL string
	Checklist []string
}

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`<div style="font-family:Arial,sans-serif;line-height:1.5">
<h2>You're all set, {{.FirstName}}!</h2>
<p>Thanks for completing your onboarding with <strong>{{.Business}}</strong>. Here's what we have on file:</p>
<ul style="list-style:none;padding-left:0">{{range .Steps}}
<li>{{.Icon}} {{.Name}}</li>{{end}}
</ul>
{{if .PolicyURL}}<p><a href="{{.PolicyURL}}" style="background:#111;color:#fff;padding:10px 16px;border-radius:6px;text-decoration:none">Download your signed policy</a></p>{{end}}
<h3>Before your first shift</h3>
<ul>{{range .Checklist}}
<li>{{.}}</li>{{end}}
</ul>
</div>`))

// ConfirmationEmail renders the employee confirmation
func ConfirmationEmail(data ConfirmationData) (subject, html string, err error) {
	if data.Checklist == nil {
		data.Checklist = PreShiftChecklist
	}
	var buf bytes.Buffer
	if err := confirmationTemplate.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("failed to render confirmation email: %w", err)
	}
	return fmt.Sprintf("Welcome to %s: your onboarding is complete", data.Business), buf.String(), nil
}
