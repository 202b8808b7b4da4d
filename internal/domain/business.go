package domain

import (
	"context"
	"strings"
	"time"
)

// StepType selects how the wizard renders a document step
type StepType string

const (
	StepSignature     StepType = "signature"
	StepFileUpload    StepType = "file_upload"
	StepInformational StepType = "informational"
	StepAppDownload   StepType = "app_download"
	StepSurvey        StepType = "survey"
)

// Valid reports whether the step type is one the wizard knows how to render
func (s StepType) Valid() bool {
	switch s {
	case StepSignature, StepFileUpload, StepInformational, StepAppDownload, StepSurvey:
		return true
	}
	return false
}

// EffectiveDatePlaceholder is replaced with the signing date in policy content
const EffectiveDatePlaceholder = "{{EFFECTIVE_DATE}}"

// Business is a brand that owns onboarding requirements and employees
type Business struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Location    string `json:"location"`
	WelcomeCopy string `json:"welcomeCopy"`
	LogoURL     string `json:"logoUrl"`
	Active      bool   `json:"active"`
}

// DocumentType is a reusable definition of one onboarding step
type DocumentType struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Slug               string   `json:"slug"`
	StepType           StepType `json:"stepType"`
	RequiresSignature  bool     `json:"requiresSignature"`
	RequiresFileUpload bool     `json:"requiresFileUpload"`
	CurrentVersion     string   `json:"currentVersion"`
	Content            string   `json:"content"`
	ContentURL         string   `json:"contentUrl"`
	AppStoreURL        string   `json:"appStoreUrl"`
	PlayStoreURL       string   `json:"playStoreUrl"`
	Active             bool     `json:"active"`
}

// Requirement assigns a document type to a business
type Requirement struct {
	BusinessID     string
	DocumentTypeID string
	Required       bool
	DisplayOrder   int
}

// OnboardingPlan is the resolved business plus its required steps in display order
type OnboardingPlan struct {
	Business      *Business       `json:"business"`
	DocumentTypes []*DocumentType `json:"documentTypes"`
}

// BusinessRepository defines read access to the registry
type BusinessRepository interface {
	GetActiveBySlug(ctx context.Context, slug string) (*Business, error)
	GetActiveDocumentType(ctx context.Context, id string) (*DocumentType, error)
	// ListRequiredDocumentTypes returns active, required document types ordered by display_order
	ListRequiredDocumentTypes(ctx context.Context, businessID string) ([]*DocumentType, error)
	ListActive(ctx context.Context) ([]*Business, error)
}

// Clock abstracts time.Now for services that stamp records
type Clock func() time.Time

// EffectiveDate formats t as the policy effective date in loc, e.g. "February 1, 2025"
func EffectiveDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("January 2, 2006")
}

// SubstituteEffectiveDate replaces every effective-date placeholder in content
func SubstituteEffectiveDate(content, date string) string {
	return strings.ReplaceAll(content, EffectiveDatePlaceholder, date)
}
