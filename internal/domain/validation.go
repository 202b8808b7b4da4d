package domain

import (
	"regexp"
	"strings"
)

// MaxUploadBytes bounds permit uploads
const MaxUploadBytes = 10 << 20

// UploadExtensions maps each accepted upload MIME type to its storage extension
var UploadExtensions = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/webp":      "webp",
	"image/heic":      "heic",
	"application/pdf": "pdf",
}

// AllowedUpload reports whether contentType may be uploaded
func AllowedUpload(contentType string) bool {
	_, ok := UploadExtensions[contentType]
	return ok
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidEmail reports whether email looks like local@domain.tld
func ValidEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

// ValidateIdentity checks the identity fields shared by the wizard and the signature endpoint.
// It returns nil when every field is acceptable.
func ValidateIdentity(firstName, lastName, email string) *ValidationError {
	v := &ValidationError{}
	if strings.TrimSpace(firstName) == "" {
		v.FieldError("firstName", "First name is required")
	}
	if strings.TrimSpace(lastName) == "" {
		v.FieldError("lastName", "Last name is required")
	}
	switch {
	case strings.TrimSpace(email) == "":
		v.FieldError("email", "Email is required")
	case !ValidEmail(email):
		v.FieldError("email", "Please enter a valid email address")
	}
	if v.Empty() {
		return nil
	}
	return v
}
