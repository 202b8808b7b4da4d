package domain

import (
	"errors"
	"testing"
)

func TestValidEmail(t *testing.T) {
	cases := map[string]bool{
		"casey@example.com":     true,
		"c.jones+work@ex.co":    true,
		"  casey@example.com  ": true,
		"casey@example":         false,
		"casey.example.com":     false,
		"@example.com":          false,
		"casey@exa mple.com":    false,
	}
	for email, want := range cases {
		if got := ValidEmail(email); got != want {
			t.Fatalf("ValidEmail(%q) = %v, want %v", email, got, want)
		}
	}
}

func TestValidateIdentityReportsEachField(t *testing.T) {
	v := ValidateIdentity("  ", "", "nope")
	if v == nil {
		t.Fatal("expected validation error")
	}
	for _, field := range []string{"firstName", "lastName", "email"} {
		if v.Fields[field] == "" {
			t.Fatalf("missing message for %s: %v", field, v.Fields)
		}
	}
	if ValidateIdentity("Casey", "Jones", "casey@example.com") != nil {
		t.Fatal("expected valid identity")
	}
}

func TestNotFoundErrorUnwraps(t *testing.T) {
	err := error(&NotFoundError{What: "business"})
	if !errors.Is(err, ErrNotFound) || err.Error() != "business not found" {
		t.Fatalf("unexpected %v", err)
	}
}

func TestAllowedUpload(t *testing.T) {
	if !AllowedUpload("image/heic") || AllowedUpload("image/gif") {
		t.Fatal("upload allow-list mismatch")
	}
}

func TestArtifactKeys(t *testing.T) {
	if got := SignatureKey("e1", "d1"); got != "e1/signatures/d1.png" {
		t.Fatalf("signature key = %q", got)
	}
	if got := PolicyPDFKey("e1", "d1"); got != "e1/pdfs/d1.pdf" {
		t.Fatalf("pdf key = %q", got)
	}
	if got := UploadKey("e1", "d1", "heic"); got != "e1/uploads/d1-permit.heic" {
		t.Fatalf("upload key = %q", got)
	}
}
