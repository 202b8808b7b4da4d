package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/kestrelhq/portal/internal/domain"
	"github.com/kestrelhq/portal/internal/infrastructure/pdf"
	"github.com/kestrelhq/portal/internal/infrastructure/storage"
	"github.com/kestrelhq/portal/internal/memstore"
	"github.com/kestrelhq/portal/internal/security/auth"
)

type fakeRenderer struct {
	calls []pdf.SignedPolicy
	err   error
}

func (f *fakeRenderer) Render(doc pdf.SignedPolicy) ([]byte, error) {
	f.calls = append(f.calls, doc)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.3 fake"), nil
}

type fixture struct {
	store      *memstore.Store
	seeded     memstore.Seeded
	storage    *storage.MemoryStorage
	queue      *memstore.NotificationQueue
	renderer   *fakeRenderer
	tokens     *auth.TokenManager
	registry   *RegistryService
	submission *SubmissionService
	surveys    *SurveyService
	links      *FileLinks
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memstore.New(),
		storage:  storage.NewMemoryStorage("onboarding"),
		queue:    memstore.NewNotificationQueue(),
		renderer: &fakeRenderer{},
		tokens:   auth.NewTokenManager("test-secret", "portal"),
	}
	f.seeded = f.store.Seed()
	f.registry = NewRegistryService(f.store.Businesses, nil)
	f.submission = NewSubmissionService(f.registry, f.store.Employees, f.store.Documents, f.storage, f.renderer, time.UTC, nil)
	f.links = NewFileLinks(f.tokens, f.storage, "https://portal.example")
	f.surveys = NewSurveyService(f.registry, f.store.Employees, f.store.Documents, f.store.Surveys, f.queue, f.links, "team@example.com", true, nil)
	return f
}

var signatureDataURL = pngDataURLPrefix + base64.StdEncoding.EncodeToString(signaturePNG())

func signaturePNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 40, 12))
	for x := 0; x < 40; x++ {
		for y := 0; y < 12; y++ {
			img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
		img.Set(x, 6, color.RGBA{A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func (f *fixture) sign(t *testing.T, email string) *SignatureResult {
	t.Helper()
	res, err := f.submission.SubmitSignature(context.Background(), SignatureInput{
		Slug:             "wedgies",
		FirstName:        "Ana",
		LastName:         "Diaz",
		Email:            email,
		DocumentTypeID:   f.seeded.Policy.ID,
		SignatureDataURL: signatureDataURL,
		IPAddress:        "203.0.113.9",
	})
	if err != nil {
		t.Fatalf("SubmitSignature: %v", err)
	}
	return res
}

func TestSubmitSignatureWritesArtifactsAndCompletes(t *testing.T) {
	f := newFixture(t)
	res := f.sign(t, "Ana@Example.com ")

	if res.EmployeeID == "" || res.DocumentID == "" || res.PDFDownloadURL == "" {
		t.Fatalf("incomplete result: %+v", res)
	}
	for _, key := range []string{domain.SignatureKey(res.EmployeeID, res.DocumentID), domain.PolicyPDFKey(res.EmployeeID, res.DocumentID)} {
		if _, ok := f.storage.Get(key); !ok {
			t.Fatalf("expected object at %s, have %v", key, f.storage.Keys())
		}
	}

	docs := f.store.Documents.All()
	if len(docs) != 1 {
		t.Fatalf("expected one document, got %d", len(docs))
	}
	d := docs[0]
	if d.Status != domain.DocumentComplete || d.SignedAt == nil || d.IPAddress != "203.0.113.9" || d.Version != "1.0" {
		t.Fatalf("unexpected document: %+v", d)
	}

	emp, err := f.store.Employees.GetByID(context.Background(), res.EmployeeID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if emp.Email != "ana@example.com" {
		t.Fatalf("email not normalized: %q", emp.Email)
	}
	if len(f.renderer.calls) != 1 || f.renderer.calls[0].BusinessName != "Wedgies" {
		t.Fatalf("renderer calls = %+v", f.renderer.calls)
	}
}

func TestSubmitSignatureReusesEmployee(t *testing.T) {
	f := newFixture(t)
	first := f.sign(t, "ana@example.com")
	second := f.sign(t, "ana@example.com")

	if first.EmployeeID != second.EmployeeID {
		t.Fatalf("expected the same employee, got %s and %s", first.EmployeeID, second.EmployeeID)
	}
	if f.store.Employees.Count() != 1 {
		t.Fatalf("expected one employee, got %d", f.store.Employees.Count())
	}
	links, _ := f.store.Employees.ListBusinessLinks(context.Background(), first.EmployeeID)
	if len(links) != 1 {
		t.Fatalf("expected one business link, got %d", len(links))
	}
}

func TestSubmitSignatureValidationWritesNothing(t *testing.T) {
	cases := []struct {
		name string
		in   SignatureInput
	}{
		{"missing first name", SignatureInput{LastName: "D", Email: "a@b.co", DocumentTypeID: "x", SignatureDataURL: signatureDataURL}},
		{"bad email", SignatureInput{FirstName: "A", LastName: "D", Email: "nope", DocumentTypeID: "x", SignatureDataURL: signatureDataURL}},
		{"jpeg data url", SignatureInput{FirstName: "A", LastName: "D", Email: "a@b.co", DocumentTypeID: "x", SignatureDataURL: "data:image/jpeg;base64,AAAA"}},
		{"undecodable", SignatureInput{FirstName: "A", LastName: "D", Email: "a@b.co", DocumentTypeID: "x", SignatureDataURL: pngDataURLPrefix + "!!!"}},
		{"not a png", SignatureInput{FirstName: "A", LastName: "D", Email: "a@b.co", DocumentTypeID: "x", SignatureDataURL: pngDataURLPrefix + base64.StdEncoding.EncodeToString([]byte("garbage"))}},
		{"missing signature", SignatureInput{FirstName: "A", LastName: "D", Email: "a@b.co", DocumentTypeID: "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tc.in.Slug = "wedgies"
			_, err := f.submission.SubmitSignature(context.Background(), tc.in)
			var v *domain.ValidationError
			if !errors.As(err, &v) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if f.store.Employees.Count() != 0 || len(f.store.Documents.All()) != 0 || len(f.storage.Keys()) != 0 {
				t.Fatalf("validation failure must not write")
			}
		})
	}
}

func TestSubmitSignatureRendersRealPDF(t *testing.T) {
	f := newFixture(t)
	f.submission = NewSubmissionService(f.registry, f.store.Employees, f.store.Documents, f.storage, pdf.NewRenderer(), time.UTC, nil)

	res := f.sign(t, "ana@example.com")

	obj, ok := f.storage.Get(domain.PolicyPDFKey(res.EmployeeID, res.DocumentID))
	if !ok || obj.ContentType != "application/pdf" || !bytes.HasPrefix(obj.Data, []byte("%PDF-")) {
		t.Fatalf("expected a rendered pdf, have %v", f.storage.Keys())
	}
	docs := f.store.Documents.All()
	if len(docs) != 1 || docs[0].Status != domain.DocumentComplete {
		t.Fatalf("expected one complete document, got %+v", docs)
	}
}

func TestSubmitSignatureReturnsRenderErrorOnce(t *testing.T) {
	f := newFixture(t)
	renderErr := errors.New("failed to render pdf: out of ink")
	f.renderer.err = renderErr

	_, err := f.submission.SubmitSignature(context.Background(), SignatureInput{
		Slug: "wedgies", FirstName: "A", LastName: "D", Email: "a@b.co",
		DocumentTypeID: f.seeded.Policy.ID, SignatureDataURL: signatureDataURL,
	})
	if !errors.Is(err, renderErr) || strings.Count(err.Error(), "failed to render pdf") != 1 {
		t.Fatalf("expected the renderer error unwrapped, got %v", err)
	}
}

func TestSubmitSignatureUnknownBusinessOrType(t *testing.T) {
	f := newFixture(t)
	in := SignatureInput{Slug: "nope", FirstName: "A", LastName: "D", Email: "a@b.co", DocumentTypeID: f.seeded.Policy.ID, SignatureDataURL: signatureDataURL}
	if _, err := f.submission.SubmitSignature(context.Background(), in); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for slug, got %v", err)
	}
	in.Slug, in.DocumentTypeID = "wedgies", "missing"
	if _, err := f.submission.SubmitSignature(context.Background(), in); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for document type, got %v", err)
	}
	if f.store.Employees.Count() != 0 {
		t.Fatalf("lookups failing must not create employees")
	}
}

func TestSubmitSignaturePDFUploadFailureLeavesPending(t *testing.T) {
	f := newFixture(t)
	f.storage.FailPut = func(key string) bool { return strings.HasSuffix(key, ".pdf") }

	_, err := f.submission.SubmitSignature(context.Background(), SignatureInput{
		Slug: "wedgies", FirstName: "A", LastName: "D", Email: "a@b.co",
		DocumentTypeID: f.seeded.Policy.ID, SignatureDataURL: signatureDataURL,
	})
	if err == nil {
		t.Fatalf("expected upload failure")
	}
	docs := f.store.Documents.All()
	if len(docs) != 1 || docs[0].Status != domain.DocumentPending {
		t.Fatalf("expected one pending row for the reconciler, got %+v", docs)
	}
}

func TestSubmitUpload(t *testing.T) {
	f := newFixture(t)
	signed := f.sign(t, "ana@example.com")

	res, err := f.submission.SubmitUpload(context.Background(), UploadInput{
		Slug:           "wedgies",
		EmployeeID:     signed.EmployeeID,
		DocumentTypeID: f.seeded.Permit.ID,
		ContentType:    "image/jpeg",
		Data:           []byte{0xff, 0xd8, 0xff},
		IPAddress:      "unknown",
	})
	if err != nil {
		t.Fatalf("SubmitUpload: %v", err)
	}

	key := signed.EmployeeID + "/uploads/" + res.DocumentID + "-permit.jpg"
	if _, ok := f.storage.Get(key); !ok {
		t.Fatalf("expected %s in %v", key, f.storage.Keys())
	}
	if len(f.renderer.calls) != 1 {
		t.Fatalf("uploads must not render a pdf")
	}
}

func TestSubmitUploadRejections(t *testing.T) {
	f := newFixture(t)
	signed := f.sign(t, "ana@example.com")

	base := UploadInput{Slug: "wedgies", EmployeeID: signed.EmployeeID, DocumentTypeID: f.seeded.Permit.ID, ContentType: "application/pdf", Data: []byte("%PDF")}

	gif := base
	gif.ContentType = "image/gif"
	big := base
	big.Data = make([]byte, domain.MaxUploadBytes+1)
	missing := base
	missing.EmployeeID = ""

	for name, in := range map[string]UploadInput{"gif": gif, "too big": big, "no employee": missing} {
		var v *domain.ValidationError
		if _, err := f.submission.SubmitUpload(context.Background(), in); !errors.As(err, &v) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}

	unknown := base
	unknown.EmployeeID = "8b0f6c1e-0000-4000-8000-000000000000"
	if _, err := f.submission.SubmitUpload(context.Background(), unknown); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown employee: expected not found, got %v", err)
	}
}

func intPtr(v int) *int { return &v }

func TestSurveyRejectsBadRating(t *testing.T) {
	f := newFixture(t)
	for _, rating := range []*int{nil, intPtr(0), intPtr(6)} {
		err := f.surveys.Submit(context.Background(), SurveyInput{Slug: "wedgies", FirstName: "A", Rating: rating})
		var v *domain.ValidationError
		if !errors.As(err, &v) {
			t.Fatalf("rating %v: expected validation error, got %v", rating, err)
		}
	}
	if len(f.store.Surveys.All()) != 0 {
		t.Fatalf("rejected surveys must not be stored")
	}
}

func TestSurveyQueuesStaffAndConfirmation(t *testing.T) {
	f := newFixture(t)
	signed := f.sign(t, "ana@example.com")
	yes := true

	err := f.surveys.Submit(context.Background(), SurveyInput{
		Slug: "wedgies", EmployeeID: signed.EmployeeID, FirstName: "Ana", LastName: "Diaz",
		Rating: intPtr(4), WasClear: &yes, Feedback: "Smooth",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	surveys := f.store.Surveys.All()
	if len(surveys) != 1 || surveys[0].BusinessID != f.seeded.Business.ID || surveys[0].EmployeeID != signed.EmployeeID {
		t.Fatalf("unexpected survey rows: %+v", surveys)
	}

	var staff, confirmation *domain.Notification
	for _, n := range f.queue.Pending() {
		switch n.Kind {
		case domain.NotifySurveyStaff:
			staff = n
		case domain.NotifyEmployeeConfirmation:
			confirmation = n
		}
	}
	if staff == nil || staff.To[0] != "team@example.com" || !strings.Contains(staff.HTML, "★★★★☆") {
		t.Fatalf("unexpected staff notification: %+v", staff)
	}
	if confirmation == nil || confirmation.To[0] != "ana@example.com" || confirmation.EmployeeID != signed.EmployeeID {
		t.Fatalf("unexpected confirmation: %+v", confirmation)
	}
	if !strings.Contains(confirmation.HTML, "https://portal.example/files/") {
		t.Fatalf("confirmation should link the policy pdf: %s", confirmation.HTML)
	}
	if !strings.Contains(confirmation.HTML, "Employee Handbook Acknowledgement") {
		t.Fatalf("confirmation should list the completed step")
	}
}

func TestSurveyWithoutCompletedDocumentsSkipsConfirmation(t *testing.T) {
	f := newFixture(t)
	err := f.surveys.Submit(context.Background(), SurveyInput{Slug: "wedgies", EmployeeID: "not-a-uuid", FirstName: "Ana", Rating: intPtr(5)})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	pending := f.queue.Pending()
	if len(pending) != 1 || pending[0].Kind != domain.NotifySurveyStaff {
		t.Fatalf("expected only the staff email, got %+v", pending)
	}
	if f.store.Surveys.All()[0].EmployeeID != "" {
		t.Fatalf("invalid employee id should be dropped")
	}
}

func TestSurveyUnknownBusinessStoresWithoutNotifying(t *testing.T) {
	f := newFixture(t)
	if err := f.surveys.Submit(context.Background(), SurveyInput{Slug: "gone", FirstName: "Ana", Rating: intPtr(3)}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	surveys := f.store.Surveys.All()
	if len(surveys) != 1 || surveys[0].BusinessID != "" {
		t.Fatalf("expected a survey with no business, got %+v", surveys)
	}
	if len(f.queue.Pending()) != 0 {
		t.Fatalf("no notifications without a business")
	}
}

func TestSurveyNotificationsDisabled(t *testing.T) {
	f := newFixture(t)
	quiet := NewSurveyService(f.registry, f.store.Employees, f.store.Documents, f.store.Surveys, f.queue, f.links, "team@example.com", false, nil)
	if err := quiet.Submit(context.Background(), SurveyInput{Slug: "wedgies", FirstName: "Ana", Rating: intPtr(3)}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(f.queue.Pending()) != 0 {
		t.Fatalf("mailer disabled must not queue")
	}
}

func TestFileLinksResolve(t *testing.T) {
	f := newFixture(t)
	signed := f.sign(t, "ana@example.com")
	key := domain.PolicyPDFKey(signed.EmployeeID, signed.DocumentID)

	link, err := f.links.Link(key, ConfirmationLinkTTL)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	token := strings.TrimPrefix(link, "https://portal.example/files/")

	url, err := f.links.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !strings.Contains(url, "pdfs") || !strings.HasPrefix(url, "https://storage.local/onboarding/") {
		t.Fatalf("unexpected signed url %q", url)
	}

	session, _ := f.tokens.IssueSession("hq", time.Hour)
	if _, err := f.links.Resolve(context.Background(), session); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("session token must not resolve as a file link, got %v", err)
	}
}
