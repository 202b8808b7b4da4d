package mail

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/kestrelhq/portal/internal/domain"
)

func TestBuildMessageTagsEmployeeConfirmation(t *testing.T) {
	n := &domain.Notification{
		Kind:       domain.NotifyEmployeeConfirmation,
		To:         []string{"casey@example.com"},
		Subject:    "Your onboarding is complete",
		HTML:       "<p>done</p>",
		EmployeeID: "emp-1",
	}

	msg, err := BuildMessage("Kestrel <no-reply@kestrelhq.com>", n)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw := buf.String()
	if !strings.Contains(raw, "X-SMTPAPI: ") || !strings.Contains(raw, `{"unique_args":{"employee_id":"emp-1"}}`) {
		t.Fatalf("missing smtp api header in:\n%s", raw)
	}
	if !strings.Contains(raw, "To: casey@example.com") {
		t.Fatalf("missing recipient in:\n%s", raw)
	}
}

func TestBuildMessageStaffHasNoTracking(t *testing.T) {
	n := &domain.Notification{Kind: domain.NotifySurveyStaff, To: []string{"team@example.com"}, Subject: "s", HTML: "h"}
	msg, err := BuildMessage("from@example.com", n)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := msg.GetHeader("X-SMTPAPI"); len(got) != 0 {
		t.Fatalf("unexpected header %v", got)
	}
}

func TestBuildMessageRequiresRecipients(t *testing.T) {
	if _, err := BuildMessage("from@example.com", &domain.Notification{}); !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}
}
