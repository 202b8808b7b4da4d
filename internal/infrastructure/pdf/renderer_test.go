package pdf

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"
)

func testSignature(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 12))
	for x := 0; x < 40; x++ {
		for y := 0; y < 12; y++ {
			img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
		img.Set(x, 6, color.RGBA{A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestPolicyTextStripsMarkdown(t *testing.T) {
	content := strings.Join([]string{
		"## Food Safety Policy",
		"Effective {{EFFECTIVE_DATE}}",
		"Wash hands **every** time, *no exceptions*.",
		"---",
		"- Gloves on",
		"- Hair tied back",
	}, "\n")

	got := PolicyText(content, "February 1, 2025")
	want := strings.Join([]string{
		"Food Safety Policy",
		"Effective February 1, 2025",
		"Wash hands every time, no exceptions.",
		Divider,
		"• Gloves on",
		"• Hair tied back",
	}, "\n")

	if got != want {
		t.Fatalf("PolicyText mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestPolicyTextLeavesPlainLines(t *testing.T) {
	if got := PolicyText("5 * 3 * 4 is not markdown", "x"); got != "5 * 3 * 4 is not markdown" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderProducesPDF(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	out, err := NewRenderer().Render(SignedPolicy{
		BusinessName:  "Wedgies",
		DocumentName:  "Food Handler Policy",
		Version:       "1.0",
		EmployeeName:  "Casey Jones",
		EmployeeEmail: "casey@example.com",
		SignedAt:      time.Date(2025, 2, 1, 18, 30, 0, 0, time.UTC),
		Location:      loc,
		IPAddress:     "203.0.113.7",
		Content:       "# Policy\nEffective {{EFFECTIVE_DATE}}\n- Café rules apply",
		Signature:     testSignature(t),
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", out[:min(len(out), 16)])
	}
}
