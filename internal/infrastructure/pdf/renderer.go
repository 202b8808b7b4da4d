package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// SignedAtLayout is how the signature timestamp is printed
const SignedAtLayout = "January 2, 2006 at 3:04 PM MST"

// SignedPolicy is everything printed on a signed-policy PDF
type SignedPolicy struct {
	BusinessName  string
	DocumentName  string
	Version       string
	EmployeeName  string
	EmployeeEmail string
	SignedAt      time.Time
	Location      *time.Location
	IPAddress     string
	Content       string
	// Signature is the PNG drawn by the employee
	Signature []byte
}

// Renderer produces signed-policy PDFs using the built-in Helvetica fonts
type Renderer struct {
	pageSize string
}

// NewRenderer creates a Letter-size renderer
func NewRenderer() *Renderer {
	return &Renderer{pageSize: "Letter"}
}

// cp1252 transcodes text for the core fonts. Encoders are stateful, so each render gets its own.
type cp1252 struct {
	enc *encoding.Encoder
}

func newCP1252() cp1252 {
	return cp1252{enc: encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())}
}

func (c cp1252) text(s string) string {
	out, err := c.enc.String(s)
	if err != nil {
		return s
	}
	return out
}

// Render lays out the policy on Letter pages and returns the PDF bytes
func (r *Renderer) Render(doc SignedPolicy) ([]byte, error) {
	loc := doc.Location
	if loc == nil {
		loc = time.UTC
	}

	enc := newCP1252()
	p := fpdf.New("P", "mm", r.pageSize, "")
	p.SetTitle(enc.text(doc.DocumentName), false)
	p.SetAuthor(enc.text(doc.BusinessName), false)
	p.SetCreationDate(doc.SignedAt)
	p.SetMargins(20, 20, 20)
	p.SetAutoPageBreak(true, 20)
	p.AddPage()

	p.SetFont("Helvetica", "B", 18)
	p.MultiCell(0, 8, enc.text(doc.BusinessName), "", "L", false)
	p.SetFont("Helvetica", "", 13)
	p.MultiCell(0, 7, enc.text(fmt.Sprintf("%s (version %s)", doc.DocumentName, doc.Version)), "", "L", false)
	p.Ln(4)

	body := PolicyText(doc.Content, doc.SignedAt.In(loc).Format("January 2, 2006"))
	p.SetFont("Helvetica", "", 10)
	p.MultiCell(0, 5, enc.text(body), "", "L", false)
	p.Ln(6)

	p.SetFont("Helvetica", "B", 11)
	p.CellFormat(0, 6, "Acknowledgement", "B", 1, "L", false, 0, "")
	p.Ln(2)
	p.SetFont("Helvetica", "", 10)
	for _, line := range []string{
		"Employee: " + doc.EmployeeName,
		"Email: " + doc.EmployeeEmail,
		"Signed: " + doc.SignedAt.In(loc).Format(SignedAtLayout),
		"IP address: " + doc.IPAddress,
	} {
		p.CellFormat(0, 5, enc.text(line), "", 1, "L", false, 0, "")
	}
	p.Ln(3)

	if len(doc.Signature) > 0 {
		opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		p.RegisterImageOptionsReader("signature", opts, bytes.NewReader(doc.Signature))
		p.ImageOptions("signature", p.GetX(), p.GetY(), 60, 0, true, opts, 0, "")
	}

	var buf bytes.Buffer
	if err := p.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
