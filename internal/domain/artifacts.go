package domain

import "fmt"

// SignatureKey is where a document's signature PNG is stored
func SignatureKey(employeeID, documentID string) string {
	return fmt.Sprintf("%s/signatures/%s.png", employeeID, documentID)
}

// PolicyPDFKey is where a signed policy's PDF is stored
func PolicyPDFKey(employeeID, documentID string) string {
	return fmt.Sprintf("%s/pdfs/%s.pdf", employeeID, documentID)
}

// UploadKey is where an uploaded permit is stored
func UploadKey(employeeID, documentID, ext string) string {
	return fmt.Sprintf("%s/uploads/%s-permit.%s", employeeID, documentID, ext)
}
