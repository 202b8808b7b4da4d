package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrelhq/portal/internal/domain"
	"github.com/kestrelhq/portal/internal/security/auth"
)

const (
	// ConfirmationLinkTTL is how long the policy link in a confirmation email stays valid
	ConfirmationLinkTTL = 90 * 24 * time.Hour
	redirectURLTTL      = 15 * time.Minute
)

// FileLinks issues long-lived download links that outlast a presigned URL. The link
// carries a signed token naming the object; following it presigns a fresh short URL.
type FileLinks struct {
	tokens  *auth.TokenManager
	storage domain.ObjectStorage
	baseURL string
}

func NewFileLinks(tokens *auth.TokenManager, storage domain.ObjectStorage, baseURL string) *FileLinks {
	return &FileLinks{tokens: tokens, storage: storage, baseURL: baseURL}
}

// Link returns a public URL for key valid for ttl
func (f *FileLinks) Link(key string, ttl time.Duration) (string, error) {
	token, err := f.tokens.IssueFileToken(key, ttl)
	if err != nil {
		return "", fmt.Errorf("failed to sign file link: %w", err)
	}
	return f.baseURL + "/files/" + token, nil
}

// Resolve validates token and presigns the object it names
func (f *FileLinks) Resolve(ctx context.Context, token string) (string, error) {
	claims, err := f.tokens.ValidateToken(token, auth.PurposeFile)
	if err != nil || claims.Key == "" {
		return "", &domain.NotFoundError{What: "file link"}
	}
	return f.storage.SignedURL(ctx, claims.Key, redirectURLTTL)
}
