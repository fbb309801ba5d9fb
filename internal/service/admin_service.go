package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okozhin/icewheel/internal/domain"
)

// adminSessionTTL bounds how long an issued admin session token lives.
const adminSessionTTL = 12 * time.Hour

// AdminService validates admin sessions and maintains the identity
// bindings the admin target resolver relies on.
type AdminService struct {
	tokens   domain.AdminTokenStore
	identity domain.IdentityStore
	logger   *slog.Logger
}

// NewAdminService creates an AdminService.
func NewAdminService(tokens domain.AdminTokenStore, identity domain.IdentityStore, logger *slog.Logger) *AdminService {
	return &AdminService{
		tokens:   tokens,
		identity: identity,
		logger:   logger.With(slog.String("component", "admin")),
	}
}

// Validate reports whether token is a live admin session.
func (s *AdminService) Validate(ctx context.Context, token string) (bool, error) {
	return s.tokens.Validate(ctx, token)
}

// IssueSession mints a fresh session token.
func (s *AdminService) IssueSession(ctx context.Context) (string, error) {
	token := uuid.New().String()
	if err := s.tokens.Issue(ctx, token, adminSessionTTL); err != nil {
		return "", fmt.Errorf("admin: issue session: %w", err)
	}
	return token, nil
}

// Bind records a telegram identity's wallet binding. The username binding
// is optional.
func (s *AdminService) Bind(ctx context.Context, telegramID int64, username, wallet string) error {
	if telegramID <= 0 {
		return fmt.Errorf("admin: %w: telegram id %d", domain.ErrBadTarget, telegramID)
	}
	if wallet == "" {
		return fmt.Errorf("admin: %w: empty wallet", domain.ErrBadTarget)
	}

	if err := s.identity.BindWallet(ctx, telegramID, wallet); err != nil {
		return fmt.Errorf("admin: bind wallet: %w", err)
	}
	// Stored lowercase so target resolution is case-insensitive.
	username = strings.ToLower(strings.TrimPrefix(username, "@"))
	if username != "" {
		if err := s.identity.BindUsername(ctx, username, telegramID); err != nil {
			return fmt.Errorf("admin: bind username: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "identity bound",
		slog.Int64("telegram_id", telegramID),
		slog.String("username", username),
	)
	return nil
}
