package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/dto"
	"github.com/spec-kit/sla-engine/internal/auth"
	"github.com/spec-kit/sla-engine/internal/config"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// AuthHandler issues operator tokens for the admin surface.
type AuthHandler struct {
	tokens *auth.TokenManager
	cfg    config.AuthConfig
}

// NewAuthHandler constructs handler.
func NewAuthHandler(tokens *auth.TokenManager, cfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{tokens: tokens, cfg: cfg}
}

// IssueToken POST /auth/token. Exchanges the shared operator key for a
// bearer token carrying the SLA capabilities.
func (h *AuthHandler) IssueToken(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.OperatorID == "" || req.OperatorKey == "" {
		return apperrors.NewValidationError("operator_id and operator_key required", nil)
	}

	if err := auth.VerifyOperatorKey(h.cfg.OperatorKeyHash, req.OperatorKey); err != nil {
		return err
	}

	token, expiresAt, err := h.tokens.GenerateToken(req.OperatorID, []string{
		auth.CapabilitySlaRead,
		auth.CapabilitySlaManage,
	})
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	return c.JSON(dto.TokenResponse{AccessToken: token, ExpiresAt: expiresAt})
}
