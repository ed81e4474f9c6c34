package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

func newProtectedApp(t *testing.T, tm *TokenManager, capability string) *fiber.App {
	t.Helper()
	app := fiber.New()
	// Collapse DomainErrors to their HTTP status so assertions see the code
	// the API middleware would produce.
	app.Use(func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		}
		return nil
	})
	app.Post("/admin/sweep", NewAuthMiddleware(tm).Handle, RequireCapability(capability), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestRequireCapabilityGatesEndpoint(t *testing.T) {
	tm := NewTokenManager("unit-test-secret", 60)
	app := newProtectedApp(t, tm, CapabilitySlaManage)

	readOnly, _, err := tm.GenerateToken("operator-1", []string{CapabilitySlaRead})
	require.NoError(t, err)
	manage, _, err := tm.GenerateToken("operator-2", []string{CapabilitySlaRead, CapabilitySlaManage})
	require.NoError(t, err)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{name: "no token", wantStatus: fiber.StatusUnauthorized},
		{name: "malformed header", authHeader: "Basic abc", wantStatus: fiber.StatusUnauthorized},
		{name: "garbage token", authHeader: "Bearer not-a-jwt", wantStatus: fiber.StatusUnauthorized},
		{name: "missing capability", authHeader: "Bearer " + readOnly, wantStatus: fiber.StatusForbidden},
		{name: "with capability", authHeader: "Bearer " + manage, wantStatus: fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodPost, "/admin/sweep", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}
