package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-platform-api/model"
	authutil "github.com/sahilchouksey/course-platform-api/utils/auth"
	"github.com/sahilchouksey/course-platform-api/utils/middleware"
	"github.com/sahilchouksey/course-platform-api/utils/response"
)

// RefreshRequest represents a token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh" validate:"required"`
}

// RefreshToken rotates a refresh token into a new token pair
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.RefreshToken == "" {
		return response.BadRequest(c, "Refresh token is required")
	}

	claims, err := h.jwtManager.ValidateToken(req.RefreshToken)
	if err != nil {
		return response.Unauthorized(c, "Invalid or expired refresh token")
	}

	if claims.TokenType != authutil.TokenTypeRefresh {
		return response.Unauthorized(c, "Invalid token type")
	}

	ctx := c.UserContext()
	isRevoked, err := h.blacklistService.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to check token status")
	}
	if isRevoked {
		return response.Unauthorized(c, "Token has been revoked")
	}

	var user model.User
	if err := h.db.First(&user, claims.UserID).Error; err != nil {
		return response.Unauthorized(c, "User not found")
	}

	if user.TokenVersion != claims.TokenVersion {
		return response.Unauthorized(c, "Token has been invalidated")
	}
	if !user.IsActive {
		return response.Unauthorized(c, "User account is inactive")
	}

	pair, err := h.jwtManager.GeneratePair(user.ID, user.Email, user.Role, user.TokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate tokens")
	}

	// the old refresh token expires on its own if this fails
	if err := h.blacklistService.RevokeToken(ctx, claims.ID, user.ID, authutil.ExpiresAt(claims, 7*24*time.Hour), "token_refresh"); err != nil {
		h.logger.Warn("refresh token not revoked", "user_id", user.ID, "error", err)
	}

	return response.Success(c, pair)
}

// LogoutRequest optionally names the refresh token to revoke alongside the access token
type LogoutRequest struct {
	RefreshToken string `json:"refresh"`
}

// Logout handles user logout by blacklisting tokens
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	jti, ok := middleware.GetTokenJTI(c)
	if !ok {
		return response.BadRequest(c, "No token ID found")
	}

	ctx := c.UserContext()
	claims, _ := middleware.GetClaims(c)
	if err := h.blacklistService.RevokeToken(ctx, jti, user.ID, authutil.ExpiresAt(claims, 24*time.Hour), "logout"); err != nil {
		return response.InternalServerError(c, "Failed to logout")
	}

	var req LogoutRequest
	if err := c.BodyParser(&req); err == nil && req.RefreshToken != "" {
		if rc, err := h.jwtManager.ValidateToken(req.RefreshToken); err == nil && rc.UserID == user.ID {
			if err := h.blacklistService.RevokeToken(ctx, rc.ID, user.ID, authutil.ExpiresAt(rc, 7*24*time.Hour), "logout"); err != nil {
				h.logger.Warn("refresh token not revoked on logout", "user_id", user.ID, "error", err)
			}
		}
	}

	return response.SuccessWithMessage(c, "Logged out successfully", nil)
}

// LogoutAll invalidates every token issued to the current user
func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	if err := h.blacklistService.RevokeAllUserTokens(c.UserContext(), user.ID); err != nil {
		return response.InternalServerError(c, "Failed to logout from all devices")
	}

	return response.SuccessWithMessage(c, "Logged out from all devices", nil)
}
