package auth

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-platform-api/model"
	authutil "github.com/sahilchouksey/course-platform-api/utils/auth"
	"github.com/sahilchouksey/course-platform-api/utils/middleware"
	"github.com/sahilchouksey/course-platform-api/utils/response"
	"github.com/sahilchouksey/course-platform-api/utils/validation"
	"gorm.io/gorm"
)

// VerificationMailer delivers account confirmation links
type VerificationMailer interface {
	SendVerificationEmail(toEmail, token string) error
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	db                   *gorm.DB
	jwtManager           *authutil.JWTManager
	blacklistService     *authutil.BlacklistService
	bruteForceProtection *middleware.BruteForceProtection
	mailer               VerificationMailer
	validator            *validation.Validator
	logger               *slog.Logger
	hashCost             int
}

// NewAuthHandler creates a new auth handler. mailer may be nil, in which case
// accounts must be activated by an administrator.
func NewAuthHandler(db *gorm.DB, jwtManager *authutil.JWTManager, bruteForceProtection *middleware.BruteForceProtection, mailer VerificationMailer, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		db:                   db,
		jwtManager:           jwtManager,
		blacklistService:     authutil.NewBlacklistService(db),
		bruteForceProtection: bruteForceProtection,
		mailer:               mailer,
		validator:            validation.NewValidator(),
		logger:               logger,
		hashCost:             authutil.DefaultCost,
	}
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password1 string `json:"password1" validate:"required,min=8"`
	Password2 string `json:"password2" validate:"required,eqfield=Password1"`
	Name      string `json:"name" validate:"omitempty,max=150"`
	Phone     string `json:"phone" validate:"omitempty,max=35"`
	Country   string `json:"country" validate:"omitempty,max=50"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID        uint       `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone"`
	Country   string     `json:"country"`
	Avatar    string     `json:"avatar"`
	Role      string     `json:"role"`
	IsActive  bool       `json:"is_active"`
	LastLogin *time.Time `json:"last_login"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewUserResponse strips credentials from a user
func NewUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Phone:     u.Phone,
		Country:   u.Country,
		Avatar:    u.Avatar,
		Role:      u.Role,
		IsActive:  u.IsActive,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
	}
}

// Register handles user registration. The account stays inactive until the
// emailed link is followed.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.InvalidFields(c, validation.FormatValidationErrors(err))
	}

	var count int64
	if err := h.db.Model(&model.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		return response.InternalServerError(c, "Failed to check email")
	}
	if count > 0 {
		return response.Conflict(c, "User with this email already exists")
	}

	hash, err := authutil.HashPasswordWithCost(req.Password1, h.hashCost)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	token, err := authutil.NewVerificationToken()
	if err != nil {
		return response.InternalServerError(c, "Failed to create verification token")
	}

	user := model.User{
		Email:        req.Email,
		PasswordHash: hash,
		Name:         validation.SanitizeString(req.Name),
		Phone:        validation.SanitizeString(req.Phone),
		Country:      validation.SanitizeString(req.Country),
		Role:         model.RoleStudent,
		VerifyToken:  token,
	}
	if err := h.db.Create(&user).Error; err != nil {
		return response.InternalServerError(c, "Failed to create user")
	}

	if h.mailer != nil {
		if err := h.mailer.SendVerificationEmail(user.Email, token); err != nil {
			h.logger.Warn("verification email not sent", "user_id", user.ID, "error", err)
		}
	}

	return response.CreatedWithMessage(c, "Registration successful. Check your email to activate the account", NewUserResponse(&user))
}

// Verify activates the account owning the token in the path
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return response.BadRequest(c, "Verification token is required")
	}

	var user model.User
	if err := h.db.Where("verify_token = ?", token).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Verification link is invalid or already used")
		}
		return response.InternalServerError(c, "Failed to verify account")
	}

	if err := h.db.Model(&user).Updates(map[string]interface{}{
		"is_active":    true,
		"verify_token": "",
	}).Error; err != nil {
		return response.InternalServerError(c, "Failed to activate account")
	}
	user.IsActive = true

	return response.SuccessWithMessage(c, "Account activated", NewUserResponse(&user))
}
