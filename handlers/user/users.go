package user

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	authhandler "github.com/sahilchouksey/course-platform-api/handlers/auth"
	"github.com/sahilchouksey/course-platform-api/model"
	"github.com/sahilchouksey/course-platform-api/utils"
	"github.com/sahilchouksey/course-platform-api/utils/middleware"
	"github.com/sahilchouksey/course-platform-api/utils/permission"
	"github.com/sahilchouksey/course-platform-api/utils/response"
	"github.com/sahilchouksey/course-platform-api/utils/validation"
	"gorm.io/gorm"
)

// PaymentHistory lists the payments a user made
type PaymentHistory interface {
	ListForOwner(ctx context.Context, ownerID uint) ([]model.Payment, error)
}

// UserHandler handles user profile requests
type UserHandler struct {
	db        *gorm.DB
	payments  PaymentHistory
	validator *validation.Validator
}

// NewUserHandler creates a new user handler
func NewUserHandler(db *gorm.DB, payments PaymentHistory) *UserHandler {
	return &UserHandler{
		db:        db,
		payments:  payments,
		validator: validation.NewValidator(),
	}
}

// UpdateUserRequest represents the request body for updating a profile
type UpdateUserRequest struct {
	Name    *string `json:"name" validate:"omitempty,max=150"`
	Phone   *string `json:"phone" validate:"omitempty,max=35"`
	Country *string `json:"country" validate:"omitempty,max=50"`
	Avatar  *string `json:"avatar" validate:"omitempty,url,max=512"`
}

// UserDetailResponse is a profile with its payment history
type UserDetailResponse struct {
	authhandler.UserResponse
	PaymentHistory []model.Payment `json:"payment_history,omitempty"`
}

func (h *UserHandler) load(c *fiber.Ctx) (*model.User, error) {
	id, ok := utils.ParamID(c, "id")
	if !ok {
		return nil, response.BadRequest(c, "Invalid user ID")
	}

	var u model.User
	if err := h.db.First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NotFound(c, "User not found")
		}
		return nil, response.InternalServerError(c, "Failed to fetch user")
	}
	return &u, nil
}

// GetUser handles GET /api/v1/users/:id. Payment history is included for the
// user themselves and for moderators.
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	viewer, ok := middleware.GetUser(c)
	if !ok || !permission.IsAuthenticated(viewer) {
		return response.Unauthorized(c, "User not authenticated")
	}

	u, sent := h.load(c)
	if u == nil {
		return sent
	}

	res := UserDetailResponse{UserResponse: authhandler.NewUserResponse(u)}
	if h.payments != nil && permission.CanUpdateUser(viewer, u.ID) {
		history, err := h.payments.ListForOwner(c.UserContext(), u.ID)
		if err != nil {
			return response.InternalServerError(c, "Failed to fetch payment history")
		}
		res.PaymentHistory = history
	}

	return response.Success(c, res)
}

// UpdateUser handles PUT /api/v1/users/:id
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	viewer, ok := middleware.GetUser(c)
	if !ok || !permission.IsAuthenticated(viewer) {
		return response.Unauthorized(c, "User not authenticated")
	}

	u, sent := h.load(c)
	if u == nil {
		return sent
	}
	if !permission.CanUpdateUser(viewer, u.ID) {
		return response.Forbidden(c, "You can only edit your own profile")
	}

	var req UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.InvalidFields(c, validation.FormatValidationErrors(err))
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = validation.SanitizeString(*req.Name)
	}
	if req.Phone != nil {
		updates["phone"] = validation.SanitizeString(*req.Phone)
	}
	if req.Country != nil {
		updates["country"] = validation.SanitizeString(*req.Country)
	}
	if req.Avatar != nil {
		updates["avatar"] = validation.SanitizeString(*req.Avatar)
	}

	if len(updates) > 0 {
		if err := h.db.Model(u).Updates(updates).Error; err != nil {
			return response.InternalServerError(c, "Failed to update user")
		}
	}

	return response.SuccessWithMessage(c, "User updated successfully", authhandler.NewUserResponse(u))
}

// DeleteUser handles DELETE /api/v1/users/:id. Payments and subscriptions
// go with the account through ON DELETE CASCADE.
func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	viewer, ok := middleware.GetUser(c)
	if !ok || !permission.IsAuthenticated(viewer) {
		return response.Unauthorized(c, "User not authenticated")
	}

	u, sent := h.load(c)
	if u == nil {
		return sent
	}
	if !permission.CanDeleteUser(viewer, u.ID) {
		return response.Forbidden(c, "You can only delete your own account")
	}

	if err := h.db.Delete(u).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete user")
	}

	return response.SuccessWithMessage(c, "User deleted successfully", nil)
}
