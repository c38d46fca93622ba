package subscription

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-platform-api/services/subscription"
	"github.com/sahilchouksey/course-platform-api/utils"
	"github.com/sahilchouksey/course-platform-api/utils/middleware"
	"github.com/sahilchouksey/course-platform-api/utils/permission"
	"github.com/sahilchouksey/course-platform-api/utils/response"
)

// SubscriptionHandler handles course subscription requests
type SubscriptionHandler struct {
	service *subscription.Service
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(service *subscription.Service) *SubscriptionHandler {
	return &SubscriptionHandler{service: service}
}

// ToggleResponse reports the subscription state after a toggle
type ToggleResponse struct {
	CourseID   uint `json:"course"`
	Subscribed bool `json:"subscribed"`
}

// Toggle handles POST /api/v1/subscriptions/:course_id
func (h *SubscriptionHandler) Toggle(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	if !permission.IsAuthenticated(user) {
		return response.Unauthorized(c, "User not authenticated")
	}

	courseID, ok := utils.ParamID(c, "course_id")
	if !ok {
		return response.BadRequest(c, "Invalid course ID")
	}

	added, err := h.service.Toggle(c.UserContext(), user.ID, courseID)
	if err != nil {
		if errors.Is(err, subscription.ErrCourseNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to update subscription")
	}

	msg := subscription.MsgRemoved
	if added {
		msg = subscription.MsgAdded
	}
	return response.SuccessWithMessage(c, msg, ToggleResponse{CourseID: courseID, Subscribed: added})
}
