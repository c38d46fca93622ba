package payment

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-platform-api/model"
	"github.com/sahilchouksey/course-platform-api/services/payment"
	"github.com/sahilchouksey/course-platform-api/utils"
	"github.com/sahilchouksey/course-platform-api/utils/middleware"
	"github.com/sahilchouksey/course-platform-api/utils/permission"
	"github.com/sahilchouksey/course-platform-api/utils/response"
)

// PaymentHandler exposes the payment service over HTTP
type PaymentHandler struct {
	service *payment.Service
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(service *payment.Service) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// CreatePaymentRequest is the body of a payment request
type CreatePaymentRequest struct {
	PaidCourse    *uint  `json:"paid_course"`
	PaidLesson    *uint  `json:"paid_lesson"`
	PaymentMethod string `json:"payment_method"`
}

// writeError maps service errors onto the response envelope
func writeError(c *fiber.Ctx, err error) error {
	var verr *payment.ValidationError
	switch {
	case errors.As(err, &verr):
		return response.InvalidInput(c, verr.Message)
	case errors.Is(err, payment.ErrNotFound):
		return response.NotFound(c, "")
	case errors.Is(err, payment.ErrForbidden):
		return response.Forbidden(c, "")
	default:
		return response.InternalServerError(c, "Failed to process payment")
	}
}

// CreatePayment handles POST /api/v1/payments
func (h *PaymentHandler) CreatePayment(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	if !permission.CanCreatePayment(user) {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req CreatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	p, err := h.service.Create(c.UserContext(), user, payment.CreateInput{
		PaidCourseID: req.PaidCourse,
		PaidLessonID: req.PaidLesson,
		Method:       model.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		return writeError(c, err)
	}

	return response.Created(c, p)
}

// GetPayment handles GET /api/v1/payments/:id, reconciling pending transfers
func (h *PaymentHandler) GetPayment(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	if !permission.IsAuthenticated(user) {
		return response.Unauthorized(c, "User not authenticated")
	}

	id, ok := utils.ParamID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid payment ID")
	}

	p, err := h.service.Retrieve(c.UserContext(), id, user)
	if err != nil {
		return writeError(c, err)
	}

	return response.Success(c, p)
}

// ListPayments handles GET /api/v1/payments for moderators. Supports
// paid_course, paid_lesson, payment_method and ordering=[-]payment_date.
func (h *PaymentHandler) ListPayments(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	if !permission.IsAuthenticated(user) {
		return response.Unauthorized(c, "User not authenticated")
	}
	if !permission.CanListPayments(user) {
		return response.Forbidden(c, "Only moderators can list payments")
	}

	courseID, ok := utils.QueryID(c, "paid_course")
	if !ok {
		return response.BadRequest(c, "Invalid paid_course filter")
	}
	lessonID, ok := utils.QueryID(c, "paid_lesson")
	if !ok {
		return response.BadRequest(c, "Invalid paid_lesson filter")
	}
	method := model.PaymentMethod(c.Query("payment_method"))
	if method != "" && !method.Valid() {
		return response.BadRequest(c, "Invalid payment_method filter")
	}

	page, limit, _ := utils.PageParams(c)
	payments, total, err := h.service.List(c.UserContext(), payment.ListFilter{
		PaidCourseID: courseID,
		PaidLessonID: lessonID,
		Method:       method,
		Ordering:     c.Query("ordering"),
		Page:         page,
		Limit:        limit,
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch payments")
	}

	return response.Paginated(c, payments, response.CalculatePagination(page, limit, total))
}
