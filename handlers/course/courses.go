package course

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-platform-api/model"
	"github.com/sahilchouksey/course-platform-api/services/storage"
	"github.com/sahilchouksey/course-platform-api/utils"
	"github.com/sahilchouksey/course-platform-api/utils/middleware"
	"github.com/sahilchouksey/course-platform-api/utils/permission"
	"github.com/sahilchouksey/course-platform-api/utils/response"
	"github.com/sahilchouksey/course-platform-api/utils/validation"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const maxPreviewSize = 5 << 20

var contentColumns = []string{"name", "description", "preview", "video_url", "price"}

// Subscriptions is what course handlers need from the subscription service
type Subscriptions interface {
	IsSubscribed(ctx context.Context, userID, courseID uint) (bool, error)
	NotifyCourseUpdated(course *model.Course)
}

// PreviewUploader stores preview images and returns their public URL
type PreviewUploader interface {
	UploadPreview(ctx context.Context, kind string, id uint, filename string, data io.Reader) (string, error)
}

// CourseHandler handles course and lesson requests
type CourseHandler struct {
	db            *gorm.DB
	validator     *validation.Validator
	subscriptions Subscriptions
	previews      PreviewUploader
	logger        *slog.Logger
}

// NewCourseHandler creates a new course handler. previews may be nil when
// object storage is not configured.
func NewCourseHandler(db *gorm.DB, subscriptions Subscriptions, previews PreviewUploader, logger *slog.Logger) *CourseHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CourseHandler{
		db:            db,
		validator:     validation.NewValidator(),
		subscriptions: subscriptions,
		previews:      previews,
		logger:        logger,
	}
}

// ContentRequest is the body for creating or updating a course or lesson.
// Absent fields are left unchanged on update.
type ContentRequest struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=150"`
	Description *string          `json:"description" validate:"omitempty,max=5000"`
	Preview     *string          `json:"preview" validate:"omitempty,max=512"`
	VideoURL    *string          `json:"video_url" validate:"omitempty,max=512,youtube"`
	Price       *decimal.Decimal `json:"price"`
	CourseID    *uint            `json:"course"`
}

// CourseDetailResponse is a course with its lessons and the caller's subscription state
type CourseDetailResponse struct {
	model.Course
	Lessons      []model.Lesson `json:"lessons"`
	LessonsCount int  `json:"lessons_count"`
	Subscription bool `json:"subscription"`
}

func (h *CourseHandler) parseContent(c *fiber.Ctx, creating bool) (*ContentRequest, error) {
	var req ContentRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return nil, response.InvalidFields(c, validation.FormatValidationErrors(err))
	}
	if creating && (req.Name == nil || validation.SanitizeString(*req.Name) == "") {
		return nil, response.InvalidFields(c, map[string]string{"name": "name is required"})
	}
	if req.Price != nil && req.Price.IsNegative() {
		return nil, response.InvalidFields(c, map[string]string{"price": "price must not be negative"})
	}
	return &req, nil
}

func (req *ContentRequest) apply(name, description, preview, videoURL *string, price *decimal.NullDecimal) {
	if req.Name != nil {
		*name = validation.SanitizeString(*req.Name)
	}
	if req.Description != nil {
		*description = validation.SanitizeString(*req.Description)
	}
	if req.Preview != nil {
		*preview = validation.SanitizeString(*req.Preview)
	}
	if req.VideoURL != nil {
		*videoURL = validation.SanitizeString(*req.VideoURL)
	}
	if req.Price != nil {
		*price = decimal.NewNullDecimal(*req.Price)
	}
}

func (h *CourseHandler) nameTaken(name string, exceptID uint) bool {
	var count int64
	h.db.Model(&model.Course{}).Where("name = ? AND id <> ?", name, exceptID).Count(&count)
	return count > 0
}

func (h *CourseHandler) loadCourse(c *fiber.Ctx) (*model.Course, error) {
	id, ok := utils.ParamID(c, "id")
	if !ok {
		return nil, response.BadRequest(c, "Invalid course ID")
	}

	var course model.Course
	if err := h.db.First(&course, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NotFound(c, "Course not found")
		}
		return nil, response.InternalServerError(c, "Failed to fetch course")
	}
	return &course, nil
}

// ListCourses handles GET /api/v1/courses
func (h *CourseHandler) ListCourses(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	if !permission.CanListContent(user) {
		return response.Unauthorized(c, "User not authenticated")
	}

	page, limit, offset := utils.PageParams(c)
	query := h.db.Model(&model.Course{})
	if search := c.Query("search"); search != "" {
		query = query.Where("LOWER(name) LIKE LOWER(?)", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count courses")
	}

	var courses []model.Course
	if err := query.Order("id ASC").Limit(limit).Offset(offset).Find(&courses).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch courses")
	}

	return response.Paginated(c, courses, response.CalculatePagination(page, limit, total))
}

// GetCourse handles GET /api/v1/courses/:id
func (h *CourseHandler) GetCourse(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	if !permission.IsAuthenticated(user) {
		return response.Unauthorized(c, "User not authenticated")
	}

	course, sent := h.loadCourse(c)
	if course == nil {
		return sent
	}
	if !permission.CanRetrieveContent(user, course) {
		return response.Forbidden(c, "Access denied")
	}

	lessons := []model.Lesson{}
	if err := h.db.Where("course_id = ?", course.ID).Order("id ASC").Find(&lessons).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch lessons")
	}

	res := CourseDetailResponse{Course: *course, Lessons: lessons, LessonsCount: len(lessons)}
	if h.subscriptions != nil {
		subscribed, err := h.subscriptions.IsSubscribed(c.UserContext(), user.ID, course.ID)
		if err != nil {
			return response.InternalServerError(c, "Failed to fetch subscription")
		}
		res.Subscription = subscribed
	}

	return response.Success(c, res)
}

// CreateCourse handles POST /api/v1/courses
func (h *CourseHandler) CreateCourse(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	if !permission.IsAuthenticated(user) {
		return response.Unauthorized(c, "User not authenticated")
	}
	if !permission.CanCreateContent(user) {
		return response.Forbidden(c, "Moderators cannot create courses")
	}

	req, sent := h.parseContent(c, true)
	if req == nil {
		return sent
	}

	course := model.Course{OwnerID: &user.ID}
	req.apply(&course.Name, &course.Description, &course.Preview, &course.VideoURL, &course.Price)

	if h.nameTaken(course.Name, 0) {
		return response.Conflict(c, "Course with this name already exists")
	}

	if err := h.db.Create(&course).Error; err != nil {
		return response.InternalServerError(c, "Failed to create course")
	}

	return response.Created(c, course)
}

// UpdateCourse handles PUT /api/v1/courses/:id and notifies subscribers
func (h *CourseHandler) UpdateCourse(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	if !permission.IsAuthenticated(user) {
		return response.Unauthorized(c, "User not authenticated")
	}

	course, sent := h.loadCourse(c)
	if course == nil {
		return sent
	}
	if !permission.CanUpdateContent(user, course) {
		return response.Forbidden(c, "Only the owner or a moderator can edit this course")
	}

	req, sent := h.parseContent(c, false)
	if req == nil {
		return sent
	}
	req.apply(&course.Name, &course.Description, &course.Preview, &course.VideoURL, &course.Price)

	if course.Name == "" {
		return response.InvalidFields(c, map[string]string{"name": "name is required"})
	}
	if h.nameTaken(course.Name, course.ID) {
		return response.Conflict(c, "Course with this name already exists")
	}

	// stripe_product_id is owned by the payment flow
	if err := h.db.Model(course).Select(contentColumns).Updates(course).Error; err != nil {
		return response.InternalServerError(c, "Failed to update course")
	}

	if h.subscriptions != nil {
		h.subscriptions.NotifyCourseUpdated(course)
	}

	return response.SuccessWithMessage(c, "Course updated successfully", course)
}

// DeleteCourse handles DELETE /api/v1/courses/:id
func (h *CourseHandler) DeleteCourse(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	if !permission.IsAuthenticated(user) {
		return response.Unauthorized(c, "User not authenticated")
	}

	course, sent := h.loadCourse(c)
	if course == nil {
		return sent
	}
	if !permission.CanDeleteContent(user, course) {
		return response.Forbidden(c, "Only the owner can delete this course")
	}

	if err := h.db.Delete(course).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete course")
	}

	return response.SuccessWithMessage(c, "Course deleted successfully", nil)
}

// UploadCoursePreview handles POST /api/v1/courses/:id/preview
func (h *CourseHandler) UploadCoursePreview(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	if !permission.IsAuthenticated(user) {
		return response.Unauthorized(c, "User not authenticated")
	}

	course, sent := h.loadCourse(c)
	if course == nil {
		return sent
	}
	if !permission.CanUpdateContent(user, course) {
		return response.Forbidden(c, "Only the owner or a moderator can edit this course")
	}

	url, sent := h.upload(c, "course", course.ID)
	if url == "" {
		return sent
	}

	if err := h.db.Model(course).Update("preview", url).Error; err != nil {
		return response.InternalServerError(c, "Failed to save preview")
	}
	return response.SuccessWithMessage(c, "Preview uploaded", course)
}

func (h *CourseHandler) upload(c *fiber.Ctx, kind string, id uint) (string, error) {
	if h.previews == nil {
		return "", response.ServiceUnavailable(c, "File storage is not configured")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return "", response.BadRequest(c, "Multipart field 'file' is required")
	}
	if fh.Size > maxPreviewSize {
		return "", response.BadRequest(c, "Preview must be at most 5 MB")
	}

	f, err := fh.Open()
	if err != nil {
		return "", response.BadRequest(c, "Failed to read upload")
	}
	defer f.Close()

	url, err := h.previews.UploadPreview(c.UserContext(), kind, id, fh.Filename, f)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedPreview) {
			return "", response.BadRequest(c, err.Error())
		}
		h.logger.Error("preview upload failed", "kind", kind, "id", id, "error", err)
		return "", response.InternalServerError(c, "Failed to upload preview")
	}
	return url, nil
}
