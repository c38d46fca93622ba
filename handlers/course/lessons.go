package course

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-platform-api/model"
	"github.com/sahilchouksey/course-platform-api/utils"
	"github.com/sahilchouksey/course-platform-api/utils/middleware"
	"github.com/sahilchouksey/course-platform-api/utils/permission"
	"github.com/sahilchouksey/course-platform-api/utils/response"
	"gorm.io/gorm"
)

func (h *CourseHandler) loadLesson(c *fiber.Ctx) (*model.Lesson, error) {
	id, ok := utils.ParamID(c, "id")
	if !ok {
		return nil, response.BadRequest(c, "Invalid lesson ID")
	}

	var lesson model.Lesson
	if err := h.db.First(&lesson, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NotFound(c, "Lesson not found")
		}
		return nil, response.InternalServerError(c, "Failed to fetch lesson")
	}
	return &lesson, nil
}

// courseExists checks an optional course reference
func (h *CourseHandler) courseExists(id *uint) bool {
	if id == nil {
		return true
	}
	var count int64
	h.db.Model(&model.Course{}).Where("id = ?", *id).Count(&count)
	return count > 0
}

// ListLessons handles GET /api/v1/lessons, optionally filtered by ?course=
func (h *CourseHandler) ListLessons(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	if !permission.CanListContent(user) {
		return response.Unauthorized(c, "User not authenticated")
	}

	courseID, ok := utils.QueryID(c, "course")
	if !ok {
		return response.BadRequest(c, "Invalid course filter")
	}

	page, limit, offset := utils.PageParams(c)
	query := h.db.Model(&model.Lesson{})
	if courseID != nil {
		query = query.Where("course_id = ?", *courseID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count lessons")
	}

	var lessons []model.Lesson
	if err := query.Order("id ASC").Limit(limit).Offset(offset).Find(&lessons).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch lessons")
	}

	return response.Paginated(c, lessons, response.CalculatePagination(page, limit, total))
}

// GetLesson handles GET /api/v1/lessons/:id
func (h *CourseHandler) GetLesson(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	if !permission.IsAuthenticated(user) {
		return response.Unauthorized(c, "User not authenticated")
	}

	lesson, sent := h.loadLesson(c)
	if lesson == nil {
		return sent
	}
	if !permission.CanRetrieveContent(user, lesson) {
		return response.Forbidden(c, "Access denied")
	}

	return response.Success(c, lesson)
}

// CreateLesson handles POST /api/v1/lessons
func (h *CourseHandler) CreateLesson(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	if !permission.IsAuthenticated(user) {
		return response.Unauthorized(c, "User not authenticated")
	}
	if !permission.CanCreateContent(user) {
		return response.Forbidden(c, "Moderators cannot create lessons")
	}

	req, sent := h.parseContent(c, true)
	if req == nil {
		return sent
	}
	if !h.courseExists(req.CourseID) {
		return response.NotFound(c, "Course not found")
	}

	lesson := model.Lesson{OwnerID: &user.ID, CourseID: req.CourseID}
	req.apply(&lesson.Name, &lesson.Description, &lesson.Preview, &lesson.VideoURL, &lesson.Price)

	if err := h.db.Create(&lesson).Error; err != nil {
		return response.InternalServerError(c, "Failed to create lesson")
	}

	return response.Created(c, lesson)
}

// UpdateLesson handles PUT /api/v1/lessons/:id
func (h *CourseHandler) UpdateLesson(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	if !permission.IsAuthenticated(user) {
		return response.Unauthorized(c, "User not authenticated")
	}

	lesson, sent := h.loadLesson(c)
	if lesson == nil {
		return sent
	}
	if !permission.CanUpdateContent(user, lesson) {
		return response.Forbidden(c, "Only the owner or a moderator can edit this lesson")
	}

	req, sent := h.parseContent(c, false)
	if req == nil {
		return sent
	}
	if !h.courseExists(req.CourseID) {
		return response.NotFound(c, "Course not found")
	}
	req.apply(&lesson.Name, &lesson.Description, &lesson.Preview, &lesson.VideoURL, &lesson.Price)
	if req.CourseID != nil {
		lesson.CourseID = req.CourseID
	}
	if lesson.Name == "" {
		return response.InvalidFields(c, map[string]string{"name": "name is required"})
	}

	columns := append([]string{"course_id"}, contentColumns...)
	if err := h.db.Model(lesson).Select(columns).Updates(lesson).Error; err != nil {
		return response.InternalServerError(c, "Failed to update lesson")
	}

	return response.SuccessWithMessage(c, "Lesson updated successfully", lesson)
}

// DeleteLesson handles DELETE /api/v1/lessons/:id
func (h *CourseHandler) DeleteLesson(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	if !permission.IsAuthenticated(user) {
		return response.Unauthorized(c, "User not authenticated")
	}

	lesson, sent := h.loadLesson(c)
	if lesson == nil {
		return sent
	}
	if !permission.CanDeleteContent(user, lesson) {
		return response.Forbidden(c, "Only the owner can delete this lesson")
	}

	if err := h.db.Delete(lesson).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete lesson")
	}

	return response.SuccessWithMessage(c, "Lesson deleted successfully", nil)
}

// UploadLessonPreview handles POST /api/v1/lessons/:id/preview
func (h *CourseHandler) UploadLessonPreview(c *fiber.Ctx) error {
	user, _ := middleware.GetUser(c)
	if !permission.IsAuthenticated(user) {
		return response.Unauthorized(c, "User not authenticated")
	}

	lesson, sent := h.loadLesson(c)
	if lesson == nil {
		return sent
	}
	if !permission.CanUpdateContent(user, lesson) {
		return response.Forbidden(c, "Only the owner or a moderator can edit this lesson")
	}

	url, sent := h.upload(c, "lesson", lesson.ID)
	if url == "" {
		return sent
	}

	if err := h.db.Model(lesson).Update("preview", url).Error; err != nil {
		return response.InternalServerError(c, "Failed to save preview")
	}
	return response.SuccessWithMessage(c, "Preview uploaded", lesson)
}
