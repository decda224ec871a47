package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nexus-academy/catalog-service/internal/models"
	"github.com/nexus-academy/catalog-service/internal/repositories"
	"github.com/nexus-academy/catalog-service/internal/services"
	"github.com/nexus-academy/catalog-service/internal/utils"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxCoverSize    = 5 << 20
)

// AdminHandler serves the admin CRUD and export endpoints. Routes are mounted
// behind RequireAdminMiddleware and every service call checks the actor again.
type AdminHandler struct {
	BaseHandler
	services services.ServiceManager
}

func NewAdminHandler(serviceManager services.ServiceManager, logger utils.Logger) *AdminHandler {
	return &AdminHandler{
		BaseHandler: NewBaseHandler(logger),
		services:    serviceManager,
	}
}

// ===== PROGRAMS =====

func (h *AdminHandler) CreateProgram(c *gin.Context) {
	var req services.CreateProgramRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Creating program", "slug", req.Slug)

	program, err := h.services.Program().Create(c.Request.Context(), &req, viewerFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, program)
}

func (h *AdminHandler) UpdateProgram(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.UpdateProgramRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Updating program", "program_id", id)

	program, err := h.services.Program().Update(c.Request.Context(), id, &req, viewerFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, program)
}

func (h *AdminHandler) DeleteProgram(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting program", "program_id", id)

	if err := h.services.Program().Delete(c.Request.Context(), id, viewerFromContext(c)); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) GetProgram(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	program, err := h.services.Program().GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, program)
}

// ===== LECTURES =====

func (h *AdminHandler) ListLectures(c *gin.Context) {
	limit, offset := parsePagination(c)
	filters := repositories.LectureFilters{
		Category:  c.Query("category"),
		Limit:     limit,
		Offset:    offset,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if raw := c.Query("program_id"); raw != "" {
		programID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid program_id",
				Details: err.Error(),
			})
			return
		}
		id := uint(programID)
		filters.ProgramID = &id
	}
	if raw := strings.TrimSpace(c.Query("level")); raw != "" {
		level := models.LectureLevel(strings.ToLower(raw))
		if !level.IsValid() {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid level",
			})
			return
		}
		filters.Level = &level
	}

	resp, err := h.services.Lecture().List(c.Request.Context(), filters, viewerFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) CreateLecture(c *gin.Context) {
	var req services.CreateLectureRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Creating lecture", "program_id", req.ProgramID)

	lecture, err := h.services.Lecture().Create(c.Request.Context(), &req, viewerFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, lecture)
}

func (h *AdminHandler) UpdateLecture(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.UpdateLectureRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Updating lecture", "lecture_id", id)

	lecture, err := h.services.Lecture().Update(c.Request.Context(), id, &req, viewerFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, lecture)
}

func (h *AdminHandler) DeleteLecture(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting lecture", "lecture_id", id)

	if err := h.services.Lecture().Delete(c.Request.Context(), id, viewerFromContext(c)); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ===== POSTS =====

func (h *AdminHandler) CreatePost(c *gin.Context) {
	var req services.CreatePostRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Creating post", "title", req.Title)

	post, err := h.services.Post().Create(c.Request.Context(), &req, viewerFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, post)
}

func (h *AdminHandler) UpdatePost(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.UpdatePostRequest
	if !h.bindJSON(c, &req) {
		return
	}

	post, err := h.services.Post().Update(c.Request.Context(), id, &req, viewerFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, post)
}

func (h *AdminHandler) DeletePost(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting post", "post_id", id)

	if err := h.services.Post().Delete(c.Request.Context(), id, viewerFromContext(c)); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// UploadPostCover stores the multipart "file" field as the post cover
func (h *AdminHandler) UploadPostCover(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCoverSize+1<<10)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Cover file is required",
			Details: err.Error(),
		})
		return
	}
	if fileHeader.Size > maxCoverSize {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Message: fmt.Sprintf("Cover must be at most %d MB", maxCoverSize>>20),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.LogError(c, err, "Failed to open uploaded cover")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Failed to read cover file",
		})
		return
	}
	defer file.Close()

	h.LogRequest(c, "Uploading post cover", "post_id", id, "filename", fileHeader.Filename, "size", fileHeader.Size)

	post, err := h.services.Post().UploadCover(c.Request.Context(), id, fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"), file, viewerFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, post)
}

// ===== REVIEWS =====

type setFeaturedRequest struct {
	Featured *bool `json:"featured" binding:"required"`
}

func (h *AdminHandler) SetReviewFeatured(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req setFeaturedRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.services.Review().SetFeatured(c.Request.Context(), id, *req.Featured, viewerFromContext(c)); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Review updated",
		Data:    gin.H{"id": id, "featured": *req.Featured},
	})
}

func (h *AdminHandler) DeleteReview(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting review", "review_id", id)

	if err := h.services.Review().Delete(c.Request.Context(), id, viewerFromContext(c)); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ===== USERS =====

func (h *AdminHandler) ListUsers(c *gin.Context) {
	limit, offset := parsePagination(c)
	filters := repositories.UserFilters{
		Query:  c.Query("q"),
		Limit:  limit,
		Offset: offset,
	}

	resp, err := h.services.User().List(c.Request.Context(), filters, viewerFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) GetUser(c *gin.Context) {
	userID := c.Param("id")
	h.LogRequest(c, "Getting user", "user_id", userID)

	user, err := h.services.User().GetByID(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *AdminHandler) UpdateUserMembership(c *gin.Context) {
	userID := c.Param("id")

	var req services.UpdateMembershipRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Updating user membership", "user_id", userID)

	user, err := h.services.User().UpdateMembership(c.Request.Context(), userID, &req, viewerFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	userID := c.Param("id")
	h.LogRequest(c, "Deleting user", "user_id", userID)

	if err := h.services.User().Delete(c.Request.Context(), userID, viewerFromContext(c)); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ===== WAITLIST =====

func (h *AdminHandler) ListWaitlist(c *gin.Context) {
	limit, offset := parsePagination(c)
	filters := repositories.WaitlistFilters{
		ProgramSlug: optionalQuery(c, "program_slug"),
		Limit:       limit,
		Offset:      offset,
	}

	resp, err := h.services.Waitlist().List(c.Request.Context(), filters, viewerFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) DeleteWaitlistEntry(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	if err := h.services.Waitlist().Delete(c.Request.Context(), id, viewerFromContext(c)); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ===== EXPORTS =====

func (h *AdminHandler) ExportWaitlist(c *gin.Context) {
	programSlug := optionalQuery(c, "program_slug")
	h.LogRequest(c, "Exporting waitlist", "program_slug", programSlug)

	data, err := h.services.Export().ExportWaitlist(c.Request.Context(), programSlug, viewerFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	name := "waitlist"
	if programSlug != nil {
		name += "-" + *programSlug
	}
	writeWorkbook(c, name, data)
}

func (h *AdminHandler) ExportUsers(c *gin.Context) {
	h.LogRequest(c, "Exporting users")

	data, err := h.services.Export().ExportUsers(c.Request.Context(), viewerFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	writeWorkbook(c, "users", data)
}

func writeWorkbook(c *gin.Context, name string, data []byte) {
	filename := fmt.Sprintf("%s-%s.xlsx", name, time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}
