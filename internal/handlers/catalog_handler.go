package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nexus-academy/catalog-service/internal/access"
	"github.com/nexus-academy/catalog-service/internal/models"
	"github.com/nexus-academy/catalog-service/internal/repositories"
	"github.com/nexus-academy/catalog-service/internal/services"
	"github.com/nexus-academy/catalog-service/internal/utils"
)

// CatalogHandler serves the public program and lecture pages
type CatalogHandler struct {
	BaseHandler
	programService services.ProgramService
	lectureService services.LectureService
	homeService    services.HomeService
	userService    services.UserService
}

func NewCatalogHandler(
	programService services.ProgramService,
	lectureService services.LectureService,
	homeService services.HomeService,
	userService services.UserService,
	logger utils.Logger,
) *CatalogHandler {
	return &CatalogHandler{
		BaseHandler:    NewBaseHandler(logger),
		programService: programService,
		lectureService: lectureService,
		homeService:    homeService,
		userService:    userService,
	}
}

// ListPrograms lists programs, optionally by type
// @Summary List programs
// @Tags programs
// @Produce json
// @Param type query string false "member or master"
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 10, max: 100)"
// @Success 200 {object} services.ProgramListResponse
// @Failure 400 {object} ErrorResponse
// @Router /programs [get]
func (h *CatalogHandler) ListPrograms(c *gin.Context) {
	filters, ok := h.parseProgramFilters(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Listing programs", "type", c.Query("type"))

	resp, err := h.programService.List(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetProgram returns a program by slug
// @Summary Get program
// @Tags programs
// @Produce json
// @Param slug path string true "Program slug"
// @Success 200 {object} models.Program
// @Failure 404 {object} ErrorResponse
// @Router /programs/{slug} [get]
func (h *CatalogHandler) GetProgram(c *gin.Context) {
	slug := c.Param("slug")
	h.LogRequest(c, "Getting program", "slug", slug)

	program, err := h.programService.GetBySlug(c.Request.Context(), slug)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, program)
}

// GetProgramView returns the program detail page with access applied for the viewer
// @Summary Program detail view
// @Tags programs
// @Produce json
// @Param slug path string true "Program slug"
// @Param mode query string false "cohort or common"
// @Param cohort query string false "Cohort number"
// @Param category query string false "Category filter"
// @Success 200 {object} services.ProgramViewResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /programs/{slug}/view [get]
func (h *CatalogHandler) GetProgramView(c *gin.Context) {
	slug := c.Param("slug")
	h.LogRequest(c, "Getting program view", "slug", slug, "viewer_id", viewerID(c))

	req := access.ViewRequest{
		Mode:     access.ParseCourseMode(c.Query("mode")),
		Cohort:   c.Query("cohort"),
		Category: c.Query("category"),
	}

	view, err := h.lectureService.GetProgramView(c.Request.Context(), slug, viewerFromContext(c), req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetLecture returns a playable lecture with its neighbours
// @Summary Lecture detail
// @Tags lectures
// @Produce json
// @Param id path int true "Lecture ID"
// @Param cohort query string false "Cohort number"
// @Success 200 {object} services.LectureDetailResponse
// @Failure 403 {object} ErrorResponse "Lecture not playable, details carry the outcome"
// @Failure 404 {object} ErrorResponse
// @Router /lectures/{id} [get]
func (h *CatalogHandler) GetLecture(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Getting lecture", "lecture_id", id, "viewer_id", viewerID(c))

	detail, err := h.lectureService.GetLecture(c.Request.Context(), id, viewerFromContext(c), c.Query("cohort"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// GetHome returns the landing page aggregate
// @Summary Home page
// @Tags home
// @Produce json
// @Success 200 {object} services.HomeResponse
// @Router /home [get]
func (h *CatalogHandler) GetHome(c *gin.Context) {
	home, err := h.homeService.Get(c.Request.Context(), viewerID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, home)
}

// GetMe returns the authenticated viewer
// @Summary Current user
// @Tags users
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} ErrorResponse
// @Router /me [get]
func (h *CatalogHandler) GetMe(c *gin.Context) {
	id := viewerID(c)
	if id == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// ===== HELPER METHODS =====

func (h *CatalogHandler) parseProgramFilters(c *gin.Context) (repositories.ProgramFilters, bool) {
	limit, offset := parsePagination(c)
	filters := repositories.ProgramFilters{
		Limit:     limit,
		Offset:    offset,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if raw := strings.TrimSpace(c.Query("type")); raw != "" {
		programType := models.ProgramType(strings.ToLower(raw))
		if !programType.IsValid() {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid type",
				Details: "must be member or master",
			})
			return filters, false
		}
		filters.Type = &programType
	}

	return filters, true
}
