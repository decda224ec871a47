package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nexus-academy/catalog-service/internal/repositories"
	"github.com/nexus-academy/catalog-service/internal/services"
	"github.com/nexus-academy/catalog-service/internal/utils"
)

// ContentHandler serves insights (posts) and reviews
type ContentHandler struct {
	BaseHandler
	postService   services.PostService
	reviewService services.ReviewService
}

func NewContentHandler(postService services.PostService, reviewService services.ReviewService, logger utils.Logger) *ContentHandler {
	return &ContentHandler{
		BaseHandler:   NewBaseHandler(logger),
		postService:   postService,
		reviewService: reviewService,
	}
}

// ListPosts lists insights newest first
// @Summary List insights
// @Tags insights
// @Produce json
// @Param q query string false "Search title and excerpt"
// @Param category query string false "Category"
// @Success 200 {object} services.PostListResponse
// @Router /insights [get]
func (h *ContentHandler) ListPosts(c *gin.Context) {
	limit, offset := parsePagination(c)
	filters := repositories.PostFilters{
		Category: c.Query("category"),
		Query:    c.Query("q"),
		Limit:    limit,
		Offset:   offset,
	}

	resp, err := h.postService.List(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetPost returns an insight by slug
// @Summary Get insight
// @Tags insights
// @Produce json
// @Param slug path string true "Post slug"
// @Success 200 {object} models.Post
// @Failure 404 {object} ErrorResponse
// @Router /insights/{slug} [get]
func (h *ContentHandler) GetPost(c *gin.Context) {
	post, err := h.postService.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, post)
}

// ListReviews lists reviews with like state for the viewer
// @Summary List reviews
// @Tags reviews
// @Produce json
// @Param featured query bool false "Only featured reviews"
// @Param program_slug query string false "Program"
// @Success 200 {object} services.ReviewListResponse
// @Router /reviews [get]
func (h *ContentHandler) ListReviews(c *gin.Context) {
	limit, offset := parsePagination(c)
	filters := repositories.ReviewFilters{
		ProgramSlug: optionalQuery(c, "program_slug"),
		Limit:       limit,
		Offset:      offset,
		SortBy:      c.Query("sort_by"),
		SortOrder:   c.Query("sort_order"),
	}
	if raw := c.Query("featured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid featured",
				Details: err.Error(),
			})
			return
		}
		filters.Featured = &featured
	}

	resp, err := h.reviewService.List(c.Request.Context(), filters, viewerID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CreateReview posts a review as the authenticated viewer
// @Summary Create review
// @Tags reviews
// @Accept json
// @Produce json
// @Param review body services.CreateReviewRequest true "Review"
// @Success 201 {object} models.Review
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /reviews [post]
func (h *ContentHandler) CreateReview(c *gin.Context) {
	var req services.CreateReviewRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Creating review", "user_id", viewerID(c))

	review, err := h.reviewService.Create(c.Request.Context(), &req, viewerFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, review)
}

// ToggleReviewLike likes or unlikes a review
// @Summary Toggle review like
// @Tags reviews
// @Produce json
// @Param id path int true "Review ID"
// @Success 200 {object} services.LikeResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /reviews/{id}/like [post]
func (h *ContentHandler) ToggleReviewLike(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	resp, err := h.reviewService.ToggleLike(c.Request.Context(), id, viewerFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
