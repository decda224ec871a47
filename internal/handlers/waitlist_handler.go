package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexus-academy/catalog-service/internal/services"
	"github.com/nexus-academy/catalog-service/internal/utils"
)

type WaitlistHandler struct {
	BaseHandler
	waitlistService services.WaitlistService
}

func NewWaitlistHandler(waitlistService services.WaitlistService, logger utils.Logger) *WaitlistHandler {
	return &WaitlistHandler{
		BaseHandler:     NewBaseHandler(logger),
		waitlistService: waitlistService,
	}
}

// JoinWaitlist registers an email for a gated program
// @Summary Join waitlist
// @Tags waitlist
// @Accept json
// @Produce json
// @Param request body services.WaitlistRequest true "Email and program slug"
// @Success 201 {object} SuccessResponse{data=models.WaitlistEntry}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Email already on waitlist for this program"
// @Failure 429 {object} map[string]string
// @Failure 503 {object} ErrorResponse
// @Router /waitlist [post]
func (h *WaitlistHandler) JoinWaitlist(c *gin.Context) {
	var req services.WaitlistRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Joining waitlist", "program_slug", req.ProgramSlug)

	entry, err := h.waitlistService.AddToWaitlist(c.Request.Context(), req.Email, req.ProgramSlug)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Message: "Added to waitlist",
		Data:    entry,
	})
}
