package handlers

import (
	"net/http"

	"helpinghands_backend/internal/services"

	"github.com/gin-gonic/gin"
)

type RequestHandler struct {
	*BaseHandler
	requestService services.RequestService
}

func NewRequestHandler(base *BaseHandler, requestService services.RequestService) *RequestHandler {
	return &RequestHandler{BaseHandler: base, requestService: requestService}
}

func (h *RequestHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/requests/:requestId/progress", h.GetProgress)
}

// GetProgress godoc
// @Summary Прогресс сбора
// @Tags requests
// @Produce json
// @Param requestId path string true "ID запроса"
// @Success 200 {object} dto.Response{data=dto.RequestProgressResponse}
// @Failure 404 {object} apperrors.ErrorResponse
// @Router /requests/{requestId}/progress [get]
func (h *RequestHandler) GetProgress(c *gin.Context) {
	progress, err := h.requestService.GetProgress(c.Request.Context(), h.GetDB(c), c.Param("requestId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.Success(c, http.StatusOK, "", progress)
}
