package handlers

import (
	"net/http"

	"helpinghands_backend/internal/auth"
	"helpinghands_backend/internal/middleware"
	"helpinghands_backend/internal/services"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	*BaseHandler
	resetService          services.ResetService
	reconciliationService services.ReconciliationService
	tokens                *auth.TokenManager
}

func NewAdminHandler(
	base *BaseHandler,
	resetService services.ResetService,
	reconciliationService services.ReconciliationService,
	tokens *auth.TokenManager,
) *AdminHandler {
	return &AdminHandler{
		BaseHandler:           base,
		resetService:          resetService,
		reconciliationService: reconciliationService,
		tokens:                tokens,
	}
}

func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(h.tokens), middleware.RoleMiddleware(auth.RoleAdmin))
	{
		admin.POST("/donations/reset", middleware.RequirePermission(auth.PermDonationsReset), h.ResetDonations)
		admin.GET("/reconciliation", middleware.RequirePermission(auth.PermReconciliationRead), h.ListReconciliation)
	}
}

// ResetDonations godoc
// @Summary Сбросить все пожертвования
// @Description Удаляет пожертвования и обнуляет агрегаты пользователей и запросов одной транзакцией.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.Response{data=dto.ResetSummary}
// @Failure 403 {object} apperrors.ErrorResponse
// @Router /admin/donations/reset [post]
func (h *AdminHandler) ResetDonations(c *gin.Context) {
	summary, err := h.resetService.ResetDonations(c.Request.Context(), h.GetDB(c))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.Success(c, http.StatusOK, "Donations reset", summary)
}

// ListReconciliation godoc
// @Summary Очередь сверки
// @Description Таски в статусах pending и dead.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Страница"
// @Param page_size query int false "Размер страницы"
// @Success 200 {object} dto.Response{data=dto.ReconciliationListResponse}
// @Router /admin/reconciliation [get]
func (h *AdminHandler) ListReconciliation(c *gin.Context) {
	page, pageSize := ParsePagination(c)

	list, err := h.reconciliationService.ListTasks(c.Request.Context(), h.GetDB(c), page, pageSize)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.Success(c, http.StatusOK, "", list)
}
