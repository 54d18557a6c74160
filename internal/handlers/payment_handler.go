package handlers

import (
	"io"
	"net/http"

	"helpinghands_backend/internal/auth"
	"helpinghands_backend/internal/logger"
	"helpinghands_backend/internal/middleware"
	"helpinghands_backend/internal/services"
	"helpinghands_backend/internal/services/dto"
	"helpinghands_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

const (
	HeaderWebhookSignature = "X-Razorpay-Signature"
	HeaderWebhookEventID   = "X-Razorpay-Event-Id"

	maxWebhookBody = 1 << 20
)

type PaymentHandler struct {
	*BaseHandler
	orderService   services.OrderService
	ledgerService  services.LedgerService
	paymentService services.PaymentService
	refundService  services.RefundService
	webhookService services.WebhookService
	tokens         *auth.TokenManager
}

func NewPaymentHandler(
	base *BaseHandler,
	orderService services.OrderService,
	ledgerService services.LedgerService,
	paymentService services.PaymentService,
	refundService services.RefundService,
	webhookService services.WebhookService,
	tokens *auth.TokenManager,
) *PaymentHandler {
	return &PaymentHandler{
		BaseHandler:    base,
		orderService:   orderService,
		ledgerService:  ledgerService,
		paymentService: paymentService,
		refundService:  refundService,
		webhookService: webhookService,
		tokens:         tokens,
	}
}

func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup) {
	payments := r.Group("/payments")
	{
		payments.POST("/create-order", middleware.OptionalAuth(h.tokens), h.CreateOrder)
		payments.POST("/verify", middleware.OptionalAuth(h.tokens), h.VerifyPayment)
		payments.POST("/failure", h.PaymentFailure)
		payments.POST("/webhook", h.Webhook)
	}

	// Админские маршруты регистрируются до /:paymentId, чтобы /refunds не попал в параметр
	admin := payments.Group("")
	admin.Use(middleware.AuthMiddleware(h.tokens), middleware.RoleMiddleware(auth.RoleAdmin))
	{
		admin.POST("/refund", middleware.RequirePermission(auth.PermPaymentsRefund), h.Refund)
		admin.GET("/refunds", middleware.RequirePermission(auth.PermRefundsRead), h.ListRefunds)
		admin.GET("/refunds/all", middleware.RequirePermission(auth.PermRefundsRead), h.ListRefunds)
	}

	protected := payments.Group("")
	protected.Use(middleware.AuthMiddleware(h.tokens))
	{
		protected.GET("/:paymentId", middleware.RequirePermission(auth.PermPaymentsRead), h.GetPayment)
	}
}

// CreateOrder godoc
// @Summary Создать заказ у процессора
// @Description Сумма в основной валюте (минимум 100). Токен необязателен: с ним пожертвование по вебхуку засчитывается пользователю.
// @Tags payments
// @Accept json
// @Produce json
// @Param order body dto.CreateOrderRequest true "Заказ"
// @Success 200 {object} dto.Response{data=dto.CreateOrderResponse}
// @Failure 400 {object} apperrors.ErrorResponse
// @Failure 502 {object} apperrors.ErrorResponse
// @Router /payments/create-order [post]
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), h.GetDB(c), &req, h.OptionalUserID(c))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	h.Success(c, http.StatusOK, "Order created", order)
}

// VerifyPayment godoc
// @Summary Подтвердить оплату и записать пожертвование
// @Description Проверяет подпись checkout и идемпотентно записывает пожертвование. Токен необязателен.
// @Tags payments
// @Accept json
// @Produce json
// @Param verification body dto.VerifyPaymentRequest true "Данные checkout"
// @Success 200 {object} dto.Response{data=dto.VerifyPaymentResponse}
// @Failure 400 {object} apperrors.ErrorResponse "Неверная подпись или данные"
// @Failure 500 {object} apperrors.ErrorResponse
// @Router /payments/verify [post]
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	var req dto.VerifyPaymentRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	resp, err := h.ledgerService.VerifyPayment(c.Request.Context(), h.GetDB(c), &req, h.OptionalUserID(c))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	h.Success(c, http.StatusOK, "Payment verified successfully", resp)
}

// PaymentFailure godoc
// @Summary Сообщить о неудачной оплате
// @Description Только журнал. Всегда 200 с success=false.
// @Tags payments
// @Accept json
// @Produce json
// @Param failure body dto.PaymentFailureRequest true "Ошибка checkout"
// @Success 200 {object} dto.Response
// @Router /payments/failure [post]
func (h *PaymentHandler) PaymentFailure(c *gin.Context) {
	var req dto.PaymentFailureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.CtxWarn(c.Request.Context(), "Unreadable payment failure report", "error", err.Error())
	}

	h.orderService.RecordFailure(c.Request.Context(), &req)
	c.JSON(http.StatusOK, dto.Response{Success: false, Message: "Payment failed"})
}

// Webhook godoc
// @Summary Вебхук процессора
// @Description Подпись считается по сырому телу запроса. 400 только при неверной подписи.
// @Tags payments
// @Accept json
// @Produce json
// @Param X-Razorpay-Signature header string true "HMAC-SHA256 тела"
// @Param X-Razorpay-Event-Id header string false "Id события"
// @Success 200 {object} dto.Response
// @Failure 400 {object} apperrors.ErrorResponse
// @Router /payments/webhook [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	ctx := c.Request.Context()

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		logger.CtxWithError(ctx, "Failed to read webhook body", err)
		apperrors.HandleError(c, apperrors.NewBadRequestError("Unreadable body"))
		return
	}

	err = h.webhookService.HandleEvent(ctx, h.GetDB(c), raw,
		c.GetHeader(HeaderWebhookSignature),
		c.GetHeader(HeaderWebhookEventID),
	)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.Response{Success: true})
}

// GetPayment godoc
// @Summary Платеж у процессора
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param paymentId path string true "Payment id"
// @Success 200 {object} dto.Response{data=payment.Payment}
// @Failure 404 {object} apperrors.ErrorResponse
// @Router /payments/{paymentId} [get]
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	p, err := h.paymentService.GetPayment(c.Request.Context(), c.Param("paymentId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.Success(c, http.StatusOK, "", p)
}

// Refund godoc
// @Summary Возврат платежа
// @Description Сначала возврат у процессора, затем откат пожертвования и агрегатов.
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param refund body dto.RefundRequest true "Возврат"
// @Success 200 {object} dto.Response{data=payment.Refund}
// @Failure 400 {object} apperrors.ErrorResponse
// @Failure 403 {object} apperrors.ErrorResponse
// @Router /payments/refund [post]
func (h *PaymentHandler) Refund(c *gin.Context) {
	var req dto.RefundRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	refund, err := h.refundService.Refund(c.Request.Context(), h.GetDB(c), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.Success(c, http.StatusOK, "Refund processed", refund)
}

// ListRefunds godoc
// @Summary Список возвратов
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param from query string false "RFC3339 или YYYY-MM-DD"
// @Param to query string false "RFC3339 или YYYY-MM-DD"
// @Param count query int false "По умолчанию 10, максимум 100"
// @Param skip query int false "Смещение"
// @Success 200 {object} dto.Response{data=dto.RefundListResponse}
// @Router /payments/refunds [get]
func (h *PaymentHandler) ListRefunds(c *gin.Context) {
	var q dto.ListRefundsQuery
	if !h.BindAndValidate_Query(c, &q) {
		return
	}

	refunds, err := h.paymentService.ListRefunds(c.Request.Context(), &q)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.Success(c, http.StatusOK, "", refunds)
}
