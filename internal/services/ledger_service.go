package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"helpinghands_backend/internal/cache"
	"helpinghands_backend/internal/events"
	"helpinghands_backend/internal/logger"
	"helpinghands_backend/internal/models"
	"helpinghands_backend/internal/payment"
	"helpinghands_backend/internal/repositories"
	"helpinghands_backend/internal/services/dto"
	"helpinghands_backend/pkg/apperrors"

	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DonationInput - данные пожертвования после нормализации. Amount в minor units.
type DonationInput struct {
	Amount        int64                `json:"amount"`
	Currency      payment.Currency     `json:"currency"`
	Cause         models.DonationCause `json:"cause"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod"`
	DonorName     string               `json:"donorName"`
	DonorEmail    string               `json:"donorEmail"`
	RequestID     *string              `json:"requestId,omitempty"`
	IsMonthly     bool                 `json:"isMonthly"`
	Notes         string               `json:"notes,omitempty"`
	PaymentInfo   datatypes.JSON       `json:"paymentInfo,omitempty"`
}

// VerifiedPayment - то, что checkout вернул клиенту
type VerifiedPayment struct {
	OrderID   string
	PaymentID string
	Signature string
}

// Reversal - итог перевода пожертвования в refunded/failed
type Reversal struct {
	Donation           *models.Donation
	Changed            bool // статус реально изменился
	AggregatesReversed bool
	Clamped            bool // агрегат пришлось прижать к нулю
}

type LedgerService interface {
	// VerifyPayment - синхронное подтверждение с клиента (/verify)
	VerifyPayment(ctx context.Context, db *gorm.DB, req *dto.VerifyPaymentRequest, actingUserID *string) (*dto.VerifyPaymentResponse, error)
	// RecordVerifiedDonation возвращает created=false, если платеж уже записан
	RecordVerifiedDonation(ctx context.Context, db *gorm.DB, p VerifiedPayment, in DonationInput, actingUserID *string) (*models.Donation, bool, error)
	// RecordCapturedPayment - запись по вебхуку payment.captured, когда /verify не пришел
	RecordCapturedPayment(ctx context.Context, db *gorm.DB, entity *payment.Payment) (*models.Donation, bool, error)
	// ReverseDonation: completed -> to с откатом агрегатов; pending -> failed без отката.
	// Для отсутствующего пожертвования возвращает repositories.ErrDonationNotFound.
	ReverseDonation(ctx context.Context, db *gorm.DB, paymentID string, to models.DonationStatus, refundID *string) (*Reversal, error)
	// ReplayRecord - повтор записи из очереди сверки (без постановки в очередь при ошибке)
	ReplayRecord(ctx context.Context, db *gorm.DB, task RecordTask) error
}

type ledgerService struct {
	donationRepo repositories.DonationRepository
	requestRepo  repositories.RequestRepository
	userRepo     repositories.UserRepository
	orderRepo    repositories.PaymentOrderRepository
	taskRepo     repositories.ReconciliationRepository
	queue        TaskQueue
	receipts     ReceiptService
	notify       notifier
	settings     PaymentSettings
	group        singleflight.Group
	now          func() time.Time
}

func NewLedgerService(
	donationRepo repositories.DonationRepository,
	requestRepo repositories.RequestRepository,
	userRepo repositories.UserRepository,
	orderRepo repositories.PaymentOrderRepository,
	taskRepo repositories.ReconciliationRepository,
	queue TaskQueue,
	receipts ReceiptService,
	publisher events.Publisher,
	paymentCache cache.Cache,
	settings PaymentSettings,
) LedgerService {
	return &ledgerService{
		donationRepo: donationRepo,
		requestRepo:  requestRepo,
		userRepo:     userRepo,
		orderRepo:    orderRepo,
		taskRepo:     taskRepo,
		queue:        queue,
		receipts:     receipts,
		notify:       newNotifier(publisher, paymentCache),
		settings:     settings.withDefaults(),
		now:          time.Now,
	}
}

// ---------------- Verify ----------------

func (s *ledgerService) VerifyPayment(ctx context.Context, db *gorm.DB, req *dto.VerifyPaymentRequest, actingUserID *string) (*dto.VerifyPaymentResponse, error) {
	// Подпись проверяется до любой другой работы
	if !payment.VerifyOrder(req.OrderID, req.PaymentID, req.Signature, s.settings.KeySecret) {
		logger.CtxWarn(ctx, "Payment signature mismatch", "order_id", req.OrderID, "payment_id", req.PaymentID)
		return nil, apperrors.ErrInvalidPaymentSignature
	}

	in, err := s.inputFromRequest(ctx, db, req)
	if err != nil {
		return nil, err
	}

	donation, created, err := s.RecordVerifiedDonation(ctx, db, VerifiedPayment{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	}, in, actingUserID)
	if err != nil {
		return nil, err
	}
	if !created {
		logger.CtxInfo(ctx, "Payment already recorded", logger.PaymentAttrs(donation.OrderID, donation.PaymentID, donation.TransactionID)...)
	}

	return &dto.VerifyPaymentResponse{Donation: dto.DonationSummary{
		ID:            donation.ID,
		TransactionID: donation.TransactionID,
		Amount:        donation.AmountMajor(),
		Currency:      donation.Currency,
		Status:        string(donation.Status),
		ReceiptSent:   donation.ReceiptSent,
	}}, nil
}

func (s *ledgerService) inputFromRequest(ctx context.Context, db *gorm.DB, req *dto.VerifyPaymentRequest) (DonationInput, error) {
	data := req.DonationData

	if err := s.settings.Limits.Validate(data.Amount); err != nil {
		return DonationInput{}, apperrors.NewValidationMessage("donation", err.Error())
	}
	currency, err := payment.NormalizeCurrency(data.Currency)
	if err != nil {
		return DonationInput{}, apperrors.ErrInvalidCurrency.WithDetails(err.Error())
	}
	if data.Currency == "" {
		currency = s.settings.DefaultCurrency
	}

	amount := payment.ToMinor(data.Amount)

	// Сумма заказа, выданного сервером, надежнее суммы из тела запроса
	if order, err := s.orderRepo.FindByOrderID(db, req.OrderID); err == nil {
		if order.Amount != amount {
			logger.CtxWarn(ctx, "Donation amount differs from issued order, using order amount",
				"order_id", req.OrderID,
				"claimed", amount,
				"order_amount", order.Amount,
			)
			amount = order.Amount
		}
		if order.Currency != "" {
			currency = payment.Currency(order.Currency)
		}
	} else if !errors.Is(err, repositories.ErrPaymentOrderNotFound) {
		logger.CtxWarn(ctx, "Failed to load payment order", "order_id", req.OrderID, "error", err.Error())
	}

	var info datatypes.JSON
	if len(data.PaymentInfo) > 0 && string(data.PaymentInfo) != "null" {
		info = datatypes.JSON(data.PaymentInfo)
	}

	return DonationInput{
		Amount:        amount,
		Currency:      currency,
		Cause:         models.DonationCause(data.Cause),
		PaymentMethod: models.PaymentMethod(data.PaymentMethod),
		DonorName:     strings.TrimSpace(data.DonorName),
		DonorEmail:    strings.TrimSpace(data.DonorEmail),
		RequestID:     nonEmpty(data.RequestID),
		IsMonthly:     data.IsMonthly,
		Notes:         data.Notes,
		PaymentInfo:   info,
	}, nil
}

// ---------------- Record ----------------

func (s *ledgerService) RecordVerifiedDonation(ctx context.Context, db *gorm.DB, p VerifiedPayment, in DonationInput, actingUserID *string) (*models.Donation, bool, error) {
	if !payment.VerifyOrder(p.OrderID, p.PaymentID, p.Signature, s.settings.KeySecret) {
		return nil, false, apperrors.ErrInvalidPaymentSignature
	}
	return s.record(ctx, db, RecordTask{
		OrderID:   p.OrderID,
		PaymentID: p.PaymentID,
		Signature: p.Signature,
		UserID:    nonEmpty(actingUserID),
		Source:    models.DonationSourceVerify,
		Input:     in,
	}, true)
}

func (s *ledgerService) RecordCapturedPayment(ctx context.Context, db *gorm.DB, entity *payment.Payment) (*models.Donation, bool, error) {
	if entity == nil || entity.ID == "" {
		return nil, false, apperrors.ErrPaymentIDRequired
	}

	notes := payment.Notes{}
	// Пользователя берем только из заказа: notes приходят от клиента
	var userID *string
	if order, err := s.orderRepo.FindByOrderID(db, entity.OrderID); err == nil {
		if len(order.Notes) > 0 {
			if err := json.Unmarshal(order.Notes, &notes); err != nil {
				logger.CtxWarn(ctx, "Failed to decode order notes", "order_id", entity.OrderID, "error", err.Error())
			}
		}
		if order.Amount != entity.Amount {
			logger.CtxWarn(ctx, "Captured amount differs from issued order",
				"order_id", entity.OrderID,
				"captured", entity.Amount,
				"order_amount", order.Amount,
			)
		}
		userID = nonEmpty(order.UserID)
	} else if !errors.Is(err, repositories.ErrPaymentOrderNotFound) {
		return nil, false, apperrors.DatabaseError(err)
	}
	for k, v := range entity.Notes {
		if _, ok := notes[k]; !ok {
			notes[k] = v
		}
	}

	// Процессор - источник истины для суммы захваченного платежа
	in := DonationInput{
		Amount:        entity.Amount,
		Currency:      payment.Currency(strings.ToUpper(entity.Currency)),
		Cause:         models.DonationCause(notes["cause"]),
		PaymentMethod: paymentMethodFromGateway(entity.Method),
		DonorName:     notes["donorName"],
		DonorEmail:    notes["donorEmail"],
		RequestID:     nonEmpty(strPtr(notes["requestId"])),
		IsMonthly:     notes["isMonthly"] == "true",
		Notes:         notes["notes"],
	}
	if !in.Cause.Valid() {
		in.Cause = models.CauseGeneral
	}
	if in.DonorName == "" {
		in.DonorName = "Anonymous"
	}
	if in.DonorEmail == "" {
		in.DonorEmail = entity.Email
	}
	if in.Currency == "" {
		in.Currency = s.settings.DefaultCurrency
	}

	return s.record(ctx, db, RecordTask{
		OrderID:   entity.OrderID,
		PaymentID: entity.ID,
		UserID:    userID,
		Source:    models.DonationSourceWebhook,
		Input:     in,
	}, true)
}

func (s *ledgerService) ReplayRecord(ctx context.Context, db *gorm.DB, task RecordTask) error {
	_, _, err := s.record(ctx, db, task, false)
	return err
}

func (s *ledgerService) validateInput(in DonationInput) error {
	details := map[string]string{}
	if in.Amount < s.settings.Limits.MinMinor() {
		details["amount"] = fmt.Sprintf("Minimum amount is ₹%s", s.settings.Limits.Min.String())
	} else if in.Amount > payment.ToMinor(s.settings.Limits.Max) {
		details["amount"] = fmt.Sprintf("Maximum amount is ₹%s", s.settings.Limits.Max.String())
	}
	if !in.Currency.Valid() {
		details["currency"] = "Must be one of: INR, USD"
	}
	if !in.Cause.Valid() {
		details["cause"] = "Invalid donation cause"
	}
	if !in.PaymentMethod.Valid() {
		details["paymentMethod"] = "Invalid payment method"
	}
	if utf8.RuneCountInString(in.Notes) > models.MaxDonationNotesLength {
		details["notes"] = fmt.Sprintf("Must be at most %d characters long", models.MaxDonationNotesLength)
	}
	if len(details) > 0 {
		return apperrors.ValidationError(details)
	}
	return nil
}

// record - общий путь записи. Одновременные вызовы для одного payment id
// внутри процесса схлопываются; между процессами решает уникальный индекс.
func (s *ledgerService) record(ctx context.Context, db *gorm.DB, task RecordTask, enqueueOnFailure bool) (*models.Donation, bool, error) {
	if err := s.validateInput(task.Input); err != nil {
		return nil, false, err
	}

	type outcome struct {
		donation *models.Donation
		created  bool
	}

	v, err, shared := s.group.Do(task.PaymentID, func() (interface{}, error) {
		donation, created, err := s.write(ctx, db, task)
		if err != nil {
			return nil, err
		}
		return outcome{donation: donation, created: created}, nil
	})
	if err != nil {
		if apperrors.IsClientError(err) {
			return nil, false, err
		}
		logger.CtxWithError(ctx, "Failed to record donation", err, logger.PaymentAttrs(task.OrderID, task.PaymentID, "")...)
		if enqueueOnFailure && !shared {
			_ = s.queue.Enqueue(ctx, db, models.TaskRecordDonation, task.PaymentID, task, err)
		}
		return nil, false, apperrors.InternalError(err)
	}

	out := v.(outcome)
	if shared {
		// Второй конкурентный вызов получает ту же запись, но не считается созданием
		return out.donation, false, nil
	}
	if out.created {
		s.afterCommit(ctx, db, out.donation)
	}
	return out.donation, out.created, nil
}

func (s *ledgerService) write(ctx context.Context, db *gorm.DB, task RecordTask) (*models.Donation, bool, error) {
	in := task.Input

	txnID, err := payment.NewTransactionID(s.now())
	if err != nil {
		return nil, false, err
	}

	donation := &models.Donation{
		UserID:        task.UserID,
		RequestID:     in.RequestID,
		Amount:        in.Amount,
		Currency:      string(in.Currency),
		Cause:         in.Cause,
		PaymentMethod: in.PaymentMethod,
		PaymentInfo:   in.PaymentInfo,
		TransactionID: txnID,
		OrderID:       task.OrderID,
		PaymentID:     task.PaymentID,
		Signature:     task.Signature,
		Status:        models.DonationStatusCompleted,
		Source:        task.Source,
		IsMonthly:     in.IsMonthly,
		DonorName:     in.DonorName,
		DonorEmail:    in.DonorEmail,
		Notes:         in.Notes,
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, false, tx.Error
	}
	defer tx.Rollback()

	// Платеж уже подтвержден процессором: неизвестный request не повод терять деньги
	if donation.RequestID != nil {
		if _, err := s.requestRepo.FindByID(tx, *donation.RequestID); err != nil {
			if !errors.Is(err, repositories.ErrRequestNotFound) {
				return nil, false, err
			}
			logger.CtxWarn(ctx, "Request not found, donation recorded without request, flagged for reconciliation",
				"request_id", *donation.RequestID,
				"payment_id", donation.PaymentID,
			)
			donation.UnmatchedRequestID = donation.RequestID
			donation.RequestID = nil
		}
	}

	// Возврат мог прийти раньше записи
	reversal, err := s.priorRefund(tx, task.PaymentID)
	if err != nil {
		return nil, false, err
	}
	if reversal != nil {
		donation.Status = models.DonationStatusRefunded
		donation.RefundID = reversal.RefundID
		logger.CtxWarn(ctx, "Payment refunded before it was recorded, aggregates untouched",
			"payment_id", donation.PaymentID,
			"refund_id", deref(reversal.RefundID),
		)
	}

	if donation.UserID != nil {
		if _, err := s.userRepo.FindByID(tx, *donation.UserID); err != nil {
			if !errors.Is(err, repositories.ErrUserNotFound) {
				return nil, false, err
			}
			logger.CtxWarn(ctx, "Acting user not found, donation recorded without user",
				"user_id", *donation.UserID,
				"payment_id", donation.PaymentID,
			)
			donation.UserID = nil
		}
	}

	inserted, err := s.donationRepo.InsertIfAbsent(tx, donation)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		tx.Rollback()
		existing, err := s.donationRepo.FindByPaymentID(db.WithContext(ctx), task.PaymentID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	counted := donation.Status == models.DonationStatusCompleted

	// ErrRequestNotFound здесь - request удален посреди транзакции; повтор снимет связь
	if counted && donation.RequestID != nil {
		if err := s.requestRepo.AddDonation(tx, *donation.RequestID, donation.Amount); err != nil {
			return nil, false, err
		}
	}

	if counted && donation.UserID != nil {
		if err := s.userRepo.AddDonation(tx, *donation.UserID, donation.Amount); err != nil {
			return nil, false, err
		}
	}

	if task.OrderID != "" {
		if err := s.orderRepo.MarkPaid(tx, task.OrderID); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, false, err
	}

	logger.CtxInfo(ctx, "Donation recorded",
		append(logger.PaymentAttrs(donation.OrderID, donation.PaymentID, donation.TransactionID),
			"amount", donation.Amount,
			"source", donation.Source,
			"status", donation.Status,
			"request_id", deref(donation.RequestID),
		)...,
	)
	return donation, true, nil
}

func (s *ledgerService) afterCommit(ctx context.Context, db *gorm.DB, donation *models.Donation) {
	if donation.Status != models.DonationStatusCompleted {
		s.notify.donationChanged(ctx, events.DonationRefunded, donation)
		return
	}
	s.notify.donationChanged(ctx, events.DonationCompleted, donation)
	if s.receipts != nil && donation.DonorEmail != "" {
		s.receipts.Dispatch(ctx, db, donation)
	}
}

// priorRefund - возврат, записанный в очередь сверки до появления пожертвования.
// Статус таска не важен: done значит только, что откатывать было нечего.
func (s *ledgerService) priorRefund(db *gorm.DB, paymentID string) (*ReversalTask, error) {
	if s.taskRepo == nil {
		return nil, nil
	}
	task, err := s.taskRepo.FindByKind(db, models.TaskRefund, paymentID)
	if errors.Is(err, repositories.ErrReconciliationTaskNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var payload ReversalTask
	if len(task.Payload) > 0 {
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			logger.WorkerLog("ledger", "decode_refund_task", err, "payment_id", paymentID)
		}
	}
	return &payload, nil
}

// ---------------- Reverse ----------------

func (s *ledgerService) ReverseDonation(ctx context.Context, db *gorm.DB, paymentID string, to models.DonationStatus, refundID *string) (*Reversal, error) {
	if to != models.DonationStatusRefunded && to != models.DonationStatusFailed {
		return nil, apperrors.ErrInvalidStatus("donation", fmt.Sprintf("cannot reverse donation to %s", to))
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	donation, err := s.donationRepo.FindByPaymentID(tx, paymentID)
	if err != nil {
		return nil, err
	}

	result := &Reversal{Donation: donation}

	// CAS: сначала completed -> to (с откатом агрегатов), затем pending -> failed
	rows, err := s.donationRepo.TransitionStatus(tx, paymentID, []models.DonationStatus{models.DonationStatusCompleted}, to, refundID)
	if err != nil {
		return nil, err
	}
	if rows == 1 {
		result.Changed = true
		result.AggregatesReversed = true

		if donation.RequestID != nil {
			clamped, err := s.requestRepo.RemoveDonation(tx, *donation.RequestID, donation.Amount)
			switch {
			case errors.Is(err, repositories.ErrRequestNotFound):
				logger.CtxWarn(ctx, "Request of reversed donation not found", "request_id", *donation.RequestID, "payment_id", paymentID)
			case err != nil:
				return nil, err
			case clamped:
				result.Clamped = true
				logger.CtxWarn(ctx, "Request totals clamped at zero, flagged for reconciliation",
					"request_id", *donation.RequestID,
					"payment_id", paymentID,
					"amount", donation.Amount,
				)
			}
		}

		if donation.UserID != nil {
			clamped, err := s.userRepo.RemoveDonation(tx, *donation.UserID, donation.Amount)
			switch {
			case errors.Is(err, repositories.ErrUserNotFound):
				logger.CtxWarn(ctx, "User of reversed donation not found", "user_id", *donation.UserID, "payment_id", paymentID)
			case err != nil:
				return nil, err
			case clamped:
				result.Clamped = true
				logger.CtxWarn(ctx, "User totals clamped at zero, flagged for reconciliation",
					"user_id", *donation.UserID,
					"payment_id", paymentID,
				)
			}
		}
	} else if to == models.DonationStatusFailed {
		rows, err = s.donationRepo.TransitionStatus(tx, paymentID, []models.DonationStatus{models.DonationStatusPending}, to, nil)
		if err != nil {
			return nil, err
		}
		result.Changed = rows == 1
	}

	if !result.Changed {
		logger.CtxInfo(ctx, "Donation status unchanged",
			"payment_id", paymentID,
			"status", donation.Status,
			"target", to,
		)
		return result, nil
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	donation.Status = to
	if refundID != nil && to == models.DonationStatusRefunded {
		donation.RefundID = refundID
	}

	eventType := events.DonationRefunded
	if to == models.DonationStatusFailed {
		eventType = events.DonationFailed
	}
	s.notify.donationChanged(ctx, eventType, donation)

	logger.CtxInfo(ctx, "Donation reversed",
		append(logger.PaymentAttrs(donation.OrderID, donation.PaymentID, donation.TransactionID),
			"status", to,
			"aggregates_reversed", result.AggregatesReversed,
			"clamped", result.Clamped,
		)...,
	)
	return result, nil
}

// ---------------- helpers ----------------

// paymentMethodFromGateway сводит методы процессора к нашим четырем
func paymentMethodFromGateway(method string) models.PaymentMethod {
	switch strings.ToLower(method) {
	case "upi":
		return models.PaymentMethodUPI
	case "netbanking":
		return models.PaymentMethodNetbanking
	case "wallet", "paylater":
		return models.PaymentMethodWallet
	default:
		return models.PaymentMethodCard
	}
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func strPtr(s string) *string { return &s }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
