package payment

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FakeGateway - процессор в памяти для локального запуска (razorpay.fake: true) и тестов.
type FakeGateway struct {
	mu       sync.Mutex
	keyID    string
	secret   string
	orders   map[string]*Order
	payments map[string]*Payment
	refunds  []Refund
	failures map[string]error
	delay    time.Duration
	calls    map[string]int
}

func NewFakeGateway(keyID, secret string) *FakeGateway {
	return &FakeGateway{
		keyID:    keyID,
		secret:   secret,
		orders:   map[string]*Order{},
		payments: map[string]*Payment{},
		failures: map[string]error{},
		calls:    map[string]int{},
	}
}

func fakeID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}

func (g *FakeGateway) KeyID() string { return g.keyID }

// FailNext заставляет следующий вызов op ("orders.create", "payments.fetch",
// "payments.refund", "refunds.all") вернуть err.
func (g *FakeGateway) FailNext(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[op] = err
}

// SetDelay имитирует медленный процессор
func (g *FakeGateway) SetDelay(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delay = d
}

// Calls - сколько раз вызывалась операция
func (g *FakeGateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *FakeGateway) enter(ctx context.Context, op string) error {
	g.mu.Lock()
	g.calls[op]++
	delay := g.delay
	failure := g.failures[op]
	delete(g.failures, op)
	g.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return &GatewayError{Op: op, Err: ctx.Err()}
		}
	}
	if failure != nil {
		if _, ok := failure.(*GatewayError); ok {
			return failure
		}
		return &GatewayError{Op: op, Err: failure}
	}
	return nil
}

func (g *FakeGateway) CreateOrder(ctx context.Context, params OrderParams) (*Order, error) {
	if err := g.enter(ctx, "orders.create"); err != nil {
		return nil, err
	}
	order := &Order{
		ID:        fakeID("order"),
		Entity:    "order",
		Amount:    params.Amount,
		AmountDue: params.Amount,
		Currency:  string(params.Currency),
		Receipt:   params.Receipt,
		Status:    "created",
		Notes:     params.Notes,
		CreatedAt: time.Now().Unix(),
	}

	g.mu.Lock()
	g.orders[order.ID] = order
	g.mu.Unlock()

	cp := *order
	return &cp, nil
}

// Capture имитирует успешную оплату заказа клиентом и возвращает
// payment id и подпись, которую checkout передал бы на /verify.
func (g *FakeGateway) Capture(orderID, method, email string) (paymentID, signature string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := &Payment{
		ID:        fakeID("pay"),
		Entity:    "payment",
		Status:    "captured",
		OrderID:   orderID,
		Method:    method,
		Email:     email,
		Captured:  true,
		Notes:     Notes{},
		CreatedAt: time.Now().Unix(),
	}
	if order, ok := g.orders[orderID]; ok {
		p.Amount = order.Amount
		p.Currency = order.Currency
		p.Notes = order.Notes
		order.Status = "paid"
		order.AmountPaid = order.Amount
		order.AmountDue = 0
	}
	g.payments[p.ID] = p
	return p.ID, Sign(OrderMessage(orderID, p.ID), g.secret)
}

// PutPayment регистрирует платеж напрямую (тесты вебхуков)
func (g *FakeGateway) PutPayment(p Payment) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := p
	g.payments[p.ID] = &cp
}

func (g *FakeGateway) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if err := g.enter(ctx, "payments.fetch"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.payments[paymentID]
	if !ok {
		return nil, &GatewayError{
			Op:         "payments.fetch",
			StatusCode: http.StatusBadRequest,
			Detail:     ErrorDetail{Code: "BAD_REQUEST_ERROR", Description: "The id provided does not exist"},
		}
	}
	cp := *p
	return &cp, nil
}

func (g *FakeGateway) CreateRefund(ctx context.Context, paymentID string, params RefundParams) (*Refund, error) {
	if err := g.enter(ctx, "payments.refund"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.payments[paymentID]
	if !ok {
		return nil, &GatewayError{
			Op:         "payments.refund",
			StatusCode: http.StatusBadRequest,
			Detail:     ErrorDetail{Code: "BAD_REQUEST_ERROR", Description: "The id provided does not exist", Field: "payment_id"},
		}
	}

	remaining := p.Amount - p.AmountRefunded
	amount := params.Amount
	if amount == 0 {
		amount = remaining
	}
	if remaining <= 0 || amount > remaining {
		return nil, &GatewayError{
			Op:         "payments.refund",
			StatusCode: http.StatusBadRequest,
			Detail: ErrorDetail{
				Code:        "BAD_REQUEST_ERROR",
				Description: "The payment has been fully refunded already",
				Reason:      "payment_fully_refunded",
			},
		}
	}

	p.AmountRefunded += amount
	if p.AmountRefunded == p.Amount {
		p.Status = "refunded"
		p.RefundStatus = "full"
	} else {
		p.RefundStatus = "partial"
	}

	refund := Refund{
		ID:        fakeID("rfnd"),
		Entity:    "refund",
		Amount:    amount,
		Currency:  p.Currency,
		PaymentID: paymentID,
		Status:    "processed",
		Speed:     "normal",
		Notes:     params.Notes,
		CreatedAt: time.Now().Unix(),
	}
	g.refunds = append(g.refunds, refund)
	return &refund, nil
}

func (g *FakeGateway) ListRefunds(ctx context.Context, params ListRefundsParams) (*RefundCollection, error) {
	if err := g.enter(ctx, "refunds.all"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	var filtered []Refund
	for _, r := range g.refunds {
		if params.From > 0 && r.CreatedAt < params.From {
			continue
		}
		if params.To > 0 && r.CreatedAt > params.To {
			continue
		}
		filtered = append(filtered, r)
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].CreatedAt > filtered[j].CreatedAt })

	if params.Skip >= len(filtered) {
		filtered = nil
	} else {
		filtered = filtered[params.Skip:]
	}
	count := params.Count
	if count <= 0 {
		count = 10
	}
	if len(filtered) > count {
		filtered = filtered[:count]
	}
	if filtered == nil {
		filtered = []Refund{}
	}
	return &RefundCollection{Entity: "collection", Count: len(filtered), Items: filtered}, nil
}
