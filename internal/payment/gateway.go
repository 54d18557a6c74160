package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
)

// Gateway - внешний платежный процессор. Создается один раз на процесс
// с учетными данными из конфигурации и подменяется в тестах.
type Gateway interface {
	CreateOrder(ctx context.Context, params OrderParams) (*Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*Payment, error)
	CreateRefund(ctx context.Context, paymentID string, params RefundParams) (*Refund, error)
	ListRefunds(ctx context.Context, params ListRefundsParams) (*RefundCollection, error)
	// KeyID - публичный ключ для checkout на клиенте. Секрет наружу не отдается.
	KeyID() string
}

// Notes - заметки процессора. Пустые заметки приходят как [], а не {}.
type Notes map[string]string

func (n *Notes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("[]")) {
		*n = Notes{}
		return nil
	}
	raw := map[string]interface{}{}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	out := make(Notes, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	*n = out
	return nil
}

type OrderParams struct {
	Amount   int64    `json:"amount"` // minor units
	Currency Currency `json:"currency"`
	Receipt  string   `json:"receipt"`
	Notes    Notes    `json:"notes"`
}

type Order struct {
	ID         string `json:"id"`
	Entity     string `json:"entity"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	AmountDue  int64  `json:"amount_due"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"`
	Notes      Notes  `json:"notes"`
	CreatedAt  int64  `json:"created_at"`
}

type Payment struct {
	ID               string `json:"id"`
	Entity           string `json:"entity"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	OrderID          string `json:"order_id"`
	Method           string `json:"method"`
	Email            string `json:"email"`
	Contact          string `json:"contact"`
	Captured         bool   `json:"captured"`
	AmountRefunded   int64  `json:"amount_refunded"`
	RefundStatus     string `json:"refund_status,omitempty"`
	ErrorCode        string `json:"error_code,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
	Notes            Notes  `json:"notes"`
	CreatedAt        int64  `json:"created_at"`
}

type RefundParams struct {
	Amount int64 `json:"amount,omitempty"` // minor units; 0 = полный возврат
	Notes  Notes `json:"notes,omitempty"`
}

type Refund struct {
	ID        string `json:"id"`
	Entity    string `json:"entity"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	PaymentID string `json:"payment_id"`
	Receipt   string `json:"receipt,omitempty"`
	Status    string `json:"status"`
	Speed     string `json:"speed_processed,omitempty"`
	Notes     Notes  `json:"notes"`
	CreatedAt int64  `json:"created_at"`
}

type ListRefundsParams struct {
	From  int64 // unix seconds, 0 = не задано
	To    int64
	Count int
	Skip  int
}

type RefundCollection struct {
	Entity string   `json:"entity"`
	Count  int      `json:"count"`
	Items  []Refund `json:"items"`
}

// ErrorDetail - разобранное тело ошибки процессора
type ErrorDetail struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Field       string `json:"field,omitempty"`
	Source      string `json:"source,omitempty"`
	Step        string `json:"step,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// GatewayError - ошибка вызова процессора. StatusCode == 0, если ответа не было.
type GatewayError struct {
	Op         string
	StatusCode int
	Detail     ErrorDetail
	Err        error
}

func (e *GatewayError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("razorpay %s: status %d: %s: %s", e.Op, e.StatusCode, e.Detail.Code, e.Detail.Description)
	case e.Err != nil:
		return fmt.Sprintf("razorpay %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("razorpay %s failed", e.Op)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Timeout - истек дедлайн или сетевой таймаут
func (e *GatewayError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// Rejected - процессор ответил 4xx: повтор с теми же параметрами не поможет
func (e *GatewayError) Rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// Retryable - таймауты, обрывы соединения и 5xx/429
func (e *GatewayError) Retryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// AsGatewayError достает *GatewayError из цепочки
func AsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}
