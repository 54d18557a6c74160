package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const razorpayAPIBase = "https://api.razorpay.com/v1"

// RazorpayConfig - учетные данные и адрес API (в тестах подменяется на httptest)
type RazorpayConfig struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Timeout   time.Duration
	Logger    *slog.Logger
}

// RazorpayClient - REST-клиент процессора с basic auth.
// Каждый вызов ограничен по времени, даже если у ctx нет дедлайна.
type RazorpayClient struct {
	httpClient *http.Client
	keyID      string
	keySecret  string
	baseURL    string
	timeout    time.Duration
	logger     *slog.Logger
}

func NewRazorpayClient(httpClient *http.Client, cfg RazorpayConfig) *RazorpayClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = razorpayAPIBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RazorpayClient{
		httpClient: httpClient,
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		timeout:    timeout,
		logger:     logger,
	}
}

func (c *RazorpayClient) KeyID() string { return c.keyID }

func (c *RazorpayClient) CreateOrder(ctx context.Context, params OrderParams) (*Order, error) {
	if params.Notes == nil {
		params.Notes = Notes{}
	}
	var order Order
	if err := c.do(ctx, "orders.create", http.MethodPost, "/orders", nil, params, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *RazorpayClient) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var p Payment
	path := "/payments/" + url.PathEscape(paymentID)
	if err := c.do(ctx, "payments.fetch", http.MethodGet, path, nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *RazorpayClient) CreateRefund(ctx context.Context, paymentID string, params RefundParams) (*Refund, error) {
	var r Refund
	path := "/payments/" + url.PathEscape(paymentID) + "/refund"
	if err := c.do(ctx, "payments.refund", http.MethodPost, path, nil, params, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *RazorpayClient) ListRefunds(ctx context.Context, params ListRefundsParams) (*RefundCollection, error) {
	q := url.Values{}
	if params.From > 0 {
		q.Set("from", strconv.FormatInt(params.From, 10))
	}
	if params.To > 0 {
		q.Set("to", strconv.FormatInt(params.To, 10))
	}
	if params.Count > 0 {
		q.Set("count", strconv.Itoa(params.Count))
	}
	if params.Skip > 0 {
		q.Set("skip", strconv.Itoa(params.Skip))
	}

	var out RefundCollection
	if err := c.do(ctx, "refunds.all", http.MethodGet, "/refunds", q, nil, &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []Refund{}
	}
	return &out, nil
}

type razorpayErrorBody struct {
	Error ErrorDetail `json:"error"`
}

func (c *RazorpayClient) do(ctx context.Context, op, method, path string, query url.Values, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &GatewayError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "razorpay request failed", "op", op, "duration", time.Since(start), "error", err)
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return &GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &GatewayError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody razorpayErrorBody
		if jsonErr := json.Unmarshal(data, &errBody); jsonErr != nil || errBody.Error.Code == "" {
			errBody.Error = ErrorDetail{Code: "UNKNOWN_ERROR", Description: http.StatusText(resp.StatusCode)}
		}
		c.logger.WarnContext(ctx, "razorpay returned error",
			"op", op,
			"status", resp.StatusCode,
			"code", errBody.Error.Code,
			"reason", errBody.Error.Reason,
		)
		return &GatewayError{Op: op, StatusCode: resp.StatusCode, Detail: errBody.Error}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &GatewayError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}
