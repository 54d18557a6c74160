package helpers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"helpinghands_backend/internal/app"
	"helpinghands_backend/internal/auth"
	"helpinghands_backend/internal/payment"
	"helpinghands_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	TestKeyID         = "rzp_test_key"
	TestKeySecret     = "rzp_test_secret"
	TestWebhookSecret = "whsec_test"
	TestJWTSecret     = "jwt_test_secret_12345"
)

// TestServer - приложение целиком поверх sqlite и моков
type TestServer struct {
	Server   *httptest.Server
	DB       *gorm.DB
	Mocks    *app.Mocks
	Services *services.ServiceContainer
	Tokens   *auth.TokenManager
}

func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := NewTestDB(t)
	mocks := app.NewMocks(TestKeyID, TestKeySecret)
	sc := services.NewServiceContainer(mocks.Dependencies(
		services.PaymentSettings{
			KeySecret:     TestKeySecret,
			WebhookSecret: TestWebhookSecret,
			Limits:        payment.DefaultLimits(),
		},
		services.ReconciliationSettings{BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	))
	tokens := auth.NewTokenManager(TestJWTSecret, time.Hour)

	router := app.SetupRouter(db, sc, tokens, "")
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &TestServer{Server: srv, DB: db, Mocks: mocks, Services: sc, Tokens: tokens}
}

// Token выпускает JWT для userID с ролью
func (ts *TestServer) Token(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := ts.Tokens.GenerateToken(userID, role, "")
	require.NoError(t, err)
	return token
}

// SendRequest отправляет JSON (body может быть []byte для сырого тела)
func (ts *TestServer) SendRequest(t *testing.T, method, path, token string, body interface{}, headers ...map[string]string) (*http.Response, string) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, h := range headers {
		for k, v := range h {
			req.Header.Set(k, v)
		}
	}

	res, err := ts.Server.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(data)
}

// WaitFor ждет асинхронную отправку квитанции и т.п.
func WaitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}
