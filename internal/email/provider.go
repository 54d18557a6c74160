package email

import (
	"context"
	"fmt"
	"sync"

	"helpinghands_backend/internal/logger"
)

// Provider определяет интерфейс для отправки email
type Provider interface {
	// Send отправляет email сообщение
	Send(ctx context.Context, email *Email) error

	// Validate проверяет конфигурацию провайдера
	Validate() error
}

// TemplateRenderer определяет интерфейс для рендеринга шаблонов
type TemplateRenderer interface {
	// Render рендерит шаблон с данными
	Render(templateName string, data TemplateData) (string, error)
}

// LogProvider ничего не отправляет, только пишет в лог (dev, email.enabled=false)
type LogProvider struct{}

func (LogProvider) Send(ctx context.Context, email *Email) error {
	logger.CtxInfo(ctx, "Email delivery disabled, message logged",
		"to", email.To,
		"subject", email.Subject,
	)
	return nil
}

func (LogProvider) Validate() error { return nil }

// RecordingProvider запоминает письма; Err, если задан, возвращается из Send
type RecordingProvider struct {
	mu   sync.Mutex
	sent []Email
	Err  error
}

func (p *RecordingProvider) Send(ctx context.Context, email *Email) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	if len(email.To) == 0 {
		return fmt.Errorf("no recipients")
	}
	p.sent = append(p.sent, *email)
	return nil
}

func (p *RecordingProvider) Validate() error { return nil }

// FailWith меняет Err под блокировкой (Send может идти из фоновой горутины)
func (p *RecordingProvider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Err = err
}

func (p *RecordingProvider) Sent() []Email {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Email(nil), p.sent...)
}
