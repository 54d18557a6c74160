package storage

import (
	"context"
	"fmt"
	"io"
)

// Storage - архив квитанций. Путь всегда относительный: receipts/<transactionId>.html
// Get возвращает ErrNotFound (обернутый), если объекта нет.
type Storage interface {
	Save(ctx context.Context, path string, reader io.Reader, contentType string) error
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
	GetURL(ctx context.Context, path string) (string, error)
}

// Config - секция storage из config.yaml
type Config struct {
	Type       string // "", local, s3, cloudflare_r2
	BasePath   string // local
	BaseURL    string // публичный префикс ссылок в письме
	Bucket     string
	Region     string
	AccessKey  string
	SecretKey  string
	Endpoint   string // R2, MinIO
	PublicRead bool
}

// NewStorage выбирает реализацию по Type.
// Пустой Type означает, что архив квитанций отключен (nil, nil).
func NewStorage(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "local":
		return NewLocalStorage(cfg)
	case "s3":
		return NewS3Storage(ctx, cfg)
	case "cloudflare_r2":
		// R2 совместим с S3 API
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("endpoint is required for Cloudflare R2")
		}
		if cfg.Region == "" {
			cfg.Region = "auto"
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = fmt.Sprintf("https://%s.r2.dev", cfg.Bucket)
		}
		return NewS3Storage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// ReceiptPath - ключ архивной копии квитанции
func ReceiptPath(transactionID string) string {
	return fmt.Sprintf("receipts/%s.html", transactionID)
}
