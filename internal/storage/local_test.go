package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewLocalStorage(Config{BasePath: dir})
	require.NoError(t, err)

	path := ReceiptPath("TXN1")
	assert.Equal(t, "receipts/TXN1.html", path)

	require.NoError(t, s.Save(ctx, path, strings.NewReader("<p>ok</p>"), "text/html"))
	_, err = os.Stat(filepath.Join(dir, "receipts", "TXN1.html"))
	require.NoError(t, err)

	exists, err := s.Exists(ctx, path)
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := s.Get(ctx, path)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "<p>ok</p>", string(data))

	url, err := s.GetURL(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "/receipts/TXN1.html", url)

	require.NoError(t, s.Delete(ctx, path))
	require.NoError(t, s.Delete(ctx, path), "повторное удаление не ошибка")
	exists, _ = s.Exists(ctx, path)
	assert.False(t, exists)
}

func TestLocalStorage_StaysInsideBase(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewLocalStorage(Config{BasePath: filepath.Join(dir, "base"), BaseURL: "https://cdn.example.org/"})
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, "../../escape.html", strings.NewReader("x"), "text/html"))
	_, err = os.Stat(filepath.Join(dir, "base", "escape.html"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "escape.html"))
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, s.Save(ctx, "/", strings.NewReader("x"), "text/html"))

	url, err := s.GetURL(ctx, "receipts/a.html")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.org/receipts/a.html", url)
}

func TestNewStorage(t *testing.T) {
	s, err := NewStorage(context.Background(), Config{})
	assert.NoError(t, err)
	assert.Nil(t, s)

	_, err = NewStorage(context.Background(), Config{Type: "ftp"})
	assert.Error(t, err)

	_, err = NewStorage(context.Background(), Config{Type: "cloudflare_r2", Bucket: "b"})
	assert.Error(t, err)
}

func TestLocalStorage_GetMissing(t *testing.T) {
	s, err := NewLocalStorage(Config{BasePath: t.TempDir()})
	require.NoError(t, err)

	_, err = s.Get(context.Background(), ReceiptPath("TXN404"))
	assert.ErrorIs(t, err, ErrNotFound)
}
