package email

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"
)

const (
	ReceiptTemplate = "donation_receipt"
	ReceiptSubject  = "Donation Receipt - Helping Hands"
)

//go:embed templates/*.html
var builtinTemplates embed.FS

// TemplateManager хранит разобранные html-шаблоны писем по имени файла без .html
type TemplateManager struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
}

func NewTemplateManager() *TemplateManager {
	return &TemplateManager{templates: make(map[string]*template.Template)}
}

// NewDefaultTemplateManager грузит встроенные шаблоны; файлы из dirPath
// (если задан) переопределяют их по имени.
func NewDefaultTemplateManager(dirPath string) (*TemplateManager, error) {
	tm := NewTemplateManager()

	builtin, err := fs.Sub(builtinTemplates, "templates")
	if err != nil {
		return nil, err
	}
	if err := tm.loadFS(builtin); err != nil {
		return nil, err
	}
	if dirPath != "" {
		if err := tm.loadFS(os.DirFS(dirPath)); err != nil {
			return nil, fmt.Errorf("failed to load templates from %s: %w", dirPath, err)
		}
	}
	return tm, nil
}

func (tm *TemplateManager) Render(name string, data TemplateData) (string, error) {
	tm.mu.RLock()
	tpl, ok := tm.templates[name]
	tm.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("template not found: %s", name)
	}

	var buf strings.Builder
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}

func (tm *TemplateManager) AddTemplate(name, body string) error {
	tpl, err := template.New(name).Option("missingkey=zero").Parse(body)
	if err != nil {
		return fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	tm.mu.Lock()
	tm.templates[name] = tpl
	tm.mu.Unlock()
	return nil
}

func (tm *TemplateManager) loadFS(fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".html" {
			return nil
		}
		body, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read template file %s: %w", p, err)
		}
		return tm.AddTemplate(strings.TrimSuffix(path.Base(p), ".html"), string(body))
	})
}
