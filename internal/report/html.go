package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/sprig/v3"

	"github.com/yairfalse/newfindings/pkg/finding"
)

//go:embed templates/findings.html.tmpl
var templates embed.FS

const defaultTemplate = "templates/findings.html.tmpl"

// TableData is what the findings template is executed with, once per account.
type TableData struct {
	Assessment  string
	AccountID   string
	AccountName string
	Result      finding.DiffResult
	Section     AccountSection
}

// HTML renders findings tables.
type HTML struct {
	tmpl *template.Template
}

// NewHTML parses the findings template. An empty path selects the built-in
// table.
func NewHTML(path string) (*HTML, error) {
	var (
		src  []byte
		name string
		err  error
	)
	if path == "" {
		name = filepath.Base(defaultTemplate)
		src, err = templates.ReadFile(defaultTemplate)
	} else {
		name = filepath.Base(path)
		src, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}

	tmpl, err := template.New(name).Funcs(funcMap()).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return &HTML{tmpl: tmpl}, nil
}

func funcMap() template.FuncMap {
	fm := sprig.FuncMap()
	fm["severityClass"] = func(severity string) string {
		return "severity-" + strings.ToLower(strings.ReplaceAll(severity, " ", "-"))
	}
	return fm
}

// Render executes the template for every account of doc and concatenates the
// fragments.
func (h *HTML) Render(doc Document, result finding.DiffResult) (string, error) {
	var buf bytes.Buffer
	for _, section := range doc.Accounts {
		data := TableData{
			Assessment:  doc.Assessment,
			AccountID:   section.Account.ID,
			AccountName: section.Account.Name,
			Result:      result,
			Section:     section,
		}
		if err := h.tmpl.Execute(&buf, data); err != nil {
			return "", fmt.Errorf("render account %s: %w", section.Account.ID, err)
		}
	}
	return buf.String(), nil
}
