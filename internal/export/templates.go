package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var retroTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
	}

	templateContent, err := templateFS.ReadFile("templates/retro.html")
	if err != nil {
		// Fallback to built-in template if file not found
		retroTemplate = template.Must(template.New("retro").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	retroTemplate = template.Must(template.New("retro").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for retrospective template rendering
type TemplateData struct {
	Name     string
	Date     string
	Sections []TemplateSection
}

// TemplateSection holds one section for template rendering
type TemplateSection struct {
	Title   string
	Items   []TemplateItem
	Actions []TemplateAction
}

// TemplateItem holds one item row for template rendering
type TemplateItem struct {
	Content string
	Upvotes int
	Date    string
}

// TemplateAction holds one action-item row for template rendering
type TemplateAction struct {
	Description string
	Owner       string
	Priority    string
	Date        string
}

// RenderRetroHTML renders the retrospective template with provided data
func RenderRetroHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := retroTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Name}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .section { margin: 1.5rem 0; }
    .item { background: #f5f5f5; padding: 0.5rem 1rem; margin: 0.5rem 0; border-left: 3px solid #333; }
    .badge { font-weight: bold; }
  </style>
</head>
<body>
  <h1>{{.Name}}</h1>
  <div class="meta">{{.Date}}</div>
  {{range .Sections}}
  <div class="section">
    <h2>{{.Title}}</h2>
    {{range .Items}}<div class="item">{{.Content}} ({{.Upvotes}} upvotes)</div>{{end}}
    {{range .Actions}}<div class="item"><span class="badge">{{.Priority}}</span> {{.Description}} ({{.Owner}})</div>{{end}}
  </div>
  {{end}}
</body>
</html>`
