package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"meetbot/internal/appinfo"
)

//go:embed email_template.html
var emailTemplateFS embed.FS

type emailTemplateData struct {
	AppDisplay string
	Title      string
	Preheader  string
	Accent     string
	Body       template.HTML
	Footer     string
}

var (
	emailTemplateOnce sync.Once
	emailTemplate     *template.Template
	emailTemplateErr  error
)

func getEmailTemplate() (*template.Template, error) {
	emailTemplateOnce.Do(func() {
		b, err := emailTemplateFS.ReadFile("email_template.html")
		if err != nil {
			emailTemplateErr = err
			return
		}
		emailTemplate, emailTemplateErr = template.New("email_template.html").Parse(string(b))
	})
	return emailTemplate, emailTemplateErr
}

var emailMarkdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
)

var emailMarkdownMu sync.Mutex

// markdownBody is the notification body shared by the text and HTML parts.
func markdownBody(n Notification) string {
	at := n.At
	if at.IsZero() {
		at = time.Now()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", Summary(n))
	fmt.Fprintf(&b, "| Class (Meeting) | Status | Start Time | End Time |\n")
	fmt.Fprintf(&b, "|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %s | **%s** | %s | %s |\n\n", escapeCell(n.Label), n.Outcome.Title(), n.Start, n.End)
	fmt.Fprintf(&b, "Reported at %s.\n", at.Format("2006-01-02 15:04 MST"))
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func renderEmailHTML(n Notification) (string, error) {
	body := markdownBody(n)

	var content bytes.Buffer
	emailMarkdownMu.Lock()
	err := emailMarkdown.Convert([]byte(body), &content)
	emailMarkdownMu.Unlock()
	if err != nil {
		content.Reset()
		content.WriteString("<pre>")
		content.WriteString(template.HTMLEscapeString(body))
		content.WriteString("</pre>")
	}

	accent := discordColors[n.Outcome]
	if accent == "" {
		accent = "6b7280"
	}
	data := emailTemplateData{
		AppDisplay: appinfo.Display(),
		Title:      Summary(n),
		Preheader:  fmt.Sprintf("%s (%s-%s)", Summary(n), n.Start, n.End),
		Accent:     accent,
		Body:       template.HTML(content.String()),
		Footer:     fmt.Sprintf("%s • %s", appinfo.Name, time.Now().UTC().Format(time.RFC3339)),
	}

	tmpl, err := getEmailTemplate()
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return "", err
	}
	return out.String(), nil
}
