package notify

import (
	"bytes"
	"html/template"

	"civictrack/backend/internal/config"
	"civictrack/backend/internal/models"

	"go.uber.org/zap"
)

const emailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
</head>
<body style="font-family: Arial, sans-serif; color: #333;">
    <h2 style="color: #1f6f43;">{{.Subject}}</h2>
    <p>{{.Body}}</p>
    {{if .Remark}}<p style="font-style: italic;">{{.Remark}}</p>{{end}}
    <p style="font-size: 12px; color: #888;">CivicTrack</p>
</body>
</html>`

var emailLayout = template.Must(template.New("status_email").Parse(emailTemplate))

// renderHTML wraps plain message text in the email layout. On template
// failure the plain text is used so the email still goes out.
func (d *Dispatcher) renderHTML(subject, body, remark string) string {
	var buf bytes.Buffer
	err := emailLayout.Execute(&buf, map[string]string{
		"Subject": subject,
		"Body":    body,
		"Remark":  remark,
	})
	if err != nil {
		d.logger.Warn("failed to render email template", zap.Error(err))
		return template.HTMLEscapeString(body)
	}
	return buf.String()
}

func languageOf(u *models.User) string {
	if u == nil || u.Language == "" {
		return config.DefaultLanguage
	}
	return u.Language
}
