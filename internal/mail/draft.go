package mail

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"
)

// DraftRequest carries everything a drafter needs to produce an erasure
// request. The correlation token must appear verbatim in the result so a
// later reply can be matched back to the task deterministically.
type DraftRequest struct {
	SiteName         string
	SiteURL          string
	Username         string
	AccountEmail     string
	RequesterName    string
	CorrelationToken string
}

// Draft is a ready-to-send erasure request.
type Draft struct {
	Subject string
	Body    string
}

// Drafter produces erasure-request email. Implementations: the static
// template below, and the Gemini-backed drafter in platform/gemini.
type Drafter interface {
	DraftErasureRequest(ctx context.Context, req DraftRequest) (Draft, error)
}

// erasureTemplate is the GDPR Article 17 request sent when no LLM
// drafter is configured, or as the fallback when drafting fails.
var erasureTemplate = template.Must(template.New("erasure").Parse(`Dear {{.SiteName}} Data Protection Team,

I am writing to request the complete deletion of my personal data from your platform in accordance with Article 17 of the EU General Data Protection Regulation (GDPR) - the Right to Erasure.

ACCOUNT INFORMATION:
- Username: {{.Username}}
- Email: {{if .AccountEmail}}{{.AccountEmail}}{{else}}N/A{{end}}
- Site: {{.SiteURL}}

DELETION REQUEST:
Under GDPR Article 17, I request that you:

1. DELETE all personal data associated with this account, including profile information, activity logs, communications, derived data profiles, and backup copies.
2. REMOVE all records of my activity on your platform.
3. CONFIRM in writing that the deletion has been completed within 30 days of receipt of this request.

If you cannot comply with this request, please provide detailed reasons and legal justification within 30 days.

Please quote the reference {{.CorrelationToken}} in all correspondence regarding this request.

Thank you for your prompt attention to this matter.

Regards,
{{if .RequesterName}}{{.RequesterName}}{{else}}{{.Username}}{{end}}

---
Generated on: {{.GeneratedAt}}
Reference: {{.CorrelationToken}}
`))

// TemplateDrafter renders the static erasure-request template.
type TemplateDrafter struct{}

// NewTemplateDrafter creates a drafter backed by the static template.
func NewTemplateDrafter() *TemplateDrafter {
	return &TemplateDrafter{}
}

// DraftErasureRequest implements Drafter.
func (d *TemplateDrafter) DraftErasureRequest(_ context.Context, req DraftRequest) (Draft, error) {
	data := struct {
		DraftRequest
		GeneratedAt string
	}{
		DraftRequest: req,
		GeneratedAt:  time.Now().UTC().Format("2006-01-02 15:04:05 UTC"),
	}

	var body bytes.Buffer
	if err := erasureTemplate.Execute(&body, data); err != nil {
		return Draft{}, fmt.Errorf("failed to render erasure template: %w", err)
	}

	subject := fmt.Sprintf("GDPR Data Deletion Request - %s [Ref: %s]",
		req.Username, req.CorrelationToken)

	return Draft{Subject: subject, Body: body.String()}, nil
}
