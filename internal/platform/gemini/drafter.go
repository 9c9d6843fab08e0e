// Package gemini implements the mail.Drafter interface using Google's
// Gemini API. Generated requests are validated to still carry the
// correlation token; callers fall back to the static template when the
// drafter fails, so a Gemini outage never blocks the email path.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/avast/retry-go"
	"github.com/wzin/datawipe/internal/config"
	"github.com/wzin/datawipe/internal/mail"
	"google.golang.org/genai"
)

const (
	maxAttempts = 3
	retryDelay  = 2 * time.Second
)

// promptTemplate asks for a JSON object so parsing stays deterministic.
// The token requirement is stated twice; models drop it otherwise.
const promptTemplate = `You are drafting a formal GDPR Article 17 (right to erasure) email on behalf of {{.RequesterName}}.

Site: {{.SiteName}} ({{.SiteURL}})
Account username: {{.Username}}
Account email: {{.AccountEmail}}

Write a polite, firm request that the account and all associated personal
data be deleted. The email MUST quote the reference {{.CorrelationToken}}
verbatim and ask the recipient to include the reference {{.CorrelationToken}}
in their reply.

Respond with only a JSON object: {"subject": "...", "body": "..."}`

// draftSchema is the shape the model is asked to return.
type draftSchema struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Drafter generates erasure-request email with the Gemini API.
type Drafter struct {
	logger *slog.Logger
	client *genai.Client
	model  string
	prompt *template.Template
	delay  time.Duration

	// generate is the API call, swappable in tests.
	generate func(ctx context.Context, prompt string) (string, error)
}

// NewDrafter creates a Gemini-backed drafter. Returns an error when the
// configuration is incomplete or the client cannot be constructed.
func NewDrafter(ctx context.Context, log *slog.Logger, cfg config.LLMConfig) (*Drafter, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}

	prompt, err := template.New("erasure_prompt").Parse(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v", ErrInvalidConfig, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create gemini client: %v", ErrInvalidConfig, err)
	}

	d := &Drafter{
		logger: log.With(slog.String("component", "gemini_drafter")),
		client: client,
		model:  cfg.ModelName,
		prompt: prompt,
		delay:  retryDelay,
	}
	d.generate = d.callGemini
	return d, nil
}

// Ensure Drafter implements mail.Drafter
var _ mail.Drafter = (*Drafter)(nil)

// DraftErasureRequest implements mail.Drafter. Transient API failures
// are retried with backoff; blocked or malformed responses are not.
func (d *Drafter) DraftErasureRequest(ctx context.Context, req mail.DraftRequest) (mail.Draft, error) {
	var promptBuffer bytes.Buffer
	if err := d.prompt.Execute(&promptBuffer, req); err != nil {
		return mail.Draft{}, fmt.Errorf("failed to render prompt: %w", err)
	}

	var draft mail.Draft
	err := retry.Do(
		func() error {
			text, err := d.generate(ctx, promptBuffer.String())
			if err != nil {
				return err
			}

			var parsed draftSchema
			if err := json.Unmarshal([]byte(extractJSON(text)), &parsed); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
			}
			if parsed.Subject == "" || parsed.Body == "" {
				return fmt.Errorf("%w: empty subject or body", ErrInvalidResponse)
			}
			if !strings.Contains(parsed.Subject, req.CorrelationToken) &&
				!strings.Contains(parsed.Body, req.CorrelationToken) {
				return ErrTokenMissing
			}

			draft = mail.Draft{Subject: parsed.Subject, Body: parsed.Body}
			return nil
		},
		retry.Attempts(maxAttempts),
		retry.Delay(d.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// Safety blocks will not succeed on retry.
			return !errors.Is(err, ErrContentBlocked)
		}),
	)
	if err != nil {
		d.logger.Warn("gemini draft failed", slog.String("error", err.Error()))
		return mail.Draft{}, err
	}
	return draft, nil
}

// callGemini performs one GenerateContent call and returns the raw text.
func (d *Drafter) callGemini(ctx context.Context, prompt string) (string, error) {
	resp, err := d.client.Models.GenerateContent(ctx, d.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: no content generated", ErrInvalidResponse)
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", ErrContentBlocked
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("%w: empty response text", ErrInvalidResponse)
	}
	return text.String(), nil
}

// extractJSON strips markdown code fences models wrap JSON in.
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return trimmed[start : end+1]
		}
	}
	return trimmed
}
