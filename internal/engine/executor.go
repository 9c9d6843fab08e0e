package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wzin/datawipe/internal/accounts"
	"github.com/wzin/datawipe/internal/config"
	"github.com/wzin/datawipe/internal/domain"
	"github.com/wzin/datawipe/internal/mail"
	"github.com/wzin/datawipe/internal/platform/logger"
	"github.com/wzin/datawipe/internal/sites"
)

// MethodExecutor performs one deletion attempt for one task. The method
// set is closed: the dispatcher holds exactly one executor per
// domain.DeletionMethod value and switches exhaustively.
type MethodExecutor interface {
	// Method returns the deletion method this executor implements.
	Method() domain.DeletionMethod

	// Execute performs a single attempt and reports the typed outcome.
	// Infrastructure errors must be folded into the outcome, not
	// returned: every attempt produces exactly one outcome.
	Execute(ctx context.Context, task *domain.DeletionTask) Outcome
}

// Automator is the browser-automation collaborator. Navigation and
// selector logic live behind it; the engine only sees the outcome.
// Implementations check ctx between automation steps so pause/shutdown
// aborts cooperatively.
type Automator interface {
	Execute(ctx context.Context, profile *sites.Profile, credentialHandle string) (Outcome, error)
}

// AutomatedExecutor drives the automation collaborator for tasks whose
// selected method is automated.
type AutomatedExecutor struct {
	accounts  accounts.Store
	catalog   sites.Catalog
	automator Automator
	logger    *slog.Logger
}

// NewAutomatedExecutor creates the automated-method executor.
func NewAutomatedExecutor(
	accountStore accounts.Store,
	catalog sites.Catalog,
	automator Automator,
	log *slog.Logger,
) *AutomatedExecutor {
	if log == nil {
		log = slog.Default()
	}
	return &AutomatedExecutor{
		accounts:  accountStore,
		catalog:   catalog,
		automator: automator,
		logger:    log.With(slog.String("component", "automated_executor")),
	}
}

// Method implements MethodExecutor.
func (e *AutomatedExecutor) Method() domain.DeletionMethod {
	return domain.MethodAutomated
}

// Execute implements MethodExecutor.
func (e *AutomatedExecutor) Execute(ctx context.Context, task *domain.DeletionTask) Outcome {
	log := logger.FromContextOrDefault(ctx, e.logger)

	account, err := e.accounts.GetAccount(ctx, task.AccountRef)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return PermanentFailure(domain.ReasonUnknown,
				fmt.Sprintf("account reference %s no longer resolves", task.AccountRef))
		}
		return TransientFailure(domain.ReasonUnknown, err.Error())
	}

	profile, err := e.catalog.Profile(ctx, task.SiteDomain)
	if err != nil {
		if errors.Is(err, sites.ErrProfileNotFound) {
			// Method selection should not have picked automated; report
			// it structurally so the selector switches to email.
			return TransientFailure(domain.ReasonSelectorNotFound,
				fmt.Sprintf("no automation profile registered for %s", task.SiteDomain))
		}
		return TransientFailure(domain.ReasonUnknown, err.Error())
	}

	outcome, err := e.automator.Execute(ctx, profile, account.CredentialHandle)
	if err != nil {
		outcome = ClassifyError(err)
	}

	log.Debug("automated execution finished",
		slog.String("task_id", task.ID.String()),
		slog.String("site", task.SiteDomain),
		slog.String("outcome", outcome.Kind.String()),
		slog.String("reason", string(outcome.Reason)))

	return outcome
}

// EmailExecutor sends a formal data-erasure request. A successful send
// is not a completed deletion: the outcome is needs_confirmation and the
// correlator resolves the task when the site replies.
type EmailExecutor struct {
	accounts accounts.Store
	catalog  sites.Catalog
	sender   mail.Sender
	drafter  mail.Drafter
	fallback mail.Drafter
	mailCfg  config.MailConfig
	logger   *slog.Logger
}

// NewEmailExecutor creates the email-method executor. drafter may be
// nil, in which case the static template is always used.
func NewEmailExecutor(
	accountStore accounts.Store,
	catalog sites.Catalog,
	sender mail.Sender,
	drafter mail.Drafter,
	mailCfg config.MailConfig,
	log *slog.Logger,
) *EmailExecutor {
	if log == nil {
		log = slog.Default()
	}
	return &EmailExecutor{
		accounts: accountStore,
		catalog:  catalog,
		sender:   sender,
		drafter:  drafter,
		fallback: mail.NewTemplateDrafter(),
		mailCfg:  mailCfg,
		logger:   log.With(slog.String("component", "email_executor")),
	}
}

// Method implements MethodExecutor.
func (e *EmailExecutor) Method() domain.DeletionMethod {
	return domain.MethodEmail
}

// Execute implements MethodExecutor.
func (e *EmailExecutor) Execute(ctx context.Context, task *domain.DeletionTask) Outcome {
	log := logger.FromContextOrDefault(ctx, e.logger)

	account, err := e.accounts.GetAccount(ctx, task.AccountRef)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return PermanentFailure(domain.ReasonUnknown,
				fmt.Sprintf("account reference %s no longer resolves", task.AccountRef))
		}
		return TransientFailure(domain.ReasonUnknown, err.Error())
	}

	recipient := e.resolveRecipient(ctx, task.SiteDomain)
	if recipient == "" {
		// The send cannot even be attempted. Terminal by definition.
		return PermanentFailure(domain.ReasonNoContactAddress,
			fmt.Sprintf("no erasure contact address resolvable for %s", task.SiteDomain))
	}

	draft, err := e.draft(ctx, task, account)
	if err != nil {
		return TransientFailure(domain.ReasonUnknown,
			fmt.Sprintf("failed to draft erasure request: %v", err))
	}

	if err := e.sender.Send(ctx, recipient, draft.Subject, draft.Body); err != nil {
		return TransientFailure(domain.ReasonSendFailed, err.Error())
	}

	log.Info("erasure request sent",
		slog.String("task_id", task.ID.String()),
		slog.String("site", task.SiteDomain),
		slog.String("recipient", recipient))

	return NeedsConfirmation()
}

// resolveRecipient prefers a registered privacy contact from site
// metadata over the well-known mailbox guesses.
func (e *EmailExecutor) resolveRecipient(ctx context.Context, siteDomain string) string {
	registered := ""
	if profile, err := e.catalog.Profile(ctx, siteDomain); err == nil {
		registered = profile.PrivacyEmail
	}
	return mail.ResolveContact(registered, siteDomain)
}

// draft produces the erasure request, using the configured drafter when
// present and falling back to the static template when drafting fails.
// Whatever drafter runs, the correlation token must survive into the
// result; a draft without it would be unmatchable and is replaced by the
// template rendering.
func (e *EmailExecutor) draft(ctx context.Context, task *domain.DeletionTask, account *accounts.Account) (mail.Draft, error) {
	req := mail.DraftRequest{
		SiteName:         account.SiteName,
		SiteURL:          account.SiteURL,
		Username:         account.Username,
		AccountEmail:     account.Email,
		RequesterName:    e.mailCfg.FromName,
		CorrelationToken: task.CorrelationToken,
	}

	if e.drafter != nil {
		draft, err := e.drafter.DraftErasureRequest(ctx, req)
		if err == nil && containsToken(draft, task.CorrelationToken) {
			return draft, nil
		}
		if err != nil {
			e.logger.Warn("drafter failed, falling back to template",
				slog.String("task_id", task.ID.String()),
				slog.String("error", err.Error()))
		} else {
			e.logger.Warn("drafted request lost the correlation token, falling back to template",
				slog.String("task_id", task.ID.String()))
		}
	}

	return e.fallback.DraftErasureRequest(ctx, req)
}

func containsToken(draft mail.Draft, token string) bool {
	return token != "" &&
		(strings.Contains(draft.Subject, token) || strings.Contains(draft.Body, token))
}
