package engine

import (
	"context"
	"log/slog"

	"github.com/wzin/datawipe/internal/domain"
	"github.com/wzin/datawipe/internal/sites"
)

// StructuralSwitchThreshold is how many structural failures (selectors
// gone, login broken) the automated path may accumulate before method
// selection switches irrevocably to email.
const StructuralSwitchThreshold = 2

// MethodSelector decides which method an attempt uses. The decision is
// made at dispatch time so a task whose automated attempts ran into a
// CAPTCHA or a restructured site flips to email without operator action.
type MethodSelector struct {
	catalog sites.Catalog
	logger  *slog.Logger
}

// NewMethodSelector creates a selector over the given site catalog.
func NewMethodSelector(catalog sites.Catalog, log *slog.Logger) *MethodSelector {
	if log == nil {
		log = slog.Default()
	}
	return &MethodSelector{
		catalog: catalog,
		logger:  log.With(slog.String("component", "method_selector")),
	}
}

// Select returns the method for the task's next attempt. Manual tasks
// are never re-selected. The switch to email is one-way: once a CAPTCHA
// was seen or enough structural failures accumulated, automated is never
// tried again for this task.
func (s *MethodSelector) Select(ctx context.Context, task *domain.DeletionTask) domain.DeletionMethod {
	if task.Method == domain.MethodManual {
		return domain.MethodManual
	}

	if task.CaptchaSeen || task.StructuralFailures >= StructuralSwitchThreshold {
		return domain.MethodEmail
	}

	if _, err := s.catalog.Profile(ctx, task.SiteDomain); err != nil {
		return domain.MethodEmail
	}

	return domain.MethodAutomated
}
