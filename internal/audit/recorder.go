// Package audit provides the append-only audit recorder. Every state
// transition performed by any engine component flows through here, and
// credential material is masked before an entry reaches the store.
package audit

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/wzin/datawipe/internal/domain"
	"github.com/wzin/datawipe/internal/platform/logger"
	"github.com/wzin/datawipe/internal/store"
)

// MaskedPlaceholder replaces sensitive values in audit detail payloads.
const MaskedPlaceholder = "[MASKED]"

// sensitiveKeyFragments marks detail keys whose values are always masked.
var sensitiveKeyFragments = []string{
	"password",
	"passwd",
	"pwd",
	"secret",
	"credential",
	"api_key",
	"apikey",
}

// Recorder appends audit entries, masking sensitive detail values first.
// Audit failures are logged but never fail the operation being audited:
// the trail is best-effort by design, the task store is authoritative.
type Recorder struct {
	store  store.AuditStore
	logger *slog.Logger
}

// NewRecorder creates a Recorder over the given audit store.
func NewRecorder(auditStore store.AuditStore, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{
		store:  auditStore,
		logger: log.With(slog.String("component", "audit_recorder")),
	}
}

// Record appends one audit entry for the given action. taskID may be nil
// for engine-wide actions; detail may be nil.
func (r *Recorder) Record(ctx context.Context, taskID *uuid.UUID, action, actor string, detail map[string]interface{}) {
	log := logger.FromContextOrDefault(ctx, r.logger)

	entry, err := domain.NewAuditEntry(taskID, action, actor, MaskSensitive(detail))
	if err != nil {
		log.Error("failed to build audit entry",
			slog.String("action", action),
			slog.String("error", err.Error()))
		return
	}

	if err := r.store.Append(ctx, entry); err != nil {
		log.Error("failed to append audit entry",
			slog.String("action", action),
			slog.String("error", err.Error()))
	}
}

// MaskSensitive returns a copy of detail with values under sensitive
// keys replaced by the masked placeholder. Nested maps are masked
// recursively. The input map is not modified.
func MaskSensitive(detail map[string]interface{}) map[string]interface{} {
	if detail == nil {
		return nil
	}

	masked := make(map[string]interface{}, len(detail))
	for key, value := range detail {
		if isSensitiveKey(key) {
			masked[key] = MaskedPlaceholder
			continue
		}
		if nested, ok := value.(map[string]interface{}); ok {
			masked[key] = MaskSensitive(nested)
			continue
		}
		masked[key] = value
	}
	return masked
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}
