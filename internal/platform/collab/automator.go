package collab

import (
	"context"
	"net/http"
	"time"

	"github.com/wzin/datawipe/internal/domain"
	"github.com/wzin/datawipe/internal/engine"
	"github.com/wzin/datawipe/internal/sites"
)

// AutomatorClient implements engine.Automator against the
// browser-automation sidecar. The sidecar owns navigation and selector
// logic; this client only ships the site profile over and maps the
// reported result onto the outcome taxonomy.
type AutomatorClient struct {
	client
}

// Compile-time interface check.
var _ engine.Automator = (*AutomatorClient)(nil)

// NewAutomatorClient creates a client for the automation sidecar.
func NewAutomatorClient(baseURL string, timeout time.Duration) *AutomatorClient {
	return &AutomatorClient{client: newClient(baseURL, timeout)}
}

type executeRequest struct {
	Domain           string `json:"domain"`
	DeletionURL      string `json:"deletion_url"`
	CredentialHandle string `json:"credential_handle"`
}

type executeResponse struct {
	Completed bool   `json:"completed"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Execute implements engine.Automator. Transport failures surface as
// errors for the executor to classify; a delivered response maps onto
// the outcome taxonomy by the sidecar's reported reason.
func (c *AutomatorClient) Execute(ctx context.Context, profile *sites.Profile, credentialHandle string) (engine.Outcome, error) {
	req := executeRequest{
		Domain:           profile.Domain,
		DeletionURL:      profile.DeletionURL,
		CredentialHandle: credentialHandle,
	}

	var resp executeResponse
	if err := c.doJSON(ctx, http.MethodPost, "/execute", req, &resp); err != nil {
		return engine.Outcome{}, err
	}

	if resp.Completed {
		return engine.Success(), nil
	}

	reason := domain.FailureReason(resp.Reason)
	switch reason {
	case domain.ReasonCaptchaDetected, domain.ReasonLoginFailed,
		domain.ReasonSelectorNotFound, domain.ReasonSiteUnreachable,
		domain.ReasonTimeout:
		return engine.TransientFailure(reason, resp.Message), nil
	default:
		// Unknown reason strings fall back to text classification.
		return engine.ClassifyError(&reportedFailure{reason: resp.Reason, message: resp.Message}), nil
	}
}

// reportedFailure adapts a sidecar failure report to an error for
// ClassifyError.
type reportedFailure struct {
	reason  string
	message string
}

func (f *reportedFailure) Error() string {
	if f.message == "" {
		return f.reason
	}
	return f.reason + ": " + f.message
}
