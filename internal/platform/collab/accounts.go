package collab

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/wzin/datawipe/internal/accounts"
)

// AccountClient implements accounts.Store against the external account
// service.
type AccountClient struct {
	client
}

// Compile-time interface check.
var _ accounts.Store = (*AccountClient)(nil)

// NewAccountClient creates a client for the account service at baseURL.
func NewAccountClient(baseURL string, timeout time.Duration) *AccountClient {
	return &AccountClient{client: newClient(baseURL, timeout)}
}

type accountPayload struct {
	Ref              string `json:"ref"`
	SiteName         string `json:"site_name"`
	SiteURL          string `json:"site_url"`
	SiteDomain       string `json:"site_domain"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	CredentialHandle string `json:"credential_handle"`
}

// GetAccount implements accounts.Store.
func (c *AccountClient) GetAccount(ctx context.Context, ref string) (*accounts.Account, error) {
	var payload accountPayload
	err := c.doJSON(ctx, http.MethodGet, "/accounts/"+url.PathEscape(ref), nil, &payload)
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			return nil, accounts.ErrAccountNotFound
		}
		return nil, err
	}

	return &accounts.Account{
		Ref:              payload.Ref,
		SiteName:         payload.SiteName,
		SiteURL:          payload.SiteURL,
		SiteDomain:       payload.SiteDomain,
		Username:         payload.Username,
		Email:            payload.Email,
		CredentialHandle: payload.CredentialHandle,
	}, nil
}
