package collab

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/wzin/datawipe/internal/sites"
)

// CatalogClient implements sites.Catalog against the site-metadata
// service. Wrap it in sites.NewCachedCatalog; profile lookups happen on
// every dispatch decision.
type CatalogClient struct {
	client
}

// Compile-time interface check.
var _ sites.Catalog = (*CatalogClient)(nil)

// NewCatalogClient creates a client for the site-metadata service.
func NewCatalogClient(baseURL string, timeout time.Duration) *CatalogClient {
	return &CatalogClient{client: newClient(baseURL, timeout)}
}

type profilePayload struct {
	Domain       string `json:"domain"`
	DeletionURL  string `json:"deletion_url"`
	PrivacyEmail string `json:"privacy_email"`
	Difficulty   int    `json:"difficulty"`
}

// Profile implements sites.Catalog.
func (c *CatalogClient) Profile(ctx context.Context, domain string) (*sites.Profile, error) {
	var payload profilePayload
	err := c.doJSON(ctx, http.MethodGet, "/profiles/"+url.PathEscape(domain), nil, &payload)
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			return nil, sites.ErrProfileNotFound
		}
		return nil, err
	}

	return &sites.Profile{
		Domain:       payload.Domain,
		DeletionURL:  payload.DeletionURL,
		PrivacyEmail: payload.PrivacyEmail,
		Difficulty:   payload.Difficulty,
	}, nil
}
