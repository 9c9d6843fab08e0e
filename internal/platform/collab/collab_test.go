package collab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzin/datawipe/internal/accounts"
	"github.com/wzin/datawipe/internal/domain"
	"github.com/wzin/datawipe/internal/engine"
	"github.com/wzin/datawipe/internal/sites"
)

func TestAccountClientGetAccount(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/accounts/acct-1":
			_ = json.NewEncoder(w).Encode(accountPayload{
				Ref:              "acct-1",
				SiteDomain:       "example.com",
				Username:         "user@example.com",
				CredentialHandle: "handle-1",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewAccountClient(server.URL, time.Second)

	account, err := client.GetAccount(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "example.com", account.SiteDomain)
	assert.Equal(t, "handle-1", account.CredentialHandle)

	_, err = client.GetAccount(context.Background(), "missing")
	assert.ErrorIs(t, err, accounts.ErrAccountNotFound)
}

func TestAutomatorClientMapsOutcomes(t *testing.T) {
	t.Parallel()

	var respond executeResponse
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req executeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "example.com", req.Domain)
		_ = json.NewEncoder(w).Encode(respond)
	}))
	defer server.Close()

	client := NewAutomatorClient(server.URL, time.Second)
	profile := &sites.Profile{Domain: "example.com", DeletionURL: "https://example.com/delete"}

	respond = executeResponse{Completed: true}
	outcome, err := client.Execute(context.Background(), profile, "handle-1")
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeSuccess, outcome.Kind)

	respond = executeResponse{Reason: "captcha_detected", Message: "challenge shown"}
	outcome, err = client.Execute(context.Background(), profile, "handle-1")
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeTransientFailure, outcome.Kind)
	assert.Equal(t, domain.ReasonCaptchaDetected, outcome.Reason)

	respond = executeResponse{Reason: "weird", Message: "connection refused by host"}
	outcome, err = client.Execute(context.Background(), profile, "handle-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonSiteUnreachable, outcome.Reason)
}

func TestAutomatorClientTransportErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewAutomatorClient(server.URL, time.Second)
	profile := &sites.Profile{Domain: "example.com"}

	_, err := client.Execute(context.Background(), profile, "handle-1")
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, statusOf(err))

	server.Close()
	_, err = client.Execute(context.Background(), profile, "handle-1")
	assert.ErrorIs(t, err, ErrCollaboratorUnavailable)
}

func TestMailClientSendAndPoll(t *testing.T) {
	t.Parallel()

	received := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	var gotSend sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/send":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotSend))
			w.WriteHeader(http.StatusAccepted)
		case "/inbox":
			assert.NotEmpty(t, r.URL.Query().Get("since"))
			_ = json.NewEncoder(w).Encode(pollResponse{Messages: []inboundMessage{{
				MessageID:  "msg-1",
				From:       "privacy@example.com",
				Subject:    "Account deleted",
				Body:       "Your account has been deleted.",
				ReceivedAt: received,
			}}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewMailClient(server.URL, time.Second, "erasure@datawipe.example", "DataWipe")

	err := client.Send(context.Background(), "privacy@example.com", "Erasure request", "please delete")
	require.NoError(t, err)
	assert.Equal(t, "erasure@datawipe.example", gotSend.FromAddress)
	assert.Equal(t, "privacy@example.com", gotSend.To)

	messages, err := client.Poll(context.Background(), received.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "msg-1", messages[0].MessageID)
	assert.Equal(t, "example.com", messages[0].SenderDomain())
}

func TestCatalogClientProfile(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/profiles/example.com" {
			_ = json.NewEncoder(w).Encode(profilePayload{
				Domain:       "example.com",
				DeletionURL:  "https://example.com/delete",
				PrivacyEmail: "privacy@example.com",
				Difficulty:   4,
			})
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewCatalogClient(server.URL, time.Second)

	profile, err := client.Profile(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/delete", profile.DeletionURL)

	_, err = client.Profile(context.Background(), "unknown.org")
	assert.ErrorIs(t, err, sites.ErrProfileNotFound)
}
