// Package accounts defines the engine's view of the external account
// store. Accounts are owned elsewhere; deletion tasks carry only an
// opaque reference and resolve the account on demand.
package accounts

import (
	"context"
	"errors"
)

// Common errors returned by account store implementations.
var (
	// ErrAccountNotFound indicates the reference resolves to no account.
	ErrAccountNotFound = errors.New("account not found")
)

// Account is the slice of an account record the engine needs to attempt
// a deletion. CredentialHandle is an opaque pointer into the credential
// vault; the cleartext credential is never part of this struct.
type Account struct {
	Ref              string
	SiteName         string
	SiteURL          string
	SiteDomain       string
	Username         string
	Email            string
	CredentialHandle string
}

// Store resolves opaque account references.
type Store interface {
	// GetAccount retrieves the account for the given reference.
	// Returns ErrAccountNotFound if the reference is unknown.
	GetAccount(ctx context.Context, ref string) (*Account, error)
}

// CredentialDecryptor is the decrypt-on-demand capability. Implementations
// must not cache or log the returned cleartext; callers must not persist
// it. Every use is separately auditable.
type CredentialDecryptor interface {
	Decrypt(ctx context.Context, handle string) (string, error)
}
