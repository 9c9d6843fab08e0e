package mail

import (
	"fmt"
	"strings"
)

// contactPrefixes are the well-known mailbox names tried, in order, when
// a site has no registered privacy contact.
var contactPrefixes = []string{
	"privacy",
	"data-protection",
	"gdpr",
	"legal",
	"support",
}

// ContactCandidates returns the candidate erasure-request addresses for
// a site domain, best first. An explicitly registered address (from site
// metadata) should be preferred over any of these.
func ContactCandidates(domain string) []string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" || !strings.Contains(domain, ".") {
		return nil
	}

	candidates := make([]string, 0, len(contactPrefixes))
	for _, prefix := range contactPrefixes {
		candidates = append(candidates, fmt.Sprintf("%s@%s", prefix, domain))
	}
	return candidates
}

// ResolveContact picks the erasure-request address for a site: the
// registered address when present, otherwise the best-guess candidate.
// Returns "" when no address is resolvable.
func ResolveContact(registered, domain string) string {
	if registered != "" {
		return registered
	}
	candidates := ContactCandidates(domain)
	if len(candidates) == 0 {
		return ""
	}
	return candidates[0]
}
