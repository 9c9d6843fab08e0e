package sites

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadProfiles reads a JSON site-profiles file: an array of objects
// with domain, deletion_url, privacy_email and difficulty fields.
// Profiles without a domain are rejected.
func LoadProfiles(path string) ([]*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading site profiles: %w", err)
	}

	var entries []struct {
		Domain       string `json:"domain"`
		DeletionURL  string `json:"deletion_url"`
		PrivacyEmail string `json:"privacy_email"`
		Difficulty   int    `json:"difficulty"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parsing site profiles: %w", err)
	}

	profiles := make([]*Profile, 0, len(entries))
	for i, entry := range entries {
		if entry.Domain == "" {
			return nil, fmt.Errorf("site profile %d has no domain", i)
		}
		profiles = append(profiles, &Profile{
			Domain:       entry.Domain,
			DeletionURL:  entry.DeletionURL,
			PrivacyEmail: entry.PrivacyEmail,
			Difficulty:   entry.Difficulty,
		})
	}
	return profiles, nil
}
