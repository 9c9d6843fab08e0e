package sites

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingCatalog records upstream lookups so cache behavior can be
// asserted without timing games.
type countingCatalog struct {
	profiles map[string]*Profile
	lookups  map[string]int
	err      error
}

func newCountingCatalog(profiles ...*Profile) *countingCatalog {
	m := make(map[string]*Profile, len(profiles))
	for _, p := range profiles {
		m[p.Domain] = p
	}
	return &countingCatalog{profiles: m, lookups: make(map[string]int)}
}

func (c *countingCatalog) Profile(_ context.Context, domain string) (*Profile, error) {
	c.lookups[domain]++
	if c.err != nil {
		return nil, c.err
	}
	if p, ok := c.profiles[domain]; ok {
		return p, nil
	}
	return nil, ErrProfileNotFound
}

func TestStaticCatalog(t *testing.T) {
	t.Parallel()

	catalog := NewStaticCatalog([]*Profile{
		{Domain: "example.com", DeletionURL: "https://example.com/delete", Difficulty: 3},
	})

	t.Run("returns registered profile", func(t *testing.T) {
		t.Parallel()

		p, err := catalog.Profile(context.Background(), "example.com")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/delete", p.DeletionURL)
	})

	t.Run("unknown domain returns ErrProfileNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := catalog.Profile(context.Background(), "unknown.test")
		assert.ErrorIs(t, err, ErrProfileNotFound)
	})
}

func TestCachedCatalog(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("caches hits", func(t *testing.T) {
		t.Parallel()

		upstream := newCountingCatalog(&Profile{Domain: "example.com", Difficulty: 5})
		catalog := NewCachedCatalog(upstream, time.Minute, nil)

		for i := 0; i < 3; i++ {
			p, err := catalog.Profile(ctx, "example.com")
			require.NoError(t, err)
			assert.Equal(t, 5, p.Difficulty)
		}

		assert.Equal(t, 1, upstream.lookups["example.com"])
	})

	t.Run("caches misses", func(t *testing.T) {
		t.Parallel()

		upstream := newCountingCatalog()
		catalog := NewCachedCatalog(upstream, time.Minute, nil)

		for i := 0; i < 3; i++ {
			_, err := catalog.Profile(ctx, "noprofile.test")
			assert.ErrorIs(t, err, ErrProfileNotFound)
		}

		assert.Equal(t, 1, upstream.lookups["noprofile.test"])
	})

	t.Run("does not cache transient upstream failures", func(t *testing.T) {
		t.Parallel()

		upstream := newCountingCatalog(&Profile{Domain: "example.com"})
		upstream.err = errors.New("catalog unreachable")
		catalog := NewCachedCatalog(upstream, time.Minute, nil)

		_, err := catalog.Profile(ctx, "example.com")
		require.Error(t, err)

		upstream.err = nil
		p, err := catalog.Profile(ctx, "example.com")
		require.NoError(t, err)
		assert.Equal(t, "example.com", p.Domain)
		assert.Equal(t, 2, upstream.lookups["example.com"])
	})
}

func TestLoadProfiles(t *testing.T) {
	t.Parallel()

	writeFile := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "profiles.json")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	t.Run("parses a valid profiles file", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, `[
			{"domain": "example.com", "deletion_url": "https://example.com/delete", "privacy_email": "dpo@example.com", "difficulty": 4},
			{"domain": "other.test", "difficulty": 8}
		]`)

		profiles, err := LoadProfiles(path)
		require.NoError(t, err)
		require.Len(t, profiles, 2)
		assert.Equal(t, "dpo@example.com", profiles[0].PrivacyEmail)
		assert.Equal(t, 8, profiles[1].Difficulty)
	})

	t.Run("rejects profiles without a domain", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, `[{"deletion_url": "https://example.com/delete"}]`)

		_, err := LoadProfiles(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "has no domain")
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, `{"not": "an array"}`)

		_, err := LoadProfiles(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadProfiles(filepath.Join(t.TempDir(), "absent.json"))
		assert.Error(t, err)
	})
}
