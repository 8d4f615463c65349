package filter

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromQuery(t *testing.T) {
	t.Run("categories are split and repeated", func(t *testing.T) {
		f, err := FromQuery(url.Values{"category": {"scraped, tech", "music"}}, refNow)
		require.NoError(t, err)
		assert.Equal(t, []string{"scraped", "tech", "music"}, f.Categories)
	})

	t.Run("from and to are whole days", func(t *testing.T) {
		f, err := FromQuery(url.Values{"from": {"2026-04-01"}, "to": {"2026-04-15"}}, refNow)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), *f.DateFrom)
		assert.Equal(t, time.Date(2026, 4, 15, 23, 59, 59, 0, time.UTC), *f.DateTo)
	})

	t.Run("range", func(t *testing.T) {
		f, err := FromQuery(url.Values{"range": {"Nov 1-5"}}, refNow)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), *f.DateFrom)
	})

	t.Run("scraped flag", func(t *testing.T) {
		f, err := FromQuery(url.Values{"scraped": {"false"}}, refNow)
		require.NoError(t, err)
		require.NotNil(t, f.Scraped)
		assert.False(t, *f.Scraped)
	})

	t.Run("empty query", func(t *testing.T) {
		f, err := FromQuery(url.Values{}, refNow)
		require.NoError(t, err)
		assert.True(t, f.IsEmpty())
	})

	errCases := map[string]url.Values{
		"bad from":    {"from": {"04/01/2026"}},
		"bad to":      {"to": {"tomorrow"}},
		"inverted":    {"from": {"2026-04-15"}, "to": {"2026-04-01"}},
		"bad range":   {"range": {"someday"}},
		"bad scraped": {"scraped": {"maybe"}},
	}
	for name, values := range errCases {
		t.Run(name, func(t *testing.T) {
			_, err := FromQuery(values, refNow)
			assert.Error(t, err)
		})
	}
}
