package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	body, ok, err := c.Get(ctx, "Acme GmbH")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, body)

	require.NoError(t, c.Put(ctx, "Acme GmbH", []byte("<html>page</html>")))

	body, ok, err = c.Get(ctx, "Acme GmbH")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "<html>page</html>", string(body))
}

func TestPutReplaces(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.Put(ctx, "Acme GmbH", []byte("old")))
	require.NoError(t, c.Put(ctx, "Acme GmbH", []byte("new")))

	body, ok, err := c.Get(ctx, "Acme GmbH")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", string(body))
}

func TestKeysAreExactKeywordStrings(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.Put(ctx, "Acme GmbH", []byte("a")))

	_, ok, err := c.Get(ctx, "acme gmbh")
	require.NoError(t, err)
	assert.False(t, ok, "keys must not be normalized")
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.Put(ctx, "Acme GmbH", []byte("a")))
	require.NoError(t, c.Delete(ctx, "Acme GmbH"))

	_, ok, err := c.Get(ctx, "Acme GmbH")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFetchLog(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.LogFetch(ctx, FetchRecord{
		Keywords: "Acme GmbH", Mode: "exact", Status: "ok", Duration: 1200,
	}))
	require.NoError(t, c.LogFetch(ctx, FetchRecord{
		Keywords: "Beta AG", Mode: "all", Status: "failed", Error: "no matching company", Duration: 800,
	}))

	records, err := c.RecentFetches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	for _, rec := range records {
		assert.NotEmpty(t, rec.ID)
		assert.False(t, rec.FetchedAt.IsZero())
	}

	var failed *FetchRecord
	for i := range records {
		if records[i].Status == "failed" {
			failed = &records[i]
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "Beta AG", failed.Keywords)
	assert.Equal(t, "no matching company", failed.Error)
}

func TestRecentFetchesLimit(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, c.LogFetch(ctx, FetchRecord{Keywords: "x", Mode: "exact", Status: "ok"}))
	}

	records, err := c.RecentFetches(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}
